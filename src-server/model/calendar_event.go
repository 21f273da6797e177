package model

import (
	"fmt"

	"github.com/uptrace/bun"
)

// A persisted calendar event row, master/instance/exception/standalone alike.
// Identity within a feed is the provider-assigned external id; the local id
// only exists so instances can point at their master across syncs.
type CalendarEvent struct {
	bun.BaseModel `bun:"table:calendar_events"`

	ID         string `bun:"id,pk,notnull"`
	FeedID     string `bun:"feed_id,notnull,unique:feed_external"`
	ExternalID string `bun:"external_id,notnull,unique:feed_external"`

	// local row id of the master; set only on instances and exceptions
	MasterEventID string `bun:"master_event_id"`
	IsMaster      bool   `bun:"is_master,notnull"`
	IsRecurring   bool   `bun:"is_recurring,notnull"`

	Title       string `bun:"title,notnull"`
	Description string `bun:"description"`
	Location    string `bun:"location"`
	Organizer   string `bun:"organizer"`
	Attendees   string `bun:"attendees"`

	StartDate int64 `bun:"start_date,notnull"`
	EndDate   int64 `bun:"end_date,notnull"`
	AllDay    bool  `bun:"all_day"`

	// normalized recurrence rule string; only ever set on masters
	RecurrenceRule string `bun:"recurrence_rule"`

	Sequence int    `bun:"sequence"`
	Status   string `bun:"status"`

	CreatedAt int64 `bun:"created_at,notnull"`
	UpdatedAt int64 `bun:"updated_at"`

	Feed *Feed `bun:"rel:belongs-to,join:feed_id=id"`
}

func (e *CalendarEvent) validate() error {
	switch {
	case e.FeedID == "":
		return fmt.Errorf("feed id is required")
	case e.ExternalID == "":
		return fmt.Errorf("external id is required")
	case e.Title == "":
		return fmt.Errorf("title is required")
	case e.StartDate == 0:
		return fmt.Errorf("start date is required")
	case e.EndDate == 0:
		return fmt.Errorf("end date is required")
	case e.StartDate > e.EndDate:
		return fmt.Errorf("start date must be before end date")
	case e.IsMaster && !e.IsRecurring:
		return fmt.Errorf("a master event must be recurring")
	case e.IsMaster && e.RecurrenceRule == "":
		return fmt.Errorf("a master event must carry a recurrence rule")
	case e.IsMaster && e.MasterEventID != "":
		return fmt.Errorf("a master event can't point at another master")
	case !e.IsMaster && e.RecurrenceRule != "":
		return fmt.Errorf("only a master event may carry a recurrence rule")
	case !e.IsMaster && e.IsRecurring && e.MasterEventID == "":
		return fmt.Errorf("an instance must point at its master row")
	}
	return nil
}

// Whether the remote-sourced fields differ from another row. Rows that
// compare equal must not be rewritten, or re-running a sync would stop
// being a no-op.
func (e *CalendarEvent) ChangedFrom(other *CalendarEvent) bool {
	return e.MasterEventID != other.MasterEventID ||
		e.IsMaster != other.IsMaster ||
		e.IsRecurring != other.IsRecurring ||
		e.Title != other.Title ||
		e.Description != other.Description ||
		e.Location != other.Location ||
		e.Organizer != other.Organizer ||
		e.Attendees != other.Attendees ||
		e.StartDate != other.StartDate ||
		e.EndDate != other.EndDate ||
		e.AllDay != other.AllDay ||
		e.RecurrenceRule != other.RecurrenceRule ||
		e.Sequence != other.Sequence ||
		e.Status != other.Status
}
