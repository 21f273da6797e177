package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"calsyncd/src-server/ical"
	"calsyncd/src-server/ical/event"
	"calsyncd/src-server/model"
	"calsyncd/src-server/recur"
	"calsyncd/src-server/syncer"
)

// Adapter fetches a CalDAV collection as one full-window snapshot; CalDAV
// has no delta protocol, so every pass re-reads the window and the
// reconciler deletes by absence.
type Adapter struct {
	client *Client
}

func NewAdapter(client *Client) *Adapter {
	if client == nil {
		client = NewClient(nil)
	}
	return &Adapter{client: client}
}

func (a *Adapter) Fetch(ctx context.Context, feed *model.Feed, windowStart, windowEnd time.Time) (*syncer.FetchResult, error) {
	payloads, err := a.client.QueryWindow(ctx, feed.RemotePath, feed.Username, feed.Password, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("caldav.Adapter.Fetch: %w", err)
	}

	result := &syncer.FetchResult{
		Events:     make([]syncer.NormalizedEvent, 0, len(payloads)),
		FullWindow: true,
		NextCursor: feed.Cursor,
	}

	for _, payload := range payloads {
		calendar, calErr := ical.FromReader(strings.NewReader(payload))
		if calErr != nil {
			// one unreadable object must not sink the rest of the snapshot
			slog.Warn("caldav.Adapter.Fetch: skipping unparsable calendar object",
				"feedID", feed.ID, "error", calErr)
			result.Skipped++
			continue
		}
		result.Skipped += calendar.GetSkippedEvents()
		a.collect(calendar, windowStart, windowEnd, result)
	}
	return result, nil
}

// Turn one parsed calendar object into normalized events: a row per master,
// a row per occurrence inside the window, and exception rows substituted in
// place of the occurrence they override.
func (a *Adapter) collect(calendar *ical.Calendar, windowStart, windowEnd time.Time, result *syncer.FetchResult) {
	calendar.IterateMasterEvents(func(id string, masterEvent *event.MasterEvent) {
		master := normalizeMaster(masterEvent)
		result.Events = append(result.Events, master)
		if master.Kind == syncer.KindStandalone {
			return
		}

		instances := recur.Expand(&master, windowStart, windowEnd)

		// EXDATEs kill their occurrence, RDATEs add one
		exDates := make(map[int64]struct{})
		masterEvent.IterateExDates(func(exDate int64) {
			exDates[exDate] = struct{}{}
		})
		masterEvent.IterateRDates(func(rDate int64) {
			if rDate < windowStart.Unix() || rDate > windowEnd.Unix() {
				return
			}
			extra := master
			extra.Kind = syncer.KindInstance
			extra.ExternalID = recur.InstanceExternalID(master.ExternalID, time.Unix(rDate, 0))
			extra.RecurringExternalID = master.ExternalID
			extra.RecurrenceRule = ""
			extra.EndDate = rDate + (master.EndDate - master.StartDate)
			extra.StartDate = rDate
			instances = append(instances, extra)
		})

		// an exception row replaces the instance at its recurrence id, so
		// it reuses that instance's synthetic external id and the upsert
		// substitutes instead of duplicating
		overrides := make(map[int64]*event.ChildEvent)
		masterEvent.IterateChildEvents(func(recurrenceID int64, childEvent *event.ChildEvent) {
			overrides[recurrenceID] = childEvent
		})

		for _, instance := range instances {
			if _, excluded := exDates[instance.StartDate]; excluded {
				continue
			}
			if childEvent, ok := overrides[instance.StartDate]; ok {
				result.Events = append(result.Events, normalizeException(childEvent, &instance))
				delete(overrides, instance.StartDate)
				continue
			}
			result.Events = append(result.Events, instance)
		}

		// overrides whose occurrence fell outside the window still carry
		// real data when their own times intersect it
		for _, childEvent := range overrides {
			if childEvent.GetStartDate() > windowEnd.Unix() || childEvent.GetEndDate() < windowStart.Unix() {
				continue
			}
			placeholder := syncer.NormalizedEvent{
				ExternalID:          recur.InstanceExternalID(master.ExternalID, time.Unix(childEvent.GetRecurrenceID(), 0)),
				RecurringExternalID: master.ExternalID,
			}
			result.Events = append(result.Events, normalizeException(childEvent, &placeholder))
		}
	})
}

func normalizeMaster(masterEvent *event.MasterEvent) syncer.NormalizedEvent {
	kind := syncer.KindStandalone
	if masterEvent.IsRecurring() {
		kind = syncer.KindMaster
	}
	return syncer.NormalizedEvent{
		ExternalID:     masterEvent.GetID(),
		Kind:           kind,
		Title:          masterEvent.GetSummary(),
		Description:    masterEvent.GetDescription(),
		Location:       masterEvent.GetLocation(),
		StartDate:      masterEvent.GetStartDate(),
		EndDate:        masterEvent.GetEndDate(),
		AllDay:         masterEvent.GetAllDay(),
		RecurrenceRule: masterEvent.GetRRule(),
		Sequence:       masterEvent.GetSequence(),
		Status:         masterEvent.GetStatus(),
		Organizer:      masterEvent.GetOrganizer(),
		Attendees:      append([]string(nil), masterEvent.GetAttendees()...),
	}
}

func normalizeException(childEvent *event.ChildEvent, replaced *syncer.NormalizedEvent) syncer.NormalizedEvent {
	return syncer.NormalizedEvent{
		ExternalID:          replaced.ExternalID,
		RecurringExternalID: replaced.RecurringExternalID,
		Kind:                syncer.KindException,
		Title:               childEvent.GetSummary(),
		Description:         childEvent.GetDescription(),
		Location:            childEvent.GetLocation(),
		StartDate:           childEvent.GetStartDate(),
		EndDate:             childEvent.GetEndDate(),
		AllDay:              childEvent.GetAllDay(),
		Sequence:            childEvent.GetSequence(),
		Status:              childEvent.GetStatus(),
		Organizer:           childEvent.GetOrganizer(),
		Attendees:           append([]string(nil), childEvent.GetAttendees()...),
	}
}
