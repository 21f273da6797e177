package syncer

import "fmt"

// EventKind tags what role a normalized event plays in its recurrence
// hierarchy. Classification happens once, at the adapter boundary; nothing
// downstream probes provider payloads again.
type EventKind int

const (
	// the recurring event carrying the rule and anchor time
	KindMaster EventKind = iota
	// one concrete, unmodified occurrence of a master
	KindInstance
	// a provider-supplied override for one occurrence of a master
	KindException
	// a plain event with no recurrence relationship
	KindStandalone
)

func (k EventKind) String() string {
	switch k {
	case KindMaster:
		return "master"
	case KindInstance:
		return "instance"
	case KindException:
		return "exception"
	case KindStandalone:
		return "standalone"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// The common shape every provider adapter produces and the reconciler
// consumes. Lives only for the duration of one sync pass; the reconciler
// maps it onto persisted rows.
type NormalizedEvent struct {
	// provider-assigned stable id, unique within one feed
	ExternalID string
	// the master's external id; set only on instances and exceptions
	RecurringExternalID string
	Kind                EventKind

	Title       string
	Description string
	Location    string

	// UTC unix timestamps; EndDate is never before StartDate
	StartDate int64
	EndDate   int64
	AllDay    bool

	// normalized rule string, present only on masters
	RecurrenceRule string

	// passthrough metadata, not used for identity or reconciliation
	Sequence  int
	Status    string
	Organizer string
	Attendees []string
}

func (e *NormalizedEvent) IsMaster() bool {
	return e.Kind == KindMaster
}

func (e *NormalizedEvent) IsRecurring() bool {
	return e.Kind != KindStandalone
}

func (e *NormalizedEvent) Validate() error {
	switch {
	case e.ExternalID == "":
		return fmt.Errorf("external id is missing")
	case e.StartDate == 0:
		return fmt.Errorf("start date is missing")
	case e.EndDate < e.StartDate:
		return fmt.Errorf("end date is before start date")
	case e.Kind == KindMaster && e.RecurrenceRule == "":
		return fmt.Errorf("master event has no recurrence rule")
	case e.Kind != KindMaster && e.RecurrenceRule != "":
		return fmt.Errorf("%s event carries a recurrence rule", e.Kind)
	case (e.Kind == KindInstance || e.Kind == KindException) && e.RecurringExternalID == "":
		return fmt.Errorf("%s event has no master external id", e.Kind)
	case (e.Kind == KindMaster || e.Kind == KindStandalone) && e.RecurringExternalID != "":
		return fmt.Errorf("%s event points at a master", e.Kind)
	default:
		return nil
	}
}
