package event

import (
	"fmt"
	"time"

	"github.com/xyedo/rrule"
)

// A plain or recurring event
type MasterEvent struct {
	EventInfo

	rawRRule    string
	rruleSet    *rrule.Set
	exDates     []int64
	rDates      []int64
	childEvents []*ChildEvent
}

// Get the raw recurrence rule string; blank for non-recurring events
func (e *MasterEvent) GetRRule() string {
	return e.rawRRule
}

// Get the parsed recurrence rule set; nil for non-recurring events
func (e *MasterEvent) GetRRuleSet() *rrule.Set {
	return e.rruleSet
}

// Whether the event recurs
func (e *MasterEvent) IsRecurring() bool {
	return e.rruleSet != nil
}

// Iterate over the exdates and apply a function to each
func (e *MasterEvent) IterateExDates(fn func(int64)) {
	for _, exDate := range e.exDates {
		fn(exDate)
	}
}

// Iterate over the rdates and apply a function to each
func (e *MasterEvent) IterateRDates(fn func(int64)) {
	for _, rDate := range e.rDates {
		fn(rDate)
	}
}

// Add a child event to the master event
func (e *MasterEvent) AddChildEvent(childEvent *ChildEvent) error {
	if e.rruleSet == nil {
		return fmt.Errorf("MasterEvent.AddChildEvent: master event does not have a rrule, child event cannot be added")
	}

	// only the recurrence instant itself is checked, so an unbounded rule
	// is never enumerated in full
	recurrenceTime := time.Unix(childEvent.GetRecurrenceID(), 0).UTC()
	for _, rruleTime := range e.rruleSet.Between(recurrenceTime, recurrenceTime, true) {
		if rruleTime.Unix() == childEvent.GetRecurrenceID() {
			e.childEvents = append(e.childEvents, childEvent)
			return nil
		}
	}

	return fmt.Errorf("MasterEvent.AddChildEvent: child event recurrence id not found in master event rrule")
}

// Iterate over the child events and apply a function to each
func (e *MasterEvent) IterateChildEvents(fn func(recurrenceID int64, event *ChildEvent)) {
	for _, childEvent := range e.childEvents {
		fn(childEvent.GetRecurrenceID(), childEvent)
	}
}
