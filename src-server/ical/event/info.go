package event

import (
	"fmt"
)

// Purely for reusing the same properties in all types of events.
// - Only getters are available as
//   - this struct is being used in UndecidedEvent, MasterEvent, and ChildEvent.
//   - MasterEvent and ChildEvent are immutable.
//   - UndecidedEvent is mutable.
type EventInfo struct {
	id string

	summary     string
	description string
	location    string
	url         string
	startDate   int64
	endDate     int64
	allDay      bool
	createdAt   int64
	updatedAt   int64

	attendees        []string
	organizer        string
	status           string
	sequence         int
	customProperties []string
}

// Get the event ID
func (e *EventInfo) GetID() string {
	return e.id
}

// Get the event summary
func (e *EventInfo) GetSummary() string {
	return e.summary
}

// Get the event description
func (e *EventInfo) GetDescription() string {
	return e.description
}

// Get the event location
func (e *EventInfo) GetLocation() string {
	return e.location
}

// Get the event URL
func (e *EventInfo) GetURL() string {
	return e.url
}

// Get the event start date as a UTC unix timestamp
func (e *EventInfo) GetStartDate() int64 {
	return e.startDate
}

// Get the event end date as a UTC unix timestamp
func (e *EventInfo) GetEndDate() int64 {
	return e.endDate
}

// Whether the event is an all-day event
func (e *EventInfo) GetAllDay() bool {
	return e.allDay
}

// Get the event created date
func (e *EventInfo) GetCreatedAt() int64 {
	return e.createdAt
}

// Get the event updated date
func (e *EventInfo) GetUpdatedAt() int64 {
	return e.updatedAt
}

// Get the event attendees
func (e *EventInfo) GetAttendees() []string {
	return e.attendees
}

// Get the event organizer
func (e *EventInfo) GetOrganizer() string {
	return e.organizer
}

// Get the event status
func (e *EventInfo) GetStatus() string {
	return e.status
}

// Get the event sequence
func (e *EventInfo) GetSequence() int {
	return e.sequence
}

// Get the event custom properties
func (e *EventInfo) GetCustomProperties() []string {
	return e.customProperties
}

func (e *EventInfo) validate() error {
	switch {
	case e.id == "":
		return fmt.Errorf("uid is missing")
	case e.startDate == 0:
		return fmt.Errorf("start date is missing")
	case e.endDate != 0 && e.startDate > e.endDate:
		return fmt.Errorf("start date must be before end date")
	case e.sequence < 0:
		return fmt.Errorf("sequence must be non-negative")
	default:
		return nil
	}
}
