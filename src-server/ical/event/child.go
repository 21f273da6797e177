package event

// Event that overrides one occurrence of a recurring master event.
type ChildEvent struct {
	EventInfo

	recurrenceID int64
}

// Get the event recurrence ID, the occurrence date being overridden.
func (e *ChildEvent) GetRecurrenceID() int64 {
	return e.recurrenceID
}
