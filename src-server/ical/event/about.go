// Package `event` contains the `MasterEvent`, `ChildEvent` and
// `UndecidedEvent` structs, which are used to represent remote calendar
// events.
//
// The `MasterEvent` struct represents a plain or recurring event, while the
// `ChildEvent` struct overrides a single occurrence of a recurring
// MasterEvent (it carries a RECURRENCE-ID). Both structs are immutable.
//
// To create a new event, use the `NewUndecidedEvent` function, feed it raw
// iCalendar properties with `AddIcalProperty`, then call the
// `DecideEventType` method to validate missing or invalid data and return a
// `MasterEvent` or `ChildEvent` struct. Example usage:
//
//	blankEvent := event.NewUndecidedEvent()
//	_ = blankEvent.AddIcalProperty("SUMMARY:My Event")
//	resultEvent, err := blankEvent.DecideEventType()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	switch resultEvent := resultEvent.(type) {
//	case event.MasterEvent:
//	    // do something with the MasterEvent
//	case event.ChildEvent:
//	    // do something with the ChildEvent
//	}
package event
