package ical_test

import (
	"strings"
	"testing"
	"time"

	"calsyncd/src-server/ical"
	"calsyncd/src-server/ical/event"
)

func TestFromReader(t *testing.T) {
	rawICS := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"X-WR-CALNAME:Team Calendar",
		"BEGIN:VEVENT",
		"UID:m1",
		"SUMMARY:Standup",
		"DTSTART:20250101T090000Z",
		"DTEND:20250101T093000Z",
		"RRULE:FREQ=DAILY;COUNT=3",
		"EXDATE:20250103T090000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:m1",
		"SUMMARY:Standup (moved)",
		"DTSTART:20250102T100000Z",
		"DTEND:20250102T103000Z",
		"RECURRENCE-ID:20250102T090000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:s1",
		"SUMMARY:Dentist",
		"DTSTART:20250103T140000Z",
		"DTEND:20250103T150000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	calendar, calErr := ical.FromReader(strings.NewReader(rawICS))
	if calErr != nil {
		t.Fatal(calErr)
	}
	if calendar.GetProdID() != "-//test//EN" {
		t.Errorf("unexpected prod id: %q", calendar.GetProdID())
	}
	if calendar.GetName() != "Team Calendar" {
		t.Errorf("unexpected name: %q", calendar.GetName())
	}
	if calendar.MasterEventCount() != 2 {
		t.Errorf("expected 2 master events, got %d", calendar.MasterEventCount())
	}
	if calendar.GetSkippedEvents() != 0 {
		t.Errorf("expected 0 skipped, got %d", calendar.GetSkippedEvents())
	}

	masters := make(map[string]*event.MasterEvent)
	calendar.IterateMasterEvents(func(id string, masterEvent *event.MasterEvent) {
		masters[id] = masterEvent
	})

	// case: recurring master keeps its rule, exdate and child
	recurring, ok := masters["m1"]
	if !ok {
		t.Fatal("m1 missing")
	}
	if !recurring.IsRecurring() {
		t.Error("m1 should be recurring")
	}
	if recurring.GetRRule() != "FREQ=DAILY;COUNT=3" {
		t.Errorf("unexpected rrule: %q", recurring.GetRRule())
	}
	exDateCount := 0
	recurring.IterateExDates(func(exDate int64) {
		exDateCount++
		want := time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC).Unix()
		if exDate != want {
			t.Errorf("unexpected exdate %d, want %d", exDate, want)
		}
	})
	if exDateCount != 1 {
		t.Errorf("expected 1 exdate, got %d", exDateCount)
	}
	childCount := 0
	recurring.IterateChildEvents(func(recurrenceID int64, childEvent *event.ChildEvent) {
		childCount++
		want := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC).Unix()
		if recurrenceID != want {
			t.Errorf("unexpected recurrence id %d, want %d", recurrenceID, want)
		}
		if childEvent.GetSummary() != "Standup (moved)" {
			t.Errorf("unexpected child summary: %q", childEvent.GetSummary())
		}
	})
	if childCount != 1 {
		t.Errorf("expected 1 child event, got %d", childCount)
	}

	// case: non-recurring event parses as a plain master
	plain, ok := masters["s1"]
	if !ok {
		t.Fatal("s1 missing")
	}
	if plain.IsRecurring() {
		t.Error("s1 should not be recurring")
	}
	if plain.GetStartDate() != time.Date(2025, 1, 3, 14, 0, 0, 0, time.UTC).Unix() {
		t.Errorf("unexpected start date: %d", plain.GetStartDate())
	}
}

func TestFromReaderDateLists(t *testing.T) {
	// EXDATE and RDATE may pack several values on one line
	rawICS := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:m1",
		"SUMMARY:Standup",
		"DTSTART:20250101T090000Z",
		"DTEND:20250101T093000Z",
		"RRULE:FREQ=DAILY;COUNT=10",
		"EXDATE:20250103T090000Z,20250104T090000Z",
		"RDATE:20250120T090000Z,20250121T090000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	calendar, calErr := ical.FromReader(strings.NewReader(rawICS))
	if calErr != nil {
		t.Fatal(calErr)
	}
	if calendar.GetSkippedEvents() != 0 {
		t.Errorf("expected 0 skipped, got %d", calendar.GetSkippedEvents())
	}

	var recurring *event.MasterEvent
	calendar.IterateMasterEvents(func(id string, masterEvent *event.MasterEvent) {
		recurring = masterEvent
	})
	if recurring == nil {
		t.Fatal("m1 missing")
	}

	var exDates []int64
	recurring.IterateExDates(func(exDate int64) {
		exDates = append(exDates, exDate)
	})
	wantExDates := []int64{
		time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC).Unix(),
		time.Date(2025, 1, 4, 9, 0, 0, 0, time.UTC).Unix(),
	}
	if len(exDates) != 2 || exDates[0] != wantExDates[0] || exDates[1] != wantExDates[1] {
		t.Errorf("unexpected exdates %v, want %v", exDates, wantExDates)
	}

	var rDates []int64
	recurring.IterateRDates(func(rDate int64) {
		rDates = append(rDates, rDate)
	})
	wantRDates := []int64{
		time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC).Unix(),
		time.Date(2025, 1, 21, 9, 0, 0, 0, time.UTC).Unix(),
	}
	if len(rDates) != 2 || rDates[0] != wantRDates[0] || rDates[1] != wantRDates[1] {
		t.Errorf("unexpected rdates %v, want %v", rDates, wantRDates)
	}
}

func TestFromReaderAllDayAndDuration(t *testing.T) {
	rawICS := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:d1",
		"SUMMARY:Conference day",
		"DTSTART;VALUE=DATE:20250110",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:d2",
		"SUMMARY:Focus block",
		"DTSTART:20250110T090000Z",
		"DURATION:PT2H30M",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	calendar, calErr := ical.FromReader(strings.NewReader(rawICS))
	if calErr != nil {
		t.Fatal(calErr)
	}

	masters := make(map[string]*event.MasterEvent)
	calendar.IterateMasterEvents(func(id string, masterEvent *event.MasterEvent) {
		masters[id] = masterEvent
	})

	// case: a date-only DTSTART means all-day, spanning one full day
	allDay := masters["d1"]
	if allDay == nil {
		t.Fatal("d1 missing")
	}
	if !allDay.GetAllDay() {
		t.Error("d1 should be all-day")
	}
	if allDay.GetEndDate()-allDay.GetStartDate() != 86400 {
		t.Errorf("all-day span is %d seconds", allDay.GetEndDate()-allDay.GetStartDate())
	}

	// case: DURATION substitutes for a missing DTEND
	timed := masters["d2"]
	if timed == nil {
		t.Fatal("d2 missing")
	}
	if timed.GetEndDate()-timed.GetStartDate() != 2*3600+30*60 {
		t.Errorf("duration span is %d seconds", timed.GetEndDate()-timed.GetStartDate())
	}
}

func TestFromReaderMalformedEvents(t *testing.T) {
	// case: an event without a start date is skipped, the rest survive
	rawICS := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:broken-1",
		"SUMMARY:No dates at all",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:ok-1",
		"SUMMARY:Fine",
		"DTSTART:20250101T090000Z",
		"DTEND:20250101T100000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	calendar, calErr := ical.FromReader(strings.NewReader(rawICS))
	if calErr != nil {
		t.Fatal(calErr)
	}
	if calendar.MasterEventCount() != 1 {
		t.Errorf("expected 1 master event, got %d", calendar.MasterEventCount())
	}
	if calendar.GetSkippedEvents() != 1 {
		t.Errorf("expected 1 skipped, got %d", calendar.GetSkippedEvents())
	}

	// case: a child without a master is dropped at the end of the parse
	orphanICS := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:ghost",
		"SUMMARY:Orphan",
		"DTSTART:20250102T100000Z",
		"DTEND:20250102T103000Z",
		"RECURRENCE-ID:20250102T090000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	orphanCalendar, calErr := ical.FromReader(strings.NewReader(orphanICS))
	if calErr != nil {
		t.Fatal(calErr)
	}
	if orphanCalendar.MasterEventCount() != 0 {
		t.Errorf("expected 0 master events, got %d", orphanCalendar.MasterEventCount())
	}
	if orphanCalendar.GetSkippedEvents() != 1 {
		t.Errorf("expected 1 skipped, got %d", orphanCalendar.GetSkippedEvents())
	}

	// case: structural garbage is a hard error
	if _, calErr := ical.FromReader(strings.NewReader("BEGIN:VEVENT\r\nEND:VEVENT")); calErr == nil {
		t.Error("expected an error for a VEVENT outside VCALENDAR")
	}

	// case: folded lines are unfolded before parsing
	foldedICS := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:f1",
		"SUMMARY:A very long",
		"  meeting title",
		"DTSTART:20250101T090000Z",
		"DTEND:20250101T100000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")
	foldedCalendar, calErr := ical.FromReader(strings.NewReader(foldedICS))
	if calErr != nil {
		t.Fatal(calErr)
	}
	foldedCalendar.IterateMasterEvents(func(id string, masterEvent *event.MasterEvent) {
		if masterEvent.GetSummary() != "A very long meeting title" {
			t.Errorf("unexpected summary: %q", masterEvent.GetSummary())
		}
	})
}
