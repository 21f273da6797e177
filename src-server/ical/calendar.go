// The `ical` package parses iCalendar payloads.
//
// # References:
// - RFC5545: https://datatracker.ietf.org/doc/html/rfc5545
// - RFC4791: https://datatracker.ietf.org/doc/html/rfc4791
//
// # Notes:
// - Not all properties are supported when parsing; unknown ones are stored
//   in the custom property array of their event.
// - VTIMEZONE and VALARM sections, including their sub-sections, are ignored.
//   Parsing local timezones is still supported. All datetimes are stored as
//   UTC unix timestamps.
// - There are 3 types of events: MasterEvent, ChildEvent and UndecidedEvent.
//   - MasterEvent: a plain or recurring event.
//   - ChildEvent: overrides one occurrence of a recurring MasterEvent.
//   - UndecidedEvent: a placeholder while a VEVENT block is being read.
// - Calendar{} only holds MasterEvent and ChildEvent, read-only and
//   guaranteed to be valid.
// - A malformed VEVENT is skipped with a logged warning; only structural
//   errors (broken BEGIN/END nesting) abort the whole parse.
package ical

import (
	"bufio"
	"calsyncd/src-server/ical/event"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// The main struct of the package
type Calendar struct {
	id          string
	prodID      string
	name        string
	description string

	masterEvents map[string]*event.MasterEvent
	// keyed by the master's UID; one master can have many overrides
	childEvents map[string][]*event.ChildEvent

	// count of VEVENT blocks dropped for being malformed
	skippedEvents int
}

// Initialize a new Calendar{} struct
func NewCalendar() Calendar {
	return Calendar{
		id:           uuid.NewString(),
		masterEvents: make(map[string]*event.MasterEvent),
		childEvents:  make(map[string][]*event.ChildEvent),
	}
}

// Unmarshal an iCalendar payload into a Calendar{} struct.
func FromReader(reader io.Reader) (*Calendar, *CustomError) {
	ignoredFields := map[string]struct{}{
		"X-APPLE-TRAVEL-ADVISORY-BEHAVIOR": {},
		"ACKNOWLEDGED":                     {},
		"X-APPLE-DEFAULT-ALARM":            {},
	}

	cal := NewCalendar()
	var mode string
	lineCount := 0

	blankEvent := event.NewUndecidedEvent()
	eventBroken := false

	for _, line := range unfoldLines(reader) {
		lineCount++

		slice := strings.SplitN(line, ":", 2)
		if len(slice) != 2 {
			switch mode {
			case "event":
				if err := blankEvent.AddIcalProperty(line); err != nil {
					slog.Warn("ical: can't add property to event", "line", lineCount, "content", line, "error", err)
					eventBroken = true
				}
			case "alarm", "timezone", "standard", "daylight":
			default:
				return nil, NewCustomError("unhandled line", map[string]any{
					"line":    lineCount,
					"content": line,
				})
			}
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(slice[0]))
		value := strings.TrimSpace(slice[1])

		if _, ok := ignoredFields[key]; ok {
			continue
		}

		switch key {
		case "BEGIN":
			switch value {
			case "VCALENDAR":
				if mode == "calendar" {
					return nil, NewCustomError("nested VCALENDAR block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "calendar"
			case "VTIMEZONE":
				if mode != "calendar" {
					return nil, NewCustomError("VTIMEZONE block not in VCALENDAR block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "timezone"
			case "STANDARD":
				if mode != "timezone" {
					return nil, NewCustomError("STANDARD block not in VTIMEZONE block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "standard"
			case "DAYLIGHT":
				if mode != "timezone" && mode != "standard" {
					return nil, NewCustomError("DAYLIGHT block not in VTIMEZONE block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "daylight"
			case "VEVENT":
				if mode == "event" {
					return nil, NewCustomError("nested VEVENT block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "event"
			case "VALARM":
				if mode != "event" {
					return nil, NewCustomError("VALARM block not in VEVENT block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "alarm"
			default:
				if mode == "" {
					return nil, NewCustomError("expecting BEGIN block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				slog.Debug("ical: unhandled BEGIN block", "line", lineCount, "content", line)
			}
		case "END":
			switch value {
			case "VCALENDAR":
				mode = ""
			case "VTIMEZONE", "STANDARD", "DAYLIGHT":
				mode = func() string {
					if value == "VTIMEZONE" {
						return "calendar"
					}
					return "timezone"
				}()
			case "VALARM":
				if mode != "alarm" {
					return nil, NewCustomError("unexpected END:VALARM", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "event"
			case "VEVENT":
				if mode != "event" {
					return nil, NewCustomError("unexpected END:VEVENT", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "calendar"
				cal.finishEvent(&blankEvent, eventBroken, lineCount)
				blankEvent = event.NewUndecidedEvent()
				eventBroken = false
			default:
				slog.Debug("ical: unhandled END block", "line", lineCount, "content", line)
			}
		default:
			switch mode {
			case "timezone", "standard", "daylight", "alarm":
			case "calendar":
				switch key {
				case "VERSION", "CALSCALE", "METHOD", "X-WR-TIMEZONE":
				case "PRODID":
					cal.prodID = value
				case "X-WR-CALNAME":
					cal.name = value
				case "X-WR-CALDESC":
					cal.description = value
				default:
					slog.Debug("ical: unhandled calendar line", "line", lineCount, "content", line)
				}
			case "event":
				if err := blankEvent.AddIcalProperty(line); err != nil {
					slog.Warn("ical: can't add property to event", "line", lineCount, "content", line, "error", err)
					eventBroken = true
				}
			default:
				slog.Debug("ical: unhandled line", "line", lineCount, "content", line)
			}
		}
	}

	// attach child events to their masters; orphans are a data-quality
	// problem on the remote side, not ours to guess about
	for masterID, childEvents := range cal.childEvents {
		masterEvent, ok := cal.masterEvents[masterID]
		if !ok {
			slog.Warn("ical: dropping child events without a master", "masterID", masterID, "count", len(childEvents))
			delete(cal.childEvents, masterID)
			cal.skippedEvents += len(childEvents)
			continue
		}
		kept := make([]*event.ChildEvent, 0, len(childEvents))
		for _, childEvent := range childEvents {
			if err := masterEvent.AddChildEvent(childEvent); err != nil {
				slog.Warn("ical: can't add child event to master event", "masterID", masterID, "error", err)
				cal.skippedEvents++
				continue
			}
			kept = append(kept, childEvent)
		}
		cal.childEvents[masterID] = kept
	}

	return &cal, nil
}

// Fold continuation lines (leading space) back onto their previous line.
func unfoldLines(reader io.Reader) []string {
	lines := make([]string, 0)
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, " ") && len(lines) > 0 {
			lines[len(lines)-1] += strings.TrimPrefix(line, " ")
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Validate a completed VEVENT block and file it as a master or child event.
// Malformed events only bump the skipped counter.
func (cal *Calendar) finishEvent(blankEvent *event.UndecidedEvent, broken bool, lineCount int) {
	if broken {
		cal.skippedEvents++
		return
	}
	if blankEvent.GetSummary() == "" {
		blankEvent.SetSummary("(no title)")
	}
	resultEvent, err := blankEvent.DecideEventType()
	if err != nil {
		slog.Warn("ical: can't decide event type", "line", lineCount, "uid", blankEvent.GetID(), "error", err)
		cal.skippedEvents++
		return
	}
	switch resultEvent := resultEvent.(type) {
	case event.MasterEvent:
		if _, ok := cal.masterEvents[resultEvent.GetID()]; ok {
			slog.Warn("ical: duplicate event id", "line", lineCount, "uid", resultEvent.GetID())
			cal.skippedEvents++
			return
		}
		cal.masterEvents[resultEvent.GetID()] = &resultEvent
	case event.ChildEvent:
		cal.childEvents[resultEvent.GetID()] = append(cal.childEvents[resultEvent.GetID()], &resultEvent)
	}
}

// #region Getters
func (c *Calendar) GetID() string {
	return c.id
}
func (c *Calendar) GetProdID() string {
	return c.prodID
}

// Get the calendar name
func (c *Calendar) GetName() string {
	return c.name
}

// Get the calendar description
func (c *Calendar) GetDescription() string {
	return c.description
}

// Get the number of VEVENT blocks skipped as malformed
func (c *Calendar) GetSkippedEvents() int {
	return c.skippedEvents
}

// Get the number of MasterEvents in the calendar
func (c *Calendar) MasterEventCount() int {
	return len(c.masterEvents)
}

// #endregion

// Iterate over all MasterEvents in the calendar and apply a function to each.
func (c *Calendar) IterateMasterEvents(fn func(id string, masterEvent *event.MasterEvent)) {
	for id, masterEvent := range c.masterEvents {
		fn(id, masterEvent)
	}
}

// Iterate over all ChildEvents in the calendar and apply a function to each.
func (c *Calendar) IterateChildEvents(fn func(masterID string, childEvent *event.ChildEvent)) {
	for masterID, childEvents := range c.childEvents {
		for _, childEvent := range childEvents {
			fn(masterID, childEvent)
		}
	}
}
