package event

import (
	"calsyncd/src-server/ical/utils"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xyedo/rrule"
)

// Holds everything an event could possibly hold
type UndecidedEvent struct {
	EventInfo

	rawRRule     string
	exDates      []int64
	rDates       []int64
	recurrenceID int64
	duration     int64
}

// Create a new undecided event with new UID
func NewUndecidedEvent() UndecidedEvent {
	return UndecidedEvent{
		EventInfo: EventInfo{
			id: uuid.NewString(),
		},
	}
}

// Set the event ID.
// Returns itself for chaining.
func (e *UndecidedEvent) SetID(id string) *UndecidedEvent {
	e.id = id
	return e
}

// Set the event summary
func (e *UndecidedEvent) SetSummary(summary string) *UndecidedEvent {
	e.summary = summary
	return e
}

// Set the event start date
func (e *UndecidedEvent) SetStartDate(startDate int64) *UndecidedEvent {
	e.startDate = startDate
	return e
}

// Set the event end date
func (e *UndecidedEvent) SetEndDate(endDate int64) *UndecidedEvent {
	e.endDate = endDate
	return e
}

// EXDATE and RDATE may carry several comma-separated values on one line.
// Each value is re-attached to the property's parameters before parsing so
// TZID and VALUE=DATE still apply.
func parseDateList(property string) ([]int64, error) {
	slice := strings.SplitN(property, ":", 2)
	if len(slice) != 2 {
		return nil, fmt.Errorf("invalid date-list property")
	}
	var parsedDates []int64
	for _, value := range strings.Split(slice[1], ",") {
		parsedDate, _, err := utils.IcalDatetimeToUnix(slice[0] + ":" + value)
		if err != nil {
			return nil, err
		}
		parsedDates = append(parsedDates, parsedDate)
	}
	return parsedDates, nil
}

// Add an iCalendar property to the event.
// Unhandled properties will be stored in the customProperties array.
func (e *UndecidedEvent) AddIcalProperty(property string) error {
	// properties that don't have the regular key:value format
	switch {
	case strings.HasPrefix(property, "X-"):
		e.customProperties = append(e.customProperties, property)
		return nil
	case strings.HasPrefix(property, "ATTENDEE"):
		e.attendees = append(e.attendees, strings.TrimPrefix(property, "ATTENDEE:"))
		return nil
	case strings.HasPrefix(property, "ORGANIZER"):
		e.organizer = strings.TrimPrefix(property, "ORGANIZER:")
		return nil
	case strings.HasPrefix(property, "ATTACH"):
		e.customProperties = append(e.customProperties, property)
		return nil
	case strings.HasPrefix(property, "DTSTART"):
		parsedDate, dateOnly, err := utils.IcalDatetimeToUnix(property)
		if err != nil {
			return err
		}
		if e.endDate != 0 && parsedDate > e.endDate {
			return fmt.Errorf("DTSTART must be before DTEND")
		}
		e.startDate = parsedDate
		e.allDay = dateOnly
		return nil
	case strings.HasPrefix(property, "DTEND"):
		parsedDate, _, err := utils.IcalDatetimeToUnix(property)
		if err != nil {
			return err
		}
		if e.startDate != 0 && parsedDate < e.startDate {
			return fmt.Errorf("DTEND must be after DTSTART")
		}
		e.endDate = parsedDate
		return nil
	case strings.HasPrefix(property, "DURATION:"):
		seconds, err := utils.IcalDurationToSeconds(strings.TrimPrefix(property, "DURATION:"))
		if err != nil {
			return err
		}
		if seconds < 0 {
			return fmt.Errorf("DURATION must not be negative")
		}
		e.duration = seconds
		return nil
	case strings.HasPrefix(property, "EXDATE"):
		parsedDates, err := parseDateList(property)
		if err != nil {
			return err
		}
		e.exDates = append(e.exDates, parsedDates...)
		return nil
	case strings.HasPrefix(property, "RDATE"):
		parsedDates, err := parseDateList(property)
		if err != nil {
			return err
		}
		e.rDates = append(e.rDates, parsedDates...)
		return nil
	case strings.HasPrefix(property, "RECURRENCE-ID"):
		parsedDate, _, err := utils.IcalDatetimeToUnix(property)
		if err != nil {
			return err
		}
		e.recurrenceID = parsedDate
		return nil
	case strings.HasPrefix(property, "DTSTAMP"):
		return nil
	case strings.HasPrefix(property, "CREATED"):
		parsedDate, _, err := utils.IcalDatetimeToUnix(property)
		if err != nil {
			return err
		}
		e.createdAt = parsedDate
		return nil
	case strings.HasPrefix(property, "LAST-MODIFIED"):
		parsedDate, _, err := utils.IcalDatetimeToUnix(property)
		if err != nil {
			return err
		}
		e.updatedAt = parsedDate
		return nil
	}

	slice := strings.SplitN(property, ":", 2)
	if len(slice) != 2 {
		return nil
	}
	key := strings.ToUpper(strings.TrimSpace(slice[0]))
	val := strings.TrimSpace(slice[1])

	switch key {
	case "UID":
		e.id = val
	case "SUMMARY":
		e.summary = val
	case "DESCRIPTION":
		e.description = val
	case "LOCATION":
		e.location = val
	case "STATUS":
		e.status = val
	case "URL":
		if _, err := url.ParseRequestURI(val); err != nil {
			return fmt.Errorf("invalid URL")
		}
		e.url = val
	case "SEQUENCE":
		sequence, err := strconv.Atoi(val)
		if err != nil || sequence < 0 {
			return fmt.Errorf("invalid SEQUENCE")
		}
		e.sequence = sequence
	case "RRULE":
		// only remembered here; parsed and validated in DecideEventType once
		// the start date is known, since property order is not guaranteed
		e.rawRRule = val
	default:
		e.customProperties = append(e.customProperties, property)
	}
	return nil
}

// Convert the template event into a master or child event
func (e *UndecidedEvent) DecideEventType() (interface{}, error) {
	// events without a DTEND describe their end with a duration, or default
	// to their start (all-day events to one full day)
	if e.endDate == 0 {
		switch {
		case e.duration > 0:
			e.endDate = e.startDate + e.duration
		case e.allDay:
			e.endDate = e.startDate + 86400
		default:
			e.endDate = e.startDate
		}
	}

	if err := e.validate(); err != nil {
		return nil, err
	}

	switch {
	// to be a child event has a more strict condition; the template event
	// needs to have a recurrence-id and must not have exdate, rdate or rrule
	// since all of them are master's properties
	case e.recurrenceID != 0 && e.rawRRule != "":
		return nil, fmt.Errorf("seems like a child event, but rrule is set")
	case e.recurrenceID != 0 && len(e.exDates) > 0:
		return nil, fmt.Errorf("seems like a child event, but exdate is set")
	case e.recurrenceID != 0 && len(e.rDates) > 0:
		return nil, fmt.Errorf("seems like a child event, but rdate is set")

	case e.recurrenceID == 0 && e.rawRRule == "" && len(e.exDates) > 0:
		return nil, fmt.Errorf("exdate only works with recurring events")
	case e.recurrenceID == 0 && e.rawRRule == "" && len(e.rDates) > 0:
		return nil, fmt.Errorf("rdate only works with recurring events")

	case e.recurrenceID == 0:
		var rruleSet *rrule.Set
		if e.rawRRule != "" {
			var sb strings.Builder
			sb.WriteString("DTSTART:" + utils.UnixToIcalDatetime(e.startDate))
			sb.WriteString("\nRRULE:" + e.rawRRule)
			var err error
			rruleSet, err = rrule.StrToRRuleSet(sb.String())
			if err != nil {
				return nil, fmt.Errorf("invalid RRULE: %w", err)
			}
		}
		return MasterEvent{
			EventInfo: e.EventInfo,
			rawRRule:  e.rawRRule,
			rruleSet:  rruleSet,
			exDates:   e.exDates,
			rDates:    e.rDates,
		}, nil

	default:
		return ChildEvent{
			EventInfo:    e.EventInfo,
			recurrenceID: e.recurrenceID,
		}, nil
	}
}
