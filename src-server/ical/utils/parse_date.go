package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parsing properties containing date-time values
//
// - `aaa;TZID=bbb:ccc`
// - `aaa;VALUE=DATE:ccc`
// - `aaa:cccZ`
//
// `aaa` will be ignored; `bbb` is the time zone; `ccc` is the date-time value.
// Returns the value as a UTC unix timestamp. The second return value reports
// whether the value was a date without a time component, which is how all-day
// events are marked.
func IcalDatetimeToUnix(rawText string) (int64, bool, error) {
	slice := strings.SplitN(rawText, ":", 2)
	if len(slice) != 2 {
		return 0, false, fmt.Errorf("must be splitable by ':', got %s", rawText)
	}

	// parse UTC time
	switch len(slice[1]) {
	case 16:
		res, err := time.Parse("20060102T150405Z", slice[1])
		if err != nil {
			return 0, false, err
		}
		return res.Unix(), false, nil
	case 8:
		res, err := time.Parse("20060102", slice[1])
		if err != nil {
			return 0, false, err
		}
		return res.Unix(), true, nil
	}

	properties := make(map[string]string)
	if strings.Contains(slice[0], ";") {
		for _, prop := range strings.Split(slice[0], ";") {
			if strings.Contains(prop, "=") {
				parts := strings.SplitN(prop, "=", 2)
				properties[parts[0]] = parts[1]
			}
		}
	}

	// parse time zone
	tzidString, ok := properties["TZID"]
	if !ok {
		return 0, false, fmt.Errorf("time zone is missing")
	}
	location, err := time.LoadLocation(tzidString)
	if err != nil {
		return 0, false, fmt.Errorf("invalid TZID: %s", err)
	}

	// parse local time
	result, err := time.ParseInLocation("20060102T150405", slice[1], location)
	if err != nil {
		return 0, false, err
	}

	return result.Unix(), false, nil
}

// Format a UTC unix timestamp as an iCalendar UTC date-time value.
func UnixToIcalDatetime(unixTime int64) string {
	return time.Unix(unixTime, 0).UTC().Format("20060102T150405Z")
}

// Parsing DURATION values of the `P[n]DT[n]H[n]M[n]S` / `PT...` / `P[n]W`
// form into seconds. Events without a DTEND carry one of these instead.
func IcalDurationToSeconds(rawText string) (int64, error) {
	value := strings.TrimSpace(rawText)
	negative := false
	switch {
	case strings.HasPrefix(value, "-P"):
		negative = true
		value = strings.TrimPrefix(value, "-P")
	case strings.HasPrefix(value, "+P"):
		value = strings.TrimPrefix(value, "+P")
	case strings.HasPrefix(value, "P"):
		value = strings.TrimPrefix(value, "P")
	default:
		return 0, fmt.Errorf("duration must start with P, got %s", rawText)
	}

	var total int64
	var digits strings.Builder
	inTime := false
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
			continue
		case r == 'T':
			inTime = true
			continue
		}

		n, err := strconv.ParseInt(digits.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %s: %w", rawText, err)
		}
		digits.Reset()

		switch {
		case r == 'W':
			total += n * 7 * 86400
		case r == 'D':
			total += n * 86400
		case r == 'H' && inTime:
			total += n * 3600
		case r == 'M' && inTime:
			total += n * 60
		case r == 'S' && inTime:
			total += n
		default:
			return 0, fmt.Errorf("invalid duration designator %q in %s", r, rawText)
		}
	}
	if digits.Len() > 0 {
		return 0, fmt.Errorf("trailing digits in duration %s", rawText)
	}

	if negative {
		total = -total
	}
	return total, nil
}
