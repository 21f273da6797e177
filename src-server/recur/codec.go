// Recurrence rule encoding, decoding and window expansion. Rules live in the
// database as RRULE-style strings; this package converts them to and from a
// structured form and turns masters into concrete occurrences.
package recur

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// A structured recurrence rule. Zero values mean "not set"; an Interval of
// 0 or 1 both mean every period.
type Rule struct {
	Freq       string
	Interval   int
	Count      int
	Until      time.Time
	ByMonth    []int
	ByMonthDay []int
	ByDay      []string
	ByWeekNo   []int
	ByYearDay  []int
	BySetPos   []int
	WeekStart  string
}

// Serialize a rule to its canonical string form. The key order is fixed so
// the same rule always encodes to the same string; absent parts are omitted.
// A rule without a frequency can't recur, so it encodes to the empty string.
func Encode(rule *Rule) string {
	if rule == nil || rule.Freq == "" {
		if rule != nil {
			slog.Warn("recur.Encode: rule without FREQ, encoding as empty")
		}
		return ""
	}

	parts := make([]string, 0, 11)
	parts = append(parts, "FREQ="+strings.ToUpper(rule.Freq))
	if rule.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(rule.Interval))
	}
	if rule.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(rule.Count))
	}
	if !rule.Until.IsZero() {
		parts = append(parts, "UNTIL="+rule.Until.UTC().Format("20060102T150405Z"))
	}
	if len(rule.ByMonth) > 0 {
		parts = append(parts, "BYMONTH="+joinInts(rule.ByMonth))
	}
	if len(rule.ByMonthDay) > 0 {
		parts = append(parts, "BYMONTHDAY="+joinInts(rule.ByMonthDay))
	}
	if len(rule.ByDay) > 0 {
		days := make([]string, len(rule.ByDay))
		for i, day := range rule.ByDay {
			days[i] = strings.ToUpper(strings.TrimSpace(day))
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if len(rule.ByWeekNo) > 0 {
		parts = append(parts, "BYWEEKNO="+joinInts(rule.ByWeekNo))
	}
	if len(rule.ByYearDay) > 0 {
		parts = append(parts, "BYYEARDAY="+joinInts(rule.ByYearDay))
	}
	if len(rule.BySetPos) > 0 {
		parts = append(parts, "BYSETPOS="+joinInts(rule.BySetPos))
	}
	if rule.WeekStart != "" {
		parts = append(parts, "WKST="+strings.ToUpper(rule.WeekStart))
	}
	return strings.Join(parts, ";")
}

// Parse an RRULE-style string back into a structured rule. Unknown keys are
// ignored so rules written by other producers still round-trip on the parts
// this codec understands. A string without a usable FREQ decodes to nil.
func Decode(raw string) (*Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	rule := new(Rule)
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("recur.Decode: malformed part %q", pair)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		var err error
		switch key {
		case "FREQ":
			rule.Freq = strings.ToUpper(value)
		case "INTERVAL":
			rule.Interval, err = strconv.Atoi(value)
		case "COUNT":
			rule.Count, err = strconv.Atoi(value)
		case "UNTIL":
			rule.Until, err = parseUntil(value)
		case "BYMONTH":
			rule.ByMonth, err = splitInts(value)
		case "BYMONTHDAY":
			rule.ByMonthDay, err = splitInts(value)
		case "BYDAY":
			for _, day := range strings.Split(value, ",") {
				rule.ByDay = append(rule.ByDay, strings.ToUpper(strings.TrimSpace(day)))
			}
		case "BYWEEKNO":
			rule.ByWeekNo, err = splitInts(value)
		case "BYYEARDAY":
			rule.ByYearDay, err = splitInts(value)
		case "BYSETPOS":
			rule.BySetPos, err = splitInts(value)
		case "WKST":
			rule.WeekStart = strings.ToUpper(value)
		default:
			// not a part this codec knows; keep going
		}
		if err != nil {
			return nil, fmt.Errorf("recur.Decode: bad value for %s: %w", key, err)
		}
	}

	if rule.Freq == "" {
		return nil, nil
	}
	return rule, nil
}

func parseUntil(value string) (time.Time, error) {
	switch len(value) {
	case 8:
		return time.ParseInLocation("20060102", value, time.UTC)
	case 16:
		return time.Parse("20060102T150405Z", value)
	default:
		return time.Time{}, fmt.Errorf("unrecognized UNTIL datetime %q", value)
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = strconv.Itoa(value)
	}
	return strings.Join(parts, ",")
}

func splitInts(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		parsed, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		values = append(values, parsed)
	}
	return values, nil
}
