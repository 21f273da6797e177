package utils_test

import (
	"testing"
	"time"

	"calsyncd/src-server/ical/utils"
)

func TestIcalDatetimeToUnix(t *testing.T) {
	// case: UTC date-time
	func() {
		parsed, dateOnly, err := utils.IcalDatetimeToUnix("DTSTART:20250101T090000Z")
		if err != nil {
			t.Error(err)
		}
		if dateOnly {
			t.Error("a timed value must not report date-only")
		}
		if parsed != time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC).Unix() {
			t.Errorf("unexpected timestamp: %d", parsed)
		}
	}()

	// case: date-only value marks an all-day event
	func() {
		parsed, dateOnly, err := utils.IcalDatetimeToUnix("DTSTART;VALUE=DATE:20250110")
		if err != nil {
			t.Error(err)
		}
		if !dateOnly {
			t.Error("a date value must report date-only")
		}
		if parsed != time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC).Unix() {
			t.Errorf("unexpected timestamp: %d", parsed)
		}
	}()

	// case: TZID local time converts to the right instant
	func() {
		parsed, _, err := utils.IcalDatetimeToUnix("DTSTART;TZID=America/New_York:20250101T090000")
		if err != nil {
			t.Error(err)
		}
		location, err := time.LoadLocation("America/New_York")
		if err != nil {
			t.Fatal(err)
		}
		if parsed != time.Date(2025, 1, 1, 9, 0, 0, 0, location).Unix() {
			t.Errorf("unexpected timestamp: %d", parsed)
		}
	}()

	// case: a local time without a TZID is unusable
	func() {
		if _, _, err := utils.IcalDatetimeToUnix("DTSTART:20250101T090000"); err == nil {
			t.Error("expected an error for a zoneless local time")
		}
	}()
}

func TestUnixToIcalDatetime(t *testing.T) {
	unixTime := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC).Unix()
	if got := utils.UnixToIcalDatetime(unixTime); got != "20250301T103000Z" {
		t.Errorf("unexpected format: %q", got)
	}
}

func TestIcalDurationToSeconds(t *testing.T) {
	cases := map[string]int64{
		"PT30M":      30 * 60,
		"PT2H30M":    2*3600 + 30*60,
		"P1DT12H":    36 * 3600,
		"P2W":        14 * 86400,
		"PT15S":      15,
		"+PT1H":      3600,
		"-PT1H":      -3600,
		"P1DT1H1M1S": 86400 + 3600 + 60 + 1,
	}
	for rawText, want := range cases {
		got, err := utils.IcalDurationToSeconds(rawText)
		if err != nil {
			t.Errorf("%s: %v", rawText, err)
			continue
		}
		if got != want {
			t.Errorf("%s: got %d, want %d", rawText, got, want)
		}
	}

	if _, err := utils.IcalDurationToSeconds("2H"); err == nil {
		t.Error("expected an error for a duration without the P prefix")
	}
}
