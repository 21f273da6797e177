package recur_test

import (
	"testing"
	"time"

	"calsyncd/src-server/recur"
	"calsyncd/src-server/syncer"
)

func newMaster(rawRRule string, start, end time.Time) *syncer.NormalizedEvent {
	return &syncer.NormalizedEvent{
		ExternalID:     "master-1",
		Kind:           syncer.KindMaster,
		Title:          "standup",
		StartDate:      start.Unix(),
		EndDate:        end.Unix(),
		RecurrenceRule: rawRRule,
	}
}

func TestExpand(t *testing.T) {
	windowStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)

	// case: a daily half-hour meeting expands to one instance per day
	func() {
		start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
		master := newMaster("FREQ=DAILY", start, start.Add(30*time.Minute))
		instances := recur.Expand(master, windowStart, windowEnd)
		if len(instances) != 7 {
			t.Errorf("expected 7 instances, got %d", len(instances))
		}
		for i, instance := range instances {
			if instance.Kind != syncer.KindInstance {
				t.Errorf("instance %d has kind %v", i, instance.Kind)
			}
			if instance.RecurringExternalID != "master-1" {
				t.Errorf("instance %d points at master %q", i, instance.RecurringExternalID)
			}
			if instance.EndDate-instance.StartDate != 30*60 {
				t.Errorf("instance %d lost the master's duration", i)
			}
			if instance.RecurrenceRule != "" {
				t.Errorf("instance %d still carries a recurrence rule", i)
			}
			if instance.Title != "standup" {
				t.Errorf("instance %d lost the master's title", i)
			}
		}
	}()

	// case: COUNT caps the series before the window closes
	func() {
		start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC) // a Monday
		master := newMaster("FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4", start, start.Add(time.Hour))
		instances := recur.Expand(master, windowStart, windowEnd.AddDate(0, 2, 0))
		if len(instances) != 4 {
			t.Errorf("expected 4 instances, got %d", len(instances))
		}
	}()

	// case: the same master and occurrence always get the same external id
	func() {
		start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
		master := newMaster("FREQ=DAILY", start, start.Add(time.Hour))
		first := recur.Expand(master, windowStart, windowEnd)
		second := recur.Expand(master, windowStart, windowEnd)
		if len(first) == 0 || len(first) != len(second) {
			t.Errorf("expansions disagree: %d vs %d", len(first), len(second))
			return
		}
		for i := range first {
			if first[i].ExternalID != second[i].ExternalID {
				t.Errorf("instance %d got different ids: %q vs %q", i, first[i].ExternalID, second[i].ExternalID)
			}
		}
	}()

	// case: occurrences outside the window stay out
	func() {
		start := time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)
		master := newMaster("FREQ=DAILY;COUNT=5", start, start.Add(time.Hour))
		instances := recur.Expand(master, windowStart, windowEnd)
		if len(instances) != 0 {
			t.Errorf("expected no instances, got %d", len(instances))
		}
	}()

	// case: a malformed rule expands to nothing instead of failing the pass
	func() {
		start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
		master := newMaster("FREQ=SOMETIMES", start, start.Add(time.Hour))
		if instances := recur.Expand(master, windowStart, windowEnd); instances != nil {
			t.Errorf("expected nil, got %d instances", len(instances))
		}
	}()

	// case: non-masters never expand
	func() {
		start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
		standalone := newMaster("", start, start.Add(time.Hour))
		standalone.Kind = syncer.KindStandalone
		if instances := recur.Expand(standalone, windowStart, windowEnd); instances != nil {
			t.Errorf("expected nil, got %d instances", len(instances))
		}
	}()
}

func TestInstanceExternalID(t *testing.T) {
	occurrence := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	first := recur.InstanceExternalID("abc", occurrence)
	second := recur.InstanceExternalID("abc", occurrence.In(time.FixedZone("X", 3600)))
	if first != second {
		t.Errorf("id depends on the occurrence's zone: %q vs %q", first, second)
	}
	other := recur.InstanceExternalID("abc", occurrence.Add(time.Hour))
	if first == other {
		t.Error("different occurrences got the same id")
	}
}
