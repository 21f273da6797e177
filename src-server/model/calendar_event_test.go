package model_test

import (
	"testing"

	"calsyncd/src-server/model"
)

func TestCalendarEventChangedFrom(t *testing.T) {
	base := func() *model.CalendarEvent {
		return &model.CalendarEvent{
			ID:         "row-1",
			FeedID:     "feed-1",
			ExternalID: "ev-1",
			Title:      "standup",
			StartDate:  1000,
			EndDate:    2000,
			Status:     "confirmed",
			CreatedAt:  1,
			UpdatedAt:  2,
		}
	}

	// case: identical remote content compares equal, local bookkeeping
	// fields don't count
	other := base()
	other.ID = "row-2"
	other.CreatedAt = 99
	other.UpdatedAt = 99
	if base().ChangedFrom(other) {
		t.Error("rows with equal remote content must not count as changed")
	}

	// case: any remote-sourced field flips the comparison
	retitled := base()
	retitled.Title = "standup (renamed)"
	if !retitled.ChangedFrom(base()) {
		t.Error("a title change must count as changed")
	}
	moved := base()
	moved.StartDate = 1500
	if !moved.ChangedFrom(base()) {
		t.Error("a start date change must count as changed")
	}
	bumped := base()
	bumped.Sequence = 3
	if !bumped.ChangedFrom(base()) {
		t.Error("a sequence bump must count as changed")
	}
}
