package recur

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xyedo/rrule"

	"calsyncd/src-server/syncer"
)

// Deterministic external id for a synthetic occurrence row: the same master
// and occurrence time always produce the same id, so re-expanding a window
// updates rows instead of duplicating them.
func InstanceExternalID(masterExternalID string, occurrence time.Time) string {
	return fmt.Sprintf("%s::%d", masterExternalID, occurrence.UTC().Unix())
}

// Expand a recurring master into its concrete occurrences inside the window.
// Every occurrence keeps the master's duration and descriptive fields; only
// the times and the external id differ. A master whose rule can't be parsed
// expands to nothing, logged as a warning, so one bad rule never sinks a
// whole sync pass.
func Expand(master *syncer.NormalizedEvent, windowStart, windowEnd time.Time) []syncer.NormalizedEvent {
	if master == nil || master.Kind != syncer.KindMaster || master.RecurrenceRule == "" {
		return nil
	}

	ruleSet, err := buildSet(master.RecurrenceRule, time.Unix(master.StartDate, 0).UTC())
	if err != nil {
		slog.Warn("recur.Expand: can't parse recurrence rule, skipping master",
			"externalID", master.ExternalID, "rrule", master.RecurrenceRule, "error", err)
		return nil
	}

	duration := master.EndDate - master.StartDate
	occurrences := ruleSet.Between(windowStart.UTC(), windowEnd.UTC(), true)
	instances := make([]syncer.NormalizedEvent, 0, len(occurrences))
	for _, occurrence := range occurrences {
		instance := *master
		instance.Kind = syncer.KindInstance
		instance.ExternalID = InstanceExternalID(master.ExternalID, occurrence)
		instance.RecurringExternalID = master.ExternalID
		instance.RecurrenceRule = ""
		instance.StartDate = occurrence.UTC().Unix()
		instance.EndDate = instance.StartDate + duration
		instance.Attendees = append([]string(nil), master.Attendees...)
		instances = append(instances, instance)
	}
	return instances
}

func buildSet(rawRRule string, dtStart time.Time) (*rrule.Set, error) {
	var sb strings.Builder
	sb.WriteString("DTSTART:" + dtStart.Format("20060102T150405Z") + "\n")
	sb.WriteString("RRULE:" + strings.TrimPrefix(strings.TrimSpace(rawRRule), "RRULE:"))
	return rrule.StrToRRuleSet(sb.String())
}
