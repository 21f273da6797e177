package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"calsyncd/src-server/model"
	"calsyncd/src-server/recur"
	"calsyncd/src-server/syncer"
)

// Adapter syncs a Graph-style calendar. The first pass, with no cursor,
// walks the whole event list plus each master's instances and lets the
// reconciler delete by absence; every later pass replays only the changes
// behind the feed's delta link.
type Adapter struct {
	client *Client
}

func NewAdapter(client *Client) *Adapter {
	if client == nil {
		client = NewClient(nil)
	}
	return &Adapter{client: client}
}

func (a *Adapter) Fetch(ctx context.Context, feed *model.Feed, windowStart, windowEnd time.Time) (*syncer.FetchResult, error) {
	if feed.Cursor == "" {
		return a.fetchFull(ctx, feed, windowStart, windowEnd)
	}
	return a.fetchDelta(ctx, feed)
}

func (a *Adapter) fetchFull(ctx context.Context, feed *model.Feed, windowStart, windowEnd time.Time) (*syncer.FetchResult, error) {
	remoteEvents, err := a.client.ListEvents(ctx, feed.RemotePath, feed.Token)
	if err != nil {
		return nil, fmt.Errorf("graph.Adapter.Fetch: %w", err)
	}

	result := &syncer.FetchResult{
		Events:     make([]syncer.NormalizedEvent, 0, len(remoteEvents)),
		FullWindow: true,
	}

	for i := range remoteEvents {
		remoteEvent := &remoteEvents[i]
		normalized, err := normalize(remoteEvent)
		if err != nil {
			slog.Warn("graph.Adapter.Fetch: skipping malformed event",
				"feedID", feed.ID, "externalID", remoteEvent.ID, "error", err)
			result.Skipped++
			continue
		}
		// the list endpoint reports masters and standalones only; skip any
		// occurrence rows it happens to inline, instances come from the
		// per-master endpoint below
		if normalized.Kind == syncer.KindInstance || normalized.Kind == syncer.KindException {
			continue
		}
		result.Events = append(result.Events, *normalized)

		if normalized.Kind != syncer.KindMaster {
			continue
		}
		instances, err := a.client.ListInstances(ctx, feed.RemotePath, feed.Token, remoteEvent.ID, windowStart, windowEnd)
		if err != nil {
			return nil, fmt.Errorf("graph.Adapter.Fetch: %w", err)
		}
		for j := range instances {
			instance, err := normalize(&instances[j])
			if err != nil {
				slog.Warn("graph.Adapter.Fetch: skipping malformed instance",
					"feedID", feed.ID, "externalID", instances[j].ID, "error", err)
				result.Skipped++
				continue
			}
			if instance.RecurringExternalID == "" {
				instance.RecurringExternalID = remoteEvent.ID
			}
			result.Events = append(result.Events, *instance)
		}
	}

	// seed the cursor so later passes can run as deltas; a failure here is
	// survivable, the next pass just does another full fetch
	deltaLink, err := a.client.LatestDeltaLink(ctx, feed.RemotePath, feed.Token)
	if err != nil {
		slog.Warn("graph.Adapter.Fetch: can't seed delta cursor, next pass will be full",
			"feedID", feed.ID, "error", err)
	}
	result.NextCursor = deltaLink
	return result, nil
}

func (a *Adapter) fetchDelta(ctx context.Context, feed *model.Feed) (*syncer.FetchResult, error) {
	remoteEvents, nextDeltaLink, err := a.client.ListDelta(ctx, feed.Cursor, feed.Token)
	if err != nil {
		return nil, fmt.Errorf("graph.Adapter.Fetch: %w", err)
	}

	result := &syncer.FetchResult{
		Events:             make([]syncer.NormalizedEvent, 0, len(remoteEvents)),
		DeletedExternalIDs: make([]string, 0),
		FullWindow:         false,
		NextCursor:         nextDeltaLink,
	}
	if nextDeltaLink == "" {
		// never let the cursor regress to empty, that would force a full
		// re-fetch and delete-by-absence on a partial event set
		result.NextCursor = feed.Cursor
	}

	for i := range remoteEvents {
		remoteEvent := &remoteEvents[i]
		if remoteEvent.Removed != nil {
			result.DeletedExternalIDs = append(result.DeletedExternalIDs, remoteEvent.ID)
			continue
		}
		normalized, err := normalize(remoteEvent)
		if err != nil {
			slog.Warn("graph.Adapter.Fetch: skipping malformed event",
				"feedID", feed.ID, "externalID", remoteEvent.ID, "error", err)
			result.Skipped++
			continue
		}
		result.Events = append(result.Events, *normalized)
	}
	return result, nil
}

func normalize(remoteEvent *graphEvent) (*syncer.NormalizedEvent, error) {
	if remoteEvent.ID == "" {
		return nil, fmt.Errorf("event has no id")
	}

	startDate, err := parseGraphTime(remoteEvent.Start)
	if err != nil {
		return nil, fmt.Errorf("bad start time: %w", err)
	}
	endDate, err := parseGraphTime(remoteEvent.End)
	if err != nil {
		return nil, fmt.Errorf("bad end time: %w", err)
	}

	var kind syncer.EventKind
	switch remoteEvent.Type {
	case "seriesMaster":
		kind = syncer.KindMaster
	case "occurrence":
		kind = syncer.KindInstance
	case "exception":
		kind = syncer.KindException
	case "singleInstance", "":
		kind = syncer.KindStandalone
	default:
		return nil, fmt.Errorf("unrecognized event type %q", remoteEvent.Type)
	}

	rawRRule := ""
	if kind == syncer.KindMaster {
		rule, err := translateRecurrence(remoteEvent.Recurrence)
		if err != nil {
			return nil, fmt.Errorf("bad recurrence: %w", err)
		}
		rawRRule = recur.Encode(rule)
		if rawRRule == "" {
			// a master without a usable pattern behaves as a one-off
			kind = syncer.KindStandalone
		}
	}

	attendees := make([]string, 0, len(remoteEvent.Attendees))
	for _, attendee := range remoteEvent.Attendees {
		attendees = append(attendees, attendee.EmailAddress.Address)
	}

	return &syncer.NormalizedEvent{
		ExternalID:          remoteEvent.ID,
		RecurringExternalID: remoteEvent.SeriesMasterID,
		Kind:                kind,
		Title:               remoteEvent.Subject,
		Description:         remoteEvent.BodyPreview,
		Location:            remoteEvent.Location.DisplayName,
		StartDate:           startDate,
		EndDate:             endDate,
		AllDay:              remoteEvent.IsAllDay,
		RecurrenceRule:      rawRRule,
		Status:              remoteEvent.ShowAs,
		Organizer:           remoteEvent.Organizer.EmailAddress.Address,
		Attendees:           attendees,
	}, nil
}

func parseGraphTime(value graphDateTime) (int64, error) {
	if value.DateTime == "" {
		return 0, fmt.Errorf("empty dateTime")
	}
	// the API pads sub-second digits; the layout below ignores them
	raw, _, _ := strings.Cut(value.DateTime, ".")
	location := time.UTC
	if value.TimeZone != "" && value.TimeZone != "UTC" {
		loaded, err := time.LoadLocation(value.TimeZone)
		if err != nil {
			return 0, fmt.Errorf("unrecognized time zone %q: %w", value.TimeZone, err)
		}
		location = loaded
	}
	parsed, err := time.ParseInLocation("2006-01-02T15:04:05", raw, location)
	if err != nil {
		return 0, err
	}
	return parsed.Unix(), nil
}

var graphDayAbbrev = map[string]string{
	"monday":    "MO",
	"tuesday":   "TU",
	"wednesday": "WE",
	"thursday":  "TH",
	"friday":    "FR",
	"saturday":  "SA",
	"sunday":    "SU",
}

var graphIndexOrdinal = map[string]int{
	"first":  1,
	"second": 2,
	"third":  3,
	"fourth": 4,
	"last":   -1,
}

// Map a structured Graph recurrence onto the rule codec's form. Patterns the
// codec can't express come back as errors so the caller can skip the event
// instead of storing a rule that lies.
func translateRecurrence(recurrence *graphRecurrence) (*recur.Rule, error) {
	if recurrence == nil {
		return nil, nil
	}

	rule := &recur.Rule{Interval: recurrence.Pattern.Interval}

	days := make([]string, 0, len(recurrence.Pattern.DaysOfWeek))
	for _, day := range recurrence.Pattern.DaysOfWeek {
		abbrev, ok := graphDayAbbrev[strings.ToLower(day)]
		if !ok {
			return nil, fmt.Errorf("unrecognized day of week %q", day)
		}
		days = append(days, abbrev)
	}

	switch recurrence.Pattern.Type {
	case "daily":
		rule.Freq = "DAILY"
	case "weekly":
		rule.Freq = "WEEKLY"
		rule.ByDay = days
	case "absoluteMonthly":
		rule.Freq = "MONTHLY"
		rule.ByMonthDay = []int{recurrence.Pattern.DayOfMonth}
	case "relativeMonthly":
		rule.Freq = "MONTHLY"
		rule.ByDay = days
		if ordinal, ok := graphIndexOrdinal[strings.ToLower(recurrence.Pattern.Index)]; ok {
			rule.BySetPos = []int{ordinal}
		}
	case "absoluteYearly":
		rule.Freq = "YEARLY"
		rule.ByMonth = []int{recurrence.Pattern.Month}
		rule.ByMonthDay = []int{recurrence.Pattern.DayOfMonth}
	case "relativeYearly":
		rule.Freq = "YEARLY"
		rule.ByMonth = []int{recurrence.Pattern.Month}
		rule.ByDay = days
		if ordinal, ok := graphIndexOrdinal[strings.ToLower(recurrence.Pattern.Index)]; ok {
			rule.BySetPos = []int{ordinal}
		}
	default:
		return nil, fmt.Errorf("unrecognized pattern type %q", recurrence.Pattern.Type)
	}

	if abbrev, ok := graphDayAbbrev[strings.ToLower(recurrence.Pattern.FirstDayOfWeek)]; ok {
		rule.WeekStart = abbrev
	}

	switch recurrence.Range.Type {
	case "endDate":
		until, err := time.Parse("2006-01-02", recurrence.Range.EndDate)
		if err != nil {
			return nil, fmt.Errorf("bad range end date: %w", err)
		}
		rule.Until = until.Add(24*time.Hour - time.Second)
	case "numbered":
		rule.Count = recurrence.Range.NumberOfOccurrences
	case "noEnd", "":
		// unbounded
	default:
		return nil, fmt.Errorf("unrecognized range type %q", recurrence.Range.Type)
	}
	return rule, nil
}
