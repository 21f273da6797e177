package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"calsyncd/src-server/model"
	"calsyncd/src-server/utils"
)

// The persistence operations the reconciler needs, all scoped to one feed.
// *model.Store is the production implementation.
type EventStore interface {
	FindByExternalID(ctx context.Context, feedID, externalID string) (*model.CalendarEvent, error)
	Upsert(ctx context.Context, eventModel *model.CalendarEvent) (created bool, err error)
	DeleteByExternalID(ctx context.Context, feedID, externalID string) error
	DeleteWhereExternalIDNotIn(ctx context.Context, feedID string, keepIDs []string) ([]string, error)
	UpdateFeedCursorAndLastSync(ctx context.Context, feedID, cursor string, lastSync int64) error
}

// What one reconciliation pass did to the store.
type Result struct {
	Added      []*model.CalendarEvent
	Updated    []*model.CalendarEvent
	DeletedIDs []string
	Skipped    int
}

// Reconciler merges a provider's reported event set into the local store.
// At most one pass per feed runs at a time; all other state is pass-local.
type Reconciler struct {
	store    EventStore
	adapters map[string]ProviderAdapter

	// sync window, fixed per pass around "now"
	WindowBack    time.Duration
	WindowForward time.Duration
	// overridable for tests
	Now func() time.Time

	inFlightMutex sync.Mutex
	inFlight      map[string]struct{}
}

func NewReconciler(store EventStore, adapters map[string]ProviderAdapter) *Reconciler {
	return &Reconciler{
		store:         store,
		adapters:      adapters,
		WindowBack:    365 * 24 * time.Hour,
		WindowForward: 365 * 24 * time.Hour,
		Now:           time.Now,
		inFlight:      make(map[string]struct{}),
	}
}

// Run one sync pass for the feed: fetch the remote event set, merge it into
// the store, apply deletions, then advance the feed's cursor and last-sync
// stamp. A fetch or cursor-persist failure returns an error with the cursor
// untouched, so the next attempt retries the same window. Individually bad
// events are skipped and counted, never fatal.
func (r *Reconciler) Sync(ctx context.Context, feed *model.Feed) (*Result, error) {
	if feed == nil {
		return nil, fmt.Errorf("Reconciler.Sync: feed is nil")
	}
	if err := r.acquire(feed.ID); err != nil {
		return nil, err
	}
	defer r.release(feed.ID)

	adapter, ok := r.adapters[feed.Provider]
	if !ok {
		return nil, fmt.Errorf("Reconciler.Sync: %w: %s", ErrUnknownProvider, feed.Provider)
	}

	now := r.Now().UTC()
	windowStart := now.Add(-r.WindowBack)
	windowEnd := now.Add(r.WindowForward)

	fetchRes, err := adapter.Fetch(ctx, feed, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("Reconciler.Sync: fetch failed for feed %s: %w", feed.ID, err)
	}

	result := &Result{
		Added:      make([]*model.CalendarEvent, 0),
		Updated:    make([]*model.CalendarEvent, 0),
		DeletedIDs: make([]string, 0),
		Skipped:    fetchRes.Skipped,
	}

	// externalID -> local row id, for resolving instance foreign keys;
	// built while processing masters, consulted while processing the rest
	localIDs := make(map[string]string)
	observed := make([]string, 0, len(fetchRes.Events))

	// masters first: instances created in this same pass must be able to
	// resolve their local master row id
	for i := range fetchRes.Events {
		remoteEvent := &fetchRes.Events[i]
		if remoteEvent.Kind != KindMaster && remoteEvent.Kind != KindStandalone {
			continue
		}
		if err := r.upsertOne(ctx, feed, remoteEvent, "", localIDs, &observed, result); err != nil {
			slog.Warn("sync: skipping event", "feedID", feed.ID, "externalID", remoteEvent.ExternalID, "error", err)
			result.Skipped++
		}
	}

	for i := range fetchRes.Events {
		remoteEvent := &fetchRes.Events[i]
		if remoteEvent.Kind != KindInstance && remoteEvent.Kind != KindException {
			continue
		}
		masterLocalID, err := r.resolveMaster(ctx, feed, remoteEvent.RecurringExternalID, localIDs)
		if err != nil {
			// never persist a dangling reference
			slog.Warn("sync: skipping event without a resolvable master",
				"feedID", feed.ID, "externalID", remoteEvent.ExternalID,
				"masterExternalID", remoteEvent.RecurringExternalID, "error", err)
			result.Skipped++
			continue
		}
		if err := r.upsertOne(ctx, feed, remoteEvent, masterLocalID, localIDs, &observed, result); err != nil {
			slog.Warn("sync: skipping event", "feedID", feed.ID, "externalID", remoteEvent.ExternalID, "error", err)
			result.Skipped++
		}
	}

	// deletions: full-window fetches delete by absence, delta fetches only
	// what the provider explicitly reported
	if fetchRes.FullWindow {
		deletedIDs, err := r.store.DeleteWhereExternalIDNotIn(ctx, feed.ID, observed)
		if err != nil {
			return nil, fmt.Errorf("Reconciler.Sync: %w", err)
		}
		result.DeletedIDs = append(result.DeletedIDs, deletedIDs...)
	} else {
		for _, externalID := range fetchRes.DeletedExternalIDs {
			if err := r.store.DeleteByExternalID(ctx, feed.ID, externalID); err != nil {
				slog.Warn("sync: can't delete event", "feedID", feed.ID, "externalID", externalID, "error", err)
				result.Skipped++
				continue
			}
			result.DeletedIDs = append(result.DeletedIDs, externalID)
		}
	}

	// a cancelled pass must not advance the cursor; already-committed
	// upserts are idempotent, the next attempt redoes the same window
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("Reconciler.Sync: pass cancelled before cursor update: %w", err)
	}
	if err := r.store.UpdateFeedCursorAndLastSync(ctx, feed.ID, fetchRes.NextCursor, now.Unix()); err != nil {
		return nil, fmt.Errorf("Reconciler.Sync: %w", err)
	}
	feed.Cursor = fetchRes.NextCursor
	feed.LastSyncedAt = now.Unix()

	slog.Info("sync: pass finished", "feedID", feed.ID,
		"added", len(result.Added), "updated", len(result.Updated),
		"deleted", len(result.DeletedIDs), "skipped", result.Skipped)
	return result, nil
}

// Map one normalized event onto its persisted row: create when unseen by
// external id, rewrite when its remote fields changed, leave untouched
// otherwise.
func (r *Reconciler) upsertOne(
	ctx context.Context,
	feed *model.Feed,
	remoteEvent *NormalizedEvent,
	masterLocalID string,
	localIDs map[string]string,
	observed *[]string,
	result *Result,
) error {
	if err := remoteEvent.Validate(); err != nil {
		return err
	}

	row := &model.CalendarEvent{
		FeedID:         feed.ID,
		ExternalID:     remoteEvent.ExternalID,
		MasterEventID:  masterLocalID,
		IsMaster:       remoteEvent.IsMaster(),
		IsRecurring:    remoteEvent.IsRecurring(),
		Title:          utils.CleanupString(remoteEvent.Title),
		Description:    utils.CleanupString(remoteEvent.Description),
		Location:       utils.CleanupString(remoteEvent.Location),
		Organizer:      remoteEvent.Organizer,
		Attendees:      strings.Join(remoteEvent.Attendees, ", "),
		StartDate:      remoteEvent.StartDate,
		EndDate:        remoteEvent.EndDate,
		AllDay:         remoteEvent.AllDay,
		RecurrenceRule: remoteEvent.RecurrenceRule,
		Sequence:       remoteEvent.Sequence,
		Status:         remoteEvent.Status,
	}

	existing, err := r.store.FindByExternalID(ctx, feed.ID, remoteEvent.ExternalID)
	if err != nil {
		return err
	}

	switch {
	case existing == nil:
		created, err := r.store.Upsert(ctx, row)
		if err != nil {
			return err
		}
		if created {
			result.Added = append(result.Added, row)
		}
	case row.ChangedFrom(existing):
		row.ID = existing.ID
		if _, err := r.store.Upsert(ctx, row); err != nil {
			return err
		}
		result.Updated = append(result.Updated, row)
	default:
		// unchanged; rewriting it would make re-syncs stop being no-ops
		row.ID = existing.ID
	}

	if remoteEvent.Kind == KindMaster {
		localIDs[remoteEvent.ExternalID] = row.ID
	}
	*observed = append(*observed, remoteEvent.ExternalID)
	return nil
}

// Resolve an instance's master external id to its local row id, preferring
// masters upserted earlier in this same pass, falling back to the store for
// delta fetches that don't re-send the master.
func (r *Reconciler) resolveMaster(ctx context.Context, feed *model.Feed, masterExternalID string, localIDs map[string]string) (string, error) {
	if localID, ok := localIDs[masterExternalID]; ok {
		return localID, nil
	}
	masterRow, err := r.store.FindByExternalID(ctx, feed.ID, masterExternalID)
	if err != nil {
		return "", err
	}
	if masterRow == nil {
		return "", fmt.Errorf("master %s not stored", masterExternalID)
	}
	if !masterRow.IsMaster {
		return "", fmt.Errorf("row %s is not a master", masterExternalID)
	}
	localIDs[masterExternalID] = masterRow.ID
	return masterRow.ID, nil
}

func (r *Reconciler) acquire(feedID string) error {
	r.inFlightMutex.Lock()
	defer r.inFlightMutex.Unlock()
	if _, ok := r.inFlight[feedID]; ok {
		return fmt.Errorf("Reconciler.Sync: %w: %s", ErrSyncInProgress, feedID)
	}
	r.inFlight[feedID] = struct{}{}
	return nil
}

func (r *Reconciler) release(feedID string) {
	r.inFlightMutex.Lock()
	defer r.inFlightMutex.Unlock()
	delete(r.inFlight, feedID)
}
