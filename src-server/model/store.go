package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Store is the persistence surface the sync reconciler works against.
// Every operation is scoped to one feed.
type Store struct {
	db bun.IDB
}

func NewStore(db bun.IDB) *Store {
	return &Store{db: db}
}

// Find one event row by its provider-assigned id. Returns nil without an
// error when no row exists.
func (s *Store) FindByExternalID(ctx context.Context, feedID, externalID string) (*CalendarEvent, error) {
	eventModel := new(CalendarEvent)
	err := s.db.NewSelect().
		Model(eventModel).
		Where("feed_id = ?", feedID).
		Where("external_id = ?", externalID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Store.FindByExternalID: %w", err)
	}
	return eventModel, nil
}

// Create-or-replace an event row keyed by (feed, external id). The local row
// id survives replacement so instance rows keep resolving their master.
// Returns whether a new row was created.
//
// The insert path re-checks existence right before writing: another pass
// elsewhere in the system can create the same logical row between our first
// read and the write. Losing that race is normal concurrent behavior, so the
// redundant insert is skipped and logged as informational.
func (s *Store) Upsert(ctx context.Context, eventModel *CalendarEvent) (bool, error) {
	if err := eventModel.validate(); err != nil {
		return false, fmt.Errorf("Store.Upsert: %w", err)
	}

	existing, err := s.FindByExternalID(ctx, eventModel.FeedID, eventModel.ExternalID)
	if err != nil {
		return false, fmt.Errorf("Store.Upsert: %w", err)
	}
	if existing != nil {
		eventModel.ID = existing.ID
		eventModel.CreatedAt = existing.CreatedAt
		eventModel.UpdatedAt = time.Now().UTC().Unix()
		if _, err := s.db.NewUpdate().
			Model(eventModel).
			Where("id = ?", eventModel.ID).
			Exec(ctx); err != nil {
			return false, fmt.Errorf("Store.Upsert: %w", err)
		}
		return false, nil
	}

	if eventModel.ID == "" {
		eventModel.ID = uuid.NewString()
	}
	eventModel.CreatedAt = time.Now().UTC().Unix()

	// double-check read: ON CONFLICT DO NOTHING makes a lost race a no-op
	// instead of a duplicate row
	res, err := s.db.NewInsert().
		Model(eventModel).
		On("CONFLICT (feed_id, external_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("Store.Upsert: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		slog.Info("Store.Upsert: row created concurrently, skipping insert",
			"feedID", eventModel.FeedID, "externalID", eventModel.ExternalID)
		concurrent, err := s.FindByExternalID(ctx, eventModel.FeedID, eventModel.ExternalID)
		if err != nil {
			return false, fmt.Errorf("Store.Upsert: %w", err)
		}
		if concurrent != nil {
			eventModel.ID = concurrent.ID
			eventModel.CreatedAt = concurrent.CreatedAt
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) DeleteByExternalID(ctx context.Context, feedID, externalID string) error {
	if _, err := s.db.NewDelete().
		Model((*CalendarEvent)(nil)).
		Where("feed_id = ?", feedID).
		Where("external_id = ?", externalID).
		Exec(ctx); err != nil {
		return fmt.Errorf("Store.DeleteByExternalID: %w", err)
	}
	return nil
}

// Delete every row of the feed whose external id was not observed in the
// latest full-window fetch. Returns the external ids that were deleted.
func (s *Store) DeleteWhereExternalIDNotIn(ctx context.Context, feedID string, keepIDs []string) ([]string, error) {
	doomed := make([]string, 0)
	query := s.db.NewSelect().
		Model((*CalendarEvent)(nil)).
		Column("external_id").
		Where("feed_id = ?", feedID)
	if len(keepIDs) > 0 {
		query = query.Where("external_id NOT IN (?)", bun.In(keepIDs))
	}
	if err := query.Scan(ctx, &doomed); err != nil {
		return nil, fmt.Errorf("Store.DeleteWhereExternalIDNotIn: %w", err)
	}
	if len(doomed) == 0 {
		return doomed, nil
	}

	if _, err := s.db.NewDelete().
		Model((*CalendarEvent)(nil)).
		Where("feed_id = ?", feedID).
		Where("external_id IN (?)", bun.In(doomed)).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("Store.DeleteWhereExternalIDNotIn: %w", err)
	}
	return doomed, nil
}

func (s *Store) UpdateFeedCursorAndLastSync(ctx context.Context, feedID, cursor string, lastSync int64) error {
	if _, err := s.db.NewUpdate().
		Model((*Feed)(nil)).
		Set("cursor = ?", cursor).
		Set("last_synced_at = ?", lastSync).
		Where("id = ?", feedID).
		Exec(ctx); err != nil {
		return fmt.Errorf("Store.UpdateFeedCursorAndLastSync: %w", err)
	}
	return nil
}

func (s *Store) FindFeed(ctx context.Context, feedID string) (*Feed, error) {
	feedModel := new(Feed)
	err := s.db.NewSelect().
		Model(feedModel).
		Where("id = ?", feedID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Store.FindFeed: %w", err)
	}
	return feedModel, nil
}

func (s *Store) ListFeeds(ctx context.Context) ([]Feed, error) {
	feedModels := make([]Feed, 0)
	if err := s.db.NewSelect().
		Model(&feedModels).
		Order("id").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("Store.ListFeeds: %w", err)
	}
	return feedModels, nil
}

// Count of persisted event rows for a feed; used by the feeds route.
func (s *Store) CountEvents(ctx context.Context, feedID string) (int, error) {
	count, err := s.db.NewSelect().
		Model((*CalendarEvent)(nil)).
		Where("feed_id = ?", feedID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("Store.CountEvents: %w", err)
	}
	return count, nil
}
