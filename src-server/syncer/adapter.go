package syncer

import (
	"context"
	"time"

	"calsyncd/src-server/model"
)

// What one provider fetch produced.
type FetchResult struct {
	Events []NormalizedEvent

	// external ids the provider explicitly reported as deleted; only
	// populated by delta-capable adapters
	DeletedExternalIDs []string

	// opaque token to resume from next pass; blank when the provider has
	// no delta support
	NextCursor string

	// true when the fetch covered the whole window, so anything stored but
	// not observed is gone on the remote side. Delta fetches set this false
	// and report deletions explicitly instead.
	FullWindow bool

	// malformed remote records the adapter dropped
	Skipped int
}

// ProviderAdapter fetches a feed's remote events for a time window and
// normalizes them. Implementations must skip (and log) individually
// malformed records, and fail the whole fetch only on transport or auth
// errors — wrapped around ErrAuth for the latter so callers can tell the
// two apart.
type ProviderAdapter interface {
	Fetch(ctx context.Context, feed *model.Feed, windowStart, windowEnd time.Time) (*FetchResult, error)
}
