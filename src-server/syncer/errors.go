package syncer

import "errors"

var (
	// the provider rejected the feed's credentials; retrying without
	// re-authentication is pointless
	ErrAuth = errors.New("provider rejected credentials")

	// a sync pass for this feed is already running; concurrent passes on
	// one feed would race on upserts and deletes
	ErrSyncInProgress = errors.New("sync already in progress for this feed")

	// the feed names a provider no adapter is registered for
	ErrUnknownProvider = errors.New("no adapter registered for provider")
)
