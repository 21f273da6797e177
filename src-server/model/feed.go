package model

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"calsyncd/src-server/utils"
)

const (
	ProviderCalDAV = "CALDAV"
	ProviderGraph  = "GRAPH"
)

// A remote calendar the app mirrors into the local store. Credentials are
// opaque here; they are only handed to the provider transport.
type Feed struct {
	bun.BaseModel `bun:"table:feeds"`

	ID       string `bun:"id,pk,notnull"`
	Name     string `bun:"name,notnull"`
	Provider string `bun:"provider,notnull"` // CALDAV or GRAPH

	// CalDAV: the calendar collection URL; Graph: the remote calendar id
	RemotePath string `bun:"remote_path,notnull"`

	// opaque provider delta token; blank for providers without one
	Cursor       string `bun:"cursor"`
	LastSyncedAt int64  `bun:"last_synced_at"`

	// basic-auth pair for CalDAV
	Username string `bun:"username"`
	Password string `bun:"password"`
	// bearer token for Graph
	Token string `bun:"token"`
}

func (f *Feed) Upsert(ctx context.Context, db bun.IDB) error {
	f.Name = utils.CleanupString(f.Name)
	switch {
	case f.ID == "":
		return fmt.Errorf("(*Feed).Upsert: feed id is blank")
	case f.Name == "":
		return fmt.Errorf("(*Feed).Upsert: feed name is blank")
	case f.Provider != ProviderCalDAV && f.Provider != ProviderGraph:
		return fmt.Errorf("(*Feed).Upsert: unknown provider %q", f.Provider)
	case f.RemotePath == "":
		return fmt.Errorf("(*Feed).Upsert: remote path is blank")
	}

	// cursor and last_synced_at are owned by the sync pass; re-seeding a
	// feed must not wipe them
	if _, err := db.NewInsert().
		Model(f).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("provider = EXCLUDED.provider").
		Set("remote_path = EXCLUDED.remote_path").
		Set("username = EXCLUDED.username").
		Set("password = EXCLUDED.password").
		Set("token = EXCLUDED.token").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Feed).Upsert: can't upsert feed: %w", err)
	}

	return nil
}
