package route

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"calsyncd/src-server/model"
	"calsyncd/src-server/syncer"
	"calsyncd/src-server/utils"
)

type syncResponse struct {
	FeedID  string `json:"feedID"`
	Added   int    `json:"added"`
	Updated int    `json:"updated"`
	Deleted int    `json:"deleted"`
	Skipped int    `json:"skipped"`
}

// Trigger one sync pass for a feed, outside the scheduler's cadence.
func Sync(muxer *http.ServeMux, as *utils.AppState, reconciler *syncer.Reconciler, store *model.Store) {
	muxer.HandleFunc("POST /sync/{feed_id}", func(w http.ResponseWriter, r *http.Request) {
		feedID := r.PathValue("feed_id")

		feedModel, err := store.FindFeed(r.Context(), feedID)
		switch {
		case err != nil:
			http.Error(w, "Can't load feed", http.StatusInternalServerError)
			slog.Error("can't load feed", "where", "route/sync.go", "feedID", feedID, "error", err)
			return
		case feedModel == nil:
			http.Error(w, "Feed not found", http.StatusNotFound)
			return
		}

		startTimer := time.Now()
		result, err := reconciler.Sync(r.Context(), feedModel)
		switch {
		case errors.Is(err, syncer.ErrSyncInProgress):
			http.Error(w, "A sync pass for this feed is already running", http.StatusConflict)
			return
		case errors.Is(err, syncer.ErrAuth):
			http.Error(w, "Provider rejected the feed's credentials", http.StatusBadGateway)
			slog.Error("provider rejected credentials", "where", "route/sync.go", "feedID", feedID, "error", err)
			return
		case err != nil:
			http.Error(w, "Sync failed", http.StatusBadGateway)
			slog.Error("sync failed", "where", "route/sync.go", "feedID", feedID, "error", err)
			return
		}
		as.MetricChans.SyncPass <- float64(time.Since(startTimer).Microseconds())

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(syncResponse{
			FeedID:  feedID,
			Added:   len(result.Added),
			Updated: len(result.Updated),
			Deleted: len(result.DeletedIDs),
			Skipped: result.Skipped,
		}); err != nil {
			slog.Warn("can't write to response", "where", "route/sync.go", "error", err)
		}
	})
}
