package route

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"calsyncd/src-server/model"
	"calsyncd/src-server/utils"
)

type feedResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Provider     string `json:"provider"`
	LastSyncedAt string `json:"lastSyncedAt,omitempty"`
	EventCount   int    `json:"eventCount"`
}

// List the registered feeds with their last-sync stamp and row count.
func Feeds(muxer *http.ServeMux, as *utils.AppState, store *model.Store) {
	muxer.HandleFunc("GET /feeds", func(w http.ResponseWriter, r *http.Request) {
		startTimer := time.Now()
		feedModels, err := store.ListFeeds(r.Context())
		if err != nil {
			http.Error(w, "Can't list feeds", http.StatusInternalServerError)
			slog.Error("can't list feeds", "where", "route/feeds.go", "error", err)
			return
		}

		response := make([]feedResponse, 0, len(feedModels))
		for _, feedModel := range feedModels {
			eventCount, err := store.CountEvents(r.Context(), feedModel.ID)
			if err != nil {
				http.Error(w, "Can't count feed events", http.StatusInternalServerError)
				slog.Error("can't count feed events", "where", "route/feeds.go", "feedID", feedModel.ID, "error", err)
				return
			}
			entry := feedResponse{
				ID:         feedModel.ID,
				Name:       feedModel.Name,
				Provider:   feedModel.Provider,
				EventCount: eventCount,
			}
			if feedModel.LastSyncedAt > 0 {
				entry.LastSyncedAt = time.Unix(feedModel.LastSyncedAt, 0).
					In(as.Config.GetLocation()).
					Format(time.RFC3339)
			}
			response = append(response, entry)
		}
		as.MetricChans.DatabaseRead <- float64(time.Since(startTimer).Microseconds())

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			slog.Warn("can't write to response", "where", "route/feeds.go", "error", err)
		}
	})
}
