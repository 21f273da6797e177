package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"calsyncd/src-server/model"
	"calsyncd/src-server/syncer"
	"calsyncd/src-server/utils"
)

const (
	WORKER_COUNT = 4
)

// FeedSync runs a sync pass over every registered feed on the configured
// interval, fanning the feeds out over a small worker pool. It returns when
// the app starts shutting down.
func FeedSync(as *utils.AppState, reconciler *syncer.Reconciler, store *model.Store) {
	gracefulShutdownChan := as.CreateGracefulShutdownChan()
	ticker := time.NewTicker(as.Config.GetSyncInterval())
	defer ticker.Stop()

	for {
		feedModels, err := store.ListFeeds(context.Background())
		switch {
		case err != nil:
			slog.Error("FeedSync: can't list feeds", "error", err)
		case len(feedModels) == 0:
			slog.Debug("FeedSync: no feeds registered, nothing to do")
		default:
			syncAll(as, reconciler, feedModels)
		}

		select {
		case <-*gracefulShutdownChan:
			slog.Debug("FeedSync: shutting down")
			return
		case <-ticker.C:
		}
	}
}

func syncAll(as *utils.AppState, reconciler *syncer.Reconciler, feedModels []model.Feed) {
	jobs := make(chan *model.Feed, len(feedModels))
	var wg sync.WaitGroup

	for range WORKER_COUNT {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for feedModel := range jobs {
				syncOne(as, reconciler, feedModel)
			}
		}()
	}

	for i := range feedModels {
		jobs <- &feedModels[i]
	}
	close(jobs)
	wg.Wait()
}

func syncOne(as *utils.AppState, reconciler *syncer.Reconciler, feedModel *model.Feed) {
	ctx, cancel := context.WithTimeout(context.Background(), as.Config.GetSyncTimeout())
	defer cancel()

	startTimer := time.Now()
	result, err := reconciler.Sync(ctx, feedModel)
	switch {
	case errors.Is(err, syncer.ErrSyncInProgress):
		slog.Debug("FeedSync: pass already running, skipping", "feedID", feedModel.ID)
		return
	case errors.Is(err, syncer.ErrAuth):
		slog.Error("FeedSync: provider rejected the feed's credentials, check them", "feedID", feedModel.ID, "error", err)
		return
	case err != nil:
		slog.Error("FeedSync: pass failed, will retry next interval", "feedID", feedModel.ID, "error", err)
		return
	}
	as.MetricChans.SyncPass <- float64(time.Since(startTimer).Microseconds())
	if len(result.Added)+len(result.Updated)+len(result.DeletedIDs) > 0 {
		as.MetricChans.DatabaseWrite <- float64(time.Since(startTimer).Microseconds())
	}

	slog.Debug("FeedSync: pass done", "feedID", feedModel.ID,
		"added", len(result.Added), "updated", len(result.Updated),
		"deleted", len(result.DeletedIDs), "skipped", result.Skipped)
}
