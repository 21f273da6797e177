package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calsyncd/src-server/caldav"
	"calsyncd/src-server/graph"
	"calsyncd/src-server/metric"
	"calsyncd/src-server/model"
	"calsyncd/src-server/route"
	"calsyncd/src-server/scheduler"
	"calsyncd/src-server/syncer"
	"calsyncd/src-server/utils"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

// Seed the feed registry from the optional FEEDS_FILE JSON array. Feeds are
// upserted by id, so editing the file and restarting updates them in place.
func seedFeeds(as *utils.AppState) error {
	feedsFile := os.Getenv("FEEDS_FILE")
	if feedsFile == "" {
		return nil
	}
	rawContent, err := os.ReadFile(feedsFile)
	if err != nil {
		return err
	}
	feedModels := make([]model.Feed, 0)
	if err := json.Unmarshal(rawContent, &feedModels); err != nil {
		return err
	}
	for i := range feedModels {
		if err := feedModels[i].Upsert(context.Background(), as.BunDB); err != nil {
			return err
		}
	}
	slog.Info("feed registry seeded", "file", feedsFile, "feeds", len(feedModels))
	return nil
}

func main() {
	as := utils.NewAppState()

	if err := model.CreateSchema(as.BunDB); err != nil {
		slog.Error("can't create database schema", "error", err)
		os.Exit(1)
	}
	if err := seedFeeds(as); err != nil {
		slog.Error("can't seed feed registry", "error", err)
		os.Exit(1)
	}

	store := model.NewStore(as.BunDB)
	reconciler := syncer.NewReconciler(store, map[string]syncer.ProviderAdapter{
		model.ProviderCalDAV: caldav.NewAdapter(nil),
		model.ProviderGraph:  graph.NewAdapter(nil),
	})
	reconciler.WindowBack = as.Config.GetSyncWindow()
	reconciler.WindowForward = as.Config.GetSyncWindow()

	go metric.Init(as)
	go scheduler.FeedSync(as, reconciler, store)

	// http server
	go func() {
		muxer := http.NewServeMux()
		muxer.Handle("GET /metrics", promhttp.Handler())
		route.Sync(muxer, as, reconciler, store)
		route.Feeds(muxer, as, store)
		if err := http.ListenAndServe(":"+as.Config.GetPort(), muxer); err != nil {
			slog.Error("cannot start HTTP server", "error", err)
			as.AppCloseSignalChan <- syscall.SIGTERM
		}
	}()

	slog.Info("app is now running, press Ctrl+C to exit")

	signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-as.AppCloseSignalChan
	as.GracefulShutdown()

	slog.Info("Gracefully shutting down...")
}
