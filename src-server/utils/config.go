package utils

import (
	"log/slog"
	"os"
	"time"
)

type Config struct {
	port   string
	dbPath string

	syncInterval time.Duration
	syncTimeout  time.Duration
	syncWindow   time.Duration

	location *time.Location
}

func NewConfig() *Config {
	return &Config{
		port: func() string {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			slog.Debug("env", "PORT", port)
			return port
		}(),

		dbPath: func() string {
			dbPath := os.Getenv("DB_PATH")
			if dbPath == "" {
				dbPath = "./sqlite.db"
			}
			slog.Debug("env", "DB_PATH", dbPath)
			return dbPath
		}(),

		syncInterval: func() time.Duration {
			syncInterval := os.Getenv("SYNC_INTERVAL")
			if syncInterval == "" {
				syncInterval = "15m"
			}
			duration, err := time.ParseDuration(syncInterval)
			if err != nil {
				slog.Error("invalid SYNC_INTERVAL", "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "SYNC_INTERVAL", syncInterval, "duration", duration)
			return duration
		}(),
		syncTimeout: func() time.Duration {
			syncTimeout := os.Getenv("SYNC_TIMEOUT")
			if syncTimeout == "" {
				syncTimeout = "5m"
			}
			duration, err := time.ParseDuration(syncTimeout)
			if err != nil {
				slog.Error("invalid SYNC_TIMEOUT", "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "SYNC_TIMEOUT", syncTimeout, "duration", duration)
			return duration
		}(),
		syncWindow: func() time.Duration {
			syncWindow := os.Getenv("SYNC_WINDOW")
			if syncWindow == "" {
				syncWindow = "8760h"
			}
			duration, err := time.ParseDuration(syncWindow)
			if err != nil {
				slog.Error("invalid SYNC_WINDOW", "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "SYNC_WINDOW", syncWindow, "duration", duration)
			return duration
		}(),

		location: func() *time.Location {
			timezoneStr := os.Getenv("TIMEZONE")
			var loc *time.Location
			var err error
			switch timezoneStr {
			case "":
				slog.Warn("TIMEZONE is not set, using local timezone", "timezone", time.Local)
				loc = time.Local
			case "UTC":
				loc = time.UTC
			default:
				loc, err = time.LoadLocation(timezoneStr)
				if err != nil {
					slog.Error("invalid timezone", "timezone", timezoneStr, "error", err)
					os.Exit(1)
				}
			}
			slog.Debug("env", "TIMEZONE", timezoneStr)
			return loc
		}(),
	}
}

// Get PORT env, default to 8080
func (c *Config) GetPort() string {
	return c.port
}

// Get DB_PATH env, default to ./sqlite.db
func (c *Config) GetDBPath() string {
	return c.dbPath
}

// Get SYNC_INTERVAL env, default to 15m
func (c *Config) GetSyncInterval() time.Duration {
	return c.syncInterval
}

// Get SYNC_TIMEOUT env, default to 5m
func (c *Config) GetSyncTimeout() time.Duration {
	return c.syncTimeout
}

// Get SYNC_WINDOW env, default to 8760h (one year each side of now)
func (c *Config) GetSyncWindow() time.Duration {
	return c.syncWindow
}

// Get TIMEZONE env
func (c *Config) GetLocation() *time.Location {
	return c.location
}

func (c *Config) GetMetricCollectionInterval() time.Duration {
	return time.Minute
}
