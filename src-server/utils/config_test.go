package utils_test

import (
	"testing"
	"time"

	"calsyncd/src-server/utils"
)

func TestNewConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "SYNC_INTERVAL", "SYNC_TIMEOUT", "SYNC_WINDOW"} {
		t.Setenv(key, "")
	}
	config := utils.NewConfig()
	if config.GetPort() != "8080" {
		t.Errorf("unexpected port: %q", config.GetPort())
	}
	if config.GetSyncInterval() != 15*time.Minute {
		t.Errorf("unexpected sync interval: %v", config.GetSyncInterval())
	}
	if config.GetSyncTimeout() != 5*time.Minute {
		t.Errorf("unexpected sync timeout: %v", config.GetSyncTimeout())
	}
	if config.GetSyncWindow() != 8760*time.Hour {
		t.Errorf("unexpected sync window: %v", config.GetSyncWindow())
	}
}

func TestNewConfigSyncWindow(t *testing.T) {
	t.Setenv("SYNC_WINDOW", "72h")
	config := utils.NewConfig()
	if config.GetSyncWindow() != 72*time.Hour {
		t.Errorf("unexpected sync window: %v", config.GetSyncWindow())
	}
}
