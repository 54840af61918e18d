package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigWatcherDetectsSandboxChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, validConfig())

	initial, err := Load(path)
	if err != nil {
		t.Fatalf("initial load: %v", err)
	}

	w := NewConfigWatcher(path, initial, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	changed := make(chan *Config, 1)
	w.OnChange(func(old, new *Config) { changed <- new })

	updated := validConfig()
	updated.Sandbox.ExecutionTimeoutSeconds = 30
	// Ensure the mtime actually advances past lastMod.
	time.Sleep(10 * time.Millisecond)
	writeJSON(t, path, updated)

	select {
	case got := <-changed:
		if got.Sandbox.ExecutionTimeoutSeconds != 30 {
			t.Errorf("expected updated timeout 30, got %d", got.Sandbox.ExecutionTimeoutSeconds)
		}
	case <-time.After(7 * time.Second):
		t.Fatal("timed out waiting for config change notification")
	}
}

func TestReloadableConfigChangedIgnoresRestartOnlyFields(t *testing.T) {
	old := validConfig()
	new := validConfig()
	new.DatabaseURL = "postgres://different/db"
	new.PriceTablePath = "different.csv"
	new.Server.Port = 9999

	if reloadableConfigChanged(&old, &new) {
		t.Fatal("expected restart-only field changes to be ignored")
	}
}

func TestReloadableConfigChangedDetectsBatchConcurrency(t *testing.T) {
	old := validConfig()
	new := validConfig()
	new.Batch.Concurrency = old.Batch.Concurrency + 1

	if !reloadableConfigChanged(&old, &new) {
		t.Fatal("expected batch.concurrency change to be detected")
	}
}

func writeJSON(t *testing.T, path string, cfg Config) {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = filepath.Clean(path)
}
