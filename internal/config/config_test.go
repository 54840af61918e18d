package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir string, cfg Config) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func validConfig() Config {
	return Config{
		DatabaseURL:    "postgres://localhost/btcstrategylab",
		PriceTablePath: "testdata/history.csv",
		Server:         ServerConfig{Port: 8080},
		Sandbox:        SandboxConfig{ExecutionTimeoutSeconds: 5},
		Batch:          BatchConfig{Concurrency: 4},
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), validConfig())
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/btcstrategylab" {
		t.Errorf("unexpected database_url: %q", cfg.DatabaseURL)
	}
}

func TestLoadRejectsMissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	path := writeConfigFile(t, t.TempDir(), cfg)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing database_url")
	}
}

func TestLoadRejectsNonPositiveBatchConcurrency(t *testing.T) {
	cfg := validConfig()
	cfg.Batch.Concurrency = 0
	path := writeConfigFile(t, t.TempDir(), cfg)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for non-positive batch.concurrency")
	}
}

func TestLoadRejectsEnabledExposureLimitWithoutThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Guardrail.ExposureLimit = ExposureLimitConfig{Enabled: true}
	path := writeConfigFile(t, t.TempDir(), cfg)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for enabled exposure limit with zero threshold")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), validConfig())
	t.Setenv("BTCLAB_DATABASE_URL", "postgres://override/db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://override/db" {
		t.Errorf("expected env override to apply, got %q", cfg.DatabaseURL)
	}
}
