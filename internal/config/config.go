// Package config provides application-wide configuration management.
// All configuration is loaded from files and environment variables.
// No configuration is hardcoded in the engine, sandbox, or ledger.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all system configuration. Loaded once at startup and
// passed as read-only to all components.
type Config struct {
	// DatabaseURL is the Postgres connection string used by
	// internal/runstore and internal/progress.
	DatabaseURL string `json:"database_url"`

	// PriceTablePath points to the CSV OHLCV history internal/pricetable
	// loads at startup.
	PriceTablePath string `json:"price_table_path"`

	// Server configures the HTTP+websocket API.
	Server ServerConfig `json:"server"`

	// Sandbox configures the strategy execution harness.
	Sandbox SandboxConfig `json:"sandbox"`

	// Guardrail configures the outbound notifier and optional exposure
	// limiter.
	Guardrail GuardrailConfig `json:"guardrail"`

	// Batch configures internal/backtest.BatchRunner.
	Batch BatchConfig `json:"batch"`
}

// ServerConfig holds settings for cmd/dashboard's HTTP+websocket server.
type ServerConfig struct {
	Port int `json:"port"`
}

// SandboxConfig holds settings for internal/sandbox.
type SandboxConfig struct {
	// ExecutionTimeoutSeconds bounds how long a single run(df, holdings)
	// invocation may take before the caller abandons the run. The
	// sandbox itself has no timeout primitive (§A.5). The value is
	// validated and reloaded here, but no caller in this repository
	// applies it: Engine.Run, BatchRunner and runqueue run strategies
	// without a deadline.
	ExecutionTimeoutSeconds int `json:"execution_timeout_seconds"`
}

// GuardrailConfig holds settings for internal/guardrail.
type GuardrailConfig struct {
	// NotifyURL is the orchestrator endpoint internal/guardrail.Notifier
	// posts {ok, result, error} to after each run. Empty disables it.
	NotifyURL string `json:"notify_url"`

	// ExposureLimit configures the optional, default-disabled BUY-order
	// exposure guardrail.
	ExposureLimit ExposureLimitConfig `json:"exposure_limit"`
}

// ExposureLimitConfig controls internal/guardrail.ExposureLimiter.
// Enabled defaults to false so that out of the box every §A.8 invariant
// and scenario is governed only by the core ledger/engine behavior.
type ExposureLimitConfig struct {
	Enabled                 bool    `json:"enabled"`
	MaxCapitalDeploymentPct float64 `json:"max_capital_deployment_pct"`
}

// BatchConfig controls internal/backtest.BatchRunner.
type BatchConfig struct {
	Concurrency     int                 `json:"concurrency"`
	CircuitBreaker  CircuitBreakerConfig `json:"circuit_breaker"`
}

// CircuitBreakerConfig configures internal/risk.CircuitBreaker, here
// retargeted from order-placement failures to strategy compile/execution
// failures within a batch run.
type CircuitBreakerConfig struct {
	MaxConsecutiveFailures int `json:"max_consecutive_failures"`
	MaxFailuresPerHour     int `json:"max_failures_per_hour"`
	CooldownMinutes        int `json:"cooldown_minutes"`
}

// Load reads configuration from a JSON file. Environment variables
// override file values where applicable.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", absPath, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse json: %w", err)
	}

	if v := os.Getenv("BTCLAB_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("BTCLAB_PRICE_TABLE_PATH"); v != "" {
		cfg.PriceTablePath = v
	}
	if v := os.Getenv("BTCLAB_NOTIFY_URL"); v != "" {
		cfg.Guardrail.NotifyURL = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are present and
// sane, performing manual field-by-field checks rather than a
// reflection-based validator.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.PriceTablePath == "" {
		return fmt.Errorf("price_table_path is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if c.Sandbox.ExecutionTimeoutSeconds <= 0 {
		return fmt.Errorf("sandbox.execution_timeout_seconds must be positive, got %d", c.Sandbox.ExecutionTimeoutSeconds)
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be positive, got %d", c.Batch.Concurrency)
	}
	if c.Guardrail.ExposureLimit.Enabled {
		if c.Guardrail.ExposureLimit.MaxCapitalDeploymentPct <= 0 || c.Guardrail.ExposureLimit.MaxCapitalDeploymentPct > 100 {
			return fmt.Errorf("guardrail.exposure_limit.max_capital_deployment_pct must be in (0, 100] when enabled, got %f",
				c.Guardrail.ExposureLimit.MaxCapitalDeploymentPct)
		}
	}
	return nil
}
