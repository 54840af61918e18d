// Package config - watcher.go provides config file hot-reload support.
//
// The watcher polls the config file for changes (stat-based, every 5
// seconds) and notifies registered callbacks when sandbox/guardrail/batch
// parameters change.
//
// Only sandbox, guardrail, and batch configuration is reloadable.
// Database URL, price table path, and server port require a restart.
package config

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

// ConfigWatcher monitors the config file for changes and invokes
// callbacks when reloadable fields change. It uses stat-based polling
// (no external dependencies like fsnotify required).
type ConfigWatcher struct {
	path     string
	logger   *log.Logger
	mu       sync.RWMutex
	current  *Config
	lastMod  time.Time
	onChange []func(old, new *Config)
	done     chan struct{}
	stopped  bool
}

// NewConfigWatcher creates a watcher for the given config file path.
// initial is the currently loaded config. The watcher does not start
// until Start() is called.
func NewConfigWatcher(path string, initial *Config, logger *log.Logger) *ConfigWatcher {
	if logger == nil {
		logger = log.New(log.Writer(), "", log.LstdFlags)
	}
	return &ConfigWatcher{
		path:    path,
		logger:  logger,
		current: initial,
		done:    make(chan struct{}),
	}
}

// OnChange registers a callback invoked when the config file changes and
// the new config passes validation. Multiple callbacks may be
// registered. Callbacks receive the old and new config values.
func (w *ConfigWatcher) OnChange(fn func(old, new *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins polling the config file for changes. It returns
// immediately; the watcher runs in a background goroutine. Returns an
// error if the initial file stat fails.
func (w *ConfigWatcher) Start() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	w.logger.Printf("[config-watcher] watching %s for changes (poll interval: 5s)", w.path)

	go w.pollLoop()
	return nil
}

// Stop stops the config watcher. Safe to call multiple times.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.done)
		w.logger.Println("[config-watcher] stopped")
	}
}

// Current returns the most recently loaded valid config.
func (w *ConfigWatcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ────────────────────────────────────────────────────────────────────
// Internal
// ────────────────────────────────────────────────────────────────────

func (w *ConfigWatcher) pollLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

func (w *ConfigWatcher) checkForChanges() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Printf("[config-watcher] stat error: %v", err)
		return
	}

	if !info.ModTime().After(w.lastMod) {
		return // file hasn't changed
	}
	w.lastMod = info.ModTime()

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Printf("[config-watcher] read error: %v", err)
		return
	}

	var newCfg Config
	if err := json.Unmarshal(data, &newCfg); err != nil {
		w.logger.Printf("[config-watcher] parse error (keeping old config): %v", err)
		return
	}

	if err := newCfg.Validate(); err != nil {
		w.logger.Printf("[config-watcher] validation error (keeping old config): %v", err)
		return
	}

	w.mu.RLock()
	oldCfg := w.current
	w.mu.RUnlock()

	if !reloadableConfigChanged(oldCfg, &newCfg) {
		w.logger.Printf("[config-watcher] file changed but no reloadable field changed, skipping")
		return
	}

	w.logReloadableChanges(oldCfg, &newCfg)

	w.mu.Lock()
	w.current = &newCfg
	callbacks := make([]func(old, new *Config), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(oldCfg, &newCfg)
	}
}

// reloadableConfigChanged returns true if any sandbox, guardrail, or
// batch field changed. Database URL, price table path, and server port
// require a restart and are deliberately excluded.
func reloadableConfigChanged(old, new *Config) bool {
	if old.Sandbox != new.Sandbox {
		return true
	}
	if old.Guardrail != new.Guardrail {
		return true
	}
	if old.Batch.Concurrency != new.Batch.Concurrency {
		return true
	}
	if old.Batch.CircuitBreaker != new.Batch.CircuitBreaker {
		return true
	}
	return false
}

func (w *ConfigWatcher) logReloadableChanges(old, new *Config) {
	if old.Sandbox != new.Sandbox {
		w.logger.Printf("[config-watcher] sandbox.execution_timeout_seconds: %d -> %d",
			old.Sandbox.ExecutionTimeoutSeconds, new.Sandbox.ExecutionTimeoutSeconds)
	}
	if old.Guardrail != new.Guardrail {
		w.logger.Printf("[config-watcher] guardrail: notify_url=%q exposure_limit.enabled=%v max_pct=%.2f",
			new.Guardrail.NotifyURL, new.Guardrail.ExposureLimit.Enabled, new.Guardrail.ExposureLimit.MaxCapitalDeploymentPct)
	}
	if old.Batch.Concurrency != new.Batch.Concurrency {
		w.logger.Printf("[config-watcher] batch.concurrency: %d -> %d", old.Batch.Concurrency, new.Batch.Concurrency)
	}
	if old.Batch.CircuitBreaker != new.Batch.CircuitBreaker {
		w.logger.Printf("[config-watcher] batch.circuit_breaker: consecutive=%d hourly=%d cooldown=%dmin",
			new.Batch.CircuitBreaker.MaxConsecutiveFailures, new.Batch.CircuitBreaker.MaxFailuresPerHour, new.Batch.CircuitBreaker.CooldownMinutes)
	}
}
