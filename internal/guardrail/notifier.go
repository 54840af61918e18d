package guardrail

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/nitinkhare/btcstrategylab/internal/backtest"
)

// RunReport is the outbound payload posted to the orchestrator after
// every run, mirroring §A.1's stated contract boundary: "the only
// contract with that layer is validate(strategy_source) → (ok,
// BacktestResult) | (error, message)".
type RunReport struct {
	OK     bool             `json:"ok"`
	Result *backtest.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// Notifier posts a RunReport to a configured orchestrator URL after each
// backtest run. An empty URL disables it entirely — Notify then becomes
// a no-op, matching the webhook server's Enabled flag in spirit but
// inverted in direction (this is an outbound client, not an inbound
// receiver).
type Notifier struct {
	url    string
	client *http.Client
	logger *log.Logger
}

// NewNotifier returns a Notifier posting to url. An empty url disables
// notification. A nil logger defaults to stdout.
func NewNotifier(url string, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.New(os.Stdout, "[guardrail] ", log.LstdFlags|log.Lshortfile)
	}
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Notify posts report to the configured URL. Errors are logged, not
// returned — a notification failure must never fail the backtest run
// that already completed.
func (n *Notifier) Notify(ctx context.Context, report RunReport) {
	if n.url == "" {
		return
	}

	body, err := json.Marshal(report)
	if err != nil {
		n.logger.Printf("marshal run report: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Printf("build notify request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Printf("notify orchestrator at %s: %v", n.url, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Printf("notify orchestrator at %s: unexpected status %s", n.url, resp.Status)
	}
}

// ReportFromRun builds a RunReport from a Run outcome.
func ReportFromRun(result *backtest.Result, err error) RunReport {
	if err != nil {
		return RunReport{OK: false, Error: err.Error()}
	}
	return RunReport{OK: true, Result: result}
}
