package main

import "time"

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse reports queue and worker health.
type StatusResponse struct {
	QueuedRuns       int       `json:"queued_runs"`
	ConnectedClients int       `json:"connected_clients"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
}

// BacktestRunRequest submits a single strategy for backtesting over a date
// range. Source carries the full Lua strategy text rather than an id,
// since strategies here are sandboxed scripts, not a fixed catalog.
type BacktestRunRequest struct {
	Label  string `json:"label"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Source string `json:"source"`
}

// BacktestRunResponse is returned immediately after a run is accepted.
type BacktestRunResponse struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// BacktestRun is one run's summary as listed by GET /api/backtest/runs.
type BacktestRun struct {
	ID             string    `json:"id"`
	Label          string    `json:"label"`
	Status         string    `json:"status"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	RevenuePercent *float64  `json:"revenue_percent,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BacktestListResponse is the payload for GET /api/backtest/runs.
type BacktestListResponse struct {
	Runs      []BacktestRun `json:"runs"`
	Timestamp time.Time     `json:"timestamp"`
}

// BacktestEquityCurvePoint is one day of a run's equity curve, as served
// to the dashboard's charting client.
type BacktestEquityCurvePoint struct {
	Date          time.Time `json:"date"`
	TotalValueUSD float64   `json:"total_value_usd"`
}

// BacktestDetailResponse is the full detail for a single completed run.
type BacktestDetailResponse struct {
	Run         BacktestRun                `json:"run"`
	EquityCurve []BacktestEquityCurvePoint `json:"equity_curve"`
	Report      interface{}                `json:"report,omitempty"`
	Timestamp   time.Time                  `json:"timestamp"`
}

// BacktestComparisonRequest names the runs to rank against each other.
type BacktestComparisonRequest struct {
	RunIDs []string `json:"run_ids"`
}

// BacktestComparisonMetric is one run's headline metrics within a
// comparison response.
type BacktestComparisonMetric struct {
	RunID          string  `json:"run_id"`
	Label          string  `json:"label"`
	RevenuePercent float64 `json:"revenue_percent"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// BacktestComparisonResponse ranks a set of runs best-to-worst by revenue.
type BacktestComparisonResponse struct {
	Metrics   []BacktestComparisonMetric `json:"metrics"`
	Best      string                     `json:"best,omitempty"`
	Worst     string                     `json:"worst,omitempty"`
	Timestamp time.Time                  `json:"timestamp"`
}
