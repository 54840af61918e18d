package backtest

import (
	"time"

	"github.com/nitinkhare/btcstrategylab/internal/ledger"
)

// EquityPoint is one day's total portfolio value, recorded after that
// day's orders and SL/TP enforcement have been applied. This is the
// supplemented time series backing internal/analytics' drawdown and
// Sharpe calculations, and cmd/dashboard's equity-curve chart.
type EquityPoint struct {
	Date          time.Time `json:"date"`
	TotalValueUSD float64   `json:"total_value_usd"`
}

// Result is the outcome of a single successful Run.
type Result struct {
	Holdings          []ledger.HoldingSnapshot `json:"holdings"`
	TotalPortfolioUSD float64                  `json:"total_portfolio_usd"`
	RevenuePercent    float64                  `json:"revenue_percent"`
	EquityCurve       []EquityPoint            `json:"equity_curve"`
}

func newResult(holdings []ledger.HoldingSnapshot, equityCurve []EquityPoint) *Result {
	total := 0.0
	for _, h := range holdings {
		total += h.TotalValueUSD
	}
	return &Result{
		Holdings:          holdings,
		TotalPortfolioUSD: total,
		RevenuePercent:    (total/ledger.InitialPortfolioUSD - 1) * 100,
		EquityCurve:       equityCurve,
	}
}
