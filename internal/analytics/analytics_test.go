package analytics

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/nitinkhare/btcstrategylab/internal/backtest"
	"github.com/nitinkhare/btcstrategylab/internal/ledger"
)

func day(offset int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func resultFromCurve(values ...float64) *backtest.Result {
	curve := make([]backtest.EquityPoint, len(values))
	for i, v := range values {
		curve[i] = backtest.EquityPoint{Date: day(i), TotalValueUSD: v}
	}
	total := values[len(values)-1]
	return &backtest.Result{
		TotalPortfolioUSD: total,
		RevenuePercent:    (total/ledger.InitialPortfolioUSD - 1) * 100,
		EquityCurve:       curve,
	}
}

func TestAnalyze_NilResult(t *testing.T) {
	report := Analyze(nil)
	if report == nil {
		t.Fatal("expected non-nil report")
	}
	if report.TotalDays != 0 {
		t.Errorf("expected 0 days, got %d", report.TotalDays)
	}
	if report.WinRate != 0 {
		t.Errorf("expected 0 win rate, got %.2f", report.WinRate)
	}
}

func TestAnalyze_AllUpDays(t *testing.T) {
	result := resultFromCurve(10100, 10250, 10400)

	report := Analyze(result)

	if report.TotalDays != 3 {
		t.Errorf("expected 3 days, got %d", report.TotalDays)
	}
	if report.WinningDays != 3 {
		t.Errorf("expected 3 winning days, got %d", report.WinningDays)
	}
	if report.LosingDays != 0 {
		t.Errorf("expected 0 losing days, got %d", report.LosingDays)
	}
	if report.WinRate != 100 {
		t.Errorf("expected 100%% win rate, got %.2f%%", report.WinRate)
	}
	if report.MaxDrawdown != 0 {
		t.Errorf("expected 0 drawdown for monotonic gains, got %.2f", report.MaxDrawdown)
	}
	if report.TotalReturnPct <= 0 {
		t.Errorf("expected positive return, got %.2f", report.TotalReturnPct)
	}
}

func TestAnalyze_AllDownDays(t *testing.T) {
	result := resultFromCurve(9900, 9700, 9600)

	report := Analyze(result)

	if report.WinRate != 0 {
		t.Errorf("expected 0%% win rate, got %.2f%%", report.WinRate)
	}
	if report.TotalReturnPct >= 0 {
		t.Errorf("expected negative return, got %.2f", report.TotalReturnPct)
	}
	// peak stays at InitialPortfolioUSD=10000, trough at 9600.
	if math.Abs(report.MaxDrawdown-400) > 0.01 {
		t.Errorf("expected MaxDrawdown=400, got %.2f", report.MaxDrawdown)
	}
}

func TestAnalyze_MaxDrawdownFromPeak(t *testing.T) {
	// Peak at day 2 (10500), trough at day 3 (10000): drawdown=500.
	result := resultFromCurve(10200, 10500, 10000, 10800)

	report := Analyze(result)

	if math.Abs(report.MaxDrawdown-500) > 0.01 {
		t.Errorf("expected MaxDrawdown=500, got %.2f", report.MaxDrawdown)
	}
}

func TestAnalyze_SharpeZeroForConstantReturns(t *testing.T) {
	// Identical day-over-day growth factor => zero stddev => Sharpe=0.
	result := resultFromCurve(10100, 10201, 10303.01)

	report := Analyze(result)

	if math.Abs(report.SharpeRatio) > 0.05 {
		t.Errorf("expected Sharpe near 0 for constant returns, got %.4f", report.SharpeRatio)
	}
}

func TestAnalyze_SharpePositiveForNetGains(t *testing.T) {
	result := resultFromCurve(10500, 10100, 11000, 10800)

	report := Analyze(result)

	if report.SharpeRatio <= 0 {
		t.Errorf("expected positive Sharpe for net positive returns, got %.2f", report.SharpeRatio)
	}
}

func TestAnalyze_BestAndWorstDay(t *testing.T) {
	result := resultFromCurve(11000, 9000, 9500)

	report := Analyze(result)

	if report.BestDayReturnPct <= 0 {
		t.Errorf("expected positive best day, got %.2f", report.BestDayReturnPct)
	}
	if report.WorstDayReturnPct >= 0 {
		t.Errorf("expected negative worst day, got %.2f", report.WorstDayReturnPct)
	}
}

func TestSummarizeAndCompareRuns(t *testing.T) {
	runs := []RunSummary{
		Summarize("momentum", resultFromCurve(10500, 11200)),
		Summarize("mean-reversion", resultFromCurve(9800, 9500)),
		Summarize("breakout", resultFromCurve(10100, 10900)),
	}

	batch := CompareRuns(runs)

	if batch.Best != "momentum" {
		t.Errorf("expected momentum to be best, got %s", batch.Best)
	}
	if batch.Worst != "mean-reversion" {
		t.Errorf("expected mean-reversion to be worst, got %s", batch.Worst)
	}
	if len(batch.Runs) != 3 {
		t.Errorf("expected 3 ranked runs, got %d", len(batch.Runs))
	}
}

func TestCompareRuns_Empty(t *testing.T) {
	batch := CompareRuns(nil)
	if len(batch.Runs) != 0 {
		t.Errorf("expected empty batch, got %d runs", len(batch.Runs))
	}
}

func TestFormatReport_NilResult(t *testing.T) {
	report := Analyze(nil)
	formatted := FormatReport(report)
	if !strings.Contains(formatted, "No trading days") {
		t.Errorf("expected 'No trading days' message, got: %s", formatted)
	}
}

func TestFormatReport_WithResult(t *testing.T) {
	result := resultFromCurve(10200, 9900, 10600)
	report := Analyze(result)
	formatted := FormatReport(report)

	if !strings.Contains(formatted, "PERFORMANCE REPORT") {
		t.Error("expected report header")
	}
	if !strings.Contains(formatted, "Trading days") {
		t.Error("expected trading days line in report")
	}
	if !strings.Contains(formatted, "Sharpe ratio") {
		t.Error("expected Sharpe ratio line in report")
	}
}

func TestFormatBatchReport(t *testing.T) {
	batch := CompareRuns([]RunSummary{
		Summarize("a", resultFromCurve(10500)),
		Summarize("b", resultFromCurve(9500)),
	})
	formatted := FormatBatchReport(batch)
	if !strings.Contains(formatted, "BATCH COMPARISON") {
		t.Error("expected batch comparison header")
	}
	if !strings.Contains(formatted, "a") {
		t.Error("expected run label a in output")
	}
}
