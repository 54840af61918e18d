// Package analytics computes performance metrics from a completed
// backtest's equity curve.
//
// It provides:
//   - Daily win rate and best/worst day
//   - Maximum drawdown (absolute and percentage)
//   - Sharpe ratio (annualized, assuming 365 trading days since BTC
//     markets trade every calendar day)
//   - Cross-run comparison for batch sweeps
//   - Human-readable formatted report
//
// All functions are stateless and work on a backtest.Result.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nitinkhare/btcstrategylab/internal/backtest"
	"github.com/nitinkhare/btcstrategylab/internal/ledger"
)

// PerformanceReport holds all computed performance metrics for a single run.
type PerformanceReport struct {
	TotalDays   int
	WinningDays int
	LosingDays  int
	WinRate     float64 // percentage (0-100)

	StartingEquity float64
	EndingEquity   float64
	TotalReturnPct float64

	MaxDrawdown    float64 // absolute, in USD
	MaxDrawdownPct float64 // percentage drawdown from peak
	SharpeRatio    float64 // annualized over daily returns

	AverageDailyReturnPct float64
	BestDayReturnPct      float64
	WorstDayReturnPct     float64
}

// RunSummary is one named run's headline outcome, the unit BatchReport
// ranks across a sweep of strategies or parameters.
type RunSummary struct {
	Label          string
	RevenuePercent float64
	MaxDrawdownPct float64
	SharpeRatio    float64
}

// BatchReport ranks a set of completed runs by revenue.
type BatchReport struct {
	Runs  []RunSummary
	Best  string
	Worst string
}

// Analyze computes the full performance report from a run's equity curve.
// Returns an empty report (not nil) if the result has no equity curve.
func Analyze(result *backtest.Result) *PerformanceReport {
	report := &PerformanceReport{StartingEquity: ledger.InitialPortfolioUSD}
	if result == nil || len(result.EquityCurve) == 0 {
		return report
	}

	curve := result.EquityCurve
	report.TotalDays = len(curve)
	report.EndingEquity = result.TotalPortfolioUSD
	report.TotalReturnPct = result.RevenuePercent

	returns := make([]float64, 0, len(curve))
	prev := ledger.InitialPortfolioUSD
	peak := prev

	for _, pt := range curve {
		if prev > 0 {
			r := (pt.TotalValueUSD/prev - 1) * 100
			returns = append(returns, r)
			if r > 0 {
				report.WinningDays++
			} else if r < 0 {
				report.LosingDays++
			}
		}
		if pt.TotalValueUSD > peak {
			peak = pt.TotalValueUSD
		}
		dd := peak - pt.TotalValueUSD
		if dd > report.MaxDrawdown {
			report.MaxDrawdown = dd
			if peak > 0 {
				report.MaxDrawdownPct = dd / peak * 100
			}
		}
		prev = pt.TotalValueUSD
	}

	if report.TotalDays > 0 {
		report.WinRate = float64(report.WinningDays) / float64(report.TotalDays) * 100
	}

	if len(returns) > 0 {
		sum, best, worst := 0.0, returns[0], returns[0]
		for _, r := range returns {
			sum += r
			if r > best {
				best = r
			}
			if r < worst {
				worst = r
			}
		}
		report.AverageDailyReturnPct = sum / float64(len(returns))
		report.BestDayReturnPct = best
		report.WorstDayReturnPct = worst
	}

	report.SharpeRatio = computeSharpeRatio(returns)

	return report
}

// Summarize reduces a single labeled run to the headline fields used for
// cross-run comparison.
func Summarize(label string, result *backtest.Result) RunSummary {
	if result == nil {
		return RunSummary{Label: label}
	}
	report := Analyze(result)
	return RunSummary{
		Label:          label,
		RevenuePercent: result.RevenuePercent,
		MaxDrawdownPct: report.MaxDrawdownPct,
		SharpeRatio:    report.SharpeRatio,
	}
}

// CompareRuns ranks a batch of run summaries best-to-worst by revenue.
func CompareRuns(summaries []RunSummary) *BatchReport {
	if len(summaries) == 0 {
		return &BatchReport{}
	}
	sorted := make([]RunSummary, len(summaries))
	copy(sorted, summaries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RevenuePercent > sorted[j].RevenuePercent })
	return &BatchReport{
		Runs:  sorted,
		Best:  sorted[0].Label,
		Worst: sorted[len(sorted)-1].Label,
	}
}

var reportPrinter = message.NewPrinter(language.AmericanEnglish)

func formatUSD(amount float64) string {
	return reportPrinter.Sprint(currency.Symbol(currency.USD.Amount(amount)))
}

// FormatReport returns a human-readable text summary of the performance report.
func FormatReport(report *PerformanceReport) string {
	if report == nil || report.TotalDays == 0 {
		return "No trading days to analyze."
	}

	var b strings.Builder

	b.WriteString("═══════════════════════════════════════════════════\n")
	b.WriteString("              PERFORMANCE REPORT\n")
	b.WriteString("═══════════════════════════════════════════════════\n\n")

	b.WriteString("── EQUITY ──\n")
	fmt.Fprintf(&b, "  Starting equity: %s\n", formatUSD(report.StartingEquity))
	fmt.Fprintf(&b, "  Ending equity:   %s\n", formatUSD(report.EndingEquity))
	fmt.Fprintf(&b, "  Total return:    %.2f%%\n", report.TotalReturnPct)
	b.WriteString("\n")

	b.WriteString("── DAILY PERFORMANCE ──\n")
	fmt.Fprintf(&b, "  Trading days:    %d\n", report.TotalDays)
	fmt.Fprintf(&b, "  Winning days:    %d (%.1f%%)\n", report.WinningDays, report.WinRate)
	fmt.Fprintf(&b, "  Losing days:     %d\n", report.LosingDays)
	fmt.Fprintf(&b, "  Avg daily return: %.3f%%\n", report.AverageDailyReturnPct)
	fmt.Fprintf(&b, "  Best day:        %.2f%%\n", report.BestDayReturnPct)
	fmt.Fprintf(&b, "  Worst day:       %.2f%%\n", report.WorstDayReturnPct)
	b.WriteString("\n")

	b.WriteString("── RISK METRICS ──\n")
	fmt.Fprintf(&b, "  Max drawdown:    %s (%.2f%%)\n", formatUSD(report.MaxDrawdown), report.MaxDrawdownPct)
	fmt.Fprintf(&b, "  Sharpe ratio:    %.2f\n", report.SharpeRatio)
	b.WriteString("\n")

	b.WriteString("═══════════════════════════════════════════════════\n")

	return b.String()
}

// FormatBatchReport returns a human-readable ranking of a batch run.
func FormatBatchReport(report *BatchReport) string {
	if report == nil || len(report.Runs) == 0 {
		return "No runs to compare."
	}

	var b strings.Builder
	b.WriteString("── BATCH COMPARISON ──\n")
	for i, r := range report.Runs {
		marker := "  "
		if r.Label == report.Best {
			marker = "★ "
		}
		fmt.Fprintf(&b, "%s%2d. %-24s revenue %7.2f%%  drawdown %6.2f%%  sharpe %5.2f\n",
			marker, i+1, r.Label, r.RevenuePercent, r.MaxDrawdownPct, r.SharpeRatio)
	}
	return b.String()
}

// computeSharpeRatio calculates the annualized Sharpe ratio from a slice of
// daily percentage returns. BTC markets trade every calendar day, so the
// annualization factor is sqrt(365) rather than the equities-market 252.
func computeSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)

	if stdDev == 0 {
		return 0
	}

	return (mean / stdDev) * math.Sqrt(365)
}
