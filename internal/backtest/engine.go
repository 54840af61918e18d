package backtest

import (
	"time"

	"github.com/nitinkhare/btcstrategylab/internal/guardrail"
	"github.com/nitinkhare/btcstrategylab/internal/ledger"
	"github.com/nitinkhare/btcstrategylab/internal/pricetable"
	"github.com/nitinkhare/btcstrategylab/internal/sandbox"
)

// Engine orchestrates C1 (pricetable.Table), C2 (sandbox.Program), and
// C4 (ledger.Book) into the day-stepped protocol described in §A.4.5. An
// Engine's Table may be shared read-only across runs; its Book is owned
// by the run and must never be shared (§A.5).
type Engine struct {
	Table *pricetable.Table
	Book  *ledger.Book

	// Limiter, when set, is consulted immediately before each BUY order
	// is applied to the ledger. Nil (the default) skips the check
	// entirely, matching ExposureLimiter's own default-disabled config.
	Limiter *guardrail.ExposureLimiter
}

// NewEngine returns an Engine over table with a freshly reset book and no
// exposure limiter.
func NewEngine(table *pricetable.Table) *Engine {
	return &Engine{Table: table, Book: ledger.NewBook()}
}

// WithExposureLimiter attaches l to e and returns e, for chaining after
// NewEngine.
func (e *Engine) WithExposureLimiter(l *guardrail.ExposureLimiter) *Engine {
	e.Limiter = l
	return e
}

// Run executes test_strategy(start, end, source) and returns a Result on
// success or a categorized *Error on any failure. No partial results are
// ever returned — a failure on day D discards the whole run.
func (e *Engine) Run(start, end time.Time, source string) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = newError(CategoryUnexpected, "panic during run: %v", r)
		}
	}()

	dates, rangeErr := e.Table.TradingDates(start, end)
	if rangeErr != nil {
		return nil, newError(CategoryDateRange, "%s", rangeErr)
	}
	if len(dates) == 0 {
		return nil, newError(CategoryDateRange, "no trading dates in range [%s .. %s]",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	firstWarmup := e.Table.PrefixUntil(dates[0].AddDate(0, 0, -1))
	if len(firstWarmup) == 0 {
		return nil, newError(CategoryDateRange, "start_date requires at least 1 prior candle")
	}

	e.Book.Reset()

	program, compileErr := sandbox.Compile(source)
	if compileErr != nil {
		return nil, newError(CategoryStrategyCode, "%s", compileErr)
	}
	defer program.Close()

	equityCurve := make([]EquityPoint, 0, len(dates))
	var lastKnownClose float64

	for _, d := range dates {
		view := e.Table.PrefixUntil(d.AddDate(0, 0, -1))
		if len(view) == 0 {
			return nil, newError(CategoryDateRange, "start_date requires at least 1 prior candle (on %s)", d.Format("2006-01-02"))
		}
		lastKnownClose = view[len(view)-1].Close

		today, ok := e.Table.BarOn(d)
		if !ok {
			return nil, newError(CategoryUnexpected, "trading date %s missing its own bar", d.Format("2006-01-02"))
		}

		holdingsPayload := e.Book.Snapshot(lastKnownClose)

		rawOrders, execErr := program.RunDay(view, holdingsPayload)
		if execErr != nil {
			if rtErr, ok := execErr.(*sandbox.RuntimeError); ok {
				return nil, newError(CategoryStrategyRuntime, "(stack trace follows):\n%s", rtErr.Traceback)
			}
			return nil, newError(CategoryStrategyRuntime, "%s", execErr)
		}

		orders, parseErr := ledger.ParseOrders(rawOrders)
		if parseErr != nil {
			return nil, newError(CategoryOrder, "%s", parseErr)
		}

		for _, o := range orders {
			if e.Limiter != nil && o.Action == ledger.ActionBuy {
				if err := e.Limiter.Check(o, e.Book.Snapshot(today.Open), today.Open, o.Amount*today.Open); err != nil {
					return nil, newError(CategoryOrder, "%s", err)
				}
			}
			if err := e.Book.ApplyOrders([]ledger.Order{o}, today.Open); err != nil {
				return nil, newError(CategoryOrder, "%s", err)
			}
		}

		if err := e.Book.EnforceStopLossTakeProfit(today.Low, today.High); err != nil {
			return nil, newError(CategoryOrder, "%s", err)
		}

		dayEndTotal := totalValue(e.Book.Snapshot(today.Close))
		equityCurve = append(equityCurve, EquityPoint{Date: d, TotalValueUSD: dayEndTotal})
	}

	finalHoldings := e.Book.Snapshot(lastFinalClose(e.Table, dates))
	return newResult(finalHoldings, equityCurve), nil
}

func lastFinalClose(table *pricetable.Table, dates []time.Time) float64 {
	last := dates[len(dates)-1]
	bar, ok := table.BarOn(last)
	if !ok {
		return 0
	}
	return bar.Close
}

func totalValue(snaps []ledger.HoldingSnapshot) float64 {
	var total float64
	for _, s := range snaps {
		total += s.TotalValueUSD
	}
	return total
}
