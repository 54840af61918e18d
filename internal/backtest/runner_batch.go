package backtest

import (
	"context"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nitinkhare/btcstrategylab/internal/guardrail"
	"github.com/nitinkhare/btcstrategylab/internal/pricetable"
	"github.com/nitinkhare/btcstrategylab/internal/risk"
)

// BatchJob is a single strategy evaluation request within a batch.
type BatchJob struct {
	Label  string
	Start  time.Time
	End    time.Time
	Source string
}

// BatchOutcome pairs a BatchJob with its result or error. Exactly one of
// Result/Err is set.
type BatchOutcome struct {
	Label  string
	Result *Result
	Err    error
}

// BatchRunner fans a batch of independent strategy evaluations out over
// bounded concurrency, one Engine+Book pair per job (§A.5: a ledger is
// never shared between runs). A CircuitBreaker retargeted from
// order-placement failures to strategy compile/execution failures can
// halt the batch early when candidates are failing in a row — useful
// when evaluating many LLM-authored strategies.
type BatchRunner struct {
	Table       *pricetable.Table
	Concurrency int
	Breaker     *risk.CircuitBreaker
	Limiter     *guardrail.ExposureLimiter
	logger      *log.Logger
}

// NewBatchRunner returns a BatchRunner over table. A nil breaker disables
// early-abort behavior; a nil limiter disables the exposure check; a nil
// logger defaults to stdout.
func NewBatchRunner(table *pricetable.Table, concurrency int, breaker *risk.CircuitBreaker, limiter *guardrail.ExposureLimiter, logger *log.Logger) *BatchRunner {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[batch] ", log.LstdFlags|log.Lshortfile)
	}
	return &BatchRunner{Table: table, Concurrency: concurrency, Breaker: breaker, Limiter: limiter, logger: logger}
}

// Run evaluates every job, returning one BatchOutcome per job in the same
// order jobs were given. If the circuit breaker trips mid-batch, jobs not
// yet started are skipped with a CategoryUnexpected "batch aborted" error
// rather than silently omitted.
func (r *BatchRunner) Run(ctx context.Context, jobs []BatchJob) []BatchOutcome {
	outcomes := make([]BatchOutcome, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if r.Breaker != nil && r.Breaker.IsTripped() {
				outcomes[i] = BatchOutcome{Label: job.Label, Err: newError(CategoryUnexpected, "batch aborted: circuit breaker tripped (%s)", r.Breaker.TripReason())}
				return nil
			}

			select {
			case <-ctx.Done():
				outcomes[i] = BatchOutcome{Label: job.Label, Err: newError(CategoryUnexpected, "batch aborted: %v", ctx.Err())}
				return nil
			default:
			}

			engine := NewEngine(r.Table).WithExposureLimiter(r.Limiter)
			result, err := engine.Run(job.Start, job.End, job.Source)
			outcomes[i] = BatchOutcome{Label: job.Label, Result: result, Err: err}

			if r.Breaker != nil {
				if err != nil {
					r.Breaker.RecordFailure(err.Error())
				} else {
					r.Breaker.RecordSuccess()
				}
			}
			if err != nil {
				r.logger.Printf("job %s failed: %v", job.Label, err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}
