package runqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nitinkhare/btcstrategylab/internal/backtest"
)

func TestQueueRunsJobToCompletion(t *testing.T) {
	exec := func(ctx context.Context, job Job) (*backtest.Result, error) {
		return &backtest.Result{TotalPortfolioUSD: 12345}, nil
	}
	q := New(1, exec, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	id, err := q.Submit(ctx, "test", time.Now(), time.Now(), "return {}")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := q.Get(id)
		if ok && job.Status == StatusDone {
			if job.Result == nil || job.Result.TotalPortfolioUSD != 12345 {
				t.Fatalf("unexpected result: %+v", job.Result)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not complete in time")
}

func TestQueueMarksFailedJobs(t *testing.T) {
	exec := func(ctx context.Context, job Job) (*backtest.Result, error) {
		return nil, errors.New("boom")
	}
	q := New(1, exec, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	id, err := q.Submit(ctx, "test", time.Now(), time.Now(), "return {}")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := q.Get(id)
		if ok && job.Status == StatusFailed {
			if job.Error != "boom" {
				t.Fatalf("unexpected error message: %q", job.Error)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not fail in time")
}
