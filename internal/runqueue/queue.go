// Package runqueue implements an in-process async job queue for
// backtest requests submitted through cmd/dashboard, adapted from the
// teacher's cron-style scheduler into an on-demand work queue: a request
// is accepted, persisted as PENDING via internal/runstore, executed on a
// worker goroutine, and updated to RUNNING then DONE/FAILED.
package runqueue

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nitinkhare/btcstrategylab/internal/backtest"
)

// Status is a run's lifecycle state.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

// Job is a single backtest request accepted by the queue.
type Job struct {
	ID        string
	Label     string
	Start     time.Time
	End       time.Time
	Source    string
	Status    Status
	Result    *backtest.Result
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Executor runs a single job to completion. internal/backtest.Engine.Run
// is the production implementation; tests may substitute a fake.
type Executor func(ctx context.Context, job Job) (*backtest.Result, error)

// StatusStore persists job state transitions. internal/runstore is the
// production implementation backed by Postgres; nil disables persistence
// (the queue still works purely in memory).
type StatusStore interface {
	SaveJob(ctx context.Context, job Job) error
}

// Queue accepts jobs, persists their lifecycle, and runs them on a fixed
// pool of worker goroutines.
type Queue struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	pending  chan string
	exec     Executor
	store    StatusStore
	logger   *log.Logger
	workers  int
	wg       sync.WaitGroup
	shutdown chan struct{}
}

// New returns a Queue with workers worker goroutines, not yet started.
func New(workers int, exec Executor, store StatusStore, logger *log.Logger) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[runqueue] ", log.LstdFlags|log.Lshortfile)
	}
	return &Queue{
		jobs:     make(map[string]*Job),
		pending:  make(chan string, 1024),
		exec:     exec,
		store:    store,
		logger:   logger,
		workers:  workers,
		shutdown: make(chan struct{}),
	}
}

// Start launches the worker pool. Call Stop to drain and shut it down.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Stop signals workers to exit once the pending queue drains and waits
// for them to finish.
func (q *Queue) Stop() {
	close(q.shutdown)
	q.wg.Wait()
}

// Submit accepts a new job, persists it as PENDING, and enqueues it for
// execution. Returns the generated job id.
func (q *Queue) Submit(ctx context.Context, label string, start, end time.Time, source string) (string, error) {
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Label:     label,
		Start:     start,
		End:       end,
		Source:    source,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	if err := q.persist(ctx, *job); err != nil {
		return "", err
	}

	q.pending <- job.ID
	return job.ID, nil
}

// Get returns a snapshot of a job's current state.
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	j, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns a snapshot of every job known to the queue, most recently
// created first.
func (q *Queue) List() []Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-q.shutdown:
			for {
				select {
				case id := <-q.pending:
					q.runJob(ctx, id)
				default:
					return
				}
			}
		case id := <-q.pending:
			q.runJob(ctx, id)
		}
	}
}

func (q *Queue) runJob(ctx context.Context, id string) {
	q.setStatus(ctx, id, StatusRunning, nil, "")

	q.mu.RLock()
	job := *q.jobs[id]
	q.mu.RUnlock()

	result, err := q.exec(ctx, job)
	if err != nil {
		q.logger.Printf("job %s (%s) failed: %v", id, job.Label, err)
		q.setStatus(ctx, id, StatusFailed, nil, err.Error())
		return
	}
	q.setStatus(ctx, id, StatusDone, result, "")
}

func (q *Queue) setStatus(ctx context.Context, id string, status Status, result *backtest.Result, errMsg string) {
	q.mu.Lock()
	job := q.jobs[id]
	job.Status = status
	job.Result = result
	job.Error = errMsg
	job.UpdatedAt = time.Now()
	snapshot := *job
	q.mu.Unlock()

	if err := q.persist(ctx, snapshot); err != nil {
		q.logger.Printf("persist job %s status %s: %v", id, status, err)
	}
}

func (q *Queue) persist(ctx context.Context, job Job) error {
	if q.store == nil {
		return nil
	}
	return q.store.SaveJob(ctx, job)
}
