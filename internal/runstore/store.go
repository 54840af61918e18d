// Package runstore persists backtest runs, their results, and equity
// curves to Postgres via pgx, replacing the teacher's unwired
// internal/storage/postgres.go stub. After every state transition it
// issues a NOTIFY on the backtest_events channel so internal/progress can
// rebroadcast the update to connected dashboard clients even when the
// worker and dashboard run as separate processes.
package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nitinkhare/btcstrategylab/internal/backtest"
	"github.com/nitinkhare/btcstrategylab/internal/runqueue"
)

// Store persists runqueue.Job lifecycle transitions and the equity
// curves of completed runs.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and returns a Store. Callers must call
// Close when done.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("runstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("runstore: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// SaveJob upserts a run's current state, satisfying runqueue.StatusStore.
func (s *Store) SaveJob(ctx context.Context, job runqueue.Job) error {
	var resultJSON []byte
	if job.Result != nil {
		b, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("runstore: marshal result: %w", err)
		}
		resultJSON = b
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO backtest_runs (id, label, start_date, end_date, source, status, result, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`, job.ID, job.Label, job.Start, job.End, job.Source, string(job.Status), resultJSON, job.Error, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("runstore: save job %s: %w", job.ID, err)
	}

	if err := s.notify(ctx, job.ID, string(job.Status)); err != nil {
		return fmt.Errorf("runstore: notify: %w", err)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, jobID, status string) error {
	payload := fmt.Sprintf(`{"run_id":%q,"status":%q}`, jobID, status)
	_, err := s.pool.Exec(ctx, `SELECT pg_notify('backtest_events', $1)`, payload)
	return err
}

// RunRecord is a persisted run, as read back for cmd/dashboard.
type RunRecord struct {
	ID        string
	Label     string
	Start     time.Time
	End       time.Time
	Status    string
	Result    *backtest.Result
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Get fetches a single run by id.
func (s *Store) Get(ctx context.Context, id string) (*RunRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, label, start_date, end_date, status, result, error, created_at, updated_at
		FROM backtest_runs WHERE id = $1
	`, id)

	var rec RunRecord
	var resultJSON []byte
	if err := row.Scan(&rec.ID, &rec.Label, &rec.Start, &rec.End, &rec.Status, &resultJSON, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("runstore: get %s: %w", id, err)
	}
	if len(resultJSON) > 0 {
		var result backtest.Result
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("runstore: unmarshal result for %s: %w", id, err)
		}
		rec.Result = &result
	}
	return &rec, nil
}

// List returns the most recent runs, newest first, bounded by limit.
func (s *Store) List(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, start_date, end_date, status, result, error, created_at, updated_at
		FROM backtest_runs ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("runstore: list: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var resultJSON []byte
		if err := rows.Scan(&rec.ID, &rec.Label, &rec.Start, &rec.End, &rec.Status, &resultJSON, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("runstore: scan row: %w", err)
		}
		if len(resultJSON) > 0 {
			var result backtest.Result
			if err := json.Unmarshal(resultJSON, &result); err == nil {
				rec.Result = &result
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
