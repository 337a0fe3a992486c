package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/store"
)

// RunStore implements store.RunRepository on the crawl_days table.
type RunStore struct {
	q querier
}

// NewRunStore shares the connection pool of s.
func NewRunStore(s *Store) *RunStore {
	return &RunStore{q: s.shared}
}

const dayColumns = `day, run_id, started_at, finished_at, status, transactions, inserted, duplicates, failed, ` +
	`fetch_failures, error_message`

// StartDay inserts or resets the row for day.
func (s *RunStore) StartDay(ctx context.Context, runID uuid.UUID, day filing.Date, at time.Time) error {
	query := `
		INSERT INTO crawl_days (day, run_id, started_at, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (day) DO UPDATE
		SET run_id = EXCLUDED.run_id,
			started_at = EXCLUDED.started_at,
			status = EXCLUDED.status,
			finished_at = NULL,
			transactions = 0,
			inserted = 0,
			duplicates = 0,
			failed = 0,
			fetch_failures = 0,
			error_message = NULL;
	`
	if _, err := s.q.Exec(ctx, query, day.Time(), runID, at, string(store.DayRunning)); err != nil {
		return fmt.Errorf("failed to start day: %w", err)
	}
	return nil
}

// AddFetchFailures increments fetch_failures for day.
func (s *RunStore) AddFetchFailures(ctx context.Context, day filing.Date, delta int) error {
	query := `UPDATE crawl_days SET fetch_failures = fetch_failures + $2 WHERE day = $1;`
	if _, err := s.q.Exec(ctx, query, day.Time(), delta); err != nil {
		return fmt.Errorf("failed to add fetch failures: %w", err)
	}
	return nil
}

// CompleteDay stamps the outcome of day.
func (s *RunStore) CompleteDay(ctx context.Context, day filing.Date, at time.Time, outcome store.DayOutcome) error {
	query := `
		UPDATE crawl_days
		SET finished_at = $2, status = $3, transactions = $4, inserted = $5,
			duplicates = $6, failed = $7, error_message = $8
		WHERE day = $1;
	`
	_, err := s.q.Exec(ctx, query,
		day.Time(), at, string(outcome.Status), outcome.Transactions, outcome.Inserted,
		outcome.Duplicates, outcome.Failed, outcome.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to complete day: %w", err)
	}
	return nil
}

// GetDay loads one row.
func (s *RunStore) GetDay(ctx context.Context, day filing.Date) (store.DayRun, error) {
	query := `SELECT ` + dayColumns + ` FROM crawl_days WHERE day = $1`
	rows, err := s.q.Query(ctx, query, day.Time())
	if err != nil {
		return store.DayRun{}, fmt.Errorf("failed to get day: %w", err)
	}
	runs, err := collectDays(rows)
	if err != nil {
		return store.DayRun{}, err
	}
	if len(runs) == 0 {
		return store.DayRun{}, store.ErrNotFound
	}
	return runs[0], nil
}

// ListDays returns rows newest day first.
func (s *RunStore) ListDays(ctx context.Context, limit, offset int) ([]store.DayRun, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + dayColumns + ` FROM crawl_days ORDER BY day DESC LIMIT $1 OFFSET $2`
	rows, err := s.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list days: %w", err)
	}
	return collectDays(rows)
}

func collectDays(rows pgx.Rows) ([]store.DayRun, error) {
	defer rows.Close()
	runs := []store.DayRun{}
	for rows.Next() {
		var (
			run    store.DayRun
			day    time.Time
			status string
		)
		err := rows.Scan(&day, &run.RunID, &run.StartedAt, &run.FinishedAt, &status,
			&run.Transactions, &run.Inserted, &run.Duplicates, &run.Failed, &run.FetchFailures, &run.ErrorMessage)
		if err != nil {
			return nil, fmt.Errorf("failed to scan day: %w", err)
		}
		run.Day = filing.DateOf(day, time.UTC)
		run.Status = store.DayStatus(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate days: %w", err)
	}
	return runs, nil
}
