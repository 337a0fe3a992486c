package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// ErrNotFound signals that the requested day has no recorded run.
var ErrNotFound = errors.New("crawl day not found")

// DayStatus mirrors the crawl_days status column.
type DayStatus string

// Day statuses persisted in crawl_days.status.
const (
	DayRunning DayStatus = "running"
	DayDone    DayStatus = "done"
	DaySkipped DayStatus = "skipped"
	DayError   DayStatus = "error"
)

// DayRun models one row of crawl_days. A day crawled twice keeps only the
// latest attempt.
type DayRun struct {
	Day        filing.Date
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     DayStatus
	// Transactions is the number of records fetched or resumed for the day.
	Transactions  int
	Inserted      int
	Duplicates    int
	Failed        int
	FetchFailures int
	ErrorMessage  *string
}

// DayOutcome is the final tally written when a day finishes.
type DayOutcome struct {
	Status       DayStatus
	Transactions int
	Inserted     int
	Duplicates   int
	Failed       int
	ErrorMessage *string
}

// RunRepository persists per-day crawl progress.
type RunRepository interface {
	// StartDay inserts or resets the row for day.
	StartDay(ctx context.Context, runID uuid.UUID, day filing.Date, at time.Time) error
	// AddFetchFailures increments the fetch failure counter.
	AddFetchFailures(ctx context.Context, day filing.Date, delta int) error
	// CompleteDay stamps the finish time and outcome.
	CompleteDay(ctx context.Context, day filing.Date, at time.Time, outcome DayOutcome) error
	// GetDay loads one row or returns ErrNotFound.
	GetDay(ctx context.Context, day filing.Date) (DayRun, error)
	// ListDays returns rows newest day first.
	ListDays(ctx context.Context, limit, offset int) ([]DayRun, error)
}
