package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/store"
)

// RunStore implements store.RunRepository in memory.
type RunStore struct {
	mu   sync.RWMutex
	days map[filing.Date]store.DayRun
}

// NewRunStore constructs an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{days: make(map[filing.Date]store.DayRun)}
}

// StartDay resets the row for day to running.
func (s *RunStore) StartDay(_ context.Context, runID uuid.UUID, day filing.Date, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[day] = store.DayRun{
		Day:       day,
		RunID:     runID,
		StartedAt: at.UTC(),
		Status:    store.DayRunning,
	}
	return nil
}

// AddFetchFailures increments the failure counter, creating the row if needed.
func (s *RunStore) AddFetchFailures(_ context.Context, day filing.Date, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.ensure(day)
	run.FetchFailures += delta
	s.days[day] = run
	return nil
}

// CompleteDay records the outcome.
func (s *RunStore) CompleteDay(_ context.Context, day filing.Date, at time.Time, outcome store.DayOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.ensure(day)
	finished := at.UTC()
	run.FinishedAt = &finished
	run.Status = outcome.Status
	run.Transactions = outcome.Transactions
	run.Inserted = outcome.Inserted
	run.Duplicates = outcome.Duplicates
	run.Failed = outcome.Failed
	run.ErrorMessage = outcome.ErrorMessage
	s.days[day] = run
	return nil
}

// GetDay loads one row.
func (s *RunStore) GetDay(_ context.Context, day filing.Date) (store.DayRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.days[day]
	if !ok {
		return store.DayRun{}, store.ErrNotFound
	}
	return run, nil
}

// ListDays returns rows newest day first.
func (s *RunStore) ListDays(_ context.Context, limit, offset int) ([]store.DayRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]store.DayRun, 0, len(s.days))
	for _, run := range s.days {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Day.After(runs[j].Day) })
	if offset < 0 {
		offset = 0
	}
	if offset >= len(runs) {
		return []store.DayRun{}, nil
	}
	runs = runs[offset:]
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *RunStore) ensure(day filing.Date) store.DayRun {
	run, ok := s.days[day]
	if !ok {
		run = store.DayRun{Day: day, Status: store.DayRunning}
	}
	return run
}
