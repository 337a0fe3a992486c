package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/progress"
	"github.com/JakeFAU/form4-crawler/internal/store"
)

// StoreSink persists day outcomes via a store.RunRepository. Fetch failures
// are summed per day before they are written.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume applies the batch in order and returns the first repository error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	failures := make(map[filing.Date]int)

	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageFetchFailed:
			failures[evt.Day]++
			continue
		case progress.StageDayStart, progress.StageDayDone, progress.StageDaySkipped, progress.StageDayError:
		default:
			continue
		}
		if err := s.flushFailures(ctx, failures, evt.Day); err != nil {
			return err
		}
		if err := s.handleDayEvent(ctx, evt); err != nil {
			return err
		}
	}
	for day := range failures {
		if err := s.flushFailures(ctx, failures, day); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) flushFailures(ctx context.Context, failures map[filing.Date]int, day filing.Date) error {
	n := failures[day]
	if n == 0 {
		return nil
	}
	delete(failures, day)
	if err := s.repo.AddFetchFailures(ctx, day, n); err != nil {
		return fmt.Errorf("add fetch failures: %w", err)
	}
	return nil
}

func (s *StoreSink) handleDayEvent(ctx context.Context, evt progress.Event) error {
	var outcome store.DayOutcome
	switch evt.Stage {
	case progress.StageDayStart:
		if err := s.repo.StartDay(ctx, evt.RunUUID(), evt.Day, evt.TS); err != nil {
			return fmt.Errorf("start day: %w", err)
		}
		return nil
	case progress.StageDayDone:
		outcome = store.DayOutcome{
			Status:       store.DayDone,
			Transactions: evt.Count,
			Inserted:     evt.Inserted,
			Duplicates:   evt.Duplicates,
			Failed:       evt.Failed,
		}
	case progress.StageDaySkipped:
		outcome = store.DayOutcome{Status: store.DaySkipped}
	case progress.StageDayError:
		outcome = store.DayOutcome{Status: store.DayError}
		if evt.Note != "" {
			note := evt.Note
			outcome.ErrorMessage = &note
		}
	}
	if err := s.repo.CompleteDay(ctx, evt.Day, evt.TS, outcome); err != nil {
		return fmt.Errorf("complete day: %w", err)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
