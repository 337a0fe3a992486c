package sinks

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/progress"
	"github.com/JakeFAU/form4-crawler/internal/store"
)

func TestStoreSinkPersistsDayOutcome(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	day := filing.NewDate(2023, time.January, 4)
	now := time.Now()

	batch := []progress.Event{
		{RunID: runID, Stage: progress.StageDayStart, Day: day, TS: now},
		{RunID: runID, Stage: progress.StageFetchFailed, Day: day, TS: now, URL: "a"},
		{RunID: runID, Stage: progress.StageFetchBatch, Day: day, TS: now, Count: 10},
		{RunID: runID, Stage: progress.StageFetchFailed, Day: day, TS: now, URL: "b"},
		{RunID: runID, Stage: progress.StageDayDone, Day: day, TS: now, Count: 12, Inserted: 10, Duplicates: 2},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, []string{"start", "failures:2", "complete:done"}, repo.calls)
	assert.Equal(t, runUUID, repo.runID)
	assert.Equal(t, 12, repo.outcome.Transactions)
	assert.Equal(t, 10, repo.outcome.Inserted)
	assert.Equal(t, 2, repo.outcome.Duplicates)
}

func TestStoreSinkFlushesTrailingFailures(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())
	day := filing.NewDate(2023, time.January, 4)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageFetchFailed, Day: day, TS: time.Now(), URL: "a"},
	}))
	require.Equal(t, []string{"failures:1"}, repo.calls)
}

func TestStoreSinkRecordsErrorNote(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())
	day := filing.NewDate(2023, time.January, 4)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageDayError, Day: day, TS: time.Now(), Note: "save checkpoint: disk full"},
	}))
	require.NotNil(t, repo.outcome.ErrorMessage)
	assert.Equal(t, store.DayError, repo.outcome.Status)
	assert.Equal(t, "save checkpoint: disk full", *repo.outcome.ErrorMessage)
}

func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{fail: true}
	sink := NewStoreSink(repo, nil)
	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.UUIDToBytes(uuid.New()), Stage: progress.StageDayStart, Day: filing.NewDate(2023, 1, 4), TS: time.Now()},
	})
	require.Error(t, err)
}

type fakeRunRepo struct {
	fail    bool
	calls   []string
	runID   uuid.UUID
	outcome store.DayOutcome
}

func (f *fakeRunRepo) StartDay(_ context.Context, runID uuid.UUID, _ filing.Date, _ time.Time) error {
	if f.fail {
		return errors.New("boom")
	}
	f.calls = append(f.calls, "start")
	f.runID = runID
	return nil
}

func (f *fakeRunRepo) AddFetchFailures(_ context.Context, _ filing.Date, delta int) error {
	if f.fail {
		return errors.New("boom")
	}
	f.calls = append(f.calls, "failures:"+strconv.Itoa(delta))
	return nil
}

func (f *fakeRunRepo) CompleteDay(_ context.Context, _ filing.Date, _ time.Time, outcome store.DayOutcome) error {
	if f.fail {
		return errors.New("boom")
	}
	f.calls = append(f.calls, "complete:"+string(outcome.Status))
	f.outcome = outcome
	return nil
}

func (f *fakeRunRepo) GetDay(context.Context, filing.Date) (store.DayRun, error) {
	return store.DayRun{}, store.ErrNotFound
}

func (f *fakeRunRepo) ListDays(context.Context, int, int) ([]store.DayRun, error) {
	return nil, nil
}
