package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	day := filing.NewDate(2023, time.January, 4)
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageDayStart, Day: day},
		{RunID: runID, TS: now, Stage: progress.StageFetchBatch, Day: day, Count: 10, Failed: 1, Dur: 800 * time.Millisecond},
		{RunID: runID, TS: now, Stage: progress.StageFetchFailed, Day: day, URL: "https://example.com/a.txt"},
		{RunID: runID, TS: now, Stage: progress.StageIngestDone, Day: day, Inserted: 7, Duplicates: 2, Failed: 1},
		{RunID: runID, TS: now, Stage: progress.StageDayDone, Day: day, Dur: 30 * time.Second},
		{RunID: runID, TS: now, Stage: progress.StageDaySkipped, Day: day.AddDays(1)},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.InDelta(t, 1.0, testutil.ToFloat64(sink.days.WithLabelValues("done")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.days.WithLabelValues("skipped")), 1e-9)
	require.InDelta(t, 0.0, testutil.ToFloat64(sink.days.WithLabelValues("error")), 1e-9)
	require.InDelta(t, float64(day.Time().Unix()), testutil.ToFloat64(sink.currentDay), 1e-9)
	require.InDelta(t, 9.0, testutil.ToFloat64(sink.documents), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.fetchFailures), 1e-9)
	require.InDelta(t, 7.0, testutil.ToFloat64(sink.transactions.WithLabelValues("inserted")), 1e-9)
	require.InDelta(t, 2.0, testutil.ToFloat64(sink.transactions.WithLabelValues("duplicate")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.dayDuration, "form4_day_duration_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.batchDuration, "form4_batch_duration_seconds"))
}

func TestPrometheusSinkRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
