package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/form4-crawler/internal/progress"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.Stringer("day", evt.Day),
		}
		switch evt.Stage {
		case progress.StageFetchBatch:
			fields = append(fields, zap.String("batch", fmt.Sprintf("%d/%d", evt.Batch+1, evt.Total)),
				zap.Int("documents", evt.Count), zap.Int("failed", evt.Failed), zap.Duration("dur", evt.Dur))
		case progress.StageFetchFailed:
			fields = append(fields, zap.String("url", evt.URL), zap.String("note", evt.Note))
		case progress.StageIngestDone, progress.StageDayDone:
			fields = append(fields, zap.Int("transactions", evt.Count), zap.Int("inserted", evt.Inserted),
				zap.Int("duplicates", evt.Duplicates), zap.Int("failed", evt.Failed), zap.Duration("dur", evt.Dur))
		case progress.StageDayError, progress.StageDayDeferred:
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
