// Package progress carries crawl milestones from the pipeline, the ingestor and
// the orchestrator to pluggable sinks. Events are queued without blocking the
// emitter and flushed in batches on a background goroutine.
package progress
