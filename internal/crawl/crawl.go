// Package crawl drives the day-by-day crawl: it checks that a day is
// complete, loads its checkpoint or fetches and parses the day's documents,
// ingests the transactions and advances to the next day.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/index"
	"github.com/JakeFAU/form4-crawler/internal/ingest"
	"github.com/JakeFAU/form4-crawler/internal/pipeline"
	"github.com/JakeFAU/form4-crawler/internal/progress"
)

// DefaultWaitInterval is how long a deferred day waits before it is retried.
const DefaultWaitInterval = time.Minute

// Outcome classifies what one Cycle did with its day.
type Outcome string

// Cycle outcomes.
const (
	OutcomeDone     Outcome = "done"
	OutcomeResumed  Outcome = "resumed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeDeferred Outcome = "deferred"
	OutcomeRetry    Outcome = "retry"
)

// Config holds the orchestrator settings.
type Config struct {
	// Stop ends the crawl once the cursor reaches it. The zero Date never stops.
	Stop       filing.Date
	BatchSize  int
	Unattended bool
	// WaitInterval is the pause before a deferred or failed day is retried.
	WaitInterval time.Duration
	Location     *time.Location
	FormType     string
	IndexBaseURL string
	// Event names the day-completion notification; empty disables publishing.
	Event string
	RunID uuid.UUID
}

// Deps are the collaborators a Crawler drives.
type Deps struct {
	Fetcher     filing.Fetcher
	Checkpoints filing.CheckpointStore
	Pipeline    *pipeline.Pipeline
	Ingestor    *ingest.Ingestor
	// Publisher is optional.
	Publisher filing.Publisher
	Clock     filing.Clock
	Emitter   progress.Emitter
}

// Report summarises one Cycle.
type Report struct {
	Day           filing.Date
	Outcome       Outcome
	Transactions  int
	Fetched       int
	FetchFailures int
	Ingest        ingest.Summary
	Dur           time.Duration
}

// Notification is published after every completed day.
type Notification struct {
	Day          filing.Date `json:"day"`
	Transactions int         `json:"transactions"`
	Inserted     int         `json:"inserted"`
	Failed       int         `json:"failed"`
}

// Snapshot is the externally visible crawl status.
type Snapshot struct {
	RunID       string      `json:"run_id"`
	Day         filing.Date `json:"day"`
	Phase       string      `json:"phase"`
	DaysDone    int         `json:"days_done"`
	LastOutcome Outcome     `json:"last_outcome,omitempty"`
	LastError   string      `json:"last_error,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Crawler runs the crawl state machine.
type Crawler struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	// wait blocks for d or until ctx is done.
	wait func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	status Snapshot
}

// New builds a Crawler.
func New(deps Deps, cfg Config, logger *zap.Logger) *Crawler {
	if cfg.WaitInterval <= 0 {
		cfg.WaitInterval = DefaultWaitInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.FormType == "" {
		cfg.FormType = index.DefaultFormType
	}
	if cfg.IndexBaseURL == "" {
		cfg.IndexBaseURL = index.DefaultArchiveBaseURL
	}
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("crawl"),
		wait:   sleepCtx,
		status: Snapshot{RunID: cfg.RunID.String(), Phase: "idle"},
	}
}

// Snapshot returns the current crawl status.
func (c *Crawler) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Run crawls from start until the stop date is reached, ctx is cancelled or,
// outside unattended mode, the cursor reaches a day that is not yet complete.
// A zero start begins with yesterday. Cancellation is honoured only between
// cycles.
func (c *Crawler) Run(ctx context.Context, start filing.Date) error {
	if err := pipeline.ValidateBatchSize(c.cfg.BatchSize); err != nil {
		return fmt.Errorf("crawl config: %w", err)
	}
	if start.IsZero() {
		start = Yesterday(c.deps.Clock.Now(), c.cfg.Location)
	}
	state := State{Date: start}
	c.logger.Info("crawl starting",
		zap.Stringer("start", start),
		zap.Stringer("stop", c.cfg.Stop),
		zap.Int("batch_size", c.cfg.BatchSize),
		zap.Bool("unattended", c.cfg.Unattended))

	for {
		if !c.cfg.Stop.IsZero() && !state.Date.Before(c.cfg.Stop) {
			c.logger.Info("stop date reached", zap.Stringer("day", state.Date))
			c.setPhase(state.Date, "stopped")
			return nil
		}
		if err := ctx.Err(); err != nil {
			c.logger.Info("crawl interrupted", zap.Stringer("day", state.Date))
			c.setPhase(state.Date, "stopped")
			return nil
		}
		if !c.cfg.Unattended && !Eligible(state.Date, c.deps.Clock.Now(), c.cfg.Location) {
			c.logger.Info("caught up", zap.Stringer("day", state.Date))
			c.setPhase(state.Date, "stopped")
			return nil
		}

		next, report, err := c.Cycle(ctx, state)
		if err != nil {
			c.recordError(state.Date, err)
			return err
		}
		c.record(next.Date, report)
		state = next
	}
}

// Cycle runs one pass of the state machine for state.Date and returns the
// state to continue from.
func (c *Crawler) Cycle(ctx context.Context, state State) (State, Report, error) {
	day := state.Date
	report := Report{Day: day}
	now := c.deps.Clock.Now()

	if !Eligible(day, now, c.cfg.Location) {
		c.logger.Info("day not complete yet, waiting",
			zap.Stringer("day", day),
			zap.Duration("wait", c.cfg.WaitInterval))
		c.emit(progress.Event{Stage: progress.StageDayDeferred, Day: day})
		c.setPhase(day, "waiting")
		report.Outcome = OutcomeDeferred
		c.pause(ctx)
		return state, report, nil
	}

	start := time.Now()
	c.setPhase(day, "running")
	c.emit(progress.Event{Stage: progress.StageDayStart, Day: day})

	// A started day runs to completion; cancellation is honoured between cycles.
	dayCtx := context.WithoutCancel(ctx)

	txs, err := c.deps.Checkpoints.Load(dayCtx, day)
	switch {
	case err == nil:
		c.logger.Info("resuming from checkpoint", zap.Stringer("day", day), zap.Int("transactions", len(txs)))
		c.emit(progress.Event{Stage: progress.StageDayResumed, Day: day, Count: len(txs)})
		report.Outcome = OutcomeResumed
	case errors.Is(err, filing.ErrCheckpointCorrupt):
		c.logger.Warn("checkpoint unreadable, refetching", zap.Stringer("day", day), zap.Error(err))
		fallthrough
	case errors.Is(err, filing.ErrCheckpointNotFound):
		var retry bool
		txs, retry, err = c.fetchDay(dayCtx, day, &report)
		if err != nil {
			c.emitError(day, err)
			return state, report, err
		}
		if retry {
			report.Outcome = OutcomeRetry
			c.pause(ctx)
			return state, report, nil
		}
		if report.Outcome == OutcomeSkipped {
			c.emit(progress.Event{Stage: progress.StageDaySkipped, Day: day, Dur: time.Since(start)})
			report.Dur = time.Since(start)
			return Next(state), report, nil
		}
		report.Outcome = OutcomeDone
	default:
		err = fmt.Errorf("load checkpoint %s: %w", day, err)
		c.emitError(day, err)
		return state, report, err
	}

	report.Transactions = len(txs)
	summary := c.deps.Ingestor.Ingest(dayCtx, txs)
	report.Ingest = summary
	c.emit(progress.Event{
		Stage:      progress.StageIngestDone,
		Day:        day,
		Count:      summary.Total,
		Inserted:   summary.Inserted,
		Duplicates: summary.Duplicates,
		Failed:     summary.Failed,
		Dur:        summary.Dur,
	})

	c.publish(dayCtx, day, summary)

	report.Dur = time.Since(start)
	c.emit(progress.Event{
		Stage:      progress.StageDayDone,
		Day:        day,
		Count:      report.Transactions,
		Inserted:   summary.Inserted,
		Duplicates: summary.Duplicates,
		Failed:     summary.Failed,
		Dur:        report.Dur,
	})
	c.logger.Info("day done",
		zap.Stringer("day", day),
		zap.String("outcome", string(report.Outcome)),
		zap.Int("transactions", report.Transactions),
		zap.Int("inserted", summary.Inserted),
		zap.Int("failed", summary.Failed),
		zap.Duration("dur", report.Dur))
	return Next(state), report, nil
}

// fetchDay downloads and checkpoints the day. retry is set when an index
// failure should be retried after a wait; an empty day sets report.Outcome
// to OutcomeSkipped.
func (c *Crawler) fetchDay(ctx context.Context, day filing.Date, report *Report) (txs []filing.Transaction, retry bool, err error) {
	url := index.DailyIndexURL(c.cfg.IndexBaseURL, day)
	resp, err := c.deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		var statusErr *filing.StatusError
		if errors.As(err, &statusErr) &&
			(statusErr.Code == http.StatusNotFound || statusErr.Code == http.StatusForbidden) {
			c.logger.Info("no index for day, skipping", zap.Stringer("day", day), zap.Int("status", statusErr.Code))
			report.Outcome = OutcomeSkipped
			return nil, false, nil
		}
		if c.cfg.Unattended {
			c.logger.Warn("index fetch failed, will retry", zap.Stringer("day", day), zap.Error(err))
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("fetch index %s: %w", day, err)
	}

	entries, err := index.Decode(string(resp.Body), c.cfg.FormType)
	if err != nil {
		return nil, false, fmt.Errorf("decode index %s: %w", day, err)
	}
	if len(entries) == 0 {
		c.logger.Info("empty index, skipping", zap.Stringer("day", day))
		report.Outcome = OutcomeSkipped
		return nil, false, nil
	}
	c.logger.Info("fetching documents", zap.Stringer("day", day), zap.Int("entries", len(entries)))

	result, err := c.deps.Pipeline.Run(ctx, entries, c.cfg.BatchSize)
	if err != nil {
		return nil, false, fmt.Errorf("run pipeline %s: %w", day, err)
	}
	report.Fetched = result.Fetched
	report.FetchFailures = len(result.Failures)

	txs = result.Transactions
	if txs == nil {
		txs = []filing.Transaction{}
	}
	if err := c.deps.Checkpoints.Save(ctx, day, txs); err != nil {
		return nil, false, fmt.Errorf("save checkpoint %s: %w", day, err)
	}
	return txs, false, nil
}

func (c *Crawler) publish(ctx context.Context, day filing.Date, summary ingest.Summary) {
	if c.deps.Publisher == nil || c.cfg.Event == "" {
		return
	}
	msg := Notification{Day: day, Transactions: summary.Total, Inserted: summary.Inserted, Failed: summary.Failed}
	id, err := c.deps.Publisher.Publish(ctx, c.cfg.Event, msg)
	if err != nil {
		c.logger.Error("publish day notification", zap.Stringer("day", day), zap.Error(err))
		return
	}
	c.logger.Debug("day notification published", zap.Stringer("day", day), zap.String("message_id", id))
}

func (c *Crawler) pause(ctx context.Context) {
	if err := c.wait(ctx, c.cfg.WaitInterval); err != nil {
		c.logger.Debug("wait interrupted", zap.Error(err))
	}
}

func (c *Crawler) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(c.cfg.RunID)
	evt.TS = c.deps.Clock.Now().UTC()
	c.deps.Emitter.Emit(evt)
}

func (c *Crawler) emitError(day filing.Date, err error) {
	c.emit(progress.Event{Stage: progress.StageDayError, Day: day, Note: err.Error()})
}

func (c *Crawler) setPhase(day filing.Date, phase string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Day = day
	c.status.Phase = phase
	c.status.UpdatedAt = c.deps.Clock.Now().UTC()
}

func (c *Crawler) record(next filing.Date, report Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch report.Outcome {
	case OutcomeDone, OutcomeResumed, OutcomeSkipped:
		c.status.DaysDone++
	}
	c.status.Day = next
	c.status.LastOutcome = report.Outcome
	c.status.LastError = ""
	c.status.UpdatedAt = c.deps.Clock.Now().UTC()
}

func (c *Crawler) recordError(day filing.Date, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Day = day
	c.status.Phase = "failed"
	c.status.LastError = err.Error()
	c.status.UpdatedAt = c.deps.Clock.Now().UTC()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
