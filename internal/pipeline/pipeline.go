// Package pipeline downloads and parses the documents listed in a daily index
// in fixed-size batches, pausing after every batch to stay under the archive's
// request ceiling.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/index"
	"github.com/JakeFAU/form4-crawler/internal/parser"
	"github.com/JakeFAU/form4-crawler/internal/progress"
)

const (
	// MaxBatchSize is the number of documents allowed in flight per pause window.
	MaxBatchSize = 10
	// DefaultPause is the fixed wait after each batch.
	DefaultPause = time.Second
)

// ErrBatchSize is returned when the batch size is outside 1..MaxBatchSize.
var ErrBatchSize = fmt.Errorf("batch size must be between 1 and %d", MaxBatchSize)

// ParseFunc turns one fetched document into transactions.
type ParseFunc func(raw []byte, src parser.Source) ([]filing.Transaction, error)

// Config holds the pipeline settings.
type Config struct {
	ArchiveBaseURL string
	Pause          time.Duration
	RunID          [16]byte
}

// Failure records one document that could not be fetched or parsed.
type Failure struct {
	Path string
	URL  string
	Err  error
}

// Result is the outcome of one Run.
type Result struct {
	// Transactions holds the parsed records in index order.
	Transactions []filing.Transaction
	Failures     []Failure
	// Fetched counts documents that were fetched and parsed.
	Fetched int
	Batches int
}

// Pipeline fetches and parses index entries batch by batch.
type Pipeline struct {
	fetcher  filing.Fetcher
	parse    ParseFunc
	failures filing.FailureLog
	sleeper  filing.Sleeper
	cfg      Config
	emitter  progress.Emitter
	logger   *zap.Logger
}

// New builds a Pipeline. A nil parse selects parser.Parse.
func New(
	fetcher filing.Fetcher,
	parse ParseFunc,
	failures filing.FailureLog,
	sleeper filing.Sleeper,
	cfg Config,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Pipeline {
	if parse == nil {
		parse = parser.Parse
	}
	if cfg.Pause <= 0 {
		cfg.Pause = DefaultPause
	}
	if cfg.ArchiveBaseURL == "" {
		cfg.ArchiveBaseURL = index.DefaultArchiveBaseURL
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:  fetcher,
		parse:    parse,
		failures: failures,
		sleeper:  sleeper,
		cfg:      cfg,
		emitter:  emitter,
		logger:   logger.Named("pipeline"),
	}
}

// ValidateBatchSize reports ErrBatchSize for sizes outside 1..MaxBatchSize.
func ValidateBatchSize(n int) error {
	if n < 1 || n > MaxBatchSize {
		return fmt.Errorf("%w: got %d", ErrBatchSize, n)
	}
	return nil
}

type outcome struct {
	txs []filing.Transaction
	err error
	url string
}

// Run processes len(entries)/batchSize full batches; a trailing partial batch
// is not fetched. Fetches run detached from ctx cancellation so a started
// batch always finishes. Per-document failures never abort the run.
func (p *Pipeline) Run(ctx context.Context, entries []filing.IndexEntry, batchSize int) (Result, error) {
	if err := ValidateBatchSize(batchSize); err != nil {
		return Result{}, err
	}
	fetchCtx := context.WithoutCancel(ctx)
	batches := len(entries) / batchSize
	result := Result{Batches: batches}

	for b := 0; b < batches; b++ {
		chunk := entries[b*batchSize : (b+1)*batchSize]
		start := time.Now()
		outcomes := make([]outcome, len(chunk))

		var g errgroup.Group
		for i, entry := range chunk {
			g.Go(func() error {
				outcomes[i] = p.process(fetchCtx, entry)
				return nil
			})
		}
		_ = g.Wait()

		failed := 0
		for i, out := range outcomes {
			if out.err != nil {
				failed++
				result.Failures = append(result.Failures, p.recordFailure(chunk[i], out))
				continue
			}
			result.Fetched++
			result.Transactions = append(result.Transactions, out.txs...)
		}
		p.emitter.Emit(progress.Event{
			RunID:  p.cfg.RunID,
			TS:     time.Now().UTC(),
			Stage:  progress.StageFetchBatch,
			Day:    chunk[0].Filed,
			Batch:  b,
			Total:  batches,
			Count:  len(chunk),
			Failed: failed,
			Dur:    time.Since(start),
		})
		p.logger.Info("fetch batch",
			zap.String("progress", fmt.Sprintf("%d/%d", b+1, batches)),
			zap.Int("failed", failed))
		p.sleeper.Sleep(p.cfg.Pause)
	}
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, entry filing.IndexEntry) outcome {
	url := index.DocumentURL(p.cfg.ArchiveBaseURL, entry.Path)
	resp, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return outcome{err: fmt.Errorf("fetch document: %w", err), url: url}
	}
	txs, err := p.parse(resp.Body, parser.Source{URL: url, Filed: entry.Filed})
	if err != nil {
		return outcome{err: fmt.Errorf("parse document: %w", err), url: url}
	}
	return outcome{txs: txs, url: url}
}

func (p *Pipeline) recordFailure(entry filing.IndexEntry, out outcome) Failure {
	p.logger.Warn("document failed", zap.String("url", out.url), zap.Error(out.err))
	p.emitter.Emit(progress.Event{
		RunID: p.cfg.RunID,
		TS:    time.Now().UTC(),
		Stage: progress.StageFetchFailed,
		Day:   entry.Filed,
		URL:   out.url,
		Note:  out.err.Error(),
	})
	if p.failures != nil {
		if err := p.failures.Append(entry.Path); err != nil {
			p.logger.Error("append failure log", zap.String("path", entry.Path), zap.Error(err))
		}
	}
	return Failure{Path: entry.Path, URL: out.url, Err: out.err}
}
