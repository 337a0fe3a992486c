// Package app initializes and holds the long-lived backends of the crawler:
// checkpoint storage, the relational store, the run repository and the
// optional Pub/Sub publisher.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/form4-crawler/internal/config"
	"github.com/JakeFAU/form4-crawler/internal/filing"
	pubsubpublisher "github.com/JakeFAU/form4-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/form4-crawler/internal/report"
	"github.com/JakeFAU/form4-crawler/internal/storage/gcs"
	"github.com/JakeFAU/form4-crawler/internal/storage/local"
	"github.com/JakeFAU/form4-crawler/internal/storage/memory"
	"github.com/JakeFAU/form4-crawler/internal/storage/postgres"
	"github.com/JakeFAU/form4-crawler/internal/store"
)

// App holds the shared backends. It is built once at startup and closed on
// shutdown.
type App struct {
	logger      *zap.Logger
	checkpoints filing.CheckpointStore
	failures    filing.FailureLog
	store       filing.Store
	runs        store.RunRepository
	reports     report.Source
	publisher   filing.Publisher
	ready       func(ctx context.Context) error
	closers     []func() error
}

// GetLogger returns the application logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetCheckpoints returns the configured checkpoint backend.
func (a *App) GetCheckpoints() filing.CheckpointStore {
	return a.checkpoints
}

// GetFailureLog returns the local failure log.
func (a *App) GetFailureLog() filing.FailureLog {
	return a.failures
}

// GetStore returns the relational store (Postgres or in-memory).
func (a *App) GetStore() filing.Store {
	return a.store
}

// GetRuns returns the per-day run repository.
func (a *App) GetRuns() store.RunRepository {
	return a.runs
}

// GetReports returns the report source backed by the relational store.
func (a *App) GetReports() report.Source {
	return a.reports
}

// GetPublisher returns the day-completion publisher, or nil when no topic is
// configured.
func (a *App) GetPublisher() filing.Publisher {
	return a.publisher
}

// Ready reports whether the relational store is reachable.
func (a *App) Ready(ctx context.Context) error {
	if a.ready == nil {
		return nil
	}
	return a.ready(ctx)
}

// New builds every backend selected by cfg. clientOpts are passed to the
// Google Cloud clients. It fails fast: a backend that cannot be initialized
// closes whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, clientOpts ...option.ClientOption) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger.Named("app")}

	if err := a.initCheckpoints(ctx, cfg, clientOpts); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initDatabase(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx, cfg, clientOpts); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info("application services initialized")
	return a, nil
}

func (a *App) initCheckpoints(ctx context.Context, cfg config.Config, clientOpts []option.ClientOption) error {
	// The failure log always lives on local disk.
	localStore, err := local.New(local.Config{Dir: cfg.Checkpoint.Dir})
	if err != nil {
		return fmt.Errorf("init local checkpoints: %w", err)
	}
	a.failures = localStore

	switch cfg.Checkpoint.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			return fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		checkpoints, err := gcs.New(client, gcs.Config{Bucket: cfg.Checkpoint.GCSBucket, Prefix: cfg.Checkpoint.GCSPrefix})
		if err != nil {
			return fmt.Errorf("init gcs checkpoints: %w", err)
		}
		a.logger.Info("using gcs checkpoints", zap.String("bucket", cfg.Checkpoint.GCSBucket))
		a.checkpoints = checkpoints
	case "local":
		a.logger.Info("using local checkpoints", zap.String("dir", cfg.Checkpoint.Dir))
		a.checkpoints = localStore
	default:
		return fmt.Errorf("unknown checkpoint backend: %s", cfg.Checkpoint.Backend)
	}
	return nil
}

func (a *App) initDatabase(ctx context.Context, cfg config.Config) error {
	if cfg.DB.DSN == "" {
		a.logger.Warn("db.dsn not set, transactions are kept in memory only")
		mem := memory.NewStore()
		a.store = mem
		a.reports = mem
		a.runs = memory.NewRunStore()
		return nil
	}
	pg, err := postgres.Open(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	a.closers = append(a.closers, func() error { pg.Close(); return nil })
	a.logger.Info("connected to postgres")
	a.store = pg
	a.reports = pg
	a.runs = postgres.NewRunStore(pg)
	a.ready = pg.Ping
	return nil
}

func (a *App) initPublisher(ctx context.Context, cfg config.Config, clientOpts []option.ClientOption) error {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		a.logger.Info("pubsub not configured, day notifications disabled")
		return nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, clientOpts...)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	pub := pubsubpublisher.New(client.Topic(cfg.PubSub.TopicName))
	// Stop flushes pending publishes and must run before the client closes.
	a.closers = append(a.closers, func() error { pub.Close(); return nil })
	a.logger.Info("publishing day notifications", zap.String("topic", cfg.PubSub.TopicName))
	a.publisher = pub
	return nil
}

// Close shuts the backends down in reverse order of creation.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing services", zap.Error(err))
	}
}
