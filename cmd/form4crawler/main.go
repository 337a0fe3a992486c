// Package main wires together the Form 4 crawler binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/form4-crawler/internal/api"
	"github.com/JakeFAU/form4-crawler/internal/app"
	"github.com/JakeFAU/form4-crawler/internal/clock/system"
	"github.com/JakeFAU/form4-crawler/internal/config"
	"github.com/JakeFAU/form4-crawler/internal/crawl"
	collyfetcher "github.com/JakeFAU/form4-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/form4-crawler/internal/ingest"
	"github.com/JakeFAU/form4-crawler/internal/logging"
	"github.com/JakeFAU/form4-crawler/internal/metrics"
	"github.com/JakeFAU/form4-crawler/internal/pipeline"
	"github.com/JakeFAU/form4-crawler/internal/progress"
	"github.com/JakeFAU/form4-crawler/internal/progress/sinks"
)

const (
	shutdownTimeout = 10 * time.Second
	notifyEvent     = "day_done"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	start := flag.String("start", "", "First day to crawl (YYYY-MM-DD); overrides crawler.start_date")
	stop := flag.String("stop", "", "Day to stop at, exclusive (YYYY-MM-DD); overrides crawler.stop_date")
	unattended := flag.Bool("unattended", false, "Keep running and wait for each new day; overrides crawler.unattended")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *start != "" {
		cfg.Crawler.StartDate = *start
	}
	if *stop != "" {
		cfg.Crawler.StopDate = *stop
	}
	if *unattended {
		cfg.Crawler.Unattended = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	runErr := run(ctx, cfg, logger)
	cancel()
	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "crawl failed: %v\n", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, baseLogger *zap.Logger) error {
	runID := uuid.New()
	logger := logging.ForRun(baseLogger, runID.String())

	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer services.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   cfg.MaxBatchWait(),
		Logger:         logger,
	},
		sinks.NewLogSink(logger),
		promSink,
		sinks.NewStoreSink(services.GetRuns(), logger),
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close", zap.Error(err))
		}
	}()

	httpMetrics, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	fetcher := httpMetrics.InstrumentFetcher(collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	}, logger))
	pipe := pipeline.New(
		fetcher,
		nil,
		services.GetFailureLog(),
		system.Sleeper{},
		pipeline.Config{
			ArchiveBaseURL: cfg.Crawler.ArchiveBaseURL,
			Pause:          cfg.Pause(),
			RunID:          progress.UUIDToBytes(runID),
		},
		hub,
		logger,
	)

	// Config.Validate has already parsed these.
	loc, _ := cfg.Location()
	startDay, _ := cfg.StartDate()
	stopDay, _ := cfg.StopDate()

	var event string
	if services.GetPublisher() != nil {
		event = notifyEvent
	}
	crawler := crawl.New(crawl.Deps{
		Fetcher:     fetcher,
		Checkpoints: services.GetCheckpoints(),
		Pipeline:    pipe,
		Ingestor:    ingest.New(services.GetStore(), cfg.Crawler.IngestConcurrency, logger),
		Publisher:   services.GetPublisher(),
		Clock:       system.New(),
		Emitter:     hub,
	}, crawl.Config{
		Stop:         stopDay,
		BatchSize:    cfg.Crawler.BatchSize,
		Unattended:   cfg.Crawler.Unattended,
		WaitInterval: cfg.WaitInterval(),
		Location:     loc,
		FormType:     cfg.Crawler.FormType,
		IndexBaseURL: cfg.Crawler.IndexBaseURL,
		Event:        event,
		RunID:        runID,
	}, logger)

	if cfg.Server.Enabled {
		apiServer := api.NewServer(api.Options{
			Status:   crawler,
			Days:     services.GetRuns(),
			Ready:    services.Ready,
			Gatherer: registry,
			Metrics:  httpMetrics,
		}, logger)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http server started", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", zap.Error(err))
			}
		}()
	}

	if err := crawler.Run(ctx, startDay); err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}
	logger.Info("crawl finished", zap.Int("days", crawler.Snapshot().DaysDone))
	return nil
}
