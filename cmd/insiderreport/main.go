// Package main writes the insider activity summary as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/JakeFAU/form4-crawler/internal/app"
	"github.com/JakeFAU/form4-crawler/internal/clock/system"
	"github.com/JakeFAU/form4-crawler/internal/config"
	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/logging"
	"github.com/JakeFAU/form4-crawler/internal/report"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	output := flag.String("output", "", "CSV destination; overrides report.output (default stdout)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *output != "" {
		cfg.Report.Output = *output
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
	_ = logger.Sync()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "report failed: %v\n", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer services.Close()

	loc, _ := cfg.Location()
	since := filing.DateOf(system.New().Now(), loc).AddDays(-cfg.Report.LookbackDays)
	rows, err := report.Build(ctx, services.GetReports(), since)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	var w io.Writer = os.Stdout
	if cfg.Report.Output != "" {
		f, err := os.Create(cfg.Report.Output)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := report.WriteCSV(w, rows); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("report written", zap.Stringer("since", since), zap.Int("rows", len(rows)))
	return nil
}
