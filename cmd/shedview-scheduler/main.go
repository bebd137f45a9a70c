// Package main is the entry point for the scrape scheduler. Exactly one
// instance runs per deployment; the single-flight invariant depends on
// it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shedview/shedview-api/internal/config"
	"github.com/shedview/shedview-api/internal/crypto"
	"github.com/shedview/shedview-api/internal/database"
	"github.com/shedview/shedview-api/internal/logging"
	"github.com/shedview/shedview-api/internal/repository"
	"github.com/shedview/shedview-api/internal/scheduler"
	"github.com/shedview/shedview-api/internal/scraper"
)

func main() {
	logger := logging.SetDefault()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)

	// A previous process that died mid-scrape leaves running rows.
	staleCount, err := repos.ScrapeJob.MarkStaleRunningFailed(context.Background(), time.Hour)
	if err != nil {
		logger.Warn("failed to clean up stale scrape jobs", "error", err)
	} else if staleCount > 0 {
		logger.Info("cleaned up stale scrape jobs", "count", staleCount)
	}

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		logger.Error("invalid encryption key", "error", err)
		os.Exit(1)
	}

	engine := scraper.New(repos, encryptor, scraper.Config{
		DaysAhead: cfg.DaysAhead,
		Workers:   cfg.ScraperWorkers,
		Timeout:   cfg.UpstreamTimeout,
		Debug:     cfg.Debug,
	}, logger)

	executor := scheduler.NewExecutor(engine, cfg.ScrapeConcurrency, logger)
	sched := scheduler.New(executor, repos.Club, repos.ScrapeJob, scheduler.Config{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	logger.Info("shutting down scheduler")
	cancel()
	sched.Stop()
	logger.Info("scheduler stopped")
}
