// Package main is the entry point for the shedview API server. It
// serves the tenant-scoped public and admin routes and runs its own
// scrape executor for on-demand sync; periodic scraping lives in the
// separate shedview-scheduler process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shedview/shedview-api/internal/auth"
	"github.com/shedview/shedview-api/internal/config"
	"github.com/shedview/shedview-api/internal/crypto"
	"github.com/shedview/shedview-api/internal/database"
	"github.com/shedview/shedview-api/internal/http/routes"
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

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		logger.Error("invalid encryption key", "error", err)
		os.Exit(1)
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)

	engine := scraper.New(repos, encryptor, scraper.Config{
		DaysAhead: cfg.DaysAhead,
		Workers:   cfg.ScraperWorkers,
		Timeout:   cfg.UpstreamTimeout,
		Debug:     cfg.Debug,
	}, logger)
	executor := scheduler.NewExecutor(engine, cfg.ScrapeConcurrency, logger)

	customDomains, err := repos.Club.ListCustomDomains(context.Background())
	if err != nil {
		logger.Warn("failed to load custom domains for CORS", "error", err)
	}

	router := routes.New(routes.Deps{
		Cfg:           cfg,
		DB:            db,
		Repos:         repos,
		Encryptor:     encryptor,
		Issuer:        issuer,
		Executor:      executor,
		CustomDomains: customDomains,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // sync requests block on a full scrape
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_domain", cfg.BaseDomain)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
