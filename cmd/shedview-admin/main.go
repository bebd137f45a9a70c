// Package main is the provisioning CLI: create clubs and admin users,
// set upstream credentials, seed display config and force a sync.
//
// Usage:
//
//	shedview-admin create-club -name "LMRC" -subdomain lmrc [-custom-domain board.example] [-url https://...]
//	shedview-admin create-user -club <subdomain> -email a@b.c -password secret123 [-full-name "A B"]
//	shedview-admin set-credentials -club <subdomain> -username u -password p [-url https://...]
//	shedview-admin seed-config -club <subdomain> -file config.json
//	shedview-admin force-sync -club <subdomain>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shedview/shedview-api/internal/config"
	"github.com/shedview/shedview-api/internal/crypto"
	"github.com/shedview/shedview-api/internal/database"
	"github.com/shedview/shedview-api/internal/logging"
	"github.com/shedview/shedview-api/internal/provision"
	"github.com/shedview/shedview-api/internal/repository"
	"github.com/shedview/shedview-api/internal/scheduler"
	"github.com/shedview/shedview-api/internal/scraper"
)

func main() {
	logger := logging.SetDefault()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: shedview-admin <create-club|create-user|set-credentials|seed-config|force-sync> [flags]")
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

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

	svc := provision.New(repos, encryptor, logger)
	ctx := context.Background()

	switch command {
	case "create-club":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		name := fs.String("name", "", "club display name")
		subdomain := fs.String("subdomain", "", "unique subdomain")
		customDomain := fs.String("custom-domain", "", "optional custom domain")
		sourceURL := fs.String("url", "", "upstream booking site URL")
		_ = fs.Parse(args)

		club, err := svc.CreateClub(ctx, *name, *subdomain, *customDomain, *sourceURL)
		exitOn(logger, err)
		fmt.Println(club.ID)

	case "create-user":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		clubSub := fs.String("club", "", "club subdomain")
		email := fs.String("email", "", "admin email")
		password := fs.String("password", "", "password (min 8 chars)")
		fullName := fs.String("full-name", "", "display name")
		_ = fs.Parse(args)

		club, err := repos.Club.GetBySubdomain(ctx, *clubSub)
		exitOn(logger, err)
		user, err := svc.CreateAdminUser(ctx, club.ID, *email, *password, *fullName)
		exitOn(logger, err)
		fmt.Println(user.ID)

	case "set-credentials":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		clubSub := fs.String("club", "", "club subdomain")
		username := fs.String("username", "", "upstream username")
		password := fs.String("password", "", "upstream password")
		sourceURL := fs.String("url", "", "upstream booking site URL (optional)")
		_ = fs.Parse(args)

		club, err := repos.Club.GetBySubdomain(ctx, *clubSub)
		exitOn(logger, err)
		exitOn(logger, svc.SetCredentials(ctx, club.ID, *sourceURL, *username, *password))

	case "seed-config":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		clubSub := fs.String("club", "", "club subdomain")
		file := fs.String("file", "", "JSON file with branding/display_config/tv_display_config")
		_ = fs.Parse(args)

		data, err := os.ReadFile(*file)
		exitOn(logger, err)
		var docs struct {
			Branding        map[string]any `json:"branding"`
			DisplayConfig   map[string]any `json:"display_config"`
			TVDisplayConfig map[string]any `json:"tv_display_config"`
		}
		exitOn(logger, json.Unmarshal(data, &docs))

		club, err := repos.Club.GetBySubdomain(ctx, *clubSub)
		exitOn(logger, err)
		exitOn(logger, svc.SeedDisplayConfig(ctx, club.ID, docs.Branding, docs.DisplayConfig, docs.TVDisplayConfig))

	case "force-sync":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		clubSub := fs.String("club", "", "club subdomain")
		_ = fs.Parse(args)

		club, err := repos.Club.GetBySubdomain(ctx, *clubSub)
		exitOn(logger, err)

		engine := scraper.New(repos, encryptor, scraper.Config{
			DaysAhead: cfg.DaysAhead,
			Workers:   cfg.ScraperWorkers,
			Timeout:   cfg.UpstreamTimeout,
		}, logger)
		executor := scheduler.NewExecutor(engine, 1, logger)

		start := time.Now()
		result, err := executor.RequestOnDemand(ctx, club)
		exitOn(logger, err)
		logger.Info("sync completed",
			"boats", result.BoatsCount,
			"bookings", result.BookingsCount,
			"duration", time.Since(start).Round(time.Millisecond),
		)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		os.Exit(2)
	}
}

func exitOn(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
