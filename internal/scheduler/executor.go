// Package scheduler decides when clubs are scraped and serializes
// periodic work with on-demand sync requests.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shedview/shedview-api/internal/models"
	"github.com/shedview/shedview-api/internal/scraper"
)

// ErrSaturated is returned when the global concurrent-scrape cap is
// reached and the request is not willing to wait.
var ErrSaturated = errors.New("scrape slots saturated")

// ScrapeRunner is the scrape entry point the executor drives.
type ScrapeRunner interface {
	ScrapeClub(ctx context.Context, club *models.Club) (*scraper.ScrapeResult, error)
}

// Executor enforces the single-flight invariant per club and the global
// cap on concurrent scrapes. The in-flight map is the only in-process
// mutable state in the system; everything else lives in the database.
//
// The HTTP server constructs its own Executor (no cron) for on-demand
// sync, so API and scheduler processes coexist even when deployed
// together.
type Executor struct {
	runner ScrapeRunner
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	active   int

	slots chan struct{}
}

// NewExecutor creates an executor with the given global concurrency cap.
func NewExecutor(runner ScrapeRunner, maxConcurrent int, logger *slog.Logger) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		runner:   runner,
		logger:   logger.With("component", "executor"),
		inflight: make(map[string]struct{}),
		slots:    make(chan struct{}, maxConcurrent),
	}
}

// RequestOnDemand runs a scrape for the club and blocks until it
// finishes, waiting for a free slot if the cap is reached. If a scrape
// for the club is already in flight it returns ErrScrapeInProgress
// immediately instead of starting a second one.
//
// The scrape itself runs detached from the caller's context: if the
// caller disconnects the scrape completes and its data lands; only the
// response is discarded.
func (x *Executor) RequestOnDemand(ctx context.Context, club *models.Club) (*scraper.ScrapeResult, error) {
	if !x.claim(club.ID) {
		return nil, scraper.ErrScrapeInProgress
	}
	defer x.release(club.ID)

	select {
	case x.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-x.slots }()

	return x.runner.ScrapeClub(context.WithoutCancel(ctx), club)
}

// TryScrape runs a periodic scrape without waiting: it returns
// ErrScrapeInProgress when the club is already in flight and
// ErrSaturated when no slot is free (the tick retries later).
func (x *Executor) TryScrape(ctx context.Context, club *models.Club) (*scraper.ScrapeResult, error) {
	if !x.claim(club.ID) {
		return nil, scraper.ErrScrapeInProgress
	}
	defer x.release(club.ID)

	select {
	case x.slots <- struct{}{}:
	default:
		return nil, ErrSaturated
	}
	defer func() { <-x.slots }()

	return x.runner.ScrapeClub(ctx, club)
}

// InFlight reports whether a scrape for the club is currently running.
func (x *Executor) InFlight(clubID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.inflight[clubID]
	return ok
}

// Active returns the number of scrapes currently running.
func (x *Executor) Active() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.active
}

func (x *Executor) claim(clubID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.inflight[clubID]; ok {
		return false
	}
	x.inflight[clubID] = struct{}{}
	x.active++
	return true
}

func (x *Executor) release(clubID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.inflight, clubID)
	x.active--
}
