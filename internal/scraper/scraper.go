package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shedview/shedview-api/internal/crypto"
	"github.com/shedview/shedview-api/internal/models"
	"github.com/shedview/shedview-api/internal/repository"
)

// Config holds scraper engine settings.
type Config struct {
	// DaysAhead is the booking window size: [today, today+DaysAhead].
	DaysAhead int
	// Workers bounds the per-club calendar fetch fan-out. The upstream
	// WAF blocks unbounded request bursts.
	Workers int
	// Timeout applies to each upstream HTTP call.
	Timeout time.Duration
	Debug   bool
}

// ScrapeResult summarizes one completed scrape.
type ScrapeResult struct {
	Success       bool   `json:"success"`
	DurationMs    int64  `json:"duration_ms"`
	Error         string `json:"error,omitempty"`
	BoatsCount    int    `json:"boats_count"`
	BookingsCount int    `json:"bookings_count"`
	AssetsFailed  int    `json:"assets_failed,omitempty"`
	JobID         string `json:"job_id,omitempty"`
}

// Engine runs scrapes and commits their snapshots.
type Engine struct {
	repos     *repository.Repositories
	encryptor *crypto.Encryptor
	cfg       Config
	logger    *slog.Logger

	// newSource builds the data source for a scrape; replaced in tests.
	newSource func(baseURL string, creds crypto.Credentials, timeout time.Duration) (DataSource, error)
	now       func() time.Time
}

// New creates a scraper engine.
func New(repos *repository.Repositories, encryptor *crypto.Encryptor, cfg Config, logger *slog.Logger) *Engine {
	if cfg.DaysAhead <= 0 {
		cfg.DaysAhead = 7
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repos:     repos,
		encryptor: encryptor,
		cfg:       cfg,
		logger:    logger.With("component", "scraper"),
		newSource: func(baseURL string, creds crypto.Credentials, timeout time.Duration) (DataSource, error) {
			return NewRevsportSource(baseURL, creds, timeout)
		},
		now: time.Now,
	}
}

// ScrapeClub runs one full scrape for a club: login, asset list, bounded
// calendar fan-out, normalization and transactional commit. It does not
// return before the ScrapeJob row holds the terminal status.
func (e *Engine) ScrapeClub(ctx context.Context, club *models.Club) (*ScrapeResult, error) {
	start := e.now()
	logger := e.logger.With("club_id", club.ID, "subdomain", club.Subdomain)

	job := &models.ScrapeJob{ClubID: club.ID, StartedAt: start}
	if err := e.repos.ScrapeJob.Create(ctx, job); err != nil {
		return &ScrapeResult{Error: err.Error()}, fmt.Errorf("failed to record scrape job: %w", err)
	}

	snap, assetsFailed, scrapeErr := e.scrape(ctx, club, logger)

	var boats, bookings int
	if scrapeErr == nil {
		boats, bookings, scrapeErr = e.repos.Snapshot.CommitSnapshot(ctx, club.ID, snap)
		if scrapeErr != nil {
			scrapeErr = fmt.Errorf("failed to commit snapshot: %w", scrapeErr)
		}
	}

	completed := e.now()
	job.CompletedAt = &completed
	job.DurationMs = completed.Sub(start).Milliseconds()
	job.BoatsCount = boats
	job.BookingsCount = bookings

	result := &ScrapeResult{
		DurationMs:    job.DurationMs,
		BoatsCount:    boats,
		BookingsCount: bookings,
		AssetsFailed:  assetsFailed,
		JobID:         job.ID,
	}

	if scrapeErr != nil {
		job.Status = models.ScrapeStatusFailed
		job.Error = scrapeErr.Error()
		result.Error = scrapeErr.Error()
		if err := e.repos.ScrapeJob.Finish(ctx, job); err != nil {
			logger.Error("failed to finalize scrape job", "job_id", job.ID, "error", err)
		}
		logger.Error("scrape failed", "job_id", job.ID, "duration_ms", job.DurationMs, "error", scrapeErr)
		return result, scrapeErr
	}

	job.Status = models.ScrapeStatusCompleted
	result.Success = true
	if err := e.repos.ScrapeJob.Finish(ctx, job); err != nil {
		logger.Error("failed to finalize scrape job", "job_id", job.ID, "error", err)
	}

	logger.Info("scrape completed",
		"job_id", job.ID,
		"duration_ms", job.DurationMs,
		"boats", boats,
		"bookings", bookings,
		"assets_failed", assetsFailed,
	)
	return result, nil
}

// scrape performs the upstream half of a scrape and returns the
// normalized snapshot plus the count of assets whose calendars failed.
func (e *Engine) scrape(ctx context.Context, club *models.Club, logger *slog.Logger) (*repository.Snapshot, int, error) {
	if club.DataSourceURL == "" {
		return nil, 0, &ConfigError{Reason: "club has no data source URL"}
	}
	if club.CredentialsEncrypted == "" {
		return nil, 0, &ConfigError{Reason: "club has no encrypted credentials"}
	}

	creds, err := e.encryptor.DecryptCredentials(club.CredentialsEncrypted)
	if err != nil {
		return nil, 0, &AuthError{Reason: "credentials decrypt failed", Err: err}
	}

	source, err := e.newSource(club.DataSourceURL, creds, e.cfg.Timeout)
	if err != nil {
		return nil, 0, &UpstreamError{Reason: "failed to create data source", Err: err}
	}

	if err := e.withRetry(ctx, func() error { return source.Login(ctx) }); err != nil {
		return nil, 0, err
	}

	var assets []Asset
	if err := e.withRetry(ctx, func() error {
		var listErr error
		assets, listErr = source.ListAssets(ctx)
		return listErr
	}); err != nil {
		return nil, 0, err
	}

	from := e.now()
	to := from.AddDate(0, 0, e.cfg.DaysAhead)

	fetched, assetsFailed := e.fetchCalendars(ctx, source, assets, from, to, logger)
	if len(assets) > 0 && assetsFailed == len(assets) {
		return nil, assetsFailed, &UpstreamError{Reason: "every asset calendar fetch failed"}
	}

	snap := e.normalize(assets, fetched, from, to, logger)
	return snap, assetsFailed, nil
}

// fetchCalendars pulls per-asset calendars through a bounded worker pool.
// Individual failures are collected, not fatal.
func (e *Engine) fetchCalendars(ctx context.Context, source DataSource, assets []Asset, from, to time.Time, logger *slog.Logger) (map[string][]RawBooking, int) {
	type outcome struct {
		sourceID string
		bookings []RawBooking
		err      error
	}

	work := make(chan Asset)
	results := make(chan outcome)

	workers := e.cfg.Workers
	if workers > len(assets) {
		workers = len(assets)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for asset := range work {
				var bookings []RawBooking
				err := e.withRetry(ctx, func() error {
					var fetchErr error
					bookings, fetchErr = source.ListBookings(ctx, asset, from, to)
					return fetchErr
				})
				results <- outcome{sourceID: asset.SourceID, bookings: bookings, err: err}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, asset := range assets {
			select {
			case work <- asset:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	fetched := make(map[string][]RawBooking, len(assets))
	failed := 0
	for res := range results {
		if res.err != nil {
			failed++
			logger.Warn("asset calendar fetch failed", "source_id", res.sourceID, "error", res.err)
			continue
		}
		fetched[res.sourceID] = res.bookings
	}
	return fetched, failed
}

// normalize turns raw assets and calendars into a commit-ready snapshot.
// Bookings with unparseable fields or dates outside the window are
// discarded.
func (e *Engine) normalize(assets []Asset, fetched map[string][]RawBooking, from, to time.Time, logger *slog.Logger) *repository.Snapshot {
	windowFrom := from.Format("2006-01-02")
	windowTo := to.Format("2006-01-02")

	snap := &repository.Snapshot{
		WindowFrom: windowFrom,
		WindowTo:   windowTo,
	}

	for _, asset := range assets {
		parsed := ParseBoatName(asset.RawName)

		metadata := map[string]any{"raw_name": asset.RawName}
		if parsed.Nickname != "" {
			metadata["nickname"] = parsed.Nickname
		}

		snap.Boats = append(snap.Boats, &models.Boat{
			SourceID:       asset.SourceID,
			Name:           parsed.Name,
			BoatType:       parsed.BoatType,
			BoatCategory:   parsed.Category,
			Classification: parsed.Classification,
			WeightKG:       parsed.WeightKG,
			Metadata:       metadata,
		})

		for _, raw := range fetched[asset.SourceID] {
			date, ok := NormalizeDate(raw.Date)
			if !ok {
				logger.Warn("discarding booking with unparseable date", "source_id", asset.SourceID, "date", raw.Date)
				continue
			}
			if date < windowFrom || date > windowTo {
				continue
			}
			start, okStart := NormalizeTime(raw.StartTime)
			end, okEnd := NormalizeTime(raw.EndTime)
			if !okStart || !okEnd {
				logger.Warn("discarding booking with unparseable time",
					"source_id", asset.SourceID, "start", raw.StartTime, "end", raw.EndTime)
				continue
			}

			snap.Bookings = append(snap.Bookings, &repository.SnapshotBooking{
				BoatSourceID: asset.SourceID,
				BookingDate:  date,
				StartTime:    start,
				EndTime:      end,
				MemberName:   collapseWhitespace(raw.MemberName),
			})
		}
	}

	return snap
}

// withRetry runs fn, retrying transport-level (upstream) failures once
// with backoff. Auth and config failures are never retried.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	const attempts = 2
	backoff := time.Second

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsUpstreamError(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
