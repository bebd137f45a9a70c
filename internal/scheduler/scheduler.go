package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shedview/shedview-api/internal/models"
	"github.com/shedview/shedview-api/internal/repository"
	"github.com/shedview/shedview-api/internal/scraper"
)

// Cadence intervals per time-of-day bucket, club-local time.
const (
	PeakInterval  = 2 * time.Minute
	DayInterval   = 5 * time.Minute
	NightInterval = 10 * time.Minute
)

// Config holds scheduler settings.
type Config struct {
	// TickSpec is the cron expression (with seconds) for due evaluation.
	TickSpec string
	// ShutdownGracePeriod bounds the wait for in-flight scrapes on stop.
	ShutdownGracePeriod time.Duration
}

// Scheduler drives periodic scrapes. One instance per deployment; the
// single-flight invariant assumes no second scheduler process.
type Scheduler struct {
	exec   *Executor
	clubs  repository.ClubRepository
	jobs   repository.ScrapeJobRepository
	cfg    Config
	logger *slog.Logger
	cron   *cron.Cron

	// now is replaced in tests to pin the clock.
	now func() time.Time
}

// New creates a scheduler around an executor.
func New(exec *Executor, clubs repository.ClubRepository, jobs repository.ScrapeJobRepository, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.TickSpec == "" {
		cfg.TickSpec = "*/30 * * * * *"
	}
	if cfg.ShutdownGracePeriod <= 0 {
		cfg.ShutdownGracePeriod = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		exec:   exec,
		clubs:  clubs,
		jobs:   jobs,
		cfg:    cfg,
		logger: logger.With("component", "scheduler"),
		now:    time.Now,
	}
}

// Start runs one immediate pass across all clubs, then begins the cron
// tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("starting", "tick", s.cfg.TickSpec)

	s.Tick(ctx)

	s.cron = cron.New(cron.WithSeconds())
	if _, err := s.cron.AddFunc(s.cfg.TickSpec, func() { s.Tick(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the tick loop and waits up to the grace period for
// in-flight scrapes. Upstream calls are never cut mid-response.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping, waiting for in-flight scrapes", "grace_period", s.cfg.ShutdownGracePeriod)
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	deadline := time.Now().Add(s.cfg.ShutdownGracePeriod)
	for time.Now().Before(deadline) {
		if s.exec.Active() == 0 {
			s.logger.Info("all scrapes completed")
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	s.logger.Warn("shutdown grace period exceeded", "active", s.exec.Active())
}

// Tick evaluates every active club and launches scrapes for those due.
func (s *Scheduler) Tick(ctx context.Context) {
	clubs, err := s.clubs.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list clubs", "error", err)
		return
	}

	for _, club := range clubs {
		due, err := s.isDue(ctx, club)
		if err != nil {
			s.logger.Error("failed to evaluate club", "club_id", club.ID, "error", err)
			continue
		}
		if !due {
			continue
		}

		go func(club *models.Club) {
			_, err := s.exec.TryScrape(ctx, club)
			switch {
			case errors.Is(err, scraper.ErrScrapeInProgress):
				// A previous tick or an on-demand sync got there first.
			case errors.Is(err, ErrSaturated):
				s.logger.Info("scrape deferred, slots saturated", "club_id", club.ID)
			case err != nil:
				// Failure details are already on the scrape job.
				s.logger.Warn("periodic scrape failed", "club_id", club.ID, "error", err)
			}
		}(club)
	}
}

// isDue checks whether the club's last success is older than the
// interval for the current club-local time bucket.
func (s *Scheduler) isDue(ctx context.Context, club *models.Club) (bool, error) {
	last, err := s.jobs.LastSuccess(ctx, club.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	now := s.now()
	interval := IntervalAt(localTime(now, club.Timezone()))
	return now.Sub(last.StartedAt) >= interval, nil
}

// IntervalAt returns the minimum scrape interval for a local wall-clock
// time: peak 05:00-09:00 and 17:00-21:00, day 09:00-17:00, night
// otherwise.
func IntervalAt(local time.Time) time.Duration {
	hour := local.Hour()
	switch {
	case hour >= 5 && hour < 9:
		return PeakInterval
	case hour >= 17 && hour < 21:
		return PeakInterval
	case hour >= 9 && hour < 17:
		return DayInterval
	default:
		return NightInterval
	}
}

// localTime converts to the club's timezone, falling back to UTC when
// the zone name is unknown.
func localTime(t time.Time, tz string) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}
