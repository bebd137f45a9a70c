package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shedview/shedview-api/internal/models"
)

const scrapeJobColumns = `id, club_id, status, started_at, completed_at, duration_ms,
	boats_count, bookings_count, error`

// SQLiteScrapeJobRepository implements ScrapeJobRepository for SQLite/libsql.
type SQLiteScrapeJobRepository struct {
	db *sql.DB
}

// NewSQLiteScrapeJobRepository creates a new SQLite scrape job repository.
func NewSQLiteScrapeJobRepository(db *sql.DB) *SQLiteScrapeJobRepository {
	return &SQLiteScrapeJobRepository{db: db}
}

// Create appends a new scrape job, normally in running state.
func (r *SQLiteScrapeJobRepository) Create(ctx context.Context, job *models.ScrapeJob) error {
	if job.ID == "" {
		job.ID = ulid.Make().String()
	}
	if job.Status == "" {
		job.Status = models.ScrapeStatusRunning
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scrape_jobs (id, club_id, status, started_at, duration_ms, boats_count, bookings_count, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.ClubID, job.Status, formatTime(job.StartedAt), job.DurationMs,
		job.BoatsCount, job.BookingsCount, job.Error, formatTime(time.Now()))
	return err
}

// Finish records a job's terminal state.
func (r *SQLiteScrapeJobRepository) Finish(ctx context.Context, job *models.ScrapeJob) error {
	var completedAt any
	if job.CompletedAt != nil {
		completedAt = formatTime(*job.CompletedAt)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE scrape_jobs
		SET status = ?, completed_at = ?, duration_ms = ?, boats_count = ?, bookings_count = ?, error = ?
		WHERE id = ? AND club_id = ?
	`, job.Status, completedAt, job.DurationMs, job.BoatsCount, job.BookingsCount, job.Error,
		job.ID, job.ClubID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListRecent returns the most recent jobs for a club, newest first.
func (r *SQLiteScrapeJobRepository) ListRecent(ctx context.Context, clubID string, limit int) ([]*models.ScrapeJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scrapeJobColumns+` FROM scrape_jobs
		WHERE club_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, clubID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []*models.ScrapeJob
	for rows.Next() {
		job, err := scanScrapeJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// LastSuccess returns the most recent completed job for a club, or
// ErrNotFound when the club has never been scraped successfully.
func (r *SQLiteScrapeJobRepository) LastSuccess(ctx context.Context, clubID string) (*models.ScrapeJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+scrapeJobColumns+` FROM scrape_jobs
		WHERE club_id = ? AND status = 'completed'
		ORDER BY started_at DESC
		LIMIT 1
	`, clubID)
	return scanScrapeJob(row)
}

// Stats aggregates success/failure counts and average duration for jobs
// started since the given time.
func (r *SQLiteScrapeJobRepository) Stats(ctx context.Context, clubID string, since time.Time) (*models.ScrapeStats, error) {
	var stats models.ScrapeStats
	var avg sql.NullFloat64

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			AVG(CASE WHEN status = 'completed' THEN duration_ms ELSE NULL END)
		FROM scrape_jobs
		WHERE club_id = ? AND started_at >= ?
	`, clubID, formatTime(since)).Scan(&stats.SuccessCount24h, &stats.FailureCount24h, &avg)
	if err != nil {
		return nil, err
	}
	stats.AvgDurationMs = avg.Float64
	return &stats, nil
}

// MarkStaleRunningFailed fails running jobs older than the given age.
// Run at startup: a job left running is a previous process that died.
func (r *SQLiteScrapeJobRepository) MarkStaleRunningFailed(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := r.db.ExecContext(ctx, `
		UPDATE scrape_jobs
		SET status = 'failed', error = 'stale: process terminated mid-scrape', completed_at = ?
		WHERE status = 'running' AND started_at < ?
	`, formatTime(time.Now()), formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanScrapeJob(row rowScanner) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	var startedAt string
	var completedAt, errText sql.NullString

	err := row.Scan(&job.ID, &job.ClubID, &job.Status, &startedAt, &completedAt,
		&job.DurationMs, &job.BoatsCount, &job.BookingsCount, &errText)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	job.StartedAt = parseTime(startedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		job.CompletedAt = &t
	}
	job.Error = errText.String
	return &job, nil
}
