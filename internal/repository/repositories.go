// Package repository contains the persistence layer. Every query that
// touches tenant data carries club_id in its predicate.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shedview/shedview-api/internal/models"
)

// ClubRepository accesses the clubs table.
type ClubRepository interface {
	GetByID(ctx context.Context, id string) (*models.Club, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Club, error)
	GetByCustomDomain(ctx context.Context, domain string) (*models.Club, error)
	ListActive(ctx context.Context) ([]*models.Club, error)
	ListCustomDomains(ctx context.Context) ([]string, error)
	Create(ctx context.Context, club *models.Club) error
	UpdateDataSource(ctx context.Context, clubID, url, credentialsEncrypted string) error
	UpdateDisplayConfig(ctx context.Context, club *models.Club) error
}

// UserRepository accesses the users table.
type UserRepository interface {
	GetByID(ctx context.Context, clubID, id string) (*models.User, error)
	GetByEmail(ctx context.Context, clubID, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePasswordHash(ctx context.Context, clubID, userID, hash string) error
	SetActive(ctx context.Context, clubID, userID string, active bool) error
}

// BoatRepository accesses the boats table.
type BoatRepository interface {
	GetByID(ctx context.Context, clubID, id string) (*models.Boat, error)
	ListByClub(ctx context.Context, clubID string, limit, offset int) ([]*models.Boat, error)
	CountByClub(ctx context.Context, clubID string) (int, error)
}

// BookingRepository accesses the bookings table.
type BookingRepository interface {
	ListByDateRange(ctx context.Context, clubID, from, to string, limit int) ([]*models.Booking, error)
	ListByBoat(ctx context.Context, clubID, boatID, from, to string, limit int) ([]*models.Booking, error)
}

// ScrapeJobRepository accesses the scrape_jobs table. Append-only.
type ScrapeJobRepository interface {
	Create(ctx context.Context, job *models.ScrapeJob) error
	Finish(ctx context.Context, job *models.ScrapeJob) error
	ListRecent(ctx context.Context, clubID string, limit int) ([]*models.ScrapeJob, error)
	LastSuccess(ctx context.Context, clubID string) (*models.ScrapeJob, error)
	Stats(ctx context.Context, clubID string, since time.Time) (*models.ScrapeStats, error)
	MarkStaleRunningFailed(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SnapshotRepository commits one scrape's snapshot transactionally.
type SnapshotRepository interface {
	CommitSnapshot(ctx context.Context, clubID string, snap *Snapshot) (boats int, bookings int, err error)
}

// Repositories aggregates all repositories.
type Repositories struct {
	Club      ClubRepository
	User      UserRepository
	Boat      BoatRepository
	Booking   BookingRepository
	ScrapeJob ScrapeJobRepository
	Snapshot  SnapshotRepository
}

// NewRepositories creates all repositories backed by the given database.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Club:      NewSQLiteClubRepository(db),
		User:      NewSQLiteUserRepository(db),
		Boat:      NewSQLiteBoatRepository(db),
		Booking:   NewSQLiteBookingRepository(db),
		ScrapeJob: NewSQLiteScrapeJobRepository(db),
		Snapshot:  NewSQLiteSnapshotRepository(db),
	}
}

// marshalDoc serializes a JSON document column; empty maps become NULL.
func marshalDoc(doc map[string]any) (any, error) {
	if len(doc) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// unmarshalDoc deserializes a JSON document column.
func unmarshalDoc(raw sql.NullString) map[string]any {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw.String), &doc); err != nil {
		return nil
	}
	return doc
}

// parseTime parses an RFC3339 column value, tolerating empty strings.
func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
