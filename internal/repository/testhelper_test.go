package repository

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/shedview/shedview-api/internal/database/migrations"
	"github.com/shedview/shedview-api/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be
// cleaned up when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedClub creates a club row for tests.
func seedClub(t *testing.T, repos *Repositories, subdomain string) *models.Club {
	t.Helper()

	club := &models.Club{
		Name:          subdomain + " Rowing Club",
		Subdomain:     subdomain,
		DataSourceURL: "https://bookings.example.com",
	}
	if err := repos.Club.Create(context.Background(), club); err != nil {
		t.Fatalf("failed to seed club %s: %v", subdomain, err)
	}
	return club
}
