package repository

import (
	"context"
	"testing"

	"github.com/shedview/shedview-api/internal/models"
)

func TestClubCreateAndLookup(t *testing.T) {
	db := setupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	club := &models.Club{
		Name:          "Lake Macquarie Rowing Club",
		Subdomain:     "LMRC", // stored lowercased
		CustomDomain:  "board.lakemacrowing.example",
		DataSourceURL: "https://bookings.example.com",
		Branding:      map[string]any{"primaryColor": "#003366"},
	}
	if err := repos.Club.Create(ctx, club); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if club.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	t.Run("by subdomain lowercased", func(t *testing.T) {
		got, err := repos.Club.GetBySubdomain(ctx, "lmrc")
		if err != nil {
			t.Fatalf("GetBySubdomain() error = %v", err)
		}
		if got.ID != club.ID {
			t.Errorf("got club %s, want %s", got.ID, club.ID)
		}
		if got.Subdomain != "lmrc" {
			t.Errorf("subdomain = %q, want lowercased %q", got.Subdomain, "lmrc")
		}
		if got.Branding["primaryColor"] != "#003366" {
			t.Errorf("branding not round-tripped: %v", got.Branding)
		}
	})

	t.Run("by custom domain", func(t *testing.T) {
		got, err := repos.Club.GetByCustomDomain(ctx, "board.lakemacrowing.example")
		if err != nil {
			t.Fatalf("GetByCustomDomain() error = %v", err)
		}
		if got.ID != club.ID {
			t.Errorf("got club %s, want %s", got.ID, club.ID)
		}
	})

	t.Run("unknown subdomain", func(t *testing.T) {
		if _, err := repos.Club.GetBySubdomain(ctx, "ghost"); err != ErrNotFound {
			t.Errorf("GetBySubdomain(ghost) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("duplicate subdomain conflicts", func(t *testing.T) {
		dup := &models.Club{Name: "Other", Subdomain: "lmrc"}
		if err := repos.Club.Create(ctx, dup); err != ErrConflict {
			t.Errorf("Create(duplicate) error = %v, want ErrConflict", err)
		}
	})
}

func TestClubUpdateDataSource(t *testing.T) {
	db := setupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	club := seedClub(t, repos, "src")

	if err := repos.Club.UpdateDataSource(ctx, club.ID, "https://new.example.com", "blob"); err != nil {
		t.Fatalf("UpdateDataSource() error = %v", err)
	}

	got, err := repos.Club.GetByID(ctx, club.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.DataSourceURL != "https://new.example.com" {
		t.Errorf("DataSourceURL = %q", got.DataSourceURL)
	}
	if got.CredentialsEncrypted != "blob" {
		t.Errorf("CredentialsEncrypted = %q", got.CredentialsEncrypted)
	}

	t.Run("missing club", func(t *testing.T) {
		if err := repos.Club.UpdateDataSource(ctx, "nope", "u", "c"); err != ErrNotFound {
			t.Errorf("UpdateDataSource(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func TestClubListActive(t *testing.T) {
	db := setupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	seedClub(t, repos, "alpha")
	trial := &models.Club{Name: "Trial", Subdomain: "trial", Status: models.ClubStatusTrial}
	if err := repos.Club.Create(ctx, trial); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	suspended := &models.Club{Name: "Gone", Subdomain: "gone", Status: models.ClubStatusSuspended}
	if err := repos.Club.Create(ctx, suspended); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	clubs, err := repos.Club.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(clubs) != 2 {
		t.Fatalf("ListActive() returned %d clubs, want 2", len(clubs))
	}
	for _, c := range clubs {
		if c.Status == models.ClubStatusSuspended {
			t.Error("ListActive() included a suspended club")
		}
	}
}

func TestUserUniquePerClub(t *testing.T) {
	db := setupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	clubA := seedClub(t, repos, "aaa")
	clubB := seedClub(t, repos, "bbb")

	userA := &models.User{ClubID: clubA.ID, Email: "Admin@example.com", PasswordHash: "x", IsActive: true}
	if err := repos.User.Create(ctx, userA); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("same email same club conflicts", func(t *testing.T) {
		dup := &models.User{ClubID: clubA.ID, Email: "admin@example.com", PasswordHash: "y", IsActive: true}
		if err := repos.User.Create(ctx, dup); err != ErrConflict {
			t.Errorf("Create() error = %v, want ErrConflict", err)
		}
	})

	t.Run("same email other club allowed", func(t *testing.T) {
		other := &models.User{ClubID: clubB.ID, Email: "admin@example.com", PasswordHash: "z", IsActive: true}
		if err := repos.User.Create(ctx, other); err != nil {
			t.Errorf("Create() error = %v", err)
		}
	})

	t.Run("lookup is case-insensitive and club-scoped", func(t *testing.T) {
		got, err := repos.User.GetByEmail(ctx, clubA.ID, "ADMIN@EXAMPLE.COM")
		if err != nil {
			t.Fatalf("GetByEmail() error = %v", err)
		}
		if got.ID != userA.ID {
			t.Errorf("got user %s, want %s", got.ID, userA.ID)
		}

		if _, err := repos.User.GetByEmail(ctx, clubB.ID, "missing@example.com"); err != ErrNotFound {
			t.Errorf("GetByEmail(wrong club) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("deactivate", func(t *testing.T) {
		if err := repos.User.SetActive(ctx, clubA.ID, userA.ID, false); err != nil {
			t.Fatalf("SetActive() error = %v", err)
		}
		got, _ := repos.User.GetByID(ctx, clubA.ID, userA.ID)
		if got.IsActive {
			t.Error("user still active after SetActive(false)")
		}
	})
}
