package scraper

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/shedview/shedview-api/internal/crypto"
	"github.com/shedview/shedview-api/internal/database/migrations"
	"github.com/shedview/shedview-api/internal/models"
	"github.com/shedview/shedview-api/internal/repository"
)

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

// stubSource is a scripted DataSource for engine tests.
type stubSource struct {
	loginErr  error
	assets    []Asset
	assetsErr error
	calendars map[string][]RawBooking
	// failAlways makes every fetch of the named asset fail with a
	// transport error, retries included.
	failAlways map[string]bool
	// loginCalls counts Login invocations.
	loginCalls int
}

func (s *stubSource) Login(ctx context.Context) error {
	s.loginCalls++
	return s.loginErr
}

func (s *stubSource) ListAssets(ctx context.Context) ([]Asset, error) {
	return s.assets, s.assetsErr
}

func (s *stubSource) ListBookings(ctx context.Context, asset Asset, from, to time.Time) ([]RawBooking, error) {
	if s.failAlways[asset.SourceID] {
		return nil, &UpstreamError{Reason: "simulated calendar failure"}
	}
	return s.calendars[asset.SourceID], nil
}

type engineFixture struct {
	engine *Engine
	repos  *repository.Repositories
	club   *models.Club
	stub   *stubSource
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	db := setupTestDB(t)
	repos := repository.NewRepositories(db)

	key, _ := crypto.GenerateKey()
	enc, _ := crypto.NewEncryptor(key)

	blob, err := enc.EncryptCredentials(crypto.Credentials{Username: "club", Password: "pw"})
	if err != nil {
		t.Fatalf("EncryptCredentials() error = %v", err)
	}

	club := &models.Club{
		Name:                 "LMRC",
		Subdomain:            "lmrc",
		DataSourceURL:        "https://bookings.example.com",
		CredentialsEncrypted: blob,
	}
	if err := repos.Club.Create(context.Background(), club); err != nil {
		t.Fatalf("failed to seed club: %v", err)
	}

	stub := &stubSource{}
	engine := New(repos, enc, Config{DaysAhead: 7, Workers: 2}, nil)
	engine.newSource = func(string, crypto.Credentials, time.Duration) (DataSource, error) {
		return stub, nil
	}

	return &engineFixture{engine: engine, repos: repos, club: club, stub: stub}
}

// today returns dates relative to now so window filtering is stable.
func today(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func TestScrapeClubHappyPath(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	fx.stub.assets = []Asset{
		{SourceID: "101", RawName: "2X RACER - Sykes Slider 85 KG"},
		{SourceID: "102", RawName: "Safety Boat (Grey Nurse)"},
	}
	fx.stub.calendars = map[string][]RawBooking{
		"101": {
			{Date: today(1), StartTime: "06:30", EndTime: "07:30", MemberName: "J Smith"},
			{Date: today(30), StartTime: "06:30", EndTime: "07:30", MemberName: "Outside Window"},
			{Date: today(2), StartTime: "not a time", EndTime: "07:30", MemberName: "Bad Time"},
		},
		"102": {},
	}

	result, err := fx.engine.ScrapeClub(ctx, fx.club)
	if err != nil {
		t.Fatalf("ScrapeClub() error = %v", err)
	}
	if !result.Success {
		t.Error("result.Success = false")
	}
	if result.BoatsCount != 2 {
		t.Errorf("BoatsCount = %d, want 2", result.BoatsCount)
	}
	if result.BookingsCount != 1 {
		t.Errorf("BookingsCount = %d, want 1 (window + parse filtering)", result.BookingsCount)
	}

	// Boats landed with parsed fields and categories.
	boats, _ := fx.repos.Boat.ListByClub(ctx, fx.club.ID, 10, 0)
	byName := map[string]*models.Boat{}
	for _, b := range boats {
		byName[b.Name] = b
	}
	slider := byName["Sykes Slider"]
	if slider == nil || slider.BoatType != "2X" || slider.Classification != "RACER" || slider.WeightKG != 85 {
		t.Errorf("parsed boat wrong: %+v", slider)
	}
	if tinnie := byName["Safety Boat"]; tinnie == nil || tinnie.BoatCategory != models.BoatCategoryTinnie {
		t.Errorf("tinnie classification wrong: %+v", tinnie)
	}

	// The job is committed with terminal status before return.
	jobs, _ := fx.repos.ScrapeJob.ListRecent(ctx, fx.club.ID, 10)
	if len(jobs) != 1 || jobs[0].Status != models.ScrapeStatusCompleted {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	if jobs[0].CompletedAt == nil {
		t.Error("job has no completed_at")
	}
}

func TestScrapeClubPartialAssetFailure(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	fx.stub.assets = []Asset{
		{SourceID: "101", RawName: "2X RACER - Good Boat"},
		{SourceID: "102", RawName: "1X CLUB - Bad Boat"},
	}
	fx.stub.calendars = map[string][]RawBooking{
		"101": {{Date: today(1), StartTime: "06:30", EndTime: "07:30", MemberName: "A"}},
	}
	fx.stub.failAlways = map[string]bool{"102": true}

	result, err := fx.engine.ScrapeClub(ctx, fx.club)
	if err != nil {
		t.Fatalf("ScrapeClub() error = %v (partial failures must not abort)", err)
	}
	if !result.Success {
		t.Error("result.Success = false")
	}
	if result.AssetsFailed != 1 {
		t.Errorf("AssetsFailed = %d, want 1", result.AssetsFailed)
	}
	if result.BookingsCount != 1 {
		t.Errorf("BookingsCount = %d, want 1", result.BookingsCount)
	}
}

func TestScrapeClubAllAssetsFail(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	fx.stub.assets = []Asset{{SourceID: "101", RawName: "2X - Lonely"}}
	fx.stub.failAlways = map[string]bool{"101": true}

	result, err := fx.engine.ScrapeClub(ctx, fx.club)
	if !IsUpstreamError(err) {
		t.Fatalf("ScrapeClub() error = %v, want UpstreamError", err)
	}
	if result.Success {
		t.Error("result.Success = true on failure")
	}

	jobs, _ := fx.repos.ScrapeJob.ListRecent(ctx, fx.club.ID, 10)
	if len(jobs) != 1 || jobs[0].Status != models.ScrapeStatusFailed {
		t.Fatalf("job not recorded failed: %+v", jobs)
	}
	if jobs[0].Error == "" {
		t.Error("failed job has empty error")
	}
}

func TestScrapeClubAuthErrorNotRetried(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	stub := &stubSource{loginErr: &AuthError{Reason: "bad credentials"}}
	fx.engine.newSource = func(string, crypto.Credentials, time.Duration) (DataSource, error) {
		return stub, nil
	}

	_, err := fx.engine.ScrapeClub(ctx, fx.club)
	if !IsAuthError(err) {
		t.Fatalf("ScrapeClub() error = %v, want AuthError", err)
	}
	if stub.loginCalls != 1 {
		t.Errorf("login attempted %d times, want 1 (auth errors are not retried)", stub.loginCalls)
	}

	jobs, _ := fx.repos.ScrapeJob.ListRecent(ctx, fx.club.ID, 10)
	if len(jobs) != 1 || jobs[0].Status != models.ScrapeStatusFailed {
		t.Fatalf("job not recorded failed: %+v", jobs)
	}
}

func TestScrapeClubConfigErrors(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	t.Run("no credentials", func(t *testing.T) {
		fx.club.CredentialsEncrypted = ""
		_, err := fx.engine.ScrapeClub(ctx, fx.club)
		if !IsConfigError(err) {
			t.Errorf("ScrapeClub() error = %v, want ConfigError", err)
		}
	})

	t.Run("no url", func(t *testing.T) {
		fx.club.DataSourceURL = ""
		_, err := fx.engine.ScrapeClub(ctx, fx.club)
		if !IsConfigError(err) {
			t.Errorf("ScrapeClub() error = %v, want ConfigError", err)
		}
	})
}

func TestScrapeClubWrongEncryptionKey(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	// Re-key the engine: stored blob no longer decrypts.
	otherKey, _ := crypto.GenerateKey()
	otherEnc, _ := crypto.NewEncryptor(otherKey)
	fx.engine.encryptor = otherEnc

	_, err := fx.engine.ScrapeClub(ctx, fx.club)
	if !IsAuthError(err) {
		t.Fatalf("ScrapeClub() error = %v, want AuthError", err)
	}

	jobs, _ := fx.repos.ScrapeJob.ListRecent(ctx, fx.club.ID, 10)
	if len(jobs) != 1 || jobs[0].Status != models.ScrapeStatusFailed {
		t.Fatalf("scrape not recorded failed: %+v", jobs)
	}
}

func TestWithRetryRecoversTransportFault(t *testing.T) {
	fx := newEngineFixture(t)

	calls := 0
	err := fx.engine.withRetry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &UpstreamError{Reason: "flaky"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
