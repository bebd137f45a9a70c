package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shedview/shedview-api/internal/models"
)

// ErrNotFound is returned when a row does not exist (or belongs to a
// different tenant, which callers must treat identically).
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a uniqueness constraint is violated.
var ErrConflict = errors.New("already exists")

const clubColumns = `id, name, subdomain, custom_domain, status, data_source_type,
	data_source_url, credentials_encrypted, branding_json, display_config_json,
	tv_display_config_json, created_at, updated_at`

// SQLiteClubRepository implements ClubRepository for SQLite/libsql.
type SQLiteClubRepository struct {
	db *sql.DB
}

// NewSQLiteClubRepository creates a new SQLite club repository.
func NewSQLiteClubRepository(db *sql.DB) *SQLiteClubRepository {
	return &SQLiteClubRepository{db: db}
}

// GetByID retrieves a club by ID.
func (r *SQLiteClubRepository) GetByID(ctx context.Context, id string) (*models.Club, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+clubColumns+` FROM clubs WHERE id = ?`, id)
	return scanClub(row)
}

// GetBySubdomain retrieves a club by its lowercased subdomain.
func (r *SQLiteClubRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Club, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+clubColumns+` FROM clubs WHERE subdomain = ?`, strings.ToLower(subdomain))
	return scanClub(row)
}

// GetByCustomDomain retrieves a club by exact custom domain match.
func (r *SQLiteClubRepository) GetByCustomDomain(ctx context.Context, domain string) (*models.Club, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+clubColumns+` FROM clubs WHERE custom_domain = ?`, strings.ToLower(domain))
	return scanClub(row)
}

// ListActive returns all clubs eligible for scraping and serving.
func (r *SQLiteClubRepository) ListActive(ctx context.Context) ([]*models.Club, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clubColumns+` FROM clubs WHERE status IN ('active', 'trial') ORDER BY subdomain`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var clubs []*models.Club
	for rows.Next() {
		club, err := scanClub(rows)
		if err != nil {
			return nil, err
		}
		clubs = append(clubs, club)
	}
	return clubs, rows.Err()
}

// ListCustomDomains returns all registered custom domains, for the CORS
// allow-list.
func (r *SQLiteClubRepository) ListCustomDomains(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT custom_domain FROM clubs WHERE custom_domain IS NOT NULL AND custom_domain != ''`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// Create inserts a new club.
func (r *SQLiteClubRepository) Create(ctx context.Context, club *models.Club) error {
	now := time.Now()
	if club.ID == "" {
		club.ID = ulid.Make().String()
	}
	if club.Status == "" {
		club.Status = models.ClubStatusActive
	}
	if club.DataSourceType == "" {
		club.DataSourceType = models.DataSourceRevsport
	}
	club.Subdomain = strings.ToLower(club.Subdomain)
	club.CreatedAt = now
	club.UpdatedAt = now

	branding, err := marshalDoc(club.Branding)
	if err != nil {
		return err
	}
	display, err := marshalDoc(club.DisplayConfig)
	if err != nil {
		return err
	}
	tv, err := marshalDoc(club.TVDisplayConfig)
	if err != nil {
		return err
	}

	var customDomain any
	if club.CustomDomain != "" {
		customDomain = strings.ToLower(club.CustomDomain)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO clubs (id, name, subdomain, custom_domain, status, data_source_type,
			data_source_url, credentials_encrypted, branding_json, display_config_json,
			tv_display_config_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, club.ID, club.Name, club.Subdomain, customDomain, club.Status, club.DataSourceType,
		club.DataSourceURL, club.CredentialsEncrypted, branding, display, tv,
		formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// UpdateDataSource sets the upstream URL and encrypted credential blob.
func (r *SQLiteClubRepository) UpdateDataSource(ctx context.Context, clubID, url, credentialsEncrypted string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clubs SET data_source_url = ?, credentials_encrypted = ?, updated_at = ?
		WHERE id = ?
	`, url, credentialsEncrypted, formatTime(time.Now()), clubID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateDisplayConfig persists the club's branding and display documents.
func (r *SQLiteClubRepository) UpdateDisplayConfig(ctx context.Context, club *models.Club) error {
	branding, err := marshalDoc(club.Branding)
	if err != nil {
		return err
	}
	display, err := marshalDoc(club.DisplayConfig)
	if err != nil {
		return err
	}
	tv, err := marshalDoc(club.TVDisplayConfig)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE clubs SET branding_json = ?, display_config_json = ?, tv_display_config_json = ?, updated_at = ?
		WHERE id = ?
	`, branding, display, tv, formatTime(time.Now()), club.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClub(row rowScanner) (*models.Club, error) {
	var club models.Club
	var customDomain, dataSourceURL, credentials sql.NullString
	var branding, display, tv sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&club.ID, &club.Name, &club.Subdomain, &customDomain, &club.Status,
		&club.DataSourceType, &dataSourceURL, &credentials, &branding, &display, &tv,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	club.CustomDomain = customDomain.String
	club.DataSourceURL = dataSourceURL.String
	club.CredentialsEncrypted = credentials.String
	club.Branding = unmarshalDoc(branding)
	club.DisplayConfig = unmarshalDoc(display)
	club.TVDisplayConfig = unmarshalDoc(tv)
	club.CreatedAt = parseTime(createdAt)
	club.UpdatedAt = parseTime(updatedAt)

	return &club, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
