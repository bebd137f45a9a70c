package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shedview/shedview-api/internal/models"
)

const userColumns = `id, club_id, email, password_hash, full_name, role, is_active, created_at, updated_at`

// SQLiteUserRepository implements UserRepository for SQLite/libsql.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a new SQLite user repository.
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// GetByID retrieves a user by ID within a club.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, clubID, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE club_id = ? AND id = ?`, clubID, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by email within a club. Email comparison is
// case-insensitive.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, clubID, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE club_id = ? AND lower(email) = ?`,
		clubID, strings.ToLower(email))
	return scanUser(row)
}

// Create inserts a new user.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	if user.Role == "" {
		user.Role = models.RoleClubAdmin
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, club_id, email, password_hash, full_name, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.ClubID, user.Email, user.PasswordHash, user.FullName, user.Role,
		user.IsActive, formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// UpdatePasswordHash replaces a user's password hash.
func (r *SQLiteUserRepository) UpdatePasswordHash(ctx context.Context, clubID, userID, hash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ?
		WHERE club_id = ? AND id = ?
	`, hash, formatTime(time.Now()), clubID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetActive toggles a user's active flag. Deactivated users fail token
// verification on their next admin request.
func (r *SQLiteUserRepository) SetActive(ctx context.Context, clubID, userID string, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_active = ?, updated_at = ?
		WHERE club_id = ? AND id = ?
	`, active, formatTime(time.Now()), clubID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var fullName sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&user.ID, &user.ClubID, &user.Email, &user.PasswordHash, &fullName,
		&user.Role, &user.IsActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	user.FullName = fullName.String
	user.CreatedAt = parseTime(createdAt)
	user.UpdatedAt = parseTime(updatedAt)
	return &user, nil
}
