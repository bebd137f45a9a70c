package repository

import (
	"context"
	"database/sql"

	"github.com/shedview/shedview-api/internal/models"
)

const boatColumns = `id, club_id, source_id, name, boat_type, boat_category, classification,
	weight_kg, is_damaged, damaged_reason, metadata_json, created_at, updated_at`

// SQLiteBoatRepository implements BoatRepository for SQLite/libsql.
type SQLiteBoatRepository struct {
	db *sql.DB
}

// NewSQLiteBoatRepository creates a new SQLite boat repository.
func NewSQLiteBoatRepository(db *sql.DB) *SQLiteBoatRepository {
	return &SQLiteBoatRepository{db: db}
}

// GetByID retrieves a boat by ID within a club. A boat belonging to
// another club is indistinguishable from a missing one.
func (r *SQLiteBoatRepository) GetByID(ctx context.Context, clubID, id string) (*models.Boat, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+boatColumns+` FROM boats WHERE club_id = ? AND id = ?`, clubID, id)
	return scanBoat(row)
}

// ListByClub returns boats for a club ordered by name.
func (r *SQLiteBoatRepository) ListByClub(ctx context.Context, clubID string, limit, offset int) ([]*models.Boat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+boatColumns+` FROM boats WHERE club_id = ? ORDER BY name LIMIT ? OFFSET ?`,
		clubID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var boats []*models.Boat
	for rows.Next() {
		boat, err := scanBoat(rows)
		if err != nil {
			return nil, err
		}
		boats = append(boats, boat)
	}
	return boats, rows.Err()
}

// CountByClub returns the number of boats for a club.
func (r *SQLiteBoatRepository) CountByClub(ctx context.Context, clubID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM boats WHERE club_id = ?`, clubID).Scan(&count)
	return count, err
}

func scanBoat(row rowScanner) (*models.Boat, error) {
	var boat models.Boat
	var boatType, classification, damagedReason, metadata sql.NullString
	var weight sql.NullInt64
	var createdAt, updatedAt string

	err := row.Scan(&boat.ID, &boat.ClubID, &boat.SourceID, &boat.Name, &boatType,
		&boat.BoatCategory, &classification, &weight, &boat.IsDamaged, &damagedReason,
		&metadata, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	boat.BoatType = boatType.String
	boat.Classification = classification.String
	boat.WeightKG = int(weight.Int64)
	boat.DamagedReason = damagedReason.String
	boat.Metadata = unmarshalDoc(metadata)
	boat.CreatedAt = parseTime(createdAt)
	boat.UpdatedAt = parseTime(updatedAt)
	return &boat, nil
}
