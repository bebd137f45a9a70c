package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shedview/shedview-api/internal/models"
)

// Snapshot is the normalized output of one scrape, ready to commit.
type Snapshot struct {
	Boats    []*models.Boat
	Bookings []*SnapshotBooking
	// Window bounds in YYYY-MM-DD; existing bookings inside the window
	// are replaced wholesale.
	WindowFrom string
	WindowTo   string
}

// SnapshotBooking references its boat by upstream source ID; the commit
// resolves it to the boat row ID.
type SnapshotBooking struct {
	BoatSourceID string
	BookingDate  string
	SessionName  string
	StartTime    string
	EndTime      string
	MemberName   string
}

// SQLiteSnapshotRepository implements SnapshotRepository for SQLite/libsql.
type SQLiteSnapshotRepository struct {
	db *sql.DB
}

// NewSQLiteSnapshotRepository creates a new SQLite snapshot repository.
func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

// CommitSnapshot applies one scrape's result in a single transaction:
// boats are upserted on (club_id, source_id) with their metadata JSON
// merged into any existing document, then bookings inside the window are
// deleted and the scraped set inserted. Rolls back entirely on error.
func (r *SQLiteSnapshotRepository) CommitSnapshot(ctx context.Context, clubID string, snap *Snapshot) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	boatIDs, err := upsertBoats(ctx, tx, clubID, snap.Boats)
	if err != nil {
		return 0, 0, err
	}

	inserted, err := replaceBookings(ctx, tx, clubID, snap, boatIDs)
	if err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return len(snap.Boats), inserted, nil
}

// upsertBoats writes every scraped boat and returns source_id -> row ID.
func upsertBoats(ctx context.Context, tx *sql.Tx, clubID string, boats []*models.Boat) (map[string]string, error) {
	now := formatTime(time.Now())
	ids := make(map[string]string, len(boats))

	for _, boat := range boats {
		var existingID string
		var existingMeta sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT id, metadata_json FROM boats WHERE club_id = ? AND source_id = ?`,
			clubID, boat.SourceID).Scan(&existingID, &existingMeta)

		switch {
		case err == sql.ErrNoRows:
			id := ulid.Make().String()
			meta, merr := marshalDoc(boat.Metadata)
			if merr != nil {
				return nil, merr
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO boats (id, club_id, source_id, name, boat_type, boat_category,
					classification, weight_kg, is_damaged, damaged_reason, metadata_json,
					created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, id, clubID, boat.SourceID, boat.Name, boat.BoatType, boat.BoatCategory,
				boat.Classification, boat.WeightKG, boat.IsDamaged, boat.DamagedReason,
				meta, now, now); err != nil {
				return nil, fmt.Errorf("failed to insert boat %s: %w", boat.SourceID, err)
			}
			ids[boat.SourceID] = id

		case err != nil:
			return nil, fmt.Errorf("failed to look up boat %s: %w", boat.SourceID, err)

		default:
			// Merge scrape-produced metadata over the stored document so
			// manual keys (nickname overrides, image_url) survive.
			merged := models.DeepMerge(unmarshalDoc(existingMeta), boat.Metadata)
			meta, merr := marshalDoc(merged)
			if merr != nil {
				return nil, merr
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE boats
				SET name = ?, boat_type = ?, boat_category = ?, classification = ?,
					weight_kg = ?, metadata_json = ?, updated_at = ?
				WHERE id = ? AND club_id = ?
			`, boat.Name, boat.BoatType, boat.BoatCategory, boat.Classification,
				boat.WeightKG, meta, now, existingID, clubID); err != nil {
				return nil, fmt.Errorf("failed to update boat %s: %w", boat.SourceID, err)
			}
			ids[boat.SourceID] = existingID
		}
	}

	return ids, nil
}

// replaceBookings applies window-replace semantics: delete everything in
// the window for this club, insert the scraped set.
func replaceBookings(ctx context.Context, tx *sql.Tx, clubID string, snap *Snapshot, boatIDs map[string]string) (int, error) {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM bookings
		WHERE club_id = ? AND booking_date >= ? AND booking_date <= ?
	`, clubID, snap.WindowFrom, snap.WindowTo); err != nil {
		return 0, fmt.Errorf("failed to clear booking window: %w", err)
	}

	now := formatTime(time.Now())
	inserted := 0
	for _, b := range snap.Bookings {
		boatID, ok := boatIDs[b.BoatSourceID]
		if !ok {
			// Booking for an asset whose card parse failed; resolve from
			// a previous scrape's row if one exists.
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM boats WHERE club_id = ? AND source_id = ?`,
				clubID, b.BoatSourceID).Scan(&boatID)
			if err == sql.ErrNoRows {
				continue
			}
			if err != nil {
				return 0, fmt.Errorf("failed to resolve boat %s: %w", b.BoatSourceID, err)
			}
			boatIDs[b.BoatSourceID] = boatID
		}

		var sessionName any
		if b.SessionName != "" {
			sessionName = b.SessionName
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bookings (id, club_id, boat_id, booking_date, session_name,
				start_time, end_time, member_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, ulid.Make().String(), clubID, boatID, b.BookingDate, sessionName,
			b.StartTime, b.EndTime, b.MemberName, now); err != nil {
			if isUniqueViolation(err) {
				// Upstream listed the same slot twice; first entry wins.
				continue
			}
			return 0, fmt.Errorf("failed to insert booking: %w", err)
		}
		inserted++
	}

	return inserted, nil
}
