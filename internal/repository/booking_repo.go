package repository

import (
	"context"
	"database/sql"

	"github.com/shedview/shedview-api/internal/models"
)

const bookingColumns = `id, club_id, boat_id, booking_date, session_name, start_time, end_time, member_name, created_at`

// SQLiteBookingRepository implements BookingRepository for SQLite/libsql.
type SQLiteBookingRepository struct {
	db *sql.DB
}

// NewSQLiteBookingRepository creates a new SQLite booking repository.
func NewSQLiteBookingRepository(db *sql.DB) *SQLiteBookingRepository {
	return &SQLiteBookingRepository{db: db}
}

// ListByDateRange returns bookings for a club with booking_date in
// [from, to], both inclusive YYYY-MM-DD strings.
func (r *SQLiteBookingRepository) ListByDateRange(ctx context.Context, clubID, from, to string, limit int) ([]*models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE club_id = ? AND booking_date >= ? AND booking_date <= ?
		ORDER BY booking_date, start_time
		LIMIT ?
	`, clubID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanBookings(rows)
}

// ListByBoat returns bookings for one boat of a club within [from, to].
func (r *SQLiteBookingRepository) ListByBoat(ctx context.Context, clubID, boatID, from, to string, limit int) ([]*models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE club_id = ? AND boat_id = ? AND booking_date >= ? AND booking_date <= ?
		ORDER BY booking_date, start_time
		LIMIT ?
	`, clubID, boatID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanBookings(rows)
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		var b models.Booking
		var sessionName, memberName sql.NullString
		var createdAt string

		if err := rows.Scan(&b.ID, &b.ClubID, &b.BoatID, &b.BookingDate, &sessionName,
			&b.StartTime, &b.EndTime, &memberName, &createdAt); err != nil {
			return nil, err
		}
		b.SessionName = sessionName.String
		b.MemberName = memberName.String
		b.CreatedAt = parseTime(createdAt)
		bookings = append(bookings, &b)
	}
	return bookings, rows.Err()
}
