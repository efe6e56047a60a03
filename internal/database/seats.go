package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const seatColumns = `
	id, flight_id, seat_number, row_number, column_letter, class, position,
	is_available, booking_id, created_at, updated_at`

func collectSeats(rows pgx.Rows) ([]Seat, error) {
	defer rows.Close()

	var seats []Seat
	for rows.Next() {
		var s Seat
		err := rows.Scan(
			&s.ID, &s.FlightID, &s.SeatNumber, &s.RowNumber, &s.ColumnLetter, &s.Class, &s.Position,
			&s.IsAvailable, &s.BookingID, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// --- Seat Operations ---

// ListSeats returns the seat map of a flight
func (r *Repository) ListSeats(ctx context.Context, flightID uuid.UUID) ([]Seat, error) {
	rows, err := r.q(ctx).Query(ctx, "SELECT "+seatColumns+" FROM seats WHERE flight_id = $1 ORDER BY id", flightID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seats: %w", err)
	}
	return collectSeats(rows)
}

// LockSeatsByID locks the given seats of a flight in id order, whatever
// their availability. Ids that do not belong to the flight are not returned.
func (r *Repository) LockSeatsByID(ctx context.Context, flightID uuid.UUID, seatIDs []int64) ([]Seat, error) {
	q, err := r.locking(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, "SELECT "+seatColumns+`
		FROM seats
		WHERE flight_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`, flightID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock seats: %w", err)
	}
	return collectSeats(rows)
}

// LockAvailableSeats locks up to limit available seats of one class, lowest
// id first.
func (r *Repository) LockAvailableSeats(ctx context.Context, flightID uuid.UUID, class string, limit int) ([]Seat, error) {
	q, err := r.locking(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, "SELECT "+seatColumns+`
		FROM seats
		WHERE flight_id = $1 AND LOWER(class) = LOWER($2) AND is_available
		ORDER BY id
		LIMIT $3
		FOR UPDATE`, flightID, class, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lock available seats: %w", err)
	}
	return collectSeats(rows)
}

// LockAvailableSeatIDs locks up to limit available seats of a flight in any
// class, lowest id first.
func (r *Repository) LockAvailableSeatIDs(ctx context.Context, flightID uuid.UUID, limit int) ([]int64, error) {
	q, err := r.locking(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT id FROM seats
		WHERE flight_id = $1 AND is_available
		ORDER BY id
		LIMIT $2
		FOR UPDATE`, flightID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lock seat ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan seat id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AttachSeats marks seats unavailable and owned by a booking. Only seats
// that are still available are touched; the count lets callers detect a lost race.
func (r *Repository) AttachSeats(ctx context.Context, bookingID uuid.UUID, seatIDs []int64) (int64, error) {
	result, err := r.q(ctx).Exec(ctx, `
		UPDATE seats
		SET is_available = FALSE, booking_id = $1, updated_at = NOW()
		WHERE id = ANY($2) AND is_available
	`, bookingID, seatIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to attach seats: %w", err)
	}
	return result.RowsAffected(), nil
}

// ReleaseSeats returns seats held by a booking to inventory. Seats no longer
// owned by the booking are left alone, which keeps release idempotent.
func (r *Repository) ReleaseSeats(ctx context.Context, bookingID uuid.UUID, seatIDs []int64) (int64, error) {
	result, err := r.q(ctx).Exec(ctx, `
		UPDATE seats
		SET is_available = TRUE, booking_id = NULL, updated_at = NOW()
		WHERE id = ANY($1) AND booking_id = $2
	`, seatIDs, bookingID)
	if err != nil {
		return 0, fmt.Errorf("failed to release seats: %w", err)
	}
	return result.RowsAffected(), nil
}

// MarkSeatsSold flips seats to unavailable without a booking in one statement.
func (r *Repository) MarkSeatsSold(ctx context.Context, seatIDs []int64) (int64, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	result, err := r.q(ctx).Exec(ctx, `
		UPDATE seats
		SET is_available = FALSE, updated_at = NOW()
		WHERE id = ANY($1) AND is_available
	`, seatIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to mark seats sold: %w", err)
	}
	return result.RowsAffected(), nil
}
