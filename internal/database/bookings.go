package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `
	id, booking_reference, pnr, user_id, flight_id, tier, status, total_fare, currency,
	cancellation_reason, confirmed_at, cancelled_at, created_at, updated_at`

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.BookingReference, &b.PNR, &b.UserID, &b.FlightID, &b.Tier, &b.Status, &b.TotalFare, &b.Currency,
		&b.CancellationReason, &b.ConfirmedAt, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// --- Booking Operations ---

// ReferenceExists reports whether a booking reference is taken
func (r *Repository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS (SELECT 1 FROM bookings WHERE booking_reference = $1)", reference)
}

// PNRExists reports whether a PNR is taken
func (r *Repository) PNRExists(ctx context.Context, pnr string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS (SELECT 1 FROM bookings WHERE pnr = $1)", pnr)
}

// TicketNumberExists reports whether a ticket number is taken
func (r *Repository) TicketNumberExists(ctx context.Context, number string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS (SELECT 1 FROM tickets WHERE ticket_number = $1)", number)
}

func (r *Repository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var ok bool
	if err := r.q(ctx).QueryRow(ctx, query, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return ok, nil
}

// CreateBooking inserts a booking
func (r *Repository) CreateBooking(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := r.q(ctx).QueryRow(ctx, `
		INSERT INTO bookings (id, booking_reference, pnr, user_id, flight_id, tier, status, total_fare, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, b.ID, b.BookingReference, b.PNR, b.UserID, b.FlightID, b.Tier, b.Status, b.TotalFare, b.Currency,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetBooking returns a booking by reference or PNR
func (r *Repository) GetBooking(ctx context.Context, identifier string) (*Booking, error) {
	b, err := scanBooking(r.q(ctx).QueryRow(ctx, "SELECT "+bookingColumns+`
		FROM bookings
		WHERE booking_reference = $1 OR pnr = $1
		LIMIT 1`, normalizeIdentifier(identifier)))
	if err != nil {
		return nil, notFound(err, "booking")
	}
	return &b, nil
}

// LockBooking locks a booking found by reference or PNR
func (r *Repository) LockBooking(ctx context.Context, identifier string) (*Booking, error) {
	q, err := r.locking(ctx)
	if err != nil {
		return nil, err
	}
	b, err := scanBooking(q.QueryRow(ctx, "SELECT "+bookingColumns+`
		FROM bookings
		WHERE booking_reference = $1 OR pnr = $1
		LIMIT 1
		FOR UPDATE`, normalizeIdentifier(identifier)))
	if err != nil {
		return nil, notFound(err, "booking")
	}
	return &b, nil
}

// LockBookingByID locks a booking found by its id
func (r *Repository) LockBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	q, err := r.locking(ctx)
	if err != nil {
		return nil, err
	}
	b, err := scanBooking(q.QueryRow(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err, "booking")
	}
	return &b, nil
}

// ListUserBookings returns a user's bookings, newest first
func (r *Repository) ListUserBookings(ctx context.Context, userID string) ([]Booking, error) {
	rows, err := r.q(ctx).Query(ctx, "SELECT "+bookingColumns+`
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListPendingBookingIDs returns pending bookings created before cutoff,
// oldest first.
func (r *Repository) ListPendingBookingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT id FROM bookings
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, BookingStatusPaymentPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending bookings: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan booking id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ConfirmBooking moves a pending booking to confirmed and stores its PNR
func (r *Repository) ConfirmBooking(ctx context.Context, id uuid.UUID, pnr string, at time.Time) error {
	result, err := r.q(ctx).Exec(ctx, `
		UPDATE bookings
		SET status = $1, pnr = $2, confirmed_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
	`, BookingStatusConfirmed, pnr, at, id, BookingStatusPaymentPending)
	if err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelBooking moves an active booking to cancelled
func (r *Repository) CancelBooking(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	_, err := r.q(ctx).Exec(ctx, `
		UPDATE bookings
		SET status = $1, cancellation_reason = $2, cancelled_at = $3, updated_at = $3
		WHERE id = $4 AND status <> $1
	`, BookingStatusCancelled, reason, at, id)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return nil
}

// --- Ticket Operations ---

const ticketColumns = `
	id, booking_id, flight_id, seat_id, passenger_name, passenger_age, passenger_gender,
	airline_name, flight_number, route, departure_airport, arrival_airport, departure_city, arrival_city,
	departure_time, arrival_time, seat_number, seat_class, seat_position, payment_required, currency,
	ticket_number, issued_at, created_at`

// CreateTickets inserts the tickets of a booking in one round trip
func (r *Repository) CreateTickets(ctx context.Context, tickets []Ticket) error {
	batch := &pgx.Batch{}
	for i := range tickets {
		t := &tickets[i]
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		batch.Queue(`
			INSERT INTO tickets (id, booking_id, flight_id, seat_id, passenger_name, passenger_age, passenger_gender,
			                     airline_name, flight_number, route, departure_airport, arrival_airport,
			                     departure_city, arrival_city, departure_time, arrival_time,
			                     seat_number, seat_class, seat_position, payment_required, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
			RETURNING created_at`,
			t.ID, t.BookingID, t.FlightID, t.SeatID, t.PassengerName, t.PassengerAge, t.PassengerGender,
			t.AirlineName, t.FlightNumber, t.Route, t.DepartureAirport, t.ArrivalAirport,
			t.DepartureCity, t.ArrivalCity, t.DepartureTime, t.ArrivalTime,
			t.SeatNumber, t.SeatClass, t.SeatPosition, t.PaymentRequired, t.Currency,
		)
	}

	results := r.q(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for i := range tickets {
		if err := results.QueryRow().Scan(&tickets[i].CreatedAt); err != nil {
			return fmt.Errorf("failed to create ticket: %w", err)
		}
	}
	return nil
}

// GetTickets returns the tickets of a booking
func (r *Repository) GetTickets(ctx context.Context, bookingID uuid.UUID) ([]Ticket, error) {
	rows, err := r.q(ctx).Query(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE booking_id = $1 ORDER BY created_at, id", bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		var t Ticket
		err := rows.Scan(
			&t.ID, &t.BookingID, &t.FlightID, &t.SeatID, &t.PassengerName, &t.PassengerAge, &t.PassengerGender,
			&t.AirlineName, &t.FlightNumber, &t.Route, &t.DepartureAirport, &t.ArrivalAirport, &t.DepartureCity, &t.ArrivalCity,
			&t.DepartureTime, &t.ArrivalTime, &t.SeatNumber, &t.SeatClass, &t.SeatPosition, &t.PaymentRequired, &t.Currency,
			&t.TicketNumber, &t.IssuedAt, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// IssueTicket assigns a ticket number unless one is already set. It reports
// whether the ticket was updated.
func (r *Repository) IssueTicket(ctx context.Context, ticketID uuid.UUID, number string, at time.Time) (bool, error) {
	result, err := r.q(ctx).Exec(ctx, `
		UPDATE tickets
		SET ticket_number = $1, issued_at = $2
		WHERE id = $3 AND ticket_number IS NULL
	`, number, at, ticketID)
	if err != nil {
		return false, fmt.Errorf("failed to issue ticket: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func normalizeIdentifier(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
