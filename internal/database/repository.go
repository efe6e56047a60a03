package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const flightColumns = `
	id, flight_number, airline_code, airline_name, origin_code, origin_city,
	destination_code, destination_city, departure_time, arrival_time,
	base_price, demand_level, status, created_at, updated_at`

func scanFlight(row pgx.Row) (Flight, error) {
	var f Flight
	err := row.Scan(
		&f.ID, &f.FlightNumber, &f.AirlineCode, &f.AirlineName, &f.OriginCode, &f.OriginCity,
		&f.DestinationCode, &f.DestinationCity, &f.DepartureTime, &f.ArrivalTime,
		&f.BasePrice, &f.DemandLevel, &f.Status, &f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

func collectFlights(rows pgx.Rows) ([]Flight, error) {
	defer rows.Close()

	var flights []Flight
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight: %w", err)
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// --- Flight Operations ---

// ListFlights returns upcoming flights matching the filter
func (r *Repository) ListFlights(ctx context.Context, filter FlightFilter) ([]Flight, error) {
	from := filter.From
	if from.IsZero() {
		from = time.Now()
	}

	var (
		where = []string{"departure_time > $1", "status IN ('scheduled', 'delayed')"}
		args  = []any{from}
	)
	if filter.Origin != "" {
		args = append(args, strings.ToUpper(filter.Origin))
		where = append(where, fmt.Sprintf("(UPPER(origin_code) = $%d OR UPPER(origin_city) = $%d)", len(args), len(args)))
	}
	if filter.Destination != "" {
		args = append(args, strings.ToUpper(filter.Destination))
		where = append(where, fmt.Sprintf("(UPPER(destination_code) = $%d OR UPPER(destination_city) = $%d)", len(args), len(args)))
	}
	if !filter.Date.IsZero() {
		day := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, time.UTC)
		args = append(args, day, day.Add(24*time.Hour))
		where = append(where, fmt.Sprintf("departure_time >= $%d AND departure_time < $%d", len(args)-1, len(args)))
	}

	order := "departure_time ASC"
	switch filter.SortBy {
	case SortByPrice:
		order = "base_price ASC, departure_time ASC"
	case SortByDuration:
		order = "(arrival_time - departure_time) ASC, departure_time ASC"
	}

	query := "SELECT " + flightColumns + " FROM flights WHERE " + strings.Join(where, " AND ") + " ORDER BY " + order
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	return collectFlights(rows)
}

// GetFlight returns a flight by ID
func (r *Repository) GetFlight(ctx context.Context, id uuid.UUID) (*Flight, error) {
	f, err := scanFlight(r.q(ctx).QueryRow(ctx, "SELECT "+flightColumns+" FROM flights WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, "flight")
	}
	return &f, nil
}

// LockFlight reads a flight and holds an exclusive row lock on it until the
// surrounding transaction ends.
func (r *Repository) LockFlight(ctx context.Context, id uuid.UUID) (*Flight, error) {
	q, err := r.locking(ctx)
	if err != nil {
		return nil, err
	}
	f, err := scanFlight(q.QueryRow(ctx, "SELECT "+flightColumns+" FROM flights WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err, "flight")
	}
	return &f, nil
}

// LockFlightsDepartingBetween locks every bookable flight departing in
// [from, to], in id order.
func (r *Repository) LockFlightsDepartingBetween(ctx context.Context, from, to time.Time) ([]Flight, error) {
	q, err := r.locking(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, "SELECT "+flightColumns+` FROM flights
		WHERE departure_time >= $1 AND departure_time <= $2
		  AND status IN ('scheduled', 'delayed')
		ORDER BY id
		FOR UPDATE`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to lock flights: %w", err)
	}
	return collectFlights(rows)
}

// CreateFlight inserts a flight together with its seat map.
func (r *Repository) CreateFlight(ctx context.Context, f *Flight, seats []Seat) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	q := r.q(ctx)

	err := q.QueryRow(ctx, `
		INSERT INTO flights (id, flight_number, airline_code, airline_name, origin_code, origin_city,
		                     destination_code, destination_city, departure_time, arrival_time,
		                     base_price, demand_level, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, f.ID, f.FlightNumber, f.AirlineCode, f.AirlineName, f.OriginCode, f.OriginCity,
		f.DestinationCode, f.DestinationCity, f.DepartureTime, f.ArrivalTime,
		f.BasePrice, f.DemandLevel, f.Status,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create flight: %w", err)
	}

	if len(seats) == 0 {
		return nil
	}
	_, err = q.CopyFrom(ctx,
		pgx.Identifier{"seats"},
		[]string{"flight_id", "seat_number", "row_number", "column_letter", "class", "position", "is_available"},
		pgx.CopyFromSlice(len(seats), func(i int) ([]any, error) {
			s := seats[i]
			return []any{f.ID, s.SeatNumber, s.RowNumber, s.ColumnLetter, s.Class, s.Position, true}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create seats: %w", err)
	}
	return nil
}

// SeatCounts returns total and available seats for a flight
func (r *Repository) SeatCounts(ctx context.Context, flightID uuid.UUID) (SeatCounts, error) {
	var c SeatCounts
	err := r.q(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_available)
		FROM seats
		WHERE flight_id = $1
	`, flightID).Scan(&c.Total, &c.Available)
	if err != nil {
		return SeatCounts{}, fmt.Errorf("failed to count seats: %w", err)
	}
	return c, nil
}

// ClassAvailability returns per-cabin seat counts for a flight
func (r *Repository) ClassAvailability(ctx context.Context, flightID uuid.UUID) ([]ClassAvailability, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT class, COUNT(*), COUNT(*) FILTER (WHERE is_available)
		FROM seats
		WHERE flight_id = $1
		GROUP BY class
		ORDER BY MIN(id)
	`, flightID)
	if err != nil {
		return nil, fmt.Errorf("failed to query availability: %w", err)
	}
	defer rows.Close()

	var out []ClassAvailability
	for rows.Next() {
		var a ClassAvailability
		if err := rows.Scan(&a.Class, &a.Total, &a.Available); err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SeatTotalsByFlight counts all seats per flight in one aggregate query.
func (r *Repository) SeatTotalsByFlight(ctx context.Context, flightIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	return r.countSeatsByFlight(ctx, `
		SELECT flight_id, COUNT(*) FROM seats
		WHERE flight_id = ANY($1)
		GROUP BY flight_id`, flightIDs)
}

// AvailableSeatsByFlight counts available seats per flight in one aggregate query.
func (r *Repository) AvailableSeatsByFlight(ctx context.Context, flightIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	return r.countSeatsByFlight(ctx, `
		SELECT flight_id, COUNT(*) FROM seats
		WHERE flight_id = ANY($1) AND is_available
		GROUP BY flight_id`, flightIDs)
}

func (r *Repository) countSeatsByFlight(ctx context.Context, query string, flightIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(flightIDs))
	if len(flightIDs) == 0 {
		return counts, nil
	}

	rows, err := r.q(ctx).Query(ctx, query, flightIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count seats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan seat count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// UpdateDemandLevel sets a flight's demand level
func (r *Repository) UpdateDemandLevel(ctx context.Context, flightID uuid.UUID, level string) error {
	_, err := r.q(ctx).Exec(ctx, `
		UPDATE flights SET demand_level = $1, updated_at = NOW() WHERE id = $2
	`, level, flightID)
	if err != nil {
		return fmt.Errorf("failed to update demand level: %w", err)
	}
	return nil
}
