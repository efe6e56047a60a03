// Package memdb is an in-memory stand-in for the Postgres repository. It
// runs one transaction at a time and restores its state when a
// transaction fails, so lock-dependent code can be tested without a server.
//
// Each transaction tracks the rows its Lock* calls returned, plus the rows it
// inserted. Inside a transaction, writes to seats, bookings and demand levels
// fail with ErrNotLocked unless the rows they touch are held, so a missing
// FOR UPDATE shows up as an error instead of passing silently. Writes outside
// a transaction behave like single autocommit statements.
package memdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cx-tal-miterani/flight-inventory/internal/database"
)

// ErrNotLocked is returned for a write inside a transaction that does not
// hold the row lock it needs.
var ErrNotLocked = errors.New("row not locked by transaction")

type txKey struct{}

// txn is the lock set of one transaction.
type txn struct {
	flights  map[uuid.UUID]bool
	seats    map[int64]bool
	bookings map[uuid.UUID]bool
}

func newTxn() *txn {
	return &txn{
		flights:  map[uuid.UUID]bool{},
		seats:    map[int64]bool{},
		bookings: map[uuid.UUID]bool{},
	}
}

func txFrom(ctx context.Context) *txn {
	t, _ := ctx.Value(txKey{}).(*txn)
	return t
}

// Store holds flights, seats, bookings, tickets and payments.
type Store struct {
	mu sync.Mutex

	// Now stamps created_at columns. Defaults to time.Now.
	Now func() time.Time

	state
	failures map[string]error
}

type state struct {
	flights    map[uuid.UUID]database.Flight
	seats      map[int64]database.Seat
	nextSeatID int64
	bookings   map[uuid.UUID]database.Booking
	tickets    []database.Ticket
	payments   []database.Payment
}

// New creates an empty Store
func New() *Store {
	return &Store{
		Now: time.Now,
		state: state{
			flights:    map[uuid.UUID]database.Flight{},
			seats:      map[int64]database.Seat{},
			nextSeatID: 1,
			bookings:   map[uuid.UUID]database.Booking{},
		},
		failures: map[string]error{},
	}
}

func (s state) clone() state {
	c := state{
		flights:    make(map[uuid.UUID]database.Flight, len(s.flights)),
		seats:      make(map[int64]database.Seat, len(s.seats)),
		nextSeatID: s.nextSeatID,
		bookings:   make(map[uuid.UUID]database.Booking, len(s.bookings)),
		tickets:    append([]database.Ticket(nil), s.tickets...),
		payments:   append([]database.Payment(nil), s.payments...),
	}
	for k, v := range s.flights {
		c.flights[k] = v
	}
	for k, v := range s.seats {
		c.seats[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	return c
}

// FailOnce makes the next call of the named method return err.
func (s *Store) FailOnce(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *Store) fail(method string) error {
	err, ok := s.failures[method]
	if ok {
		delete(s.failures, method)
	}
	return err
}

func inTx(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

// requireSeats checks that the transaction in ctx holds every existing seat
// in ids and, when withFlight is set, the flight row of each of them.
func (s *Store) requireSeats(ctx context.Context, op string, ids []int64, withFlight bool) error {
	t := txFrom(ctx)
	if t == nil {
		return nil
	}
	for _, id := range ids {
		seat, ok := s.seats[id]
		if !ok {
			continue
		}
		if !t.seats[id] {
			return fmt.Errorf("%s: seat %d: %w", op, id, ErrNotLocked)
		}
		if withFlight && !t.flights[seat.FlightID] {
			return fmt.Errorf("%s: flight %s: %w", op, seat.FlightID, ErrNotLocked)
		}
	}
	return nil
}

func (s *Store) requireBooking(ctx context.Context, op string, id uuid.UUID) error {
	t := txFrom(ctx)
	if t == nil {
		return nil
	}
	if _, ok := s.bookings[id]; ok && !t.bookings[id] {
		return fmt.Errorf("%s: booking %s: %w", op, id, ErrNotLocked)
	}
	return nil
}

func (s *Store) requireFlight(ctx context.Context, op string, id uuid.UUID) error {
	t := txFrom(ctx)
	if t == nil {
		return nil
	}
	if _, ok := s.flights[id]; ok && !t.flights[id] {
		return fmt.Errorf("%s: flight %s: %w", op, id, ErrNotLocked)
	}
	return nil
}

// enter takes the store mutex unless ctx already owns it through a transaction.
func (s *Store) enter(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) locking(ctx context.Context) error {
	if !inTx(ctx) {
		return database.ErrNoTransaction
	}
	return nil
}

func (s *Store) now() time.Time {
	return s.Now().UTC()
}

// WithinTransaction runs fn while holding the store exclusively. State
// changes are undone when fn returns an error.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("WithinTransaction"); err != nil {
		return err
	}
	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, newTxn())); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// --- Flights ---

func (s *Store) CreateFlight(ctx context.Context, f *database.Flight, seats []database.Seat) error {
	defer s.enter(ctx)()
	if err := s.fail("CreateFlight"); err != nil {
		return err
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	now := s.now()
	f.CreatedAt, f.UpdatedAt = now, now
	s.flights[f.ID] = *f
	t := txFrom(ctx)
	if t != nil {
		t.flights[f.ID] = true
	}
	for _, seat := range seats {
		seat.ID = s.nextSeatID
		s.nextSeatID++
		seat.FlightID = f.ID
		seat.IsAvailable = true
		seat.BookingID = nil
		seat.CreatedAt, seat.UpdatedAt = now, now
		s.seats[seat.ID] = seat
		if t != nil {
			t.seats[seat.ID] = true
		}
	}
	return nil
}

func (s *Store) GetFlight(ctx context.Context, id uuid.UUID) (*database.Flight, error) {
	defer s.enter(ctx)()
	f, ok := s.flights[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &f, nil
}

func (s *Store) LockFlight(ctx context.Context, id uuid.UUID) (*database.Flight, error) {
	if err := s.locking(ctx); err != nil {
		return nil, err
	}
	if err := s.fail("LockFlight"); err != nil {
		return nil, err
	}
	f, err := s.GetFlight(ctx, id)
	if err != nil {
		return nil, err
	}
	txFrom(ctx).flights[id] = true
	return f, nil
}

func bookable(f database.Flight) bool {
	return f.Status == database.FlightStatusScheduled || f.Status == database.FlightStatusDelayed
}

func (s *Store) ListFlights(ctx context.Context, filter database.FlightFilter) ([]database.Flight, error) {
	defer s.enter(ctx)()
	from := filter.From
	if from.IsZero() {
		from = s.now()
	}
	var out []database.Flight
	for _, f := range s.flights {
		if !bookable(f) || !f.DepartureTime.After(from) {
			continue
		}
		if filter.Origin != "" && !strings.EqualFold(f.OriginCode, filter.Origin) && !strings.EqualFold(f.OriginCity, filter.Origin) {
			continue
		}
		if filter.Destination != "" && !strings.EqualFold(f.DestinationCode, filter.Destination) && !strings.EqualFold(f.DestinationCity, filter.Destination) {
			continue
		}
		if !filter.Date.IsZero() && f.DepartureTime.UTC().Format("2006-01-02") != filter.Date.Format("2006-01-02") {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch filter.SortBy {
		case database.SortByPrice:
			if a.BasePrice != b.BasePrice {
				return a.BasePrice < b.BasePrice
			}
		case database.SortByDuration:
			da, db := a.ArrivalTime.Sub(a.DepartureTime), b.ArrivalTime.Sub(b.DepartureTime)
			if da != db {
				return da < db
			}
		}
		return a.DepartureTime.Before(b.DepartureTime)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) LockFlightsDepartingBetween(ctx context.Context, from, to time.Time) ([]database.Flight, error) {
	if err := s.locking(ctx); err != nil {
		return nil, err
	}
	t := txFrom(ctx)
	var out []database.Flight
	for _, f := range s.flights {
		if bookable(f) && !f.DepartureTime.Before(from) && !f.DepartureTime.After(to) {
			out = append(out, f)
			t.flights[f.ID] = true
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out, nil
}

func (s *Store) UpdateDemandLevel(ctx context.Context, flightID uuid.UUID, level string) error {
	defer s.enter(ctx)()
	if err := s.requireFlight(ctx, "UpdateDemandLevel", flightID); err != nil {
		return err
	}
	f, ok := s.flights[flightID]
	if !ok {
		return nil
	}
	f.DemandLevel = level
	f.UpdatedAt = s.now()
	s.flights[flightID] = f
	return nil
}

// SetFlightStatus changes a flight's status.
func (s *Store) SetFlightStatus(flightID uuid.UUID, status database.FlightStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flights[flightID]
	f.Status = status
	s.flights[flightID] = f
}

// --- Seats ---

func (s *Store) seatsOf(flightID uuid.UUID) []database.Seat {
	var out []database.Seat
	for _, seat := range s.seats {
		if seat.FlightID == flightID {
			out = append(out, seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListSeats(ctx context.Context, flightID uuid.UUID) ([]database.Seat, error) {
	defer s.enter(ctx)()
	return s.seatsOf(flightID), nil
}

func (s *Store) SeatCounts(ctx context.Context, flightID uuid.UUID) (database.SeatCounts, error) {
	defer s.enter(ctx)()
	var c database.SeatCounts
	for _, seat := range s.seatsOf(flightID) {
		c.Total++
		if seat.IsAvailable {
			c.Available++
		}
	}
	return c, nil
}

func (s *Store) ClassAvailability(ctx context.Context, flightID uuid.UUID) ([]database.ClassAvailability, error) {
	defer s.enter(ctx)()
	var out []database.ClassAvailability
	index := map[string]int{}
	for _, seat := range s.seatsOf(flightID) {
		i, ok := index[seat.Class]
		if !ok {
			i = len(out)
			index[seat.Class] = i
			out = append(out, database.ClassAvailability{Class: seat.Class})
		}
		out[i].Total++
		if seat.IsAvailable {
			out[i].Available++
		}
	}
	return out, nil
}

func (s *Store) countByFlight(flightIDs []uuid.UUID, onlyAvailable bool) map[uuid.UUID]int {
	want := make(map[uuid.UUID]bool, len(flightIDs))
	for _, id := range flightIDs {
		want[id] = true
	}
	counts := make(map[uuid.UUID]int, len(flightIDs))
	for _, seat := range s.seats {
		if want[seat.FlightID] && (!onlyAvailable || seat.IsAvailable) {
			counts[seat.FlightID]++
		}
	}
	return counts
}

func (s *Store) SeatTotalsByFlight(ctx context.Context, flightIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	defer s.enter(ctx)()
	return s.countByFlight(flightIDs, false), nil
}

func (s *Store) AvailableSeatsByFlight(ctx context.Context, flightIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	defer s.enter(ctx)()
	return s.countByFlight(flightIDs, true), nil
}

func (s *Store) LockSeatsByID(ctx context.Context, flightID uuid.UUID, seatIDs []int64) ([]database.Seat, error) {
	if err := s.locking(ctx); err != nil {
		return nil, err
	}
	if err := s.fail("LockSeatsByID"); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(seatIDs))
	for _, id := range seatIDs {
		want[id] = true
	}
	t := txFrom(ctx)
	var out []database.Seat
	for _, seat := range s.seatsOf(flightID) {
		if want[seat.ID] {
			out = append(out, seat)
			t.seats[seat.ID] = true
		}
	}
	return out, nil
}

func (s *Store) LockAvailableSeats(ctx context.Context, flightID uuid.UUID, class string, limit int) ([]database.Seat, error) {
	if err := s.locking(ctx); err != nil {
		return nil, err
	}
	if err := s.fail("LockAvailableSeats"); err != nil {
		return nil, err
	}
	var out []database.Seat
	for _, seat := range s.seatsOf(flightID) {
		if len(out) == limit {
			break
		}
		if seat.IsAvailable && strings.EqualFold(seat.Class, class) {
			out = append(out, seat)
			txFrom(ctx).seats[seat.ID] = true
		}
	}
	return out, nil
}

func (s *Store) LockAvailableSeatIDs(ctx context.Context, flightID uuid.UUID, limit int) ([]int64, error) {
	if err := s.locking(ctx); err != nil {
		return nil, err
	}
	var ids []int64
	for _, seat := range s.seatsOf(flightID) {
		if len(ids) == limit {
			break
		}
		if seat.IsAvailable {
			ids = append(ids, seat.ID)
			txFrom(ctx).seats[seat.ID] = true
		}
	}
	return ids, nil
}

func (s *Store) AttachSeats(ctx context.Context, bookingID uuid.UUID, seatIDs []int64) (int64, error) {
	defer s.enter(ctx)()
	if err := s.fail("AttachSeats"); err != nil {
		return 0, err
	}
	if err := s.requireSeats(ctx, "AttachSeats", seatIDs, true); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range seatIDs {
		seat, ok := s.seats[id]
		if !ok || !seat.IsAvailable {
			continue
		}
		b := bookingID
		seat.IsAvailable = false
		seat.BookingID = &b
		seat.UpdatedAt = s.now()
		s.seats[id] = seat
		n++
	}
	return n, nil
}

func (s *Store) ReleaseSeats(ctx context.Context, bookingID uuid.UUID, seatIDs []int64) (int64, error) {
	defer s.enter(ctx)()
	if err := s.requireBooking(ctx, "ReleaseSeats", bookingID); err != nil {
		return 0, err
	}
	if err := s.requireSeats(ctx, "ReleaseSeats", seatIDs, false); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range seatIDs {
		seat, ok := s.seats[id]
		if !ok || seat.BookingID == nil || *seat.BookingID != bookingID {
			continue
		}
		seat.IsAvailable = true
		seat.BookingID = nil
		seat.UpdatedAt = s.now()
		s.seats[id] = seat
		n++
	}
	return n, nil
}

func (s *Store) MarkSeatsSold(ctx context.Context, seatIDs []int64) (int64, error) {
	defer s.enter(ctx)()
	if err := s.fail("MarkSeatsSold"); err != nil {
		return 0, err
	}
	if err := s.requireSeats(ctx, "MarkSeatsSold", seatIDs, true); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range seatIDs {
		seat, ok := s.seats[id]
		if !ok || !seat.IsAvailable {
			continue
		}
		seat.IsAvailable = false
		seat.UpdatedAt = s.now()
		s.seats[id] = seat
		n++
	}
	return n, nil
}

// SetSeat overwrites a stored seat.
func (s *Store) SetSeat(seat database.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seats[seat.ID] = seat
}

// --- Bookings ---

func (s *Store) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	defer s.enter(ctx)()
	for _, b := range s.bookings {
		if b.BookingReference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) PNRExists(ctx context.Context, pnr string) (bool, error) {
	defer s.enter(ctx)()
	for _, b := range s.bookings {
		if b.PNR != nil && *b.PNR == pnr {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) TicketNumberExists(ctx context.Context, number string) (bool, error) {
	defer s.enter(ctx)()
	for _, t := range s.tickets {
		if t.TicketNumber != nil && *t.TicketNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateBooking(ctx context.Context, b *database.Booking) error {
	defer s.enter(ctx)()
	if err := s.fail("CreateBooking"); err != nil {
		return err
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := s.now()
	b.CreatedAt, b.UpdatedAt = now, now
	s.bookings[b.ID] = *b
	if t := txFrom(ctx); t != nil {
		t.bookings[b.ID] = true
	}
	return nil
}

func (s *Store) find(identifier string) (database.Booking, bool) {
	id := strings.ToUpper(strings.TrimSpace(identifier))
	for _, b := range s.bookings {
		if b.BookingReference == id || (b.PNR != nil && *b.PNR == id) {
			return b, true
		}
	}
	return database.Booking{}, false
}

func (s *Store) GetBooking(ctx context.Context, identifier string) (*database.Booking, error) {
	defer s.enter(ctx)()
	b, ok := s.find(identifier)
	if !ok {
		return nil, database.ErrNotFound
	}
	return &b, nil
}

func (s *Store) LockBooking(ctx context.Context, identifier string) (*database.Booking, error) {
	if err := s.locking(ctx); err != nil {
		return nil, err
	}
	if err := s.fail("LockBooking"); err != nil {
		return nil, err
	}
	b, err := s.GetBooking(ctx, identifier)
	if err != nil {
		return nil, err
	}
	txFrom(ctx).bookings[b.ID] = true
	return b, nil
}

func (s *Store) LockBookingByID(ctx context.Context, id uuid.UUID) (*database.Booking, error) {
	if err := s.locking(ctx); err != nil {
		return nil, err
	}
	b, ok := s.bookings[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	txFrom(ctx).bookings[id] = true
	return &b, nil
}

// Booking returns a stored booking by id.
func (s *Store) Booking(id uuid.UUID) (database.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	return b, ok
}

// SetBookingCreatedAt backdates a booking.
func (s *Store) SetBookingCreatedAt(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookings[id]
	b.CreatedAt = at
	s.bookings[id] = b
}

func (s *Store) ListUserBookings(ctx context.Context, userID string) ([]database.Booking, error) {
	defer s.enter(ctx)()
	var out []database.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListPendingBookingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	defer s.enter(ctx)()
	var pending []database.Booking
	for _, b := range s.bookings {
		if b.Status == database.BookingStatusPaymentPending && b.CreatedAt.Before(cutoff) {
			pending = append(pending, b)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	ids := make([]uuid.UUID, len(pending))
	for i, b := range pending {
		ids[i] = b.ID
	}
	return ids, nil
}

func (s *Store) ConfirmBooking(ctx context.Context, id uuid.UUID, pnr string, at time.Time) error {
	defer s.enter(ctx)()
	if err := s.fail("ConfirmBooking"); err != nil {
		return err
	}
	if err := s.requireBooking(ctx, "ConfirmBooking", id); err != nil {
		return err
	}
	b, ok := s.bookings[id]
	if !ok || b.Status != database.BookingStatusPaymentPending {
		return database.ErrNotFound
	}
	b.Status = database.BookingStatusConfirmed
	b.PNR = &pnr
	b.ConfirmedAt = &at
	b.UpdatedAt = at
	s.bookings[id] = b
	return nil
}

func (s *Store) CancelBooking(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	defer s.enter(ctx)()
	if err := s.requireBooking(ctx, "CancelBooking", id); err != nil {
		return err
	}
	b, ok := s.bookings[id]
	if !ok || b.Status == database.BookingStatusCancelled {
		return nil
	}
	b.Status = database.BookingStatusCancelled
	b.CancellationReason = &reason
	b.CancelledAt = &at
	b.UpdatedAt = at
	s.bookings[id] = b
	return nil
}

// --- Tickets ---

func (s *Store) CreateTickets(ctx context.Context, tickets []database.Ticket) error {
	defer s.enter(ctx)()
	if err := s.fail("CreateTickets"); err != nil {
		return err
	}
	now := s.now()
	for i := range tickets {
		if tickets[i].ID == uuid.Nil {
			tickets[i].ID = uuid.New()
		}
		tickets[i].CreatedAt = now
		s.tickets = append(s.tickets, tickets[i])
	}
	return nil
}

func (s *Store) GetTickets(ctx context.Context, bookingID uuid.UUID) ([]database.Ticket, error) {
	defer s.enter(ctx)()
	var out []database.Ticket
	for _, t := range s.tickets {
		if t.BookingID == bookingID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) IssueTicket(ctx context.Context, ticketID uuid.UUID, number string, at time.Time) (bool, error) {
	defer s.enter(ctx)()
	if err := s.fail("IssueTicket"); err != nil {
		return false, err
	}
	for i := range s.tickets {
		if s.tickets[i].ID != ticketID {
			continue
		}
		if err := s.requireBooking(ctx, "IssueTicket", s.tickets[i].BookingID); err != nil {
			return false, err
		}
		if s.tickets[i].TicketNumber != nil {
			return false, nil
		}
		n := number
		s.tickets[i].TicketNumber = &n
		s.tickets[i].IssuedAt = &at
		return true, nil
	}
	return false, nil
}

// ClearTicketSeat removes the seat reference from a ticket.
func (s *Store) ClearTicketSeat(ticketID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tickets {
		if s.tickets[i].ID == ticketID {
			s.tickets[i].SeatID = nil
		}
	}
}

// --- Payments ---

func (s *Store) CreatePayment(ctx context.Context, p *database.Payment) error {
	defer s.enter(ctx)()
	if err := s.fail("CreatePayment"); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.TransactionID == "" {
		p.TransactionID = uuid.NewString()
	}
	p.CreatedAt = s.now()
	s.payments = append(s.payments, *p)
	return nil
}

func (s *Store) GetPaymentByTransaction(ctx context.Context, transactionID string) (*database.Payment, error) {
	defer s.enter(ctx)()
	for _, p := range s.payments {
		if p.TransactionID == transactionID {
			return &p, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) ListPayments(ctx context.Context, bookingID uuid.UUID) ([]database.Payment, error) {
	defer s.enter(ctx)()
	var out []database.Payment
	for _, p := range s.payments {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- Inspection ---

// Inventory splits a flight's seats by who holds them.
type Inventory struct {
	Total     int
	Available int
	// Held counts seats owned by pending or confirmed bookings.
	Held int
	// Sold counts seats taken without a booking.
	Sold int
	// Orphaned counts unavailable seats pointing at a cancelled or unknown booking.
	Orphaned int
	// Shared counts seats referenced by tickets of more than one active booking.
	Shared int
}

// Inventory reports how a flight's seats are distributed.
func (s *Store) Inventory(flightID uuid.UUID) Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inv Inventory
	for _, seat := range s.seatsOf(flightID) {
		inv.Total++
		switch {
		case seat.IsAvailable:
			inv.Available++
		case seat.BookingID == nil:
			inv.Sold++
		default:
			if b, ok := s.bookings[*seat.BookingID]; ok && b.Status.Active() {
				inv.Held++
			} else {
				inv.Orphaned++
			}
		}
	}

	owners := map[int64]map[uuid.UUID]bool{}
	for _, t := range s.tickets {
		if t.FlightID != flightID || t.SeatID == nil {
			continue
		}
		if b, ok := s.bookings[t.BookingID]; !ok || !b.Status.Active() {
			continue
		}
		if owners[*t.SeatID] == nil {
			owners[*t.SeatID] = map[uuid.UUID]bool{}
		}
		owners[*t.SeatID][t.BookingID] = true
	}
	for _, bookings := range owners {
		if len(bookings) > 1 {
			inv.Shared++
		}
	}
	return inv
}
