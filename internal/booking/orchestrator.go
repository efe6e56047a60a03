// Package booking holds seats for passenger groups, prices them, and turns
// paid holds into issued tickets. Every decision that reads inventory takes
// its row locks in the same transaction as the write that follows it.
package booking

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/metrics"
)

// Repository is the slice of the store the orchestrator needs. Lock*
// methods must be called with a context from TxManager.WithinTransaction.
type Repository interface {
	GetFlight(ctx context.Context, id uuid.UUID) (*database.Flight, error)
	LockFlight(ctx context.Context, id uuid.UUID) (*database.Flight, error)
	CreateFlight(ctx context.Context, f *database.Flight, seats []database.Seat) error
	SeatCounts(ctx context.Context, flightID uuid.UUID) (database.SeatCounts, error)

	LockSeatsByID(ctx context.Context, flightID uuid.UUID, seatIDs []int64) ([]database.Seat, error)
	LockAvailableSeats(ctx context.Context, flightID uuid.UUID, class string, limit int) ([]database.Seat, error)
	AttachSeats(ctx context.Context, bookingID uuid.UUID, seatIDs []int64) (int64, error)
	ReleaseSeats(ctx context.Context, bookingID uuid.UUID, seatIDs []int64) (int64, error)

	ReferenceExists(ctx context.Context, reference string) (bool, error)
	PNRExists(ctx context.Context, pnr string) (bool, error)
	TicketNumberExists(ctx context.Context, number string) (bool, error)

	CreateBooking(ctx context.Context, b *database.Booking) error
	GetBooking(ctx context.Context, identifier string) (*database.Booking, error)
	LockBooking(ctx context.Context, identifier string) (*database.Booking, error)
	LockBookingByID(ctx context.Context, id uuid.UUID) (*database.Booking, error)
	ListPendingBookingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	ConfirmBooking(ctx context.Context, id uuid.UUID, pnr string, at time.Time) error
	CancelBooking(ctx context.Context, id uuid.UUID, reason string, at time.Time) error

	CreateTickets(ctx context.Context, tickets []database.Ticket) error
	GetTickets(ctx context.Context, bookingID uuid.UUID) ([]database.Ticket, error)
	IssueTicket(ctx context.Context, ticketID uuid.UUID, number string, at time.Time) (bool, error)

	CreatePayment(ctx context.Context, p *database.Payment) error
	ListPayments(ctx context.Context, bookingID uuid.UUID) ([]database.Payment, error)
}

// TxManager runs fn in one transaction, committing only when fn returns nil.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	DefaultCurrency = "INR"
	DefaultHoldTTL  = 15 * time.Minute

	maxPassengers = 9
)

// Orchestrator coordinates seat allocation, payment and cancellation.
type Orchestrator struct {
	repo     Repository
	tx       TxManager
	codes    *CodeGenerator
	logger   *logrus.Logger
	now      func() time.Time
	currency string
	holdTTL  time.Duration
}

type Option func(*Orchestrator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithCurrency(currency string) Option {
	return func(o *Orchestrator) {
		if currency != "" {
			o.currency = currency
		}
	}
}

// WithHoldTTL sets how long an unpaid booking keeps its seats.
func WithHoldTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.holdTTL = ttl
		}
	}
}

// WithRandom sets the randomness behind booking codes.
func WithRandom(r io.Reader) Option {
	return func(o *Orchestrator) { o.codes = NewCodeGenerator(r) }
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(repo Repository, tx TxManager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:     repo,
		tx:       tx,
		codes:    NewCodeGenerator(nil),
		logger:   logrus.StandardLogger(),
		now:      time.Now,
		currency: DefaultCurrency,
		holdTTL:  DefaultHoldTTL,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HoldTTL is how long an unpaid booking keeps its seats.
func (o *Orchestrator) HoldTTL() time.Duration {
	return o.holdTTL
}

// Currency is the tag stamped on tickets and payments.
func (o *Orchestrator) Currency() string {
	return o.currency
}

func (o *Orchestrator) clock() time.Time {
	return o.now().UTC()
}

// violation records a check that correct locking makes unreachable.
func (o *Orchestrator) violation(check string, fields logrus.Fields, format string, args ...any) *Error {
	metrics.InvariantViolations.WithLabelValues(check).Inc()
	o.logger.WithFields(fields).WithField("invariant", check).Errorf(format, args...)
	return ErrInvariantViolation.With(format, args...)
}

func mapNotFound(err error, notFound *Error) error {
	if errors.Is(err, database.ErrNotFound) {
		return notFound
	}
	return err
}
