// Package service is the application layer behind the HTTP API. It runs
// the booking core under the transient-failure retry policy and fans state
// changes out to the search cache, websocket watchers, the notification
// publisher and the hold expiry workflows.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"

	"github.com/cx-tal-miterani/flight-inventory/internal/booking"
	"github.com/cx-tal-miterani/flight-inventory/internal/cache"
	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/notify"
	"github.com/cx-tal-miterani/flight-inventory/internal/retry"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

const (
	TaskQueue = "flight-booking-queue"

	// HoldExpiryWorkflowName is the registered name of the hold expiry workflow.
	HoldExpiryWorkflowName = "HoldExpiryWorkflow"

	defaultSearchLimit = 50
	maxSearchLimit     = 200
	sweepBatch         = 100
	searchGenKey       = "search:gen"
	publishTimeout     = 5 * time.Second
)

// BookingService defines the booking service interface
type BookingService interface {
	SearchFlights(ctx context.Context, req *models.SearchFlightsRequest) ([]models.FlightSummary, error)
	CreateFlight(ctx context.Context, req *models.CreateFlightRequest) (*database.Flight, error)
	GetFlight(ctx context.Context, flightID string) (*database.Flight, error)
	GetSeats(ctx context.Context, flightID string) ([]database.Seat, error)
	GetAvailability(ctx context.Context, flightID string) ([]database.ClassAvailability, error)
	QuoteFare(ctx context.Context, flightID, tier string) (*models.FareQuote, error)

	CreateBooking(ctx context.Context, req *models.CreateBookingRequest) (*models.BookingDetails, error)
	GetBooking(ctx context.Context, identifier string) (*models.BookingDetails, error)
	ListUserBookings(ctx context.Context, userID string) ([]database.Booking, error)
	CancelBooking(ctx context.Context, identifier string) (*models.BookingDetails, error)

	CreatePayment(ctx context.Context, req *models.PaymentRequest) (*models.PaymentResult, error)
	GetPayment(ctx context.Context, transactionID string) (*database.Payment, error)
}

// Store is the read side of the database the service queries directly.
type Store interface {
	ListFlights(ctx context.Context, filter database.FlightFilter) ([]database.Flight, error)
	GetFlight(ctx context.Context, id uuid.UUID) (*database.Flight, error)
	ListSeats(ctx context.Context, flightID uuid.UUID) ([]database.Seat, error)
	ClassAvailability(ctx context.Context, flightID uuid.UUID) ([]database.ClassAvailability, error)
	SeatTotalsByFlight(ctx context.Context, flightIDs []uuid.UUID) (map[uuid.UUID]int, error)
	AvailableSeatsByFlight(ctx context.Context, flightIDs []uuid.UUID) (map[uuid.UUID]int, error)
	ListUserBookings(ctx context.Context, userID string) ([]database.Booking, error)
	GetPaymentByTransaction(ctx context.Context, transactionID string) (*database.Payment, error)
}

// Broadcaster pushes seat changes to live watchers of a flight.
type Broadcaster interface {
	BroadcastSeatsHeld(flightID, reference string, seatIDs []int64)
	BroadcastSeatsBooked(flightID, reference string, seatIDs []int64)
	BroadcastSeatsReleased(flightID, reference string, seatIDs []int64)
}

// Workflows is the part of the Temporal client used to guard holds.
type Workflows interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
}

// Config tunes the service.
type Config struct {
	TaskQueue string
	SearchTTL time.Duration
	Retry     retry.Policy
	// Origin tags published events. Defaults to a random id per service.
	Origin string
}

// Deps are the collaborators of the service. Cache, Broadcaster,
// Publisher and Workflows are optional.
type Deps struct {
	Store        Store
	Orchestrator *booking.Orchestrator
	Cache        cache.Cache
	Broadcaster  Broadcaster
	Publisher    notify.Publisher
	Workflows    Workflows
	Logger       *logrus.Logger
	Now          func() time.Time
}

// Service implements BookingService
type Service struct {
	store     Store
	orch      *booking.Orchestrator
	cache     cache.Cache
	hub       Broadcaster
	publisher notify.Publisher
	workflows Workflows
	logger    *logrus.Logger
	now       func() time.Time
	cfg       Config
}

// NewBookingService creates a new BookingService
func NewBookingService(deps Deps, cfg Config) *Service {
	if cfg.TaskQueue == "" {
		cfg.TaskQueue = TaskQueue
	}
	if cfg.Origin == "" {
		cfg.Origin = "server-" + uuid.NewString()
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	s := &Service{
		store:     deps.Store,
		orch:      deps.Orchestrator,
		cache:     deps.Cache,
		hub:       deps.Broadcaster,
		publisher: deps.Publisher,
		workflows: deps.Workflows,
		logger:    deps.Logger,
		now:       deps.Now,
		cfg:       cfg,
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.publisher == nil {
		s.publisher = notify.NewLogPublisher(s.logger)
	}
	return s
}

func parseFlightID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, booking.ErrFlightNotFound.With("flight %q not found", id)
	}
	return parsed, nil
}

func flightNotFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return booking.ErrFlightNotFound
	}
	return err
}

// --- Flights ---

func (s *Service) SearchFlights(ctx context.Context, req *models.SearchFlightsRequest) ([]models.FlightSummary, error) {
	filter := database.FlightFilter{
		Origin:      strings.TrimSpace(req.Origin),
		Destination: strings.TrimSpace(req.Destination),
		SortBy:      strings.ToLower(strings.TrimSpace(req.SortBy)),
		Limit:       req.Limit,
		From:        s.now(),
	}
	switch filter.SortBy {
	case "":
		filter.SortBy = database.SortByDeparture
	case database.SortByDeparture, database.SortByPrice, database.SortByDuration:
	default:
		return nil, booking.ErrInvalidRequest.With("sortBy must be one of departure, price, duration")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultSearchLimit
	}
	if filter.Limit > maxSearchLimit {
		filter.Limit = maxSearchLimit
	}
	if req.DepartureDate != "" {
		date, err := time.Parse("2006-01-02", req.DepartureDate)
		if err != nil {
			return nil, booking.ErrInvalidDepartureDate
		}
		filter.Date = date
	}

	key := s.searchKey(ctx, filter)
	if key != "" {
		var cached []models.FlightSummary
		if ok, err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil && ok {
			return cached, nil
		} else if err != nil {
			s.logger.WithError(err).Warn("Search cache read failed")
		}
	}

	flights, err := s.store.ListFlights(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(flights))
	for i, f := range flights {
		ids[i] = f.ID
	}
	totals, err := s.store.SeatTotalsByFlight(ctx, ids)
	if err != nil {
		return nil, err
	}
	available, err := s.store.AvailableSeatsByFlight(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]models.FlightSummary, 0, len(flights))
	for _, f := range flights {
		results = append(results, models.FlightSummary{
			ID:              f.ID.String(),
			FlightNumber:    f.FlightNumber,
			AirlineName:     f.AirlineName,
			Origin:          f.OriginCode,
			Destination:     f.DestinationCode,
			DepartureTime:   f.DepartureTime,
			ArrivalTime:     f.ArrivalTime,
			DurationMinutes: int(f.ArrivalTime.Sub(f.DepartureTime).Minutes()),
			BasePrice:       f.BasePrice,
			TotalSeats:      totals[f.ID],
			AvailableSeats:  available[f.ID],
			DemandLevel:     f.DemandLevel,
		})
	}

	if key != "" {
		if err := cache.SetJSON(ctx, s.cache, key, results, s.cfg.SearchTTL); err != nil {
			s.logger.WithError(err).Warn("Search cache write failed")
		}
	}
	return results, nil
}

// searchKey returns "" when caching is off. The key embeds a generation
// that every inventory change bumps, so stale availability is never served
// past the next booking or cancellation.
func (s *Service) searchKey(ctx context.Context, f database.FlightFilter) string {
	if s.cache == nil || s.cfg.SearchTTL <= 0 {
		return ""
	}
	gen := "0"
	if raw, ok, err := s.cache.Get(ctx, searchGenKey); err == nil && ok {
		gen = string(raw)
	}
	date := ""
	if !f.Date.IsZero() {
		date = f.Date.Format("2006-01-02")
	}
	return fmt.Sprintf("search:%s:%s|%s|%s|%s|%d", gen,
		strings.ToUpper(f.Origin), strings.ToUpper(f.Destination), date, f.SortBy, f.Limit)
}

func (s *Service) invalidateSearch(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, searchGenKey, []byte(uuid.NewString()), 0); err != nil {
		s.logger.WithError(err).Warn("Search cache invalidation failed")
	}
}

func (s *Service) CreateFlight(ctx context.Context, req *models.CreateFlightRequest) (*database.Flight, error) {
	f, err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) (*database.Flight, error) {
		return s.orch.CreateFlight(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSearch(ctx)
	return f, nil
}

func (s *Service) GetFlight(ctx context.Context, flightID string) (*database.Flight, error) {
	id, err := parseFlightID(flightID)
	if err != nil {
		return nil, err
	}
	f, err := s.store.GetFlight(ctx, id)
	if err != nil {
		return nil, flightNotFound(err)
	}
	return f, nil
}

func (s *Service) GetSeats(ctx context.Context, flightID string) ([]database.Seat, error) {
	f, err := s.GetFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}
	return s.store.ListSeats(ctx, f.ID)
}

func (s *Service) GetAvailability(ctx context.Context, flightID string) ([]database.ClassAvailability, error) {
	f, err := s.GetFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}
	return s.store.ClassAvailability(ctx, f.ID)
}

func (s *Service) QuoteFare(ctx context.Context, flightID, tier string) (*models.FareQuote, error) {
	id, err := parseFlightID(flightID)
	if err != nil {
		return nil, err
	}
	return s.orch.QuoteFare(ctx, id, tier)
}

// --- Bookings ---

func (s *Service) CreateBooking(ctx context.Context, req *models.CreateBookingRequest) (*models.BookingDetails, error) {
	d, err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) (*models.BookingDetails, error) {
		return s.orch.CreateBooking(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSearch(ctx)
	if s.hub != nil {
		s.hub.BroadcastSeatsHeld(d.Booking.FlightID.String(), d.Booking.BookingReference, d.SeatIDs())
	}
	s.startHoldExpiry(ctx, d)
	s.publish(ctx, models.EventBookingCreated, d)
	return d, nil
}

func (s *Service) GetBooking(ctx context.Context, identifier string) (*models.BookingDetails, error) {
	return s.orch.GetBooking(ctx, identifier)
}

func (s *Service) ListUserBookings(ctx context.Context, userID string) ([]database.Booking, error) {
	bookings, err := s.store.ListUserBookings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []database.Booking{}
	}
	return bookings, nil
}

func (s *Service) CancelBooking(ctx context.Context, identifier string) (*models.BookingDetails, error) {
	type outcome struct {
		details   *models.BookingDetails
		cancelled bool
	}
	out, err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) (outcome, error) {
		d, cancelled, err := s.orch.CancelBooking(ctx, identifier)
		return outcome{d, cancelled}, err
	})
	if err != nil {
		return nil, err
	}
	if out.cancelled {
		s.released(ctx, out.details)
	}
	return out.details, nil
}

func (s *Service) released(ctx context.Context, d *models.BookingDetails) {
	s.invalidateSearch(ctx)
	if s.hub != nil {
		s.hub.BroadcastSeatsReleased(d.Booking.FlightID.String(), d.Booking.BookingReference, d.SeatIDs())
	}
	s.settleHold(ctx, d)
	s.publish(ctx, models.EventBookingCancelled, d)
}

// --- Payments ---

func (s *Service) CreatePayment(ctx context.Context, req *models.PaymentRequest) (*models.PaymentResult, error) {
	res, err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) (*models.PaymentResult, error) {
		return s.orch.CreatePayment(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if res.Succeeded() {
		d := &res.Booking
		if s.hub != nil {
			s.hub.BroadcastSeatsBooked(d.Booking.FlightID.String(), d.Booking.BookingReference, d.SeatIDs())
		}
		s.settleHold(ctx, d)
		s.publish(ctx, models.EventBookingConfirmed, d)
	}
	return res, nil
}

func (s *Service) GetPayment(ctx context.Context, transactionID string) (*database.Payment, error) {
	p, err := s.store.GetPaymentByTransaction(ctx, strings.TrimSpace(transactionID))
	if errors.Is(err, database.ErrNotFound) {
		return nil, booking.ErrPaymentNotFound
	}
	return p, err
}

// --- Side effects ---

// startHoldExpiry starts the workflow that expires an unpaid booking. A
// failure here is logged only; the sweep expires the booking instead.
func (s *Service) startHoldExpiry(ctx context.Context, d *models.BookingDetails) {
	if s.workflows == nil {
		return
	}
	id := d.Booking.ID.String()
	opts := client.StartWorkflowOptions{
		ID:        models.HoldExpiryWorkflowID(id),
		TaskQueue: s.cfg.TaskQueue,
	}
	input := models.HoldExpiryInput{BookingID: id, HoldTTL: s.orch.HoldTTL()}
	if _, err := s.workflows.ExecuteWorkflow(context.WithoutCancel(ctx), opts, HoldExpiryWorkflowName, input); err != nil {
		s.logger.WithError(err).WithField("booking_id", id).Warn("Failed to start hold expiry workflow")
	}
}

func (s *Service) settleHold(ctx context.Context, d *models.BookingDetails) {
	if s.workflows == nil {
		return
	}
	id := models.HoldExpiryWorkflowID(d.Booking.ID.String())
	if err := s.workflows.SignalWorkflow(context.WithoutCancel(ctx), id, "", models.SignalBookingSettled, nil); err != nil {
		// The workflow may already have finished.
		s.logger.WithError(err).WithField("workflow_id", id).Debug("Settle signal not delivered")
	}
}

func (s *Service) publish(ctx context.Context, eventType string, d *models.BookingDetails) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	event := models.NewBookingEvent(eventType, d, s.now())
	event.Origin = s.cfg.Origin
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event":             eventType,
			"booking_reference": d.Booking.BookingReference,
		}).Warn("Failed to publish booking event")
	}
}

// HandleBookingEvent applies events raised outside this process. Holds
// expired by the worker or another server are announced to seat map
// watchers here.
func (s *Service) HandleBookingEvent(ctx context.Context, event models.BookingEvent) error {
	if event.Origin == s.cfg.Origin {
		return nil
	}
	if event.Type != models.EventBookingCancelled || event.Reason != database.CancelReasonHoldExpired {
		return nil
	}
	s.invalidateSearch(ctx)
	if s.hub != nil {
		s.hub.BroadcastSeatsReleased(event.FlightID, event.BookingReference, event.SeatIDs)
	}
	return nil
}

// ExpireStale expires pending bookings whose hold has run out and announces
// the released seats. It returns how many bookings were expired.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	expired, err := s.orch.ExpireStaleBookings(ctx, sweepBatch)
	for _, d := range expired {
		s.released(ctx, d)
	}
	return len(expired), err
}

// RunExpirySweep calls ExpireStale every interval until ctx is done.
func (s *Service) RunExpirySweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.ExpireStale(ctx)
			if err != nil {
				s.logger.WithError(err).Warn("Expiry sweep finished with errors")
			}
			if n > 0 {
				s.logger.WithField("expired", n).Info("Expired stale bookings")
			}
		}
	}
}
