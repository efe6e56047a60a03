package activities

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/cx-tal-miterani/flight-inventory/internal/booking"
	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/database/memdb"
	"github.com/cx-tal-miterani/flight-inventory/internal/logging"
	"github.com/cx-tal-miterani/flight-inventory/internal/simulator"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e models.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	store     *memdb.Store
	orch      *booking.Orchestrator
	flight    *database.Flight
	publisher *recordingPublisher
	acts      *Activities
	env       *testsuite.TestActivityEnvironment
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memdb.New(), now: testNow, publisher: &recordingPublisher{}}
	clock := func() time.Time { return f.now }
	f.store.Now = clock
	f.orch = booking.NewOrchestrator(f.store, f.store, booking.WithClock(clock), booking.WithLogger(logging.Discard()))

	departure := testNow.Add(3 * 24 * time.Hour)
	flight, err := f.orch.CreateFlight(context.Background(), &models.CreateFlightRequest{
		FlightNumber:    "UK955",
		AirlineCode:     "UK",
		AirlineName:     "Vistara",
		OriginCode:      "DEL",
		OriginCity:      "Delhi",
		DestinationCode: "BLR",
		DestinationCity: "Bengaluru",
		DepartureTime:   departure,
		ArrivalTime:     departure.Add(3 * time.Hour),
		BasePrice:       4200,
		DemandLevel:     "medium",
		Seats:           models.CabinSeats{Economy: 30},
	})
	require.NoError(t, err)
	f.flight = flight

	sim := simulator.New(f.store, f.store,
		simulator.WithSeed(7),
		simulator.WithClock(clock),
		simulator.WithLogger(logging.Discard()))
	f.acts = New(f.orch, sim, f.publisher)
	f.acts.now = clock

	var ts testsuite.WorkflowTestSuite
	f.env = ts.NewTestActivityEnvironment()
	f.env.RegisterActivity(f.acts)
	return f
}

func (f *fixture) book(t *testing.T) *models.BookingDetails {
	t.Helper()
	d, err := f.orch.CreateBooking(context.Background(), &models.CreateBookingRequest{
		UserID:        "user-1",
		FlightID:      f.flight.ID.String(),
		DepartureDate: f.flight.DepartureTime.Format("2006-01-02"),
		Tier:          "ECONOMY",
		Passengers:    []models.Passenger{{Name: "Asha Rao", Age: 34}},
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) expire(t *testing.T, id string) (bool, error) {
	t.Helper()
	val, err := f.env.ExecuteActivity(f.acts.ExpireBooking, id)
	if err != nil {
		return false, err
	}
	var expired bool
	require.NoError(t, val.Get(&expired))
	return expired, nil
}

func TestExpireBooking_AfterHold(t *testing.T) {
	f := newFixture(t)
	d := f.book(t)
	f.now = f.now.Add(booking.DefaultHoldTTL + time.Second)

	expired, err := f.expire(t, d.Booking.ID.String())
	require.NoError(t, err)
	assert.True(t, expired)

	b, ok := f.store.Booking(d.Booking.ID)
	require.True(t, ok)
	assert.Equal(t, database.BookingStatusCancelled, b.Status)
	assert.Equal(t, 30, f.store.Inventory(f.flight.ID).Available)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, models.EventBookingCancelled, f.publisher.events[0].Type)
	assert.Equal(t, d.Booking.BookingReference, f.publisher.events[0].BookingReference)
	assert.Equal(t, models.OriginWorker, f.publisher.events[0].Origin)
}

func TestExpireBooking_InsideHold(t *testing.T) {
	f := newFixture(t)
	d := f.book(t)

	expired, err := f.expire(t, d.Booking.ID.String())
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Empty(t, f.publisher.events)
	assert.Equal(t, 29, f.store.Inventory(f.flight.ID).Available)
}

func TestExpireBooking_AlreadyPaid(t *testing.T) {
	f := newFixture(t)
	d := f.book(t)
	res, err := f.orch.CreatePayment(context.Background(), &models.PaymentRequest{
		BookingReference: d.Booking.BookingReference,
		Amount:           d.Booking.TotalFare,
		Method:           "card",
	})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	f.now = f.now.Add(time.Hour)

	expired, err := f.expire(t, d.Booking.ID.String())
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestExpireBooking_UnknownBooking(t *testing.T) {
	f := newFixture(t)

	expired, err := f.expire(t, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestExpireBooking_InvalidID(t *testing.T) {
	f := newFixture(t)

	_, err := f.expire(t, "not-a-uuid")
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
}

func TestExpireBooking_PublishFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	d := f.book(t)
	f.now = f.now.Add(booking.DefaultHoldTTL + time.Second)

	expired, err := f.expire(t, d.Booking.ID.String())
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestRunDemandSimulation(t *testing.T) {
	f := newFixture(t)

	val, err := f.env.ExecuteActivity(f.acts.RunDemandSimulation)
	require.NoError(t, err)

	var report models.SimulationReport
	require.NoError(t, val.Get(&report))
	assert.Equal(t, 1, report.FlightsConsidered)
	assert.Equal(t, 30-report.SeatsSold, f.store.Inventory(f.flight.ID).Available)
}
