package simulator

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cx-tal-miterani/flight-inventory/internal/booking"
	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/database/memdb"
	"github.com/cx-tal-miterani/flight-inventory/internal/logging"
	"github.com/cx-tal-miterani/flight-inventory/internal/pricing"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore() *memdb.Store {
	store := memdb.New()
	store.Now = func() time.Time { return testNow }
	return store
}

func addFlight(t *testing.T, store *memdb.Store, departIn time.Duration, demand string, economy int) *database.Flight {
	t.Helper()
	f := &database.Flight{
		FlightNumber:    "6E" + uuid.NewString()[:4],
		OriginCode:      "BLR",
		DestinationCode: "HYD",
		DepartureTime:   testNow.Add(departIn),
		ArrivalTime:     testNow.Add(departIn + time.Hour),
		BasePrice:       3000,
		DemandLevel:     demand,
		Status:          database.FlightStatusScheduled,
	}
	require.NoError(t, store.CreateFlight(context.Background(), f, booking.LayoutSeats(models.CabinSeats{Economy: economy})))
	return f
}

func sellFirst(t *testing.T, store *memdb.Store, flightID uuid.UUID, n int) {
	t.Helper()
	seats, err := store.ListSeats(context.Background(), flightID)
	require.NoError(t, err)
	var ids []int64
	for _, s := range seats[:n] {
		ids = append(ids, s.ID)
	}
	_, err = store.MarkSeatsSold(context.Background(), ids)
	require.NoError(t, err)
}

func newSimulator(store *memdb.Store, seed int64) *Simulator {
	return New(store, store,
		WithSeed(seed),
		WithClock(func() time.Time { return testNow }),
		WithLogger(logging.Discard()),
	)
}

func demandOf(t *testing.T, store *memdb.Store, id uuid.UUID) string {
	t.Helper()
	f, err := store.GetFlight(context.Background(), id)
	require.NoError(t, err)
	return f.DemandLevel
}

func TestScaledRate(t *testing.T) {
	assert.Equal(t, 3.0, ScaledRate(pricing.DemandMedium, 10*24*time.Hour))
	assert.Equal(t, 4.5, ScaledRate(pricing.DemandMedium, 100*time.Hour))
	assert.Equal(t, 6.0, ScaledRate(pricing.DemandMedium, 47*time.Hour))
	assert.Equal(t, 20.0, ScaledRate(pricing.DemandExtreme, time.Hour))
	assert.Equal(t, 2.0, ScaledRate(pricing.DemandLow, 24*time.Hour))
	assert.Equal(t, 6.0, ScaledRate(pricing.DemandHigh, 7*24*time.Hour))
}

func TestTargetSales_Bounds(t *testing.T) {
	s := New(nil, nil, WithRand(rand.New(rand.NewSource(7))))

	for i := 0; i < 1000; i++ {
		n := s.targetSales(pricing.DemandExtreme, time.Hour, 5)
		assert.GreaterOrEqual(t, n, 0)
		assert.LessOrEqual(t, n, 5)
	}
	for i := 0; i < 1000; i++ {
		assert.Zero(t, s.targetSales(pricing.DemandLow, 30*24*time.Hour, 0))
	}
}

func TestTargetSales_CentresOnRate(t *testing.T) {
	s := New(nil, nil, WithRand(rand.New(rand.NewSource(42))))

	const draws = 5000
	sum := 0
	for i := 0; i < draws; i++ {
		sum += s.targetSales(pricing.DemandExtreme, 10*24*time.Hour, 1000)
	}
	mean := float64(sum) / draws
	// Truncation toward zero pulls the mean roughly half a seat below 10.
	assert.InDelta(t, 9.5, mean, 0.5)
}

func TestRunOnce_SellsWithinWindowAndConservesSeats(t *testing.T) {
	store := newStore()
	soon := addFlight(t, store, 24*time.Hour, "medium", 60)
	later := addFlight(t, store, 5*24*time.Hour, "high", 60)
	outside := addFlight(t, store, 30*24*time.Hour, "extreme", 60)
	grounded := addFlight(t, store, 24*time.Hour, "extreme", 60)
	store.SetFlightStatus(grounded.ID, database.FlightStatusCancelled)

	report, err := newSimulator(store, 1).RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Skipped)
	assert.Equal(t, 2, report.FlightsConsidered)

	total := 0
	for _, f := range []*database.Flight{soon, later} {
		inv := store.Inventory(f.ID)
		assert.Equal(t, inv.Total, inv.Available+inv.Held+inv.Sold)
		assert.Equal(t, report.PerFlight[f.ID.String()], inv.Sold)
		total += inv.Sold
	}
	assert.Equal(t, report.SeatsSold, total)
	assert.Greater(t, report.SeatsSold, 0)

	assert.Zero(t, store.Inventory(outside.ID).Sold)
	assert.Zero(t, store.Inventory(grounded.ID).Sold)
}

func TestRunOnce_NeverSellsHeldSeats(t *testing.T) {
	store := newStore()
	f := addFlight(t, store, 24*time.Hour, "extreme", 6)
	orch := booking.NewOrchestrator(store, store,
		booking.WithClock(func() time.Time { return testNow }),
		booking.WithLogger(logging.Discard()))
	d, err := orch.CreateBooking(context.Background(), &models.CreateBookingRequest{
		UserID:        "u1",
		FlightID:      f.ID.String(),
		DepartureDate: f.DepartureTime.Format("2006-01-02"),
		Passengers:    []models.Passenger{{Name: "A"}, {Name: "B"}},
	})
	require.NoError(t, err)

	_, err = newSimulator(store, 3).RunOnce(context.Background())
	require.NoError(t, err)

	inv := store.Inventory(f.ID)
	assert.Equal(t, 2, inv.Held)
	assert.Equal(t, 6, inv.Available+inv.Held+inv.Sold)
	assert.LessOrEqual(t, inv.Sold, 4)

	seats, err := store.ListSeats(context.Background(), f.ID)
	require.NoError(t, err)
	for _, s := range seats {
		if s.BookingID != nil {
			assert.Equal(t, d.Booking.ID, *s.BookingID)
		}
	}
}

func TestRunOnce_EscalatesNearlyFullFlights(t *testing.T) {
	store := newStore()
	low := addFlight(t, store, 3*24*time.Hour, "low", 10)
	sellFirst(t, store, low.ID, 9)
	high := addFlight(t, store, 3*24*time.Hour, "high", 10)
	sellFirst(t, store, high.ID, 9)
	roomy := addFlight(t, store, 20*24*time.Hour, "low", 100)

	report, err := New(store, store,
		WithSeed(9),
		WithWindow(30*24*time.Hour),
		WithClock(func() time.Time { return testNow }),
		WithLogger(logging.Discard()),
	).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{low.ID.String()}, report.Escalated)
	assert.Equal(t, "high", demandOf(t, store, low.ID))
	assert.Equal(t, "high", demandOf(t, store, high.ID))
	assert.Equal(t, "low", demandOf(t, store, roomy.ID))
}

func TestRunOnce_SameSeedSameOutcome(t *testing.T) {
	run := func() int {
		store := newStore()
		addFlight(t, store, 24*time.Hour, "high", 60)
		report, err := newSimulator(store, 11).RunOnce(context.Background())
		require.NoError(t, err)
		return report.SeatsSold
	}
	assert.Equal(t, run(), run())
}

func TestRunOnce_NotReentrant(t *testing.T) {
	store := newStore()
	addFlight(t, store, 24*time.Hour, "extreme", 30)
	s := newSimulator(store, 1)

	s.running.Lock()
	report, err := s.RunOnce(context.Background())
	s.running.Unlock()

	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Zero(t, report.SeatsSold)
}

func TestRunOnce_FailureRollsBack(t *testing.T) {
	store := newStore()
	f := addFlight(t, store, 24*time.Hour, "extreme", 30)
	sellFirst(t, store, f.ID, 26)
	store.FailOnce("MarkSeatsSold", errors.New("connection lost"))

	_, err := newSimulator(store, 1).RunOnce(context.Background())

	require.Error(t, err)
	assert.Equal(t, 26, store.Inventory(f.ID).Sold)
	assert.Equal(t, "extreme", demandOf(t, store, f.ID))
}

func TestRunOnce_NoFlights(t *testing.T) {
	report, err := newSimulator(newStore(), 1).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, report.FlightsConsidered)
	assert.Zero(t, report.SeatsSold)
}
