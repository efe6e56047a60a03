// Package simulator emulates market demand by selling seats outside the
// booking flow and escalating flights that are close to selling out.
package simulator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/metrics"
	"github.com/cx-tal-miterani/flight-inventory/internal/pricing"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

const (
	DefaultWindow = 7 * 24 * time.Hour

	// escalationThreshold is the remaining-seat fraction below which demand
	// is raised to high.
	escalationThreshold = 0.2
)

// Repository is the inventory access the simulator needs. Lock* methods
// must run inside TxManager.WithinTransaction.
type Repository interface {
	LockFlightsDepartingBetween(ctx context.Context, from, to time.Time) ([]database.Flight, error)
	SeatTotalsByFlight(ctx context.Context, flightIDs []uuid.UUID) (map[uuid.UUID]int, error)
	AvailableSeatsByFlight(ctx context.Context, flightIDs []uuid.UUID) (map[uuid.UUID]int, error)
	LockAvailableSeatIDs(ctx context.Context, flightID uuid.UUID, limit int) ([]int64, error)
	MarkSeatsSold(ctx context.Context, seatIDs []int64) (int64, error)
	UpdateDemandLevel(ctx context.Context, flightID uuid.UUID, level string) error
}

type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Simulator sells seats on upcoming flights. A Simulator never runs two
// rounds at once; an overlapping call returns a skipped report.
type Simulator struct {
	repo   Repository
	tx     TxManager
	logger *logrus.Logger
	now    func() time.Time
	window time.Duration

	// running guards rng as well as reentry.
	running sync.Mutex
	rng     *rand.Rand
}

type Option func(*Simulator)

// WithWindow sets how far ahead flights are considered.
func WithWindow(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithRand fixes the source of demand jitter.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

// WithSeed seeds the demand jitter. Zero keeps a time-based seed.
func WithSeed(seed int64) Option {
	return func(s *Simulator) {
		if seed != 0 {
			s.rng = rand.New(rand.NewSource(seed))
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

// New creates a Simulator
func New(repo Repository, tx TxManager, opts ...Option) *Simulator {
	s := &Simulator{
		repo:   repo,
		tx:     tx,
		logger: logrus.StandardLogger(),
		now:    time.Now,
		window: DefaultWindow,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BaseRate is the mean number of seats sold per round at a demand level.
func BaseRate(d pricing.DemandLevel) float64 {
	switch d {
	case pricing.DemandLow:
		return 1
	case pricing.DemandHigh:
		return 6
	case pricing.DemandExtreme:
		return 10
	default:
		return 3
	}
}

// ScaledRate raises the base rate as departure approaches.
func ScaledRate(d pricing.DemandLevel, untilDeparture time.Duration) float64 {
	rate := BaseRate(d)
	switch {
	case untilDeparture < 48*time.Hour:
		return rate * 2
	case untilDeparture < 7*24*time.Hour:
		return rate * 1.5
	default:
		return rate
	}
}

// targetSales draws the seats to sell this round: a normal sample around
// the scaled rate, floored at zero and capped at what is available.
func (s *Simulator) targetSales(d pricing.DemandLevel, untilDeparture time.Duration, available int) int {
	rate := ScaledRate(d, untilDeparture)
	sigma := math.Max(1, 0.3*rate)
	n := int(s.rng.NormFloat64()*sigma + rate)
	if n < 0 {
		n = 0
	}
	if n > available {
		n = available
	}
	return n
}

// RunOnce performs one simulation round in a single transaction: flights
// in the window are locked, then their seats, then sold seats are flipped
// in one batched update.
func (s *Simulator) RunOnce(ctx context.Context) (*models.SimulationReport, error) {
	if !s.running.TryLock() {
		s.logger.Warn("Demand simulation already running, skipping round")
		return &models.SimulationReport{Skipped: true, StartedAt: s.now().UTC()}, nil
	}
	defer s.running.Unlock()

	started := s.now().UTC()
	report := &models.SimulationReport{StartedAt: started, PerFlight: map[string]int{}}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.simulate(ctx, started, report)
	})
	if err != nil {
		s.logger.WithError(err).Error("Demand simulation failed")
		return nil, err
	}

	report.Duration = s.now().UTC().Sub(started)
	metrics.SimulatorRuns.Inc()
	metrics.SimulatorSeatsSold.Add(float64(report.SeatsSold))
	metrics.SimulatorEscalations.Add(float64(len(report.Escalated)))
	s.logger.WithFields(logrus.Fields{
		"flights":    report.FlightsConsidered,
		"seats_sold": report.SeatsSold,
		"escalated":  len(report.Escalated),
	}).Info("Demand simulation round complete")
	return report, nil
}

func (s *Simulator) simulate(ctx context.Context, now time.Time, report *models.SimulationReport) error {
	flights, err := s.repo.LockFlightsDepartingBetween(ctx, now, now.Add(s.window))
	if err != nil {
		return err
	}
	report.FlightsConsidered = len(flights)
	if len(flights) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(flights))
	for i, f := range flights {
		ids[i] = f.ID
	}
	totals, err := s.repo.SeatTotalsByFlight(ctx, ids)
	if err != nil {
		return err
	}
	available, err := s.repo.AvailableSeatsByFlight(ctx, ids)
	if err != nil {
		return err
	}

	var toSell []int64
	for _, f := range flights {
		total, free := totals[f.ID], available[f.ID]
		if total == 0 {
			continue
		}
		demand := pricing.ParseDemandLevel(f.DemandLevel)

		if n := s.targetSales(demand, f.DepartureTime.Sub(now), free); n > 0 {
			seats, err := s.repo.LockAvailableSeatIDs(ctx, f.ID, n)
			if err != nil {
				return err
			}
			toSell = append(toSell, seats...)
			report.PerFlight[f.ID.String()] = len(seats)
			free -= len(seats)
		}

		if float64(free)/float64(total) < escalationThreshold && !demand.AtLeastHigh() {
			if err := s.repo.UpdateDemandLevel(ctx, f.ID, string(pricing.DemandHigh)); err != nil {
				return err
			}
			report.Escalated = append(report.Escalated, f.ID.String())
			s.logger.WithFields(logrus.Fields{
				"flight_id":     f.ID,
				"flight_number": f.FlightNumber,
				"remaining":     free,
				"total":         total,
			}).Info("Flight demand escalated to high")
		}
	}

	sold, err := s.repo.MarkSeatsSold(ctx, toSell)
	if err != nil {
		return err
	}
	if sold != int64(len(toSell)) {
		metrics.InvariantViolations.WithLabelValues("simulator_sell").Inc()
		s.logger.WithField("invariant", "simulator_sell").Errorf("sold %d of %d locked seats", sold, len(toSell))
	}
	report.SeatsSold = int(sold)
	return nil
}
