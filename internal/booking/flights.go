package booking

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/pricing"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

// CreateFlight schedules a flight and lays out its seats. The seat set is
// fixed from here on.
func (o *Orchestrator) CreateFlight(ctx context.Context, req *models.CreateFlightRequest) (*database.Flight, error) {
	if err := validateFlight(req); err != nil {
		return nil, err
	}

	f := &database.Flight{
		FlightNumber:    strings.ToUpper(strings.TrimSpace(req.FlightNumber)),
		AirlineCode:     strings.ToUpper(strings.TrimSpace(req.AirlineCode)),
		AirlineName:     strings.TrimSpace(req.AirlineName),
		OriginCode:      strings.ToUpper(strings.TrimSpace(req.OriginCode)),
		OriginCity:      strings.TrimSpace(req.OriginCity),
		DestinationCode: strings.ToUpper(strings.TrimSpace(req.DestinationCode)),
		DestinationCity: strings.TrimSpace(req.DestinationCity),
		DepartureTime:   req.DepartureTime.UTC(),
		ArrivalTime:     req.ArrivalTime.UTC(),
		BasePrice:       pricing.Round2(req.BasePrice),
		DemandLevel:     string(pricing.ParseDemandLevel(req.DemandLevel)),
		Status:          database.FlightStatusScheduled,
	}
	seats := LayoutSeats(req.Seats)

	err := o.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return o.repo.CreateFlight(ctx, f, seats)
	})
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"flight_id":     f.ID,
		"flight_number": f.FlightNumber,
		"route":         f.Route(),
		"seats":         len(seats),
	}).Info("Flight created")
	return f, nil
}

func validateFlight(req *models.CreateFlightRequest) error {
	switch {
	case req == nil:
		return ErrInvalidRequest
	case strings.TrimSpace(req.FlightNumber) == "":
		return ErrInvalidRequest.With("flight number is required")
	case strings.TrimSpace(req.OriginCode) == "" || strings.TrimSpace(req.DestinationCode) == "":
		return ErrInvalidRequest.With("origin and destination are required")
	case strings.EqualFold(strings.TrimSpace(req.OriginCode), strings.TrimSpace(req.DestinationCode)):
		return ErrInvalidRequest.With("origin and destination must differ")
	case req.DepartureTime.IsZero() || !req.ArrivalTime.After(req.DepartureTime):
		return ErrInvalidRequest.With("arrival must be after departure")
	case req.BasePrice < 0 || math.IsNaN(req.BasePrice) || math.IsInf(req.BasePrice, 0):
		return ErrInvalidRequest.With("base price must not be negative")
	case req.Seats.First < 0 || req.Seats.Business < 0 || req.Seats.PremiumEconomy < 0 || req.Seats.Economy < 0:
		return ErrInvalidRequest.With("seat counts must not be negative")
	case req.Seats.Total() == 0:
		return ErrInvalidRequest.With("a flight needs at least one seat")
	}
	return nil
}

// QuoteFare prices one seat of a tier against current inventory without
// holding anything. The figure can change before a booking is made.
func (o *Orchestrator) QuoteFare(ctx context.Context, flightID uuid.UUID, tier string) (*models.FareQuote, error) {
	f, err := o.repo.GetFlight(ctx, flightID)
	if err != nil {
		return nil, mapNotFound(err, ErrFlightNotFound)
	}
	counts, err := o.repo.SeatCounts(ctx, flightID)
	if err != nil {
		return nil, err
	}

	now := o.clock()
	t := pricing.ParseTier(tier)
	demand := pricing.ParseDemandLevel(f.DemandLevel)
	breakdown, err := pricing.Compute(pricing.Input{
		BaseFare:    f.BasePrice,
		Departure:   f.DepartureTime,
		TotalSeats:  counts.Total,
		BookedSeats: counts.Booked(),
		Demand:      demand,
		Tier:        t,
		Now:         now,
	})
	if err != nil {
		return nil, o.violation("pricing_input", logrus.Fields{"flight_id": flightID}, "cannot price flight %s: %v", flightID, err)
	}

	return &models.FareQuote{
		FlightID:       flightID.String(),
		Tier:           t,
		Cabin:          t.Cabin(),
		TotalSeats:     counts.Total,
		AvailableSeats: counts.Available,
		DemandLevel:    demand,
		Breakdown:      breakdown,
		SeatPrices: map[pricing.Position]float64{
			pricing.PositionWindow: pricing.SeatPrice(breakdown.Price, pricing.PositionWindow),
			pricing.PositionAisle:  pricing.SeatPrice(breakdown.Price, pricing.PositionAisle),
			pricing.PositionMiddle: pricing.SeatPrice(breakdown.Price, pricing.PositionMiddle),
		},
		Currency: o.currency,
		QuotedAt: now,
	}, nil
}
