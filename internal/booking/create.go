package booking

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/metrics"
	"github.com/cx-tal-miterani/flight-inventory/internal/pricing"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

const dateLayout = "2006-01-02"

// bookingInput is a request that passed validation.
type bookingInput struct {
	flightID   uuid.UUID
	date       time.Time
	tier       pricing.Tier
	passengers []models.Passenger
	seatIDs    []int64
}

// validate rejects malformed requests before any lock is taken.
func validate(req *models.CreateBookingRequest) (*bookingInput, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrInvalidRequest.With("user id is required")
	}
	flightID, err := uuid.Parse(strings.TrimSpace(req.FlightID))
	if err != nil {
		return nil, ErrInvalidRequest.With("invalid flight id %q", req.FlightID)
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.DepartureDate))
	if err != nil {
		return nil, ErrInvalidDepartureDate
	}

	if len(req.Passengers) == 0 || len(req.Passengers) > maxPassengers {
		return nil, ErrInvalidPassengers
	}
	passengers := make([]models.Passenger, len(req.Passengers))
	for i, p := range req.Passengers {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, ErrInvalidPassengers.With("passenger %d has no name", i+1)
		}
		if p.Age < 0 || p.Age > 120 {
			return nil, ErrInvalidPassengers.With("passenger %d has an invalid age", i+1)
		}
		passengers[i] = p
	}

	if len(req.SeatIDs) > 0 {
		if len(req.SeatIDs) != len(passengers) {
			return nil, ErrSeatCountMismatch.With("%d seats for %d passengers", len(req.SeatIDs), len(passengers))
		}
		seen := make(map[int64]bool, len(req.SeatIDs))
		for _, id := range req.SeatIDs {
			if seen[id] {
				return nil, ErrDuplicateSeat.With("seat %d requested twice", id)
			}
			seen[id] = true
		}
	}

	return &bookingInput{
		flightID:   flightID,
		date:       date,
		tier:       pricing.ParseTier(req.Tier),
		passengers: passengers,
		seatIDs:    req.SeatIDs,
	}, nil
}

// CreateBooking holds seats for every passenger and records a booking in
// payment_pending state. Nothing is persisted unless every seat is held.
func (o *Orchestrator) CreateBooking(ctx context.Context, req *models.CreateBookingRequest) (*models.BookingDetails, error) {
	in, err := validate(req)
	if err != nil {
		metrics.BookingFailures.WithLabelValues(CodeOf(err)).Inc()
		return nil, err
	}

	var details *models.BookingDetails
	err = o.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		details, err = o.createBooking(ctx, req.UserID, in)
		return err
	})
	if err != nil {
		metrics.BookingFailures.WithLabelValues(CodeOf(err)).Inc()
		return nil, err
	}

	metrics.BookingsCreated.WithLabelValues(string(in.tier)).Inc()
	o.logger.WithFields(logrus.Fields{
		"booking_reference": details.Booking.BookingReference,
		"flight_id":         in.flightID,
		"tier":              in.tier,
		"seats":             len(details.Tickets),
		"total_fare":        details.TotalFare,
	}).Info("Booking created")
	return details, nil
}

func (o *Orchestrator) createBooking(ctx context.Context, userID string, in *bookingInput) (*models.BookingDetails, error) {
	now := o.clock()

	flight, err := o.repo.LockFlight(ctx, in.flightID)
	if err != nil {
		return nil, mapNotFound(err, ErrFlightNotFound)
	}
	if !flight.Bookable(now) {
		return nil, ErrFlightNotBookable.With("flight %s is %s", flight.FlightNumber, flight.Status)
	}
	if !sameDay(flight.DepartureTime, in.date) {
		return nil, ErrInvalidDepartureDate.With("flight %s departs on %s", flight.FlightNumber, flight.DepartureTime.UTC().Format(dateLayout))
	}

	// Counts are read under the flight lock, before this booking's seats are taken.
	counts, err := o.repo.SeatCounts(ctx, flight.ID)
	if err != nil {
		return nil, err
	}

	cabin := in.tier.Cabin()
	var seats []database.Seat
	if len(in.seatIDs) > 0 {
		seats, err = o.lockRequestedSeats(ctx, flight.ID, cabin, in.seatIDs)
	} else {
		seats, err = o.repo.LockAvailableSeats(ctx, flight.ID, string(cabin), len(in.passengers))
		if err == nil && len(seats) < len(in.passengers) {
			err = ErrNotEnoughSeats.With("%d %s seats left, %d requested", len(seats), cabin, len(in.passengers))
		}
	}
	if err != nil {
		return nil, err
	}

	quote, err := pricing.Compute(pricing.Input{
		BaseFare:    flight.BasePrice,
		Departure:   flight.DepartureTime,
		TotalSeats:  counts.Total,
		BookedSeats: counts.Booked(),
		Demand:      pricing.ParseDemandLevel(flight.DemandLevel),
		Tier:        in.tier,
		Now:         now,
	})
	if err != nil {
		return nil, o.violation("pricing_input", logrus.Fields{"flight_id": flight.ID}, "cannot price flight %s: %v", flight.ID, err)
	}

	reference, err := o.codes.BookingReference(ctx, o.repo.ReferenceExists)
	if err != nil {
		return nil, err
	}

	tickets := make([]database.Ticket, len(seats))
	var totalCents int64
	for i, seat := range seats {
		fare := pricing.SeatPrice(quote.Price, pricing.Position(seat.Position))
		totalCents += cents(fare)
		seatID := seat.ID
		p := in.passengers[i]
		tickets[i] = database.Ticket{
			FlightID:         flight.ID,
			SeatID:           &seatID,
			PassengerName:    p.Name,
			PassengerAge:     p.Age,
			PassengerGender:  p.Gender,
			AirlineName:      flight.AirlineName,
			FlightNumber:     flight.FlightNumber,
			Route:            flight.Route(),
			DepartureAirport: flight.OriginCode,
			ArrivalAirport:   flight.DestinationCode,
			DepartureCity:    flight.OriginCity,
			ArrivalCity:      flight.DestinationCity,
			DepartureTime:    flight.DepartureTime,
			ArrivalTime:      flight.ArrivalTime,
			SeatNumber:       seat.SeatNumber,
			SeatClass:        seat.Class,
			SeatPosition:     seat.Position,
			PaymentRequired:  fare,
			Currency:         o.currency,
		}
	}

	b := &database.Booking{
		BookingReference: reference,
		UserID:           userID,
		FlightID:         flight.ID,
		Tier:             string(in.tier),
		Status:           database.BookingStatusPaymentPending,
		TotalFare:        fromCents(totalCents),
		Currency:         o.currency,
	}
	if err := o.repo.CreateBooking(ctx, b); err != nil {
		return nil, err
	}

	seatIDs := make([]int64, len(seats))
	for i, s := range seats {
		seatIDs[i] = s.ID
	}
	attached, err := o.repo.AttachSeats(ctx, b.ID, seatIDs)
	if err != nil {
		return nil, err
	}
	if attached != int64(len(seatIDs)) {
		return nil, o.violation("seat_attach", logrus.Fields{"flight_id": flight.ID, "booking_reference": reference},
			"attached %d of %d locked seats", attached, len(seatIDs))
	}

	for i := range tickets {
		tickets[i].BookingID = b.ID
	}
	if err := o.repo.CreateTickets(ctx, tickets); err != nil {
		return nil, err
	}

	return o.assemble(b, tickets, nil), nil
}

// lockRequestedSeats locks the caller's seats and checks each one. The
// result follows the caller's order so seat i goes to passenger i.
func (o *Orchestrator) lockRequestedSeats(ctx context.Context, flightID uuid.UUID, cabin pricing.Cabin, ids []int64) ([]database.Seat, error) {
	locked, err := o.repo.LockSeatsByID(ctx, flightID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]database.Seat, len(locked))
	for _, s := range locked {
		byID[s.ID] = s
	}

	seats := make([]database.Seat, len(ids))
	for i, id := range ids {
		s, ok := byID[id]
		switch {
		case !ok:
			return nil, ErrSeatUnavailable.With("seat %d is not on this flight", id)
		case !s.IsAvailable:
			return nil, ErrSeatUnavailable.With("seat %s is already taken", s.SeatNumber)
		case !strings.EqualFold(s.Class, string(cabin)):
			return nil, ErrSeatUnavailable.With("seat %s is in %s, not %s", s.SeatNumber, s.Class, cabin)
		}
		seats[i] = s
	}
	return seats, nil
}

// assemble builds the response view of a booking.
func (o *Orchestrator) assemble(b *database.Booking, tickets []database.Ticket, payments []database.Payment) *models.BookingDetails {
	d := &models.BookingDetails{
		Booking:  *b,
		Tickets:  tickets,
		Payments: payments,
		Seats:    make([]string, 0, len(tickets)),
	}
	if d.Tickets == nil {
		d.Tickets = []database.Ticket{}
	}
	if d.Payments == nil {
		d.Payments = []database.Payment{}
	}

	var total int64
	for _, t := range tickets {
		total += cents(t.PaymentRequired)
		d.Seats = append(d.Seats, SeatLabel(t.SeatClass, t.SeatNumber))
	}
	d.TotalFare = fromCents(total)

	if b.Status == database.BookingStatusPaymentPending {
		expires := b.CreatedAt.Add(o.holdTTL)
		d.HoldExpiresAt = &expires
	}
	return d
}

// sameDay compares the flight's UTC calendar date with a requested date.
func sameDay(departure, date time.Time) bool {
	y1, m1, d1 := departure.UTC().Date()
	y2, m2, d2 := date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func cents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}
