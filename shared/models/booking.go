package models

import (
	"time"

	"github.com/cx-tal-miterani/flight-inventory/internal/database"
)

// Passenger is one traveller on a booking request
type Passenger struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender,omitempty"`
}

// CreateBookingRequest represents a request to hold seats for a group of passengers
type CreateBookingRequest struct {
	// UserID is taken from the authenticated caller, never from the body.
	UserID        string      `json:"-"`
	FlightID      string      `json:"flightId"`
	DepartureDate string      `json:"departureDate"`
	Tier          string      `json:"tier,omitempty"`
	Passengers    []Passenger `json:"passengers"`
	SeatIDs       []int64     `json:"seatIds,omitempty"`
}

// PaymentRequest represents a payment attempt against a booking
type PaymentRequest struct {
	BookingReference string  `json:"-"`
	Amount           float64 `json:"amount"`
	Method           string  `json:"method,omitempty"`
}

// BookingDetails is a booking together with everything hanging off it
type BookingDetails struct {
	Booking  database.Booking   `json:"booking"`
	Tickets  []database.Ticket  `json:"tickets"`
	Payments []database.Payment `json:"payments"`
	// TotalFare is the sum of the tickets' fares.
	TotalFare float64 `json:"totalFare"`
	// Seats holds labels like "EC - 32A".
	Seats []string `json:"seats"`
	// HoldExpiresAt is set while the booking awaits payment.
	HoldExpiresAt *time.Time `json:"holdExpiresAt,omitempty"`
}

// SeatIDs returns the seats referenced by the booking's tickets
func (d *BookingDetails) SeatIDs() []int64 {
	ids := make([]int64, 0, len(d.Tickets))
	for _, t := range d.Tickets {
		if t.SeatID != nil {
			ids = append(ids, *t.SeatID)
		}
	}
	return ids
}

// PaymentResult is the outcome of a payment attempt
type PaymentResult struct {
	Payment database.Payment `json:"payment"`
	Booking BookingDetails   `json:"booking"`
}

// Succeeded reports whether the attempt confirmed the booking
func (r *PaymentResult) Succeeded() bool {
	return r.Payment.Status == database.PaymentStatusSuccess
}

// BookingEvent is published when a booking changes state
type BookingEvent struct {
	Type             string    `json:"type"`
	BookingID        string    `json:"bookingId"`
	BookingReference string    `json:"bookingReference"`
	PNR              string    `json:"pnr,omitempty"`
	UserID           string    `json:"userId"`
	FlightID         string    `json:"flightId"`
	Status           string    `json:"status"`
	TotalFare        float64   `json:"totalFare"`
	Currency         string    `json:"currency"`
	Seats            []string  `json:"seats"`
	SeatIDs          []int64   `json:"seatIds,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	Origin           string    `json:"origin,omitempty"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// Booking event types
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
)

// OriginWorker is the BookingEvent.Origin of events raised by the Temporal
// worker. Servers tag their events with their own id and skip them on receipt.
const OriginWorker = "worker"

// NewBookingEvent builds an event from booking details
func NewBookingEvent(eventType string, d *BookingDetails, at time.Time) BookingEvent {
	e := BookingEvent{
		Type:             eventType,
		BookingID:        d.Booking.ID.String(),
		BookingReference: d.Booking.BookingReference,
		UserID:           d.Booking.UserID,
		FlightID:         d.Booking.FlightID.String(),
		Status:           string(d.Booking.Status),
		TotalFare:        d.TotalFare,
		Currency:         d.Booking.Currency,
		Seats:            d.Seats,
		SeatIDs:          d.SeatIDs(),
		OccurredAt:       at,
	}
	if d.Booking.PNR != nil {
		e.PNR = *d.Booking.PNR
	}
	if d.Booking.CancellationReason != nil {
		e.Reason = *d.Booking.CancellationReason
	}
	return e
}
