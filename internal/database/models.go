package database

import (
	"time"

	"github.com/google/uuid"
)

// FlightStatus represents the operational status of a flight
type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "scheduled"
	FlightStatusDelayed   FlightStatus = "delayed"
	FlightStatusCancelled FlightStatus = "cancelled"
	FlightStatusDeparted  FlightStatus = "departed"
)

// Flight represents a flight in the database
type Flight struct {
	ID              uuid.UUID    `json:"id"`
	FlightNumber    string       `json:"flightNumber"`
	AirlineCode     string       `json:"airlineCode"`
	AirlineName     string       `json:"airlineName"`
	OriginCode      string       `json:"originCode"`
	OriginCity      string       `json:"originCity"`
	DestinationCode string       `json:"destinationCode"`
	DestinationCity string       `json:"destinationCity"`
	DepartureTime   time.Time    `json:"departureTime"`
	ArrivalTime     time.Time    `json:"arrivalTime"`
	BasePrice       float64      `json:"basePrice"`
	DemandLevel     string       `json:"demandLevel"`
	Status          FlightStatus `json:"status"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Bookable reports whether seats on the flight can still be sold at now.
func (f *Flight) Bookable(now time.Time) bool {
	if f.Status != FlightStatusScheduled && f.Status != FlightStatusDelayed {
		return false
	}
	return f.DepartureTime.After(now)
}

// Route is the "ORIGIN-DEST" label printed on tickets.
func (f *Flight) Route() string {
	return f.OriginCode + "-" + f.DestinationCode
}

// SeatCounts is a snapshot of a flight's inventory.
type SeatCounts struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}

// Booked counts every unavailable seat, whether held by a booking or sold.
func (c SeatCounts) Booked() int {
	return c.Total - c.Available
}

// ClassAvailability is the inventory of one cabin on a flight.
type ClassAvailability struct {
	Class     string `json:"class"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
}

// Seat represents a seat in the database. A seat that is unavailable with
// no booking was sold outside this system (demand simulation).
type Seat struct {
	ID           int64      `json:"id"`
	FlightID     uuid.UUID  `json:"flightId"`
	SeatNumber   string     `json:"seatNumber"`
	RowNumber    int        `json:"row"`
	ColumnLetter string     `json:"column"`
	Class        string     `json:"class"`
	Position     string     `json:"position"`
	IsAvailable  bool       `json:"isAvailable"`
	BookingID    *uuid.UUID `json:"bookingId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPaymentPending BookingStatus = "payment_pending"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCancelled      BookingStatus = "cancelled"
)

// Active bookings hold their seats.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPaymentPending || s == BookingStatusConfirmed
}

// Cancellation reasons
const (
	CancelReasonUserRequested = "user_requested"
	CancelReasonHoldExpired   = "hold_expired"
)

// Booking represents a booking in the database
type Booking struct {
	ID                 uuid.UUID     `json:"id"`
	BookingReference   string        `json:"bookingReference"`
	PNR                *string       `json:"pnr,omitempty"`
	UserID             string        `json:"userId"`
	FlightID           uuid.UUID     `json:"flightId"`
	Tier               string        `json:"tier"`
	Status             BookingStatus `json:"status"`
	TotalFare          float64       `json:"totalFare"`
	Currency           string        `json:"currency"`
	CancellationReason *string       `json:"cancellationReason,omitempty"`
	ConfirmedAt        *time.Time    `json:"confirmedAt,omitempty"`
	CancelledAt        *time.Time    `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Ticket represents one passenger's seat within a booking. The flight
// fields are a snapshot taken at booking time.
type Ticket struct {
	ID               uuid.UUID  `json:"id"`
	BookingID        uuid.UUID  `json:"bookingId"`
	FlightID         uuid.UUID  `json:"flightId"`
	SeatID           *int64     `json:"seatId,omitempty"`
	PassengerName    string     `json:"passengerName"`
	PassengerAge     int        `json:"passengerAge"`
	PassengerGender  string     `json:"passengerGender"`
	AirlineName      string     `json:"airlineName"`
	FlightNumber     string     `json:"flightNumber"`
	Route            string     `json:"route"`
	DepartureAirport string     `json:"departureAirport"`
	ArrivalAirport   string     `json:"arrivalAirport"`
	DepartureCity    string     `json:"departureCity"`
	ArrivalCity      string     `json:"arrivalCity"`
	DepartureTime    time.Time  `json:"departureTime"`
	ArrivalTime      time.Time  `json:"arrivalTime"`
	SeatNumber       string     `json:"seatNumber"`
	SeatClass        string     `json:"seatClass"`
	SeatPosition     string     `json:"seatPosition"`
	PaymentRequired  float64    `json:"paymentRequired"`
	Currency         string     `json:"currency"`
	TicketNumber     *string    `json:"ticketNumber,omitempty"`
	IssuedAt         *time.Time `json:"issuedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// PaymentStatus represents the outcome of a payment attempt
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment failure reasons
const (
	PaymentFailureInsufficientAmount = "insufficient_amount"
	PaymentFailureSeatMissing        = "seat_missing"
)

// Payment is one entry in the append-only payment ledger
type Payment struct {
	ID            uuid.UUID     `json:"id"`
	BookingID     uuid.UUID     `json:"bookingId"`
	TransactionID string        `json:"transactionId"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	Method        string        `json:"method"`
	Status        PaymentStatus `json:"status"`
	FailureReason *string       `json:"failureReason,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// FlightFilter narrows a flight search.
type FlightFilter struct {
	Origin      string
	Destination string
	// Date matches the UTC calendar day of departure when non-zero.
	Date   time.Time
	SortBy string
	Limit  int
	From   time.Time
}

// Search sort orders
const (
	SortByDeparture = "departure"
	SortByPrice     = "price"
	SortByDuration  = "duration"
)
