package models

import "time"

// Workflow and task identifiers shared by the server and the worker
const (
	HoldExpiryWorkflowIDPrefix = "hold-expiry-"
	DemandSimulatorWorkflowID  = "demand-simulator"
)

// HoldExpiryWorkflowID is the workflow id guarding one booking's hold
func HoldExpiryWorkflowID(bookingID string) string {
	return HoldExpiryWorkflowIDPrefix + bookingID
}

// Signals for workflow communication
const (
	// SignalBookingSettled tells a hold expiry workflow the booking was
	// paid or cancelled and no longer needs expiring.
	SignalBookingSettled = "booking-settled"
)

// Queries for workflow state
const (
	QueryGetState = "get_state"
)

// HoldExpiryInput starts the hold expiry workflow for a booking
type HoldExpiryInput struct {
	BookingID string        `json:"bookingId"`
	HoldTTL   time.Duration `json:"holdTtl"`
}

// HoldExpiryState is exposed through QueryGetState
type HoldExpiryState struct {
	BookingID string    `json:"bookingId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Settled   bool      `json:"settled"`
	Expired   bool      `json:"expired"`
}

// HoldExpiryResult is the final state of the hold expiry workflow
type HoldExpiryResult struct {
	BookingID string `json:"bookingId"`
	// Settled is true when the booking was paid or cancelled before the deadline.
	Settled bool `json:"settled"`
	// Expired is true when the activity cancelled the booking.
	Expired bool `json:"expired"`
}

// DemandSimulationInput configures the demand simulation loop
type DemandSimulationInput struct {
	Interval time.Duration `json:"interval"`
	// RoundsBeforeContinue bounds workflow history; zero uses the default.
	RoundsBeforeContinue int `json:"roundsBeforeContinue,omitempty"`
	// Rounds stops the loop after this many rounds when positive.
	Rounds int `json:"rounds,omitempty"`
}

// SimulationReport summarises one simulation round
type SimulationReport struct {
	FlightsConsidered int            `json:"flightsConsidered"`
	SeatsSold         int            `json:"seatsSold"`
	Escalated         []string       `json:"escalated,omitempty"`
	PerFlight         map[string]int `json:"perFlight,omitempty"`
	Skipped           bool           `json:"skipped,omitempty"`
	StartedAt         time.Time      `json:"startedAt"`
	Duration          time.Duration  `json:"duration"`
}
