package models

import (
	"time"

	"github.com/cx-tal-miterani/flight-inventory/internal/pricing"
)

// SearchFlightsRequest represents a flight search
type SearchFlightsRequest struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departureDate,omitempty"`
	SortBy        string `json:"sortBy,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

// FlightSummary is one search result
type FlightSummary struct {
	ID              string    `json:"id"`
	FlightNumber    string    `json:"flightNumber"`
	AirlineName     string    `json:"airlineName"`
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	DepartureTime   time.Time `json:"departureTime"`
	ArrivalTime     time.Time `json:"arrivalTime"`
	DurationMinutes int       `json:"durationMinutes"`
	BasePrice       float64   `json:"basePrice"`
	TotalSeats      int       `json:"totalSeats"`
	AvailableSeats  int       `json:"availableSeats"`
	DemandLevel     string    `json:"demandLevel"`
}

// CreateFlightRequest represents a request to schedule a flight and lay out its seats
type CreateFlightRequest struct {
	FlightNumber    string     `json:"flightNumber"`
	AirlineCode     string     `json:"airlineCode"`
	AirlineName     string     `json:"airlineName"`
	OriginCode      string     `json:"originCode"`
	OriginCity      string     `json:"originCity"`
	DestinationCode string     `json:"destinationCode"`
	DestinationCity string     `json:"destinationCity"`
	DepartureTime   time.Time  `json:"departureTime"`
	ArrivalTime     time.Time  `json:"arrivalTime"`
	BasePrice       float64    `json:"basePrice"`
	DemandLevel     string     `json:"demandLevel,omitempty"`
	Seats           CabinSeats `json:"seats"`
}

// CabinSeats is the number of seats per cabin
type CabinSeats struct {
	First          int `json:"first"`
	Business       int `json:"business"`
	PremiumEconomy int `json:"premiumEconomy"`
	Economy        int `json:"economy"`
}

// Total is the number of seats across cabins
func (c CabinSeats) Total() int {
	return c.First + c.Business + c.PremiumEconomy + c.Economy
}

// FareQuote is the price of one seat in a tier, before booking
type FareQuote struct {
	FlightID       string                       `json:"flightId"`
	Tier           pricing.Tier                 `json:"tier"`
	Cabin          pricing.Cabin                `json:"cabin"`
	TotalSeats     int                          `json:"totalSeats"`
	AvailableSeats int                          `json:"availableSeats"`
	DemandLevel    pricing.DemandLevel          `json:"demandLevel"`
	Breakdown      pricing.Breakdown            `json:"breakdown"`
	SeatPrices     map[pricing.Position]float64 `json:"seatPrices"`
	Currency       string                       `json:"currency"`
	QuotedAt       time.Time                    `json:"quotedAt"`
}
