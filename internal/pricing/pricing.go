// Package pricing computes per-seat fares from inventory pressure, time to
// departure, market demand and cabin tier. Everything here is pure: no I/O,
// no shared state.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// PriceCapFactor bounds the final price to this multiple of the base fare.
	PriceCapFactor = 10.0
)

var (
	ErrNegativeBaseFare  = errors.New("base fare must not be negative")
	ErrInvalidSeatCounts = errors.New("booked seats must be between 0 and total seats")
)

// Input is everything the engine needs for one price.
type Input struct {
	BaseFare    float64
	Departure   time.Time
	TotalSeats  int
	BookedSeats int
	Demand      DemandLevel
	Tier        Tier
	// Now defaults to the current time when zero.
	Now time.Time
}

// Breakdown exposes the individual multipliers behind a price.
type Breakdown struct {
	BaseFare            float64 `json:"baseFare"`
	InventoryMultiplier float64 `json:"inventoryMultiplier"`
	TimeMultiplier      float64 `json:"timeMultiplier"`
	DemandMultiplier    float64 `json:"demandMultiplier"`
	TierMultiplier      float64 `json:"tierMultiplier"`
	Capped              bool    `json:"capped"`
	Price               float64 `json:"price"`
}

// ComputeDynamicPrice returns the rounded dynamic price for in.
func ComputeDynamicPrice(in Input) (float64, error) {
	b, err := Compute(in)
	if err != nil {
		return 0, err
	}
	return b.Price, nil
}

// Compute returns the price together with the multipliers that produced it.
// A flight with no seats is priced at its base fare.
func Compute(in Input) (Breakdown, error) {
	if in.BaseFare < 0 || math.IsNaN(in.BaseFare) || math.IsInf(in.BaseFare, 0) {
		return Breakdown{}, fmt.Errorf("%w: %v", ErrNegativeBaseFare, in.BaseFare)
	}
	if in.BookedSeats < 0 || in.TotalSeats < 0 || in.BookedSeats > in.TotalSeats {
		return Breakdown{}, fmt.Errorf("%w: booked=%d total=%d", ErrInvalidSeatCounts, in.BookedSeats, in.TotalSeats)
	}

	if in.TotalSeats == 0 {
		return Breakdown{
			BaseFare:            in.BaseFare,
			InventoryMultiplier: 1,
			TimeMultiplier:      1,
			DemandMultiplier:    1,
			TierMultiplier:      1,
			Price:               Round2(in.BaseFare),
		}, nil
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	b := Breakdown{
		BaseFare:            in.BaseFare,
		InventoryMultiplier: InventoryMultiplier(in.TotalSeats-in.BookedSeats, in.TotalSeats),
		TimeMultiplier:      TimeMultiplier(in.Departure, now),
		DemandMultiplier:    ParseDemandLevel(string(in.Demand)).Multiplier(),
		TierMultiplier:      ParseTier(string(in.Tier)).Multiplier(),
	}

	price := in.BaseFare * b.InventoryMultiplier * b.TimeMultiplier * b.DemandMultiplier * b.TierMultiplier
	if ceiling := PriceCapFactor * in.BaseFare; price > ceiling {
		price = ceiling
		b.Capped = true
	}
	b.Price = Round2(price)
	return b, nil
}

// InventoryMultiplier raises the price as the remaining fraction shrinks.
// Boundaries fall into the lower bracket: exactly 70% remaining is not ">70%".
func InventoryMultiplier(remaining, total int) float64 {
	if total <= 0 {
		return 1.0
	}
	pct := float64(remaining) / float64(total)
	switch {
	case pct > 0.7:
		return 0.90
	case pct > 0.4:
		return 1.00
	case pct > 0.2:
		return 1.10
	default:
		return 1.25
	}
}

// TimeMultiplier raises the price as departure approaches. Both instants are
// compared in UTC.
func TimeMultiplier(departure, now time.Time) float64 {
	hours := departure.UTC().Sub(now.UTC()).Hours()
	switch {
	case hours > 720:
		return 1.00
	case hours > 168:
		return 1.05
	case hours > 48:
		return 1.15
	default:
		return 1.30
	}
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
