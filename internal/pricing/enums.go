package pricing

import "strings"

// DemandLevel is the coarse market-pressure signal of a flight.
type DemandLevel string

const (
	DemandLow     DemandLevel = "low"
	DemandMedium  DemandLevel = "medium"
	DemandHigh    DemandLevel = "high"
	DemandExtreme DemandLevel = "extreme"
)

// ParseDemandLevel maps free text onto a DemandLevel. Unknown values are medium.
func ParseDemandLevel(s string) DemandLevel {
	switch DemandLevel(strings.ToLower(strings.TrimSpace(s))) {
	case DemandLow:
		return DemandLow
	case DemandHigh:
		return DemandHigh
	case DemandExtreme:
		return DemandExtreme
	default:
		return DemandMedium
	}
}

func (d DemandLevel) Multiplier() float64 {
	switch d {
	case DemandLow:
		return 0.95
	case DemandHigh:
		return 1.10
	case DemandExtreme:
		return 1.25
	default:
		return 1.00
	}
}

// AtLeastHigh reports whether d is already high or extreme.
func (d DemandLevel) AtLeastHigh() bool {
	return d == DemandHigh || d == DemandExtreme
}

// Tier is the fare class a booking is made in.
type Tier string

const (
	TierEconomy        Tier = "ECONOMY"
	TierEconomyFlex    Tier = "ECONOMY_FLEX"
	TierPremiumEconomy Tier = "PREMIUM_ECONOMY"
	TierBusiness       Tier = "BUSINESS"
	TierFirst          Tier = "FIRST"
)

// ParseTier maps free text onto a Tier. Empty or unknown values are Economy.
func ParseTier(s string) Tier {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch Tier(norm) {
	case TierEconomyFlex, "FLEX":
		return TierEconomyFlex
	case TierPremiumEconomy, "PREMIUM":
		return TierPremiumEconomy
	case TierBusiness:
		return TierBusiness
	case TierFirst:
		return TierFirst
	default:
		return TierEconomy
	}
}

func (t Tier) Multiplier() float64 {
	switch t {
	case TierEconomyFlex, TierPremiumEconomy:
		return 1.20
	case TierBusiness:
		return 1.80
	case TierFirst:
		return 2.50
	default:
		return 1.00
	}
}

// Cabin returns the seat class a tier books into. Economy-Flex is a fare
// product sold on Economy seats.
func (t Tier) Cabin() Cabin {
	switch t {
	case TierPremiumEconomy:
		return CabinPremiumEconomy
	case TierBusiness:
		return CabinBusiness
	case TierFirst:
		return CabinFirst
	default:
		return CabinEconomy
	}
}

// Cabin is the physical seat class.
type Cabin string

const (
	CabinEconomy        Cabin = "Economy"
	CabinPremiumEconomy Cabin = "Premium Economy"
	CabinBusiness       Cabin = "Business"
	CabinFirst          Cabin = "First"
)

// Cabins lists seat classes from the front of the aircraft to the back.
var Cabins = []Cabin{CabinFirst, CabinBusiness, CabinPremiumEconomy, CabinEconomy}

// Abbreviation is the short label used on seat summaries, e.g. "EC - 32A".
func (c Cabin) Abbreviation() string {
	switch c {
	case CabinPremiumEconomy:
		return "ECF"
	case CabinBusiness:
		return "BUS"
	case CabinFirst:
		return "FC"
	default:
		return "EC"
	}
}

// Position is where a seat sits within its row.
type Position string

const (
	PositionWindow Position = "window"
	PositionMiddle Position = "middle"
	PositionAisle  Position = "aisle"
)

// PositionForColumn derives the position from a seat letter on the
// A-F layout used for every cabin.
func PositionForColumn(column string) Position {
	switch strings.ToUpper(strings.TrimSpace(column)) {
	case "A", "F":
		return PositionWindow
	case "C", "D":
		return PositionAisle
	default:
		return PositionMiddle
	}
}

// Surcharge is the fraction added on top of the dynamic price.
func (p Position) Surcharge() float64 {
	switch p {
	case PositionWindow:
		return 0.05
	case PositionAisle:
		return 0.03
	default:
		return 0
	}
}

// SeatPrice applies the positional surcharge to a dynamic price.
func SeatPrice(dynamicPrice float64, p Position) float64 {
	return Round2(dynamicPrice * (1 + p.Surcharge()))
}
