package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestComputeDynamicPrice_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		input    Input
		expected float64
	}{
		{
			name: "plenty of seats, far out, medium demand",
			input: Input{
				BaseFare:    5000,
				Departure:   now.Add(60 * 24 * time.Hour),
				TotalSeats:  100,
				BookedSeats: 10,
				Demand:      DemandMedium,
				Tier:        TierEconomy,
				Now:         now,
			},
			expected: 4500.00,
		},
		{
			name: "scarce seats, 30 hours out, high demand",
			input: Input{
				BaseFare:    5000,
				Departure:   now.Add(30 * time.Hour),
				TotalSeats:  100,
				BookedSeats: 85,
				Demand:      DemandHigh,
				Tier:        TierEconomy,
				Now:         now,
			},
			expected: 8937.50,
		},
		{
			name: "business tier loading",
			input: Input{
				BaseFare:    1000,
				Departure:   now.Add(40 * 24 * time.Hour),
				TotalSeats:  10,
				BookedSeats: 5,
				Demand:      DemandMedium,
				Tier:        TierBusiness,
				Now:         now,
			},
			expected: 1800.00,
		},
		{
			name: "no seats returns rounded base fare",
			input: Input{
				BaseFare:   1234.567,
				Departure:  now.Add(time.Hour),
				TotalSeats: 0,
				Demand:     DemandExtreme,
				Tier:       TierFirst,
				Now:        now,
			},
			expected: 1234.57,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := ComputeDynamicPrice(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, price, 0.001)
		})
	}
}

func TestComputeDynamicPrice_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		err   error
	}{
		{"negative base fare", Input{BaseFare: -1, TotalSeats: 10, Now: now}, ErrNegativeBaseFare},
		{"negative booked", Input{BaseFare: 100, TotalSeats: 10, BookedSeats: -1, Now: now}, ErrInvalidSeatCounts},
		{"overbooked", Input{BaseFare: 100, TotalSeats: 10, BookedSeats: 11, Now: now}, ErrInvalidSeatCounts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeDynamicPrice(tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestInventoryMultiplier_Boundaries(t *testing.T) {
	assert.Equal(t, 0.90, InventoryMultiplier(71, 100))
	assert.Equal(t, 1.00, InventoryMultiplier(70, 100), "exactly 70% remaining is not >70%")
	assert.Equal(t, 1.00, InventoryMultiplier(41, 100))
	assert.Equal(t, 1.10, InventoryMultiplier(40, 100))
	assert.Equal(t, 1.10, InventoryMultiplier(21, 100))
	assert.Equal(t, 1.25, InventoryMultiplier(20, 100))
	assert.Equal(t, 1.25, InventoryMultiplier(0, 100))
}

func TestTimeMultiplier_Boundaries(t *testing.T) {
	assert.Equal(t, 1.00, TimeMultiplier(now.Add(721*time.Hour), now))
	assert.Equal(t, 1.05, TimeMultiplier(now.Add(720*time.Hour), now))
	assert.Equal(t, 1.05, TimeMultiplier(now.Add(169*time.Hour), now))
	assert.Equal(t, 1.15, TimeMultiplier(now.Add(168*time.Hour), now))
	assert.Equal(t, 1.15, TimeMultiplier(now.Add(49*time.Hour), now))
	assert.Equal(t, 1.30, TimeMultiplier(now.Add(48*time.Hour), now))
	assert.Equal(t, 1.30, TimeMultiplier(now.Add(-time.Hour), now))
}

func TestTimeMultiplier_MixedZones(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	departure := now.Add(100 * time.Hour).In(ist)
	assert.Equal(t, 1.15, TimeMultiplier(departure, now))
}

func TestComputeDynamicPrice_MonotonicInOccupancy(t *testing.T) {
	const total = 150
	prev := 0.0
	for booked := 0; booked <= total; booked++ {
		price, err := ComputeDynamicPrice(Input{
			BaseFare:    4200,
			Departure:   now.Add(10 * 24 * time.Hour),
			TotalSeats:  total,
			BookedSeats: booked,
			Demand:      DemandHigh,
			Tier:        TierEconomyFlex,
			Now:         now,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, price, prev, "booked=%d", booked)
		prev = price
	}
}

func TestComputeDynamicPrice_Deterministic(t *testing.T) {
	in := Input{
		BaseFare:    3999.99,
		Departure:   now.Add(5 * 24 * time.Hour),
		TotalSeats:  180,
		BookedSeats: 77,
		Demand:      DemandExtreme,
		Tier:        TierFirst,
		Now:         now,
	}
	first, err := ComputeDynamicPrice(in)
	require.NoError(t, err)
	second, err := ComputeDynamicPrice(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompute_NeverExceedsCap(t *testing.T) {
	b, err := Compute(Input{
		BaseFare:    100,
		Departure:   now,
		TotalSeats:  10,
		BookedSeats: 10,
		Demand:      DemandExtreme,
		Tier:        TierFirst,
		Now:         now,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, b.Price, PriceCapFactor*100)
	assert.Equal(t, 1.25, b.InventoryMultiplier)
	assert.Equal(t, 1.30, b.TimeMultiplier)
	assert.Equal(t, 1.25, b.DemandMultiplier)
	assert.Equal(t, 2.50, b.TierMultiplier)
}

func TestFallbacks(t *testing.T) {
	assert.Equal(t, DemandMedium, ParseDemandLevel("garbled"))
	assert.Equal(t, DemandMedium, ParseDemandLevel(""))
	assert.Equal(t, DemandExtreme, ParseDemandLevel(" EXTREME "))
	assert.Equal(t, TierEconomy, ParseTier("unknown"))
	assert.Equal(t, TierEconomy, ParseTier(""))
	assert.Equal(t, TierEconomyFlex, ParseTier("economy-flex"))
	assert.Equal(t, TierPremiumEconomy, ParseTier("premium"))
	assert.Equal(t, TierBusiness, ParseTier("business"))

	price, err := ComputeDynamicPrice(Input{
		BaseFare:    1000,
		Departure:   now.Add(40 * 24 * time.Hour),
		TotalSeats:  10,
		BookedSeats: 5,
		Demand:      "nonsense",
		Tier:        "nonsense",
		Now:         now,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1000.00, price, 0.001)
}

func TestTierCabin(t *testing.T) {
	assert.Equal(t, CabinEconomy, TierEconomy.Cabin())
	assert.Equal(t, CabinEconomy, TierEconomyFlex.Cabin())
	assert.Equal(t, CabinPremiumEconomy, TierPremiumEconomy.Cabin())
	assert.Equal(t, CabinBusiness, TierBusiness.Cabin())
	assert.Equal(t, CabinFirst, TierFirst.Cabin())
}

func TestSeatPrice(t *testing.T) {
	assert.Equal(t, PositionWindow, PositionForColumn("a"))
	assert.Equal(t, PositionAisle, PositionForColumn("D"))
	assert.Equal(t, PositionMiddle, PositionForColumn("E"))

	assert.InDelta(t, 4725.00, SeatPrice(4500, PositionWindow), 0.001)
	assert.InDelta(t, 4635.00, SeatPrice(4500, PositionAisle), 0.001)
	assert.InDelta(t, 4500.00, SeatPrice(4500, PositionMiddle), 0.001)
}
