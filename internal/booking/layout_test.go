package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

func TestLayoutSeats(t *testing.T) {
	seats := LayoutSeats(models.CabinSeats{First: 4, Business: 6, Economy: 7})

	require.Len(t, seats, 17)

	var numbers []string
	for _, s := range seats {
		numbers = append(numbers, s.SeatNumber)
	}
	assert.Equal(t, []string{
		"1A", "1C", "1D", "1F",
		"2A", "2C", "2D", "2F", "3A", "3C",
		"4A", "4B", "4C", "4D", "4E", "4F", "5A",
	}, numbers)

	assert.Equal(t, "First", seats[0].Class)
	assert.Equal(t, "Business", seats[4].Class)
	assert.Equal(t, "Economy", seats[10].Class)

	assert.Equal(t, "window", seats[0].Position)
	assert.Equal(t, "aisle", seats[1].Position)
	assert.Equal(t, "middle", seats[11].Position)
	assert.Equal(t, 5, seats[16].RowNumber)
	for _, s := range seats {
		assert.True(t, s.IsAvailable)
	}
}

func TestLayoutSeats_Empty(t *testing.T) {
	assert.Empty(t, LayoutSeats(models.CabinSeats{}))
}

func TestSeatLabel(t *testing.T) {
	assert.Equal(t, "EC - 32A", SeatLabel("Economy", "32A"))
	assert.Equal(t, "ECF - 20C", SeatLabel("Premium Economy", "20C"))
	assert.Equal(t, "BUS - 3D", SeatLabel("Business", "3D"))
	assert.Equal(t, "FC - 1A", SeatLabel("First", "1A"))
}
