package booking

import (
	"fmt"

	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/pricing"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

var (
	narrowRow = []string{"A", "C", "D", "F"}
	wideRow   = []string{"A", "B", "C", "D", "E", "F"}
)

// LayoutSeats materializes the seat map for the given cabin sizes. Cabins
// run front to back and each starts on a fresh row; First and Business are
// four abreast, the others six abreast.
func LayoutSeats(c models.CabinSeats) []database.Seat {
	counts := map[pricing.Cabin]int{
		pricing.CabinFirst:          c.First,
		pricing.CabinBusiness:       c.Business,
		pricing.CabinPremiumEconomy: c.PremiumEconomy,
		pricing.CabinEconomy:        c.Economy,
	}

	seats := make([]database.Seat, 0, c.Total())
	row := 1
	for _, cabin := range pricing.Cabins {
		n := counts[cabin]
		if n <= 0 {
			continue
		}
		columns := wideRow
		if cabin == pricing.CabinFirst || cabin == pricing.CabinBusiness {
			columns = narrowRow
		}
		for i := 0; i < n; i++ {
			col := columns[i%len(columns)]
			seats = append(seats, database.Seat{
				SeatNumber:   fmt.Sprintf("%d%s", row, col),
				RowNumber:    row,
				ColumnLetter: col,
				Class:        string(cabin),
				Position:     string(pricing.PositionForColumn(col)),
				IsAvailable:  true,
			})
			if i%len(columns) == len(columns)-1 {
				row++
			}
		}
		if n%len(columns) != 0 {
			row++
		}
	}
	return seats
}

// SeatLabel formats a seat for summaries and notifications, e.g. "EC - 32A".
func SeatLabel(class, seatNumber string) string {
	return pricing.Cabin(class).Abbreviation() + " - " + seatNumber
}
