package tax

import "time"

// Rounding tells how a fractional tax amount is reduced
// to a whole currency unit.
type Rounding string

const (
	FLOOR Rounding = "floor"
	ROUND Rounding = "round"
	CEIL  Rounding = "ceil"
)

// Tax is one tax configuration row: a percentage rate combined with
// whether the price already includes tax and the rounding applied
// to the computed amount.
type Tax struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Rounding    Rounding  `json:"rounding"`
	ID          int       `json:"id"`
	Rate        int       `json:"rate"`
	TaxIncluded bool      `json:"tax_included"`
}

// Expand produces the full set of configuration rows for a single rate:
// every combination of the included flag with every rounding mode.
// A rate is always stored as these six rows.
func Expand(rate int) []Tax {
	included := []bool{false, true}
	roundings := []Rounding{FLOOR, ROUND, CEIL}

	taxes := make([]Tax, 0, len(included)*len(roundings))
	for _, inc := range included {
		for _, r := range roundings {
			taxes = append(taxes, Tax{
				Rate:        rate,
				TaxIncluded: inc,
				Rounding:    r,
			})
		}
	}

	return taxes
}
