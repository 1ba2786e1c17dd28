package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/shopworks/order-management-service/internal/models/tax"
	"github.com/stretchr/testify/assert"
)

func TestLineAmounts(t *testing.T) {
	type want struct {
		tax      string
		subtotal string
	}

	tests := []struct {
		name        string
		price       string
		discount    string
		rounding    tax.Rounding
		want        want
		quantity    int
		taxRate     int
		taxIncluded bool
	}{
		{
			name:     "tax excluded rounds half up",
			price:    "1000",
			quantity: 2,
			discount: "0",
			taxRate:  10,
			rounding: tax.ROUND,
			want:     want{tax: "200", subtotal: "2200"},
		},
		{
			name:        "tax included floors carved out portion",
			price:       "1100",
			quantity:    1,
			discount:    "0",
			taxRate:     10,
			taxIncluded: true,
			rounding:    tax.FLOOR,
			want:        want{tax: "100", subtotal: "1200"},
		},
		{
			name:     "ceiling lifts fractional tax",
			price:    "101",
			quantity: 1,
			discount: "0",
			taxRate:  8,
			rounding: tax.CEIL,
			want:     want{tax: "9", subtotal: "110"},
		},
		{
			name:     "floor drops fractional tax",
			price:    "101",
			quantity: 1,
			discount: "0",
			taxRate:  8,
			rounding: tax.FLOOR,
			want:     want{tax: "8", subtotal: "109"},
		},
		{
			name:     "unrecognized mode passes raw tax through",
			price:    "101",
			quantity: 1,
			discount: "0",
			taxRate:  8,
			rounding: tax.Rounding("truncate"),
			want:     want{tax: "8.08", subtotal: "109.08"},
		},
		{
			name:     "zero rate yields zero tax",
			price:    "1000",
			quantity: 3,
			discount: "0",
			taxRate:  0,
			rounding: tax.ROUND,
			want:     want{tax: "0", subtotal: "3000"},
		},
		{
			name:     "discount reduces subtotal",
			price:    "1000",
			quantity: 1,
			discount: "100",
			taxRate:  10,
			rounding: tax.ROUND,
			want:     want{tax: "100", subtotal: "1000"},
		},
		{
			name:     "negative discount increases subtotal",
			price:    "1000",
			quantity: 1,
			discount: "-100",
			taxRate:  10,
			rounding: tax.ROUND,
			want:     want{tax: "100", subtotal: "1200"},
		},
		{
			name:     "zero quantity yields zero amounts",
			price:    "1000",
			quantity: 0,
			discount: "0",
			taxRate:  10,
			rounding: tax.ROUND,
			want:     want{tax: "0", subtotal: "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotTax, gotSubtotal := LineAmounts(
				decimal.RequireFromString(tt.price),
				tt.quantity,
				decimal.RequireFromString(tt.discount),
				tt.taxRate,
				tt.taxIncluded,
				tt.rounding,
			)

			assert.True(t, decimal.RequireFromString(tt.want.tax).Equal(gotTax),
				"tax: want %s, got %s", tt.want.tax, gotTax)
			assert.True(t, decimal.RequireFromString(tt.want.subtotal).Equal(gotSubtotal),
				"subtotal: want %s, got %s", tt.want.subtotal, gotSubtotal)
		})
	}
}
