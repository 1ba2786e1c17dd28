package orders

import (
	"github.com/shopspring/decimal"
	"github.com/shopworks/order-management-service/internal/models/tax"
)

var oneHundred = decimal.NewFromInt(100)

// LineAmounts computes the tax and subtotal of a single line item.
//
// For tax-included prices the tax portion is carved out of the gross
// amount (price*qty*rate/(100+rate)); for tax-excluded prices it is
// added on top (price*qty*rate/100). The raw tax is then reduced to a
// whole currency unit by the rounding mode. An unrecognized mode passes
// the raw amount through unrounded; a zero rate always yields zero tax.
//
// The discount is subtracted as-is. A negative discount is accepted and
// increases the subtotal.
func LineAmounts(
	price decimal.Decimal,
	quantity int,
	discount decimal.Decimal,
	taxRate int,
	taxIncluded bool,
	rounding tax.Rounding,
) (taxAmount, subtotal decimal.Decimal) {
	gross := price.Mul(decimal.NewFromInt(int64(quantity)))
	rate := decimal.NewFromInt(int64(taxRate))

	if taxIncluded {
		taxAmount = gross.Mul(rate).Div(oneHundred.Add(rate))
	} else {
		taxAmount = gross.Mul(rate).Div(oneHundred)
	}

	taxAmount = applyRounding(taxAmount, rounding)
	subtotal = gross.Add(taxAmount).Sub(discount)

	return taxAmount, subtotal
}

func applyRounding(d decimal.Decimal, rounding tax.Rounding) decimal.Decimal {
	switch rounding {
	case tax.FLOOR:
		return d.Floor()
	case tax.ROUND:
		return d.Round(0)
	case tax.CEIL:
		return d.Ceil()
	default:
		// Explicit fallback: unknown modes leave the amount unrounded.
		return d
	}
}
