package product

import (
	"github.com/shopspring/decimal"
	"github.com/shopworks/order-management-service/internal/models/tax"
)

// Product is a catalog entry. Orders snapshot its price and tax
// configuration at creation time, so later catalog changes never
// affect existing orders.
type Product struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Rounding    tax.Rounding    `json:"rounding"`
	ID          int             `json:"id"`
	TaxRate     int             `json:"tax_rate"`
	TaxIncluded bool            `json:"tax_included"`
}
