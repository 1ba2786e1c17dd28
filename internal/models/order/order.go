package order

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/shopworks/order-management-service/internal/models/tax"
)

// Status is the fulfillment state of an order.
type Status string

const (
	ORDERED   Status = "ordered"
	SHIPPING  Status = "shipping"
	COMPLETED Status = "completed"
)

// transitions is the closed set of legal fulfillment moves.
// An order never leaves COMPLETED.
var transitions = map[Status][]Status{
	ORDERED:   {SHIPPING, COMPLETED},
	SHIPPING:  {COMPLETED},
	COMPLETED: {},
}

// CanTransitionTo reports whether moving to the target status is legal.
// Staying in the current status is always allowed.
func (s Status) CanTransitionTo(target Status) bool {
	if s == target {
		return true
	}
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// PaymentStatus is the payment state of an order, derived from the
// sum of its completed payments against the grand total.
type PaymentStatus string

const (
	UNPAID         PaymentStatus = "unpaid"
	PARTIALLY_PAID PaymentStatus = "partially_paid"
	PAID           PaymentStatus = "paid"
	OVERPAID       PaymentStatus = "overpaid"
)

// DerivePaymentStatus compares the paid amount against the grand total.
func DerivePaymentStatus(paid, grandTotal decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThan(grandTotal):
		return OVERPAID
	case paid.LessThan(grandTotal):
		return PARTIALLY_PAID
	default:
		return PAID
	}
}

// PaymentTypeCompleted is the distinguished payment classification.
// Only payments of this type count towards the paid amount and may
// move the order's payment status.
const PaymentTypeCompleted = "completed"

// Order is a customer order with its frozen line items and
// append-only payment history.
type Order struct {
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	PaymentMethod string          `json:"payment_method"`
	Note          string          `json:"note"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Total         decimal.Decimal `json:"total"`
	Tax           decimal.Decimal `json:"tax"`
	Discount      decimal.Decimal `json:"discount"`
	Shipping      decimal.Decimal `json:"shipping"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Paid          decimal.Decimal `json:"paid"`
	Products      []Product       `json:"order_products"`
	Payments      []Payment       `json:"order_payments"`
	ID            int             `json:"id"`
	CustomerID    int             `json:"customer_id"`
}

// PaidTotal sums the amounts of all completed payments.
// Payments of any other type are recorded for audit only.
func (o *Order) PaidTotal() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range o.Payments {
		if p.Type == PaymentTypeCompleted {
			paid = paid.Add(p.Paid)
		}
	}
	return paid
}

// Product is a line item frozen at order creation time. The price and
// tax configuration are captured from the catalog and never change,
// no matter what happens to the product afterwards.
type Product struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Rounding    tax.Rounding    `json:"rounding"`
	ID          int             `json:"id"`
	OrderID     int             `json:"order_id"`
	ProductID   int             `json:"product_id"`
	Quantity    int             `json:"quantity"`
	TaxRate     int             `json:"tax_rate"`
	TaxIncluded bool            `json:"tax_included"`
}

// Payment is one entry of the append-only payment ledger.
// A payment is never edited or removed once recorded.
type Payment struct {
	CreatedAt time.Time       `json:"created_at"`
	PaidAt    time.Time       `json:"paid_at"`
	Type      string          `json:"type"`
	Method    string          `json:"method"`
	Paid      decimal.Decimal `json:"paid"`
	ID        int             `json:"id"`
	OrderID   int             `json:"order_id"`
}

// UploadStatus is the per-row outcome of a bulk shipping update.
type UploadStatus string

const (
	UploadSuccess UploadStatus = "success"
	UploadError   UploadStatus = "error"
)

// Delivery is shipment information for one order. At most one
// delivery record exists per order; re-imports replace it.
type Delivery struct {
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	ShippingDate     time.Time    `json:"shipping_date"`
	DeliveryDate     time.Time    `json:"delivery_date"`
	ShippingCode     string       `json:"shipping_code"`
	DeliveryTimezone string       `json:"delivery_timezone"`
	UploadStatus     UploadStatus `json:"upload_status,omitempty"`
	ID               int          `json:"id"`
	OrderID          int          `json:"order_id"`
}
