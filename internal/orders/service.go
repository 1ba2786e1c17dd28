package orders

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	trm "github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/shopspring/decimal"
	"github.com/shopworks/order-management-service/internal/models/errs"
	"github.com/shopworks/order-management-service/internal/models/order"
	"github.com/shopworks/order-management-service/internal/products"
	"github.com/shopworks/order-management-service/pkg/logger"
)

type Service struct {
	repo     Repository
	products products.Repository
	staging  StagingStore
	trm      trm.Manager
	logger   logger.Logger
}

func NewService(
	repo Repository,
	products products.Repository,
	staging StagingStore,
	trm trm.Manager,
	logger logger.Logger,
) (*Service, error) {
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if staging == nil {
		return nil, errors.New("nil dependency: staging store")
	}
	return &Service{
		repo:     repo,
		products: products,
		staging:  staging,
		trm:      trm,
		logger:   logger,
	}, nil
}

// CreateOrderParams is a request to assemble a new order.
type CreateOrderParams struct {
	PaymentMethod string
	Note          string
	Shipping      decimal.Decimal
	Products      []CreateOrderProduct
	CustomerID    int
}

// CreateOrderProduct is one requested line of a new order.
type CreateOrderProduct struct {
	Discount  decimal.Decimal
	ProductID int
	Quantity  int
}

// CreateOrder assembles an order from the request: each product is
// resolved from the catalog and frozen into a line item with its
// current price and tax configuration, line amounts are computed and
// folded into the order totals, and the order is persisted atomically
// with all of its lines. An unknown product fails the whole request
// and nothing is created.
func (s *Service) CreateOrder(ctx context.Context, params CreateOrderParams) (*order.Order, error) {
	o := &order.Order{
		CustomerID:    params.CustomerID,
		Shipping:      params.Shipping,
		Note:          params.Note,
		PaymentMethod: params.PaymentMethod,
		Status:        order.ORDERED,
		PaymentStatus: order.UNPAID,
		Paid:          decimal.Zero,
	}

	total := decimal.Zero
	totalTax := decimal.Zero
	totalDiscount := decimal.Zero

	for _, req := range params.Products {
		p, err := s.products.GetProductByID(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %d", errs.ErrNotFound, req.ProductID)
			}
			return nil, fmt.Errorf("resolve product %d: %w", req.ProductID, err)
		}

		lineTax, subtotal := LineAmounts(
			p.Price, req.Quantity, req.Discount,
			p.TaxRate, p.TaxIncluded, p.Rounding,
		)

		o.Products = append(o.Products, order.Product{
			ProductID:   p.ID,
			Code:        p.Code,
			Name:        p.Name,
			Quantity:    req.Quantity,
			Price:       p.Price,
			Discount:    req.Discount,
			Tax:         lineTax,
			Subtotal:    subtotal,
			TaxRate:     p.TaxRate,
			TaxIncluded: p.TaxIncluded,
			Rounding:    p.Rounding,
		})

		total = total.Add(subtotal)
		totalTax = totalTax.Add(lineTax)
		totalDiscount = totalDiscount.Add(req.Discount)
	}

	o.Total = total
	o.Tax = totalTax
	o.Discount = totalDiscount
	o.GrandTotal = total.Add(o.Shipping)

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		return s.repo.CreateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// CreatePaymentParams is a request to record one payment event.
type CreatePaymentParams struct {
	PaidAt  time.Time
	Type    string
	Method  string
	Paid    decimal.Decimal
	OrderID int
}

// CreatePayment appends a payment to the order's ledger and rederives
// the payment state. Every payment is recorded; only those of the
// completed type count towards the paid amount, and only a completed
// payment may move the order's payment status. A shipping order whose
// completed payments now cover the grand total is promoted to
// completed regardless of the incoming payment's type.
func (s *Service) CreatePayment(ctx context.Context, params CreatePaymentParams) (*order.Order, error) {
	var o *order.Order

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var err error

		o, err = s.repo.GetOrderByID(ctx, params.OrderID)
		if err != nil {
			return fmt.Errorf("get order %d: %w", params.OrderID, err)
		}

		payment := &order.Payment{
			OrderID: o.ID,
			Type:    params.Type,
			Paid:    params.Paid,
			Method:  params.Method,
			PaidAt:  params.PaidAt,
		}
		if err = s.repo.AddPayment(ctx, payment); err != nil {
			return err
		}
		o.Payments = append(o.Payments, *payment)

		paid := o.PaidTotal()
		candidate := order.DerivePaymentStatus(paid, o.GrandTotal)

		o.Paid = paid
		if params.Type == order.PaymentTypeCompleted {
			o.PaymentStatus = candidate
		}
		// Fulfillment and payment join: shipped and now fully paid.
		if o.Status == order.SHIPPING && candidate == order.PAID {
			o.Status = order.COMPLETED
		}

		return s.repo.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// ImportPayments applies a payment CSV row by row. This import is
// strict: the first defective row (malformed fields or an unknown
// order) aborts the import and its error is returned alone. Rows
// applied before the defect stay applied.
func (s *Service) ImportPayments(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read upload: %w", err)
		}
		return nil
	}

	for row := 1; scanner.Scan(); row++ {
		parsed, err := parsePaymentRow(scanner.Text(), row)
		if err != nil {
			return fmt.Errorf("%w: %s", errs.ErrInvalidPayload, err)
		}

		exists, err := s.repo.OrderExists(ctx, parsed.OrderID)
		if err != nil {
			return fmt.Errorf("check order %d: %w", parsed.OrderID, err)
		}
		if !exists {
			return fmt.Errorf("row %d: %w: order %d", row, errs.ErrNotFound, parsed.OrderID)
		}

		_, err = s.CreatePayment(ctx, CreatePaymentParams{
			OrderID: parsed.OrderID,
			Type:    parsed.Type,
			Paid:    parsed.Paid,
			Method:  parsed.Method,
			PaidAt:  parsed.PaidAt,
		})
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
	}

	return scanner.Err()
}

// ShipmentStaging is the outcome of a shipment CSV upload: either the
// rows were staged under a review token, or Errors lists every row
// problem and nothing was staged.
type ShipmentStaging struct {
	Token  string
	Rows   []order.Delivery
	Errors []string
}

// StageShipments validates and parses a shipment CSV in one pass and,
// when every row is clean, stages the rows for review. Nothing touches
// the orders until the staged rows are applied.
func (s *Service) StageShipments(ctx context.Context, r io.Reader) (*ShipmentStaging, error) {
	result, err := ParseShipments(r)
	if err != nil {
		return nil, err
	}

	if !result.Valid() {
		return &ShipmentStaging{Errors: result.Errors}, nil
	}

	token, err := s.staging.Put(ctx, result.Rows)
	if err != nil {
		return nil, err
	}

	return &ShipmentStaging{Token: token, Rows: result.Rows}, nil
}

// RowResult is the outcome of one staged row during a bulk apply.
type RowResult struct {
	Reason  string             `json:"reason,omitempty"`
	Status  order.UploadStatus `json:"status"`
	Index   int                `json:"index"`
	OrderID int                `json:"order_id"`
}

// BulkResult reports a bulk shipping update: one outcome per checked
// row plus an aggregate failure flag. Rows that succeeded stay
// persisted even when later rows fail.
type BulkResult struct {
	Rows   []RowResult `json:"rows"`
	Failed bool        `json:"failed"`
}

// ApplyShipments consumes the staged rows addressed by the review
// token and applies every checked one: the delivery record is upserted
// for its order and the order moves to shipping, or straight to
// completed when it is already fully paid. A missing order or an
// already completed one marks the row as failed and processing moves
// on; there is no rollback of earlier rows. Each row is its own
// transaction.
func (s *Service) ApplyShipments(ctx context.Context, token string, checked []bool) (*BulkResult, error) {
	rows, err := s.staging.Get(ctx, token)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: review token %q", errs.ErrNotFound, token)
		}
		return nil, err
	}

	result := new(BulkResult)

	for i := range rows {
		if i >= len(checked) || !checked[i] {
			continue
		}
		row := rows[i]

		rowResult := RowResult{Index: i, OrderID: row.OrderID}

		err = s.trm.Do(ctx, func(ctx context.Context) error {
			o, err := s.repo.GetOrderByID(ctx, row.OrderID)
			if err != nil {
				return fmt.Errorf("get order %d: %w", row.OrderID, err)
			}

			// A completed order cannot be re-shipped.
			if o.Status == order.COMPLETED {
				return fmt.Errorf("%w: order %d is already completed",
					errs.ErrDataConflict, o.ID)
			}

			row.UploadStatus = order.UploadSuccess
			if err = s.repo.UpsertDelivery(ctx, &row); err != nil {
				return err
			}

			next := order.SHIPPING
			if o.PaymentStatus == order.PAID {
				next = order.COMPLETED
			}
			o.Status = next

			return s.repo.UpdateOrder(ctx, o)
		})
		if err != nil {
			rowResult.Status = order.UploadError
			rowResult.Reason = err.Error()
			result.Failed = true
		} else {
			rowResult.Status = order.UploadSuccess
		}

		result.Rows = append(result.Rows, rowResult)
	}

	// The staged rows are consumed either way; a stale token must not
	// allow a second apply.
	if err = s.staging.Delete(ctx, token); err != nil {
		s.logger.Errorf("delete staged rows %q: %s", token, err)
	}

	return result, nil
}

// GetOrder returns the order with its line items and payment history.
func (s *Service) GetOrder(ctx context.Context, id int) (*order.Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

// ListOrders returns all orders.
func (s *Service) ListOrders(ctx context.Context) ([]*order.Order, error) {
	return s.repo.ListOrders(ctx)
}

// UpdateOrderParams is an administrative order update.
type UpdateOrderParams struct {
	PaymentMethod string
	Note          string
	Status        order.Status
	PaymentStatus order.PaymentStatus
	Shipping      decimal.Decimal
	ID            int
	CustomerID    int
}

// UpdateOrder applies an administrative update to the order's mutable
// fields. The grand total is rederived so that it always equals the
// line total plus the shipping fee.
func (s *Service) UpdateOrder(ctx context.Context, params UpdateOrderParams) (*order.Order, error) {
	var o *order.Order

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var err error

		o, err = s.repo.GetOrderByID(ctx, params.ID)
		if err != nil {
			return err
		}

		if !o.Status.CanTransitionTo(params.Status) {
			return fmt.Errorf("%w: cannot move order from %q to %q",
				errs.ErrDataConflict, o.Status, params.Status)
		}

		o.CustomerID = params.CustomerID
		o.Shipping = params.Shipping
		o.Note = params.Note
		o.PaymentMethod = params.PaymentMethod
		o.Status = params.Status
		o.PaymentStatus = params.PaymentStatus
		o.GrandTotal = o.Total.Add(o.Shipping)

		return s.repo.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// DeleteOrder removes the order administratively.
func (s *Service) DeleteOrder(ctx context.Context, id int) error {
	return s.trm.Do(ctx, func(ctx context.Context) error {
		return s.repo.DeleteOrder(ctx, id)
	})
}
