package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopworks/order-management-service/internal/models/errs"
	"github.com/shopworks/order-management-service/internal/models/order"
	"github.com/shopworks/order-management-service/pkg/logger"
)

// DeliveryExport is a delivery record joined with the current state
// of its order, shaped for the shipment CSV export.
type DeliveryExport struct {
	order.Delivery
	Status        order.Status
	PaymentStatus order.PaymentStatus
}

type Repository interface {
	GetOrderByID(ctx context.Context, id int) (*order.Order, error)
	ListOrders(ctx context.Context) ([]*order.Order, error)
	ListOrdersByStatus(ctx context.Context, status order.Status) ([]*order.Order, error)
	OrderExists(ctx context.Context, id int) (bool, error)
	CreateOrder(ctx context.Context, o *order.Order) error
	UpdateOrder(ctx context.Context, o *order.Order) error
	DeleteOrder(ctx context.Context, id int) error
	AddPayment(ctx context.Context, p *order.Payment) error
	UpsertDelivery(ctx context.Context, d *order.Delivery) error
	GetDeliveryByOrderID(ctx context.Context, orderID int) (*order.Delivery, error)
	ListDeliveries(ctx context.Context) ([]*DeliveryExport, error)
}

type Repo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}

	return &Repo{db: db, getter: getter, logger: logger}, nil
}

var _ Repository = (*Repo)(nil)

func (r *Repo) GetOrderByID(ctx context.Context, id int) (*order.Order, error) {
	const query = `
		SELECT id, customer_id, status, payment_status, payment_method,
			shipping, note, total, tax, discount, grand_total, paid,
			created_at, updated_at
		FROM orders WHERE id = $1;
	`

	o := new(order.Order)

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&o.ID,
		&o.CustomerID,
		&o.Status,
		&o.PaymentStatus,
		&o.PaymentMethod,
		&o.Shipping,
		&o.Note,
		&o.Total,
		&o.Tax,
		&o.Discount,
		&o.GrandTotal,
		&o.Paid,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	if o.Products, err = r.getOrderProducts(ctx, id); err != nil {
		return nil, err
	}
	if o.Payments, err = r.getOrderPayments(ctx, id); err != nil {
		return nil, err
	}

	return o, nil
}

func (r *Repo) getOrderProducts(ctx context.Context, orderID int) ([]order.Product, error) {
	const query = `
		SELECT id, order_id, product_id, code, name, quantity, price,
			discount, tax, subtotal, tax_rate, tax_included, rounding
		FROM order_products WHERE order_id = $1 ORDER BY id;
	`

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}

	products := make([]order.Product, 0)

	for rows.Next() {
		var p order.Product
		err = rows.Scan(
			&p.ID,
			&p.OrderID,
			&p.ProductID,
			&p.Code,
			&p.Name,
			&p.Quantity,
			&p.Price,
			&p.Discount,
			&p.Tax,
			&p.Subtotal,
			&p.TaxRate,
			&p.TaxIncluded,
			&p.Rounding,
		)
		if err != nil {
			return nil, err
		}

		products = append(products, p)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *Repo) getOrderPayments(ctx context.Context, orderID int) ([]order.Payment, error) {
	const query = `
		SELECT id, order_id, type, paid, method, paid_at, created_at
		FROM order_payments WHERE order_id = $1 ORDER BY id;
	`

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}

	payments := make([]order.Payment, 0)

	for rows.Next() {
		var p order.Payment
		err = rows.Scan(
			&p.ID,
			&p.OrderID,
			&p.Type,
			&p.Paid,
			&p.Method,
			&p.PaidAt,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		payments = append(payments, p)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *Repo) ListOrders(ctx context.Context) ([]*order.Order, error) {
	const query = `
		SELECT id, customer_id, status, payment_status, payment_method,
			shipping, note, total, tax, discount, grand_total, paid,
			created_at, updated_at
		FROM orders ORDER BY id;
	`

	return r.queryOrders(ctx, query)
}

func (r *Repo) ListOrdersByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	const query = `
		SELECT id, customer_id, status, payment_status, payment_method,
			shipping, note, total, tax, discount, grand_total, paid,
			created_at, updated_at
		FROM orders WHERE status = $1 ORDER BY id;
	`

	return r.queryOrders(ctx, query, status)
}

func (r *Repo) queryOrders(ctx context.Context, query string, args ...any) ([]*order.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	orders := make([]*order.Order, 0)

	for rows.Next() {
		o := new(order.Order)
		err = rows.Scan(
			&o.ID,
			&o.CustomerID,
			&o.Status,
			&o.PaymentStatus,
			&o.PaymentMethod,
			&o.Shipping,
			&o.Note,
			&o.Total,
			&o.Tax,
			&o.Discount,
			&o.GrandTotal,
			&o.Paid,
			&o.CreatedAt,
			&o.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		orders = append(orders, o)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *Repo) OrderExists(ctx context.Context, id int) (bool, error) {
	const query = "SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1);"

	var exists bool

	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// CreateOrder inserts the order together with its line items. The
// caller is expected to run it inside a transaction so that either
// the whole order exists or none of it does.
func (r *Repo) CreateOrder(ctx context.Context, o *order.Order) error {
	const query = `
		INSERT INTO orders (customer_id, status, payment_status, payment_method,
			shipping, note, total, tax, discount, grand_total, paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at;
	`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query,
		o.CustomerID,
		o.Status,
		o.PaymentStatus,
		o.PaymentMethod,
		o.Shipping,
		o.Note,
		o.Total,
		o.Tax,
		o.Discount,
		o.GrandTotal,
		o.Paid,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	const lineQuery = `
		INSERT INTO order_products (order_id, product_id, code, name, quantity,
			price, discount, tax, subtotal, tax_rate, tax_included, rounding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id;
	`

	for i := range o.Products {
		p := &o.Products[i]
		p.OrderID = o.ID

		err = r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, lineQuery,
			p.OrderID,
			p.ProductID,
			p.Code,
			p.Name,
			p.Quantity,
			p.Price,
			p.Discount,
			p.Tax,
			p.Subtotal,
			p.TaxRate,
			p.TaxIncluded,
			p.Rounding,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("insert order product: %w", err)
		}
	}

	return nil
}

func (r *Repo) UpdateOrder(ctx context.Context, o *order.Order) error {
	const query = `
		UPDATE orders SET
			customer_id = $1, status = $2, payment_status = $3,
			payment_method = $4, shipping = $5, note = $6, paid = $7,
			grand_total = $8, updated_at = now()
		WHERE id = $9;
	`

	result, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query,
		o.CustomerID,
		o.Status,
		o.PaymentStatus,
		o.PaymentMethod,
		o.Shipping,
		o.Note,
		o.Paid,
		o.GrandTotal,
		o.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

// DeleteOrder removes the order; line items, payments and the delivery
// record go with it via ON DELETE CASCADE.
func (r *Repo) DeleteOrder(ctx context.Context, id int) error {
	const query = "DELETE FROM orders WHERE id = $1;"

	result, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (r *Repo) AddPayment(ctx context.Context, p *order.Payment) error {
	const query = `
		INSERT INTO order_payments (order_id, type, paid, method, paid_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at;
	`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query,
		p.OrderID,
		p.Type,
		p.Paid,
		p.Method,
		p.PaidAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return errs.ErrNotFound
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

// UpsertDelivery keeps at most one delivery record per order;
// a re-import replaces the previous one.
func (r *Repo) UpsertDelivery(ctx context.Context, d *order.Delivery) error {
	const query = `
		INSERT INTO order_deliveries (order_id, shipping_code, shipping_date,
			delivery_date, delivery_timezone, upload_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id) DO UPDATE SET
			shipping_code = EXCLUDED.shipping_code,
			shipping_date = EXCLUDED.shipping_date,
			delivery_date = EXCLUDED.delivery_date,
			delivery_timezone = EXCLUDED.delivery_timezone,
			upload_status = EXCLUDED.upload_status,
			updated_at = now()
		RETURNING id, created_at, updated_at;
	`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query,
		d.OrderID,
		d.ShippingCode,
		d.ShippingDate,
		d.DeliveryDate,
		d.DeliveryTimezone,
		d.UploadStatus,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return errs.ErrNotFound
		}
		return fmt.Errorf("upsert delivery: %w", err)
	}

	return nil
}

func (r *Repo) GetDeliveryByOrderID(ctx context.Context, orderID int) (*order.Delivery, error) {
	const query = `
		SELECT id, order_id, shipping_code, shipping_date, delivery_date,
			delivery_timezone, upload_status, created_at, updated_at
		FROM order_deliveries WHERE order_id = $1;
	`

	d := new(order.Delivery)

	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&d.ID,
		&d.OrderID,
		&d.ShippingCode,
		&d.ShippingDate,
		&d.DeliveryDate,
		&d.DeliveryTimezone,
		&d.UploadStatus,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return d, nil
}

func (r *Repo) ListDeliveries(ctx context.Context) ([]*DeliveryExport, error) {
	const query = `
		SELECT d.order_id, d.shipping_code, d.shipping_date, d.delivery_date,
			d.delivery_timezone, o.status, o.payment_status,
			d.created_at, d.updated_at
		FROM order_deliveries d
		JOIN orders o ON o.id = d.order_id
		ORDER BY d.order_id;
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	deliveries := make([]*DeliveryExport, 0)

	for rows.Next() {
		d := new(DeliveryExport)
		err = rows.Scan(
			&d.OrderID,
			&d.ShippingCode,
			&d.ShippingDate,
			&d.DeliveryDate,
			&d.DeliveryTimezone,
			&d.Status,
			&d.PaymentStatus,
			&d.CreatedAt,
			&d.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		deliveries = append(deliveries, d)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return deliveries, nil
}
