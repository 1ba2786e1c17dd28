package products

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopworks/order-management-service/internal/models/errs"
	"github.com/shopworks/order-management-service/internal/models/product"
	"github.com/shopworks/order-management-service/pkg/logger"
)

// Repository is the narrow catalog contract the order engine consumes:
// resolve a product together with its tax configuration.
type Repository interface {
	GetProductByID(ctx context.Context, id int) (*product.Product, error)
}

type Repo struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}

	return &Repo{db: db, logger: logger}, nil
}

var _ Repository = (*Repo)(nil)

func (r *Repo) GetProductByID(ctx context.Context, id int) (*product.Product, error) {
	const query = `
		SELECT p.id, p.code, p.name, p.price,
			t.rate, t.tax_included, t.rounding
		FROM products p
		JOIN taxes t ON t.id = p.tax_id
		WHERE p.id = $1;
	`

	p := new(product.Product)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Code,
		&p.Name,
		&p.Price,
		&p.TaxRate,
		&p.TaxIncluded,
		&p.Rounding,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return p, nil
}
