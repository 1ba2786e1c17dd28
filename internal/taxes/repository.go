package taxes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopworks/order-management-service/internal/models/errs"
	"github.com/shopworks/order-management-service/internal/models/tax"
	"github.com/shopworks/order-management-service/pkg/logger"
)

type Repository interface {
	ExistsByRate(ctx context.Context, rate int) (bool, error)
	SaveAll(ctx context.Context, taxes []tax.Tax) ([]tax.Tax, error)
	List(ctx context.Context) ([]tax.Tax, error)
	DeleteByRate(ctx context.Context, rate int) error
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

func (r *Repo) ExistsByRate(ctx context.Context, rate int) (bool, error) {
	const query = "SELECT EXISTS (SELECT 1 FROM taxes WHERE rate = $1);"

	var exists bool

	err := r.db.QueryRowContext(ctx, query, rate).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// SaveAll inserts the given configuration rows. The caller is expected
// to run it inside a transaction so a rate is stored with all of its
// combinations or not at all.
func (r *Repo) SaveAll(ctx context.Context, taxes []tax.Tax) ([]tax.Tax, error) {
	const query = `
		INSERT INTO taxes (rate, tax_included, rounding)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at;
	`

	for i := range taxes {
		t := &taxes[i]

		err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query,
			t.Rate, t.TaxIncluded, t.Rounding,
		).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return nil, errs.ErrAlreadyExists
			}
			return nil, fmt.Errorf("insert tax: %w", err)
		}
	}

	return taxes, nil
}

func (r *Repo) List(ctx context.Context) ([]tax.Tax, error) {
	const query = `
		SELECT id, rate, tax_included, rounding, created_at, updated_at
		FROM taxes ORDER BY rate, tax_included, rounding;
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	taxes := make([]tax.Tax, 0)

	for rows.Next() {
		var t tax.Tax
		err = rows.Scan(
			&t.ID,
			&t.Rate,
			&t.TaxIncluded,
			&t.Rounding,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		taxes = append(taxes, t)
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

	return taxes, nil
}

// DeleteByRate removes every combination stored for the rate.
func (r *Repo) DeleteByRate(ctx context.Context, rate int) error {
	const query = "DELETE FROM taxes WHERE rate = $1;"

	result, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, rate)
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
