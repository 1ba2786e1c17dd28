package taxes

import (
	"context"
	"errors"
	"fmt"

	trm "github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/shopworks/order-management-service/internal/models/errs"
	"github.com/shopworks/order-management-service/internal/models/tax"
	"github.com/shopworks/order-management-service/pkg/logger"
)

type Service struct {
	repo   Repository
	trm    trm.Manager
	logger logger.Logger
}

func NewService(repo Repository, trm trm.Manager, logger logger.Logger) (*Service, error) {
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	return &Service{repo: repo, trm: trm, logger: logger}, nil
}

// Create stores a new tax rate as its full set of six configuration
// rows. A rate that already exists is rejected before anything is
// expanded or written.
func (s *Service) Create(ctx context.Context, rate int) ([]tax.Tax, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: tax rate must be a positive integer", errs.ErrInvalidRequest)
	}

	exists, err := s.repo.ExistsByRate(ctx, rate)
	if err != nil {
		return nil, fmt.Errorf("check rate: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: tax rate %d", errs.ErrAlreadyExists, rate)
	}

	var saved []tax.Tax
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		saved, err = s.repo.SaveAll(ctx, tax.Expand(rate))
		return err
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

// List returns one representative row per stored rate.
func (s *Service) List(ctx context.Context) ([]tax.Tax, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool, len(all))
	unique := make([]tax.Tax, 0, len(all))
	for _, t := range all {
		if !seen[t.Rate] {
			seen[t.Rate] = true
			unique = append(unique, t)
		}
	}

	return unique, nil
}

// DeleteByRate removes a rate with all six of its combinations.
func (s *Service) DeleteByRate(ctx context.Context, rate int) error {
	return s.trm.Do(ctx, func(ctx context.Context) error {
		return s.repo.DeleteByRate(ctx, rate)
	})
}
