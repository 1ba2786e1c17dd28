package taxes

import (
	"context"
	"testing"

	trm "github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/shopworks/order-management-service/internal/models/errs"
	"github.com/shopworks/order-management-service/internal/models/tax"
	"github.com/shopworks/order-management-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type txManager struct{}

func (txManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (txManager) DoWithSettings(ctx context.Context, _ trm.Settings, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockRepository struct {
	taxes  []tax.Tax
	nextID int
}

var _ Repository = (*mockRepository)(nil)

func (m *mockRepository) ExistsByRate(_ context.Context, rate int) (bool, error) {
	for _, t := range m.taxes {
		if t.Rate == rate {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) SaveAll(_ context.Context, taxes []tax.Tax) ([]tax.Tax, error) {
	saved := make([]tax.Tax, 0, len(taxes))
	for _, t := range taxes {
		m.nextID++
		t.ID = m.nextID
		m.taxes = append(m.taxes, t)
		saved = append(saved, t)
	}
	return saved, nil
}

func (m *mockRepository) List(_ context.Context) ([]tax.Tax, error) {
	return append([]tax.Tax(nil), m.taxes...), nil
}

func (m *mockRepository) DeleteByRate(_ context.Context, rate int) error {
	kept := m.taxes[:0]
	deleted := false
	for _, t := range m.taxes {
		if t.Rate == rate {
			deleted = true
			continue
		}
		kept = append(kept, t)
	}
	if !deleted {
		return errs.ErrNotFound
	}
	m.taxes = kept
	return nil
}

func newTestService(t *testing.T, repo *mockRepository) *Service {
	t.Helper()

	s, err := NewService(repo, txManager{}, logger.NewForTest())
	require.NoError(t, err)

	return s
}

func TestCreate(t *testing.T) {
	t.Run("expands a rate into all six configurations", func(t *testing.T) {
		repo := &mockRepository{}
		s := newTestService(t, repo)

		saved, err := s.Create(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, saved, 6)

		type combo struct {
			included bool
			rounding tax.Rounding
		}
		seen := make(map[combo]bool)
		for _, row := range saved {
			assert.Equal(t, 10, row.Rate)
			seen[combo{row.TaxIncluded, row.Rounding}] = true
		}
		for _, included := range []bool{false, true} {
			for _, rounding := range []tax.Rounding{tax.FLOOR, tax.ROUND, tax.CEIL} {
				assert.True(t, seen[combo{included, rounding}],
					"missing combination included=%v rounding=%s", included, rounding)
			}
		}
	})

	t.Run("rejects a duplicate rate", func(t *testing.T) {
		repo := &mockRepository{}
		s := newTestService(t, repo)

		_, err := s.Create(context.Background(), 10)
		require.NoError(t, err)

		_, err = s.Create(context.Background(), 10)
		require.ErrorIs(t, err, errs.ErrAlreadyExists)
		assert.Len(t, repo.taxes, 6)
	})

	t.Run("rejects non-positive rates", func(t *testing.T) {
		s := newTestService(t, &mockRepository{})

		for _, rate := range []int{0, -8} {
			_, err := s.Create(context.Background(), rate)
			require.ErrorIs(t, err, errs.ErrInvalidRequest)
		}
	})
}

func TestList(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo)

	for _, rate := range []int{8, 10} {
		_, err := s.Create(context.Background(), rate)
		require.NoError(t, err)
	}

	got, err := s.List(context.Background())
	require.NoError(t, err)

	// One representative row per rate, not all twelve.
	require.Len(t, got, 2)
	rates := []int{got[0].Rate, got[1].Rate}
	assert.ElementsMatch(t, []int{8, 10}, rates)
}

func TestDeleteByRate(t *testing.T) {
	repo := &mockRepository{}
	s := newTestService(t, repo)

	_, err := s.Create(context.Background(), 10)
	require.NoError(t, err)

	require.NoError(t, s.DeleteByRate(context.Background(), 10))
	assert.Empty(t, repo.taxes)

	require.ErrorIs(t, s.DeleteByRate(context.Background(), 10), errs.ErrNotFound)
}
