package taxes

import (
	"context"
	"fmt"

	mdshared "github.com/meridian-erp/meridian-erp/internal/masterdata/shared"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Tax, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id int64) (Tax, error) {
	if id <= 0 {
		return Tax{}, fmt.Errorf("%w: invalid tax ID", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Create inserts the tax. When the tax is marked default, the repository
// clears the flag on every other tax in the same transaction so at most
// one default exists at any time.
func (s *Service) Create(ctx context.Context, tax Tax) (Tax, error) {
	if err := s.validate(tax); err != nil {
		return Tax{}, err
	}
	return s.repo.Create(ctx, tax)
}

func (s *Service) Update(ctx context.Context, id int64, tax Tax) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid tax ID", shared.ErrValidation)
	}
	if err := s.validate(tax); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, tax)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid tax ID", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

// ResolveRates looks up the rate of each enabled tax by ID, preserving order.
func (s *Service) ResolveRates(ctx context.Context, ids []int64) ([]float64, error) {
	rates := make([]float64, 0, len(ids))
	for _, id := range ids {
		tax, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve tax %d: %w", id, err)
		}
		if !tax.Enabled {
			return nil, fmt.Errorf("%w: tax %s is disabled", shared.ErrValidation, tax.Code)
		}
		rates = append(rates, tax.Rate)
	}
	return rates, nil
}
