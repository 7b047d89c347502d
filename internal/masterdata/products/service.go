package products

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

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: invalid product ID", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	if p.Tracking == "" {
		p.Tracking = TrackingNone
	}
	if err := s.validate(p); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Update(ctx context.Context, id int64, p Product) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid product ID", shared.ErrValidation)
	}
	if err := s.validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, p)
}

// Deactivate soft-disables a product; documents referencing it stay intact.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid product ID", shared.ErrValidation)
	}
	return s.repo.SetActive(ctx, id, false)
}
