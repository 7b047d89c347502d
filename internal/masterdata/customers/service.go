package customers

import (
	"context"
	"fmt"
	"strings"

	mdshared "github.com/meridian-erp/meridian-erp/internal/masterdata/shared"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type Service struct {
	repo      Repository
	allocator *sequence.Allocator
}

func NewService(repo Repository, allocator *sequence.Allocator) *Service {
	return &Service{repo: repo, allocator: allocator}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Customer, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, fmt.Errorf("%w: invalid customer ID", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Create assigns the next customer code and stores the record.
func (s *Service) Create(ctx context.Context, c Customer) (Customer, error) {
	if err := validate(c); err != nil {
		return Customer{}, err
	}
	code, err := s.allocator.Allocate(ctx, sequence.DocCustomer)
	if err != nil {
		return Customer{}, fmt.Errorf("allocate customer code: %w", err)
	}
	c.Code = code
	c.IsActive = true
	return s.repo.Create(ctx, c)
}

func (s *Service) Update(ctx context.Context, id int64, c Customer) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid customer ID", shared.ErrValidation)
	}
	if err := validate(c); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, c)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid customer ID", shared.ErrValidation)
	}
	return s.repo.SetActive(ctx, id, false)
}

func validate(c Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: customer name is required", shared.ErrValidation)
	}
	return nil
}
