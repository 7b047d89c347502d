package suppliers

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

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, fmt.Errorf("%w: invalid supplier ID", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Create assigns the next supplier code and stores the record.
func (s *Service) Create(ctx context.Context, sup Supplier) (Supplier, error) {
	if err := validate(sup); err != nil {
		return Supplier{}, err
	}
	code, err := s.allocator.Allocate(ctx, sequence.DocSupplier)
	if err != nil {
		return Supplier{}, fmt.Errorf("allocate supplier code: %w", err)
	}
	sup.Code = code
	sup.IsActive = true
	return s.repo.Create(ctx, sup)
}

func (s *Service) Update(ctx context.Context, id int64, sup Supplier) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid supplier ID", shared.ErrValidation)
	}
	if err := validate(sup); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, sup)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid supplier ID", shared.ErrValidation)
	}
	return s.repo.SetActive(ctx, id, false)
}

func validate(sup Supplier) error {
	if strings.TrimSpace(sup.Name) == "" {
		return fmt.Errorf("%w: supplier name is required", shared.ErrValidation)
	}
	return nil
}
