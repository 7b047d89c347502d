package locations

import (
	"context"
	"fmt"
	"strings"

	mdshared "github.com/meridian-erp/meridian-erp/internal/masterdata/shared"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Location, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, fmt.Errorf("%w: invalid location ID", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, loc Location) (Location, error) {
	if err := validate(loc); err != nil {
		return Location{}, err
	}
	return s.repo.Create(ctx, loc)
}

func (s *Service) Update(ctx context.Context, id int64, loc Location) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid location ID", shared.ErrValidation)
	}
	if err := validate(loc); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, loc)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid location ID", shared.ErrValidation)
	}
	return s.repo.SetActive(ctx, id, false)
}

func validate(loc Location) error {
	if strings.TrimSpace(loc.Code) == "" {
		return fmt.Errorf("%w: location code is required", shared.ErrValidation)
	}
	if strings.TrimSpace(loc.Name) == "" {
		return fmt.Errorf("%w: location name is required", shared.ErrValidation)
	}
	return nil
}
