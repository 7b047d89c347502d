package products

import (
	"fmt"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: product sku is required", shared.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", shared.ErrValidation)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must be >= 0", shared.ErrValidation)
	}
	if p.TaxRate < 0 || p.TaxRate > 100 {
		return fmt.Errorf("%w: tax rate must be between 0 and 100", shared.ErrValidation)
	}
	switch p.Tracking {
	case TrackingNone, TrackingBatch, TrackingSerial:
	default:
		return fmt.Errorf("%w: unknown tracking mode %q", shared.ErrValidation, p.Tracking)
	}
	return nil
}
