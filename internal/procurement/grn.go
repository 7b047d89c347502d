package procurement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-erp/meridian-erp/internal/finance"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func (s *Service) GetGRN(ctx context.Context, id int64) (*GRN, error) {
	return s.repo.GetGRN(ctx, id)
}

func (s *Service) ListGRNs(ctx context.Context, filter GRNListFilter) ([]GRN, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 20
	}
	return s.repo.ListGRNs(ctx, filter)
}

// InspectGRN records the inspection outcome per line and recomputes
// the GRN total from accepted quantities.
func (s *Service) InspectGRN(ctx context.Context, id int64, req InspectGRNRequest, userID int64) (*GRN, error) {
	grn, err := s.repo.GetGRN(ctx, id)
	if err != nil {
		return nil, err
	}
	if grn.Status != GRNDraft {
		return nil, fmt.Errorf("%w: cannot inspect %s grn", shared.ErrInvalidState, grn.Status)
	}

	byID := make(map[int64]*GRNItem, len(grn.Items))
	for i := range grn.Items {
		byID[grn.Items[i].ID] = &grn.Items[i]
	}
	for _, line := range req.Lines {
		item, ok := byID[line.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: grn item %d", shared.ErrNotFound, line.ItemID)
		}
		if line.AcceptedQuantity > item.OrderedQuantity {
			return nil, fmt.Errorf("%w: accepted %.2f exceeds ordered %.2f", shared.ErrValidation, line.AcceptedQuantity, item.OrderedQuantity)
		}
		item.AcceptedQuantity = line.AcceptedQuantity
		item.ShortQuantity = item.OrderedQuantity - line.AcceptedQuantity
		item.QualityStatus = line.QualityStatus
		item.BatchNumber = line.BatchNumber
		item.ExpiryDate = line.ExpiryDate
		item.SerialNumbers = line.SerialNumbers
	}

	var total float64
	for _, item := range grn.Items {
		total += item.AcceptedQuantity * item.UnitPrice
	}
	grn.Total = finance.Round2(total)
	grn.BalanceAmount = grn.Total
	grn.Status = GRNInspected

	if err := s.repo.UpdateGRN(ctx, id, *grn); err != nil {
		return nil, fmt.Errorf("update grn: %w", err)
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "grn.inspect", Entity: "grn", EntityID: id,
	})
	return s.repo.GetGRN(ctx, id)
}

// ApproveGRN moves an inspected GRN to APPROVED.
func (s *Service) ApproveGRN(ctx context.Context, id, userID int64) (*GRN, error) {
	grn, err := s.repo.GetGRN(ctx, id)
	if err != nil {
		return nil, err
	}
	if grn.Status != GRNInspected {
		return nil, fmt.Errorf("%w: cannot approve %s grn", shared.ErrInvalidState, grn.Status)
	}
	if err := s.repo.UpdateGRNStatus(ctx, id, GRNApproved); err != nil {
		return nil, err
	}
	s.approvals.Record(ctx, shared.ApprovalLog{
		Module: "grn", RefID: shared.DocRef("grn", id), ActorID: userID, Action: shared.ApprovalApprove,
	})
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "grn.approve", Entity: "grn", EntityID: id,
	})
	return s.repo.GetGRN(ctx, id)
}

// CompleteGRN books accepted quantities into stock and marks the GRN
// completed. The stock application is guarded twice: by the permanent
// StockUpdated flag and by an idempotency key, so a second completion
// can never double-count.
func (s *Service) CompleteGRN(ctx context.Context, id, userID int64) (*GRN, error) {
	grn, err := s.repo.GetGRN(ctx, id)
	if err != nil {
		return nil, err
	}
	if grn.Status != GRNApproved {
		return nil, fmt.Errorf("%w: cannot complete %s grn", shared.ErrInvalidState, grn.Status)
	}
	if grn.StockUpdated {
		return nil, fmt.Errorf("%w: %s", ErrStockAlreadyApplied, grn.Number)
	}

	guardKey := fmt.Sprintf("grn:complete:%d", id)
	if err := s.guard.CheckAndInsert(ctx, guardKey); err != nil {
		return nil, fmt.Errorf("grn completion guard: %w", err)
	}

	var lines []inventory.ReceiptLine
	for _, item := range grn.Items {
		if item.AcceptedQuantity <= 0 {
			continue
		}
		line := inventory.ReceiptLine{
			ProductID: item.ProductID,
			Quantity:  item.AcceptedQuantity,
			Serials:   item.SerialNumbers,
		}
		if item.BatchNumber != "" {
			line.Batch = &inventory.Batch{BatchNumber: item.BatchNumber, ExpiryDate: item.ExpiryDate}
		}
		lines = append(lines, line)
	}

	if len(lines) > 0 {
		ref := inventory.Reference{Type: "grn", ID: id, Number: grn.Number}
		if _, err := s.stock.Receive(ctx, grn.LocationID, lines, inventory.TransactionGRN, ref, userID); err != nil {
			if delErr := s.guard.Delete(ctx, guardKey); delErr != nil {
				s.logger.Error("release grn completion guard",
					slog.Int64("grn_id", id), slog.Any("error", delErr))
			}
			return nil, fmt.Errorf("apply grn stock: %w", err)
		}
	}

	if err := s.repo.MarkGRNCompleted(ctx, id); err != nil {
		return nil, fmt.Errorf("mark grn completed: %w", err)
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "grn.complete", Entity: "grn", EntityID: id,
	})
	s.logger.Info("grn completed", slog.Int64("id", id), slog.String("number", grn.Number))
	return s.repo.GetGRN(ctx, id)
}

// RejectGRN marks a draft or inspected GRN as rejected.
func (s *Service) RejectGRN(ctx context.Context, id, userID int64) (*GRN, error) {
	grn, err := s.repo.GetGRN(ctx, id)
	if err != nil {
		return nil, err
	}
	if grn.Status != GRNDraft && grn.Status != GRNInspected {
		return nil, fmt.Errorf("%w: cannot reject %s grn", shared.ErrInvalidState, grn.Status)
	}
	if err := s.repo.UpdateGRNStatus(ctx, id, GRNRejected); err != nil {
		return nil, err
	}
	s.approvals.Record(ctx, shared.ApprovalLog{
		Module: "grn", RefID: shared.DocRef("grn", id), ActorID: userID, Action: shared.ApprovalReject,
	})
	return s.repo.GetGRN(ctx, id)
}

// DeleteGRN removes a draft GRN.
func (s *Service) DeleteGRN(ctx context.Context, id, userID int64) error {
	grn, err := s.repo.GetGRN(ctx, id)
	if err != nil {
		return err
	}
	if grn.Status != GRNDraft {
		return fmt.Errorf("%w: only DRAFT grns can be deleted", shared.ErrInvalidState)
	}
	if err := s.repo.DeleteGRN(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "grn.delete", Entity: "grn", EntityID: id,
	})
	return nil
}
