package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/finance"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var (
	// ErrAlreadyConverted signals a second conversion attempt on a PO.
	ErrAlreadyConverted = errors.New("purchase order already converted")
	// ErrStockAlreadyApplied signals a second completion of a GRN.
	ErrStockAlreadyApplied = errors.New("stock already applied for this GRN")
)

// RateResolver turns tax IDs into percentage rates.
type RateResolver interface {
	ResolveRates(ctx context.Context, ids []int64) ([]float64, error)
}

// StockReceiver books inbound stock for accepted GRN lines.
type StockReceiver interface {
	Receive(ctx context.Context, locationID int64, lines []inventory.ReceiptLine, txType inventory.TransactionType, ref inventory.Reference, performedBy int64) ([]inventory.Transaction, error)
}

// CompletionGuard makes GRN completion idempotent across processes.
// Implemented by shared.IdempotencyStore.
type CompletionGuard interface {
	CheckAndInsert(ctx context.Context, key string) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	repo      Repository
	allocator *sequence.Allocator
	rates     RateResolver
	stock     StockReceiver
	guard     CompletionGuard
	approvals shared.ApprovalSink
	audit     shared.Auditor
	logger    *slog.Logger
}

func NewService(repo Repository, allocator *sequence.Allocator, rates RateResolver, stock StockReceiver, guard CompletionGuard, approvals shared.ApprovalSink, audit shared.Auditor, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		allocator: allocator,
		rates:     rates,
		stock:     stock,
		guard:     guard,
		approvals: approvals,
		audit:     audit,
		logger:    logger,
	}
}

func (s *Service) GetPO(ctx context.Context, id int64) (*PurchaseOrder, error) {
	return s.repo.GetPO(ctx, id)
}

func (s *Service) ListPOs(ctx context.Context, filter POListFilter) ([]PurchaseOrder, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 20
	}
	return s.repo.ListPOs(ctx, filter)
}

func (s *Service) CreatePO(ctx context.Context, req CreatePORequest, createdBy int64) (*PurchaseOrder, error) {
	if req.ExpectedDate.Before(req.OrderDate) {
		return nil, fmt.Errorf("%w: expected_date must be after order_date", shared.ErrValidation)
	}

	rates, err := s.rates.ResolveRates(ctx, req.TaxIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve tax rates: %w", err)
	}
	financeItems := make([]finance.LineItem, len(req.Items))
	items := make([]POItem, len(req.Items))
	for i, line := range req.Items {
		financeItems[i] = finance.LineItem{
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			DiscountPercent: line.DiscountPercent,
		}
		items[i] = POItem{
			ProductID:       line.ProductID,
			Description:     line.Description,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			DiscountPercent: line.DiscountPercent,
			LineTotal:       finance.Round2(financeItems[i].LineTotal()),
		}
	}
	totals := finance.ComputeTotals(financeItems, req.DiscountPercent, rates)

	number, err := s.allocator.Allocate(ctx, sequence.DocPurchaseOrder)
	if err != nil {
		return nil, fmt.Errorf("allocate purchase order number: %w", err)
	}

	po := PurchaseOrder{
		Number:          number,
		SupplierID:      req.SupplierID,
		Status:          PODraft,
		OrderDate:       req.OrderDate,
		ExpectedDate:    req.ExpectedDate,
		Subtotal:        totals.Subtotal,
		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  totals.DiscountAmount,
		TaxAmount:       totals.TaxAmount,
		Total:           totals.Total,
		TaxIDs:          req.TaxIDs,
		Notes:           req.Notes,
		CreatedBy:       createdBy,
		Items:           items,
	}
	id, err := s.repo.CreatePO(ctx, po)
	if err != nil {
		return nil, fmt.Errorf("create purchase order: %w", err)
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: createdBy, Action: "po.create", Entity: "purchase_order", EntityID: id,
	})
	s.logger.Info("purchase order created", slog.Int64("id", id), slog.String("number", number))
	return s.repo.GetPO(ctx, id)
}

// ApprovePO moves a draft to APPROVED and stamps the approver.
func (s *Service) ApprovePO(ctx context.Context, id, userID int64) (*PurchaseOrder, error) {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != PODraft {
		return nil, fmt.Errorf("%w: cannot approve %s purchase order", shared.ErrInvalidState, po.Status)
	}
	now := time.Now()
	if err := s.repo.UpdatePOStatus(ctx, id, POApproved, map[string]interface{}{
		"approved_by": userID, "approved_at": now,
	}); err != nil {
		return nil, err
	}
	s.approvals.Record(ctx, shared.ApprovalLog{
		Module: "purchase_order", RefID: shared.DocRef("purchase_order", id),
		ActorID: userID, Action: shared.ApprovalApprove,
	})
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "po.approve", Entity: "purchase_order", EntityID: id,
	})
	return s.repo.GetPO(ctx, id)
}

// MarkPOSent records dispatch to the supplier.
func (s *Service) MarkPOSent(ctx context.Context, id, userID int64) (*PurchaseOrder, error) {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != POApproved {
		return nil, fmt.Errorf("%w: cannot send %s purchase order", shared.ErrInvalidState, po.Status)
	}
	now := time.Now()
	if err := s.repo.UpdatePOStatus(ctx, id, POSent, map[string]interface{}{
		"sent_by": userID, "sent_at": now,
	}); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "po.send", Entity: "purchase_order", EntityID: id,
	})
	return s.repo.GetPO(ctx, id)
}

func (s *Service) CompletePO(ctx context.Context, id, userID int64) (*PurchaseOrder, error) {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != POSent && po.Status != POApproved {
		return nil, fmt.Errorf("%w: cannot complete %s purchase order", shared.ErrInvalidState, po.Status)
	}
	if err := s.repo.UpdatePOStatus(ctx, id, POCompleted, nil); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "po.complete", Entity: "purchase_order", EntityID: id,
	})
	return s.repo.GetPO(ctx, id)
}

func (s *Service) CancelPO(ctx context.Context, id, userID int64) (*PurchaseOrder, error) {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.ConvertedToGRN {
		return nil, fmt.Errorf("%w: cannot cancel", ErrAlreadyConverted)
	}
	switch po.Status {
	case PODraft, POApproved, POSent:
	default:
		return nil, fmt.Errorf("%w: cannot cancel %s purchase order", shared.ErrInvalidState, po.Status)
	}
	if err := s.repo.UpdatePOStatus(ctx, id, POCancelled, nil); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "po.cancel", Entity: "purchase_order", EntityID: id,
	})
	return s.repo.GetPO(ctx, id)
}

// ConvertPOToGRN creates a draft GRN from a sent or approved purchase
// order. Lines start with nothing accepted and the full ordered
// quantity short; inspection fills them in. A PO converts once.
func (s *Service) ConvertPOToGRN(ctx context.Context, id int64, req ConvertPORequest, userID int64) (*GRN, error) {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.ConvertedToGRN {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyConverted, po.Number)
	}
	if po.Status != POSent && po.Status != POApproved {
		return nil, fmt.Errorf("%w: cannot convert %s purchase order", shared.ErrInvalidState, po.Status)
	}

	number, err := s.allocator.Allocate(ctx, sequence.DocGRN)
	if err != nil {
		return nil, fmt.Errorf("allocate grn number: %w", err)
	}

	grn := GRN{
		Number:          number,
		PurchaseOrderID: &po.ID,
		SupplierID:      po.SupplierID,
		LocationID:      req.LocationID,
		Status:          GRNDraft,
		ReceivedDate:    time.Now(),
		Total:           po.Total,
		BalanceAmount:   po.Total,
		PaymentStatus:   GRNUnpaid,
		CreatedBy:       userID,
	}
	for _, item := range po.Items {
		grn.Items = append(grn.Items, GRNItem{
			ProductID:       item.ProductID,
			OrderedQuantity: item.Quantity,
			ShortQuantity:   item.Quantity,
			UnitPrice:       item.UnitPrice,
		})
	}

	grnID, err := s.repo.CreateGRN(ctx, grn)
	if err != nil {
		return nil, fmt.Errorf("create grn: %w", err)
	}
	if err := s.repo.MarkPOConverted(ctx, id, grnID); err != nil {
		return nil, fmt.Errorf("mark purchase order converted: %w", err)
	}

	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "po.convert", Entity: "purchase_order", EntityID: id,
		Meta: map[string]interface{}{"grn_id": grnID, "grn_number": number},
	})
	s.logger.Info("purchase order converted",
		slog.Int64("po_id", id), slog.Int64("grn_id", grnID), slog.String("grn_number", number))
	return s.repo.GetGRN(ctx, grnID)
}

func (s *Service) DeletePO(ctx context.Context, id, userID int64) error {
	po, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return err
	}
	if po.Status != PODraft {
		return fmt.Errorf("%w: only DRAFT purchase orders can be deleted", shared.ErrInvalidState)
	}
	if err := s.repo.DeletePO(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "po.delete", Entity: "purchase_order", EntityID: id,
	})
	return nil
}
