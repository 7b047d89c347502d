package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/finance"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/sales/quotations"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RateResolver turns tax IDs into percentage rates.
type RateResolver interface {
	ResolveRates(ctx context.Context, ids []int64) ([]float64, error)
}

// StockDeductor books outbound stock for invoice lines. Implemented by
// the inventory service.
type StockDeductor interface {
	Deduct(ctx context.Context, locationID int64, lines []inventory.DeductionLine, ref inventory.Reference, performedBy int64) ([]inventory.Transaction, error)
}

type Service struct {
	repo      Repository
	allocator *sequence.Allocator
	rates     RateResolver
	stock     StockDeductor
	approvals shared.ApprovalSink
	audit     shared.Auditor
	logger    *slog.Logger

	// defaultLocationID receives deductions for invoices converted from
	// quotations, which carry no location of their own.
	defaultLocationID int64
}

func NewService(repo Repository, allocator *sequence.Allocator, rates RateResolver, stock StockDeductor, approvals shared.ApprovalSink, audit shared.Auditor, logger *slog.Logger, defaultLocationID int64) *Service {
	return &Service{
		repo:              repo,
		allocator:         allocator,
		rates:             rates,
		stock:             stock,
		approvals:         approvals,
		audit:             audit,
		logger:            logger,
		defaultLocationID: defaultLocationID,
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

// Create persists the invoice, then deducts stock for every line. If
// the deduction fails the persisted invoice is removed again so the
// caller sees no partial state.
func (s *Service) Create(ctx context.Context, req CreateInvoiceRequest, createdBy int64) (*Invoice, error) {
	if req.DueDate.Before(req.InvoiceDate) {
		return nil, fmt.Errorf("%w: due_date must be after invoice_date", shared.ErrValidation)
	}

	totals, items, err := s.computeTotals(ctx, req.Items, req.DiscountPercent, req.TaxIDs)
	if err != nil {
		return nil, err
	}

	number, err := s.allocator.Allocate(ctx, sequence.DocInvoice)
	if err != nil {
		return nil, fmt.Errorf("allocate invoice number: %w", err)
	}

	inv := Invoice{
		Number:          number,
		CustomerID:      req.CustomerID,
		LocationID:      req.LocationID,
		Status:          StatusDraft,
		ApprovalStatus:  ApprovalPending,
		InvoiceDate:     req.InvoiceDate,
		DueDate:         req.DueDate,
		Subtotal:        totals.Subtotal,
		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  totals.DiscountAmount,
		TaxAmount:       totals.TaxAmount,
		Total:           totals.Total,
		BalanceAmount:   totals.Total,
		TaxIDs:          req.TaxIDs,
		Notes:           req.Notes,
		CreatedBy:       createdBy,
		Items:           items,
	}

	id, err := s.repo.Create(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	deduction := make([]inventory.DeductionLine, len(items))
	for i, item := range items {
		deduction[i] = inventory.DeductionLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	ref := inventory.Reference{Type: "invoice", ID: id, Number: number}
	if _, err := s.stock.Deduct(ctx, req.LocationID, deduction, ref, createdBy); err != nil {
		if delErr := s.repo.Delete(ctx, id); delErr != nil {
			s.logger.Error("invoice compensation failed",
				slog.Int64("invoice_id", id), slog.Any("error", delErr))
		}
		return nil, fmt.Errorf("deduct stock: %w", err)
	}

	s.audit.Record(ctx, shared.AuditLog{
		ActorID: createdBy, Action: "invoice.create", Entity: "invoice", EntityID: id,
	})
	s.logger.Info("invoice created", slog.Int64("id", id), slog.String("number", number))
	return s.repo.Get(ctx, id)
}

// CreateFromQuotation builds a draft invoice carrying the quotation's
// lines and pricing, deducting stock at the default location.
func (s *Service) CreateFromQuotation(ctx context.Context, q quotations.ConvertedQuotation) (int64, string, error) {
	lines := make([]CreateLineRequest, len(q.Items))
	for i, item := range q.Items {
		lines[i] = CreateLineRequest{
			ProductID:       item.ProductID,
			Description:     item.Description,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
		}
	}
	now := time.Now()
	inv, err := s.Create(ctx, CreateInvoiceRequest{
		CustomerID:      q.CustomerID,
		LocationID:      s.defaultLocationID,
		InvoiceDate:     now,
		DueDate:         now.AddDate(0, 1, 0),
		DiscountPercent: q.DiscountPercent,
		TaxIDs:          q.TaxIDs,
		Notes:           q.Notes,
		Items:           lines,
	}, q.CreatedBy)
	if err != nil {
		return 0, "", err
	}
	if err := s.repo.LinkQuotation(ctx, inv.ID, q.QuotationID); err != nil {
		return 0, "", fmt.Errorf("link quotation: %w", err)
	}
	return inv.ID, inv.Number, nil
}

// Send marks a draft invoice as issued to the customer.
func (s *Service) Send(ctx context.Context, id, userID int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft {
		return nil, fmt.Errorf("%w: cannot send %s invoice", shared.ErrInvalidState, inv.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusSent); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "invoice.send", Entity: "invoice", EntityID: id,
	})
	return s.repo.Get(ctx, id)
}

// Cancel voids an invoice that has no counted payments.
func (s *Service) Cancel(ctx context.Context, id, userID int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case StatusPaid, StatusPartial:
		return nil, fmt.Errorf("%w: cannot cancel an invoice with payments", shared.ErrInvalidState)
	case StatusCancelled:
		return nil, fmt.Errorf("%w: invoice already cancelled", shared.ErrInvalidState)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "invoice.cancel", Entity: "invoice", EntityID: id,
	})
	return s.repo.Get(ctx, id)
}

// Approve resolves the pending approval. Approval is one-shot.
func (s *Service) Approve(ctx context.Context, id, userID int64) (*Invoice, error) {
	return s.resolveApproval(ctx, id, userID, ApprovalApproved, shared.ApprovalApprove)
}

// RejectApproval resolves the pending approval negatively.
func (s *Service) RejectApproval(ctx context.Context, id, userID int64) (*Invoice, error) {
	return s.resolveApproval(ctx, id, userID, ApprovalRejected, shared.ApprovalReject)
}

func (s *Service) resolveApproval(ctx context.Context, id, userID int64, to ApprovalStatus, action shared.ApprovalAction) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.ApprovalStatus != ApprovalPending {
		return nil, fmt.Errorf("%w: approval already %s", shared.ErrInvalidState, inv.ApprovalStatus)
	}
	if err := s.repo.UpdateApprovalStatus(ctx, id, to); err != nil {
		return nil, err
	}
	s.approvals.Record(ctx, shared.ApprovalLog{
		Module: "invoice", RefID: shared.DocRef("invoice", id), ActorID: userID, Action: action,
	})
	return s.repo.Get(ctx, id)
}

// MarkOverdue flips SENT/PARTIAL invoices past their due date with an
// open balance to OVERDUE. Used by the scheduled scan.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	n, err := s.repo.MarkOverdue(ctx, asOf)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("invoices marked overdue", slog.Int64("count", n))
	}
	return n, nil
}

func (s *Service) computeTotals(ctx context.Context, lines []CreateLineRequest, discountPercent float64, taxIDs []int64) (finance.Totals, []Item, error) {
	rates, err := s.rates.ResolveRates(ctx, taxIDs)
	if err != nil {
		return finance.Totals{}, nil, fmt.Errorf("resolve tax rates: %w", err)
	}
	financeItems := make([]finance.LineItem, len(lines))
	items := make([]Item, len(lines))
	for i, line := range lines {
		financeItems[i] = finance.LineItem{
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			DiscountPercent: line.DiscountPercent,
		}
		items[i] = Item{
			ProductID:       line.ProductID,
			Description:     line.Description,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			DiscountPercent: line.DiscountPercent,
			LineTotal:       finance.Round2(financeItems[i].LineTotal()),
		}
	}
	return finance.ComputeTotals(financeItems, discountPercent, rates), items, nil
}
