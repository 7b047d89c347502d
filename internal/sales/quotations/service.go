package quotations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/finance"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RateResolver turns tax IDs into percentage rates. Disabled or
// unknown taxes resolve to an error.
type RateResolver interface {
	ResolveRates(ctx context.Context, ids []int64) ([]float64, error)
}

// InvoiceCreator builds a draft invoice from an approved quotation.
// Implemented by the invoices service.
type InvoiceCreator interface {
	CreateFromQuotation(ctx context.Context, q ConvertedQuotation) (int64, string, error)
}

// ConvertedQuotation carries everything the invoice side needs without
// importing this package's full model.
type ConvertedQuotation struct {
	QuotationID     int64
	QuotationNumber string
	CustomerID      int64
	DiscountPercent float64
	TaxIDs          []int64
	Notes           string
	CreatedBy       int64
	Items           []ConvertedItem
}

type ConvertedItem struct {
	ProductID       int64
	Description     string
	Quantity        float64
	UnitPrice       float64
	DiscountPercent float64
}

type Service struct {
	repo      Repository
	allocator *sequence.Allocator
	rates     RateResolver
	invoices  InvoiceCreator
	audit     shared.Auditor
	logger    *slog.Logger
}

func NewService(repo Repository, allocator *sequence.Allocator, rates RateResolver, invoices InvoiceCreator, audit shared.Auditor, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		allocator: allocator,
		rates:     rates,
		invoices:  invoices,
		audit:     audit,
		logger:    logger,
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*Quotation, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Create(ctx context.Context, req CreateQuotationRequest, createdBy int64) (*Quotation, error) {
	if req.ValidUntil.Before(req.QuoteDate) {
		return nil, fmt.Errorf("%w: valid_until must be after quote_date", shared.ErrValidation)
	}

	totals, items, err := s.computeTotals(ctx, req.Items, req.DiscountPercent, req.TaxIDs)
	if err != nil {
		return nil, err
	}

	number, err := s.allocator.Allocate(ctx, sequence.DocQuotation)
	if err != nil {
		return nil, fmt.Errorf("allocate quotation number: %w", err)
	}

	q := Quotation{
		Number:          number,
		CustomerID:      req.CustomerID,
		Status:          StatusDraft,
		QuoteDate:       req.QuoteDate,
		ValidUntil:      req.ValidUntil,
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

	id, err := s.repo.Create(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("create quotation: %w", err)
	}

	s.audit.Record(ctx, shared.AuditLog{
		ActorID: createdBy, Action: "quotation.create", Entity: "quotation", EntityID: id,
	})
	s.logger.Info("quotation created", slog.Int64("id", id), slog.String("number", number))
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateQuotationRequest, updatedBy int64) (*Quotation, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if existing.Status != StatusDraft {
		return nil, fmt.Errorf("%w: only DRAFT quotations can be updated", shared.ErrInvalidState)
	}

	next := *existing
	if req.QuoteDate != nil {
		next.QuoteDate = *req.QuoteDate
	}
	if req.ValidUntil != nil {
		next.ValidUntil = *req.ValidUntil
	}
	if req.Notes != nil {
		next.Notes = *req.Notes
	}
	if req.DiscountPercent != nil {
		next.DiscountPercent = *req.DiscountPercent
	}
	if req.TaxIDs != nil {
		next.TaxIDs = *req.TaxIDs
	}
	if next.ValidUntil.Before(next.QuoteDate) {
		return nil, fmt.Errorf("%w: valid_until must be after quote_date", shared.ErrValidation)
	}

	lineReqs := itemsToLineRequests(existing.Items)
	if req.Items != nil {
		lineReqs = *req.Items
	}
	totals, items, err := s.computeTotals(ctx, lineReqs, next.DiscountPercent, next.TaxIDs)
	if err != nil {
		return nil, err
	}
	next.Subtotal = totals.Subtotal
	next.DiscountAmount = totals.DiscountAmount
	next.TaxAmount = totals.TaxAmount
	next.Total = totals.Total
	next.Items = items

	if err := s.repo.Update(ctx, id, next); err != nil {
		return nil, fmt.Errorf("update quotation: %w", err)
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: updatedBy, Action: "quotation.update", Entity: "quotation", EntityID: id,
	})
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64, deletedBy int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get quotation: %w", err)
	}
	if existing.Status != StatusDraft {
		return fmt.Errorf("%w: only DRAFT quotations can be deleted", shared.ErrInvalidState)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: deletedBy, Action: "quotation.delete", Entity: "quotation", EntityID: id,
	})
	return nil
}

func (s *Service) Send(ctx context.Context, id, userID int64) (*Quotation, error) {
	return s.transition(ctx, id, StatusSent, userID, "quotation.send")
}

func (s *Service) Approve(ctx context.Context, id, userID int64) (*Quotation, error) {
	return s.transition(ctx, id, StatusApproved, userID, "quotation.approve")
}

func (s *Service) Reject(ctx context.Context, id, userID int64) (*Quotation, error) {
	return s.transition(ctx, id, StatusRejected, userID, "quotation.reject")
}

func (s *Service) MarkExpired(ctx context.Context, id, userID int64) (*Quotation, error) {
	return s.transition(ctx, id, StatusExpired, userID, "quotation.expire")
}

// ExpireStale flips SENT/APPROVED quotations past their validity date
// to EXPIRED. Used by the scheduled scan.
func (s *Service) ExpireStale(ctx context.Context, asOf time.Time) (int64, error) {
	n, err := s.repo.ExpireStale(ctx, asOf)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("quotations expired", slog.Int64("count", n))
	}
	return n, nil
}

func (s *Service) transition(ctx context.Context, id int64, to Status, userID int64, action string) (*Quotation, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if !canTransition(existing.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", shared.ErrInvalidState, existing.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, fmt.Errorf("update quotation status: %w", err)
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: action, Entity: "quotation", EntityID: id,
	})
	return s.repo.Get(ctx, id)
}

// ConvertToInvoice creates a draft invoice from a SENT or APPROVED
// quotation. A quotation converts at most once.
func (s *Service) ConvertToInvoice(ctx context.Context, id, userID int64) (*Quotation, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if existing.ConvertedToInvoice {
		return nil, fmt.Errorf("%w: quotation %s already converted", shared.ErrConflict, existing.Number)
	}
	if existing.Status != StatusApproved && existing.Status != StatusSent {
		return nil, fmt.Errorf("%w: cannot convert %s quotation", shared.ErrInvalidState, existing.Status)
	}

	conv := ConvertedQuotation{
		QuotationID:     existing.ID,
		QuotationNumber: existing.Number,
		CustomerID:      existing.CustomerID,
		DiscountPercent: existing.DiscountPercent,
		TaxIDs:          existing.TaxIDs,
		Notes:           existing.Notes,
		CreatedBy:       userID,
	}
	for _, item := range existing.Items {
		conv.Items = append(conv.Items, ConvertedItem{
			ProductID:       item.ProductID,
			Description:     item.Description,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
		})
	}

	invoiceID, invoiceNumber, err := s.invoices.CreateFromQuotation(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("convert quotation: %w", err)
	}

	if err := s.repo.MarkConverted(ctx, id, invoiceID); err != nil {
		return nil, fmt.Errorf("mark converted: %w", err)
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "quotation.convert", Entity: "quotation", EntityID: id,
		Meta: map[string]interface{}{"invoice_id": invoiceID, "invoice_number": invoiceNumber},
	})
	s.logger.Info("quotation converted",
		slog.Int64("quotation_id", id),
		slog.Int64("invoice_id", invoiceID),
		slog.String("invoice_number", invoiceNumber))
	return s.repo.Get(ctx, id)
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

func itemsToLineRequests(items []Item) []CreateLineRequest {
	out := make([]CreateLineRequest, len(items))
	for i, item := range items {
		out[i] = CreateLineRequest{
			ProductID:       item.ProductID,
			Description:     item.Description,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
		}
	}
	return out
}
