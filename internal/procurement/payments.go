package procurement

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-erp/meridian-erp/internal/finance"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var amounts = message.NewPrinter(language.English)

func (s *Service) GetSupplierPayment(ctx context.Context, id int64) (*SupplierPayment, error) {
	return s.repo.GetSupplierPayment(ctx, id)
}

func (s *Service) ListSupplierPayments(ctx context.Context, grnID int64) ([]SupplierPayment, error) {
	if _, err := s.repo.GetGRN(ctx, grnID); err != nil {
		return nil, err
	}
	return s.repo.ListSupplierPayments(ctx, grnID)
}

// CreateSupplierPayment records a draft payment against a GRN. The
// amount is checked against the balance from counted payments even in
// draft, so an impossible payment is rejected up front.
func (s *Service) CreateSupplierPayment(ctx context.Context, grnID int64, req CreateSupplierPaymentRequest, createdBy int64) (*SupplierPayment, error) {
	grn, err := s.repo.GetGRN(ctx, grnID)
	if err != nil {
		return nil, err
	}
	if err := s.checkSupplierOverpayment(ctx, grn, req.Amount, 0); err != nil {
		return nil, err
	}

	number, err := s.allocator.Allocate(ctx, sequence.DocSupplierPayment)
	if err != nil {
		return nil, fmt.Errorf("allocate supplier payment number: %w", err)
	}

	payment := SupplierPayment{
		Number:     number,
		GRNID:      grnID,
		SupplierID: grn.SupplierID,
		Amount:     finance.Round2(req.Amount),
		Method:     req.Method,
		Status:     SupplierPaymentDraft,
		Notes:      req.Notes,
	}
	id, err := s.repo.CreateSupplierPayment(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("create supplier payment: %w", err)
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: createdBy, Action: "supplier_payment.create", Entity: "supplier_payment", EntityID: id,
		Meta: map[string]interface{}{"grn_id": grnID, "amount": payment.Amount},
	})
	return s.repo.GetSupplierPayment(ctx, id)
}

// UpdateSupplierPayment edits a draft payment.
func (s *Service) UpdateSupplierPayment(ctx context.Context, id int64, req UpdateSupplierPaymentRequest, updatedBy int64) (*SupplierPayment, error) {
	payment, err := s.repo.GetSupplierPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != SupplierPaymentDraft {
		return nil, fmt.Errorf("%w: only DRAFT supplier payments can be edited", shared.ErrInvalidState)
	}
	grn, err := s.repo.GetGRN(ctx, payment.GRNID)
	if err != nil {
		return nil, err
	}

	next := *payment
	if req.Amount != nil {
		next.Amount = finance.Round2(*req.Amount)
	}
	if req.Method != nil {
		next.Method = *req.Method
	}
	if req.Notes != nil {
		next.Notes = *req.Notes
	}
	if err := s.checkSupplierOverpayment(ctx, grn, next.Amount, 0); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSupplierPayment(ctx, id, next); err != nil {
		return nil, fmt.Errorf("update supplier payment: %w", err)
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: updatedBy, Action: "supplier_payment.update", Entity: "supplier_payment", EntityID: id,
	})
	return s.repo.GetSupplierPayment(ctx, id)
}

// DeleteSupplierPayment removes a draft payment and re-reconciles.
func (s *Service) DeleteSupplierPayment(ctx context.Context, id, deletedBy int64) error {
	payment, err := s.repo.GetSupplierPayment(ctx, id)
	if err != nil {
		return err
	}
	if payment.Status != SupplierPaymentDraft {
		return fmt.Errorf("%w: only DRAFT supplier payments can be deleted", shared.ErrInvalidState)
	}
	if err := s.repo.DeleteSupplierPayment(ctx, id); err != nil {
		return err
	}
	if err := s.reconcileGRN(ctx, payment.GRNID); err != nil {
		return err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: deletedBy, Action: "supplier_payment.delete", Entity: "supplier_payment", EntityID: id,
	})
	return nil
}

// ApproveSupplierPayment moves DRAFT to APPROVED, making the amount
// count toward the GRN balance.
func (s *Service) ApproveSupplierPayment(ctx context.Context, id, userID int64) (*SupplierPayment, error) {
	payment, err := s.repo.GetSupplierPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != SupplierPaymentDraft {
		return nil, fmt.Errorf("%w: cannot approve %s supplier payment", shared.ErrInvalidState, payment.Status)
	}
	grn, err := s.repo.GetGRN(ctx, payment.GRNID)
	if err != nil {
		return nil, err
	}
	if err := s.checkSupplierOverpayment(ctx, grn, payment.Amount, 0); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateSupplierPaymentStatus(ctx, id, SupplierPaymentApproved, nil); err != nil {
		return nil, err
	}
	if err := s.reconcileGRN(ctx, payment.GRNID); err != nil {
		return nil, err
	}
	s.approvals.Record(ctx, shared.ApprovalLog{
		Module: "supplier_payment", RefID: shared.DocRef("supplier_payment", id),
		ActorID: userID, Action: shared.ApprovalApprove,
	})
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "supplier_payment.approve", Entity: "supplier_payment", EntityID: id,
	})
	return s.repo.GetSupplierPayment(ctx, id)
}

// MarkSupplierPaymentPaid moves APPROVED to PAID and stamps the
// payment date. Both statuses count, so the balance is unchanged.
func (s *Service) MarkSupplierPaymentPaid(ctx context.Context, id, userID int64) (*SupplierPayment, error) {
	payment, err := s.repo.GetSupplierPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != SupplierPaymentApproved {
		return nil, fmt.Errorf("%w: cannot mark %s supplier payment as paid", shared.ErrInvalidState, payment.Status)
	}
	now := time.Now()
	if err := s.repo.UpdateSupplierPaymentStatus(ctx, id, SupplierPaymentPaid, &now); err != nil {
		return nil, err
	}
	if err := s.reconcileGRN(ctx, payment.GRNID); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: userID, Action: "supplier_payment.paid", Entity: "supplier_payment", EntityID: id,
	})
	return s.repo.GetSupplierPayment(ctx, id)
}

// reconcileGRN recomputes paid/balance/payment-status from the full
// set of counted supplier payments.
func (s *Service) reconcileGRN(ctx context.Context, grnID int64) error {
	grn, err := s.repo.GetGRN(ctx, grnID)
	if err != nil {
		return err
	}
	payments, err := s.repo.ListSupplierPayments(ctx, grnID)
	if err != nil {
		return err
	}
	var counted []float64
	for _, p := range payments {
		if p.Status.Counted() {
			counted = append(counted, p.Amount)
		}
	}
	settlement := finance.Settle(grn.Total, counted)

	status := GRNUnpaid
	switch settlement.Status {
	case finance.SettlementPaid:
		status = GRNPaid
	case finance.SettlementPartial:
		status = GRNPartial
	}
	if err := s.repo.UpdateGRNBalances(ctx, grnID, settlement.Paid, settlement.Balance, status); err != nil {
		return fmt.Errorf("update grn balance: %w", err)
	}
	return nil
}

func (s *Service) checkSupplierOverpayment(ctx context.Context, grn *GRN, amount, exclude float64) error {
	payments, err := s.repo.ListSupplierPayments(ctx, grn.ID)
	if err != nil {
		return err
	}
	var paid float64
	for _, p := range payments {
		if p.Status.Counted() {
			paid += p.Amount
		}
	}
	available := grn.Total - (paid - exclude)
	if !finance.WithinBalance(amount, available) {
		return fmt.Errorf("%w: requested %s, available %s", shared.ErrOverpayment,
			amounts.Sprintf("%.2f", amount), amounts.Sprintf("%.2f", available))
	}
	return nil
}
