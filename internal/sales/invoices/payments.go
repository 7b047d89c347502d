package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-erp/meridian-erp/internal/finance"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// amounts formats monetary values in error messages with thousands
// separators so "requested 10,000.02" reads unambiguously.
var amounts = message.NewPrinter(language.English)

func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, invoiceID)
}

// RecordPayment creates a payment and reconciles the invoice balance.
// Amounts beyond the open balance (0.01 tolerance) are rejected.
func (s *Service) RecordPayment(ctx context.Context, invoiceID int64, req CreatePaymentRequest, createdBy int64) (*Payment, error) {
	inv, err := s.repo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: invoice is cancelled", shared.ErrInvalidState)
	}

	status := PaymentCompleted
	if req.Status != "" {
		status = PaymentStatus(req.Status)
	}
	if err := validPaymentStatus(status); err != nil {
		return nil, err
	}

	if status.Counted() {
		if err := s.checkOverpayment(ctx, inv, req.Amount, 0); err != nil {
			return nil, err
		}
	}

	number, err := s.allocator.Allocate(ctx, sequence.DocPayment)
	if err != nil {
		return nil, fmt.Errorf("allocate payment number: %w", err)
	}
	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	payment := Payment{
		Number:    number,
		InvoiceID: invoiceID,
		Amount:    finance.Round2(req.Amount),
		Method:    req.Method,
		Status:    status,
		PaidAt:    paidAt,
		Notes:     req.Notes,
	}
	id, err := s.repo.CreatePayment(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	if err := s.reconcile(ctx, invoiceID); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: createdBy, Action: "payment.create", Entity: "payment", EntityID: id,
		Meta: map[string]interface{}{"invoice_id": invoiceID, "amount": payment.Amount},
	})
	s.logger.Info("payment recorded",
		slog.Int64("invoice_id", invoiceID),
		slog.String("number", number),
		slog.Float64("amount", payment.Amount))
	return s.repo.GetPayment(ctx, id)
}

// UpdatePayment edits a payment and re-reconciles. The overpayment
// check excludes the payment's own previous amount.
func (s *Service) UpdatePayment(ctx context.Context, paymentID int64, req UpdatePaymentRequest, updatedBy int64) (*Payment, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.Get(ctx, payment.InvoiceID)
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
	if req.Status != nil {
		next.Status = PaymentStatus(*req.Status)
		if err := validPaymentStatus(next.Status); err != nil {
			return nil, err
		}
	}
	if req.Notes != nil {
		next.Notes = *req.Notes
	}

	if next.Status.Counted() {
		var exclude float64
		if payment.Status.Counted() {
			exclude = payment.Amount
		}
		if err := s.checkOverpayment(ctx, inv, next.Amount, exclude); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdatePayment(ctx, paymentID, next); err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}
	if err := s.reconcile(ctx, payment.InvoiceID); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: updatedBy, Action: "payment.update", Entity: "payment", EntityID: paymentID,
	})
	return s.repo.GetPayment(ctx, paymentID)
}

// DeletePayment removes a payment and recomputes the balance from the
// remaining counted payments.
func (s *Service) DeletePayment(ctx context.Context, paymentID, deletedBy int64) error {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePayment(ctx, paymentID); err != nil {
		return err
	}
	if err := s.reconcile(ctx, payment.InvoiceID); err != nil {
		return err
	}
	s.audit.Record(ctx, shared.AuditLog{
		ActorID: deletedBy, Action: "payment.delete", Entity: "payment", EntityID: paymentID,
		Meta: map[string]interface{}{"invoice_id": payment.InvoiceID, "amount": payment.Amount},
	})
	return nil
}

// reconcile recomputes paid/balance/status from the full set of
// counted payments. It never reverses a single amount.
func (s *Service) reconcile(ctx context.Context, invoiceID int64) error {
	inv, err := s.repo.Get(ctx, invoiceID)
	if err != nil {
		return err
	}
	payments, err := s.repo.ListPayments(ctx, invoiceID)
	if err != nil {
		return err
	}

	var counted []float64
	for _, p := range payments {
		if p.Status.Counted() {
			counted = append(counted, p.Amount)
		}
	}
	settlement := finance.Settle(inv.Total, counted)

	status := inv.Status
	switch settlement.Status {
	case finance.SettlementPaid:
		status = StatusPaid
	case finance.SettlementPartial:
		status = StatusPartial
	case finance.SettlementUnpaid:
		if inv.Status == StatusPaid || inv.Status == StatusPartial {
			status = StatusSent
		}
	}

	if err := s.repo.UpdateBalances(ctx, invoiceID, settlement.Paid, settlement.Balance, status); err != nil {
		return fmt.Errorf("update invoice balance: %w", err)
	}
	return nil
}

// checkOverpayment verifies the candidate amount against the balance
// computed from counted payments, excluding the amount being replaced.
func (s *Service) checkOverpayment(ctx context.Context, inv *Invoice, amount, exclude float64) error {
	payments, err := s.repo.ListPayments(ctx, inv.ID)
	if err != nil {
		return err
	}
	var paid float64
	for _, p := range payments {
		if p.Status.Counted() {
			paid += p.Amount
		}
	}
	available := inv.Total - (paid - exclude)
	if !finance.WithinBalance(amount, available) {
		return fmt.Errorf("%w: requested %s, available %s", shared.ErrOverpayment,
			amounts.Sprintf("%.2f", amount), amounts.Sprintf("%.2f", available))
	}
	return nil
}

func validPaymentStatus(s PaymentStatus) error {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return nil
	}
	return fmt.Errorf("%w: unknown payment status %q", shared.ErrValidation, s)
}
