package invoices

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/sales/quotations"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	_ "github.com/meridian-erp/meridian-erp/internal/testing/guard"
)

type memoryRepo struct {
	nextInvoiceID int64
	nextPaymentID int64
	invoices      map[int64]*Invoice
	payments      map[int64]*Payment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextInvoiceID: 1, nextPaymentID: 1, invoices: map[int64]*Invoice{}, payments: map[int64]*Payment{}}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memoryRepo) List(_ context.Context, _ ListFilter) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(_ context.Context, inv Invoice) (int64, error) {
	inv.ID = m.nextInvoiceID
	m.nextInvoiceID++
	m.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.invoices[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.invoices, id)
	return nil
}

func (m *memoryRepo) LinkQuotation(_ context.Context, id, quotationID int64) error {
	inv, ok := m.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.QuotationID = &quotationID
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	inv, ok := m.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.Status = status
	return nil
}

func (m *memoryRepo) UpdateApprovalStatus(_ context.Context, id int64, status ApprovalStatus) error {
	inv, ok := m.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	if inv.ApprovalStatus != ApprovalPending {
		return shared.ErrInvalidState
	}
	inv.ApprovalStatus = status
	return nil
}

func (m *memoryRepo) UpdateBalances(_ context.Context, id int64, paid, balance float64, status Status) error {
	inv, ok := m.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.PaidAmount = paid
	inv.BalanceAmount = balance
	inv.Status = status
	return nil
}

func (m *memoryRepo) MarkOverdue(_ context.Context, asOf time.Time) (int64, error) {
	var n int64
	for _, inv := range m.invoices {
		if (inv.Status == StatusSent || inv.Status == StatusPartial) && inv.DueDate.Before(asOf) && inv.BalanceAmount > 0 {
			inv.Status = StatusOverdue
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) GetPayment(_ context.Context, id int64) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryRepo) ListPayments(_ context.Context, invoiceID int64) ([]Payment, error) {
	var out []Payment
	for id := int64(1); id < m.nextPaymentID; id++ {
		if p, ok := m.payments[id]; ok && p.InvoiceID == invoiceID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryRepo) CreatePayment(_ context.Context, p Payment) (int64, error) {
	p.ID = m.nextPaymentID
	m.nextPaymentID++
	m.payments[p.ID] = &p
	return p.ID, nil
}

func (m *memoryRepo) UpdatePayment(_ context.Context, id int64, p Payment) error {
	if _, ok := m.payments[id]; !ok {
		return shared.ErrNotFound
	}
	p.ID = id
	m.payments[id] = &p
	return nil
}

func (m *memoryRepo) DeletePayment(_ context.Context, id int64) error {
	if _, ok := m.payments[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.payments, id)
	return nil
}

type staticRates map[int64]float64

func (s staticRates) ResolveRates(_ context.Context, ids []int64) ([]float64, error) {
	out := make([]float64, 0, len(ids))
	for _, id := range ids {
		rate, ok := s[id]
		if !ok {
			return nil, shared.ErrNotFound
		}
		out = append(out, rate)
	}
	return out, nil
}

type fakeStock struct {
	deductions [][]inventory.DeductionLine
	locations  []int64
	err        error
}

func (f *fakeStock) Deduct(_ context.Context, locationID int64, lines []inventory.DeductionLine, _ inventory.Reference, _ int64) ([]inventory.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deductions = append(f.deductions, lines)
	f.locations = append(f.locations, locationID)
	return nil, nil
}

type memoryCounter struct {
	counters map[string]int64
}

func (m *memoryCounter) NextValue(_ context.Context, docType, _ string) (int64, error) {
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[docType]++
	return m.counters[docType], nil
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, shared.AuditLog) error { return nil }

type nopApprovals struct{}

func (nopApprovals) Record(context.Context, shared.ApprovalLog) error { return nil }

func newTestService(repo Repository, rates RateResolver, stock StockDeductor) *Service {
	return NewService(repo, sequence.NewAllocator(&memoryCounter{}), rates, stock,
		nopApprovals{}, nopAuditor{}, slog.New(slog.NewTextHandler(io.Discard, nil)), 1)
}

func testCreateRequest() CreateInvoiceRequest {
	return CreateInvoiceRequest{
		CustomerID:  1,
		LocationID:  1,
		InvoiceDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		TaxIDs:      []int64{1},
		Items: []CreateLineRequest{
			{ProductID: 10, Quantity: 2, UnitPrice: 100, DiscountPercent: 10},
		},
	}
}

func TestCreateDeductsStock(t *testing.T) {
	stock := &fakeStock{}
	svc := newTestService(newMemoryRepo(), staticRates{1: 15}, stock)

	inv, err := svc.Create(context.Background(), testCreateRequest(), 1)
	require.NoError(t, err)
	require.Equal(t, "INV-00001", inv.Number)
	require.Equal(t, 207.0, inv.Total)
	require.Equal(t, 207.0, inv.BalanceAmount)
	require.Len(t, stock.deductions, 1)
	require.Equal(t, 2.0, stock.deductions[0][0].Quantity)
}

func TestCreateRemovesInvoiceWhenDeductionFails(t *testing.T) {
	repo := newMemoryRepo()
	stock := &fakeStock{err: shared.ErrInsufficientStock}
	svc := newTestService(repo, staticRates{1: 15}, stock)

	_, err := svc.Create(context.Background(), testCreateRequest(), 1)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Empty(t, repo.invoices)
}

func TestApprovalIsOneShot(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{1: 15}, &fakeStock{})

	inv, err := svc.Create(context.Background(), testCreateRequest(), 1)
	require.NoError(t, err)

	inv, err = svc.Approve(context.Background(), inv.ID, 2)
	require.NoError(t, err)
	require.Equal(t, ApprovalApproved, inv.ApprovalStatus)

	_, err = svc.RejectApproval(context.Background(), inv.ID, 2)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRecordPaymentSettlesInvoice(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{}, &fakeStock{})

	req := testCreateRequest()
	req.TaxIDs = nil
	req.Items = []CreateLineRequest{{ProductID: 10, Quantity: 1, UnitPrice: 100}}
	inv, err := svc.Create(context.Background(), req, 1)
	require.NoError(t, err)
	require.Equal(t, 100.0, inv.Total)

	_, err = svc.RecordPayment(context.Background(), inv.ID, CreatePaymentRequest{Amount: 40, Method: "cash"}, 1)
	require.NoError(t, err)

	inv, err = svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPartial, inv.Status)
	require.Equal(t, 40.0, inv.PaidAmount)
	require.Equal(t, 60.0, inv.BalanceAmount)

	p, err := svc.RecordPayment(context.Background(), inv.ID, CreatePaymentRequest{Amount: 60, Method: "bank"}, 1)
	require.NoError(t, err)
	require.Equal(t, "PAY-00002", p.Number)

	inv, err = svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)
	require.Equal(t, 0.0, inv.BalanceAmount)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{}, &fakeStock{})

	req := testCreateRequest()
	req.TaxIDs = nil
	req.Items = []CreateLineRequest{{ProductID: 10, Quantity: 1, UnitPrice: 100}}
	inv, err := svc.Create(context.Background(), req, 1)
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), inv.ID, CreatePaymentRequest{Amount: 100.02, Method: "cash"}, 1)
	require.ErrorIs(t, err, shared.ErrOverpayment)

	_, err = svc.RecordPayment(context.Background(), inv.ID, CreatePaymentRequest{Amount: 100.00, Method: "cash"}, 1)
	require.NoError(t, err)

	inv, err = svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)
	require.Equal(t, 0.0, inv.BalanceAmount)
}

func TestPendingPaymentsDoNotCount(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{}, &fakeStock{})

	req := testCreateRequest()
	req.TaxIDs = nil
	req.Items = []CreateLineRequest{{ProductID: 10, Quantity: 1, UnitPrice: 100}}
	inv, err := svc.Create(context.Background(), req, 1)
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), inv.ID, CreatePaymentRequest{Amount: 80, Method: "cash", Status: "PENDING"}, 1)
	require.NoError(t, err)

	inv, err = svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, inv.PaidAmount)
	require.NotEqual(t, StatusPartial, inv.Status)
}

func TestDeleteMiddlePaymentRecomputesFromRemaining(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{}, &fakeStock{})

	req := testCreateRequest()
	req.TaxIDs = nil
	req.Items = []CreateLineRequest{{ProductID: 10, Quantity: 1, UnitPrice: 100}}
	inv, err := svc.Create(context.Background(), req, 1)
	require.NoError(t, err)

	var ids []int64
	for _, amount := range []float64{30, 30, 40} {
		p, err := svc.RecordPayment(context.Background(), inv.ID, CreatePaymentRequest{Amount: amount, Method: "cash"}, 1)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	inv, err = svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)

	require.NoError(t, svc.DeletePayment(context.Background(), ids[1], 1))

	inv, err = svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, 70.0, inv.PaidAmount)
	require.Equal(t, 30.0, inv.BalanceAmount)
	require.Equal(t, StatusPartial, inv.Status)
}

func TestUpdatePaymentExcludesOwnAmount(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{}, &fakeStock{})

	req := testCreateRequest()
	req.TaxIDs = nil
	req.Items = []CreateLineRequest{{ProductID: 10, Quantity: 1, UnitPrice: 100}}
	inv, err := svc.Create(context.Background(), req, 1)
	require.NoError(t, err)

	p, err := svc.RecordPayment(context.Background(), inv.ID, CreatePaymentRequest{Amount: 60, Method: "cash"}, 1)
	require.NoError(t, err)

	// raising its own amount to the full total is fine
	amount := 100.0
	_, err = svc.UpdatePayment(context.Background(), p.ID, UpdatePaymentRequest{Amount: &amount}, 1)
	require.NoError(t, err)

	inv, err = svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)

	over := 100.5
	_, err = svc.UpdatePayment(context.Background(), p.ID, UpdatePaymentRequest{Amount: &over}, 1)
	require.ErrorIs(t, err, shared.ErrOverpayment)
}

func TestMarkOverdue(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, staticRates{}, &fakeStock{})

	req := testCreateRequest()
	req.TaxIDs = nil
	req.Items = []CreateLineRequest{{ProductID: 10, Quantity: 1, UnitPrice: 100}}
	inv, err := svc.Create(context.Background(), req, 1)
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), inv.ID, 1)
	require.NoError(t, err)

	n, err := svc.MarkOverdue(context.Background(), req.DueDate.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	inv, err = svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, inv.Status)
}

func TestCancelBlockedWithPayments(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{}, &fakeStock{})

	req := testCreateRequest()
	req.TaxIDs = nil
	req.Items = []CreateLineRequest{{ProductID: 10, Quantity: 1, UnitPrice: 100}}
	inv, err := svc.Create(context.Background(), req, 1)
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), inv.ID, CreatePaymentRequest{Amount: 50, Method: "cash"}, 1)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), inv.ID, 1)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCreateFromQuotationLinksBack(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, staticRates{1: 15}, &fakeStock{})

	id, number, err := svc.CreateFromQuotation(context.Background(), quotationFixture())
	require.NoError(t, err)
	require.Equal(t, "INV-00001", number)

	inv, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, inv.QuotationID)
	require.Equal(t, int64(42), *inv.QuotationID)
	require.Equal(t, 207.0, inv.Total)
}

func TestCreateFromQuotationDeductsAtConfiguredLocation(t *testing.T) {
	stock := &fakeStock{}
	svc := NewService(newMemoryRepo(), sequence.NewAllocator(&memoryCounter{}), staticRates{1: 15}, stock,
		nopApprovals{}, nopAuditor{}, slog.New(slog.NewTextHandler(io.Discard, nil)), 7)

	_, _, err := svc.CreateFromQuotation(context.Background(), quotationFixture())
	require.NoError(t, err)
	require.Equal(t, []int64{7}, stock.locations)
}

func TestCreateFromQuotationPropagatesStockFailure(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{1: 15}, &fakeStock{err: errors.New("boom")})

	_, _, err := svc.CreateFromQuotation(context.Background(), quotationFixture())
	require.Error(t, err)
}

func quotationFixture() quotations.ConvertedQuotation {
	return quotations.ConvertedQuotation{
		QuotationID:     42,
		QuotationNumber: "QT-0042",
		CustomerID:      1,
		TaxIDs:          []int64{1},
		CreatedBy:       1,
		Items: []quotations.ConvertedItem{
			{ProductID: 10, Quantity: 2, UnitPrice: 100, DiscountPercent: 10},
		},
	}
}
