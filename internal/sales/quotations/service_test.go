package quotations

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	_ "github.com/meridian-erp/meridian-erp/internal/testing/guard"
)

type memoryRepo struct {
	nextID int64
	items  map[int64]*Quotation
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, items: map[int64]*Quotation{}}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Quotation, error) {
	q, ok := m.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *memoryRepo) List(_ context.Context, _ ListFilter) ([]Quotation, int, error) {
	var out []Quotation
	for _, q := range m.items {
		out = append(out, *q)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(_ context.Context, q Quotation) (int64, error) {
	q.ID = m.nextID
	m.nextID++
	m.items[q.ID] = &q
	return q.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, q Quotation) error {
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	q.ID = id
	m.items[id] = &q
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	q, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Status = status
	return nil
}

func (m *memoryRepo) MarkConverted(_ context.Context, id, invoiceID int64) error {
	q, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	if q.ConvertedToInvoice {
		return shared.ErrConflict
	}
	q.ConvertedToInvoice = true
	q.InvoiceID = &invoiceID
	return nil
}

func (m *memoryRepo) ExpireStale(_ context.Context, asOf time.Time) (int64, error) {
	var n int64
	for _, q := range m.items {
		if (q.Status == StatusSent || q.Status == StatusApproved) && q.ValidUntil.Before(asOf) {
			q.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.items, id)
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

type fakeInvoices struct {
	created []ConvertedQuotation
	err     error
}

func (f *fakeInvoices) CreateFromQuotation(_ context.Context, q ConvertedQuotation) (int64, string, error) {
	if f.err != nil {
		return 0, "", f.err
	}
	f.created = append(f.created, q)
	return int64(len(f.created)), "INV-00001", nil
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

func newTestService(repo Repository, rates RateResolver, invoices InvoiceCreator) *Service {
	return NewService(repo, sequence.NewAllocator(&memoryCounter{}), rates, invoices,
		nopAuditor{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testCreateRequest() CreateQuotationRequest {
	return CreateQuotationRequest{
		CustomerID: 1,
		QuoteDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		TaxIDs:     []int64{1},
		Items: []CreateLineRequest{
			{ProductID: 10, Quantity: 2, UnitPrice: 100, DiscountPercent: 10},
		},
	}
}

func TestCreateComputesTotals(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{1: 15}, &fakeInvoices{})

	q, err := svc.Create(context.Background(), testCreateRequest(), 1)
	require.NoError(t, err)
	require.Equal(t, "QT-0001", q.Number)
	require.Equal(t, StatusDraft, q.Status)
	require.Equal(t, 180.0, q.Subtotal)
	require.Equal(t, 27.0, q.TaxAmount)
	require.Equal(t, 207.0, q.Total)
	require.Equal(t, 180.0, q.Items[0].LineTotal)
}

func TestCreateRejectsUnknownTax(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{}, &fakeInvoices{})

	req := testCreateRequest()
	_, err := svc.Create(context.Background(), req, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateRejectsInvertedDates(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{1: 15}, &fakeInvoices{})

	req := testCreateRequest()
	req.ValidUntil = req.QuoteDate.AddDate(0, 0, -1)
	_, err := svc.Create(context.Background(), req, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestStatusTransitions(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{1: 15}, &fakeInvoices{})

	q, err := svc.Create(context.Background(), testCreateRequest(), 1)
	require.NoError(t, err)

	// approving a draft skips SENT and must fail
	_, err = svc.Approve(context.Background(), q.ID, 2)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	q, err = svc.Send(context.Background(), q.ID, 2)
	require.NoError(t, err)
	require.Equal(t, StatusSent, q.Status)

	q, err = svc.Approve(context.Background(), q.ID, 2)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, q.Status)

	_, err = svc.Reject(context.Background(), q.ID, 2)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	q, err = svc.MarkExpired(context.Background(), q.ID, 2)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, q.Status)
}

func TestUpdateRequiresDraft(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{1: 15}, &fakeInvoices{})

	q, err := svc.Create(context.Background(), testCreateRequest(), 1)
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), q.ID, 1)
	require.NoError(t, err)

	notes := "changed"
	_, err = svc.Update(context.Background(), q.ID, UpdateQuotationRequest{Notes: &notes}, 1)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestConvertToInvoiceOnce(t *testing.T) {
	invoices := &fakeInvoices{}
	svc := newTestService(newMemoryRepo(), staticRates{1: 15}, invoices)

	q, err := svc.Create(context.Background(), testCreateRequest(), 1)
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), q.ID, 1)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), q.ID, 1)
	require.NoError(t, err)

	q, err = svc.ConvertToInvoice(context.Background(), q.ID, 3)
	require.NoError(t, err)
	require.True(t, q.ConvertedToInvoice)
	require.NotNil(t, q.InvoiceID)
	require.Len(t, invoices.created, 1)
	require.Equal(t, q.Number, invoices.created[0].QuotationNumber)

	_, err = svc.ConvertToInvoice(context.Background(), q.ID, 3)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, invoices.created, 1)
}

func TestConvertRejectsDraft(t *testing.T) {
	svc := newTestService(newMemoryRepo(), staticRates{1: 15}, &fakeInvoices{})

	q, err := svc.Create(context.Background(), testCreateRequest(), 1)
	require.NoError(t, err)

	_, err = svc.ConvertToInvoice(context.Background(), q.ID, 1)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestConvertFromSentAllowed(t *testing.T) {
	invoices := &fakeInvoices{}
	svc := newTestService(newMemoryRepo(), staticRates{1: 15}, invoices)

	q, err := svc.Create(context.Background(), testCreateRequest(), 1)
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), q.ID, 1)
	require.NoError(t, err)

	q, err = svc.ConvertToInvoice(context.Background(), q.ID, 1)
	require.NoError(t, err)
	require.True(t, q.ConvertedToInvoice)
}
