package procurement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	_ "github.com/meridian-erp/meridian-erp/internal/testing/guard"
)

type memoryRepo struct {
	nextPOID      int64
	nextGRNID     int64
	nextItemID    int64
	nextPaymentID int64
	pos           map[int64]*PurchaseOrder
	grns          map[int64]*GRN
	payments      map[int64]*SupplierPayment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextPOID: 1, nextGRNID: 1, nextItemID: 1, nextPaymentID: 1,
		pos:      map[int64]*PurchaseOrder{},
		grns:     map[int64]*GRN{},
		payments: map[int64]*SupplierPayment{},
	}
}

func (m *memoryRepo) GetPO(_ context.Context, id int64) (*PurchaseOrder, error) {
	po, ok := m.pos[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *po
	cp.Items = append([]POItem(nil), po.Items...)
	return &cp, nil
}

func (m *memoryRepo) ListPOs(_ context.Context, _ POListFilter) ([]PurchaseOrder, int, error) {
	var out []PurchaseOrder
	for _, po := range m.pos {
		out = append(out, *po)
	}
	return out, len(out), nil
}

func (m *memoryRepo) CreatePO(_ context.Context, po PurchaseOrder) (int64, error) {
	po.ID = m.nextPOID
	m.nextPOID++
	for i := range po.Items {
		po.Items[i].ID = m.nextItemID
		po.Items[i].PurchaseOrderID = po.ID
		m.nextItemID++
	}
	m.pos[po.ID] = &po
	return po.ID, nil
}

func (m *memoryRepo) UpdatePOStatus(_ context.Context, id int64, status POStatus, _ map[string]interface{}) error {
	po, ok := m.pos[id]
	if !ok {
		return shared.ErrNotFound
	}
	po.Status = status
	return nil
}

func (m *memoryRepo) MarkPOConverted(_ context.Context, id, grnID int64) error {
	po, ok := m.pos[id]
	if !ok {
		return shared.ErrNotFound
	}
	if po.ConvertedToGRN {
		return shared.ErrConflict
	}
	po.ConvertedToGRN = true
	po.GRNID = &grnID
	po.Status = POConverted
	return nil
}

func (m *memoryRepo) DeletePO(_ context.Context, id int64) error {
	if _, ok := m.pos[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.pos, id)
	return nil
}

func (m *memoryRepo) GetGRN(_ context.Context, id int64) (*GRN, error) {
	grn, ok := m.grns[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *grn
	cp.Items = append([]GRNItem(nil), grn.Items...)
	return &cp, nil
}

func (m *memoryRepo) ListGRNs(_ context.Context, _ GRNListFilter) ([]GRN, int, error) {
	var out []GRN
	for _, grn := range m.grns {
		out = append(out, *grn)
	}
	return out, len(out), nil
}

func (m *memoryRepo) CreateGRN(_ context.Context, grn GRN) (int64, error) {
	grn.ID = m.nextGRNID
	m.nextGRNID++
	for i := range grn.Items {
		grn.Items[i].ID = m.nextItemID
		grn.Items[i].GRNID = grn.ID
		m.nextItemID++
	}
	m.grns[grn.ID] = &grn
	return grn.ID, nil
}

func (m *memoryRepo) UpdateGRN(_ context.Context, id int64, grn GRN) error {
	if _, ok := m.grns[id]; !ok {
		return shared.ErrNotFound
	}
	grn.ID = id
	for i := range grn.Items {
		if grn.Items[i].ID == 0 {
			grn.Items[i].ID = m.nextItemID
			m.nextItemID++
		}
		grn.Items[i].GRNID = id
	}
	m.grns[id] = &grn
	return nil
}

func (m *memoryRepo) UpdateGRNStatus(_ context.Context, id int64, status GRNStatus) error {
	grn, ok := m.grns[id]
	if !ok {
		return shared.ErrNotFound
	}
	grn.Status = status
	return nil
}

func (m *memoryRepo) UpdateGRNBalances(_ context.Context, id int64, paid, balance float64, status GRNPaymentStatus) error {
	grn, ok := m.grns[id]
	if !ok {
		return shared.ErrNotFound
	}
	grn.PaidAmount = paid
	grn.BalanceAmount = balance
	grn.PaymentStatus = status
	return nil
}

func (m *memoryRepo) MarkGRNCompleted(_ context.Context, id int64) error {
	grn, ok := m.grns[id]
	if !ok {
		return shared.ErrNotFound
	}
	if grn.StockUpdated {
		return shared.ErrConflict
	}
	grn.Status = GRNCompleted
	grn.StockUpdated = true
	return nil
}

func (m *memoryRepo) DeleteGRN(_ context.Context, id int64) error {
	if _, ok := m.grns[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.grns, id)
	return nil
}

func (m *memoryRepo) GetSupplierPayment(_ context.Context, id int64) (*SupplierPayment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryRepo) ListSupplierPayments(_ context.Context, grnID int64) ([]SupplierPayment, error) {
	var out []SupplierPayment
	for _, p := range m.payments {
		if p.GRNID == grnID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryRepo) CreateSupplierPayment(_ context.Context, p SupplierPayment) (int64, error) {
	p.ID = m.nextPaymentID
	m.nextPaymentID++
	m.payments[p.ID] = &p
	return p.ID, nil
}

func (m *memoryRepo) UpdateSupplierPayment(_ context.Context, id int64, p SupplierPayment) error {
	if _, ok := m.payments[id]; !ok {
		return shared.ErrNotFound
	}
	p.ID = id
	m.payments[id] = &p
	return nil
}

func (m *memoryRepo) UpdateSupplierPaymentStatus(_ context.Context, id int64, status SupplierPaymentStatus, paidAt *time.Time) error {
	p, ok := m.payments[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Status = status
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	return nil
}

func (m *memoryRepo) DeleteSupplierPayment(_ context.Context, id int64) error {
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
	receipts [][]inventory.ReceiptLine
	err      error
}

func (f *fakeStock) Receive(_ context.Context, _ int64, lines []inventory.ReceiptLine, _ inventory.TransactionType, _ inventory.Reference, _ int64) ([]inventory.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.receipts = append(f.receipts, lines)
	return nil, nil
}

type memGuard struct {
	keys map[string]bool
}

func (g *memGuard) CheckAndInsert(_ context.Context, key string) error {
	if g.keys == nil {
		g.keys = map[string]bool{}
	}
	if g.keys[key] {
		return shared.ErrConflict
	}
	g.keys[key] = true
	return nil
}

func (g *memGuard) Delete(_ context.Context, key string) error {
	delete(g.keys, key)
	return nil
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

func newTestService(repo Repository, stock StockReceiver, guard CompletionGuard) *Service {
	return NewService(repo, sequence.NewAllocator(&memoryCounter{}), staticRates{1: 15}, stock, guard,
		nopApprovals{}, nopAuditor{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testCreatePORequest() CreatePORequest {
	return CreatePORequest{
		SupplierID:   1,
		OrderDate:    time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		ExpectedDate: time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC),
		TaxIDs:       []int64{1},
		Items: []CreatePOLineRequest{
			{ProductID: 10, Quantity: 2, UnitPrice: 100, DiscountPercent: 10},
		},
	}
}

func TestCreatePOComputesTotals(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})

	po, err := svc.CreatePO(context.Background(), testCreatePORequest(), 1)
	require.NoError(t, err)
	require.Equal(t, "PO-0001", po.Number)
	require.Equal(t, PODraft, po.Status)
	require.Equal(t, 180.0, po.Subtotal)
	require.Equal(t, 27.0, po.TaxAmount)
	require.Equal(t, 207.0, po.Total)
}

func TestCreatePORejectsInvertedDates(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})

	req := testCreatePORequest()
	req.ExpectedDate = req.OrderDate.AddDate(0, 0, -1)
	_, err := svc.CreatePO(context.Background(), req, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPOLifecycle(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})
	ctx := context.Background()

	po, err := svc.CreatePO(ctx, testCreatePORequest(), 1)
	require.NoError(t, err)

	po, err = svc.ApprovePO(ctx, po.ID, 2)
	require.NoError(t, err)
	require.Equal(t, POApproved, po.Status)

	po, err = svc.MarkPOSent(ctx, po.ID, 2)
	require.NoError(t, err)
	require.Equal(t, POSent, po.Status)

	po, err = svc.CompletePO(ctx, po.ID, 2)
	require.NoError(t, err)
	require.Equal(t, POCompleted, po.Status)
}

func TestApprovePORejectsNonDraft(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})
	ctx := context.Background()

	po, err := svc.CreatePO(ctx, testCreatePORequest(), 1)
	require.NoError(t, err)
	_, err = svc.ApprovePO(ctx, po.ID, 2)
	require.NoError(t, err)

	_, err = svc.ApprovePO(ctx, po.ID, 2)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDeletePODraftOnly(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})
	ctx := context.Background()

	po, err := svc.CreatePO(ctx, testCreatePORequest(), 1)
	require.NoError(t, err)
	_, err = svc.ApprovePO(ctx, po.ID, 2)
	require.NoError(t, err)

	err = svc.DeletePO(ctx, po.ID, 1)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func convertedGRN(t *testing.T, svc *Service) (*PurchaseOrder, *GRN) {
	t.Helper()
	ctx := context.Background()

	po, err := svc.CreatePO(ctx, testCreatePORequest(), 1)
	require.NoError(t, err)
	_, err = svc.ApprovePO(ctx, po.ID, 2)
	require.NoError(t, err)
	_, err = svc.MarkPOSent(ctx, po.ID, 2)
	require.NoError(t, err)

	grn, err := svc.ConvertPOToGRN(ctx, po.ID, ConvertPORequest{LocationID: 5}, 2)
	require.NoError(t, err)

	po, err = svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	return po, grn
}

func TestConvertPOCreatesDraftGRN(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})

	po, grn := convertedGRN(t, svc)
	require.Equal(t, "GRN-0001", grn.Number)
	require.Equal(t, GRNDraft, grn.Status)
	require.Equal(t, po.Total, grn.Total)
	require.Equal(t, po.Total, grn.BalanceAmount)
	require.Equal(t, GRNUnpaid, grn.PaymentStatus)
	require.True(t, po.ConvertedToGRN)
	require.Equal(t, POConverted, po.Status)

	require.Len(t, grn.Items, 1)
	require.Equal(t, 0.0, grn.Items[0].AcceptedQuantity)
	require.Equal(t, 2.0, grn.Items[0].ShortQuantity)
}

func TestConvertPOTwiceFails(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})

	po, _ := convertedGRN(t, svc)
	_, err := svc.ConvertPOToGRN(context.Background(), po.ID, ConvertPORequest{LocationID: 5}, 2)
	require.ErrorIs(t, err, ErrAlreadyConverted)
}

func inspectRequest(grn *GRN, accepted float64) InspectGRNRequest {
	return InspectGRNRequest{Lines: []InspectLineRequest{
		{ItemID: grn.Items[0].ID, AcceptedQuantity: accepted, QualityStatus: "PASSED", BatchNumber: "B-100"},
	}}
}

func TestInspectGRNRecomputesTotal(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})
	ctx := context.Background()

	_, grn := convertedGRN(t, svc)
	grn, err := svc.InspectGRN(ctx, grn.ID, inspectRequest(grn, 1.5), 2)
	require.NoError(t, err)
	require.Equal(t, GRNInspected, grn.Status)
	require.Equal(t, 1.5, grn.Items[0].AcceptedQuantity)
	require.Equal(t, 0.5, grn.Items[0].ShortQuantity)
	require.Equal(t, 150.0, grn.Total)
	require.Equal(t, 150.0, grn.BalanceAmount)
}

func TestInspectGRNRejectsOverAccept(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})

	_, grn := convertedGRN(t, svc)
	_, err := svc.InspectGRN(context.Background(), grn.ID, inspectRequest(grn, 3), 2)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func approvedGRN(t *testing.T, svc *Service) *GRN {
	t.Helper()
	ctx := context.Background()

	_, grn := convertedGRN(t, svc)
	grn, err := svc.InspectGRN(ctx, grn.ID, inspectRequest(grn, 2), 2)
	require.NoError(t, err)
	grn, err = svc.ApproveGRN(ctx, grn.ID, 2)
	require.NoError(t, err)
	require.Equal(t, GRNApproved, grn.Status)
	return grn
}

func TestCompleteGRNBooksAcceptedStock(t *testing.T) {
	stock := &fakeStock{}
	svc := newTestService(newMemoryRepo(), stock, &memGuard{})
	ctx := context.Background()

	grn := approvedGRN(t, svc)
	grn, err := svc.CompleteGRN(ctx, grn.ID, 2)
	require.NoError(t, err)
	require.Equal(t, GRNCompleted, grn.Status)
	require.True(t, grn.StockUpdated)

	require.Len(t, stock.receipts, 1)
	require.Len(t, stock.receipts[0], 1)
	require.Equal(t, int64(10), stock.receipts[0][0].ProductID)
	require.Equal(t, 2.0, stock.receipts[0][0].Quantity)
	require.NotNil(t, stock.receipts[0][0].Batch)
	require.Equal(t, "B-100", stock.receipts[0][0].Batch.BatchNumber)
}

func TestCompleteGRNTwiceDoesNotDoubleCount(t *testing.T) {
	stock := &fakeStock{}
	svc := newTestService(newMemoryRepo(), stock, &memGuard{})
	ctx := context.Background()

	grn := approvedGRN(t, svc)
	_, err := svc.CompleteGRN(ctx, grn.ID, 2)
	require.NoError(t, err)

	_, err = svc.CompleteGRN(ctx, grn.ID, 2)
	require.Error(t, err)
	require.Len(t, stock.receipts, 1)
}

func TestCompleteGRNReleasesGuardOnStockFailure(t *testing.T) {
	stock := &fakeStock{err: errors.New("stock unavailable")}
	guard := &memGuard{}
	svc := newTestService(newMemoryRepo(), stock, guard)
	ctx := context.Background()

	grn := approvedGRN(t, svc)
	_, err := svc.CompleteGRN(ctx, grn.ID, 2)
	require.Error(t, err)

	got, err := svc.GetGRN(ctx, grn.ID)
	require.NoError(t, err)
	require.False(t, got.StockUpdated)
	require.Equal(t, GRNApproved, got.Status)

	stock.err = nil
	got, err = svc.CompleteGRN(ctx, grn.ID, 2)
	require.NoError(t, err)
	require.True(t, got.StockUpdated)
}

func TestSupplierPaymentReconciliation(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})
	ctx := context.Background()

	grn := approvedGRN(t, svc)

	p, err := svc.CreateSupplierPayment(ctx, grn.ID, CreateSupplierPaymentRequest{Amount: 120, Method: "BANK"}, 1)
	require.NoError(t, err)
	require.Equal(t, "SPAY-00001", p.Number)
	require.Equal(t, SupplierPaymentDraft, p.Status)

	got, err := svc.GetGRN(ctx, grn.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, got.PaidAmount)
	require.Equal(t, GRNUnpaid, got.PaymentStatus)

	p, err = svc.ApproveSupplierPayment(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Equal(t, SupplierPaymentApproved, p.Status)

	got, err = svc.GetGRN(ctx, grn.ID)
	require.NoError(t, err)
	require.Equal(t, 120.0, got.PaidAmount)
	require.Equal(t, 80.0, got.BalanceAmount)
	require.Equal(t, GRNPartial, got.PaymentStatus)

	p, err = svc.MarkSupplierPaymentPaid(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Equal(t, SupplierPaymentPaid, p.Status)
	require.NotNil(t, p.PaidAt)

	got, err = svc.GetGRN(ctx, grn.ID)
	require.NoError(t, err)
	require.Equal(t, 120.0, got.PaidAmount)
	require.Equal(t, GRNPartial, got.PaymentStatus)

	p2, err := svc.CreateSupplierPayment(ctx, grn.ID, CreateSupplierPaymentRequest{Amount: 80, Method: "BANK"}, 1)
	require.NoError(t, err)
	_, err = svc.ApproveSupplierPayment(ctx, p2.ID, 2)
	require.NoError(t, err)

	got, err = svc.GetGRN(ctx, grn.ID)
	require.NoError(t, err)
	require.Equal(t, 200.0, got.PaidAmount)
	require.Equal(t, 0.0, got.BalanceAmount)
	require.Equal(t, GRNPaid, got.PaymentStatus)
}

func TestSupplierPaymentRejectsOverpayment(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})
	ctx := context.Background()

	grn := approvedGRN(t, svc)
	_, err := svc.CreateSupplierPayment(ctx, grn.ID, CreateSupplierPaymentRequest{Amount: 200.02, Method: "BANK"}, 1)
	require.ErrorIs(t, err, shared.ErrOverpayment)
}

func TestDeleteDraftSupplierPaymentReconciles(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})
	ctx := context.Background()

	grn := approvedGRN(t, svc)
	p, err := svc.CreateSupplierPayment(ctx, grn.ID, CreateSupplierPaymentRequest{Amount: 50, Method: "CASH"}, 1)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSupplierPayment(ctx, p.ID, 1))
	_, err = svc.GetSupplierPayment(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApprovedSupplierPaymentCannotBeEdited(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeStock{}, &memGuard{})
	ctx := context.Background()

	grn := approvedGRN(t, svc)
	p, err := svc.CreateSupplierPayment(ctx, grn.ID, CreateSupplierPaymentRequest{Amount: 50, Method: "CASH"}, 1)
	require.NoError(t, err)
	_, err = svc.ApproveSupplierPayment(ctx, p.ID, 2)
	require.NoError(t, err)

	amount := 60.0
	_, err = svc.UpdateSupplierPayment(ctx, p.ID, UpdateSupplierPaymentRequest{Amount: &amount}, 1)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	err = svc.DeleteSupplierPayment(ctx, p.ID, 1)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}
