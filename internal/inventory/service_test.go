package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
	_ "github.com/meridian-erp/meridian-erp/internal/testing/guard"
)

type stockKey struct {
	productID  int64
	locationID int64
}

// memoryRepo mirrors the transactional contract of the SQL repository:
// deductions verify every line before mutating any, and each mutated
// line appends one ledger row.
type memoryRepo struct {
	mu     sync.Mutex
	stocks map[stockKey]*Stock
	ledger []Transaction
	nextID int64

	failReceiptAt map[int64]error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stocks: map[stockKey]*Stock{}, failReceiptAt: map[int64]error{}, nextID: 1}
}

func (m *memoryRepo) seed(productID, locationID int64, qty float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stocks[stockKey{productID, locationID}] = &Stock{
		ID: m.nextID, ProductID: productID, LocationID: locationID, Quantity: qty,
	}
	m.nextID++
}

func (m *memoryRepo) quantity(productID, locationID int64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.stocks[stockKey{productID, locationID}]; ok {
		return st.Quantity
	}
	return 0
}

func (m *memoryRepo) GetStock(_ context.Context, productID, locationID int64) (Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stocks[stockKey{productID, locationID}]
	if !ok {
		return Stock{}, shared.ErrNotFound
	}
	return *st, nil
}

func (m *memoryRepo) ListStock(_ context.Context, locationID int64, _, _ int) ([]Stock, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Stock
	for _, st := range m.stocks {
		if locationID == 0 || st.LocationID == locationID {
			out = append(out, *st)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) ListLowStock(_ context.Context) ([]Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Stock
	for _, st := range m.stocks {
		if st.ReorderLevel > 0 && st.Quantity <= st.ReorderLevel {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListTransactions(_ context.Context, productID int64, _ int) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Transaction
	for _, tx := range m.ledger {
		if tx.ProductID == productID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memoryRepo) ApplyReceipt(_ context.Context, locationID int64, lines []ReceiptLine, txType TransactionType, ref Reference, performedBy int64) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failReceiptAt[locationID]; ok {
		return nil, err
	}
	var out []Transaction
	for _, line := range lines {
		key := stockKey{line.ProductID, locationID}
		st, ok := m.stocks[key]
		if !ok {
			st = &Stock{ID: m.nextID, ProductID: line.ProductID, LocationID: locationID}
			m.nextID++
			m.stocks[key] = st
		}
		before := st.Quantity
		st.Quantity += line.Quantity
		out = append(out, m.appendLedger(Transaction{
			ProductID: line.ProductID, Type: txType, Quantity: line.Quantity,
			ToLocationID: &locationID, BalanceBefore: before, BalanceAfter: st.Quantity,
			ReferenceType: ref.Type, ReferenceNumber: ref.Number, PerformedBy: performedBy,
		}))
	}
	return out, nil
}

func (m *memoryRepo) ApplyDeduction(_ context.Context, locationID int64, lines []DeductionLine, txType TransactionType, ref Reference, performedBy int64) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	needed := map[stockKey]float64{}
	for _, line := range lines {
		key := stockKey{line.ProductID, locationID}
		needed[key] += line.Quantity
		st, ok := m.stocks[key]
		if !ok || st.Quantity < needed[key] {
			return nil, shared.ErrInsufficientStock
		}
	}
	var out []Transaction
	for _, line := range lines {
		st := m.stocks[stockKey{line.ProductID, locationID}]
		before := st.Quantity
		st.Quantity -= line.Quantity
		out = append(out, m.appendLedger(Transaction{
			ProductID: line.ProductID, Type: txType, Quantity: line.Quantity,
			FromLocationID: &locationID, BalanceBefore: before, BalanceAfter: st.Quantity,
			ReferenceType: ref.Type, ReferenceNumber: ref.Number, PerformedBy: performedBy,
		}))
	}
	return out, nil
}

func (m *memoryRepo) ApplyAdjustment(_ context.Context, productID, locationID int64, delta float64, txType TransactionType, ref Reference, performedBy int64) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stockKey{productID, locationID}
	st, ok := m.stocks[key]
	if !ok {
		st = &Stock{ID: m.nextID, ProductID: productID, LocationID: locationID}
		m.nextID++
		m.stocks[key] = st
	}
	before := st.Quantity
	if before+delta < 0 {
		return Transaction{}, shared.ErrInsufficientStock
	}
	st.Quantity += delta
	return m.appendLedger(Transaction{
		ProductID: productID, Type: txType, Quantity: delta,
		BalanceBefore: before, BalanceAfter: st.Quantity,
		ReferenceType: ref.Type, PerformedBy: performedBy,
	}), nil
}

func (m *memoryRepo) appendLedger(tx Transaction) Transaction {
	tx.ID = int64(len(m.ledger) + 1)
	m.ledger = append(m.ledger, tx)
	return tx
}

func newTestService(repo Repository) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDeductChecksAllLinesBeforeMutating(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 1, 5)
	svc := newTestService(repo)

	lines := []DeductionLine{
		{ProductID: 1, Quantity: 3},
		{ProductID: 1, Quantity: 3},
	}
	_, err := svc.Deduct(context.Background(), 1, lines, Reference{Type: "invoice", Number: "INV-00001"}, 7)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 5.0, repo.quantity(1, 1))
	require.Empty(t, repo.ledger)
}

func TestDeductWritesBalancesPerLine(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 1, 10)
	repo.seed(2, 1, 4)
	svc := newTestService(repo)

	txs, err := svc.Deduct(context.Background(), 1, []DeductionLine{
		{ProductID: 1, Quantity: 6},
		{ProductID: 2, Quantity: 4},
	}, Reference{Type: "invoice", Number: "INV-00002"}, 7)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	require.Equal(t, TransactionSale, txs[0].Type)
	require.Equal(t, 10.0, txs[0].BalanceBefore)
	require.Equal(t, 4.0, txs[0].BalanceAfter)
	require.Equal(t, 4.0, txs[1].BalanceBefore)
	require.Equal(t, 0.0, txs[1].BalanceAfter)
	require.Equal(t, "INV-00002", txs[0].ReferenceNumber)
}

func TestDeductChainsBalancesForRepeatedProduct(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 1, 5)
	svc := newTestService(repo)

	txs, err := svc.Deduct(context.Background(), 1, []DeductionLine{
		{ProductID: 1, Quantity: 3},
		{ProductID: 1, Quantity: 1},
	}, Reference{Type: "invoice", Number: "INV-00003"}, 7)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	require.Equal(t, 5.0, txs[0].BalanceBefore)
	require.Equal(t, 2.0, txs[0].BalanceAfter)
	require.Equal(t, 2.0, txs[1].BalanceBefore)
	require.Equal(t, 1.0, txs[1].BalanceAfter)
	require.Equal(t, 1.0, repo.quantity(1, 1))
}

func TestReceiveCreatesStockRow(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	txs, err := svc.Receive(context.Background(), 2, []ReceiptLine{
		{ProductID: 9, Quantity: 12},
	}, TransactionGRN, Reference{Type: "grn", Number: "GRN-0001"}, 3)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, 0.0, txs[0].BalanceBefore)
	require.Equal(t, 12.0, txs[0].BalanceAfter)
	require.Equal(t, 12.0, repo.quantity(9, 2))
}

func TestReceiveRejectsOutboundType(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Receive(context.Background(), 1, []ReceiptLine{{ProductID: 1, Quantity: 1}},
		TransactionSale, Reference{}, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAdjustRejectsNegativeResult(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 1, 3)
	svc := newTestService(repo)

	_, err := svc.Adjust(context.Background(), 1, 1, -5, TransactionAdjustment, "count", 1)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 3.0, repo.quantity(1, 1))
}

func TestAdjustRejectsNonAdjustmentType(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 1, 3)
	svc := newTestService(repo)

	_, err := svc.Adjust(context.Background(), 1, 1, -1, TransactionSale, "", 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTransferMovesQuantity(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 1, 10)
	svc := newTestService(repo)

	require.NoError(t, svc.Transfer(context.Background(), 1, 1, 2, 4, 5))
	require.Equal(t, 6.0, repo.quantity(1, 1))
	require.Equal(t, 4.0, repo.quantity(1, 2))
	require.Len(t, repo.ledger, 2)
	require.Equal(t, TransactionTransfer, repo.ledger[0].Type)
	require.Equal(t, TransactionTransfer, repo.ledger[1].Type)
}

func TestTransferRestoresSourceWhenDestinationFails(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 1, 10)
	repo.failReceiptAt[2] = errors.New("destination unavailable")
	svc := newTestService(repo)

	err := svc.Transfer(context.Background(), 1, 1, 2, 4, 5)
	require.Error(t, err)
	require.Equal(t, 10.0, repo.quantity(1, 1))
	require.Equal(t, 0.0, repo.quantity(1, 2))
}

func TestTransferRejectsSameLocation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	err := svc.Transfer(context.Background(), 1, 3, 3, 1, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTransferInsufficientSourceLeavesNoTrace(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 1, 2)
	svc := newTestService(repo)

	err := svc.Transfer(context.Background(), 1, 1, 2, 5, 1)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 2.0, repo.quantity(1, 1))
	require.Empty(t, repo.ledger)
}

func TestLowStockReportsReorderLevel(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 1, 2)
	repo.seed(2, 1, 50)
	repo.mu.Lock()
	repo.stocks[stockKey{1, 1}].ReorderLevel = 5
	repo.stocks[stockKey{2, 1}].ReorderLevel = 5
	repo.mu.Unlock()
	svc := newTestService(repo)

	low, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, int64(1), low[0].ProductID)
}
