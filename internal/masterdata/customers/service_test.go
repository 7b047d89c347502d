package customers

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	mdshared "github.com/meridian-erp/meridian-erp/internal/masterdata/shared"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]Customer
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, items: map[int64]Customer{}}
}

func (m *memoryRepo) List(_ context.Context, _ mdshared.ListFilters) ([]Customer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Customer, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return Customer{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) Create(_ context.Context, rec Customer) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.nextID
	m.nextID++
	m.items[rec.ID] = rec
	return rec, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, rec Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	rec.ID = id
	m.items[id] = rec
	return nil
}

func (m *memoryRepo) SetActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.IsActive = active
	m.items[id] = c
	return nil
}

type memoryCounter struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (m *memoryCounter) NextValue(_ context.Context, docType, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[docType]++
	return m.counters[docType], nil
}

func TestCreateAssignsSequentialCodes(t *testing.T) {
	svc := NewService(newMemoryRepo(), sequence.NewAllocator(&memoryCounter{}))

	first, err := svc.Create(context.Background(), Customer{Name: "Acme Traders"})
	require.NoError(t, err)
	require.Equal(t, "CUST-0001", first.Code)
	require.True(t, first.IsActive)

	second, err := svc.Create(context.Background(), Customer{Name: "Borealis Ltd"})
	require.NoError(t, err)
	require.Equal(t, "CUST-0002", second.Code)
}

func TestCreateRejectsEmptyName(t *testing.T) {
	svc := NewService(newMemoryRepo(), sequence.NewAllocator(&memoryCounter{}))

	_, err := svc.Create(context.Background(), Customer{Name: "   "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeactivateKeepsRecord(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, sequence.NewAllocator(&memoryCounter{}))

	c, err := svc.Create(context.Background(), Customer{Name: "Acme Traders"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), c.ID))

	got, err := svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.Equal(t, "CUST-0001", got.Code)
}
