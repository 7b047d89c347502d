package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{counters: make(map[string]int64)}
}

func (s *memoryCounterStore) NextValue(ctx context.Context, docType string, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[docType]++
	return s.counters[docType], nil
}

func TestAllocateFormatsPerType(t *testing.T) {
	alloc := NewAllocator(newMemoryCounterStore())
	ctx := context.Background()

	n, err := alloc.Allocate(ctx, DocQuotation)
	require.NoError(t, err)
	require.Equal(t, "QT-0001", n)

	n, err = alloc.Allocate(ctx, DocInvoice)
	require.NoError(t, err)
	require.Equal(t, "INV-00001", n)

	n, err = alloc.Allocate(ctx, DocInvoice)
	require.NoError(t, err)
	require.Equal(t, "INV-00002", n)
}

func TestAllocateUnknownType(t *testing.T) {
	alloc := NewAllocator(newMemoryCounterStore())
	_, err := alloc.Allocate(context.Background(), DocType("LUNCH_ORDER"))
	require.Error(t, err)
}

func TestAllocateDenseUnderConcurrency(t *testing.T) {
	alloc := NewAllocator(newMemoryCounterStore())
	ctx := context.Background()

	const n = 100
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := alloc.Allocate(ctx, DocGRN)
			require.NoError(t, err)
			results <- num
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, n)
	for num := range results {
		require.False(t, seen[num], "duplicate number %s", num)
		seen[num] = true
	}
	// Dense: every value 1..n was issued exactly once.
	for i := int64(1); i <= n; i++ {
		require.True(t, seen[Format(DocGRN, i)])
	}
}
