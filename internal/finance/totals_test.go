package finance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeTotalsEmpty(t *testing.T) {
	got := ComputeTotals(nil, 0, nil)
	require.Equal(t, Totals{}, got)
}

func TestLineTotalAppliesItemDiscount(t *testing.T) {
	line := LineItem{Quantity: 2, UnitPrice: 100, DiscountPercent: 10}
	require.InDelta(t, 180, line.LineTotal(), 1e-9)

	require.InDelta(t, 0, LineItem{}.LineTotal(), 1e-9)
}

func TestComputeTotalsSingleLineWithTax(t *testing.T) {
	items := []LineItem{{Quantity: 2, UnitPrice: 100, DiscountPercent: 10}}
	got := ComputeTotals(items, 0, []float64{15})

	require.InDelta(t, 180, got.Subtotal, 1e-9)
	require.InDelta(t, 0, got.DiscountAmount, 1e-9)
	require.InDelta(t, 27, got.TaxAmount, 1e-9)
	require.InDelta(t, 207, got.Total, 1e-9)
}

func TestComputeTotalsTaxesNotCompounded(t *testing.T) {
	items := []LineItem{{Quantity: 1, UnitPrice: 1000}}
	got := ComputeTotals(items, 10, []float64{10, 5})

	// Both taxes apply to the discounted subtotal of 900 independently.
	require.InDelta(t, 1000, got.Subtotal, 1e-9)
	require.InDelta(t, 100, got.DiscountAmount, 1e-9)
	require.InDelta(t, 135, got.TaxAmount, 1e-9)
	require.InDelta(t, 1035, got.Total, 1e-9)
}

func TestComputeTotalsDeterministic(t *testing.T) {
	items := []LineItem{
		{Quantity: 3, UnitPrice: 19.99, DiscountPercent: 5},
		{Quantity: 1, UnitPrice: 250},
	}
	first := ComputeTotals(items, 2.5, []float64{7.7})
	second := ComputeTotals(items, 2.5, []float64{7.7})
	require.Equal(t, first, second)
}

func TestSettle(t *testing.T) {
	t.Run("unpaid", func(t *testing.T) {
		s := Settle(100, nil)
		require.Equal(t, SettlementUnpaid, s.Status)
		require.Equal(t, 100.0, s.Balance)
	})

	t.Run("partial", func(t *testing.T) {
		s := Settle(100, []float64{40})
		require.Equal(t, SettlementPartial, s.Status)
		require.Equal(t, 60.0, s.Balance)
	})

	t.Run("paid exactly", func(t *testing.T) {
		s := Settle(100, []float64{60, 40})
		require.Equal(t, SettlementPaid, s.Status)
		require.Equal(t, 0.0, s.Balance)
	})

	t.Run("paid within tolerance", func(t *testing.T) {
		s := Settle(100, []float64{99.995})
		require.Equal(t, SettlementPaid, s.Status)
		require.Equal(t, 0.0, s.Balance)
	})
}

func TestWithinBalance(t *testing.T) {
	require.True(t, WithinBalance(100.00, 100))
	require.True(t, WithinBalance(100.01, 100))
	require.False(t, WithinBalance(100.02, 100))
}
