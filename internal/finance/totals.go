// Package finance holds the pure monetary computations shared by the
// document modules: line and document totals, and payment settlement.
package finance

import "math"

// LineItem is the calculator's view of a document line.
type LineItem struct {
	Quantity        float64
	UnitPrice       float64
	DiscountPercent float64
}

// Totals is the result of ComputeTotals.
type Totals struct {
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	Total          float64
}

// LineTotal returns the tax-exclusive total for the line.
func (i LineItem) LineTotal() float64 {
	gross := i.Quantity * i.UnitPrice
	discount := gross * (i.DiscountPercent / 100)
	return gross - discount
}

// ComputeTotals converts line items, a document-level discount percent and
// the selected tax rates into document totals. Each tax applies
// independently to the discounted subtotal; taxes are not compounded on
// each other. Intermediate values stay unrounded; callers round at the
// persistence boundary with Round2.
func ComputeTotals(items []LineItem, discountPercent float64, taxRates []float64) Totals {
	var t Totals
	for _, item := range items {
		t.Subtotal += item.LineTotal()
	}
	t.DiscountAmount = t.Subtotal * (discountPercent / 100)
	finalSubtotal := t.Subtotal - t.DiscountAmount
	for _, rate := range taxRates {
		t.TaxAmount += finalSubtotal * (rate / 100)
	}
	t.Total = finalSubtotal + t.TaxAmount
	return t
}

// Round2 rounds a monetary value to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
