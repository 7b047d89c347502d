// Package sequence issues unique, monotonically increasing document numbers
// per document type, formatted as prefix plus a zero-padded counter.
package sequence

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// DocType identifies a numbered document series.
type DocType string

const (
	DocQuotation       DocType = "QUOTATION"
	DocInvoice         DocType = "INVOICE"
	DocPurchaseOrder   DocType = "PURCHASE_ORDER"
	DocGRN             DocType = "GRN"
	DocPayment         DocType = "PAYMENT"
	DocSupplierPayment DocType = "SUPPLIER_PAYMENT"
	DocCustomer        DocType = "CUSTOMER"
	DocSupplier        DocType = "SUPPLIER"
)

// format fixes prefix and pad width per document type. The width is part of
// the number format and must not change once documents exist.
type format struct {
	prefix string
	width  int
}

var formats = map[DocType]format{
	DocQuotation:       {prefix: "QT", width: 4},
	DocInvoice:         {prefix: "INV", width: 5},
	DocPurchaseOrder:   {prefix: "PO", width: 4},
	DocGRN:             {prefix: "GRN", width: 4},
	DocPayment:         {prefix: "PAY", width: 5},
	DocSupplierPayment: {prefix: "SPAY", width: 5},
	DocCustomer:        {prefix: "CUST", width: 4},
	DocSupplier:        {prefix: "SUP", width: 4},
}

// CounterStore persists per-type counters. NextValue must perform the
// increment-and-read as one atomic operation against the backing store.
type CounterStore interface {
	NextValue(ctx context.Context, docType string, prefix string) (int64, error)
}

// Allocator formats numbers from atomically allocated counters.
type Allocator struct {
	store CounterStore
}

// NewAllocator constructs an Allocator.
func NewAllocator(store CounterStore) *Allocator {
	return &Allocator{store: store}
}

// Allocate returns the next formatted number for the document type.
// Concurrent calls for the same type never observe the same counter value.
func (a *Allocator) Allocate(ctx context.Context, docType DocType) (string, error) {
	f, ok := formats[docType]
	if !ok {
		return "", fmt.Errorf("%w: unknown document type %q", shared.ErrValidation, docType)
	}
	n, err := a.store.NextValue(ctx, string(docType), f.prefix)
	if err != nil {
		return "", fmt.Errorf("sequence: next value for %s: %w", docType, err)
	}
	return Format(docType, n), nil
}

// Format renders a counter value in the series format for the document type.
func Format(docType DocType, n int64) string {
	f := formats[docType]
	return fmt.Sprintf("%s-%0*d", f.prefix, f.width, n)
}
