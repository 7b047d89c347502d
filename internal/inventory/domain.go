package inventory

import "time"

// TransactionType enumerates supported stock movements.
type TransactionType string

const (
	// TransactionStockIn is a manual inbound movement.
	TransactionStockIn TransactionType = "stock_in"
	// TransactionStockOut is a manual outbound movement.
	TransactionStockOut TransactionType = "stock_out"
	// TransactionTransfer moves stock between locations.
	TransactionTransfer TransactionType = "transfer"
	// TransactionAdjustment is a signed correction.
	TransactionAdjustment TransactionType = "adjustment"
	// TransactionGRN is a receipt from a goods receipt note.
	TransactionGRN TransactionType = "grn"
	// TransactionSale is a deduction from an invoice.
	TransactionSale TransactionType = "sale"
	// TransactionDamage writes off damaged units.
	TransactionDamage TransactionType = "damage"
	// TransactionLoss writes off lost units.
	TransactionLoss TransactionType = "loss"
	// TransactionExpiry writes off expired units.
	TransactionExpiry TransactionType = "expiry"
)

// Inbound reports whether the type increases on-hand quantity.
func (t TransactionType) Inbound() bool {
	switch t {
	case TransactionStockIn, TransactionGRN:
		return true
	}
	return false
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionStockIn, TransactionStockOut, TransactionTransfer,
		TransactionAdjustment, TransactionGRN, TransactionSale,
		TransactionDamage, TransactionLoss, TransactionExpiry:
		return true
	}
	return false
}

// Stock is the on-hand quantity of one product at one location.
type Stock struct {
	ID           int64   `json:"id"`
	ProductID    int64   `json:"product_id"`
	LocationID   int64   `json:"location_id"`
	Quantity     float64 `json:"quantity"`
	MinLevel     float64 `json:"min_level"`
	ReorderLevel float64 `json:"reorder_level"`
}

// Batch is a lot of a batch-tracked product.
type Batch struct {
	ID          int64      `json:"id"`
	StockID     int64      `json:"stock_id"`
	BatchNumber string     `json:"batch_number"`
	Quantity    float64    `json:"quantity"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

// Serial is one serial-tracked unit.
type Serial struct {
	ID           int64  `json:"id"`
	StockID      int64  `json:"stock_id"`
	SerialNumber string `json:"serial_number"`
	Status       string `json:"status"`
}

// Transaction is one immutable stock ledger row. Quantity is a
// magnitude; balances record the on-hand quantity around the mutation.
type Transaction struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"product_id"`
	Type            TransactionType `json:"transaction_type"`
	Quantity        float64         `json:"quantity"`
	FromLocationID  *int64          `json:"from_location_id,omitempty"`
	ToLocationID    *int64          `json:"to_location_id,omitempty"`
	BalanceBefore   float64         `json:"balance_before"`
	BalanceAfter    float64         `json:"balance_after"`
	ReferenceType   string          `json:"reference_type,omitempty"`
	ReferenceID     int64           `json:"reference_id,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	PerformedBy     int64           `json:"performed_by"`
	TransactionDate time.Time       `json:"transaction_date"`
}

// Reference identifies the document that caused a movement.
type Reference struct {
	Type   string
	ID     int64
	Number string
}

// ReceiptLine is one inbound line of a receipt.
type ReceiptLine struct {
	ProductID int64
	Quantity  float64
	Batch     *Batch
	Serials   []string
}

// DeductionLine is one outbound line of a deduction.
type DeductionLine struct {
	ProductID int64
	Quantity  float64
}
