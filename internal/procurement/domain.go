package procurement

import "time"

type POStatus string

const (
	PODraft     POStatus = "DRAFT"
	POApproved  POStatus = "APPROVED"
	POSent      POStatus = "SENT"
	POCompleted POStatus = "COMPLETED"
	POCancelled POStatus = "CANCELLED"
	POConverted POStatus = "CONVERTED"
)

type PurchaseOrder struct {
	ID              int64      `json:"id"`
	Number          string     `json:"number"`
	SupplierID      int64      `json:"supplier_id"`
	Status          POStatus   `json:"status"`
	OrderDate       time.Time  `json:"order_date"`
	ExpectedDate    time.Time  `json:"expected_date"`
	Subtotal        float64    `json:"subtotal"`
	DiscountPercent float64    `json:"discount_percent"`
	DiscountAmount  float64    `json:"discount_amount"`
	TaxAmount       float64    `json:"tax_amount"`
	Total           float64    `json:"total"`
	TaxIDs          []int64    `json:"tax_ids"`
	ConvertedToGRN  bool       `json:"converted_to_grn"`
	GRNID           *int64     `json:"grn_id,omitempty"`
	ApprovedBy      *int64     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	SentBy          *int64     `json:"sent_by,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedBy       int64      `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Items           []POItem   `json:"items,omitempty"`
}

type POItem struct {
	ID              int64   `json:"id"`
	PurchaseOrderID int64   `json:"purchase_order_id"`
	ProductID       int64   `json:"product_id"`
	Description     string  `json:"description,omitempty"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	LineTotal       float64 `json:"line_total"`
}

type GRNStatus string

const (
	GRNDraft     GRNStatus = "DRAFT"
	GRNInspected GRNStatus = "INSPECTED"
	GRNApproved  GRNStatus = "APPROVED"
	GRNCompleted GRNStatus = "COMPLETED"
	GRNRejected  GRNStatus = "REJECTED"
)

type GRNPaymentStatus string

const (
	GRNUnpaid  GRNPaymentStatus = "UNPAID"
	GRNPartial GRNPaymentStatus = "PARTIAL"
	GRNPaid    GRNPaymentStatus = "PAID"
)

// GRN is a goods receipt note. StockUpdated guards stock application:
// once set it is never cleared, so completion cannot double-count.
type GRN struct {
	ID              int64            `json:"id"`
	Number          string           `json:"number"`
	PurchaseOrderID *int64           `json:"purchase_order_id,omitempty"`
	SupplierID      int64            `json:"supplier_id"`
	LocationID      int64            `json:"location_id"`
	Status          GRNStatus        `json:"status"`
	ReceivedDate    time.Time        `json:"received_date"`
	Total           float64          `json:"total"`
	PaidAmount      float64          `json:"paid_amount"`
	BalanceAmount   float64          `json:"balance_amount"`
	PaymentStatus   GRNPaymentStatus `json:"payment_status"`
	StockUpdated    bool             `json:"stock_updated"`
	Notes           string           `json:"notes,omitempty"`
	CreatedBy       int64            `json:"created_by"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Items           []GRNItem        `json:"items,omitempty"`
}

type GRNItem struct {
	ID               int64      `json:"id"`
	GRNID            int64      `json:"grn_id"`
	ProductID        int64      `json:"product_id"`
	OrderedQuantity  float64    `json:"ordered_quantity"`
	AcceptedQuantity float64    `json:"accepted_quantity"`
	ShortQuantity    float64    `json:"short_quantity"`
	UnitPrice        float64    `json:"unit_price"`
	QualityStatus    string     `json:"quality_status,omitempty"`
	BatchNumber      string     `json:"batch_number,omitempty"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
	SerialNumbers    []string   `json:"serial_numbers,omitempty"`
}

type SupplierPaymentStatus string

const (
	SupplierPaymentDraft    SupplierPaymentStatus = "DRAFT"
	SupplierPaymentApproved SupplierPaymentStatus = "APPROVED"
	SupplierPaymentPaid     SupplierPaymentStatus = "PAID"
)

// Counted reports whether payments in this status reduce the GRN
// balance. Drafts do not count until approved.
func (s SupplierPaymentStatus) Counted() bool {
	return s == SupplierPaymentApproved || s == SupplierPaymentPaid
}

type SupplierPayment struct {
	ID         int64                 `json:"id"`
	Number     string                `json:"number"`
	GRNID      int64                 `json:"grn_id"`
	SupplierID int64                 `json:"supplier_id"`
	Amount     float64               `json:"amount"`
	Method     string                `json:"method"`
	Status     SupplierPaymentStatus `json:"status"`
	PaidAt     *time.Time            `json:"paid_at,omitempty"`
	Notes      string                `json:"notes,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}
