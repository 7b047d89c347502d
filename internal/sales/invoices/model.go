package invoices

import "time"

// Status is the display status. It is recomputed from payments once
// any exist; APPROVED/REJECTED live on ApprovalStatus separately.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusPaid      Status = "PAID"
	StatusPartial   Status = "PARTIAL"
	StatusOverdue   Status = "OVERDUE"
	StatusCancelled Status = "CANCELLED"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

type Invoice struct {
	ID              int64          `json:"id"`
	Number          string         `json:"number"`
	CustomerID      int64          `json:"customer_id"`
	QuotationID     *int64         `json:"quotation_id,omitempty"`
	LocationID      int64          `json:"location_id"`
	Status          Status         `json:"status"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	InvoiceDate     time.Time      `json:"invoice_date"`
	DueDate         time.Time      `json:"due_date"`
	Subtotal        float64        `json:"subtotal"`
	DiscountPercent float64        `json:"discount_percent"`
	DiscountAmount  float64        `json:"discount_amount"`
	TaxAmount       float64        `json:"tax_amount"`
	Total           float64        `json:"total"`
	PaidAmount      float64        `json:"paid_amount"`
	BalanceAmount   float64        `json:"balance_amount"`
	TaxIDs          []int64        `json:"tax_ids"`
	Notes           string         `json:"notes,omitempty"`
	CreatedBy       int64          `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Items           []Item         `json:"items,omitempty"`
}

type Item struct {
	ID              int64   `json:"id"`
	InvoiceID       int64   `json:"invoice_id"`
	ProductID       int64   `json:"product_id"`
	Description     string  `json:"description,omitempty"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	LineTotal       float64 `json:"line_total"`
}

// PaymentStatus of a customer payment. Only COMPLETED payments count
// toward an invoice's paid amount.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// CountedStatus reports whether a payment in this status counts toward
// the invoice balance.
func (s PaymentStatus) Counted() bool {
	return s == PaymentCompleted
}

type Payment struct {
	ID        int64         `json:"id"`
	Number    string        `json:"number"`
	InvoiceID int64         `json:"invoice_id"`
	Amount    float64       `json:"amount"`
	Method    string        `json:"method"`
	Status    PaymentStatus `json:"status"`
	PaidAt    time.Time     `json:"paid_at"`
	Notes     string        `json:"notes,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
