package quotations

import "time"

type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusSent     Status = "SENT"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// allowedTransitions is the quotation status machine. Conversion is a
// separate flag rather than a status so a converted quotation keeps
// its approval history.
var allowedTransitions = map[Status][]Status{
	StatusDraft:    {StatusSent},
	StatusSent:     {StatusApproved, StatusRejected, StatusExpired},
	StatusApproved: {StatusExpired},
}

func canTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Quotation struct {
	ID                 int64      `json:"id"`
	Number             string     `json:"number"`
	CustomerID         int64      `json:"customer_id"`
	Status             Status     `json:"status"`
	QuoteDate          time.Time  `json:"quote_date"`
	ValidUntil         time.Time  `json:"valid_until"`
	Subtotal           float64    `json:"subtotal"`
	DiscountPercent    float64    `json:"discount_percent"`
	DiscountAmount     float64    `json:"discount_amount"`
	TaxAmount          float64    `json:"tax_amount"`
	Total              float64    `json:"total"`
	TaxIDs             []int64    `json:"tax_ids"`
	Notes              string     `json:"notes,omitempty"`
	ConvertedToInvoice bool       `json:"converted_to_invoice"`
	InvoiceID          *int64     `json:"invoice_id,omitempty"`
	CreatedBy          int64      `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Items              []Item     `json:"items,omitempty"`
}

type Item struct {
	ID              int64   `json:"id"`
	QuotationID     int64   `json:"quotation_id"`
	ProductID       int64   `json:"product_id"`
	Description     string  `json:"description,omitempty"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	LineTotal       float64 `json:"line_total"`
}
