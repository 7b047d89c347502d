package invoices

import "time"

type CreateInvoiceRequest struct {
	CustomerID      int64               `json:"customer_id" validate:"required,gt=0"`
	LocationID      int64               `json:"location_id" validate:"required,gt=0"`
	InvoiceDate     time.Time           `json:"invoice_date" validate:"required"`
	DueDate         time.Time           `json:"due_date" validate:"required"`
	DiscountPercent float64             `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxIDs          []int64             `json:"tax_ids" validate:"dive,gt=0"`
	Notes           string              `json:"notes,omitempty"`
	Items           []CreateLineRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateLineRequest struct {
	ProductID       int64   `json:"product_id" validate:"required,gt=0"`
	Description     string  `json:"description,omitempty"`
	Quantity        float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
}

type CreatePaymentRequest struct {
	Amount float64   `json:"amount" validate:"required,gt=0"`
	Method string    `json:"method" validate:"required"`
	Status string    `json:"status,omitempty"`
	PaidAt time.Time `json:"paid_at"`
	Notes  string    `json:"notes,omitempty"`
}

type UpdatePaymentRequest struct {
	Amount *float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Method *string  `json:"method,omitempty"`
	Status *string  `json:"status,omitempty"`
	Notes  *string  `json:"notes,omitempty"`
}

type ListFilter struct {
	CustomerID int64
	Status     *Status
	Page       int
	Limit      int
}
