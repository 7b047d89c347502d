package quotations

import "time"

type CreateQuotationRequest struct {
	CustomerID      int64             `json:"customer_id" validate:"required,gt=0"`
	QuoteDate       time.Time         `json:"quote_date" validate:"required"`
	ValidUntil      time.Time         `json:"valid_until" validate:"required"`
	DiscountPercent float64           `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxIDs          []int64           `json:"tax_ids" validate:"dive,gt=0"`
	Notes           string            `json:"notes,omitempty"`
	Items           []CreateLineRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateLineRequest struct {
	ProductID       int64   `json:"product_id" validate:"required,gt=0"`
	Description     string  `json:"description,omitempty"`
	Quantity        float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
}

type UpdateQuotationRequest struct {
	QuoteDate       *time.Time           `json:"quote_date,omitempty"`
	ValidUntil      *time.Time           `json:"valid_until,omitempty"`
	DiscountPercent *float64             `json:"discount_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	TaxIDs          *[]int64             `json:"tax_ids,omitempty"`
	Notes           *string              `json:"notes,omitempty"`
	Items           *[]CreateLineRequest `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

type ListFilter struct {
	CustomerID int64
	Status     *Status
	Page       int
	Limit      int
}
