package procurement

import "time"

type CreatePORequest struct {
	SupplierID      int64               `json:"supplier_id" validate:"required,gt=0"`
	OrderDate       time.Time           `json:"order_date" validate:"required"`
	ExpectedDate    time.Time           `json:"expected_date" validate:"required"`
	DiscountPercent float64             `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxIDs          []int64             `json:"tax_ids" validate:"dive,gt=0"`
	Notes           string              `json:"notes,omitempty"`
	Items           []CreatePOLineRequest `json:"items" validate:"required,min=1,dive"`
}

type CreatePOLineRequest struct {
	ProductID       int64   `json:"product_id" validate:"required,gt=0"`
	Description     string  `json:"description,omitempty"`
	Quantity        float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
}

type ConvertPORequest struct {
	LocationID int64 `json:"location_id" validate:"required,gt=0"`
}

// InspectGRNRequest records the inspection outcome per line.
type InspectGRNRequest struct {
	Lines []InspectLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type InspectLineRequest struct {
	ItemID           int64      `json:"item_id" validate:"required,gt=0"`
	AcceptedQuantity float64    `json:"accepted_quantity" validate:"gte=0"`
	QualityStatus    string     `json:"quality_status" validate:"required"`
	BatchNumber      string     `json:"batch_number,omitempty"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
	SerialNumbers    []string   `json:"serial_numbers,omitempty"`
}

type CreateSupplierPaymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Method string  `json:"method" validate:"required"`
	Notes  string  `json:"notes,omitempty"`
}

type UpdateSupplierPaymentRequest struct {
	Amount *float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Method *string  `json:"method,omitempty"`
	Notes  *string  `json:"notes,omitempty"`
}

type POListFilter struct {
	SupplierID int64
	Status     *POStatus
	Page       int
	Limit      int
}

type GRNListFilter struct {
	SupplierID int64
	Status     *GRNStatus
	Page       int
	Limit      int
}
