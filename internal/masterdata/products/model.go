package products

// Tracking enumerates how units of a product are tracked in stock.
type Tracking string

const (
	// TrackingNone means only aggregate quantity is tracked.
	TrackingNone Tracking = "NONE"
	// TrackingBatch tracks lots with batch numbers and expiry.
	TrackingBatch Tracking = "BATCH"
	// TrackingSerial tracks individual units by serial number.
	TrackingSerial Tracking = "SERIAL"
)

// Product is a sellable or purchasable item.
type Product struct {
	ID       int64    `json:"id"`
	SKU      string   `json:"sku"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    float64  `json:"price"`
	TaxRate  float64  `json:"tax_rate"`
	Tracking Tracking `json:"tracking"`
	IsActive bool     `json:"is_active"`
}
