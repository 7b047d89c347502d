package taxes

// Tax represents a tax configuration applied to document subtotals.
type Tax struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Rate      float64 `json:"rate"`
	IsDefault bool    `json:"is_default"`
	Enabled   bool    `json:"enabled"`
}
