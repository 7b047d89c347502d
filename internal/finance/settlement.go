package finance

// Epsilon is the rounding tolerance applied when comparing monetary values.
const Epsilon = 0.01

// SettlementStatus is the payment status derived from a settlement.
type SettlementStatus string

const (
	SettlementUnpaid  SettlementStatus = "UNPAID"
	SettlementPartial SettlementStatus = "PARTIAL"
	SettlementPaid    SettlementStatus = "PAID"
)

// Settlement summarises the paid and outstanding amounts of a document.
type Settlement struct {
	Paid    float64
	Balance float64
	Status  SettlementStatus
}

// Settle recomputes paid/balance from the full set of counted payment
// amounts against the document total. It is always a recompute over the
// remaining set, never an incremental reversal, so it stays correct
// regardless of the order payments were created or deleted in.
func Settle(total float64, countedAmounts []float64) Settlement {
	var paid float64
	for _, amount := range countedAmounts {
		paid += amount
	}
	s := Settlement{Paid: Round2(paid), Balance: Round2(total - paid)}
	switch {
	case paid == 0:
		s.Status = SettlementUnpaid
	case s.Balance <= Epsilon:
		s.Balance = 0
		s.Status = SettlementPaid
	default:
		s.Status = SettlementPartial
	}
	return s
}

// WithinBalance reports whether a payment of amount fits the open balance,
// allowing the rounding tolerance. Overpayment beyond balance+Epsilon is
// rejected at payment time, never silently clamped.
func WithinBalance(amount, balance float64) bool {
	return amount <= balance+Epsilon
}
