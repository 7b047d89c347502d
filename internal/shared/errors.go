package shared

import "errors"

// Error taxonomy shared across domain packages. Services wrap these with
// fmt.Errorf("%w: ...") so handlers can map them to HTTP statuses.
var (
	// ErrNotFound indicates a referenced record is missing.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates invalid input detected before any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState occurs when an action violates a status workflow.
	ErrInvalidState = errors.New("invalid status transition")
	// ErrConflict indicates a duplicate key or an already-applied action.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock occurs when a deduction would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOverpayment occurs when a payment would exceed the open balance.
	ErrOverpayment = errors.New("amount exceeds balance")
)
