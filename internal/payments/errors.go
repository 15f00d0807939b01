package payments

import "errors"

var (
	ErrValidation  = errors.New("validation error")
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrNotFound covers both missing and foreign intents.
	ErrNotFound = errors.New("payment not found")
	// ErrAuthenticity means a provider notification failed verification.
	ErrAuthenticity = errors.New("notification failed verification")
	// ErrConflict means a concurrent reconcile already moved the intent.
	ErrConflict = errors.New("payment state changed concurrently")
	// ErrDuplicateSession means the external session id is already recorded.
	ErrDuplicateSession    = errors.New("checkout session already recorded")
	ErrCheckoutUnavailable = errors.New("checkout not configured")
)
