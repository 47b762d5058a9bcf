package paymentsvc

import "errors"

var (
	// ErrUnauthenticated means the caller supplied no user identity.
	ErrUnauthenticated = errors.New("caller is not authenticated")

	// ErrInvalidRequest means a required payment parameter is missing or
	// malformed. Client-correctable.
	ErrInvalidRequest = errors.New("invalid payment request")

	// ErrOrderNotFound means the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrAmountMismatch means the claimed amount differs from the order's
	// stored total. Logged distinctly: this is the tamper-detection guard,
	// not an ordinary validation failure.
	ErrAmountMismatch = errors.New("claimed amount does not match order total")

	// ErrAlreadyPaid is the idempotency rejection for a duplicate submit.
	ErrAlreadyPaid = errors.New("order is already paid")
)
