package domain

import "errors"

// Failure taxonomy for lifecycle operations. All three are client-caused and
// non-retryable; callers map them onto transport-level status codes.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidTransition    = errors.New("invalid stage transition")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
)
