package orders

import "github.com/pkg/errors"

// Failure taxonomy. Every rejection a caller can see maps onto one of
// these; handlers turn them into user-visible messages, never crashes.
var (
	ErrNotFound     = errors.New("order not found")
	ErrUnauthorized = errors.New("you are not allowed to act on this order")
	ErrInvalidState = errors.New("this order no longer allows that action")
	ErrValidation   = errors.New("invalid input")
)
