package domain

import "errors"

// Error categories. Component packages wrap these with a specific reason via
// xerrors so callers can match the category with errors.Is and still surface
// a distinguishable cause.
var (
	// ErrUnauthorized is returned when the caller lacks the required role
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState is returned when the operation conflicts with the
	// current lifecycle state (paused/not paused, listed/not listed, ...)
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput is returned for malformed parameters
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientFunds is returned when a ledger balance or external
	// holding is below the required amount
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotFound is returned when the referenced entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrTemporalPolicyViolation is returned when a time-gated rule rejects
	// the operation (delayed-cancel auctions)
	ErrTemporalPolicyViolation = errors.New("temporal policy violation")
)
