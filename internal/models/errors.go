package models

import "errors"

// Domain error taxonomy. Services wrap these with fmt.Errorf and %w;
// handlers map them onto HTTP statuses.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidArgument   = errors.New("invalid argument")
)
