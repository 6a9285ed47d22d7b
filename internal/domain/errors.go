package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNoData            = errors.New("no market data")
	ErrInsufficientDepth = errors.New("insufficient order book depth")
	ErrEmergencyStop     = errors.New("emergency stop engaged")
	ErrRateLimited       = errors.New("rate limited")
	ErrLockHeld          = errors.New("lock already held")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidOrder      = errors.New("invalid order parameters")
)
