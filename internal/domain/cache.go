package domain

import (
	"context"
	"time"
)

// BookCache stores order-book snapshots with a short TTL. Concurrent
// writers for the same key are last-write-wins; staleness is bounded by
// the TTL, so no locking discipline is required of implementations.
type BookCache interface {
	SetBook(ctx context.Context, tokenID string, book OrderBook) error
	// GetBook returns ErrNotFound once the TTL has expired.
	GetBook(ctx context.Context, tokenID string) (OrderBook, error)
}

// PriceCache provides fast access to the latest observed prices.
type PriceCache interface {
	SetPrice(ctx context.Context, tokenID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, tokenID string) (float64, time.Time, error)
}
