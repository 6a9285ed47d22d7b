package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/redis/go-redis/v9"
)

// defaultBookTTL bounds how stale a cached order book may be. Books older
// than this are treated as missing and refetched.
const defaultBookTTL = 2 * time.Second

// BookCache implements domain.BookCache by storing JSON-encoded order-book
// snapshots under short-lived keys. Expiry is delegated to Redis, so a read
// after the TTL simply misses.
type BookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBookCache creates a BookCache backed by the given Client. A zero or
// negative ttl falls back to the default.
func NewBookCache(c *Client, ttl time.Duration) *BookCache {
	if ttl <= 0 {
		ttl = defaultBookTTL
	}
	return &BookCache{rdb: c.Underlying(), ttl: ttl}
}

func bookKey(tokenID string) string {
	return "book:" + tokenID
}

// SetBook stores an order-book snapshot. Concurrent writers for the same
// token are last-write-wins.
func (bc *BookCache) SetBook(ctx context.Context, tokenID string, book domain.OrderBook) error {
	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("redis: encode book %s: %w", tokenID, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(tokenID), data, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set book %s: %w", tokenID, err)
	}
	return nil
}

// GetBook returns the cached snapshot for a token, or domain.ErrNotFound
// once the TTL has expired.
func (bc *BookCache) GetBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	data, err := bc.rdb.Get(ctx, bookKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderBook{}, fmt.Errorf("redis: book %s: %w", tokenID, domain.ErrNotFound)
		}
		return domain.OrderBook{}, fmt.Errorf("redis: get book %s: %w", tokenID, err)
	}

	var book domain.OrderBook
	if err := json.Unmarshal(data, &book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("redis: decode book %s: %w", tokenID, err)
	}
	return book, nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
