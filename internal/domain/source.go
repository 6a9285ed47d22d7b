package domain

import "context"

// MarketSource lists and fetches prediction markets. Implementations must
// tolerate malformed upstream payloads and fall back to default 50/50
// outcome pricing rather than failing the call.
type MarketSource interface {
	// ListActiveMarkets returns open markets, optionally filtered by
	// category (empty string = all categories).
	ListActiveMarkets(ctx context.Context, category string) ([]Market, error)
	// GetMarket returns a single market. ErrNotFound when the id is unknown.
	GetMarket(ctx context.Context, id string) (Market, error)
}

// QuoteSource provides best prices and order-book depth for tokens.
// A (nil, nil) return signals "no data for this instrument"; callers must
// skip the token for the pass, never treat it as fatal.
type QuoteSource interface {
	BestPrices(ctx context.Context, tokenID string) (*Quote, error)
	OrderBook(ctx context.Context, tokenID string) (*OrderBook, error)
}

// OrderGateway submits and cancels orders on the exchange. Order identifiers
// returned by PostOrder are idempotent cancellation keys.
type OrderGateway interface {
	// CreateOrder builds and signs an order for one trade leg at the given
	// limit price. A nil handle with nil error means the gateway refused the
	// order without a transport failure.
	CreateOrder(ctx context.Context, leg Trade, limitPrice float64) (*OrderHandle, error)
	PostOrder(ctx context.Context, handle OrderHandle) (OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// AccountSource reports wallet balances.
type AccountSource interface {
	Balance(ctx context.Context) (Balance, error)
}
