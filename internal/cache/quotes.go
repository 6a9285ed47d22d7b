// Package cache provides a read-through quote source that serves order books
// from a shared cache and spreads upstream fetches over a small random delay.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// maxFetchJitter is the upper bound of the random delay applied before each
// upstream book fetch, so concurrent scanners do not hammer the API in
// lockstep.
const maxFetchJitter = 100 * time.Millisecond

// QuoteSource wraps an upstream domain.QuoteSource with a book cache. Cache
// hits are served directly; misses go upstream after a 0-100ms jitter and the
// result is written back best-effort. Concurrent writers for the same token
// are last-write-wins, which is acceptable because staleness is bounded by
// the cache TTL.
type QuoteSource struct {
	upstream domain.QuoteSource
	books    domain.BookCache
	prices   domain.PriceCache
	logger   *slog.Logger
}

// NewQuoteSource creates a caching quote source. books and prices may be nil
// when no cache is configured; the jitter still applies, only the
// read-through is skipped.
func NewQuoteSource(upstream domain.QuoteSource, books domain.BookCache, prices domain.PriceCache, logger *slog.Logger) *QuoteSource {
	return &QuoteSource{
		upstream: upstream,
		books:    books,
		prices:   prices,
		logger:   logger.With(slog.String("component", "quote_cache")),
	}
}

// BestPrices returns the top-of-book quote for a token, served from the
// cached book when fresh. A (nil, nil) return means no data.
func (qs *QuoteSource) BestPrices(ctx context.Context, tokenID string) (*domain.Quote, error) {
	book, err := qs.OrderBook(ctx, tokenID)
	if err != nil || book == nil {
		return nil, err
	}

	quote := &domain.Quote{Bid: book.BestBid(), Ask: book.BestAsk()}
	if quote.Bid == 0 && quote.Ask == 0 {
		return nil, nil
	}
	return quote, nil
}

// OrderBook returns the book for a token, fetching from the upstream source
// on a cache miss.
func (qs *QuoteSource) OrderBook(ctx context.Context, tokenID string) (*domain.OrderBook, error) {
	if qs.books != nil {
		cached, err := qs.books.GetBook(ctx, tokenID)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			// A degraded cache must not stop the scan; fall through to the
			// upstream source.
			qs.logger.Warn("book cache read failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()))
		}
	}

	if err := sleepJitter(ctx); err != nil {
		return nil, err
	}

	book, err := qs.upstream.OrderBook(ctx, tokenID)
	if err != nil || book == nil {
		return nil, err
	}

	if qs.books != nil {
		if err := qs.books.SetBook(ctx, tokenID, *book); err != nil {
			qs.logger.Warn("book cache write failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()))
		}
	}
	qs.recordPrice(ctx, tokenID, book)

	return book, nil
}

// recordPrice stores the mid price of a freshly fetched book.
func (qs *QuoteSource) recordPrice(ctx context.Context, tokenID string, book *domain.OrderBook) {
	if qs.prices == nil {
		return
	}
	bid, ask := book.BestBid(), book.BestAsk()
	if bid == 0 || ask == 0 {
		return
	}
	if err := qs.prices.SetPrice(ctx, tokenID, (bid+ask)/2, book.Timestamp); err != nil {
		qs.logger.Warn("price cache write failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()))
	}
}

// sleepJitter waits a random duration in [0, maxFetchJitter), honouring the
// context.
func sleepJitter(ctx context.Context) error {
	d := time.Duration(rand.Int63n(int64(maxFetchJitter)))
	if d == 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Compile-time interface check.
var _ domain.QuoteSource = (*QuoteSource)(nil)
