// Package feed streams real-time market data from the CLOB WebSocket into
// the shared book and price caches, so scan passes read warm snapshots
// instead of polling the REST API.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/platform/polymarket"
)

const (
	defaultReconnectWait = 2 * time.Second

	// cacheWriteTimeout bounds each cache write triggered by a feed message.
	cacheWriteTimeout = time.Second
)

// Feed subscribes to book and last-trade channels for a set of tokens and
// writes every update into the caches. Cache writes are best-effort; a
// failing cache never stops the stream.
type Feed struct {
	wsURL         string
	tokenIDs      []string
	books         domain.BookCache
	prices        domain.PriceCache
	reconnectWait time.Duration
	logger        *slog.Logger
}

// New creates a Feed for the given tokens. prices may be nil when no price
// cache is configured; reconnectWait <= 0 falls back to the default.
func New(wsURL string, tokenIDs []string, books domain.BookCache, prices domain.PriceCache, reconnectWait time.Duration, logger *slog.Logger) *Feed {
	if reconnectWait <= 0 {
		reconnectWait = defaultReconnectWait
	}
	return &Feed{
		wsURL:         wsURL,
		tokenIDs:      tokenIDs,
		books:         books,
		prices:        prices,
		reconnectWait: reconnectWait,
		logger:        logger.With(slog.String("component", "feed")),
	}
}

// Run connects, subscribes, and streams until ctx is cancelled. The initial
// connect is retried with a fixed wait; once established, the client handles
// reconnection itself.
func (f *Feed) Run(ctx context.Context) error {
	if len(f.tokenIDs) == 0 {
		f.logger.Info("no tokens to subscribe, feed disabled")
		return nil
	}

	client := polymarket.NewWSClient(f.wsURL)
	defer client.Close()

	client.OnBook(f.handleBook)
	client.OnTradePrice(f.handleTradePrice)

	for {
		connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := client.Connect(connCtx)
		cancel()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("feed connect failed, retrying",
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.reconnectWait):
		}
	}

	if err := client.Subscribe([]string{"book", "last_trade_price"}, f.tokenIDs); err != nil {
		return err
	}
	f.logger.Info("feed subscribed", slog.Int("tokens", len(f.tokenIDs)))

	<-ctx.Done()
	return ctx.Err()
}

func (f *Feed) handleBook(book domain.OrderBook) {
	if book.TokenID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
	defer cancel()

	if err := f.books.SetBook(ctx, book.TokenID, book); err != nil {
		f.logger.Warn("book cache write failed",
			slog.String("token_id", book.TokenID),
			slog.String("error", err.Error()))
	}

	if f.prices != nil {
		bid, ask := book.BestBid(), book.BestAsk()
		if bid > 0 && ask > 0 {
			if err := f.prices.SetPrice(ctx, book.TokenID, (bid+ask)/2, book.Timestamp); err != nil {
				f.logger.Warn("price cache write failed",
					slog.String("token_id", book.TokenID),
					slog.String("error", err.Error()))
			}
		}
	}
}

func (f *Feed) handleTradePrice(tokenID string, price float64, ts time.Time) {
	if f.prices == nil || tokenID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
	defer cancel()

	if err := f.prices.SetPrice(ctx, tokenID, price, ts); err != nil {
		f.logger.Warn("price cache write failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()))
	}
}
