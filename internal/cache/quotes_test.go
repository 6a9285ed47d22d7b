package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

type memBooks struct {
	books map[string]domain.OrderBook
	sets  int
}

func (m *memBooks) SetBook(_ context.Context, tokenID string, book domain.OrderBook) error {
	if m.books == nil {
		m.books = make(map[string]domain.OrderBook)
	}
	m.books[tokenID] = book
	m.sets++
	return nil
}

func (m *memBooks) GetBook(_ context.Context, tokenID string) (domain.OrderBook, error) {
	book, ok := m.books[tokenID]
	if !ok {
		return domain.OrderBook{}, fmt.Errorf("book %s: %w", tokenID, domain.ErrNotFound)
	}
	return book, nil
}

type memPrices struct {
	prices map[string]float64
}

func (m *memPrices) SetPrice(_ context.Context, tokenID string, price float64, _ time.Time) error {
	if m.prices == nil {
		m.prices = make(map[string]float64)
	}
	m.prices[tokenID] = price
	return nil
}

func (m *memPrices) GetPrice(_ context.Context, tokenID string) (float64, time.Time, error) {
	price, ok := m.prices[tokenID]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return price, time.Time{}, nil
}

type countingSource struct {
	books map[string]*domain.OrderBook
	calls int
}

func (c *countingSource) BestPrices(ctx context.Context, tokenID string) (*domain.Quote, error) {
	book, err := c.OrderBook(ctx, tokenID)
	if err != nil || book == nil {
		return nil, err
	}
	return &domain.Quote{Bid: book.BestBid(), Ask: book.BestAsk()}, nil
}

func (c *countingSource) OrderBook(_ context.Context, tokenID string) (*domain.OrderBook, error) {
	c.calls++
	return c.books[tokenID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleBook(tokenID string) *domain.OrderBook {
	return &domain.OrderBook{
		TokenID:   tokenID,
		Bids:      []domain.BookLevel{{Price: 0.48, Size: 10}},
		Asks:      []domain.BookLevel{{Price: 0.52, Size: 10}},
		Timestamp: time.Now(),
	}
}

func TestOrderBookMissFetchesAndCaches(t *testing.T) {
	upstream := &countingSource{books: map[string]*domain.OrderBook{"t1": sampleBook("t1")}}
	books := &memBooks{}
	prices := &memPrices{}
	qs := NewQuoteSource(upstream, books, prices, testLogger())

	book, err := qs.OrderBook(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if book == nil || book.BestAsk() != 0.52 {
		t.Fatalf("book = %+v", book)
	}
	if upstream.calls != 1 || books.sets != 1 {
		t.Fatalf("calls = %d, sets = %d", upstream.calls, books.sets)
	}

	// Mid price of the fetched book lands in the price cache.
	mid, _, err := prices.GetPrice(context.Background(), "t1")
	if err != nil || mid != 0.50 {
		t.Fatalf("mid = %f, err = %v", mid, err)
	}

	// Second read is served from the cache.
	book, err = qs.OrderBook(context.Background(), "t1")
	if err != nil || book == nil {
		t.Fatalf("cached read: %v, %v", book, err)
	}
	if upstream.calls != 1 {
		t.Fatalf("cache hit must not go upstream, calls = %d", upstream.calls)
	}
}

func TestOrderBookNoUpstreamData(t *testing.T) {
	upstream := &countingSource{books: map[string]*domain.OrderBook{}}
	books := &memBooks{}
	qs := NewQuoteSource(upstream, books, nil, testLogger())

	book, err := qs.OrderBook(context.Background(), "missing")
	if err != nil || book != nil {
		t.Fatalf("missing book must be (nil, nil), got %v, %v", book, err)
	}
	if books.sets != 0 {
		t.Fatal("nil books must not be cached")
	}

	quote, err := qs.BestPrices(context.Background(), "missing")
	if err != nil || quote != nil {
		t.Fatalf("missing quote must be (nil, nil), got %v, %v", quote, err)
	}
}

func TestOrderBookWithoutCaches(t *testing.T) {
	upstream := &countingSource{books: map[string]*domain.OrderBook{"t1": sampleBook("t1")}}
	qs := NewQuoteSource(upstream, nil, nil, testLogger())

	for i := 0; i < 2; i++ {
		book, err := qs.OrderBook(context.Background(), "t1")
		if err != nil || book == nil {
			t.Fatalf("book = %v, err = %v", book, err)
		}
	}
	if upstream.calls != 2 {
		t.Fatalf("cache-less reads must always go upstream, calls = %d", upstream.calls)
	}
}

func TestBestPricesFromCachedBook(t *testing.T) {
	upstream := &countingSource{books: map[string]*domain.OrderBook{"t1": sampleBook("t1")}}
	books := &memBooks{}
	qs := NewQuoteSource(upstream, books, nil, testLogger())

	quote, err := qs.BestPrices(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if quote.Bid != 0.48 || quote.Ask != 0.52 {
		t.Fatalf("quote = %+v", quote)
	}
	if _, err := qs.BestPrices(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}
	if upstream.calls != 1 {
		t.Fatalf("calls = %d, want 1", upstream.calls)
	}
}
