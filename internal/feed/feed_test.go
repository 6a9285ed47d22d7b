package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

type memBooks struct {
	books map[string]domain.OrderBook
}

func (m *memBooks) SetBook(_ context.Context, tokenID string, book domain.OrderBook) error {
	if m.books == nil {
		m.books = make(map[string]domain.OrderBook)
	}
	m.books[tokenID] = book
	return nil
}

func (m *memBooks) GetBook(_ context.Context, tokenID string) (domain.OrderBook, error) {
	book, ok := m.books[tokenID]
	if !ok {
		return domain.OrderBook{}, domain.ErrNotFound
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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleBookWarmsCaches(t *testing.T) {
	books := &memBooks{}
	prices := &memPrices{}
	f := New("ws://unused", []string{"t1"}, books, prices, 0, testLogger())

	f.handleBook(domain.OrderBook{
		TokenID:   "t1",
		Bids:      []domain.BookLevel{{Price: 0.48, Size: 10}},
		Asks:      []domain.BookLevel{{Price: 0.52, Size: 10}},
		Timestamp: time.Now(),
	})

	book, err := books.GetBook(context.Background(), "t1")
	if err != nil || book.BestAsk() != 0.52 {
		t.Fatalf("book = %+v, err = %v", book, err)
	}
	if mid := prices.prices["t1"]; mid != 0.50 {
		t.Fatalf("mid = %f", mid)
	}
}

func TestHandleBookIgnoresAnonymousSnapshots(t *testing.T) {
	books := &memBooks{}
	f := New("ws://unused", []string{"t1"}, books, nil, 0, testLogger())

	f.handleBook(domain.OrderBook{Bids: []domain.BookLevel{{Price: 0.4, Size: 1}}})
	if len(books.books) != 0 {
		t.Fatal("snapshot without a token id must be dropped")
	}
}

func TestHandleTradePrice(t *testing.T) {
	prices := &memPrices{}
	f := New("ws://unused", []string{"t1"}, &memBooks{}, prices, 0, testLogger())

	f.handleTradePrice("t1", 0.61, time.Now())
	if prices.prices["t1"] != 0.61 {
		t.Fatalf("price = %f", prices.prices["t1"])
	}

	// A nil price cache must not panic.
	f2 := New("ws://unused", []string{"t1"}, &memBooks{}, nil, 0, testLogger())
	f2.handleTradePrice("t1", 0.61, time.Now())
}

func TestRunWithoutTokensReturnsImmediately(t *testing.T) {
	f := New("ws://unused", nil, &memBooks{}, nil, 0, testLogger())
	if err := f.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}
