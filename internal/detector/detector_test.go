package detector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/history"
)

// fakeQuotes is an in-memory QuoteSource with error injection and
// concurrency accounting.
type fakeQuotes struct {
	mu      sync.Mutex
	quotes  map[string]domain.Quote
	errs    map[string]error
	inUse   int
	maxUsed int
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{
		quotes: make(map[string]domain.Quote),
		errs:   make(map[string]error),
	}
}

func (f *fakeQuotes) BestPrices(_ context.Context, tokenID string) (*domain.Quote, error) {
	f.mu.Lock()
	f.inUse++
	if f.inUse > f.maxUsed {
		f.maxUsed = f.inUse
	}
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inUse--
	if err, ok := f.errs[tokenID]; ok {
		return nil, err
	}
	q, ok := f.quotes[tokenID]
	if !ok {
		return nil, nil // no data
	}
	return &q, nil
}

func (f *fakeQuotes) OrderBook(context.Context, string) (*domain.OrderBook, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScanMeanReversionSell(t *testing.T) {
	hist := history.New()
	base := time.Now().Add(-15 * time.Minute)
	// 14 samples oscillating tightly around 0.50 so the window has a real
	// but small spread; the scan itself records the 15th at 0.70.
	for i := 0; i < 14; i++ {
		p := 0.49
		if i%2 == 1 {
			p = 0.51
		}
		hist.RecordAt("m1-yes", p, base.Add(time.Duration(i)*time.Second))
	}

	quotes := newFakeQuotes()
	quotes.quotes["m1-yes"] = domain.Quote{Bid: 0.69, Ask: 0.71} // mid 0.70
	quotes.quotes["m1-no"] = domain.Quote{Bid: 0.29, Ask: 0.31}

	d := New(quotes,
		[]MarketStrategy{NewMeanReversion(hist, 0.1)},
		nil,
		Config{MinProfitPct: 0.1},
		testLogger(),
	)

	opps := d.Scan(context.Background(), []domain.Market{binaryMarket("m1")})
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	o := opps[0]
	if o.Strategy != domain.StrategyMeanReversion {
		t.Fatalf("strategy = %s", o.Strategy)
	}
	if len(o.Trades) != 1 || o.Trades[0].Side != domain.OrderSideSell {
		t.Fatalf("expected a single SELL leg, got %+v", o.Trades)
	}
	if o.Risk != domain.RiskMedium {
		t.Fatalf("|Z| > 3 should be MEDIUM risk, got %s", o.Risk)
	}
}

func TestScanMarketFailureDoesNotAbortBatch(t *testing.T) {
	quotes := newFakeQuotes()
	quotes.errs["bad-yes"] = errors.New("upstream 429")
	quotes.quotes["good-yes"] = domain.Quote{Bid: 0.40, Ask: 0.47}
	quotes.quotes["good-no"] = domain.Quote{Bid: 0.45, Ask: 0.50}

	d := New(quotes,
		[]MarketStrategy{NewImbalance(0.1)},
		nil,
		Config{MinProfitPct: 0.1},
		testLogger(),
	)

	markets := []domain.Market{binaryMarket("bad"), binaryMarket("good")}
	opps := d.Scan(context.Background(), markets)

	var exec int
	for _, o := range opps {
		if o.Executable() {
			exec++
		}
	}
	if exec != 1 {
		t.Fatalf("expected the healthy market's opportunity despite the failure, got %d", exec)
	}
}

func TestScanMissingQuoteSkipsToken(t *testing.T) {
	quotes := newFakeQuotes()
	// Only YES has data; NO returns nil (no data). Imbalance needs both.
	quotes.quotes["m1-yes"] = domain.Quote{Bid: 0.20, Ask: 0.25}

	d := New(quotes,
		[]MarketStrategy{NewImbalance(0.1)},
		nil,
		Config{MinProfitPct: 0.1},
		testLogger(),
	)
	opps := d.Scan(context.Background(), []domain.Market{binaryMarket("m1")})
	if len(opps) != 0 {
		t.Fatalf("token without data must be skipped, got %v", opps)
	}
}

func TestScanBoundsConcurrency(t *testing.T) {
	quotes := newFakeQuotes()
	markets := make([]domain.Market, 12)
	for i := range markets {
		m := binaryMarket(string(rune('a' + i)))
		markets[i] = m
		quotes.quotes[m.Tokens[0].ID] = domain.Quote{Bid: 0.4, Ask: 0.6}
		quotes.quotes[m.Tokens[1].ID] = domain.Quote{Bid: 0.4, Ask: 0.6}
	}

	d := New(quotes,
		[]MarketStrategy{NewImbalance(0.1)},
		nil,
		Config{MinProfitPct: 0.1, BatchSize: 5, BatchPause: time.Millisecond},
		testLogger(),
	)
	d.Scan(context.Background(), markets)

	// Each market goroutine fetches its tokens sequentially, so in-flight
	// requests are bounded by the batch size.
	if quotes.maxUsed > 5 {
		t.Fatalf("concurrent quote fetches = %d, want <= batch size 5", quotes.maxUsed)
	}
}

func TestScanCollectsPairOpportunities(t *testing.T) {
	quotes := newFakeQuotes()
	hi := binaryMarket("hi")
	hi.Question = "Will BTC hit 150k?"
	lo := binaryMarket("lo")
	lo.Question = "Will BTC hit 100k?"
	quotes.quotes["hi-yes"] = domain.Quote{Bid: 0.29, Ask: 0.31} // prob 0.30
	quotes.quotes["hi-no"] = domain.Quote{Bid: 0.69, Ask: 0.71}
	quotes.quotes["lo-yes"] = domain.Quote{Bid: 0.24, Ask: 0.26} // prob 0.25
	quotes.quotes["lo-no"] = domain.Quote{Bid: 0.74, Ask: 0.76}

	d := New(quotes,
		nil,
		[]PairStrategy{NewCrossMarket(0.1)},
		Config{MinProfitPct: 0.1},
		testLogger(),
	)
	opps := d.Scan(context.Background(), []domain.Market{hi, lo})
	if len(opps) != 1 {
		t.Fatalf("expected the nested-condition opportunity, got %d", len(opps))
	}
	if opps[0].Strategy != domain.StrategyCrossMarket {
		t.Fatalf("strategy = %s", opps[0].Strategy)
	}
}
