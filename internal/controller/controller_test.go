package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/arbscan/internal/detector"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/executor"
	"github.com/alanyoungcy/arbscan/internal/risk"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMarkets struct {
	mu       sync.Mutex
	markets  []domain.Market
	failures int // fail this many calls before succeeding
	calls    int
}

func (f *fakeMarkets) ListActiveMarkets(context.Context, string) ([]domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("upstream 502")
	}
	return f.markets, nil
}

func (f *fakeMarkets) GetMarket(context.Context, string) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

type fakeQuotes struct {
	quotes map[string]domain.Quote
	books  map[string]*domain.OrderBook
}

func (f *fakeQuotes) BestPrices(_ context.Context, tokenID string) (*domain.Quote, error) {
	q, ok := f.quotes[tokenID]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (f *fakeQuotes) OrderBook(_ context.Context, tokenID string) (*domain.OrderBook, error) {
	return f.books[tokenID], nil
}

type fakeAccount struct{ balance domain.Balance }

func (f *fakeAccount) Balance(context.Context) (domain.Balance, error) {
	return f.balance, nil
}

type fakeGateway struct {
	mu     sync.Mutex
	posted int
}

func (g *fakeGateway) CreateOrder(_ context.Context, leg domain.Trade, limit float64) (*domain.OrderHandle, error) {
	return &domain.OrderHandle{TokenID: leg.TokenID, Side: leg.Side, Price: limit, Size: leg.Size}, nil
}

func (g *fakeGateway) PostOrder(_ context.Context, h domain.OrderHandle) (domain.OrderResult, error) {
	g.mu.Lock()
	g.posted++
	g.mu.Unlock()
	return domain.OrderResult{
		OrderID: "ord-" + h.TokenID, Status: domain.OrderStatusFilled,
		FilledSize: h.Size, AvgPrice: h.Price,
	}, nil
}

func (g *fakeGateway) CancelOrder(context.Context, string) error { return nil }

type fakeOppStore struct {
	mu       sync.Mutex
	inserted []string
	executed []string
}

func (s *fakeOppStore) Insert(_ context.Context, opp domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, opp.ID)
	return nil
}

func (s *fakeOppStore) MarkExecuted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed = append(s.executed, id)
	return nil
}

func (s *fakeOppStore) ListRecent(context.Context, int) ([]domain.Opportunity, error) {
	return nil, nil
}

type fakeExecStore struct {
	mu   sync.Mutex
	recs []domain.ExecutionRecord
}

func (s *fakeExecStore) Insert(_ context.Context, rec domain.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *fakeExecStore) ListRecent(context.Context, int) ([]domain.ExecutionRecord, error) {
	return nil, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var c int
	for _, e := range n.events {
		if e == event {
			c++
		}
	}
	return c
}

// arbMarket is a binary market with asks summing to 0.95: a clean
// price-imbalance hit with ample book depth.
func arbMarket(id string) domain.Market {
	return domain.Market{
		ID:       id,
		Question: "Will it settle yes?",
		Active:   true,
		Tokens: []domain.Token{
			{ID: id + "-yes", Outcome: "Yes"},
			{ID: id + "-no", Outcome: "No"},
		},
	}
}

func deepBook(tokenID string, ask float64) *domain.OrderBook {
	return &domain.OrderBook{
		TokenID: tokenID,
		Bids:    []domain.BookLevel{{Price: ask - 0.02, Size: 100}},
		Asks:    []domain.BookLevel{{Price: ask, Size: 100}},
	}
}

func newController(t *testing.T, markets *fakeMarkets, quotes *fakeQuotes, gw *fakeGateway, cfg Config) (*Controller, *fakeOppStore, *fakeExecStore, *fakeNotifier) {
	t.Helper()
	det := detector.New(quotes,
		[]detector.MarketStrategy{detector.NewImbalance(0.1)},
		nil,
		detector.Config{MinProfitPct: 0.1},
		testLogger(),
	)
	ev := risk.New(risk.Config{
		Enabled:          true,
		DailyLossLimit:   100,
		MaxPositionSize:  50,
		MinPositionSize:  0.01,
		MaxOpenPositions: 10,
	}, testLogger())
	ex := executor.New(quotes, gw, executor.Config{MaxSlippage: 0.02}, testLogger())
	oppStore := &fakeOppStore{}
	execStore := &fakeExecStore{}
	notifier := &fakeNotifier{}

	c := New(Dependencies{
		Markets:   markets,
		Detector:  det,
		Risk:      ev,
		Executor:  ex,
		Account:   &fakeAccount{balance: domain.Balance{QuoteCurrency: 1000}},
		OppStore:  oppStore,
		ExecStore: execStore,
		Notifier:  notifier,
	}, cfg, testLogger())
	return c, oppStore, execStore, notifier
}

func TestScanPassDetectsAndExecutes(t *testing.T) {
	m := arbMarket("m1")
	quotes := &fakeQuotes{
		quotes: map[string]domain.Quote{
			"m1-yes": {Bid: 0.42, Ask: 0.45},
			"m1-no":  {Bid: 0.47, Ask: 0.50},
		},
		books: map[string]*domain.OrderBook{
			"m1-yes": deepBook("m1-yes", 0.45),
			"m1-no":  deepBook("m1-no", 0.50),
		},
	}
	gw := &fakeGateway{}
	c, oppStore, execStore, notifier := newController(t,
		&fakeMarkets{markets: []domain.Market{m}}, quotes, gw,
		Config{ScanInterval: time.Second, Execute: true},
	)

	c.ScanPass(context.Background())

	if len(oppStore.inserted) == 0 {
		t.Fatal("opportunity was not journaled")
	}
	if len(oppStore.executed) != 1 {
		t.Fatalf("marked executed = %d, want 1", len(oppStore.executed))
	}
	if gw.posted != 2 {
		t.Fatalf("posted orders = %d, want both legs", gw.posted)
	}
	if len(execStore.recs) != 1 || !execStore.recs[0].Success {
		t.Fatalf("execution record = %+v", execStore.recs)
	}
	if notifier.count("opportunity") == 0 || notifier.count("execution") != 1 {
		t.Fatalf("notifications = %v", notifier.events)
	}

	st := c.risk.Stats()
	if st.TotalTrades != 1 || st.Wins != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestScanOnlyModeNeverTrades(t *testing.T) {
	m := arbMarket("m1")
	quotes := &fakeQuotes{
		quotes: map[string]domain.Quote{
			"m1-yes": {Bid: 0.42, Ask: 0.45},
			"m1-no":  {Bid: 0.47, Ask: 0.50},
		},
		books: map[string]*domain.OrderBook{
			"m1-yes": deepBook("m1-yes", 0.45),
			"m1-no":  deepBook("m1-no", 0.50),
		},
	}
	gw := &fakeGateway{}
	c, oppStore, _, _ := newController(t,
		&fakeMarkets{markets: []domain.Market{m}}, quotes, gw,
		Config{ScanInterval: time.Second, Execute: false},
	)

	c.ScanPass(context.Background())

	if gw.posted != 0 {
		t.Fatalf("scan-only mode posted %d orders", gw.posted)
	}
	if len(oppStore.inserted) == 0 {
		t.Fatal("scan-only mode must still journal opportunities")
	}
	if c.ActiveCount() == 0 {
		t.Fatal("opportunity should stay in the working set")
	}
}

func TestFetchMarketsRetries(t *testing.T) {
	markets := &fakeMarkets{markets: []domain.Market{arbMarket("m1")}, failures: 2}
	c, _, _, _ := newController(t, markets,
		&fakeQuotes{quotes: map[string]domain.Quote{}}, &fakeGateway{},
		Config{ScanInterval: time.Second, RetryBackoff: time.Millisecond},
	)

	got, err := c.fetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed on the third attempt: %v", err)
	}
	if len(got) != 1 || markets.calls != 3 {
		t.Fatalf("markets = %d, calls = %d", len(got), markets.calls)
	}
}

func TestFetchMarketsGivesUpAfterRetries(t *testing.T) {
	markets := &fakeMarkets{failures: 10}
	c, oppStore, _, _ := newController(t, markets,
		&fakeQuotes{quotes: map[string]domain.Quote{}}, &fakeGateway{},
		Config{ScanInterval: time.Second, RetryBackoff: time.Millisecond},
	)

	// The pass swallows the error and journals nothing.
	c.ScanPass(context.Background())
	if markets.calls != 3 {
		t.Fatalf("calls = %d, want exactly 3 attempts", markets.calls)
	}
	if len(oppStore.inserted) != 0 {
		t.Fatal("failed pass must not journal opportunities")
	}
}

func TestPruneDropsStaleOpportunities(t *testing.T) {
	c, _, _, _ := newController(t, &fakeMarkets{},
		&fakeQuotes{quotes: map[string]domain.Quote{}}, &fakeGateway{},
		Config{ScanInterval: time.Second},
	)

	c.active["old"] = domain.Opportunity{ID: "old", CreatedAt: time.Now().Add(-2 * time.Minute)}
	c.active["fresh"] = domain.Opportunity{ID: "fresh", CreatedAt: time.Now()}

	c.prune()

	if c.ActiveCount() != 1 {
		t.Fatalf("active = %d, want the stale opportunity dropped", c.ActiveCount())
	}
	if _, ok := c.active["fresh"]; !ok {
		t.Fatal("fresh opportunity was pruned")
	}
}

func TestEmergencyStopHaltsExecution(t *testing.T) {
	m := arbMarket("m1")
	quotes := &fakeQuotes{
		quotes: map[string]domain.Quote{
			"m1-yes": {Bid: 0.42, Ask: 0.45},
			"m1-no":  {Bid: 0.47, Ask: 0.50},
		},
		books: map[string]*domain.OrderBook{
			"m1-yes": deepBook("m1-yes", 0.45),
			"m1-no":  deepBook("m1-no", 0.50),
		},
	}
	gw := &fakeGateway{}
	c, _, _, notifier := newController(t,
		&fakeMarkets{markets: []domain.Market{m}}, quotes, gw,
		Config{ScanInterval: time.Second, Execute: true},
	)

	// Push daily P&L past 80% of the 100 limit.
	c.risk.RecordTrade(-85, true)

	c.ScanPass(context.Background())
	if gw.posted != 0 {
		t.Fatalf("emergency stop must halt trading, posted %d orders", gw.posted)
	}
	if notifier.count("emergency_stop") != 1 {
		t.Fatalf("emergency notifications = %d, want exactly 1", notifier.count("emergency_stop"))
	}

	// A second pass stays halted but does not notify again.
	c.ScanPass(context.Background())
	if notifier.count("emergency_stop") != 1 {
		t.Fatal("emergency stop must notify only once per engagement")
	}
}

func TestScaleLegs(t *testing.T) {
	opp := domain.Opportunity{
		RequiredCapital: 10,
		Trades: []domain.Trade{
			{TokenID: "a", Size: 4},
			{TokenID: "b", Size: 2},
		},
	}

	legs := scaleLegs(opp, 5)
	if legs[0].Size != 2 || legs[1].Size != 1 {
		t.Fatalf("halved capital must halve sizes, got %+v", legs)
	}

	legs = scaleLegs(opp, 10)
	if legs[0].Size != 4 || legs[1].Size != 2 {
		t.Fatalf("full approval must not resize, got %+v", legs)
	}
}

func TestTickSkippedWhileScanRunning(t *testing.T) {
	c, _, _, _ := newController(t, &fakeMarkets{},
		&fakeQuotes{quotes: map[string]domain.Quote{}}, &fakeGateway{},
		Config{ScanInterval: time.Second},
	)

	if !c.scanning.CompareAndSwap(false, true) {
		t.Fatal("guard should start clear")
	}
	// With the guard held, tryScan must not start another pass.
	c.tryScan(context.Background())
	if !c.scanning.Load() {
		t.Fatal("guard must stay held")
	}
	c.scanning.Store(false)
}
