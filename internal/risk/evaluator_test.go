package risk

import (
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultConfig() Config {
	return Config{
		Enabled:          true,
		DailyLossLimit:   100,
		MaxPositionSize:  50,
		MinPositionSize:  1,
		MaxOpenPositions: 5,
	}
}

func executableOpp(capital, profitPct float64, risk domain.RiskTier) domain.Opportunity {
	return domain.Opportunity{
		ID:              "opp-1",
		Strategy:        domain.StrategyPriceImbalance,
		MarketID:        "m1",
		RequiredCapital: capital,
		ExpectedProfit:  capital * profitPct / 100,
		ProfitPct:       profitPct,
		Trades: []domain.Trade{
			{MarketID: "m1", TokenID: "t1", Side: domain.OrderSideBuy, Type: domain.OrderTypeLimit, Price: 0.5, Size: 1},
		},
		CreatedAt: time.Now().UTC(),
		Risk:      risk,
	}
}

func TestEvaluateSignalOnlyRejected(t *testing.T) {
	e := New(defaultConfig(), testLogger())
	opp := executableOpp(10, 2, domain.RiskLow)
	opp.Trades = nil

	d := e.Evaluate(opp, domain.Balance{QuoteCurrency: 1000})
	if d.Approved {
		t.Fatal("signal-only opportunity must never be approved")
	}
	if !strings.Contains(d.Reason, "signal-only") {
		t.Fatalf("reason = %q", d.Reason)
	}
}

func TestEvaluateDisabledApprovesUnconditionally(t *testing.T) {
	cfg := defaultConfig()
	cfg.Enabled = false
	e := New(cfg, testLogger())

	// Even with zero balance the disabled evaluator approves in full.
	d := e.Evaluate(executableOpp(10, 2, domain.RiskLow), domain.Balance{})
	if !d.Approved || d.AdjustedSize != 10 {
		t.Fatalf("decision = %+v", d)
	}
}

func TestEvaluateDailyLossFiresBeforeBalance(t *testing.T) {
	e := New(defaultConfig(), testLogger())
	e.RecordTrade(-100, true) // at the daily loss limit

	// Balance is also insufficient; ordering demands the daily-loss reason.
	d := e.Evaluate(executableOpp(10, 2, domain.RiskLow), domain.Balance{QuoteCurrency: 5})
	if d.Approved {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(d.Reason, "daily loss limit") {
		t.Fatalf("daily-loss check must fire first, reason = %q", d.Reason)
	}
}

func TestEvaluateInsufficientBalance(t *testing.T) {
	e := New(defaultConfig(), testLogger())
	d := e.Evaluate(executableOpp(10, 2, domain.RiskLow), domain.Balance{QuoteCurrency: 5})
	if d.Approved || !strings.Contains(d.Reason, "insufficient balance") {
		t.Fatalf("decision = %+v", d)
	}
}

func TestEvaluateOversizedIsCappedNotRejected(t *testing.T) {
	e := New(defaultConfig(), testLogger())
	d := e.Evaluate(executableOpp(80, 2, domain.RiskLow), domain.Balance{QuoteCurrency: 1000})
	if !d.Approved {
		t.Fatalf("oversized position must be approved capped, got %+v", d)
	}
	if d.AdjustedSize != 50 {
		t.Fatalf("adjusted size = %f, want max position size 50", d.AdjustedSize)
	}
}

func TestEvaluateBelowMinimumRejected(t *testing.T) {
	e := New(defaultConfig(), testLogger())
	d := e.Evaluate(executableOpp(0.5, 2, domain.RiskLow), domain.Balance{QuoteCurrency: 1000})
	if d.Approved || !strings.Contains(d.Reason, "below minimum") {
		t.Fatalf("decision = %+v", d)
	}
}

func TestEvaluateOpenPositionCap(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxOpenPositions = 2
	e := New(cfg, testLogger())
	e.OpenPosition(domain.Position{MarketID: "a", TokenID: "t", Size: 1})
	e.OpenPosition(domain.Position{MarketID: "b", TokenID: "t", Size: 1})

	d := e.Evaluate(executableOpp(10, 2, domain.RiskLow), domain.Balance{QuoteCurrency: 1000})
	if d.Approved || !strings.Contains(d.Reason, "position cap") {
		t.Fatalf("decision = %+v", d)
	}
}

func TestEvaluateHighRiskProfitFloor(t *testing.T) {
	e := New(defaultConfig(), testLogger())

	d := e.Evaluate(executableOpp(10, 3, domain.RiskHigh), domain.Balance{QuoteCurrency: 1000})
	if d.Approved || !strings.Contains(d.Reason, "high-risk") {
		t.Fatalf("decision = %+v", d)
	}

	d = e.Evaluate(executableOpp(10, 6, domain.RiskHigh), domain.Balance{QuoteCurrency: 1000})
	if !d.Approved {
		t.Fatalf("6%% high-risk opportunity should pass, got %+v", d)
	}
}

func TestEvaluateApprovesFullSize(t *testing.T) {
	e := New(defaultConfig(), testLogger())
	d := e.Evaluate(executableOpp(10, 2, domain.RiskMedium), domain.Balance{QuoteCurrency: 1000})
	if !d.Approved || d.AdjustedSize != 10 {
		t.Fatalf("decision = %+v", d)
	}
}

func TestRecordTradeAccounting(t *testing.T) {
	e := New(defaultConfig(), testLogger())

	e.RecordTrade(10, true)
	e.RecordTrade(-4, true)
	e.RecordTrade(0, false) // failure: only the failure counter moves

	st := e.Stats()
	if st.TotalTrades != 2 {
		t.Fatalf("total trades = %d, want 2", st.TotalTrades)
	}
	if st.Failures != 1 {
		t.Fatalf("failures = %d, want 1", st.Failures)
	}
	if st.GrossProfit != 10 || st.GrossLoss != 4 {
		t.Fatalf("gross = %f/%f", st.GrossProfit, st.GrossLoss)
	}
	if st.NetProfit != 6 {
		t.Fatalf("net = %f, want 6", st.NetProfit)
	}
	if st.WinRate != 50 {
		t.Fatalf("win rate = %f, want 50", st.WinRate)
	}
	if st.AvgProfit != 3 {
		t.Fatalf("avg profit = %f, want 3", st.AvgProfit)
	}
	if math.Abs(st.DailyPnL-6) > 1e-9 {
		t.Fatalf("daily pnl = %f, want 6", st.DailyPnL)
	}
}

func TestShouldEmergencyStop(t *testing.T) {
	e := New(defaultConfig(), testLogger())
	if e.ShouldEmergencyStop() {
		t.Fatal("fresh evaluator must not stop")
	}
	e.RecordTrade(-79, true)
	if e.ShouldEmergencyStop() {
		t.Fatal("79 of 100 limit is below the 80% early-warning bar")
	}
	e.RecordTrade(-1, true)
	if !e.ShouldEmergencyStop() {
		t.Fatal("80 of 100 limit must engage the emergency stop")
	}
}

func TestResetDailyStats(t *testing.T) {
	e := New(defaultConfig(), testLogger())
	e.RecordTrade(-50, true)

	// Too early: nothing changes.
	e.ResetDailyStats()
	if e.Stats().DailyPnL != -50 {
		t.Fatalf("daily pnl reset too early: %f", e.Stats().DailyPnL)
	}

	e.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	e.ResetDailyStats()
	st := e.Stats()
	if st.DailyPnL != 0 {
		t.Fatalf("daily pnl = %f, want 0 after reset", st.DailyPnL)
	}
	if st.NetProfit != -50 {
		t.Fatalf("cumulative stats must survive the reset, net = %f", st.NetProfit)
	}
}

func TestPositionLifecycle(t *testing.T) {
	e := New(defaultConfig(), testLogger())
	e.OpenPosition(domain.Position{
		MarketID: "m1", TokenID: "t1", Size: 2, EntryPrice: 0.40,
		OpenedAt: time.Now().UTC(),
	})
	if len(e.Positions()) != 1 {
		t.Fatalf("positions = %d", len(e.Positions()))
	}

	profit, ok := e.ClosePosition("m1", "t1", 0.55)
	if !ok {
		t.Fatal("expected close to succeed")
	}
	if math.Abs(profit-0.30) > 1e-9 {
		t.Fatalf("profit = %f, want 0.30", profit)
	}
	if len(e.Positions()) != 0 {
		t.Fatal("position not removed on close")
	}

	if _, ok := e.ClosePosition("m1", "t1", 0.55); ok {
		t.Fatal("double close must report ok=false")
	}
}
