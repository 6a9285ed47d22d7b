// Package risk gates detected opportunities against position sizing and
// loss limits, and owns the process-lifetime position and P&L state.
package risk

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

const (
	// highRiskMinProfitPct is the stricter profit floor applied to
	// HIGH-risk opportunities.
	highRiskMinProfitPct = 5.0
	// balanceWarnFraction triggers a non-blocking warning when a single
	// position would consume more than this share of the balance.
	balanceWarnFraction = 0.20
	// emergencyStopFraction of the daily loss limit engages the early
	// warning before the hard cutoff used in the approval check.
	emergencyStopFraction = 0.80
)

// Config holds the risk policy limits.
type Config struct {
	Enabled          bool
	DailyLossLimit   float64
	MaxPositionSize  float64
	MinPositionSize  float64
	MaxOpenPositions int
}

// Decision is the outcome of evaluating one opportunity. AdjustedSize is the
// approved capital, possibly capped below the requested amount.
type Decision struct {
	Approved     bool
	Reason       string
	AdjustedSize float64
}

// Evaluator is the gatekeeper between detection and execution. Positions and
// stats persist for the process lifetime; they are mutated only through the
// controller goroutine, the mutex exists for read paths like status reporting.
type Evaluator struct {
	mu        sync.Mutex
	cfg       Config
	positions map[string]domain.Position
	stats     domain.TradingStats
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Evaluator with empty state.
func New(cfg Config, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		cfg:       cfg,
		positions: make(map[string]domain.Position),
		stats:     domain.TradingStats{LastReset: time.Now().UTC()},
		logger:    logger.With(slog.String("component", "risk")),
		now:       time.Now,
	}
}

// Evaluate applies the policy checks in a fixed order; the first failing
// check determines the rejection reason.
func (e *Evaluator) Evaluate(opp domain.Opportunity, balance domain.Balance) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	// 1. Signal-only opportunities are never auto-executed.
	if !opp.Executable() {
		return Decision{Reason: "signal-only opportunity has no trade legs"}
	}

	// 2. Risk management disabled: approve unconditionally.
	if !e.cfg.Enabled {
		return Decision{Approved: true, AdjustedSize: opp.RequiredCapital}
	}

	// 3. Daily loss limit already reached.
	if math.Abs(e.stats.DailyPnL) >= e.cfg.DailyLossLimit {
		return Decision{Reason: fmt.Sprintf("daily loss limit reached: %.2f of %.2f",
			math.Abs(e.stats.DailyPnL), e.cfg.DailyLossLimit)}
	}

	// 4. Insufficient balance.
	if balance.QuoteCurrency < opp.RequiredCapital {
		return Decision{Reason: fmt.Sprintf("insufficient balance: %.2f < %.2f required",
			balance.QuoteCurrency, opp.RequiredCapital)}
	}

	// 5. Oversized positions are capped, not rejected.
	if opp.RequiredCapital > e.cfg.MaxPositionSize {
		return Decision{Approved: true, AdjustedSize: e.cfg.MaxPositionSize}
	}

	// 6. Dust positions are not worth the fees.
	if opp.RequiredCapital < e.cfg.MinPositionSize {
		return Decision{Reason: fmt.Sprintf("position %.4f below minimum %.4f",
			opp.RequiredCapital, e.cfg.MinPositionSize)}
	}

	// 7. Concurrency cap on open positions.
	if len(e.positions) >= e.cfg.MaxOpenPositions {
		return Decision{Reason: fmt.Sprintf("open position cap reached (%d/%d)",
			len(e.positions), e.cfg.MaxOpenPositions)}
	}

	// 8. HIGH-risk opportunities clear a stricter profit bar.
	if opp.Risk == domain.RiskHigh && opp.ProfitPct < highRiskMinProfitPct {
		return Decision{Reason: fmt.Sprintf("high-risk profit %.2f%% below %.1f%% floor",
			opp.ProfitPct, highRiskMinProfitPct)}
	}

	if opp.RequiredCapital > balanceWarnFraction*balance.QuoteCurrency {
		e.logger.Warn("position consumes large balance share",
			slog.String("opportunity_id", opp.ID),
			slog.Float64("required", opp.RequiredCapital),
			slog.Float64("balance", balance.QuoteCurrency),
		)
	}
	return Decision{Approved: true, AdjustedSize: opp.RequiredCapital}
}

// RecordTrade updates the cumulative counters. On success the profit is
// routed into the gross accumulators by sign and the derived figures are
// recomputed; on failure only the failure counter moves.
func (e *Evaluator) RecordTrade(profit float64, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !success {
		e.stats.Failures++
		return
	}

	e.stats.TotalTrades++
	if profit >= 0 {
		e.stats.Wins++
		e.stats.GrossProfit += profit
	} else {
		e.stats.Losses++
		e.stats.GrossLoss += -profit
	}
	e.stats.DailyPnL += profit
	e.stats.NetProfit = e.stats.GrossProfit - e.stats.GrossLoss
	e.stats.WinRate = float64(e.stats.Wins) / float64(e.stats.TotalTrades) * 100
	e.stats.AvgProfit = e.stats.NetProfit / float64(e.stats.TotalTrades)
}

// ShouldEmergencyStop reports whether absolute daily P&L has reached 80% of
// the daily loss limit. An early warning below the hard cutoff in Evaluate.
func (e *Evaluator) ShouldEmergencyStop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.cfg.Enabled || e.cfg.DailyLossLimit <= 0 {
		return false
	}
	return math.Abs(e.stats.DailyPnL) >= emergencyStopFraction*e.cfg.DailyLossLimit
}

// ResetDailyStats clears the daily P&L accumulator once 24 hours have
// elapsed since the last reset. Cumulative stats are untouched.
func (e *Evaluator) ResetDailyStats() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	if now.Sub(e.stats.LastReset) < 24*time.Hour {
		return
	}
	e.stats.DailyPnL = 0
	e.stats.LastReset = now
	e.logger.Info("daily stats reset")
}

// OpenPosition records a new position after a fill.
func (e *Evaluator) OpenPosition(p domain.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions[p.Key()] = p
}

// ClosePosition removes a position and returns its realized profit.
// ok is false when no such position exists.
func (e *Evaluator) ClosePosition(marketID, tokenID string, exitPrice float64) (profit float64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := marketID + ":" + tokenID
	p, ok := e.positions[key]
	if !ok {
		return 0, false
	}
	delete(e.positions, key)
	return (exitPrice - p.EntryPrice) * p.Size, true
}

// Positions returns a copy of the open positions.
func (e *Evaluator) Positions() []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p)
	}
	return out
}

// Stats returns a snapshot of the cumulative counters.
func (e *Evaluator) Stats() domain.TradingStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
