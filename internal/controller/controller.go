// Package controller drives the scan cycle: fetch markets, detect
// opportunities, gate them through risk, and hand approved batches to the
// executor on a fixed interval.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscan/internal/detector"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/executor"
	"github.com/alanyoungcy/arbscan/internal/risk"
)

const (
	defaultOpportunityMaxAge = 60 * time.Second
	defaultFetchRetries      = 3
	defaultRetryBackoff      = time.Second
	retryBackoffFactor       = 1.5
)

// Notifier is the alerting surface the controller needs. Satisfied by
// notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the controller loop tuning.
type Config struct {
	// ScanInterval is the fixed period between scan passes.
	ScanInterval time.Duration
	// Category optionally restricts the market listing.
	Category string
	// Execute enables trading; when false the controller only detects and
	// journals opportunities.
	Execute bool
	// OpportunityMaxAge is how long a detected opportunity stays actionable.
	OpportunityMaxAge time.Duration
	// FetchRetries is the attempt count for the market listing call.
	FetchRetries int
	// RetryBackoff is the initial delay between listing attempts; it grows
	// by half on every retry.
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.OpportunityMaxAge <= 0 {
		c.OpportunityMaxAge = defaultOpportunityMaxAge
	}
	if c.FetchRetries <= 0 {
		c.FetchRetries = defaultFetchRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	return c
}

// Controller owns the detect-evaluate-execute cycle and the working set of
// live opportunities. Stores and the notifier are optional; a nil value
// disables that concern.
type Controller struct {
	markets   domain.MarketSource
	detector  *detector.Detector
	risk      *risk.Evaluator
	executor  *executor.Executor
	account   domain.AccountSource
	oppStore  domain.OpportunityStore
	execStore domain.ExecutionStore
	notifier  Notifier
	cfg       Config
	logger    *slog.Logger

	scanning atomic.Bool

	mu           sync.Mutex
	active       map[string]domain.Opportunity
	stopNotified bool
	now          func() time.Time
}

// Dependencies bundles the controller's collaborators.
type Dependencies struct {
	Markets   domain.MarketSource
	Detector  *detector.Detector
	Risk      *risk.Evaluator
	Executor  *executor.Executor
	Account   domain.AccountSource
	OppStore  domain.OpportunityStore
	ExecStore domain.ExecutionStore
	Notifier  Notifier
}

// New creates a Controller.
func New(deps Dependencies, cfg Config, logger *slog.Logger) *Controller {
	return &Controller{
		markets:   deps.Markets,
		detector:  deps.Detector,
		risk:      deps.Risk,
		executor:  deps.Executor,
		account:   deps.Account,
		oppStore:  deps.OppStore,
		execStore: deps.ExecStore,
		notifier:  deps.Notifier,
		cfg:       cfg.withDefaults(),
		logger:    logger.With(slog.String("component", "controller")),
		active:    make(map[string]domain.Opportunity),
		now:       time.Now,
	}
}

// Run executes one pass immediately, then keeps scanning on the configured
// interval until the context is cancelled. Passes run on their own goroutine
// so a slow pass never blocks shutdown; a tick arriving while the previous
// pass is still running is skipped.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "controller started",
		slog.Duration("scan_interval", c.cfg.ScanInterval),
		slog.Bool("execute", c.cfg.Execute),
	)
	defer c.logger.Info("controller stopped")

	c.tryScan(ctx)

	ticker := time.NewTicker(c.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.tryScan(ctx)
		}
	}
}

// tryScan starts a scan pass unless one is already in flight.
func (c *Controller) tryScan(ctx context.Context) {
	if !c.scanning.CompareAndSwap(false, true) {
		c.logger.Warn("previous scan still running, tick skipped")
		return
	}
	go func() {
		defer c.scanning.Store(false)
		c.ScanPass(ctx)
	}()
}

// ScanPass runs one full cycle. Errors are logged and absorbed: a failed pass
// leaves the loop intact for the next tick.
func (c *Controller) ScanPass(ctx context.Context) {
	start := c.now()
	c.risk.ResetDailyStats()

	markets, err := c.fetchMarkets(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "market fetch failed, pass skipped",
			slog.String("error", err.Error()))
		return
	}

	opps := c.detector.Scan(ctx, markets)
	c.absorb(ctx, opps)
	c.prune()

	if c.cfg.Execute {
		c.executePass(ctx)
	}

	c.logger.InfoContext(ctx, "scan pass complete",
		slog.Int("markets", len(markets)),
		slog.Int("new_opportunities", len(opps)),
		slog.Int("active_opportunities", c.ActiveCount()),
		slog.Duration("elapsed", c.now().Sub(start)),
	)
}

// fetchMarkets lists active markets with bounded retries and growing backoff.
func (c *Controller) fetchMarkets(ctx context.Context) ([]domain.Market, error) {
	backoff := c.cfg.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= c.cfg.FetchRetries; attempt++ {
		markets, err := c.markets.ListActiveMarkets(ctx, c.cfg.Category)
		if err == nil {
			return markets, nil
		}
		lastErr = err
		c.logger.WarnContext(ctx, "market listing failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.cfg.FetchRetries),
			slog.String("error", err.Error()),
		)
		if attempt == c.cfg.FetchRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * retryBackoffFactor)
	}
	return nil, fmt.Errorf("controller: list markets after %d attempts: %w",
		c.cfg.FetchRetries, lastErr)
}

// absorb journals newly detected opportunities and adds them to the working
// set. Store and notifier failures are logged and swallowed.
func (c *Controller) absorb(ctx context.Context, opps []domain.Opportunity) {
	for _, opp := range opps {
		c.mu.Lock()
		c.active[opp.ID] = opp
		c.mu.Unlock()

		c.logger.InfoContext(ctx, "opportunity detected",
			slog.String("opportunity_id", opp.ID),
			slog.String("strategy", string(opp.Strategy)),
			slog.String("market_id", opp.MarketID),
			slog.Float64("profit_pct", opp.ProfitPct),
			slog.String("risk", string(opp.Risk)),
			slog.Bool("executable", opp.Executable()),
		)

		if c.oppStore != nil {
			if err := c.oppStore.Insert(ctx, opp); err != nil {
				c.logger.WarnContext(ctx, "opportunity journal failed",
					slog.String("opportunity_id", opp.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if c.notifier != nil {
			msg := fmt.Sprintf("%s on %s: %s", opp.Strategy, opp.MarketID, opp.Description)
			if err := c.notifier.Notify(ctx, "opportunity", "Opportunity detected", msg); err != nil {
				c.logger.WarnContext(ctx, "opportunity notification failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// prune drops opportunities past their maximum age from the working set.
func (c *Controller) prune() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, opp := range c.active {
		if opp.Expired(now, c.cfg.OpportunityMaxAge) {
			delete(c.active, id)
		}
	}
}

// executePass walks the working set and executes every approved opportunity.
func (c *Controller) executePass(ctx context.Context) {
	if c.risk.ShouldEmergencyStop() {
		c.emergencyStop(ctx)
		return
	}

	balance, err := c.account.Balance(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "balance fetch failed, execution skipped",
			slog.String("error", err.Error()))
		return
	}

	for _, opp := range c.snapshot() {
		if !opp.Executable() || opp.Expired(c.now(), c.cfg.OpportunityMaxAge) {
			continue
		}

		decision := c.risk.Evaluate(opp, balance)
		if !decision.Approved {
			c.logger.DebugContext(ctx, "opportunity rejected",
				slog.String("opportunity_id", opp.ID),
				slog.String("reason", decision.Reason),
			)
			continue
		}

		c.execute(ctx, opp, decision)

		// Re-check after every batch: a losing fill can engage the stop
		// mid-pass.
		if c.risk.ShouldEmergencyStop() {
			c.emergencyStop(ctx)
			return
		}
	}
}

// execute runs one approved opportunity through the atomic executor and
// records the outcome.
func (c *Controller) execute(ctx context.Context, opp domain.Opportunity, decision risk.Decision) {
	legs := scaleLegs(opp, decision.AdjustedSize)
	results := c.executor.ExecuteBatch(ctx, legs)

	success := true
	for _, r := range results {
		if r.Status == domain.OrderStatusFailed {
			success = false
			break
		}
	}

	var profit float64
	if success {
		profit = opp.ExpectedProfit * decision.AdjustedSize / opp.RequiredCapital
	}
	c.risk.RecordTrade(profit, success)

	if success {
		for i, r := range results {
			if legs[i].Side != domain.OrderSideBuy {
				continue
			}
			c.risk.OpenPosition(domain.Position{
				MarketID:   legs[i].MarketID,
				TokenID:    legs[i].TokenID,
				Size:       r.FilledSize,
				EntryPrice: r.AvgPrice,
				OpenedAt:   c.now().UTC(),
			})
		}
		c.mu.Lock()
		delete(c.active, opp.ID)
		c.mu.Unlock()

		if c.oppStore != nil {
			if err := c.oppStore.MarkExecuted(ctx, opp.ID); err != nil {
				c.logger.WarnContext(ctx, "mark executed failed",
					slog.String("opportunity_id", opp.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	c.journalExecution(ctx, opp, legs, results, profit, success)

	c.logger.InfoContext(ctx, "execution finished",
		slog.String("opportunity_id", opp.ID),
		slog.Bool("success", success),
		slog.Float64("profit", profit),
	)
	if c.notifier != nil {
		title := "Trade executed"
		if !success {
			title = "Trade failed"
		}
		msg := fmt.Sprintf("%s on %s, profit %.4f", opp.Strategy, opp.MarketID, profit)
		if err := c.notifier.Notify(ctx, "execution", title, msg); err != nil {
			c.logger.WarnContext(ctx, "execution notification failed",
				slog.String("error", err.Error()))
		}
	}
}

// journalExecution persists the batch outcome. Best-effort.
func (c *Controller) journalExecution(ctx context.Context, opp domain.Opportunity, legs []domain.Trade, results []domain.OrderResult, profit float64, success bool) {
	if c.execStore == nil {
		return
	}
	rec := domain.ExecutionRecord{
		ID:            uuid.New().String(),
		OpportunityID: opp.ID,
		Profit:        profit,
		Success:       success,
		ExecutedAt:    c.now().UTC(),
	}
	for i, r := range results {
		rec.Legs = append(rec.Legs, domain.LegOutcome{
			OrderID:  r.OrderID,
			MarketID: legs[i].MarketID,
			TokenID:  legs[i].TokenID,
			Side:     legs[i].Side,
			Price:    r.AvgPrice,
			Size:     r.FilledSize,
			Status:   r.Status,
		})
	}
	if err := c.execStore.Insert(ctx, rec); err != nil {
		c.logger.WarnContext(ctx, "execution journal failed",
			slog.String("opportunity_id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
}

// emergencyStop logs and notifies once per engagement.
func (c *Controller) emergencyStop(ctx context.Context) {
	c.mu.Lock()
	already := c.stopNotified
	c.stopNotified = true
	c.mu.Unlock()

	c.logger.ErrorContext(ctx, "emergency stop engaged, trading halted",
		slog.Float64("daily_pnl", c.risk.Stats().DailyPnL))
	if already || c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, "emergency_stop", "Emergency stop",
		"daily loss approaching limit, trading halted"); err != nil {
		c.logger.WarnContext(ctx, "emergency notification failed",
			slog.String("error", err.Error()))
	}
}

// Opportunities returns a copy of the live working set, newest first.
func (c *Controller) Opportunities() []domain.Opportunity {
	out := c.snapshot()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ActiveCount returns the size of the live working set.
func (c *Controller) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

func (c *Controller) snapshot() []domain.Opportunity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Opportunity, 0, len(c.active))
	for _, opp := range c.active {
		out = append(out, opp)
	}
	return out
}

// scaleLegs resizes the legs when risk approved less capital than requested.
func scaleLegs(opp domain.Opportunity, approved float64) []domain.Trade {
	legs := make([]domain.Trade, len(opp.Trades))
	copy(legs, opp.Trades)
	if opp.RequiredCapital <= 0 || approved >= opp.RequiredCapital {
		return legs
	}
	factor := approved / opp.RequiredCapital
	for i := range legs {
		legs[i].Size *= factor
	}
	return legs
}
