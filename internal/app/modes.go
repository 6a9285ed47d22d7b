package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscan/internal/controller"
	"github.com/alanyoungcy/arbscan/internal/detector"
	"github.com/alanyoungcy/arbscan/internal/executor"
	"github.com/alanyoungcy/arbscan/internal/feed"
	"github.com/alanyoungcy/arbscan/internal/history"
	"github.com/alanyoungcy/arbscan/internal/risk"
)

const (
	// maxFeedTokens caps the websocket subscription size; beyond this the
	// REST fallback with jitter covers the tail.
	maxFeedTokens = 200

	// tradeLockTTL is the lifetime of the single-trader lock. Long on
	// purpose: the conditional unlock releases it on clean shutdown, the
	// TTL only recovers from a crashed holder.
	tradeLockTTL = 12 * time.Hour

	// archiveInterval is how often the previous day's reports are
	// (re-)attempted. Uploads are idempotent, so retrying is free.
	archiveInterval = time.Hour

	// monitorInterval paces the journal summary in monitor mode.
	monitorInterval = time.Minute
)

// ScanMode detects and journals opportunities without trading.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in scan mode")

	ctrl := a.buildController(deps, false)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	a.startFeed(gctx, g, deps)
	a.startArchiver(gctx, g, deps)
	return g.Wait()
}

// TradeMode detects, evaluates, and executes opportunities. When Redis is
// configured it takes a distributed lock first so only one instance trades
// against the account.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in trade mode")

	if deps.Account == nil {
		return fmt.Errorf("app: trade mode requires a wallet")
	}

	if deps.Locks != nil {
		unlock, err := deps.Locks.Acquire(ctx, "trader", tradeLockTTL)
		if err != nil {
			return fmt.Errorf("app: acquire trader lock: %w", err)
		}
		defer unlock()
		a.logger.InfoContext(ctx, "trader lock acquired")
	}

	ctrl := a.buildController(deps, true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	a.startFeed(gctx, g, deps)
	a.startArchiver(gctx, g, deps)
	return g.Wait()
}

// MonitorMode observes the journals without scanning or trading: it
// periodically logs recent journal activity and the archived report
// inventory. Useful next to a trading instance.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in monitor mode")

	if deps.OppStore == nil || deps.ExecStore == nil {
		return fmt.Errorf("app: monitor mode requires postgres")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.monitorLoop(gctx, deps) })
	a.startFeed(gctx, g, deps)
	a.startArchiver(gctx, g, deps)
	return g.Wait()
}

// buildController assembles the detect-evaluate-execute pipeline from the
// configured strategies.
func (a *App) buildController(deps *Dependencies, execute bool) *controller.Controller {
	cfg := a.cfg

	var (
		market []detector.MarketStrategy
		pair   []detector.PairStrategy
	)
	for _, name := range cfg.Detector.Strategies {
		switch name {
		case "price_imbalance":
			market = append(market, detector.NewImbalance(cfg.Detector.MinProfitPct))
		case "cross_market":
			pair = append(pair, detector.NewCrossMarket(cfg.Detector.MinProfitPct))
		case "mean_reversion":
			market = append(market, detector.NewMeanReversion(history.New(), cfg.Detector.MinProfitPct))
		}
	}

	det := detector.New(deps.Quotes, market, pair, detector.Config{
		MinProfitPct: cfg.Detector.MinProfitPct,
		BatchSize:    cfg.Detector.BatchSize,
		BatchPause:   cfg.Detector.BatchPause.Duration,
	}, a.logger)

	evaluator := risk.New(risk.Config{
		Enabled:          cfg.Risk.Enabled,
		DailyLossLimit:   cfg.Risk.DailyLossLimit,
		MaxPositionSize:  cfg.Risk.MaxPositionSize,
		MinPositionSize:  cfg.Risk.MinPositionSize,
		MaxOpenPositions: cfg.Risk.MaxOpenPositions,
	}, a.logger)

	exec := executor.New(deps.Quotes, deps.Gateway, executor.Config{
		MaxSlippage: cfg.Executor.MaxSlippage,
	}, a.logger)

	return controller.New(controller.Dependencies{
		Markets:   deps.Markets,
		Detector:  det,
		Risk:      evaluator,
		Executor:  exec,
		Account:   deps.Account,
		OppStore:  deps.OppStore,
		ExecStore: deps.ExecStore,
		Notifier:  notifierOrNil(deps),
	}, controller.Config{
		ScanInterval:      cfg.Scan.Interval.Duration,
		Category:          cfg.Detector.Category,
		Execute:           execute,
		OpportunityMaxAge: cfg.Scan.OpportunityMaxAge.Duration,
		FetchRetries:      cfg.Scan.FetchRetries,
		RetryBackoff:      cfg.Scan.RetryBackoff.Duration,
	}, a.logger)
}

// notifierOrNil avoids handing the controller a typed-nil interface value.
func notifierOrNil(deps *Dependencies) controller.Notifier {
	if deps.Notifier == nil {
		return nil
	}
	return deps.Notifier
}

// startFeed launches the websocket feed when it is enabled and a book cache
// exists for it to write into. The subscription set is taken from the
// current active market listing.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Feed.Enabled {
		return
	}
	if deps.Books == nil {
		a.logger.Warn("feed enabled but redis is not, feed skipped")
		return
	}

	g.Go(func() error {
		tokens, err := a.feedTokens(ctx, deps)
		if err != nil {
			// The REST path still works without the feed.
			a.logger.WarnContext(ctx, "feed token listing failed, feed disabled",
				slog.String("error", err.Error()))
			return nil
		}
		f := feed.New(
			a.cfg.Polymarket.WsHost+"/ws/market",
			tokens,
			deps.Books,
			deps.Prices,
			a.cfg.Feed.ReconnectWait.Duration,
			a.logger,
		)
		if err := f.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("app: feed: %w", err)
		}
		return ctx.Err()
	})
}

// feedTokens lists the active markets once and collects their tradable token
// IDs, capped at maxFeedTokens.
func (a *App) feedTokens(ctx context.Context, deps *Dependencies) ([]string, error) {
	markets, err := deps.Markets.ListActiveMarkets(ctx, a.cfg.Detector.Category)
	if err != nil {
		return nil, err
	}

	var tokens []string
	for _, m := range markets {
		if !m.Tradable() {
			continue
		}
		for _, t := range m.Tokens {
			tokens = append(tokens, t.ID)
			if len(tokens) == maxFeedTokens {
				return tokens, nil
			}
		}
	}
	return tokens, nil
}

// startArchiver launches the hourly report upload loop when archival is
// wired. Each pass archives the previous UTC day; uploads that already
// exist are skipped.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	g.Go(func() error {
		ticker := time.NewTicker(archiveInterval)
		defer ticker.Stop()

		for {
			day := time.Now().UTC().AddDate(0, 0, -1)
			n, err := deps.Archiver.ArchiveDay(ctx, day)
			if err != nil {
				a.logger.WarnContext(ctx, "report archival failed",
					slog.String("day", day.Format("2006-01-02")),
					slog.String("error", err.Error()))
			} else if n > 0 {
				a.logger.InfoContext(ctx, "reports archived",
					slog.String("day", day.Format("2006-01-02")),
					slog.Int64("records", n))
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
}

// monitorLoop logs a periodic summary of journal activity and, when object
// storage is wired, the archived report inventory.
func (a *App) monitorLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	var lastInventory time.Time
	for {
		opps, err := deps.OppStore.ListRecent(ctx, 10)
		if err != nil {
			a.logger.WarnContext(ctx, "opportunity journal read failed",
				slog.String("error", err.Error()))
		}
		execs, err := deps.ExecStore.ListRecent(ctx, 10)
		if err != nil {
			a.logger.WarnContext(ctx, "execution journal read failed",
				slog.String("error", err.Error()))
		}

		executable := 0
		for _, opp := range opps {
			if opp.Executable() {
				executable++
			}
		}
		a.logger.InfoContext(ctx, "journal summary",
			slog.Int("recent_opportunities", len(opps)),
			slog.Int("recent_executable", executable),
			slog.Int("recent_executions", len(execs)),
		)

		if deps.Reports != nil && time.Since(lastInventory) >= archiveInterval {
			objects, err := deps.Reports.List(ctx, "reports/")
			if err != nil {
				a.logger.WarnContext(ctx, "report inventory failed",
					slog.String("error", err.Error()))
			} else {
				var total int64
				for _, obj := range objects {
					total += obj.Size
				}
				a.logger.InfoContext(ctx, "report inventory",
					slog.Int("objects", len(objects)),
					slog.Int64("bytes", total))
			}
			lastInventory = time.Now()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
