// Package executor submits multi-leg trades as a single atomic unit:
// either every leg ends up filled, or no leg remains live on the exchange.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

const (
	// Price band the exchange accepts for outcome shares; slippage-adjusted
	// limits are clamped into it.
	minLimitPrice = 0.001
	maxLimitPrice = 0.999
)

// Config holds executor tuning.
type Config struct {
	// MaxSlippage is the tolerated fraction of price drift per leg, applied
	// in the direction that makes the order easier to fill.
	MaxSlippage float64
}

// Executor validates and executes trade leg batches atomically against the
// order gateway. It never lets an error escape a batch: every failure path
// yields a full set of per-leg FAILED results.
type Executor struct {
	quotes  domain.QuoteSource
	gateway domain.OrderGateway
	cfg     Config
	logger  *slog.Logger
}

// New creates an Executor.
func New(quotes domain.QuoteSource, gateway domain.OrderGateway, cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		quotes:  quotes,
		gateway: gateway,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// ExecuteBatch runs the full atomic pipeline: depth pre-validation, parallel
// order creation, parallel posting, and compensating cancellation when any
// leg fails. The returned slice always has one result per input leg.
func (e *Executor) ExecuteBatch(ctx context.Context, legs []domain.Trade) []domain.OrderResult {
	if len(legs) == 0 {
		return nil
	}

	// 1. Pre-validation: no order may be submitted unless every leg has
	// enough depth at its slippage-adjusted limit price.
	limits := make([]float64, len(legs))
	for i, leg := range legs {
		limits[i] = e.limitPrice(leg)
		if err := e.validateDepth(ctx, leg, limits[i]); err != nil {
			e.logger.WarnContext(ctx, "pre-validation failed, batch aborted",
				slog.Int("leg", i),
				slog.String("token_id", leg.TokenID),
				slog.String("error", err.Error()),
			)
			return e.failAll(legs, fmt.Sprintf("pre-validation leg %d: %v", i, err))
		}
	}

	// 2. Create all orders concurrently to minimise cross-leg price drift.
	handles := make([]*domain.OrderHandle, len(legs))
	g, gctx := errgroup.WithContext(ctx)
	for i, leg := range legs {
		i, leg := i, leg
		g.Go(func() error {
			h, err := e.gateway.CreateOrder(gctx, leg, limits[i])
			if err != nil {
				return fmt.Errorf("create leg %d: %w", i, err)
			}
			if h == nil {
				return fmt.Errorf("create leg %d: gateway refused order", i)
			}
			handles[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Nothing has been posted yet; there is nothing to compensate.
		return e.failAll(legs, err.Error())
	}

	// 3. Post all orders concurrently. Gateway errors become per-leg FAILED
	// results rather than aborting the wait.
	results := make([]domain.OrderResult, len(legs))
	var wg sync.WaitGroup
	for i := range legs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.gateway.PostOrder(ctx, *handles[i])
			if err != nil {
				res = domain.OrderResult{Status: domain.OrderStatusFailed, Err: err.Error()}
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	// 4. Compensation: any failed leg voids the whole batch.
	if anyFailed(results) {
		e.rollback(ctx, results)
		for i := range results {
			results[i].Status = domain.OrderStatusFailed
			results[i].Err = "atomic rollback"
		}
		e.logger.WarnContext(ctx, "batch rolled back", slog.Int("legs", len(legs)))
		return results
	}

	e.logger.InfoContext(ctx, "batch executed", slog.Int("legs", len(legs)))
	return results
}

// limitPrice applies the slippage allowance in the fill-friendly direction
// and clamps into the exchange's accepted price band.
func (e *Executor) limitPrice(leg domain.Trade) float64 {
	p := leg.Price
	switch leg.Side {
	case domain.OrderSideBuy:
		p *= 1 + e.cfg.MaxSlippage
	case domain.OrderSideSell:
		p *= 1 - e.cfg.MaxSlippage
	}
	if p < minLimitPrice {
		p = minLimitPrice
	}
	if p > maxLimitPrice {
		p = maxLimitPrice
	}
	return p
}

// validateDepth confirms the live book can fill the leg at-or-better-than
// the limit price.
func (e *Executor) validateDepth(ctx context.Context, leg domain.Trade, limit float64) error {
	book, err := e.quotes.OrderBook(ctx, leg.TokenID)
	if err != nil {
		return fmt.Errorf("order book: %w", err)
	}
	if book == nil {
		return domain.ErrNoData
	}
	if depth := book.DepthAtOrBetter(leg.Side, limit); depth < leg.Size {
		return fmt.Errorf("%w: %.2f available, %.2f required at %.4f",
			domain.ErrInsufficientDepth, depth, leg.Size, limit)
	}
	return nil
}

// rollback cancels every leg that is still live on the exchange. Cancel
// failures are logged and swallowed: the batch is already void.
func (e *Executor) rollback(ctx context.Context, results []domain.OrderResult) {
	for i, res := range results {
		if res.OrderID == "" || !res.Status.Live() {
			continue
		}
		if err := e.gateway.CancelOrder(ctx, res.OrderID); err != nil {
			e.logger.ErrorContext(ctx, "compensating cancel failed",
				slog.Int("leg", i),
				slog.String("order_id", res.OrderID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// failAll builds a uniformly FAILED result set carrying the batch error.
func (e *Executor) failAll(legs []domain.Trade, msg string) []domain.OrderResult {
	results := make([]domain.OrderResult, len(legs))
	for i := range legs {
		results[i] = domain.OrderResult{Status: domain.OrderStatusFailed, Err: msg}
	}
	return results
}

func anyFailed(results []domain.OrderResult) bool {
	for _, r := range results {
		if r.Status == domain.OrderStatusFailed {
			return true
		}
	}
	return false
}
