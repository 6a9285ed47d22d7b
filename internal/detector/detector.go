package detector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// Config holds detector tuning. BatchSize and BatchPause are load-shedding
// knobs against the quote source, not protocol invariants.
type Config struct {
	MinProfitPct float64
	BatchSize    int
	BatchPause   time.Duration
}

// Detector runs the enabled strategies over a batch of markets and returns
// every opportunity found. A single market's failure never aborts the scan.
type Detector struct {
	quotes domain.QuoteSource
	market []MarketStrategy
	pair   []PairStrategy
	cfg    Config
	logger *slog.Logger
}

// New creates a Detector with the given strategy set.
func New(quotes domain.QuoteSource, market []MarketStrategy, pair []PairStrategy, cfg Config, logger *slog.Logger) *Detector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = 100 * time.Millisecond
	}
	return &Detector{
		quotes: quotes,
		market: market,
		pair:   pair,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "detector")),
	}
}

// Scan processes markets in fixed-size concurrent batches with a short
// inter-batch pause, then runs pair strategies over the probability
// snapshots collected along the way.
func (d *Detector) Scan(ctx context.Context, markets []domain.Market) []domain.Opportunity {
	var (
		mu    sync.Mutex
		opps  []domain.Opportunity
		probs []MarketProb
	)

	for start := 0; start < len(markets); start += d.cfg.BatchSize {
		end := start + d.cfg.BatchSize
		if end > len(markets) {
			end = len(markets)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, m := range markets[start:end] {
			m := m
			g.Go(func() error {
				found, prob, err := d.scanMarket(gctx, m)
				if err != nil {
					d.logger.WarnContext(gctx, "market scan failed",
						slog.String("market_id", m.ID),
						slog.String("error", err.Error()),
					)
					return nil // per-market failures never abort the batch
				}
				mu.Lock()
				opps = append(opps, found...)
				if prob != nil {
					probs = append(probs, *prob)
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if end < len(markets) {
			select {
			case <-ctx.Done():
				return opps
			case <-time.After(d.cfg.BatchPause):
			}
		}
	}

	opps = append(opps, d.scanPairs(ctx, probs)...)

	d.logger.InfoContext(ctx, "scan complete",
		slog.Int("markets", len(markets)),
		slog.Int("opportunities", len(opps)),
	)
	return opps
}

// scanMarket fetches quotes for every token of one market and runs the
// per-market strategies. Tokens with no quote data are skipped for the pass.
func (d *Detector) scanMarket(ctx context.Context, m domain.Market) ([]domain.Opportunity, *MarketProb, error) {
	if !m.Tradable() {
		return nil, nil, nil
	}

	quotes := make(map[string]domain.Quote, len(m.Tokens))
	for _, tok := range m.Tokens {
		q, err := d.quotes.BestPrices(ctx, tok.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("best prices %s: %w", tok.ID, err)
		}
		if q == nil {
			continue // no data: skip this instrument for this pass
		}
		quotes[tok.ID] = *q
	}

	var opps []domain.Opportunity
	for _, strat := range d.market {
		opps = append(opps, strat.Detect(ctx, m, quotes)...)
	}

	var prob *MarketProb
	if m.IsBinary() {
		if q, ok := quotes[yesToken(m).ID]; ok && q.Mid() > 0 {
			prob = &MarketProb{Market: m, Probability: q.Mid()}
		}
	}
	return opps, prob, nil
}

// scanPairs runs pair strategies over every unordered market pair.
func (d *Detector) scanPairs(ctx context.Context, probs []MarketProb) []domain.Opportunity {
	if len(d.pair) == 0 || len(probs) < 2 {
		return nil
	}
	var opps []domain.Opportunity
	for i := 0; i < len(probs); i++ {
		for j := i + 1; j < len(probs); j++ {
			for _, strat := range d.pair {
				opps = append(opps, strat.DetectPair(ctx, probs[i], probs[j])...)
			}
		}
	}
	return opps
}
