package detector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

const (
	// probTolerance is the slack allowed before a nested-condition pair is
	// flagged as logically inconsistent.
	probTolerance = 0.02
	// similarity bounds for "related but not identical" question pairs.
	similarityLow  = 0.7
	similarityHigh = 0.95
)

// CrossMarket flags logically inconsistent pricing between pairs of markets:
// nested threshold conditions that violate CDF monotonicity, and near-
// duplicate questions in the same category whose prices diverge. Both
// variants are signal-only; execution spans two markets and stays manual.
type CrossMarket struct {
	minProfitPct float64
	now          func() time.Time
}

// NewCrossMarket creates the cross-market consistency strategy.
func NewCrossMarket(minProfitPct float64) *CrossMarket {
	return &CrossMarket{minProfitPct: minProfitPct, now: time.Now}
}

// Name returns the strategy identifier.
func (s *CrossMarket) Name() domain.StrategyKind { return domain.StrategyCrossMarket }

// DetectPair checks one ordered market pair for both inconsistency variants.
func (s *CrossMarket) DetectPair(_ context.Context, a, b MarketProb) []domain.Opportunity {
	var opps []domain.Opportunity
	if opp, ok := s.nestedCondition(a, b); ok {
		opps = append(opps, opp)
	}
	if opp, ok := s.priceDivergence(a, b); ok {
		opps = append(opps, opp)
	}
	return opps
}

// nestedCondition flags pairs sharing asset and direction with different
// thresholds where the stricter condition is priced as more likely. By
// monotonicity of the cumulative distribution, P(X >= high) <= P(X >= low)
// and P(X <= low) <= P(X <= high).
func (s *CrossMarket) nestedCondition(a, b MarketProb) (domain.Opportunity, bool) {
	ca, okA := ParseQuestion(a.Market.Question)
	cb, okB := ParseQuestion(b.Market.Question)
	if !okA || !okB {
		return domain.Opportunity{}, false
	}
	if ca.Asset != cb.Asset || ca.Direction != cb.Direction || ca.Threshold == cb.Threshold {
		return domain.Opportunity{}, false
	}

	higher, lower := a, b
	if cb.Threshold > ca.Threshold {
		higher, lower = b, a
	}
	// For "below" conditions the stricter market is the lower threshold.
	if ca.Direction == DirectionBelow {
		higher, lower = lower, higher
	}

	gap := higher.Probability - lower.Probability
	if gap <= probTolerance {
		return domain.Opportunity{}, false
	}
	gapPct := gap * 100
	if gapPct < s.minProfitPct {
		return domain.Opportunity{}, false
	}

	return domain.Opportunity{
		ID:       uuid.New().String(),
		Strategy: domain.StrategyCrossMarket,
		MarketID: higher.Market.ID,
		Description: fmt.Sprintf("nested condition mispricing: %q at %.3f vs %q at %.3f (gap %.1f%%)",
			higher.Market.Question, higher.Probability,
			lower.Market.Question, lower.Probability, gapPct),
		ExpectedProfit:  gap,
		ProfitPct:       gapPct,
		RequiredCapital: 1, // synthetic: per-share gap, manual two-market execution
		Trades:          nil,
		CreatedAt:       s.now().UTC(),
		Risk:            domain.RiskHigh,
	}, true
}

// priceDivergence flags same-category pairs whose question similarity falls
// in the "related but not identical" band while prices disagree by more than
// twice the profit threshold.
func (s *CrossMarket) priceDivergence(a, b MarketProb) (domain.Opportunity, bool) {
	if a.Market.Category == "" || a.Market.Category != b.Market.Category {
		return domain.Opportunity{}, false
	}
	sim := jaccard(a.Market.Question, b.Market.Question)
	if sim <= similarityLow || sim >= similarityHigh {
		return domain.Opportunity{}, false
	}

	gap := math.Abs(a.Probability - b.Probability)
	gapPct := gap * 100
	if gapPct <= 2*s.minProfitPct {
		return domain.Opportunity{}, false
	}

	return domain.Opportunity{
		ID:       uuid.New().String(),
		Strategy: domain.StrategyCrossMarket,
		MarketID: a.Market.ID,
		Description: fmt.Sprintf("related markets diverge: similarity %.2f, prices %.3f vs %.3f",
			sim, a.Probability, b.Probability),
		ExpectedProfit:  gap,
		ProfitPct:       gapPct,
		RequiredCapital: 1, // synthetic
		Trades:          nil,
		CreatedAt:       s.now().UTC(),
		Risk:            domain.RiskHigh,
	}, true
}
