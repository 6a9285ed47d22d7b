package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// Imbalance detects buy-both arbitrage on binary markets: when the asks of
// both outcomes sum below 1.0, buying one share of each locks in the
// difference at settlement. A lower-confidence signal-only variant uses
// mid-prices instead of asks.
type Imbalance struct {
	minProfitPct float64
	now          func() time.Time
}

// NewImbalance creates the price-imbalance strategy with the given minimum
// net profit percentage.
func NewImbalance(minProfitPct float64) *Imbalance {
	return &Imbalance{minProfitPct: minProfitPct, now: time.Now}
}

// Name returns the strategy identifier.
func (s *Imbalance) Name() domain.StrategyKind { return domain.StrategyPriceImbalance }

// Detect checks ask-sum and mid-sum arbitrage for a binary market.
func (s *Imbalance) Detect(_ context.Context, m domain.Market, quotes map[string]domain.Quote) []domain.Opportunity {
	if !m.IsBinary() {
		return nil
	}
	qa, okA := quotes[m.Tokens[0].ID]
	qb, okB := quotes[m.Tokens[1].ID]
	if !okA || !okB {
		return nil
	}

	var opps []domain.Opportunity

	// Executable variant: sum of asks below 1.0.
	if qa.Ask > 0 && qb.Ask > 0 {
		askSum := qa.Ask + qb.Ask
		if askSum < 1.0 {
			gross := 1.0 - askSum
			fees := 2 * feeRate * askSum
			net := gross - fees
			netPct := net / askSum * 100
			if net > 0 && netPct >= s.minProfitPct {
				opps = append(opps, domain.Opportunity{
					ID:       uuid.New().String(),
					Strategy: domain.StrategyPriceImbalance,
					MarketID: m.ID,
					Description: fmt.Sprintf("buy both outcomes: ask sum %.4f, net profit %.4f (%.2f%%)",
						askSum, net, netPct),
					ExpectedProfit:  net,
					ProfitPct:       netPct,
					RequiredCapital: askSum,
					Trades: []domain.Trade{
						{MarketID: m.ID, TokenID: m.Tokens[0].ID, Side: domain.OrderSideBuy, Type: domain.OrderTypeLimit, Price: qa.Ask, Size: 1},
						{MarketID: m.ID, TokenID: m.Tokens[1].ID, Side: domain.OrderSideBuy, Type: domain.OrderTypeLimit, Price: qb.Ask, Size: 1},
					},
					CreatedAt: s.now().UTC(),
					Risk:      domain.RiskLow,
				})
			}
		}
	}

	// Signal-only variant on mid-prices: informational, never auto-executed.
	midA, midB := qa.Mid(), qb.Mid()
	if midA > 0 && midB > 0 {
		midSum := midA + midB
		if midSum < 1.0 {
			gross := 1.0 - midSum
			fees := 2 * feeRate * midSum
			net := gross - fees
			netPct := net / midSum * 100
			if net > 0 && netPct >= s.minProfitPct {
				opps = append(opps, domain.Opportunity{
					ID:       uuid.New().String(),
					Strategy: domain.StrategyPriceImbalance,
					MarketID: m.ID,
					Description: fmt.Sprintf("mid-price sum %.4f below 1.0 (%.2f%% indicative)",
						midSum, netPct),
					ExpectedProfit:  net,
					ProfitPct:       netPct,
					RequiredCapital: midSum, // synthetic: indicative capital at mids
					Trades:          nil,
					CreatedAt:       s.now().UTC(),
					Risk:            domain.RiskHigh,
				})
			}
		}
	}

	return opps
}
