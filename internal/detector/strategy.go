// Package detector scans prediction markets for pricing inefficiencies
// using a selectable set of strategies and emits Opportunity records.
package detector

import (
	"context"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// feeRate is the exchange fee per side. Round trips pay it twice.
// Fixed policy constant, deliberately not configurable.
const feeRate = 0.01

// MarketStrategy detects opportunities on a single market from its live
// quotes. Quotes are keyed by token ID; tokens with no data are absent.
type MarketStrategy interface {
	Name() domain.StrategyKind
	Detect(ctx context.Context, m domain.Market, quotes map[string]domain.Quote) []domain.Opportunity
}

// PairStrategy detects opportunities across two markets. It runs after the
// per-market pass, over the probability snapshots collected during it.
type PairStrategy interface {
	Name() domain.StrategyKind
	DetectPair(ctx context.Context, a, b MarketProb) []domain.Opportunity
}

// MarketProb is a market's implied probability snapshot taken during a scan
// pass, used by pair strategies.
type MarketProb struct {
	Market      domain.Market
	Probability float64 // mid-price of the YES outcome
}

// yesToken returns the YES outcome token of a binary market, falling back to
// the first token when outcome labels are unrecognised.
func yesToken(m domain.Market) domain.Token {
	for _, t := range m.Tokens {
		if t.Outcome == "Yes" || t.Outcome == "YES" || t.Outcome == "yes" {
			return t
		}
	}
	return m.Tokens[0]
}
