package domain

import "time"

// StrategyKind tags the detection strategy that produced an opportunity.
type StrategyKind string

const (
	StrategyPriceImbalance StrategyKind = "price_imbalance"
	StrategyCrossMarket    StrategyKind = "cross_market"
	StrategyMeanReversion  StrategyKind = "mean_reversion"
)

// RiskTier buckets opportunities by confidence for the risk evaluator.
type RiskTier string

const (
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

// Trade is one leg of a multi-leg atomic trade. Size is in outcome shares.
type Trade struct {
	MarketID string
	TokenID  string
	Side     OrderSide
	Type     OrderType
	Price    float64
	Size     float64
}

// Opportunity is a detected pricing inefficiency. An empty Trades slice
// marks a signal-only opportunity: informational, never auto-executed.
// For executable opportunities ProfitPct = ExpectedProfit/RequiredCapital*100;
// signal-only opportunities may carry a synthetic RequiredCapital.
type Opportunity struct {
	ID              string
	Strategy        StrategyKind
	MarketID        string
	Description     string
	ExpectedProfit  float64 // absolute, in quote currency
	ProfitPct       float64
	RequiredCapital float64
	Trades          []Trade
	CreatedAt       time.Time
	Risk            RiskTier
}

// Executable reports whether the opportunity carries trade legs that the
// executor may act on.
func (o Opportunity) Executable() bool {
	return len(o.Trades) > 0
}

// Expired reports whether the opportunity is older than maxAge.
func (o Opportunity) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(o.CreatedAt) > maxAge
}
