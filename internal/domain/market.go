package domain

import "time"

// Market represents a prediction market with its outcome tokens.
// Markets are immutable snapshots once handed to the detector for a scan pass.
type Market struct {
	ID       string
	Question string
	Category string
	EndDate  time.Time
	Active   bool
	Closed   bool
	Tokens   []Token
}

// IsBinary reports whether the market has exactly two outcome tokens.
// Only binary markets are eligible for price-imbalance and mean-reversion
// detection.
func (m Market) IsBinary() bool {
	return len(m.Tokens) == 2
}

// Tradable reports whether the market is open and every outcome has a
// tradable instrument behind it.
func (m Market) Tradable() bool {
	if !m.Active || m.Closed {
		return false
	}
	for _, t := range m.Tokens {
		if t.ID == "" {
			return false
		}
	}
	return len(m.Tokens) > 0
}

// Token is a single outcome share of a market. An empty ID means the
// upstream reported no tradable instrument for this outcome.
type Token struct {
	ID        string
	Outcome   string
	Price     float64
	Liquidity float64
}

// Quote is the best bid/ask for one token. Upstream does not guarantee
// bid <= ask; consumers must tolerate crossed quotes.
type Quote struct {
	Bid float64
	Ask float64
}

// Mid returns the midpoint of the quote.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Balance is the account balance snapshot returned by the account source.
type Balance struct {
	QuoteCurrency float64 // USDC available for trading
	GasCurrency   float64 // native token for transaction gas
}
