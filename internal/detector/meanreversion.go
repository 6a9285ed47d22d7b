package detector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/history"
)

const (
	// zScoreEntry is the minimum Z-score magnitude before a reversion trade
	// is considered.
	zScoreEntry = 2.0
	// zScoreStrong upgrades the risk tier from HIGH to MEDIUM.
	zScoreStrong = 3.0
)

// MeanReversion records each scan's mid-prices into the rolling history and
// trades against statistically extreme deviations, expecting reversion to
// the window mean.
type MeanReversion struct {
	hist         *history.History
	minProfitPct float64
	now          func() time.Time
}

// NewMeanReversion creates the time-based mean-reversion strategy on top of
// the given price history.
func NewMeanReversion(hist *history.History, minProfitPct float64) *MeanReversion {
	return &MeanReversion{hist: hist, minProfitPct: minProfitPct, now: time.Now}
}

// Name returns the strategy identifier.
func (s *MeanReversion) Name() domain.StrategyKind { return domain.StrategyMeanReversion }

// Detect records mids for both tokens of a binary market and emits a
// reversion trade when a token's Z-score magnitude reaches the entry bar.
func (s *MeanReversion) Detect(_ context.Context, m domain.Market, quotes map[string]domain.Quote) []domain.Opportunity {
	if !m.IsBinary() {
		return nil
	}

	var opps []domain.Opportunity
	for _, tok := range m.Tokens {
		q, ok := quotes[tok.ID]
		if !ok {
			continue
		}
		mid := q.Mid()
		if mid <= 0 {
			continue
		}
		s.hist.Record(tok.ID, mid)

		z, ok := s.hist.ZScore(tok.ID, mid)
		if !ok || math.Abs(z) < zScoreEntry {
			continue
		}

		mean := s.hist.Stats(tok.ID).Mean
		expectedMove := math.Abs(mid - mean)
		fees := 2 * feeRate * mid
		net := expectedMove - fees
		netPct := net / mid * 100
		if net <= 0 || netPct < s.minProfitPct {
			continue
		}

		// Price above mean: expect reversion down, so SELL; below: BUY.
		side := domain.OrderSideBuy
		if z > 0 {
			side = domain.OrderSideSell
		}
		risk := domain.RiskHigh
		if math.Abs(z) > zScoreStrong {
			risk = domain.RiskMedium
		}

		opps = append(opps, domain.Opportunity{
			ID:       uuid.New().String(),
			Strategy: domain.StrategyMeanReversion,
			MarketID: m.ID,
			Description: fmt.Sprintf("%s %s: mid %.4f is %.1f sigma from mean %.4f",
				side, tok.Outcome, mid, z, mean),
			ExpectedProfit:  net,
			ProfitPct:       netPct,
			RequiredCapital: mid,
			Trades: []domain.Trade{
				{MarketID: m.ID, TokenID: tok.ID, Side: side, Type: domain.OrderTypeLimit, Price: mid, Size: 1},
			},
			CreatedAt: s.now().UTC(),
			Risk:      risk,
		})
	}
	return opps
}
