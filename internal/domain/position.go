package domain

import "time"

// Position is an open holding in one outcome token. Positions are owned
// exclusively by the risk evaluator: created on fill, removed on close,
// never mutated from outside the controller goroutine.
type Position struct {
	MarketID      string
	TokenID       string
	Size          float64
	EntryPrice    float64
	CurrentPrice  float64
	UnrealizedPnL float64
	OpenedAt      time.Time
}

// Key identifies a position by market and token.
func (p Position) Key() string {
	return p.MarketID + ":" + p.TokenID
}

// TradingStats are the cumulative counters owned by the risk evaluator and
// mutated only through RecordTrade.
type TradingStats struct {
	TotalTrades int
	Wins        int
	Losses      int
	Failures    int
	GrossProfit float64
	GrossLoss   float64
	NetProfit   float64
	WinRate     float64 // percent of successful trades that were profitable
	AvgProfit   float64
	DailyPnL    float64
	LastReset   time.Time
}
