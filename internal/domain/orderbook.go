package domain

import "time"

// BookLevel is a single price+size entry on one side of an order book.
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBook is a depth snapshot for one token. Snapshots are cached with a
// short TTL and served stale until expiry.
type OrderBook struct {
	TokenID   string
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp time.Time
}

// BestBid returns the highest bid price, or 0 if the bid side is empty.
func (b OrderBook) BestBid() float64 {
	best := 0.0
	for _, l := range b.Bids {
		if l.Price > best {
			best = l.Price
		}
	}
	return best
}

// BestAsk returns the lowest ask price, or 0 if the ask side is empty.
func (b OrderBook) BestAsk() float64 {
	best := 0.0
	for _, l := range b.Asks {
		if best == 0 || l.Price < best {
			best = l.Price
		}
	}
	return best
}

// DepthAtOrBetter sums the size available at-or-better-than the limit price
// on the side a taker order of the given direction would hit: asks priced at
// or below the limit for buys, bids priced at or above the limit for sells.
func (b OrderBook) DepthAtOrBetter(side OrderSide, limit float64) float64 {
	var depth float64
	switch side {
	case OrderSideBuy:
		for _, l := range b.Asks {
			if l.Price <= limit {
				depth += l.Size
			}
		}
	case OrderSideSell:
		for _, l := range b.Bids {
			if l.Price >= limit {
				depth += l.Size
			}
		}
	}
	return depth
}
