package domain

import (
	"context"
	"time"
)

// OpportunityStore journals detected opportunities. Writes are best-effort:
// a store failure must never block or abort a scan pass.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	MarkExecuted(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
}

// ExecutionRecord is the persisted outcome of one atomic batch.
type ExecutionRecord struct {
	ID            string
	OpportunityID string
	Legs          []LegOutcome
	Profit        float64
	Success       bool
	ExecutedAt    time.Time
}

// LegOutcome is the stored result of one leg of an executed batch.
type LegOutcome struct {
	OrderID  string
	MarketID string
	TokenID  string
	Side     OrderSide
	Price    float64
	Size     float64
	Status   OrderStatus
}

// ExecutionStore journals executed batches for P&L review.
type ExecutionStore interface {
	Insert(ctx context.Context, rec ExecutionRecord) error
	ListRecent(ctx context.Context, limit int) ([]ExecutionRecord, error)
}
