// Package domain holds the execution engine's value types: the decision
// tree's outcome record and the append-only post-trade audit row.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Result is the outcome of executing one opportunity's chunk sequence.
type Result struct {
	OpportunityID string
	Accepted      bool
	OrderIDs      []string
	Reason        string
}

// ExecutionRecord is a post-trade audit row: what was predicted, what
// actually happened, and whether compensation was applied. Append-only,
// kept in a bounded ring by the engine.
type ExecutionRecord struct {
	OpportunityID       string
	Venue               string
	Symbol              string
	PredictedSlippageBps decimal.Decimal
	ActualSlippageBps   decimal.Decimal
	CompensationApplied bool
	OrderSplit          bool
	Success             bool
	Error               string
	RecordedAt          time.Time
}
