// Package domain holds the dispatcher's wire-format record: a fixed-shape
// task carrying one detected opportunity from a shard's queue to its worker.
package domain

import (
	"time"

	arbdomain "github.com/fd1az/arb-core/business/arbitrage/domain"
)

// ProcessingTask is the fixed-size unit of work a dispatcher shard carries.
// Kept to plain value fields (no pointers beyond the opportunity's own
// slices) so a batch of these can be iterated without chasing pointers, the
// Go analogue of the cache-line-aligned record the design calls for.
type ProcessingTask struct {
	Opportunity arbdomain.Opportunity
	EnqueuedAt  time.Time
}

// ShardKey is the key Queue.Submit hashes to pick a shard; for arbitrage
// opportunities this is the primary symbol (the venue pair's symbol for
// inter-exchange, the cycle label for triangular).
func (t ProcessingTask) ShardKey() string {
	return t.Opportunity.Symbol
}
