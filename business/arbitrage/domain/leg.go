// Package domain holds the arbitrage context's core value types: trade legs,
// fee schedules, and the opportunities assembled from them.
package domain

import "github.com/shopspring/decimal"

// Side is the direction of a single leg of an opportunity.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Leg is one venue-local trade that makes up part of an opportunity: buy A/B
// on venue X, sell A/B on venue Y, or one edge of a triangular cycle.
type Leg struct {
	Venue  string
	Symbol string
	Side   Side
	Price  decimal.Decimal
	Size   decimal.Decimal
	FeeBps decimal.Decimal
}

// Notional returns price*size for the leg, ignoring fees.
func (l Leg) Notional() decimal.Decimal {
	return l.Price.Mul(l.Size)
}
