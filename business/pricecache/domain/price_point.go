// Package domain holds the price-cache's core value types: PricePoint (a
// quality-scored observation from one venue) and BestPrices (the best bid and
// best ask currently known across all venues for a symbol).
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-core/internal/asset"
)

// PricePoint is a single quality-scored price observation from one venue,
// translated from the quality-scoring heap entry used by the original
// price cache: a weighted blend of spread tightness and volume depth.
//
// Bid/Ask/MidPrice/Spread/Volume are held as asset.PriceScale fixed-point
// int64 rather than float64: the cache folds millions of these in over a
// session, and float64 addition/subtraction on prices like 50000.01
// accumulates binary-fraction error that a scaled integer doesn't.
type PricePoint struct {
	Venue        string
	Symbol       string
	BidScaled    int64
	AskScaled    int64
	MidScaled    int64
	SpreadScaled int64
	VolumeScaled int64
	Timestamp    time.Time
	QualityScore float64 // dimensionless rank, not a monetary quantity
	LatencyMs    uint64
}

// ScaleFloat converts a plain float64 (the shape exchanges' JSON decodes
// into) to the package's fixed-point representation.
func ScaleFloat(f float64) int64 { return asset.ToFixedFloat64(f) }

// NewPricePoint builds a PricePoint from wire-boundary float64s, computing
// mid, spread, and quality score at fixed-point precision.
func NewPricePoint(venue, symbol string, bid, ask, volume float64) PricePoint {
	bidScaled := asset.ToFixedFloat64(bid)
	askScaled := asset.ToFixedFloat64(ask)
	volumeScaled := asset.ToFixedFloat64(volume)
	spreadScaled := askScaled - bidScaled
	return PricePoint{
		Venue:        venue,
		Symbol:       symbol,
		BidScaled:    bidScaled,
		AskScaled:    askScaled,
		MidScaled:    (bidScaled + askScaled) / 2,
		SpreadScaled: spreadScaled,
		VolumeScaled: volumeScaled,
		Timestamp:    time.Now(),
		QualityScore: qualityScore(spreadScaled, volumeScaled),
	}
}

// qualityScore blends spread tightness (30%) and volume depth (70%), both
// capped at 100 before weighting, producing a score in [0, 1].
func qualityScore(spreadScaled, volumeScaled int64) float64 {
	spread := float64(spreadScaled) / asset.PriceScaleFactor
	volume := float64(volumeScaled) / asset.PriceScaleFactor

	var spreadScore float64
	if spread > 0 {
		spreadScore = 1 / spread
		if spreadScore > 100 {
			spreadScore = 100
		}
	}
	volumeScore := volume / 1000
	if volumeScore > 100 {
		volumeScore = 100
	}
	return (spreadScore*0.3 + volumeScore*0.7) / 100
}

// Bid decodes the scaled bid back to a decimal.
func (p PricePoint) Bid() decimal.Decimal { return asset.FromFixed(p.BidScaled) }

// Ask decodes the scaled ask back to a decimal.
func (p PricePoint) Ask() decimal.Decimal { return asset.FromFixed(p.AskScaled) }

// MidPrice decodes the scaled midpoint back to a decimal.
func (p PricePoint) MidPrice() decimal.Decimal { return asset.FromFixed(p.MidScaled) }

// Spread decodes the scaled ask-minus-bid spread back to a decimal.
func (p PricePoint) Spread() decimal.Decimal { return asset.FromFixed(p.SpreadScaled) }

// Volume decodes the scaled volume back to a decimal.
func (p PricePoint) Volume() decimal.Decimal { return asset.FromFixed(p.VolumeScaled) }

// IsValid reports whether the point has a sane, recent, non-crossed quote.
func (p PricePoint) IsValid() bool {
	return p.BidScaled > 0 && p.AskScaled > 0 && p.AskScaled >= p.BidScaled && p.VolumeScaled >= 0 &&
		time.Since(p.Timestamp) < time.Minute
}

// AgeSeconds returns how many whole seconds old this point is.
func (p PricePoint) AgeSeconds() int64 {
	return int64(time.Since(p.Timestamp).Seconds())
}

// BestPrices tracks the best bid and best ask seen across every venue for a
// symbol, each independently, since the cheapest ask and the richest bid may
// come from different venues — the pair that matters for arbitrage.
type BestPrices struct {
	Symbol      string
	BestBid     PricePoint
	BestAsk     PricePoint
	LastUpdated time.Time
	SourceCount int
}

// NewBestPrices seeds a BestPrices from the first observed point.
func NewBestPrices(first PricePoint) *BestPrices {
	return &BestPrices{
		Symbol:      first.Symbol,
		BestBid:     first,
		BestAsk:     first,
		LastUpdated: time.Now(),
		SourceCount: 1,
	}
}

// Update folds a new observation in, replacing BestBid/BestAsk when price
// strictly improves, breaking ties in favor of the higher quality score.
func (bp *BestPrices) Update(p PricePoint) {
	if p.BidScaled > bp.BestBid.BidScaled || (p.BidScaled == bp.BestBid.BidScaled && p.QualityScore > bp.BestBid.QualityScore) {
		bp.BestBid = p
	}
	if p.AskScaled < bp.BestAsk.AskScaled || (p.AskScaled == bp.BestAsk.AskScaled && p.QualityScore > bp.BestAsk.QualityScore) {
		bp.BestAsk = p
	}
	bp.LastUpdated = time.Now()
	bp.SourceCount++
}

// Spread returns the current best-ask-minus-best-bid spread.
func (bp *BestPrices) Spread() decimal.Decimal {
	return asset.FromFixed(bp.BestAsk.AskScaled - bp.BestBid.BidScaled)
}

// MidPrice returns the midpoint of the best bid and best ask.
func (bp *BestPrices) MidPrice() decimal.Decimal {
	return asset.FromFixed((bp.BestBid.BidScaled + bp.BestAsk.AskScaled) / 2)
}

// Clone returns a deep-enough copy safe to hand to readers without sharing
// the original's mutable fields.
func (bp *BestPrices) Clone() BestPrices {
	return *bp
}
