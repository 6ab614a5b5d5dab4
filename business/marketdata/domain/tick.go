// Package domain holds the venue-neutral market data types shared by every
// exchange adapter: ticks, order book snapshots, the venue/symbol pair that
// identifies a feed, and the SymbolMap that folds each venue's native symbol
// spelling into the canonical "BASE/QUOTE" form. Prices and sizes are
// carried as decimal.Decimal at this layer since a symbol is not yet
// resolved to base/quote asset.Price pairs — that resolution happens in
// pricecache/arbitrage once a symbol is split into its constituent assets.
package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// VenueSymbol identifies a single tradeable feed: one symbol on one venue.
type VenueSymbol struct {
	Venue  string
	Symbol string
}

func (vs VenueSymbol) String() string {
	return vs.Venue + ":" + vs.Symbol
}

// Tick is a best-bid/best-ask snapshot for a symbol on a venue, the unit the
// pricecache and arbitrage contexts consume.
type Tick struct {
	Venue     string
	Symbol    string
	BidPrice  decimal.Decimal
	BidSize   decimal.Decimal
	AskPrice  decimal.Decimal
	AskSize   decimal.Decimal
	Volume24h decimal.Decimal
	Timestamp time.Time
	SeqNum    uint64
}

// Mid returns the midpoint price between best bid and best ask.
func (t Tick) Mid() decimal.Decimal {
	return t.BidPrice.Add(t.AskPrice).Div(decimal.NewFromInt(2))
}

// SpreadBps returns the bid/ask spread in basis points of the midpoint.
// Returns 0 if the midpoint is non-positive.
func (t Tick) SpreadBps() float64 {
	mid := t.Mid()
	if mid.Sign() <= 0 {
		return 0
	}
	spread := t.AskPrice.Sub(t.BidPrice).Div(mid).Mul(decimal.NewFromInt(10000))
	f, _ := spread.Float64()
	return f
}

// Valid reports whether the tick has a sane crossed-book-free quote.
func (t Tick) Valid() bool {
	return t.BidPrice.IsPositive() && t.AskPrice.IsPositive() && t.AskPrice.GreaterThanOrEqual(t.BidPrice)
}

// OrderbookLevel is a single price/size rung of a book side.
type OrderbookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Orderbook is a depth snapshot for a symbol on a venue, sorted best-first:
// Bids descending by price, Asks ascending by price.
type Orderbook struct {
	Venue     string
	Symbol    string
	Bids      []OrderbookLevel
	Asks      []OrderbookLevel
	Timestamp time.Time
	SeqNum    uint64
}

// BestBid returns the top bid level, or the zero level if the book is empty.
func (ob Orderbook) BestBid() (OrderbookLevel, bool) {
	if len(ob.Bids) == 0 {
		return OrderbookLevel{}, false
	}
	return ob.Bids[0], true
}

// BestAsk returns the top ask level, or the zero level if the book is empty.
func (ob Orderbook) BestAsk() (OrderbookLevel, bool) {
	if len(ob.Asks) == 0 {
		return OrderbookLevel{}, false
	}
	return ob.Asks[0], true
}

// Tick collapses the orderbook into a best-bid/best-ask Tick.
func (ob Orderbook) Tick() Tick {
	t := Tick{Venue: ob.Venue, Symbol: ob.Symbol, Timestamp: ob.Timestamp, SeqNum: ob.SeqNum}
	if bid, ok := ob.BestBid(); ok {
		t.BidPrice, t.BidSize = bid.Price, bid.Size
	}
	if ask, ok := ob.BestAsk(); ok {
		t.AskPrice, t.AskSize = ask.Price, ask.Size
	}
	return t
}

// ParseLevel parses one price/size string pair into an OrderbookLevel. It
// reports false instead of an error so a single malformed or non-positive
// row never aborts parsing of an otherwise-valid book.
func ParseLevel(priceStr, sizeStr string) (OrderbookLevel, bool) {
	price, err := decimal.NewFromString(priceStr)
	if err != nil || !price.IsPositive() {
		return OrderbookLevel{}, false
	}
	size, err := decimal.NewFromString(sizeStr)
	if err != nil || !size.IsPositive() {
		return OrderbookLevel{}, false
	}
	return OrderbookLevel{Price: price, Size: size}, true
}

// ParseLevels applies ParseLevel to every row of a venue's raw [price, size,
// ...] depth payload, in order, dropping malformed or non-positive rows
// instead of rejecting the whole book.
func ParseLevels(raw [][]string) []OrderbookLevel {
	levels := make([]OrderbookLevel, 0, len(raw))
	for _, r := range raw {
		if len(r) < 2 {
			continue
		}
		if lvl, ok := ParseLevel(r[0], r[1]); ok {
			levels = append(levels, lvl)
		}
	}
	return levels
}

// ParseLevelFloat is ParseLevel's float64 counterpart, for venues (Huobi)
// whose depth payloads decode straight to float64 instead of strings.
func ParseLevelFloat(price, size float64) (OrderbookLevel, bool) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return OrderbookLevel{}, false
	}
	if math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return OrderbookLevel{}, false
	}
	return OrderbookLevel{Price: decimal.NewFromFloat(price), Size: decimal.NewFromFloat(size)}, true
}

// ParseLevelsFloat applies ParseLevelFloat to every row of a [price, size]
// float64 pair, dropping malformed or non-positive rows.
func ParseLevelsFloat(raw [][2]float64) []OrderbookLevel {
	levels := make([]OrderbookLevel, 0, len(raw))
	for _, r := range raw {
		if lvl, ok := ParseLevelFloat(r[0], r[1]); ok {
			levels = append(levels, lvl)
		}
	}
	return levels
}

// VWAP returns the volume-weighted average price needed to fill size against
// the given levels, walking the book until size is exhausted. ok is false if
// the book does not have enough depth to fill size.
func VWAP(levels []OrderbookLevel, size decimal.Decimal) (price decimal.Decimal, ok bool) {
	if size.Sign() <= 0 {
		return decimal.Zero, false
	}
	remaining := size
	notional := decimal.Zero
	filled := decimal.Zero
	for _, lvl := range levels {
		take := lvl.Size
		if take.GreaterThan(remaining) {
			take = remaining
		}
		notional = notional.Add(take.Mul(lvl.Price))
		filled = filled.Add(take)
		remaining = remaining.Sub(take)
		if remaining.Sign() <= 0 {
			break
		}
	}
	if filled.Sign() <= 0 || remaining.Sign() > 0 {
		return decimal.Zero, false
	}
	return notional.Div(filled), true
}
