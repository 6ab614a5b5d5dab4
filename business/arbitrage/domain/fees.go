package domain

import "github.com/shopspring/decimal"

// FeeSchedule holds the taker fee, in basis points, charged by each venue.
// Arbitrage math always uses the taker rate: both legs of an opportunity are
// assumed to cross the book immediately rather than rest as maker orders.
type FeeSchedule struct {
	defaultBps decimal.Decimal
	perVenue   map[string]decimal.Decimal
}

// NewFeeSchedule builds a schedule that falls back to defaultBps for any
// venue not present in perVenue.
func NewFeeSchedule(defaultBps decimal.Decimal, perVenue map[string]decimal.Decimal) FeeSchedule {
	if perVenue == nil {
		perVenue = map[string]decimal.Decimal{}
	}
	return FeeSchedule{defaultBps: defaultBps, perVenue: perVenue}
}

// TakerBps returns the taker fee, in basis points, for venue.
func (f FeeSchedule) TakerBps(venue string) decimal.Decimal {
	if bps, ok := f.perVenue[venue]; ok {
		return bps
	}
	return f.defaultBps
}

// TakerRate returns the taker fee as a fraction (e.g. 10bps -> 0.001).
func (f FeeSchedule) TakerRate(venue string) decimal.Decimal {
	return f.TakerBps(venue).Div(decimal.NewFromInt(10000))
}
