package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arb-core/business/arbitrage/domain"
	pcdomain "github.com/fd1az/arb-core/business/pricecache/domain"
)

func bestPrices(symbol string, bidVenue string, bid, bidVol float64, askVenue string, ask, askVol float64) pcdomain.BestPrices {
	return pcdomain.BestPrices{
		Symbol:  symbol,
		BestBid: pcdomain.NewPricePoint(bidVenue, symbol, bid, bid, bidVol),
		BestAsk: pcdomain.NewPricePoint(askVenue, symbol, ask, ask, askVol),
	}
}

func TestDetectInterExchange_ProfitableSpread(t *testing.T) {
	fees := domain.NewFeeSchedule(decimal.NewFromFloat(10), nil) // 10bps each venue
	// 40bps gross spread clears 10+10bps fees plus the 10bps minimum (breakeven 50150).
	best := bestPrices("BTC/USDT", "bybit", 50200, 2, "binance", 50000, 2)

	opp, ok := DetectInterExchange("BTC/USDT", best, fees, decimal.NewFromInt(10), decimal.Zero, time.Now(), func() string { return "opp-1" })
	require.True(t, ok)
	assert.Equal(t, domain.KindInterExchange, opp.Kind)
	assert.Len(t, opp.Legs, 2)
	assert.Equal(t, "binance", opp.Legs[0].Venue)
	assert.Equal(t, domain.SideBuy, opp.Legs[0].Side)
	assert.Equal(t, "bybit", opp.Legs[1].Venue)
	assert.Equal(t, domain.SideSell, opp.Legs[1].Side)
	assert.True(t, opp.TradeSize.Equal(decimal.NewFromInt(2)))
	assert.True(t, opp.ProfitBps.GreaterThan(decimal.Zero))
}

func TestDetectInterExchange_SameVenueNoOpportunity(t *testing.T) {
	fees := domain.NewFeeSchedule(decimal.NewFromFloat(10), nil)
	best := bestPrices("BTC/USDT", "binance", 50100, 2, "binance", 50000, 2)

	_, ok := DetectInterExchange("BTC/USDT", best, fees, decimal.NewFromInt(10), decimal.Zero, time.Now(), func() string { return "x" })
	assert.False(t, ok)
}

func TestDetectInterExchange_EqualBidAskNoOpportunity(t *testing.T) {
	fees := domain.NewFeeSchedule(decimal.NewFromFloat(10), nil)
	best := bestPrices("BTC/USDT", "bybit", 50000, 2, "binance", 50000, 2)

	_, ok := DetectInterExchange("BTC/USDT", best, fees, decimal.NewFromInt(10), decimal.Zero, time.Now(), func() string { return "x" })
	assert.False(t, ok)
}

func TestDetectInterExchange_ExactlyAtThresholdNotEmitted(t *testing.T) {
	fees := domain.NewFeeSchedule(decimal.Zero, nil)
	// bid == ask*(1+minProfitBps*1e-4) exactly -> must not emit (strictly greater required)
	ask := decimal.NewFromInt(50000)
	minProfitBps := decimal.NewFromInt(100) // 1%
	bid := ask.Mul(decimal.NewFromFloat(1.01))
	best := pcdomain.BestPrices{
		Symbol:  "BTC/USDT",
		BestBid: pcdomain.NewPricePoint("bybit", "BTC/USDT", mustFloat(bid), mustFloat(bid), 1),
		BestAsk: pcdomain.NewPricePoint("binance", "BTC/USDT", mustFloat(ask), mustFloat(ask), 1),
	}
	_, ok := DetectInterExchange("BTC/USDT", best, fees, minProfitBps, decimal.Zero, time.Now(), func() string { return "x" })
	assert.False(t, ok)
}

func TestDetectInterExchange_SizedToSmallerVolumeAndCap(t *testing.T) {
	fees := domain.NewFeeSchedule(decimal.Zero, nil)
	best := bestPrices("BTC/USDT", "bybit", 50100, 5, "binance", 50000, 2)

	opp, ok := DetectInterExchange("BTC/USDT", best, fees, decimal.NewFromInt(1), decimal.NewFromFloat(1.5), time.Now(), func() string { return "x" })
	require.True(t, ok)
	assert.True(t, opp.TradeSize.Equal(decimal.NewFromFloat(1.5)))
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
