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

func pricesFrom(m map[string]float64, venue string) venuePriceFunc {
	return func(v, symbol string) (pcdomain.PricePoint, bool) {
		if v != venue {
			return pcdomain.PricePoint{}, false
		}
		mid, ok := m[symbol]
		if !ok {
			return pcdomain.PricePoint{}, false
		}
		return pcdomain.PricePoint{Venue: v, Symbol: symbol, MidScaled: pcdomain.ScaleFloat(mid)}, true
	}
}

func TestCycleRegistry_RegistersTriangleOnThirdSymbol(t *testing.T) {
	reg := NewCycleRegistry()
	reg.RegisterSymbol("binance", "BTC/USDT")
	reg.RegisterSymbol("binance", "ETH/USDT")
	assert.Empty(t, reg.CyclesTouching("binance", "BTC/ETH"))

	reg.RegisterSymbol("binance", "BTC/ETH")
	cycles := reg.CyclesTouching("binance", "BTC/ETH")
	require.Len(t, cycles, 1)
	assert.Equal(t, "binance", cycles[0].Venue)
}

func TestDetectTriangular_NoOpportunityBelowThreshold(t *testing.T) {
	cycle := Cycle{Venue: "binance", LegOne: "BTC/ETH", LegTwo: "ETH/USDT", LegThree: "BTC/USDT"}
	prices := pricesFrom(map[string]float64{
		"BTC/ETH":  26,
		"ETH/USDT": 2000,
		"BTC/USDT": 50000,
	}, "binance")
	fees := domain.NewFeeSchedule(decimal.NewFromInt(10), nil)

	_, ok := DetectTriangular(cycle, prices, fees, decimal.NewFromInt(10), time.Now(), func() string { return "x" })
	assert.False(t, ok)
}

func TestDetectTriangular_OpportunityAboveThreshold(t *testing.T) {
	cycle := Cycle{Venue: "binance", LegOne: "BTC/ETH", LegTwo: "ETH/USDT", LegThree: "BTC/USDT"}
	prices := pricesFrom(map[string]float64{
		"BTC/ETH":  24,
		"ETH/USDT": 2000,
		"BTC/USDT": 50000,
	}, "binance")
	fees := domain.NewFeeSchedule(decimal.NewFromInt(10), nil)

	opp, ok := DetectTriangular(cycle, prices, fees, decimal.NewFromInt(10), time.Now(), func() string { return "x" })
	require.True(t, ok)
	assert.Equal(t, domain.KindTriangular, opp.Kind)
	assert.Len(t, opp.Legs, 3)
	assert.True(t, opp.ProfitBps.GreaterThan(decimal.Zero))
}

func TestDetectTriangular_MissingLegNoOpportunity(t *testing.T) {
	cycle := Cycle{Venue: "binance", LegOne: "BTC/ETH", LegTwo: "ETH/USDT", LegThree: "BTC/USDT"}
	prices := pricesFrom(map[string]float64{
		"ETH/USDT": 2000,
		"BTC/USDT": 50000,
	}, "binance")
	fees := domain.NewFeeSchedule(decimal.NewFromInt(10), nil)

	_, ok := DetectTriangular(cycle, prices, fees, decimal.NewFromInt(10), time.Now(), func() string { return "x" })
	assert.False(t, ok)
}
