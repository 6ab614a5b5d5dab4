package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fd1az/arb-core/business/risk/domain"
)

func feedMids(t *testing.T, tracker *VolatilityTracker, symbol string, mids []float64, start time.Time) domain.Regime {
	t.Helper()
	var regime domain.Regime
	for i, mid := range mids {
		regime = tracker.Observe(symbol, mid, start.Add(time.Duration(i)*time.Second))
	}
	return regime
}

func TestVolatilityTracker_FlatMarketReadsCalm(t *testing.T) {
	tracker := NewVolatilityTracker(VolatilityConfig{})
	start := time.Now()

	mids := make([]float64, 20)
	for i := range mids {
		// ~0.2 bps of drift per tick, far under the calm cutoff.
		mids[i] = 65000 + float64(i%2)*1.3
	}

	regime := feedMids(t, tracker, "BTC/USDT", mids, start)
	assert.Equal(t, domain.RegimeCalm, regime)
}

func TestVolatilityTracker_ViolentSwingsReadExtreme(t *testing.T) {
	tracker := NewVolatilityTracker(VolatilityConfig{})
	start := time.Now()

	mids := make([]float64, 20)
	for i := range mids {
		// ±1% tick-to-tick swings: ~100 bps realized volatility.
		if i%2 == 0 {
			mids[i] = 65000
		} else {
			mids[i] = 65650
		}
	}

	regime := feedMids(t, tracker, "BTC/USDT", mids, start)
	assert.Equal(t, domain.RegimeExtreme, regime)
}

func TestVolatilityTracker_TooFewObservationsStaysNormal(t *testing.T) {
	tracker := NewVolatilityTracker(VolatilityConfig{})
	start := time.Now()

	regime := feedMids(t, tracker, "BTC/USDT", []float64{65000, 66000, 64000}, start)
	assert.Equal(t, domain.RegimeNormal, regime)
}

func TestVolatilityTracker_WorstSymbolDrivesRegime(t *testing.T) {
	tracker := NewVolatilityTracker(VolatilityConfig{})
	start := time.Now()

	calm := make([]float64, 20)
	wild := make([]float64, 20)
	for i := range calm {
		calm[i] = 2000 + float64(i%2)*0.01
		if i%2 == 0 {
			wild[i] = 65000
		} else {
			wild[i] = 65650
		}
	}

	feedMids(t, tracker, "ETH/USDT", calm, start)
	regime := feedMids(t, tracker, "BTC/USDT", wild, start)
	assert.Equal(t, domain.RegimeExtreme, regime)
}

func TestVolatilityTracker_ObservationsRollOffTheWindow(t *testing.T) {
	tracker := NewVolatilityTracker(VolatilityConfig{Window: time.Minute})
	start := time.Now().Add(-2 * time.Hour)

	wild := make([]float64, 20)
	for i := range wild {
		if i%2 == 0 {
			wild[i] = 65000
		} else {
			wild[i] = 65650
		}
	}
	feedMids(t, tracker, "BTC/USDT", wild, start)

	// Two hours later the swings have aged out entirely.
	assert.Equal(t, domain.RegimeNormal, tracker.Regime(time.Now()))
}
