package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFingerprint_StableAcrossPriceChanges(t *testing.T) {
	legs := []Leg{
		{Venue: "binance", Symbol: "BTC/USDT", Side: SideBuy, Price: decimal.NewFromInt(100)},
		{Venue: "bybit", Symbol: "BTC/USDT", Side: SideSell, Price: decimal.NewFromInt(101)},
	}
	fp1 := Fingerprint(KindInterExchange, legs)

	legs[0].Price = decimal.NewFromInt(105)
	fp2 := Fingerprint(KindInterExchange, legs)

	assert.Equal(t, fp1, fp2)
}

func TestFingerprint_DiffersByVenue(t *testing.T) {
	legsA := []Leg{{Venue: "binance", Symbol: "BTC/USDT", Side: SideBuy}}
	legsB := []Leg{{Venue: "okx", Symbol: "BTC/USDT", Side: SideBuy}}
	assert.NotEqual(t, Fingerprint(KindInterExchange, legsA), Fingerprint(KindInterExchange, legsB))
}

func TestOpportunity_Expired(t *testing.T) {
	now := time.Now()
	opp := New("id", KindInterExchange, "BTC/USDT", nil, decimal.Zero, decimal.NewFromInt(10), decimal.Zero, now)
	assert.False(t, opp.Expired(now.Add(DefaultExpiry-time.Second)))
	assert.True(t, opp.Expired(now.Add(DefaultExpiry+time.Second)))
}

func TestOpportunity_IsProfitable(t *testing.T) {
	opp := New("id", KindInterExchange, "BTC/USDT", []Leg{{}}, decimal.Zero, decimal.NewFromInt(5), decimal.Zero, time.Now())
	assert.True(t, opp.IsProfitable())

	zero := New("id", KindInterExchange, "BTC/USDT", nil, decimal.Zero, decimal.Zero, decimal.Zero, time.Now())
	assert.False(t, zero.IsProfitable())
}
