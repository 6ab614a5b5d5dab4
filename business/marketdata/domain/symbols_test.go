package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolMapTranslatesBothDirections(t *testing.T) {
	m := NewSymbolMap([]string{"BTC/USDT", "ETH/USDT"}, func(base, quote string) string {
		return strings.ToUpper(base) + "-" + strings.ToUpper(quote)
	})

	assert.Equal(t, "BTC-USDT", m.Native("BTC/USDT"))
	assert.Equal(t, "BTC/USDT", m.Canonical("BTC-USDT"))
	assert.Equal(t, []string{"BTC-USDT", "ETH-USDT"}, m.Natives())
}

func TestSymbolMapPassesUnknownSymbolsThrough(t *testing.T) {
	m := NewSymbolMap([]string{"BTC/USDT"}, func(base, quote string) string {
		return base + quote
	})

	assert.Equal(t, "DOGEUSDT", m.Native("DOGEUSDT"), "no separator, no translation")
	assert.Equal(t, "DOGE-USDT", m.Canonical("DOGE-USDT"), "unregistered native spelling passes through")
}

func TestSymbolMapVenueSpellings(t *testing.T) {
	cases := []struct {
		name   string
		native func(base, quote string) string
		want   string
	}{
		{"binance", func(b, q string) string { return strings.ToUpper(b + q) }, "BTCUSDT"},
		{"okx", func(b, q string) string { return strings.ToUpper(b) + "-" + strings.ToUpper(q) }, "BTC-USDT"},
		{"gateio", func(b, q string) string { return strings.ToUpper(b) + "_" + strings.ToUpper(q) }, "BTC_USDT"},
		{"huobi", func(b, q string) string { return strings.ToLower(b + q) }, "btcusdt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewSymbolMap([]string{"BTC/USDT"}, tc.native)
			assert.Equal(t, tc.want, m.Native("BTC/USDT"))
			assert.Equal(t, "BTC/USDT", m.Canonical(tc.want))
		})
	}
}
