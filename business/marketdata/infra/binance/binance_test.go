package binance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookTickerYieldsCanonicalTick(t *testing.T) {
	c := New([]string{"BTC/USDT"}, nil)

	frame := []byte(`{"stream":"btcusdt@bookTicker","data":{"u":400900217,"s":"BTCUSDT","b":"64999.50","B":"0.75","a":"65000.10","A":"1.20"}}`)
	ticks, books, ok := c.Parse(frame)
	require.True(t, ok)
	require.Len(t, ticks, 1)
	assert.Empty(t, books)

	tick := ticks[0]
	assert.Equal(t, "binance", tick.Venue)
	assert.Equal(t, "BTC/USDT", tick.Symbol, "venue spelling must fold back to canonical")
	assert.Equal(t, "64999.5", tick.BidPrice.String())
	assert.Equal(t, "65000.1", tick.AskPrice.String())
}

func TestParseDepthYieldsCanonicalOrderbook(t *testing.T) {
	c := New([]string{"BTC/USDT"}, nil)

	frame := []byte(`{"stream":"btcusdt@depth20@100ms","data":{"lastUpdateId":160,"bids":[["64999.50","0.5"],["64999.00","1.0"]],"asks":[["65000.10","0.3"]]}}`)
	ticks, books, ok := c.Parse(frame)
	require.True(t, ok)
	assert.Empty(t, ticks)
	require.Len(t, books, 1)

	ob := books[0]
	assert.Equal(t, "BTC/USDT", ob.Symbol)
	require.Len(t, ob.Bids, 2)
	require.Len(t, ob.Asks, 1)
	assert.Equal(t, uint64(160), ob.SeqNum)
}

func TestParseRejectsMalformedFrames(t *testing.T) {
	c := New([]string{"BTC/USDT"}, nil)

	for _, frame := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"stream":"btcusdt@bookTicker","data":{"b":"NaN","B":"1","a":"1","A":"1"}}`),
		[]byte(`{"stream":"btcusdt@trade","data":{}}`),
	} {
		ticks, books, ok := c.Parse(frame)
		assert.False(t, ok, "frame %s must not parse", frame)
		assert.Empty(t, ticks)
		assert.Empty(t, books)
	}
}

func TestWebSocketURLSubscribesNativeStreams(t *testing.T) {
	c := New([]string{"BTC/USDT", "ETH/USDT"}, nil)

	url := c.WebSocketURL()
	assert.Contains(t, url, "btcusdt@bookTicker")
	assert.Contains(t, url, "ethusdt@depth20@100ms")
}
