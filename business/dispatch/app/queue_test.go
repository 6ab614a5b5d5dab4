package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arbdomain "github.com/fd1az/arb-core/business/arbitrage/domain"
)

func opportunityWithSymbol(symbol string) arbdomain.Opportunity {
	return arbdomain.New("id-"+symbol, arbdomain.KindInterExchange, symbol, nil,
		decimal.Zero, decimal.Zero, decimal.Zero, time.Now())
}

func TestQueue_SubmitRoutesBySymbolHash(t *testing.T) {
	q := New(Config{ShardCount: 4, QueueDepth: 8, BatchSize: 8})
	require.NoError(t, q.Submit(context.Background(), opportunityWithSymbol("BTC/USDT")))

	stats := q.Stats()
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, 1, q.shards[shardIndex("BTC/USDT", 4)].len())
}

func TestQueue_HandlerInvokedOnDrain(t *testing.T) {
	q := New(Config{ShardCount: 1, QueueDepth: 4, BatchSize: 4})
	seen := make(chan string, 1)
	q.SetHandler(func(ctx context.Context, opp arbdomain.Opportunity) error {
		seen <- opp.Symbol
		return nil
	})

	require.NoError(t, q.Submit(context.Background(), opportunityWithSymbol("ETH/USDT")))
	batch := q.shards[0].drainBatch(4)
	require.Len(t, batch, 1)

	handler := q.handler.Load()
	require.NotNil(t, handler)
	require.NoError(t, (*handler)(context.Background(), batch[0].Opportunity))

	select {
	case sym := <-seen:
		assert.Equal(t, "ETH/USDT", sym)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}
