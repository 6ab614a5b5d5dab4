package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arb-core/business/pricecache/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

func testCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	return New(cfg, logger.New(io.Discard, logger.LevelDebug, "test"))
}

func TestCache_UpdateTracksBestBidAskAcrossVenues(t *testing.T) {
	c := testCache(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, c.Update(ctx, domain.NewPricePoint("binance", "BTC/USDT", 50000, 50010, 2)))
	require.NoError(t, c.Update(ctx, domain.NewPricePoint("bybit", "BTC/USDT", 50100, 50120, 3)))

	best, ok := c.GetBestPrices("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, "bybit", best.BestBid.Venue)
	assert.Equal(t, "binance", best.BestAsk.Venue)
	assert.Equal(t, 2, best.SourceCount)
}

func TestCache_RejectsInvalidPricePoint(t *testing.T) {
	c := testCache(t, DefaultConfig())
	bad := domain.PricePoint{Venue: "binance", Symbol: "BTC/USDT", BidScaled: 0, AskScaled: domain.ScaleFloat(100), Timestamp: time.Now()}
	err := c.Update(context.Background(), bad)
	assert.Error(t, err)

	_, ok := c.GetBestPrices("BTC/USDT")
	assert.False(t, ok)
}

// ageVenuePoints backdates every heap entry for venue:symbol, simulating a
// feed that stopped updating. Update itself refuses stale points, so tests
// age entries after insertion.
func ageVenuePoints(c *Cache, venue, symbol string, age time.Duration) {
	slot := c.slot(symbol)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	h := slot.heaps[venue]
	for i := range h.items {
		h.items[i].Timestamp = time.Now().Add(-age)
	}
	if best := slot.best.Load(); best != nil {
		aged := best.Clone()
		if aged.BestBid.Venue == venue {
			aged.BestBid.Timestamp = time.Now().Add(-age)
		}
		if aged.BestAsk.Venue == venue {
			aged.BestAsk.Timestamp = time.Now().Add(-age)
		}
		slot.best.Store(&aged)
	}
}

func TestCache_CleanupExpiredEvictsStaleEntries(t *testing.T) {
	c := testCache(t, Config{HeapCapacityPerVenue: 8, MaxAge: time.Second, SubscriberBuffer: 8})
	ctx := context.Background()

	require.NoError(t, c.Update(ctx, domain.NewPricePoint("binance", "BTC/USDT", 50000, 50010, 1)))
	ageVenuePoints(c, "binance", "BTC/USDT", time.Hour)

	removed := c.CleanupExpired(ctx)
	assert.Equal(t, 1, removed)

	_, ok := c.GetVenuePrice("binance", "BTC/USDT")
	assert.False(t, ok)
}

func TestCache_CleanupPromotesSurvivorWhenBestExpires(t *testing.T) {
	c := testCache(t, Config{HeapCapacityPerVenue: 8, MaxAge: time.Second, SubscriberBuffer: 8})
	ctx := context.Background()

	// bybit holds the best bid; binance is the surviving fallback.
	require.NoError(t, c.Update(ctx, domain.NewPricePoint("binance", "BTC/USDT", 50000, 50010, 2)))
	require.NoError(t, c.Update(ctx, domain.NewPricePoint("bybit", "BTC/USDT", 50100, 50120, 3)))
	ageVenuePoints(c, "bybit", "BTC/USDT", time.Hour)

	c.CleanupExpired(ctx)

	best, ok := c.GetBestPrices("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, "binance", best.BestBid.Venue)
	assert.Equal(t, "binance", best.BestAsk.Venue)
}

func TestCache_CleanupDegradesSymbolWithNoSurvivors(t *testing.T) {
	c := testCache(t, Config{HeapCapacityPerVenue: 8, MaxAge: time.Second, SubscriberBuffer: 8})
	ctx := context.Background()

	require.NoError(t, c.Update(ctx, domain.NewPricePoint("binance", "BTC/USDT", 50000, 50010, 1)))

	ch, unsub := c.SubscribePriceUpdates()
	defer unsub()

	ageVenuePoints(c, "binance", "BTC/USDT", time.Hour)
	c.CleanupExpired(ctx)

	_, ok := c.GetBestPrices("BTC/USDT")
	assert.False(t, ok, "symbol with no surviving observations must lose its best view")

	select {
	case ev := <-ch:
		assert.True(t, ev.Degraded)
		assert.Equal(t, "BTC/USDT", ev.Symbol)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for degraded event")
	}
}

func TestCache_SubscribePriceUpdatesReceivesEvent(t *testing.T) {
	c := testCache(t, DefaultConfig())
	ch, unsub := c.SubscribePriceUpdates()
	defer unsub()

	require.NoError(t, c.Update(context.Background(), domain.NewPricePoint("binance", "BTC/USDT", 50000, 50010, 2)))

	select {
	case ev := <-ch:
		assert.Equal(t, "BTC/USDT", ev.Symbol)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for price update event")
	}
}

func TestCache_SlowSubscriberDropsEventsWithoutBlocking(t *testing.T) {
	c := testCache(t, Config{HeapCapacityPerVenue: 8, MaxAge: time.Minute, SubscriberBuffer: 1})
	ch, unsub := c.SubscribePriceUpdates()
	defer unsub()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Update(context.Background(), domain.NewPricePoint("binance", "BTC/USDT", float64(50000+i), float64(50010+i), 2)))
	}

	// publisher never blocked; at least one event is buffered for the slow subscriber.
	select {
	case <-ch:
	default:
		t.Fatal("expected at least one buffered event")
	}
}

func TestCache_SymbolsLockIndependently(t *testing.T) {
	c := testCache(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, c.Update(ctx, domain.NewPricePoint("binance", "BTC/USDT", 50000, 50010, 2)))
	require.NoError(t, c.Update(ctx, domain.NewPricePoint("binance", "ETH/USDT", 2000, 2001, 2)))

	// Hold one symbol's write lock; the other symbol must still update and
	// read, and the locked symbol's last-published snapshot must still be
	// readable (snapshot loads take no lock at all).
	btc := c.slot("BTC/USDT")
	btc.mu.Lock()
	defer btc.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Update(ctx, domain.NewPricePoint("bybit", "ETH/USDT", 2002, 2003, 2))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("update for an unrelated symbol blocked behind another symbol's lock")
	}

	best, ok := c.GetBestPrices("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, "binance", best.BestBid.Venue)

	eth, ok := c.GetBestPrices("ETH/USDT")
	require.True(t, ok)
	assert.Equal(t, "bybit", eth.BestBid.Venue)
}

func TestPriceHeap_InsertEvictsLowestQualityOverCapacity(t *testing.T) {
	h := newPriceHeap(2)
	h.insert(domain.PricePoint{Venue: "a", QualityScore: 0.1})
	h.insert(domain.PricePoint{Venue: "b", QualityScore: 0.9})
	h.insert(domain.PricePoint{Venue: "c", QualityScore: 0.5}) // QualityScore stays float64: a dimensionless rank, not a price

	assert.Equal(t, 2, h.Len())
	best, ok := h.best()
	require.True(t, ok)
	assert.Equal(t, "b", best.Venue)
}
