package app

import (
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fd1az/arb-core/business/marketdata/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

func testCleaner(t *testing.T, cfg CleanerConfig) *Cleaner {
	t.Helper()
	return NewCleaner(cfg, logger.New(io.Discard, logger.LevelDebug, "test"))
}

func tick(bid, ask float64, at time.Time) domain.Tick {
	return domain.Tick{
		Venue: "binance", Symbol: "BTC/USDT",
		BidPrice: decimal.NewFromFloat(bid), AskPrice: decimal.NewFromFloat(ask),
		BidSize: decimal.NewFromInt(1), AskSize: decimal.NewFromInt(1),
		Timestamp: at,
	}
}

func TestCleaner_RejectsCrossedBook(t *testing.T) {
	c := testCleaner(t, DefaultCleanerConfig())
	assert.False(t, c.Accept(tick(50100, 50000, time.Now())))
}

func TestCleaner_RejectsZeroOrNegativePrices(t *testing.T) {
	c := testCleaner(t, DefaultCleanerConfig())
	assert.False(t, c.Accept(tick(0, 100, time.Now())))
	assert.False(t, c.Accept(tick(-5, 100, time.Now())))
}

func TestCleaner_RejectsStaleTick(t *testing.T) {
	c := testCleaner(t, CleanerConfig{StaleAfter: time.Second})
	assert.False(t, c.Accept(tick(50000, 50010, time.Now().Add(-time.Minute))))
}

func TestCleaner_FirstTickAlwaysAccepted(t *testing.T) {
	c := testCleaner(t, DefaultCleanerConfig())
	assert.True(t, c.Accept(tick(50000, 50010, time.Now())))
}

func TestCleaner_RejectsOutlierPriceJumpWithinWindow(t *testing.T) {
	c := testCleaner(t, CleanerConfig{MaxPriceDeviationPercent: 5, PriceChangeWindow: time.Minute, StaleAfter: time.Hour})
	now := time.Now()
	assert.True(t, c.Accept(tick(50000, 50010, now)))
	// a ~20% jump, well past the 5% limit, within the window should be rejected.
	assert.False(t, c.Accept(tick(60000, 60010, now.Add(time.Second))))
}

func TestCleaner_AcceptsLargeJumpOutsideWindow(t *testing.T) {
	c := testCleaner(t, CleanerConfig{MaxPriceDeviationPercent: 5, PriceChangeWindow: time.Second, StaleAfter: time.Hour})
	now := time.Now()
	assert.True(t, c.Accept(tick(50000, 50010, now)))
	assert.True(t, c.Accept(tick(60000, 60010, now.Add(time.Minute))))
}

func TestCleaner_LowVolumeSignal(t *testing.T) {
	c := testCleaner(t, CleanerConfig{MinVolumeThreshold: 100})
	low := tick(50000, 50010, time.Now())
	low.Volume24h = decimal.NewFromInt(10)
	assert.True(t, c.LowVolume(low))

	high := tick(50000, 50010, time.Now())
	high.Volume24h = decimal.NewFromInt(1000)
	assert.False(t, c.LowVolume(high))
}

// rawLevels builds an unsorted book side at a uniform decimal scale, the
// shape venues actually quote at (fixed tick size per instrument).
func rawLevels(n int) []domain.OrderbookLevel {
	levels := make([]domain.OrderbookLevel, n)
	for i := range levels {
		// Interleave so the side is genuinely out of order.
		price := int64(5_000_000_00 + ((n-i)%7)*100 + i*10)
		levels[i] = domain.OrderbookLevel{
			Price: decimal.New(price, -2),
			Size:  decimal.New(int64(100+i), -2),
		}
	}
	return levels
}

var sinkLevels []domain.OrderbookLevel

func TestNormalizeSide_ZeroAllocSteadyState(t *testing.T) {
	levels := rawLevels(40)
	buf := make([]domain.OrderbookLevel, 0, len(levels))

	allocs := testing.AllocsPerRun(1000, func() {
		sinkLevels = normalizeSide(buf, levels, true, DefaultMaxBookDepth)
	})
	assert.Zero(t, allocs, "normalizeSide must not allocate with a sufficient pooled buffer")
	assert.NotEmpty(t, sinkLevels)
}

func BenchmarkCleanBook(b *testing.B) {
	c := NewCleaner(DefaultCleanerConfig(), logger.New(io.Discard, logger.LevelError, "bench"))
	ob := domain.Orderbook{
		Venue: "binance", Symbol: "BTC/USDT",
		Bids: rawLevels(40), Asks: rawLevels(40),
		Timestamp: time.Now(),
	}
	// Crossed as built (same generator both sides); shift asks above bids.
	for i := range ob.Asks {
		ob.Asks[i].Price = ob.Asks[i].Price.Add(decimal.New(10_000_00, -2))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cleaned, release, ok := c.CleanBook(ob)
		if !ok {
			b.Fatal("book unexpectedly rejected")
		}
		sinkLevels = cleaned.Bids
		release()
	}
}

func BenchmarkCleanerAccept(b *testing.B) {
	c := NewCleaner(DefaultCleanerConfig(), logger.New(io.Discard, logger.LevelError, "bench"))
	t0 := tick(50000, 50010, time.Now())

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t0.Timestamp = time.Now()
		if !c.Accept(t0) {
			b.Fatal("tick unexpectedly rejected")
		}
	}
}
