package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arb-core/business/risk/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(nopWriter{}, logger.LevelError, "risk-test")
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func baseConfig() Config {
	return Config{
		MaxPositionUSD:              decimal.NewFromInt(10000),
		MaxDailyLossUSD:             decimal.NewFromInt(1000),
		BaseMinProfitBps:            decimal.NewFromInt(10),
		CautionRegimeMultiplier:     decimal.NewFromFloat(1.5),
		ExtremeRegimeMultiplier:     decimal.NewFromFloat(2.5),
		CalmRegimeMultiplier:        decimal.NewFromFloat(0.75),
		CircuitMaxRequests:          10,
		CircuitInterval:             time.Minute,
		CircuitTimeout:              time.Minute,
		CircuitFailureRatio:         0.6,
		ConsecutiveFailureThreshold: 3,
	}
}

func TestController_ApprovesProfitableWithinLimits(t *testing.T) {
	c := New(baseConfig(), testLogger())
	d, err := c.CanExecute(context.Background(), "binance", decimal.NewFromInt(50), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, d.Approved)
}

func TestController_RejectsBelowDynamicThreshold(t *testing.T) {
	c := New(baseConfig(), testLogger())
	// 10bps of 1000 USD = 1 USD; projected profit of 0.5 is below it.
	d, err := c.CanExecute(context.Background(), "binance", decimal.NewFromFloat(0.5), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.False(t, d.Approved)
}

func TestController_ExtremeRegimeRaisesThreshold(t *testing.T) {
	c := New(baseConfig(), testLogger())
	c.SetRegime(domain.RegimeExtreme)
	// 10bps * 2.5 = 25bps; 25bps of 1000 USD = 2.5 USD. Profit of 2 falls short.
	d, err := c.CanExecute(context.Background(), "binance", decimal.NewFromInt(2), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.False(t, d.Approved)
}

func TestController_RejectsOverOverallExposure(t *testing.T) {
	c := New(baseConfig(), testLogger())
	_, err := c.CanExecute(context.Background(), "binance", decimal.NewFromInt(500), decimal.NewFromInt(9500))
	require.NoError(t, err)

	d, err := c.CanExecute(context.Background(), "coinbase", decimal.NewFromInt(500), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Equal(t, "overall exposure limit reached", d.Reason)
}

func TestController_CircuitTripsOnConsecutiveFailures(t *testing.T) {
	c := New(baseConfig(), testLogger())
	for i := 0; i < 3; i++ {
		c.RecordResult(context.Background(), false, decimal.NewFromInt(-10))
	}

	d, err := c.CanExecute(context.Background(), "binance", decimal.NewFromInt(50), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Equal(t, "emergency circuit open", d.Reason)
}

func TestController_DailyLossLimitBlocksFurtherTrades(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxDailyLossUSD = decimal.NewFromInt(100)
	c := New(cfg, testLogger())

	c.RecordResult(context.Background(), false, decimal.NewFromInt(-150))

	d, err := c.CanExecute(context.Background(), "binance", decimal.NewFromInt(50), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Equal(t, "daily loss limit reached", d.Reason)
}

func TestController_ReleaseExposureFreesCapacity(t *testing.T) {
	c := New(baseConfig(), testLogger())
	_, err := c.CanExecute(context.Background(), "binance", decimal.NewFromInt(500), decimal.NewFromInt(9500))
	require.NoError(t, err)

	c.ReleaseExposure("binance", decimal.NewFromInt(9500))

	d, err := c.CanExecute(context.Background(), "binance", decimal.NewFromInt(500), decimal.NewFromInt(9500))
	require.NoError(t, err)
	assert.True(t, d.Approved)
}
