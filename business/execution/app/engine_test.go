package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arbdomain "github.com/fd1az/arb-core/business/arbitrage/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() logger.LoggerInterface {
	return logger.New(nopWriter{}, logger.LevelError, "execution-test")
}

type stubPlacer struct {
	fail bool
}

func (s *stubPlacer) PlaceOrder(ctx context.Context, leg arbdomain.Leg, size decimal.Decimal) (string, error) {
	if s.fail {
		return "", assertError{}
	}
	return "order-" + leg.Venue, nil
}

type assertError struct{}

func (assertError) Error() string { return "placement failed" }

type stubPredictor struct {
	confidence    decimal.Decimal
	adjustmentBps decimal.Decimal
	chunkSizes    []decimal.Decimal
	recorded      bool
}

func (s *stubPredictor) Predict(ctx context.Context, venue, symbol string, side arbdomain.Side, sizeUSD decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.NewFromInt(5), s.confidence, nil
}

func (s *stubPredictor) Compensate(ctx context.Context, venue, symbol string, side arbdomain.Side, sizeUSD decimal.Decimal) (decimal.Decimal, []decimal.Decimal, int, error) {
	return s.adjustmentBps, s.chunkSizes, 0, nil
}

func (s *stubPredictor) Record(ctx context.Context, venue, symbol string, predictedBps, actualBps decimal.Decimal) {
	s.recorded = true
}

func opportunityWithLegs() arbdomain.Opportunity {
	legs := []arbdomain.Leg{
		{Venue: "binance", Symbol: "BTC/USDT", Side: arbdomain.SideBuy, Price: decimal.NewFromInt(50000), Size: decimal.NewFromFloat(0.1)},
		{Venue: "coinbase", Symbol: "BTC/USDT", Side: arbdomain.SideSell, Price: decimal.NewFromInt(50100), Size: decimal.NewFromFloat(0.1)},
	}
	return arbdomain.New("opp-1", arbdomain.KindInterExchange, "BTC/USDT", legs, decimal.NewFromFloat(0.1), decimal.NewFromInt(20), decimal.NewFromInt(10), time.Now())
}

func TestEngine_BelowCompensationThresholdUsesBasePath(t *testing.T) {
	placer := &stubPlacer{}
	predictor := &stubPredictor{confidence: decimal.NewFromFloat(0.9)}
	e := New(Config{
		EnableSlippageCompensation:   true,
		MinOrderValueForCompensation: decimal.NewFromInt(1000000),
		MinPredictionConfidence:      decimal.NewFromFloat(0.6),
	}, placer, predictor, testLogger())

	result, err := e.Execute(context.Background(), opportunityWithLegs())
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.False(t, predictor.recorded)
}

func TestEngine_LowConfidenceFallsBackToBasePath(t *testing.T) {
	placer := &stubPlacer{}
	predictor := &stubPredictor{confidence: decimal.NewFromFloat(0.4)}
	e := New(Config{
		EnableSlippageCompensation:   true,
		MinOrderValueForCompensation: decimal.Zero,
		MinPredictionConfidence:      decimal.NewFromFloat(0.6),
	}, placer, predictor, testLogger())

	result, err := e.Execute(context.Background(), opportunityWithLegs())
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.False(t, predictor.recorded)
}

func TestEngine_CompensatedPathSplitsAndRecords(t *testing.T) {
	placer := &stubPlacer{}
	predictor := &stubPredictor{
		confidence:    decimal.NewFromFloat(0.9),
		adjustmentBps: decimal.NewFromInt(5),
		chunkSizes:    []decimal.Decimal{decimal.NewFromFloat(0.5), decimal.NewFromFloat(0.5)},
	}
	e := New(Config{
		EnableSlippageCompensation:   true,
		EnableOrderSplitting:         true,
		MinOrderValueForCompensation: decimal.Zero,
		MinPredictionConfidence:      decimal.NewFromFloat(0.6),
	}, placer, predictor, testLogger())

	result, err := e.Execute(context.Background(), opportunityWithLegs())
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Len(t, result.OrderIDs, 4) // 2 legs * 2 chunks
	assert.True(t, predictor.recorded)
	assert.Len(t, e.History(), 1)
}

func TestEngine_BatchGuardDowngradesOversizedSplit(t *testing.T) {
	placer := &stubPlacer{}
	predictor := &stubPredictor{
		confidence:    decimal.NewFromFloat(0.9),
		adjustmentBps: decimal.NewFromInt(5),
		chunkSizes:    []decimal.Decimal{decimal.NewFromFloat(0.25), decimal.NewFromFloat(0.25), decimal.NewFromFloat(0.25), decimal.NewFromFloat(0.25)},
	}
	e := New(Config{
		EnableSlippageCompensation:   true,
		EnableOrderSplitting:         true,
		MinOrderValueForCompensation: decimal.Zero,
		MinPredictionConfidence:      decimal.NewFromFloat(0.6),
	}, placer, predictor, testLogger())
	e.SetBatchGuard(func(ctx context.Context, chunks int) bool { return chunks <= 2 })

	result, err := e.Execute(context.Background(), opportunityWithLegs())
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Len(t, result.OrderIDs, 2, "guard must downgrade to one unsplit order per leg")
}

func TestEngine_AllLegsFailReturnsUnaccepted(t *testing.T) {
	placer := &stubPlacer{fail: true}
	predictor := &stubPredictor{confidence: decimal.NewFromFloat(0.9)}
	e := New(Config{
		EnableSlippageCompensation:   false,
		MinOrderValueForCompensation: decimal.Zero,
		MinPredictionConfidence:      decimal.NewFromFloat(0.6),
	}, placer, predictor, testLogger())

	result, err := e.Execute(context.Background(), opportunityWithLegs())
	require.NoError(t, err)
	assert.False(t, result.Accepted)
}
