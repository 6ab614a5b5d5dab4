package app

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arb-core/business/limits/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

func testValidator(t *testing.T, limits Limits) *Validator {
	t.Helper()
	return New(limits, logger.New(io.Discard, logger.LevelDebug, "test"))
}

func TestRegisterExchange_UpToLimitSucceeds(t *testing.T) {
	v := testValidator(t, Limits{MaxSupportedExchanges: 20, MaxSupportedSymbols: 50, MaxSymbolsPerExchange: 10})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		res := v.RegisterExchange(ctx, fmt.Sprintf("venue-%d", i))
		require.True(t, res.IsValid)
	}
	assert.Equal(t, 20, v.Status().CurrentExchangeCount)
}

func TestRegisterExchange_21stRejected(t *testing.T) {
	v := testValidator(t, Limits{MaxSupportedExchanges: 20, MaxSupportedSymbols: 50, MaxSymbolsPerExchange: 10})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.True(t, v.RegisterExchange(ctx, fmt.Sprintf("venue-%d", i)).IsValid)
	}

	res := v.RegisterExchange(ctx, "venue-20")
	require.False(t, res.IsValid)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, domain.ViolationExchangeCountExceeded, res.Violations[0].Type)

	// active set size must remain exactly 20, state unmutated by the rejected call.
	assert.Equal(t, 20, v.Status().CurrentExchangeCount)
	assert.Len(t, v.ViolationHistory(0), 1)
}

func TestRegisterExchange_ReRegisterSameVenueIsIdempotent(t *testing.T) {
	v := testValidator(t, Limits{MaxSupportedExchanges: 1, MaxSupportedSymbols: 50, MaxSymbolsPerExchange: 10})
	ctx := context.Background()

	require.True(t, v.RegisterExchange(ctx, "binance").IsValid)
	require.True(t, v.RegisterExchange(ctx, "binance").IsValid)
	assert.Equal(t, 1, v.Status().CurrentExchangeCount)
}

func TestRegisterSymbol_GlobalCapExceeded(t *testing.T) {
	v := testValidator(t, Limits{MaxSupportedExchanges: 5, MaxSupportedSymbols: 2, MaxSymbolsPerExchange: 10})
	ctx := context.Background()
	require.True(t, v.RegisterExchange(ctx, "binance").IsValid)

	require.True(t, v.RegisterSymbol(ctx, "binance", "BTC/USDT").IsValid)
	require.True(t, v.RegisterSymbol(ctx, "binance", "ETH/USDT").IsValid)

	res := v.RegisterSymbol(ctx, "binance", "SOL/USDT")
	require.False(t, res.IsValid)
	assert.Equal(t, domain.ViolationSymbolCountExceeded, res.Violations[0].Type)
	assert.Equal(t, 2, v.Status().CurrentSymbolCount)
}

func TestRegisterSymbol_PerExchangeCapExceeded(t *testing.T) {
	v := testValidator(t, Limits{MaxSupportedExchanges: 5, MaxSupportedSymbols: 50, MaxSymbolsPerExchange: 1})
	ctx := context.Background()
	require.True(t, v.RegisterExchange(ctx, "binance").IsValid)

	require.True(t, v.RegisterSymbol(ctx, "binance", "BTC/USDT").IsValid)
	res := v.RegisterSymbol(ctx, "binance", "ETH/USDT")
	require.False(t, res.IsValid)
	assert.Equal(t, domain.ViolationSymbolPerExchangeExceeded, res.Violations[0].Type)
}

func TestValidateOrderBatchSize(t *testing.T) {
	v := testValidator(t, Limits{MaxSupportedExchanges: 5, MaxSupportedSymbols: 50, MaxSymbolsPerExchange: 10, MaxOrderBatchSize: 50})
	ctx := context.Background()

	assert.True(t, v.ValidateOrderBatchSize(ctx, 50).IsValid)
	res := v.ValidateOrderBatchSize(ctx, 51)
	assert.False(t, res.IsValid)
	assert.Equal(t, domain.ViolationOrderBatchSizeExceeded, res.Violations[0].Type)
}

func TestViolationHistory_BoundedRingTrims(t *testing.T) {
	v := testValidator(t, Limits{MaxSupportedExchanges: 1, MaxSupportedSymbols: 50, MaxSymbolsPerExchange: 10, ViolationHistorySize: 5, ViolationTrimBatch: 2})
	ctx := context.Background()
	require.True(t, v.RegisterExchange(ctx, "binance").IsValid)

	for i := 0; i < 10; i++ {
		v.RegisterExchange(ctx, fmt.Sprintf("rejected-%d", i))
	}

	assert.LessOrEqual(t, len(v.ViolationHistory(0)), 5)
}
