package asset_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arb-core/internal/asset"
)

func TestAmountRoundTrip(t *testing.T) {
	// 1 BTC = 1e8 satoshis.
	oneBTC := asset.NewAmount(asset.BTC, big.NewInt(1e8))

	require.False(t, oneBTC.IsZero())
	require.True(t, oneBTC.ToDecimal().Equal(decimal.NewFromInt(1)))
	require.Equal(t, "1 BTC", oneBTC.String())
}

func TestAmountArithmetic(t *testing.T) {
	oneBTC := asset.NewAmount(asset.BTC, big.NewInt(1e8))
	twoBTC := asset.NewAmount(asset.BTC, big.NewInt(2e8))

	sum, err := oneBTC.Add(twoBTC)
	require.NoError(t, err)
	require.True(t, sum.ToDecimal().Equal(decimal.NewFromInt(3)))

	diff, err := twoBTC.Sub(oneBTC)
	require.NoError(t, err)
	require.True(t, diff.ToDecimal().Equal(decimal.NewFromInt(1)))
}

func TestAmountRejectsCrossAssetMath(t *testing.T) {
	oneBTC := asset.NewAmount(asset.BTC, big.NewInt(1e8))
	oneUSDT := asset.NewAmount(asset.USDT, big.NewInt(1e6))

	_, err := oneBTC.Add(oneUSDT)
	require.ErrorIs(t, err, asset.ErrAssetMismatch)
}

func TestAmountSubRefusesNegativeResult(t *testing.T) {
	oneBTC := asset.NewAmount(asset.BTC, big.NewInt(1e8))
	twoBTC := asset.NewAmount(asset.BTC, big.NewInt(2e8))

	_, err := oneBTC.Sub(twoBTC)
	require.ErrorIs(t, err, asset.ErrNegativeResult)
}

func TestParseDecimal(t *testing.T) {
	amount, err := asset.ParseDecimal(asset.BTC, decimal.NewFromFloat(1.5))
	require.NoError(t, err)
	require.Zero(t, amount.Raw().Cmp(big.NewInt(150_000_000)))
}

func TestParseDecimalRejectsExcessPrecision(t *testing.T) {
	// USDT has 6 decimals; 7 places must not be silently truncated.
	_, err := asset.ParseDecimal(asset.USDT, decimal.RequireFromString("1.1234567"))
	require.ErrorIs(t, err, asset.ErrTooManyDecimals)
}

func TestParseStringFromWireQuote(t *testing.T) {
	amount, err := asset.ParseString(asset.USDT, "65000.25")
	require.NoError(t, err)
	require.Equal(t, "65000.25 USDT", amount.String())

	_, err = asset.ParseString(asset.USDT, "not-a-number")
	require.Error(t, err)
}

func TestPriceConvert(t *testing.T) {
	price := asset.NewPriceNow(asset.BTC, asset.USDT, decimal.NewFromInt(65000))
	oneBTC := asset.NewAmount(asset.BTC, big.NewInt(1e8))

	quoted, err := price.Convert(oneBTC)
	require.NoError(t, err)
	require.True(t, quoted.ToDecimal().Equal(decimal.NewFromInt(65000)),
		"got %s", quoted.ToDecimal().String())

	// Converting an amount in the wrong asset must fail, not misprice.
	oneUSDT := asset.NewAmount(asset.USDT, big.NewInt(1e6))
	_, err = price.Convert(oneUSDT)
	require.ErrorIs(t, err, asset.ErrAssetMismatch)
}

func TestPriceInvert(t *testing.T) {
	price := asset.NewPriceNow(asset.BTC, asset.USDT, decimal.NewFromInt(2000))

	inverted := price.Invert()
	require.Equal(t, "USDT/BTC", inverted.Pair())

	diff := inverted.Rate().Sub(decimal.NewFromFloat(0.0005)).Abs()
	require.True(t, diff.LessThan(decimal.NewFromFloat(0.0000001)),
		"expected ~0.0005, got %s", inverted.Rate().String())
}

func TestPriceStaleness(t *testing.T) {
	fresh := asset.NewPriceNow(asset.BTC, asset.USDT, decimal.NewFromInt(65000))
	require.False(t, fresh.IsStale(time.Minute))

	old := asset.NewPrice(asset.BTC, asset.USDT, decimal.NewFromInt(65000), time.Now().Add(-2*time.Minute))
	require.True(t, old.IsStale(time.Minute))
}

func TestAssetIDIdentity(t *testing.T) {
	require.True(t, asset.NewAssetID("BTC").Equals(asset.NewAssetID("BTC")))
	require.False(t, asset.NewAssetID("BTC").Equals(asset.NewAssetID("ETH")))
}

func TestDefaultRegistry(t *testing.T) {
	r := asset.DefaultRegistry()

	btc, ok := r.GetBySymbol("BTC")
	require.True(t, ok)
	require.Equal(t, "BTC", btc.Symbol())

	usdt, ok := r.GetBySymbol("USDT")
	require.True(t, ok)
	require.Equal(t, uint8(6), usdt.Decimals())

	require.NotZero(t, r.Count())
}
