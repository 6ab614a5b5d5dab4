package asset

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// PricePrecision is the internal fixed-point precision of a Price rate.
// Wide enough that inverting a sub-satoshi rate (a cheap alt quoted in BTC)
// keeps meaningful digits.
const PricePrecision = 18

var pricePrecisionMultiplier = new(big.Int).Exp(big.NewInt(10), big.NewInt(PricePrecision), nil)

// Price is an observed exchange rate between two registered assets, held as
// a PricePrecision fixed-point integer: BTC/USDT at 65000.25 stores 65000.25
// shifted by 18 places. The timestamp is the observation time, so consumers
// can refuse stale rates.
type Price struct {
	rate      *big.Int
	base      *Asset
	quote     *Asset
	timestamp time.Time
}

// NewPrice builds a Price from a decimal rate. Panics on nil assets or a
// negative rate; both are construction bugs.
func NewPrice(base, quote *Asset, rate decimal.Decimal, timestamp time.Time) Price {
	if base == nil || quote == nil {
		panic("asset: nil base or quote in price")
	}
	if rate.IsNegative() {
		panic("asset: negative price rate")
	}

	return Price{
		rate:      rate.Shift(PricePrecision).BigInt(),
		base:      base,
		quote:     quote,
		timestamp: timestamp,
	}
}

// NewPriceNow builds a Price stamped with the current time.
func NewPriceNow(base, quote *Asset, rate decimal.Decimal) Price {
	return NewPrice(base, quote, rate, time.Now())
}

// Rate returns the rate as a decimal.
func (p Price) Rate() decimal.Decimal {
	if p.rate == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(p.rate, -PricePrecision)
}

// Base returns the asset being priced.
func (p Price) Base() *Asset {
	return p.base
}

// Quote returns the asset the rate is expressed in.
func (p Price) Quote() *Asset {
	return p.quote
}

// Timestamp returns when this rate was observed.
func (p Price) Timestamp() time.Time {
	return p.timestamp
}

// Pair renders the pair symbol, e.g. "BTC/USDT".
func (p Price) Pair() string {
	if p.base == nil || p.quote == nil {
		return "???/???"
	}
	return fmt.Sprintf("%s/%s", p.base.Symbol(), p.quote.Symbol())
}

// IsZero reports whether the rate is zero.
func (p Price) IsZero() bool {
	return p.rate == nil || p.rate.Sign() == 0
}

// Invert flips the pair: BTC/USDT at r becomes USDT/BTC at 1/r, keeping the
// original observation time.
func (p Price) Invert() Price {
	if p.IsZero() {
		return Price{
			rate:      big.NewInt(0),
			base:      p.quote,
			quote:     p.base,
			timestamp: p.timestamp,
		}
	}

	precisionSquared := new(big.Int).Mul(pricePrecisionMultiplier, pricePrecisionMultiplier)
	return Price{
		rate:      new(big.Int).Div(precisionSquared, p.rate),
		base:      p.quote,
		quote:     p.base,
		timestamp: p.timestamp,
	}
}

// Convert values an amount of the base asset in the quote asset, adjusting
// between the two assets' smallest-unit scales. Fails with ErrAssetMismatch
// when amount is not denominated in the base asset.
func (p Price) Convert(amount Amount) (Amount, error) {
	if amount.Asset() == nil {
		return Amount{}, ErrNilAsset
	}
	if !amount.Asset().ID().Equals(p.base.ID()) {
		return Amount{}, fmt.Errorf("%w: expected %s, got %s",
			ErrAssetMismatch, p.base.Symbol(), amount.Asset().Symbol())
	}

	// quoteRaw = baseRaw * rate / 10^PricePrecision, shifted by the decimals
	// difference between the two assets.
	decimalShift := int64(p.quote.Decimals()) - int64(p.base.Decimals())

	out := new(big.Int).Mul(amount.Raw(), p.rate)
	out.Div(out, pricePrecisionMultiplier)

	if decimalShift > 0 {
		out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(decimalShift), nil))
	} else if decimalShift < 0 {
		out.Div(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(-decimalShift), nil))
	}

	return NewAmount(p.quote, out), nil
}

// Age returns how old this observation is.
func (p Price) Age() time.Duration {
	return time.Since(p.timestamp)
}

// IsStale reports whether the observation is older than maxAge.
func (p Price) IsStale(maxAge time.Duration) bool {
	return p.Age() > maxAge
}

// String renders as "65000.25 BTC/USDT".
func (p Price) String() string {
	return fmt.Sprintf("%s %s", p.Rate().String(), p.Pair())
}
