package asset

import (
	"math"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places the price/quantity hot path
// (business/pricecache, business/marketdata) keeps prices at once they're
// converted out of the float64 wire representation exchanges hand back.
// Price carries its rate at PricePrecision (18 places) instead, so a Price
// rate converted to this scale loses the places beyond the eighth.
const PriceScale = 8

// PriceScaleFactor is 10^PriceScale: multiply a decimal by this to get its
// scaled integer form, divide a scaled integer by this to get it back.
const PriceScaleFactor = 100_000_000

// ToFixed scales d into a PriceScale-fixed int64. Values are truncated, not
// rounded, matching Amount.ParseDecimal's boundary convention of never
// silently inflating a quantity.
func ToFixed(d decimal.Decimal) int64 {
	return d.Shift(PriceScale).Truncate(0).IntPart()
}

// FromFixed reverses ToFixed.
func FromFixed(v int64) decimal.Decimal {
	return decimal.New(v, -PriceScale)
}

// ToFixedFloat64 scales a float64 straight to PriceScale fixed-point, for
// the ingest hot path where exchanges hand back float64 (JSON numbers) and
// a decimal.Decimal intermediate would heap-allocate per quote. Plain
// float64 multiply-and-round: spot prices times 1e8 stay far inside
// float64's 2^53 exact-integer range, so the result is within ½ ULP of the
// decimal path's.
func ToFixedFloat64(f float64) int64 {
	return int64(math.Round(f * PriceScaleFactor))
}
