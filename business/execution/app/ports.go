package app

import (
	"context"

	"github.com/shopspring/decimal"

	arbdomain "github.com/fd1az/arb-core/business/arbitrage/domain"
)

// OrderPlacer issues a single order leg via a venue's trading REST API. Real
// venue credentials and order-placement endpoints are outside this pack's
// retrieved scope (no authenticated trading API reference was retrieved for
// any venue); callers wire a concrete implementation per deployment.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, leg arbdomain.Leg, size decimal.Decimal) (orderID string, err error)
}

// BatchGuard vetoes an order-splitting plan whose chunk count exceeds the
// system's order-batch limit. Returning false downgrades the plan to a
// single unsplit order rather than dropping the opportunity.
type BatchGuard func(ctx context.Context, chunks int) bool

// Predictor is the seam to the external slippage prediction service,
// satisfied by infra.PredictorAdapter wrapping infra.SlippageClient.
type Predictor interface {
	Predict(ctx context.Context, venue, symbol string, side arbdomain.Side, sizeUSD decimal.Decimal) (expectedSlippageBps decimal.Decimal, confidence decimal.Decimal, err error)
	Compensate(ctx context.Context, venue, symbol string, side arbdomain.Side, sizeUSD decimal.Decimal) (priceAdjustmentBps decimal.Decimal, chunkSizes []decimal.Decimal, chunkInterval int, err error)
	Record(ctx context.Context, venue, symbol string, predictedBps, actualBps decimal.Decimal)
}
