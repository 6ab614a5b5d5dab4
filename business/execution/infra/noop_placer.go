package infra

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	arbdomain "github.com/fd1az/arb-core/business/arbitrage/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

// LoggingPlacer is the default OrderPlacer: it logs the order it would place
// and returns a synthetic order ID. No venue in this pack was retrieved with
// an authenticated trading REST API, so real order placement is left as an
// interface for a deployment to fill in with venue-specific credentials.
type LoggingPlacer struct {
	log logger.LoggerInterface
}

// NewLoggingPlacer builds a LoggingPlacer.
func NewLoggingPlacer(log logger.LoggerInterface) *LoggingPlacer {
	return &LoggingPlacer{log: log}
}

// PlaceOrder logs the intended order and fabricates an order ID.
func (p *LoggingPlacer) PlaceOrder(ctx context.Context, leg arbdomain.Leg, size decimal.Decimal) (string, error) {
	id := uuid.NewString()
	p.log.Info(ctx, "placing order",
		"order_id", id, "venue", leg.Venue, "symbol", leg.Symbol,
		"side", string(leg.Side), "price", leg.Price.String(), "size", size.String())
	return id, nil
}
