package infra

import (
	"context"

	"github.com/shopspring/decimal"

	arbdomain "github.com/fd1az/arb-core/business/arbitrage/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

// PredictorAdapter adapts SlippageClient's wire DTOs to the execution
// engine's Predictor port.
type PredictorAdapter struct {
	client *SlippageClient
	log    logger.LoggerInterface
}

// NewPredictorAdapter wraps client as an app.Predictor.
func NewPredictorAdapter(client *SlippageClient, log logger.LoggerInterface) *PredictorAdapter {
	return &PredictorAdapter{client: client, log: log}
}

func sideString(s arbdomain.Side) string {
	if s == arbdomain.SideBuy {
		return "buy"
	}
	return "sell"
}

// Predict asks the external service for an expected-slippage estimate.
func (a *PredictorAdapter) Predict(ctx context.Context, venue, symbol string, side arbdomain.Side, sizeUSD decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	sizeF, _ := sizeUSD.Float64()
	resp, err := a.client.Predict(ctx, PredictRequest{
		Venue:   venue,
		Symbol:  symbol,
		Side:    sideString(side),
		SizeUSD: sizeF,
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return decimal.NewFromFloat(resp.ExpectedSlippageBps), decimal.NewFromFloat(resp.Confidence), nil
}

// Compensate asks the external service for a compensation plan.
func (a *PredictorAdapter) Compensate(ctx context.Context, venue, symbol string, side arbdomain.Side, sizeUSD decimal.Decimal) (decimal.Decimal, []decimal.Decimal, int, error) {
	sizeF, _ := sizeUSD.Float64()
	resp, err := a.client.Compensate(ctx, CompensateRequest{
		Venue:   venue,
		Symbol:  symbol,
		Side:    sideString(side),
		SizeUSD: sizeF,
	})
	if err != nil {
		return decimal.Zero, nil, 0, err
	}

	var chunkSizes []decimal.Decimal
	interval := 0
	if resp.OrderSplitting != nil {
		interval = resp.OrderSplitting.IntervalMs
		chunkSizes = make([]decimal.Decimal, 0, len(resp.OrderSplitting.ChunkSizes))
		for _, c := range resp.OrderSplitting.ChunkSizes {
			chunkSizes = append(chunkSizes, decimal.NewFromFloat(c))
		}
	}
	return decimal.NewFromFloat(resp.PriceAdjustmentBps), chunkSizes, interval, nil
}

// Record feeds the actual outcome back for the predictor's learning loop.
// Best-effort: a failure is logged, never propagated.
func (a *PredictorAdapter) Record(ctx context.Context, venue, symbol string, predictedBps, actualBps decimal.Decimal) {
	predictedF, _ := predictedBps.Float64()
	actualF, _ := actualBps.Float64()
	if err := a.client.Record(ctx, RecordRequest{
		Venue:                venue,
		Symbol:               symbol,
		PredictedSlippageBps: predictedF,
		ActualSlippageBps:    actualF,
	}); err != nil {
		a.log.Warn(ctx, "slippage record feedback failed", "error", err)
	}
}
