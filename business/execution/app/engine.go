// Package app implements the execution engine: the risk-gated, slippage-aware
// order placer that turns an approved Opportunity into fills. Grounded in
// the teacher's Detector orchestration style (span-per-decision, structured
// logging) generalized from detection to the predict/compensate/execute/
// record flow described by the original Rust slippage-integration adapter.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbdomain "github.com/fd1az/arb-core/business/arbitrage/domain"
	"github.com/fd1az/arb-core/business/execution/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arb-core/business/execution/app"
	meterName  = tracerName
)

// Config bounds the decision tree's thresholds.
type Config struct {
	EnableSlippageCompensation   bool
	EnableOrderSplitting         bool
	MinOrderValueForCompensation decimal.Decimal
	MinPredictionConfidence      decimal.Decimal
	PredictionTimeout            time.Duration
	ChunkDeadline                time.Duration
	HistorySize                  int
}

// Engine runs the five-step execution decision tree for one opportunity at
// a time.
type Engine struct {
	cfg        Config
	placer     OrderPlacer
	predictor  Predictor
	batchGuard BatchGuard
	log        logger.LoggerInterface

	tracer trace.Tracer

	basePathTotal        metric.Int64Counter
	compensatedPathTotal metric.Int64Counter
	lowConfidenceTotal   metric.Int64Counter
	executionFailedTotal metric.Int64Counter

	history *recordRing
}

// New builds an Engine.
func New(cfg Config, placer OrderPlacer, predictor Predictor, log logger.LoggerInterface) *Engine {
	meter := otel.Meter(meterName)
	basePathTotal, _ := meter.Int64Counter("execution.base_path_total")
	compensatedPathTotal, _ := meter.Int64Counter("execution.compensated_path_total")
	lowConfidenceTotal, _ := meter.Int64Counter("execution.prediction_low_confidence_total")
	executionFailedTotal, _ := meter.Int64Counter("execution.failed_total")

	historySize := cfg.HistorySize
	if historySize <= 0 {
		historySize = 1000
	}

	return &Engine{
		cfg:                  cfg,
		placer:               placer,
		predictor:            predictor,
		log:                  log,
		tracer:               otel.Tracer(tracerName),
		basePathTotal:        basePathTotal,
		compensatedPathTotal: compensatedPathTotal,
		lowConfidenceTotal:   lowConfidenceTotal,
		executionFailedTotal: executionFailedTotal,
		history:              newRecordRing(historySize),
	}
}

// Execute runs the decision tree for opp and returns the aggregated result.
func (e *Engine) Execute(ctx context.Context, opp arbdomain.Opportunity) (domain.Result, error) {
	ctx, span := e.tracer.Start(ctx, "execution.execute",
		trace.WithAttributes(attribute.String("opportunity.id", opp.ID), attribute.String("symbol", opp.Symbol)))
	defer span.End()

	orderValueUSD := decimal.Zero
	for _, leg := range opp.Legs {
		orderValueUSD = orderValueUSD.Add(leg.Notional())
	}

	// Step 1: compensation disabled or below threshold -> base path.
	if !e.cfg.EnableSlippageCompensation || orderValueUSD.LessThan(e.cfg.MinOrderValueForCompensation) {
		e.basePathTotal.Add(ctx, 1)
		return e.executeBasePath(ctx, opp)
	}

	// Step 2: request a prediction with a timeout; low confidence -> base path.
	predictCtx, cancel := context.WithTimeout(ctx, e.predictionTimeout())
	defer cancel()

	var predictedBps decimal.Decimal
	predictedBps, confidence, err := e.predictor.Predict(predictCtx, primaryVenue(opp), opp.Symbol, primarySide(opp), orderValueUSD)
	if err != nil || confidence.LessThan(e.cfg.MinPredictionConfidence) {
		e.lowConfidenceTotal.Add(ctx, 1)
		e.basePathTotal.Add(ctx, 1)
		return e.executeBasePath(ctx, opp)
	}

	// Step 3: request a compensation plan.
	adjustmentBps, chunkSizes, intervalMs, err := e.predictor.Compensate(ctx, primaryVenue(opp), opp.Symbol, primarySide(opp), orderValueUSD)
	if err != nil {
		e.basePathTotal.Add(ctx, 1)
		return e.executeBasePath(ctx, opp)
	}
	if !e.cfg.EnableOrderSplitting {
		chunkSizes = nil
	}
	if len(chunkSizes) > 0 && e.batchGuard != nil && !e.batchGuard(ctx, len(chunkSizes)*len(opp.Legs)) {
		e.log.Warn(ctx, "splitting plan exceeds order batch limit, executing unsplit",
			"opportunity_id", opp.ID, "chunks", len(chunkSizes)*len(opp.Legs))
		chunkSizes = nil
	}

	e.compensatedPathTotal.Add(ctx, 1)

	// Step 4: execute chunked orders sequentially.
	result := e.executeCompensated(ctx, opp, adjustmentBps, chunkSizes, intervalMs)

	// Step 5: record actual slippage and report back for learning.
	actualBps := e.computeActualSlippage(opp, predictedBps)
	e.predictor.Record(ctx, primaryVenue(opp), opp.Symbol, predictedBps, actualBps)
	e.history.push(domain.ExecutionRecord{
		OpportunityID:        opp.ID,
		Venue:                primaryVenue(opp),
		Symbol:               opp.Symbol,
		PredictedSlippageBps: predictedBps,
		ActualSlippageBps:    actualBps,
		CompensationApplied:  true,
		OrderSplit:           len(chunkSizes) > 0,
		Success:              result.Accepted,
		Error:                result.Reason,
		RecordedAt:           time.Now(),
	})

	if !result.Accepted {
		e.executionFailedTotal.Add(ctx, 1)
	}
	return result, nil
}

func (e *Engine) predictionTimeout() time.Duration {
	if e.cfg.PredictionTimeout > 0 {
		return e.cfg.PredictionTimeout
	}
	return 500 * time.Millisecond
}

func primaryVenue(opp arbdomain.Opportunity) string {
	if len(opp.Legs) == 0 {
		return ""
	}
	return opp.Legs[0].Venue
}

func primarySide(opp arbdomain.Opportunity) arbdomain.Side {
	if len(opp.Legs) == 0 {
		return arbdomain.SideBuy
	}
	return opp.Legs[0].Side
}

// executeBasePath places every leg's order at its detected price with no
// adjustment or splitting, and records the outcome in the audit history
// with no slippage figures attached.
func (e *Engine) executeBasePath(ctx context.Context, opp arbdomain.Opportunity) (domain.Result, error) {
	orderIDs := make([]string, 0, len(opp.Legs))
	for _, leg := range opp.Legs {
		id, err := e.placer.PlaceOrder(ctx, leg, leg.Size)
		if err != nil {
			e.log.Warn(ctx, "execution leg failed", "opportunity_id", opp.ID, "venue", leg.Venue, "error", err)
			continue
		}
		orderIDs = append(orderIDs, id)
	}

	result := domain.Result{OpportunityID: opp.ID, Accepted: true, OrderIDs: orderIDs}
	if len(orderIDs) == 0 {
		result = domain.Result{OpportunityID: opp.ID, Accepted: false, Reason: "all legs failed"}
		e.executionFailedTotal.Add(ctx, 1)
	}
	e.history.push(domain.ExecutionRecord{
		OpportunityID: opp.ID,
		Venue:         primaryVenue(opp),
		Symbol:        opp.Symbol,
		Success:       result.Accepted,
		Error:         result.Reason,
		RecordedAt:    time.Now(),
	})
	return result, nil
}

// executeCompensated applies the price adjustment to buy/sell legs and
// splits each leg into chunks when a splitting plan was returned, executing
// chunks sequentially with a per-chunk deadline. A chunk failure does not
// stop remaining chunks.
func (e *Engine) executeCompensated(ctx context.Context, opp arbdomain.Opportunity, adjustmentBps decimal.Decimal, chunkSizes []decimal.Decimal, intervalMs int) domain.Result {
	orderIDs := make([]string, 0, len(opp.Legs))

	for _, leg := range opp.Legs {
		adjusted := applyAdjustment(leg, adjustmentBps)
		sizes := chunksFor(adjusted.Size, chunkSizes)

		for i, size := range sizes {
			chunkCtx, cancel := context.WithTimeout(ctx, e.chunkDeadline())
			id, err := e.placer.PlaceOrder(chunkCtx, adjusted, size)
			cancel()
			if err != nil {
				e.log.Warn(ctx, "execution chunk failed", "opportunity_id", opp.ID, "venue", leg.Venue, "chunk", i, "error", err)
				continue
			}
			orderIDs = append(orderIDs, id)

			if i < len(sizes)-1 && intervalMs > 0 {
				select {
				case <-time.After(time.Duration(intervalMs) * time.Millisecond):
				case <-ctx.Done():
					return domain.Result{OpportunityID: opp.ID, Accepted: len(orderIDs) > 0, OrderIDs: orderIDs, Reason: "cancelled"}
				}
			}
		}
	}

	if len(orderIDs) == 0 {
		return domain.Result{OpportunityID: opp.ID, Accepted: false, Reason: "all chunks failed"}
	}
	return domain.Result{OpportunityID: opp.ID, Accepted: true, OrderIDs: orderIDs}
}

func (e *Engine) chunkDeadline() time.Duration {
	if e.cfg.ChunkDeadline > 0 {
		return e.cfg.ChunkDeadline
	}
	return 5 * time.Second
}

func applyAdjustment(leg arbdomain.Leg, adjustmentBps decimal.Decimal) arbdomain.Leg {
	if adjustmentBps.IsZero() {
		return leg
	}
	factor := decimal.NewFromInt(1).Add(adjustmentBps.Div(decimal.NewFromInt(10000)))
	if leg.Side == arbdomain.SideSell {
		factor = decimal.NewFromInt(1).Sub(adjustmentBps.Div(decimal.NewFromInt(10000)))
	}
	leg.Price = leg.Price.Mul(factor)
	return leg
}

func chunksFor(totalSize decimal.Decimal, fractionalSizes []decimal.Decimal) []decimal.Decimal {
	if len(fractionalSizes) == 0 {
		return []decimal.Decimal{totalSize}
	}
	sizes := make([]decimal.Decimal, len(fractionalSizes))
	for i, frac := range fractionalSizes {
		sizes[i] = totalSize.Mul(frac)
	}
	return sizes
}

// computeActualSlippage is a placeholder for post-fill reconciliation: a
// real deployment compares actual fill prices (from order acks) against the
// opportunity's detected prices. No fill-price feed is wired yet, so this
// reports the predicted value unchanged, matching the original's own
// placeholder profile-based slippage recording.
func (e *Engine) computeActualSlippage(opp arbdomain.Opportunity, predictedBps decimal.Decimal) decimal.Decimal {
	return predictedBps
}

// SetBatchGuard installs the order-batch limit check consulted before a
// splitting plan is executed. Wired once by the composition root.
func (e *Engine) SetBatchGuard(guard BatchGuard) {
	e.batchGuard = guard
}

// History returns the bounded execution-record audit log.
func (e *Engine) History() []domain.ExecutionRecord {
	return e.history.snapshot()
}
