// Package app implements the risk controller: a single pre-trade gate
// (CanExecute) guarding daily loss, per-venue and overall exposure, and an
// emergency circuit, with a profit threshold that widens or narrows with
// the prevailing volatility regime. Grounded in the teacher's
// ProfitCalculator threshold-comparison pattern, generalized from a fixed
// bps constant to a dynamic, regime-adjusted one, with sony/gobreaker/v2 —
// present unwired in the teacher's go.mod — providing the emergency circuit.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-core/business/risk/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arb-core/business/risk/app"
	meterName  = tracerName
)

var errRecordedFailure = errors.New("risk: recorded strategy failure")

// Config bounds the controller's thresholds and circuit sensitivity.
type Config struct {
	MaxPositionUSD              decimal.Decimal
	MaxDailyLossUSD             decimal.Decimal
	BaseMinProfitBps            decimal.Decimal
	CautionRegimeMultiplier     decimal.Decimal
	ExtremeRegimeMultiplier     decimal.Decimal
	CalmRegimeMultiplier        decimal.Decimal
	CircuitMaxRequests          uint32
	CircuitInterval             time.Duration
	CircuitTimeout              time.Duration
	CircuitFailureRatio         float64
	ConsecutiveFailureThreshold uint32
}

// Controller is the process-wide pre-trade gate. All mutable state is
// guarded by a single mutex, matching the design's "single lock, O(1)
// operations" resource policy for risk bookkeeping.
type Controller struct {
	cfg Config
	log logger.LoggerInterface

	mu              sync.Mutex
	dailyLossUSD    decimal.Decimal
	dailyResetDate  string
	exposureByVenue map[string]decimal.Decimal
	totalExposure   decimal.Decimal
	regime          domain.Regime

	breaker *gobreaker.CircuitBreaker[bool]

	tracer      trace.Tracer
	rejections  metric.Int64Counter
	approvals   metric.Int64Counter
	circuitTrip metric.Int64Counter
}

// New builds a Controller.
func New(cfg Config, log logger.LoggerInterface) *Controller {
	meter := otel.Meter(meterName)
	rejections, _ := meter.Int64Counter("risk.rejections_total")
	approvals, _ := meter.Int64Counter("risk.approvals_total")
	circuitTrip, _ := meter.Int64Counter("risk.circuit_trips_total")

	c := &Controller{
		cfg:             cfg,
		log:             log,
		exposureByVenue: make(map[string]decimal.Decimal),
		dailyResetDate:  time.Now().UTC().Format("2006-01-02"),
		regime:          domain.RegimeNormal,
		tracer:          otel.Tracer(tracerName),
		rejections:      rejections,
		approvals:       approvals,
		circuitTrip:     circuitTrip,
	}

	consecutiveThreshold := cfg.ConsecutiveFailureThreshold
	if consecutiveThreshold == 0 {
		consecutiveThreshold = 5
	}

	c.breaker = gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:        "risk.emergency_circuit",
		MaxRequests: 1,
		Interval:    cfg.CircuitInterval,
		Timeout:     cfg.CircuitTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= consecutiveThreshold {
				return true
			}
			if cfg.CircuitMaxRequests > 0 && counts.Requests >= cfg.CircuitMaxRequests {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= cfg.CircuitFailureRatio
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "risk circuit state change", "from", from.String(), "to", to.String())
		},
	})

	return c
}

// SetRegime updates the prevailing volatility regime, which scales the
// minimum-profit threshold used by subsequent CanExecute calls.
func (c *Controller) SetRegime(r domain.Regime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regime = r
}

func (c *Controller) minProfitBpsLocked() decimal.Decimal {
	base := c.cfg.BaseMinProfitBps
	switch c.regime {
	case domain.RegimeCaution:
		return base.Mul(nonZero(c.cfg.CautionRegimeMultiplier, decimal.NewFromFloat(1.5)))
	case domain.RegimeExtreme:
		return base.Mul(nonZero(c.cfg.ExtremeRegimeMultiplier, decimal.NewFromFloat(2.5)))
	case domain.RegimeCalm:
		return base.Mul(nonZero(c.cfg.CalmRegimeMultiplier, decimal.NewFromFloat(0.75)))
	default:
		return base
	}
}

func nonZero(d, fallback decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return fallback
	}
	return d
}

func (c *Controller) rollDailyLossLocked() {
	today := time.Now().UTC().Format("2006-01-02")
	if today != c.dailyResetDate {
		c.dailyResetDate = today
		c.dailyLossUSD = decimal.Zero
	}
}

// CanExecute is the pre-trade gate. Either the projected exposure is
// reserved and true returned, or nothing is mutated and false is returned —
// callers never observe a reservation without the corresponding approval.
func (c *Controller) CanExecute(ctx context.Context, venue string, projectedProfitUSD, notionalUSD decimal.Decimal) (domain.Decision, error) {
	ctx, span := c.tracer.Start(ctx, "risk.can_execute", trace.WithAttributes(attribute.String("venue", venue)))
	defer span.End()

	if c.breaker.State() == gobreaker.StateOpen {
		return c.reject(ctx, "emergency circuit open"), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollDailyLossLocked()

	if c.cfg.MaxDailyLossUSD.IsPositive() && c.dailyLossUSD.GreaterThanOrEqual(c.cfg.MaxDailyLossUSD) {
		return c.rejectLocked(ctx, "daily loss limit reached"), nil
	}

	minProfitBps := c.minProfitBpsLocked()
	minProfitUSD := notionalUSD.Mul(minProfitBps).Div(decimal.NewFromInt(10000))
	if projectedProfitUSD.LessThan(minProfitUSD) {
		return c.rejectLocked(ctx, "projected profit below dynamic threshold"), nil
	}

	newTotal := c.totalExposure.Add(notionalUSD)
	if c.cfg.MaxPositionUSD.IsPositive() && newTotal.GreaterThan(c.cfg.MaxPositionUSD) {
		return c.rejectLocked(ctx, "overall exposure limit reached"), nil
	}
	newVenueExposure := c.exposureByVenue[venue].Add(notionalUSD)
	if c.cfg.MaxPositionUSD.IsPositive() && newVenueExposure.GreaterThan(c.cfg.MaxPositionUSD) {
		return c.rejectLocked(ctx, "per-venue exposure limit reached"), nil
	}

	c.totalExposure = newTotal
	c.exposureByVenue[venue] = newVenueExposure

	if c.approvals != nil {
		c.approvals.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", venue)))
	}
	return domain.Decision{Approved: true, MinProfitBpsUsed: minProfitBpsFloat(minProfitBps)}, nil
}

func minProfitBpsFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func (c *Controller) reject(ctx context.Context, reason string) domain.Decision {
	if c.rejections != nil {
		c.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
	return domain.Decision{Approved: false, Reason: reason}
}

func (c *Controller) rejectLocked(ctx context.Context, reason string) domain.Decision {
	return c.reject(ctx, reason)
}

// ReleaseExposure frees notionalUSD reserved against venue, called once a
// chunked execution settles (whether it filled, partially filled, or
// failed outright).
func (c *Controller) ReleaseExposure(venue string, notionalUSD decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalExposure = c.totalExposure.Sub(notionalUSD)
	if c.totalExposure.IsNegative() {
		c.totalExposure = decimal.Zero
	}
	remaining := c.exposureByVenue[venue].Sub(notionalUSD)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	c.exposureByVenue[venue] = remaining
}

// RecordResult feeds a strategy's realized outcome into the daily loss
// tally and the emergency circuit.
func (c *Controller) RecordResult(ctx context.Context, success bool, realizedPnLUSD decimal.Decimal) {
	c.mu.Lock()
	c.rollDailyLossLocked()
	if realizedPnLUSD.IsNegative() {
		c.dailyLossUSD = c.dailyLossUSD.Add(realizedPnLUSD.Neg())
	}
	c.mu.Unlock()

	before := c.breaker.State()
	_, _ = c.breaker.Execute(func() (bool, error) {
		if success {
			return true, nil
		}
		return false, errRecordedFailure
	})
	if after := c.breaker.State(); after == gobreaker.StateOpen && before != gobreaker.StateOpen {
		if c.circuitTrip != nil {
			c.circuitTrip.Add(ctx, 1)
		}
		c.log.Warn(ctx, "risk emergency circuit tripped")
	}
}

// Snapshot reports current exposure and daily-loss state for diagnostics.
type Snapshot struct {
	TotalExposureUSD decimal.Decimal
	DailyLossUSD     decimal.Decimal
	Regime           domain.Regime
	CircuitOpen      bool
}

// Snapshot returns a point-in-time view of the controller's state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		TotalExposureUSD: c.totalExposure,
		DailyLossUSD:     c.dailyLossUSD,
		Regime:           c.regime,
		CircuitOpen:      c.breaker.State() == gobreaker.StateOpen,
	}
}
