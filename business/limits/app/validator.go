// Package app implements the system limits validator: a runtime guard that
// enforces the architecture's exchange/symbol/concurrency caps and keeps a
// bounded, severity-tagged history of every breach. Grounded in
// original_source/.../config/system_limits.rs, translated from its
// RwLock-guarded async validator to a single mutex and synchronous methods
// (no tokio equivalent is part of the example stack; sync.RWMutex plays the
// same role here).
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-core/business/limits/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arb-core/business/limits/app"
	meterName  = tracerName
)

// Limits bounds the system, defaults matching the reference architecture.
type Limits struct {
	MaxSupportedExchanges      int
	MaxSupportedSymbols        int
	MaxSymbolsPerExchange      int
	MaxConcurrentOpportunities int
	MaxOrderBatchSize          int
	ViolationHistorySize       int
	ViolationTrimBatch         int
}

// DefaultLimits returns the reference architecture's defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxSupportedExchanges:      20,
		MaxSupportedSymbols:        50,
		MaxSymbolsPerExchange:      10,
		MaxConcurrentOpportunities: 1000,
		MaxOrderBatchSize:          50,
		ViolationHistorySize:       1000,
		ViolationTrimBatch:         100,
	}
}

// Validator enforces Limits against the currently registered venues and
// symbols, and against point-in-time concurrency/batch-size readings.
type Validator struct {
	limits Limits
	log    logger.LoggerInterface

	mu              sync.RWMutex
	activeExchanges map[string]struct{}
	activeSymbols   map[string]map[string]struct{} // exchange -> symbols
	violationCount  uint64

	history *violationRing

	tracer          trace.Tracer
	violationsTotal metric.Int64Counter
}

// New builds a Validator.
func New(limits Limits, log logger.LoggerInterface) *Validator {
	if limits.ViolationHistorySize <= 0 {
		limits.ViolationHistorySize = 1000
	}
	if limits.ViolationTrimBatch <= 0 {
		limits.ViolationTrimBatch = 100
	}

	meter := otel.Meter(meterName)
	violationsTotal, _ := meter.Int64Counter("limits.violations_total")

	return &Validator{
		limits:          limits,
		log:             log,
		activeExchanges: make(map[string]struct{}),
		activeSymbols:   make(map[string]map[string]struct{}),
		history:         newViolationRing(limits.ViolationHistorySize, limits.ViolationTrimBatch),
		tracer:          otel.Tracer(tracerName),
		violationsTotal: violationsTotal,
	}
}

// RegisterExchange admits exchange if it would not exceed the exchange-count
// limit.
func (v *Validator) RegisterExchange(ctx context.Context, exchange string) domain.Result {
	_, span := v.tracer.Start(ctx, "limits.register_exchange", trace.WithAttributes(attribute.String("exchange", exchange)))
	defer span.End()

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.activeExchanges[exchange]; exists {
		return domain.Result{IsValid: true}
	}

	if len(v.activeExchanges) >= v.limits.MaxSupportedExchanges {
		violation := v.recordViolationLocked(ctx,
			domain.ViolationExchangeCountExceeded,
			len(v.activeExchanges)+1,
			v.limits.MaxSupportedExchanges,
			fmt.Sprintf("registering exchange %q would exceed the maximum limit", exchange),
			domain.SeverityCritical,
			"remove unused exchanges or increase system capacity",
		)
		return domain.Result{
			IsValid:    false,
			Violations: []domain.Violation{violation},
			Recommendations: []string{
				"remove unused exchanges before adding new ones",
				"consider upgrading to a higher capacity deployment",
			},
		}
	}

	v.activeExchanges[exchange] = struct{}{}
	if _, ok := v.activeSymbols[exchange]; !ok {
		v.activeSymbols[exchange] = make(map[string]struct{})
	}
	return domain.Result{IsValid: true}
}

// UnregisterExchange removes exchange and its symbols.
func (v *Validator) UnregisterExchange(exchange string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.activeExchanges, exchange)
	delete(v.activeSymbols, exchange)
}

// RegisterSymbol admits symbol on exchange if neither the global symbol
// count nor the per-exchange symbol count would be exceeded.
func (v *Validator) RegisterSymbol(ctx context.Context, exchange, symbol string) domain.Result {
	_, span := v.tracer.Start(ctx, "limits.register_symbol",
		trace.WithAttributes(attribute.String("exchange", exchange), attribute.String("symbol", symbol)))
	defer span.End()

	v.mu.Lock()
	defer v.mu.Unlock()

	var violations []domain.Violation
	var recommendations []string

	totalSymbols := v.totalSymbolsLocked()
	if totalSymbols >= v.limits.MaxSupportedSymbols {
		violations = append(violations, v.recordViolationLocked(ctx,
			domain.ViolationSymbolCountExceeded,
			totalSymbols+1,
			v.limits.MaxSupportedSymbols,
			fmt.Sprintf("adding symbol %q to exchange %q would exceed the global symbol limit", symbol, exchange),
			domain.SeverityCritical,
			"remove unused symbols from other exchanges",
		))
		recommendations = append(recommendations, "implement dynamic symbol management")
	}

	exchangeSymbols, ok := v.activeSymbols[exchange]
	if !ok {
		exchangeSymbols = make(map[string]struct{})
		v.activeSymbols[exchange] = exchangeSymbols
	}
	if _, alreadyRegistered := exchangeSymbols[symbol]; !alreadyRegistered && len(exchangeSymbols) >= v.limits.MaxSymbolsPerExchange {
		violations = append(violations, v.recordViolationLocked(ctx,
			domain.ViolationSymbolPerExchangeExceeded,
			len(exchangeSymbols)+1,
			v.limits.MaxSymbolsPerExchange,
			fmt.Sprintf("exchange %q would exceed its per-exchange symbol limit with %q", exchange, symbol),
			domain.SeverityHigh,
			fmt.Sprintf("remove unused symbols from exchange %q", exchange),
		))
		recommendations = append(recommendations, fmt.Sprintf("optimize symbol selection for exchange %q", exchange))
	}

	if len(violations) > 0 {
		return domain.Result{IsValid: false, Violations: violations, Recommendations: recommendations}
	}

	exchangeSymbols[symbol] = struct{}{}
	return domain.Result{IsValid: true}
}

// UnregisterSymbol removes symbol from exchange.
func (v *Validator) UnregisterSymbol(exchange, symbol string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if symbols, ok := v.activeSymbols[exchange]; ok {
		delete(symbols, symbol)
	}
}

func (v *Validator) totalSymbolsLocked() int {
	total := 0
	for _, symbols := range v.activeSymbols {
		total += len(symbols)
	}
	return total
}

// ValidateConcurrentOpportunities checks a point-in-time reading of
// in-flight opportunities against the configured cap.
func (v *Validator) ValidateConcurrentOpportunities(ctx context.Context, count int) domain.Result {
	if count > v.limits.MaxConcurrentOpportunities {
		v.mu.Lock()
		violation := v.recordViolationLocked(ctx,
			domain.ViolationConcurrentOpportunitiesExceeded,
			count,
			v.limits.MaxConcurrentOpportunities,
			fmt.Sprintf("concurrent opportunities count (%d) exceeds limit", count),
			domain.SeverityHigh,
			"implement opportunity prioritization and throttling",
		)
		v.mu.Unlock()
		return domain.Result{
			IsValid:    false,
			Violations: []domain.Violation{violation},
			Recommendations: []string{
				"prioritize high-profit opportunities",
				"consider increasing system capacity",
			},
		}
	}
	return domain.Result{IsValid: true}
}

// ValidateOrderBatchSize checks a proposed chunked-order batch size against
// the configured cap.
func (v *Validator) ValidateOrderBatchSize(ctx context.Context, batchSize int) domain.Result {
	if batchSize > v.limits.MaxOrderBatchSize {
		v.mu.Lock()
		violation := v.recordViolationLocked(ctx,
			domain.ViolationOrderBatchSizeExceeded,
			batchSize,
			v.limits.MaxOrderBatchSize,
			fmt.Sprintf("order batch size (%d) exceeds limit", batchSize),
			domain.SeverityMedium,
			"split large order batches into smaller chunks",
		)
		v.mu.Unlock()
		return domain.Result{
			IsValid:         false,
			Violations:      []domain.Violation{violation},
			Recommendations: []string{"implement order batching strategy"},
		}
	}
	return domain.Result{IsValid: true}
}

// recordViolationLocked appends a violation to history and logs it at a
// level matching its severity. Caller must hold v.mu.
func (v *Validator) recordViolationLocked(ctx context.Context, kind domain.ViolationType, current, limit int, details string, severity domain.Severity, recommendedAction string) domain.Violation {
	violation := domain.Violation{
		ID:                uuid.NewString(),
		Type:              kind,
		Timestamp:         time.Now(),
		CurrentValue:      current,
		LimitValue:        limit,
		Details:           details,
		Severity:          severity,
		RecommendedAction: recommendedAction,
	}
	v.history.push(violation)
	v.violationCount++

	if v.violationsTotal != nil {
		v.violationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(kind)), attribute.String("severity", string(severity))))
	}

	switch severity {
	case domain.SeverityCritical:
		v.log.Error(ctx, "critical limit violation", "details", details)
	case domain.SeverityHigh:
		v.log.Warn(ctx, "high severity limit violation", "details", details)
	case domain.SeverityMedium:
		v.log.Warn(ctx, "medium severity limit violation", "details", details)
	default:
		v.log.Debug(ctx, "low severity limit violation", "details", details)
	}

	return violation
}

// ViolationHistory returns up to n of the most recent violations, newest
// first. n<=0 returns the full bounded history.
func (v *Validator) ViolationHistory(n int) []domain.Violation {
	return v.history.recent(n)
}

// ClearViolationHistory empties the violation log.
func (v *Validator) ClearViolationHistory() {
	v.history.clear()
}

// Status summarizes current registration counts and compliance.
type Status struct {
	CurrentExchangeCount      int
	CurrentSymbolCount        int
	CurrentSymbolsPerExchange map[string]int
	ViolationCount            uint64
	Compliance                domain.ComplianceStatus
}

// Status returns a point-in-time system status snapshot.
func (v *Validator) Status() Status {
	v.mu.RLock()
	defer v.mu.RUnlock()

	perExchange := make(map[string]int, len(v.activeSymbols))
	for exchange, symbols := range v.activeSymbols {
		perExchange[exchange] = len(symbols)
	}
	totalSymbols := v.totalSymbolsLocked()
	exchangeCount := len(v.activeExchanges)

	exchangePct := percent(exchangeCount, v.limits.MaxSupportedExchanges)
	symbolPct := percent(totalSymbols, v.limits.MaxSupportedSymbols)
	overall := (exchangePct + symbolPct) / 2

	return Status{
		CurrentExchangeCount:      exchangeCount,
		CurrentSymbolCount:        totalSymbols,
		CurrentSymbolsPerExchange: perExchange,
		ViolationCount:            v.violationCount,
		Compliance: domain.ComplianceStatus{
			OverallCompliancePercent: overall,
			ExchangeUsagePercent:     exchangePct,
			SymbolUsagePercent:       symbolPct,
			IsCompliant:              exchangePct <= 100 && symbolPct <= 100,
			RiskLevel:                riskLevelFor(overall),
		},
	}
}

func percent(current, max int) float64 {
	if max <= 0 {
		return 0
	}
	return (float64(current) / float64(max)) * 100
}

func riskLevelFor(overallPercent float64) domain.RiskLevel {
	switch {
	case overallPercent <= 70:
		return domain.RiskLevelLow
	case overallPercent <= 85:
		return domain.RiskLevelMedium
	case overallPercent <= 95:
		return domain.RiskLevelHigh
	default:
		return domain.RiskLevelCritical
	}
}
