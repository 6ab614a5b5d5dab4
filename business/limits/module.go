// Package limits implements the limits bounded context: the runtime guard
// that enforces exchange/symbol/concurrency caps and reports compliance.
package limits

import (
	"context"
	"time"

	limitsApp "github.com/fd1az/arb-core/business/limits/app"
	limitsDI "github.com/fd1az/arb-core/business/limits/di"
	"github.com/fd1az/arb-core/internal/config"
	"github.com/fd1az/arb-core/internal/di"
	"github.com/fd1az/arb-core/internal/logger"
	"github.com/fd1az/arb-core/internal/monolith"
)

// violationReportInterval is how often the validator logs its compliance
// status; the reference architecture's default (60s) with no config knob
// exposed, since no deployment has asked to tune it yet.
const violationReportInterval = 60 * time.Second

// Module implements the limits bounded context.
type Module struct{}

// RegisterServices registers the limits Validator, seeded from config or
// the reference architecture's defaults where a value is unset.
func (m *Module) RegisterServices(c di.Container) error {
	cfg := di.Resolve[*config.Config](c, "config")
	lg := di.Resolve[logger.LoggerInterface](c, "logger")

	lim := limitsApp.DefaultLimits()
	if cfg.Limits.MaxSupportedExchanges > 0 {
		lim.MaxSupportedExchanges = cfg.Limits.MaxSupportedExchanges
	}
	if cfg.Limits.MaxSupportedSymbols > 0 {
		lim.MaxSupportedSymbols = cfg.Limits.MaxSupportedSymbols
	}
	if cfg.Limits.MaxSymbolsPerExchange > 0 {
		lim.MaxSymbolsPerExchange = cfg.Limits.MaxSymbolsPerExchange
	}
	if cfg.Limits.MaxConcurrentOpportunities > 0 {
		lim.MaxConcurrentOpportunities = cfg.Limits.MaxConcurrentOpportunities
	}
	if cfg.Limits.MaxOrderBatchSize > 0 {
		lim.MaxOrderBatchSize = cfg.Limits.MaxOrderBatchSize
	}
	if cfg.Limits.ViolationHistorySize > 0 {
		lim.ViolationHistorySize = cfg.Limits.ViolationHistorySize
	}

	validator := limitsApp.New(lim, lg)
	c.Register(limitsDI.Validator, validator)
	return nil
}

// Startup registers every configured venue and symbol against the validator
// and starts its background compliance loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := di.Resolve[*config.Config](mono.Services(), "config")
	validator := di.Resolve[*limitsApp.Validator](mono.Services(), limitsDI.Validator)
	log := mono.Logger()

	for _, venue := range cfg.MarketData.Venues {
		if result := validator.RegisterExchange(ctx, venue.Name); !result.IsValid {
			log.Warn(ctx, "exchange registration rejected by limits validator", "venue", venue.Name)
			continue
		}
		for _, symbol := range venue.Symbols {
			if result := validator.RegisterSymbol(ctx, venue.Name, symbol); !result.IsValid {
				log.Warn(ctx, "symbol registration rejected by limits validator", "venue", venue.Name, "symbol", symbol)
			}
		}
	}

	go validator.RunComplianceLoop(ctx, violationReportInterval)

	log.Info(ctx, "limits module started")
	return nil
}
