// Package execution implements the execution bounded context: the
// risk-gated, slippage-aware order placer sitting downstream of dispatch.
package execution

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"

	arbdomain "github.com/fd1az/arb-core/business/arbitrage/domain"
	dispatchApp "github.com/fd1az/arb-core/business/dispatch/app"
	dispatchDI "github.com/fd1az/arb-core/business/dispatch/di"
	execApp "github.com/fd1az/arb-core/business/execution/app"
	execDI "github.com/fd1az/arb-core/business/execution/di"
	execInfra "github.com/fd1az/arb-core/business/execution/infra"
	limitsApp "github.com/fd1az/arb-core/business/limits/app"
	limitsDI "github.com/fd1az/arb-core/business/limits/di"
	riskApp "github.com/fd1az/arb-core/business/risk/app"
	riskDI "github.com/fd1az/arb-core/business/risk/di"
	"github.com/fd1az/arb-core/internal/config"
	"github.com/fd1az/arb-core/internal/di"
	"github.com/fd1az/arb-core/internal/logger"
	"github.com/fd1az/arb-core/internal/monolith"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers the execution Engine, wired to a best-effort
// logging order placer and the external slippage predictor.
func (m *Module) RegisterServices(c di.Container) error {
	cfg := di.Resolve[*config.Config](c, "config")
	lg := di.Resolve[logger.LoggerInterface](c, "logger")

	slippageClient, err := execInfra.NewSlippageClient(execInfra.Config{
		BaseURL: cfg.Execution.PredictorBaseURL,
		Timeout: cfg.Execution.PredictorTimeout,
	})
	if err != nil {
		return err
	}
	predictor := execInfra.NewPredictorAdapter(slippageClient, lg)
	placer := execInfra.NewLoggingPlacer(lg)

	engine := execApp.New(execApp.Config{
		EnableSlippageCompensation:   cfg.Execution.EnableSlippageCompensation,
		EnableOrderSplitting:         cfg.Execution.EnableOrderSplitting,
		MinOrderValueForCompensation: decimal.NewFromFloat(cfg.Execution.MinOrderValueForCompensation),
		MinPredictionConfidence:      decimal.NewFromFloat(cfg.Execution.MinPredictionConfidence),
		PredictionTimeout:            cfg.Execution.PredictorTimeout,
		ChunkDeadline:                cfg.Execution.ChunkDeadline,
		HistorySize:                  cfg.Limits.ViolationHistorySize,
	}, placer, predictor, lg)

	c.Register(execDI.Engine, engine)
	return nil
}

// Startup installs the risk-gated execution handler onto the dispatch
// queue. Resolving risk.Controller and dispatch.Queue here (rather than in
// RegisterServices) is safe because the monolith runs every module's
// RegisterServices before any module's Startup.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	reg := mono.Services()
	engine := di.Resolve[*execApp.Engine](reg, execDI.Engine)
	controller := di.Resolve[*riskApp.Controller](reg, riskDI.Controller)
	queue := di.Resolve[*dispatchApp.Queue](reg, dispatchDI.Queue)
	validator := di.Resolve[*limitsApp.Validator](reg, limitsDI.Validator)

	lg := mono.Logger()

	engine.SetBatchGuard(func(ctx context.Context, chunks int) bool {
		return validator.ValidateOrderBatchSize(ctx, chunks).IsValid
	})

	// In-flight opportunity count, checked against the concurrency cap
	// before each execution admits.
	var inFlight atomic.Int64

	queue.SetHandler(func(ctx context.Context, opp arbdomain.Opportunity) error {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		if result := validator.ValidateConcurrentOpportunities(ctx, int(current)); !result.IsValid {
			lg.Warn(ctx, "opportunity dropped: concurrency limit reached", "opportunity_id", opp.ID, "in_flight", current)
			return nil
		}

		venue := ""
		notional := decimal.Zero
		for _, leg := range opp.Legs {
			notional = notional.Add(leg.Notional())
		}
		if len(opp.Legs) > 0 {
			venue = opp.Legs[0].Venue
		}

		decision, err := controller.CanExecute(ctx, venue, opp.NetProfitUSD, notional)
		if err != nil {
			return err
		}
		if !decision.Approved {
			lg.Info(ctx, "opportunity rejected by risk controller", "opportunity_id", opp.ID, "reason", decision.Reason)
			return nil
		}
		defer controller.ReleaseExposure(venue, notional)

		result, err := engine.Execute(ctx, opp)
		if err != nil {
			controller.RecordResult(ctx, false, decimal.Zero)
			return err
		}
		if !result.Accepted {
			controller.RecordResult(ctx, false, decimal.Zero)
			lg.Warn(ctx, "execution not accepted", "opportunity_id", opp.ID, "reason", result.Reason)
			return nil
		}
		controller.RecordResult(ctx, true, opp.NetProfitUSD)
		return nil
	})

	lg.Info(ctx, "execution module started")
	return nil
}
