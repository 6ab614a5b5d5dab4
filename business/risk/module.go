// Package risk implements the risk bounded context: the pre-trade gate
// that caps exposure and daily loss and trips an emergency circuit when a
// strategy fails too often.
package risk

import (
	"context"

	"github.com/shopspring/decimal"

	pcapp "github.com/fd1az/arb-core/business/pricecache/app"
	pcDI "github.com/fd1az/arb-core/business/pricecache/di"
	riskApp "github.com/fd1az/arb-core/business/risk/app"
	riskDI "github.com/fd1az/arb-core/business/risk/di"
	"github.com/fd1az/arb-core/internal/config"
	"github.com/fd1az/arb-core/internal/di"
	"github.com/fd1az/arb-core/internal/health"
	"github.com/fd1az/arb-core/internal/logger"
	"github.com/fd1az/arb-core/internal/monolith"
)

// Module implements the risk bounded context.
type Module struct{}

// RegisterServices registers the risk Controller.
func (m *Module) RegisterServices(c di.Container) error {
	cfg := di.Resolve[*config.Config](c, "config")
	lg := di.Resolve[logger.LoggerInterface](c, "logger")

	controller := riskApp.New(riskApp.Config{
		MaxPositionUSD:              decimal.NewFromFloat(cfg.Risk.MaxPositionUSD),
		MaxDailyLossUSD:             decimal.NewFromFloat(cfg.Risk.MaxDailyLossUSD),
		BaseMinProfitBps:            decimal.NewFromFloat(cfg.Risk.MinProfitThresholdBps),
		CautionRegimeMultiplier:     decimal.NewFromFloat(cfg.Risk.CautionRegimeMultiplier),
		ExtremeRegimeMultiplier:     decimal.NewFromFloat(cfg.Risk.ExtremeRegimeMultiplier),
		CalmRegimeMultiplier:        decimal.NewFromFloat(cfg.Risk.CalmRegimeMultiplier),
		CircuitMaxRequests:          cfg.Risk.CircuitMaxRequests,
		CircuitInterval:             cfg.Risk.CircuitInterval,
		CircuitTimeout:              cfg.Risk.CircuitTimeout,
		CircuitFailureRatio:         cfg.Risk.CircuitFailureRatio,
		ConsecutiveFailureThreshold: cfg.Risk.ConsecutiveFailureThreshold,
	}, lg)

	c.Register(riskDI.Controller, controller)
	return nil
}

// Startup registers a health check reflecting the circuit breaker's state
// and starts the volatility feed: a subscription to the price cache's update
// stream whose realized-volatility estimate drives the controller's regime.
// The controller's daily-loss rollover is checked lazily on each CanExecute
// call, so nothing else runs in background.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	services := mono.Services()
	controller := di.Resolve[*riskApp.Controller](services, riskDI.Controller)
	cache := di.Resolve[*pcapp.Cache](services, pcDI.Cache)
	log := mono.Logger()

	if svc, ok := services.Get(health.ContainerToken); ok {
		if healthSrv, ok := svc.(*health.Server); ok {
			healthSrv.RegisterCheck("risk.circuit", func(ctx context.Context) (bool, string) {
				if controller.Snapshot().CircuitOpen {
					return false, "circuit breaker open"
				}
				return true, ""
			})
		}
	}

	tracker := riskApp.NewVolatilityTracker(riskApp.VolatilityConfig{})
	updates, unsubscribe := cache.SubscribePriceUpdates()
	go func() {
		defer unsubscribe()
		current := controller.Snapshot().Regime
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-updates:
				if !ok {
					return
				}
				if ev.Degraded {
					continue
				}
				mid, _ := ev.Best.MidPrice().Float64()
				regime := tracker.Observe(ev.Symbol, mid, ev.At)
				if regime != current {
					log.Info(ctx, "volatility regime changed", "from", string(current), "to", string(regime))
					controller.SetRegime(regime)
					current = regime
				}
			}
		}
	}()

	log.Info(ctx, "risk module started")
	return nil
}
