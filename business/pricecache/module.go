// Package pricecache implements the pricecache bounded context: the global
// best-bid/best-ask cache fed by every marketdata venue adapter.
package pricecache

import (
	"context"
	"time"

	arbApp "github.com/fd1az/arb-core/business/arbitrage/app"
	arbDI "github.com/fd1az/arb-core/business/arbitrage/di"
	pcapp "github.com/fd1az/arb-core/business/pricecache/app"
	pcDI "github.com/fd1az/arb-core/business/pricecache/di"
	"github.com/fd1az/arb-core/internal/config"
	"github.com/fd1az/arb-core/internal/di"
	"github.com/fd1az/arb-core/internal/logger"
	"github.com/fd1az/arb-core/internal/monolith"
)

// Module implements the pricecache bounded context.
type Module struct{}

// RegisterServices registers the global price Cache.
func (m *Module) RegisterServices(c di.Container) error {
	cfg := di.Resolve[*config.Config](c, "config")
	lg := di.Resolve[logger.LoggerInterface](c, "logger")

	cacheCfg := pcapp.DefaultConfig()
	if cfg.MarketData.QualityWindow > 0 {
		cacheCfg.MaxAge = cfg.MarketData.QualityWindow
	}
	if cfg.Arbitrage.MinProfitBps > 0 {
		cacheCfg.MinArbSpreadBps = cfg.Arbitrage.MinProfitBps
	}

	cache := pcapp.New(cacheCfg, lg)
	c.Register(pcDI.Cache, cache)
	return nil
}

// Startup runs the periodic stale-entry cleanup loop for the lifetime of ctx.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cache := di.Resolve[*pcapp.Cache](mono.Services(), pcDI.Cache)
	log := mono.Logger()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cache.CleanupExpired(ctx)
			}
		}
	}()

	if svc, ok := mono.Services().Get(arbDI.Reporter); ok {
		if reporter, ok := svc.(arbApp.Reporter); ok {
			updates, unsubscribe := cache.SubscribePriceUpdates()
			go func() {
				defer unsubscribe()
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
						reporter.UpdateBestPrices(ev.Symbol, ev.Best)
					}
				}
			}()
		}
	}

	log.Info(ctx, "pricecache module started")
	return nil
}
