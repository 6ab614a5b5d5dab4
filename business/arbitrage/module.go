// Package arbitrage implements the arbitrage bounded context: the
// inter-exchange and triangular detectors that subscribe to the price
// cache's update stream and forward opportunities to the dispatcher.
package arbitrage

import (
	"context"

	"github.com/shopspring/decimal"

	arbApp "github.com/fd1az/arb-core/business/arbitrage/app"
	arbDI "github.com/fd1az/arb-core/business/arbitrage/di"
	"github.com/fd1az/arb-core/business/arbitrage/domain"
	dispatchApp "github.com/fd1az/arb-core/business/dispatch/app"
	dispatchDI "github.com/fd1az/arb-core/business/dispatch/di"
	pcapp "github.com/fd1az/arb-core/business/pricecache/app"
	pcDI "github.com/fd1az/arb-core/business/pricecache/di"
	"github.com/fd1az/arb-core/internal/config"
	"github.com/fd1az/arb-core/internal/di"
	"github.com/fd1az/arb-core/internal/logger"
	"github.com/fd1az/arb-core/internal/monolith"
)

// Module implements the arbitrage bounded context. It must be registered
// after pricecache and dispatch: RegisterServices resolves both the Cache
// to read from and the dispatch Queue to submit into.
type Module struct{}

// RegisterServices builds the Detector, wired to the price cache and the
// dispatch queue (satisfying arbApp.Sink).
func (m *Module) RegisterServices(c di.Container) error {
	cfg := di.Resolve[*config.Config](c, "config")
	lg := di.Resolve[logger.LoggerInterface](c, "logger")
	cache := di.Resolve[*pcapp.Cache](c, pcDI.Cache)
	queue := di.Resolve[*dispatchApp.Queue](c, dispatchDI.Queue)

	var reporter arbApp.Reporter
	if svc, ok := c.Get(arbDI.Reporter); ok {
		reporter, _ = svc.(arbApp.Reporter)
	}
	sink := arbApp.NewReportingSink(queue, reporter)

	perVenue := map[string]decimal.Decimal{}
	for _, v := range cfg.MarketData.Venues {
		if v.TakerFeeBps > 0 {
			perVenue[v.Name] = decimal.NewFromFloat(v.TakerFeeBps)
		}
	}
	fees := domain.NewFeeSchedule(decimal.NewFromFloat(10), perVenue)

	maxTradeSize := decimal.NewFromFloat(1)
	if sizes := cfg.Arbitrage.TradeSizesDecimal(); len(sizes) > 0 {
		maxTradeSize = sizes[0]
		for _, s := range sizes {
			if s.GreaterThan(maxTradeSize) {
				maxTradeSize = s
			}
		}
	}

	detector := arbApp.NewDetector(cache, sink, arbApp.Config{
		MinProfitBps:   cfg.Arbitrage.MinProfitBpsDecimal(),
		MaxTradeSize:   maxTradeSize,
		Fees:           fees,
		DedupeDebounce: cfg.Arbitrage.OpportunityTTL,
	}, lg)

	for _, v := range cfg.MarketData.Venues {
		for _, symbol := range v.Symbols {
			detector.RegisterSymbol(v.Name, symbol)
		}
	}

	c.Register(arbDI.Detector, detector)
	return nil
}

// Startup starts the Detector; it runs until ctx is cancelled.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	detector := di.Resolve[*arbApp.Detector](mono.Services(), arbDI.Detector)
	if err := detector.Start(ctx); err != nil {
		return err
	}
	mono.Logger().Info(ctx, "arbitrage module started")
	return nil
}
