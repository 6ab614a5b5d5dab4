// Package marketdata implements the marketdata bounded context: one
// Capability-driven Adapter per configured venue, a shared data Cleaner,
// and a connection quality monitor, feeding the pricecache context.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	arbApp "github.com/fd1az/arb-core/business/arbitrage/app"
	arbDI "github.com/fd1az/arb-core/business/arbitrage/di"
	mdapp "github.com/fd1az/arb-core/business/marketdata/app"
	mdDI "github.com/fd1az/arb-core/business/marketdata/di"
	mddomain "github.com/fd1az/arb-core/business/marketdata/domain"
	"github.com/fd1az/arb-core/business/marketdata/infra/binance"
	"github.com/fd1az/arb-core/business/marketdata/infra/bybit"
	"github.com/fd1az/arb-core/business/marketdata/infra/gateio"
	"github.com/fd1az/arb-core/business/marketdata/infra/huobi"
	"github.com/fd1az/arb-core/business/marketdata/infra/okx"
	pcapp "github.com/fd1az/arb-core/business/pricecache/app"
	pcDI "github.com/fd1az/arb-core/business/pricecache/di"
	pcdomain "github.com/fd1az/arb-core/business/pricecache/domain"
	"github.com/fd1az/arb-core/internal/apperror"
	"github.com/fd1az/arb-core/internal/asset"
	"github.com/fd1az/arb-core/internal/config"
	"github.com/fd1az/arb-core/internal/di"
	"github.com/fd1az/arb-core/internal/health"
	"github.com/fd1az/arb-core/internal/logger"
	"github.com/fd1az/arb-core/internal/monolith"
)

// Module implements the marketdata bounded context.
type Module struct{}

// venueFailureSet tracks which venues' reconnect loops have given up
// (wsconn.StateFailed), for the per-venue health checks registered in
// Startup.
type venueFailureSet struct {
	mu     sync.RWMutex
	failed map[string]bool
}

func newVenueFailureSet() *venueFailureSet {
	return &venueFailureSet{failed: make(map[string]bool)}
}

func (s *venueFailureSet) mark(venue string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[venue] = true
}

func (s *venueFailureSet) clear(venue string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failed, venue)
}

func (s *venueFailureSet) isFailed(venue string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed[venue]
}

// RegisterServices registers the Cleaner, the connection quality monitor,
// and one Adapter per configured venue.
func (m *Module) RegisterServices(c di.Container) error {
	mdCfg := di.Resolve[*config.Config](c, "config").MarketData
	lg := di.Resolve[logger.LoggerInterface](c, "logger")

	cleaner := mdapp.NewCleaner(mdapp.CleanerConfig{
		MaxPriceDeviationPercent: mdCfg.MaxPriceDeviation,
		MinVolumeThreshold:       mdCfg.MinVolumeThreshold,
		StaleAfter:               mdCfg.QualityWindow,
	}, lg)
	c.Register(mdDI.Cleaner, cleaner)

	quality := mdapp.NewConnectionQualityMonitor(mdCfg.QualityEWMAAlpha, mdCfg.QualityWindow)
	c.Register(mdDI.QualityMonitor, quality)

	var healthSrv *health.Server
	if svc, ok := c.Get(health.ContainerToken); ok {
		healthSrv, _ = svc.(*health.Server)
	}

	adapters := make([]*mdapp.Adapter, 0, len(mdCfg.Venues))
	for _, v := range mdCfg.Venues {
		cap, err := buildCapability(v, lg)
		if err != nil {
			return fmt.Errorf("marketdata: building capability for %s: %w", v.Name, err)
		}
		adapter, err := mdapp.NewAdapter(cap, mdapp.AdapterConfig{
			Symbols:        v.Symbols,
			InitialBackoff: mdCfg.InitialBackoff,
			MaxBackoff:     mdCfg.MaxBackoff,
			MaxReconnects:  mdCfg.MaxReconnects,
			RateLimitRPS:   v.RateLimitRPS,
			RateLimitBurst: v.RateLimitBurst,
		}, lg)
		if err != nil {
			return fmt.Errorf("marketdata: building adapter for %s: %w", v.Name, err)
		}
		adapter.OnQualityEvent(quality.Handle)
		adapter.OnParseOutcome(func(latency time.Duration, success bool) {
			quality.ReportOutcome(v.Name, latency, success)
			if healthSrv != nil {
				healthSrv.RecordOutcome("marketdata."+v.Name, success)
			}
		})
		adapter.OnHeartbeatInterval(func() time.Duration {
			q, ok := quality.Get(v.Name)
			if !ok {
				return 30 * time.Second
			}
			return q.HeartbeatPeriod
		})
		adapters = append(adapters, adapter)
	}
	c.Register(mdDI.Adapters, adapters)

	return nil
}

// Startup wires every adapter's tick stream into the price cache (filtered
// through the Cleaner) and connects each one. A venue that fails to connect
// logs a warning and is left to wsconn's own reconnect loop; startup does
// not fail as a whole because one venue is unreachable.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	services := mono.Services()

	registry := mono.AssetRegistry()
	for _, v := range mono.Config().MarketData.Venues {
		for _, symbol := range v.Symbols {
			warnUnknownLegs(ctx, log, registry, v.Name, symbol)
		}
	}

	cleaner := di.Resolve[*mdapp.Cleaner](services, mdDI.Cleaner)
	adapters := di.Resolve[[]*mdapp.Adapter](services, mdDI.Adapters)
	cache := di.Resolve[*pcapp.Cache](services, pcDI.Cache)
	quality := di.Resolve[*mdapp.ConnectionQualityMonitor](services, mdDI.QualityMonitor)

	var reporter arbApp.Reporter
	if svc, ok := services.Get(arbDI.Reporter); ok {
		reporter, _ = svc.(arbApp.Reporter)
	}

	var healthSrv *health.Server
	if svc, ok := services.Get(health.ContainerToken); ok {
		healthSrv, _ = svc.(*health.Server)
	}
	failed := newVenueFailureSet()

	for _, a := range adapters {
		venue := a.Venue()

		if healthSrv != nil {
			healthSrv.RegisterCheck("marketdata."+venue, func(ctx context.Context) (bool, string) {
				if failed.isFailed(venue) {
					return false, "reconnect exhausted"
				}
				q, ok := quality.Get(venue)
				if !ok || !q.Connected {
					return false, "disconnected"
				}
				return true, ""
			})
		}

		a.OnTick(func(tick mddomain.Tick) {
			if !cleaner.Accept(tick) {
				return
			}
			bid, _ := tick.BidPrice.Float64()
			ask, _ := tick.AskPrice.Float64()
			vol, _ := tick.Volume24h.Float64()
			point := pcdomain.NewPricePoint(tick.Venue, tick.Symbol, bid, ask, vol)
			if err := cache.Update(ctx, point); err != nil {
				log.Warn(ctx, "pricecache update rejected", "venue", tick.Venue, "symbol", tick.Symbol, "error", err)
			}
		})

		a.OnOrderbook(func(ob mddomain.Orderbook) {
			cleaned, release, ok := cleaner.CleanBook(ob)
			if !ok {
				return
			}
			defer release()
			tick := cleaned.Tick()
			bid, _ := tick.BidPrice.Float64()
			ask, _ := tick.AskPrice.Float64()
			point := pcdomain.NewPricePoint(cleaned.Venue, cleaned.Symbol, bid, ask, 0)
			if err := cache.Update(ctx, point); err != nil {
				log.Warn(ctx, "pricecache update rejected", "venue", cleaned.Venue, "symbol", cleaned.Symbol, "error", err)
			}
		})

		a.OnQualityEvent(func(ev mdapp.QualityEvent) {
			quality.Handle(ev)
			if ev.Kind == mdapp.QualityEventFailed {
				failed.mark(venue)
				log.Error(ctx, "venue adapter gave up reconnecting",
					"venue", venue, "error", apperror.New(apperror.CodeFatal, apperror.WithContext("marketdata.adapter"), apperror.WithCause(ev.Err)).Error())
			}
			if reporter == nil {
				return
			}
			switch ev.Kind {
			case mdapp.QualityEventConnected:
				failed.clear(venue)
				reporter.UpdateConnectionStatus(venue, true, 0)
			case mdapp.QualityEventDisconnected, mdapp.QualityEventReconnecting, mdapp.QualityEventFailed:
				reporter.UpdateConnectionStatus(venue, false, 0)
			}
		})

		if err := a.Start(ctx); err != nil {
			log.Warn(ctx, "venue adapter failed to start, will retry via reconnect loop", "error", err)
			if reporter != nil {
				reporter.UpdateConnectionStatus(venue, false, 0)
			}
		}
	}

	log.Info(ctx, "marketdata module started", "venues", len(adapters))
	return nil
}

// warnUnknownLegs logs a warning when a configured venue symbol's base or
// quote asset isn't in the catalog: the adapter still runs (the catalog
// governs valuation and display precision, not feed subscription), but an
// unrecognized asset means any amount.Amount built from its quotes can't be
// parsed to a decimal with the right number of decimal places downstream.
func warnUnknownLegs(ctx context.Context, log logger.LoggerInterface, registry *asset.Registry, venue, symbol string) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok {
		return
	}
	if _, known := registry.GetBySymbol(base); !known {
		log.Warn(ctx, "venue symbol references unknown base asset", "venue", venue, "symbol", symbol, "asset", base)
	}
	if _, known := registry.GetBySymbol(quote); !known {
		log.Warn(ctx, "venue symbol references unknown quote asset", "venue", venue, "symbol", symbol, "asset", quote)
	}
}

func buildCapability(v config.VenueConfig, log logger.LoggerInterface) (mdapp.Capability, error) {
	switch v.Name {
	case "binance":
		httpCfg := binance.DefaultHTTPClientConfig()
		if v.RESTBaseURL != "" {
			httpCfg.BaseURL = v.RESTBaseURL
		}
		http, err := binance.NewHTTPClient(httpCfg, log)
		if err != nil {
			return nil, err
		}
		return binance.New(v.Symbols, http), nil

	case "bybit":
		httpCfg := bybit.DefaultHTTPClientConfig()
		if v.RESTBaseURL != "" {
			httpCfg.BaseURL = v.RESTBaseURL
		}
		http, err := bybit.NewHTTPClient(httpCfg, log)
		if err != nil {
			return nil, err
		}
		return bybit.New(v.Symbols, http), nil

	case "okx":
		httpCfg := okx.DefaultHTTPClientConfig()
		if v.RESTBaseURL != "" {
			httpCfg.BaseURL = v.RESTBaseURL
		}
		http, err := okx.NewHTTPClient(httpCfg, log)
		if err != nil {
			return nil, err
		}
		return okx.New(v.Symbols, http), nil

	case "huobi":
		httpCfg := huobi.DefaultHTTPClientConfig()
		if v.RESTBaseURL != "" {
			httpCfg.BaseURL = v.RESTBaseURL
		}
		http, err := huobi.NewHTTPClient(httpCfg, log)
		if err != nil {
			return nil, err
		}
		return huobi.New(v.Symbols, http), nil

	case "gateio":
		httpCfg := gateio.DefaultHTTPClientConfig()
		if v.RESTBaseURL != "" {
			httpCfg.BaseURL = v.RESTBaseURL
		}
		http, err := gateio.NewHTTPClient(httpCfg, log)
		if err != nil {
			return nil, err
		}
		return gateio.New(v.Symbols, http), nil
	}
	return nil, fmt.Errorf("marketdata: unknown venue %q", v.Name)
}
