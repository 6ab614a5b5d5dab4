// Package app implements the arbitrage context's detectors: inter-exchange
// (two venues, one symbol) and triangular (one venue, three symbols), both
// subscribing to the best-price cache's update stream and feeding detected
// Opportunity values to a configurable sink (normally the dispatcher).
// Generalized from the teacher's block-subscription-driven Detector, which
// wired one CEX provider and one DEX provider together the same way this
// wires N venues through the shared cache.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-core/business/arbitrage/domain"
	pcapp "github.com/fd1az/arb-core/business/pricecache/app"
	"github.com/fd1az/arb-core/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arb-core/business/arbitrage/app"
	meterName  = tracerName
)

// Sink receives detected opportunities; the dispatcher implements this to
// enqueue them for the risk/execution pipeline.
type Sink interface {
	Submit(ctx context.Context, opp domain.Opportunity) error
}

// Config bounds detector behavior.
type Config struct {
	MinProfitBps   decimal.Decimal
	MaxTradeSize   decimal.Decimal
	Fees           domain.FeeSchedule
	DedupeDebounce time.Duration
}

// Detector subscribes to the price cache's update stream and runs both
// detector families against every update, forwarding anything above the
// configured profit threshold to Sink.
type Detector struct {
	cache  *pcapp.Cache
	sink   Sink
	cycles *CycleRegistry
	cfg    Config
	log    logger.LoggerInterface

	dedupe *dedupeWindow

	tracer             trace.Tracer
	opportunitiesFound metric.Int64Counter
	opportunitiesSent  metric.Int64Counter
	dedupeDrops        metric.Int64Counter

	unsubscribe func()
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewDetector builds a Detector reading from cache and writing to sink.
func NewDetector(cache *pcapp.Cache, sink Sink, cfg Config, log logger.LoggerInterface) *Detector {
	meter := otel.Meter(meterName)
	found, _ := meter.Int64Counter("arbitrage.opportunities_found")
	sent, _ := meter.Int64Counter("arbitrage.opportunities_sent")
	drops, _ := meter.Int64Counter("arbitrage.dedupe_drops")

	return &Detector{
		cache:              cache,
		sink:               sink,
		cycles:             NewCycleRegistry(),
		cfg:                cfg,
		log:                log,
		dedupe:             newDedupeWindow(cfg.DedupeDebounce),
		tracer:             otel.Tracer(tracerName),
		opportunitiesFound: found,
		opportunitiesSent:  sent,
		dedupeDrops:        drops,
		stopCh:             make(chan struct{}),
	}
}

// RegisterSymbol tells the triangular detector that venue quotes symbol,
// extending its precomputed cycle set. Call this for every (venue, symbol)
// pair the market-data context is configured to track, before Start.
func (d *Detector) RegisterSymbol(venue, symbol string) {
	d.cycles.RegisterSymbol(venue, symbol)
}

func (d *Detector) newID() string { return uuid.NewString() }

// Start subscribes to the cache's price-update stream and processes updates
// until ctx is cancelled or Stop is called.
func (d *Detector) Start(ctx context.Context) error {
	events, unsubscribe := d.cache.SubscribePriceUpdates()
	d.unsubscribe = unsubscribe

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sweepTicker := time.NewTicker(30 * time.Second)
		defer sweepTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stopCh:
				return
			case <-sweepTicker.C:
				d.dedupe.sweep(time.Now())
			case ev, ok := <-events:
				if !ok {
					return
				}
				d.handleUpdate(ctx, ev)
			}
		}
	}()
	return nil
}

// Stop unsubscribes from the cache and waits for the processing goroutine
// to exit.
func (d *Detector) Stop() error {
	close(d.stopCh)
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
	d.wg.Wait()
	return nil
}

func (d *Detector) handleUpdate(ctx context.Context, ev pcapp.PriceUpdateEvent) {
	ctx, span := d.tracer.Start(ctx, "arbitrage.detect",
		trace.WithAttributes(attribute.String("symbol", ev.Symbol)))
	defer span.End()

	if opp, ok := DetectInterExchange(ev.Symbol, ev.Best, d.cfg.Fees, d.cfg.MinProfitBps, d.cfg.MaxTradeSize, ev.At, d.newID); ok {
		d.emit(ctx, opp)
	}

	venues := map[string]struct{}{}
	if ev.Best.BestBid.Venue != "" {
		venues[ev.Best.BestBid.Venue] = struct{}{}
	}
	if ev.Best.BestAsk.Venue != "" {
		venues[ev.Best.BestAsk.Venue] = struct{}{}
	}
	for venue := range venues {
		for _, cycle := range d.cycles.CyclesTouching(venue, ev.Symbol) {
			opp, ok := DetectTriangular(cycle, d.cache.GetVenuePrice, d.cfg.Fees, d.cfg.MinProfitBps, ev.At, d.newID)
			if ok {
				d.emit(ctx, opp)
			}
		}
	}
}

func (d *Detector) emit(ctx context.Context, opp domain.Opportunity) {
	if d.opportunitiesFound != nil {
		d.opportunitiesFound.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(opp.Kind))))
	}
	if !d.dedupe.allow(opp.Fingerprint, opp.DetectedAt) {
		if d.dedupeDrops != nil {
			d.dedupeDrops.Add(ctx, 1)
		}
		return
	}
	if err := d.sink.Submit(ctx, opp); err != nil {
		d.log.Warn(ctx, "failed to submit opportunity", "error", err, "symbol", opp.Symbol, "kind", opp.Kind)
		return
	}
	if d.opportunitiesSent != nil {
		d.opportunitiesSent.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(opp.Kind))))
	}
}
