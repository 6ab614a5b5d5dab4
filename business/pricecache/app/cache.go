// Package app implements the global optimal-price cache: a per-venue bounded
// heap of recent observations feeding a per-symbol best-bid/best-ask view,
// with subscribable price-update and arbitrage-opportunity event streams.
// Translated from the teacher's pricing cache manager and generalized to the
// multi-venue, quality-scored cache described by the original Rust price
// cache (price_cache/src/lib.rs): per-exchange heaps plus a global optimal
// map, kept current by folding every accepted observation in.
//
// Locking is per symbol, never cache-wide: each symbol's slot carries its
// own mutex for heap mutation, and the published best view is an atomic
// snapshot pointer swapped on every change, so readers never block writers
// and an update for one symbol never contends with any other symbol's.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-core/business/pricecache/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arb-core/business/pricecache/app"
	meterName  = tracerName

	defaultHeapCapacity = 128
	defaultMaxAgeSecs   = int64(60)
	defaultSubBuffer    = 256
)

// PriceUpdateEvent is published on every accepted Update for a symbol, and
// when cleanup rebuilds or degrades the symbol's best view. Degraded is set when cleanup evicted every observation the cache held for
// the symbol: Best is zero-valued and the symbol has no usable quote until a
// fresh observation arrives.
type PriceUpdateEvent struct {
	Symbol   string
	Best     domain.BestPrices
	At       time.Time
	Degraded bool
}

// ArbitrageEvent is published when an update widens a symbol's spread past
// a profitable threshold, mirroring the original cache's opportunity signal.
// Detection here is a cheap same-symbol, cross-venue spread check; the
// dispatch/detector layer downstream does the full feasibility analysis.
type ArbitrageEvent struct {
	Symbol     string
	Best       domain.BestPrices
	SpreadBps  float64
	DetectedAt time.Time
}

// Config bounds the cache's memory and staleness behavior.
type Config struct {
	HeapCapacityPerVenue int           // max observations retained per (venue,symbol)
	MaxAge               time.Duration // observations older than this are evicted on cleanup
	MinArbSpreadBps      float64       // spread (bps) above which an ArbitrageEvent fires; 0 disables
	SubscriberBuffer     int           // per-subscriber channel buffer size
}

// DefaultConfig mirrors conservative defaults suitable for major pairs.
func DefaultConfig() Config {
	return Config{
		HeapCapacityPerVenue: defaultHeapCapacity,
		MaxAge:               time.Duration(defaultMaxAgeSecs) * time.Second,
		MinArbSpreadBps:      5,
		SubscriberBuffer:     defaultSubBuffer,
	}
}

// symbolSlot owns one symbol's cache state: the per-venue observation heaps
// behind the symbol's own write lock, and the published best view behind an
// atomic pointer. Writers for the same symbol serialize on mu; writers for
// different symbols never touch the same slot; readers only Load the
// pointer and never take any lock. A nil best pointer means the symbol has
// no usable quote (not yet seen, or degraded by cleanup).
type symbolSlot struct {
	mu    sync.Mutex
	heaps map[string]*priceHeap // key venue
	best  atomic.Pointer[domain.BestPrices]
}

// Cache is the global optimal-price cache: a bounded quality-ranked heap per
// (venue, symbol), folded into a best-bid/best-ask view per symbol, with
// fan-out subscriptions for both streams.
type Cache struct {
	cfg Config
	log logger.LoggerInterface

	slots sync.Map // symbol -> *symbolSlot

	subMu     sync.Mutex
	priceSubs map[int]chan PriceUpdateEvent
	arbSubs   map[int]chan ArbitrageEvent
	nextSubID int

	tracer     trace.Tracer
	updates    metric.Int64Counter
	evictions  metric.Int64Counter
	arbSignals metric.Int64Counter
}

// New builds a Cache with cfg.
func New(cfg Config, log logger.LoggerInterface) *Cache {
	if cfg.HeapCapacityPerVenue <= 0 {
		cfg.HeapCapacityPerVenue = defaultHeapCapacity
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Duration(defaultMaxAgeSecs) * time.Second
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubBuffer
	}

	meter := otel.Meter(meterName)
	updates, _ := meter.Int64Counter("pricecache.updates", metric.WithDescription("price points folded into the cache"))
	evictions, _ := meter.Int64Counter("pricecache.evictions", metric.WithDescription("stale price points evicted"))
	arbSignals, _ := meter.Int64Counter("pricecache.arb_signals", metric.WithDescription("arbitrage events emitted"))

	return &Cache{
		cfg:        cfg,
		log:        log,
		priceSubs:  make(map[int]chan PriceUpdateEvent),
		arbSubs:    make(map[int]chan ArbitrageEvent),
		tracer:     otel.Tracer(tracerName),
		updates:    updates,
		evictions:  evictions,
		arbSignals: arbSignals,
	}
}

// slot returns symbol's slot, creating it on first sight. The fast path is
// a lock-free sync.Map load; LoadOrStore only runs the first time a symbol
// appears.
func (c *Cache) slot(symbol string) *symbolSlot {
	if v, ok := c.slots.Load(symbol); ok {
		return v.(*symbolSlot)
	}
	v, _ := c.slots.LoadOrStore(symbol, &symbolSlot{heaps: make(map[string]*priceHeap)})
	return v.(*symbolSlot)
}

// Update folds p into its venue's heap and into the symbol's best bid/ask,
// swaps in a fresh best snapshot and publishes it to subscribers, whether or
// not p improved either side. Only p's own symbol slot is locked.
func (c *Cache) Update(ctx context.Context, p domain.PricePoint) error {
	if !p.IsValid() {
		return fmt.Errorf("pricecache: invalid price point for %s:%s", p.Venue, p.Symbol)
	}

	ctx, span := c.tracer.Start(ctx, "pricecache.update",
		trace.WithAttributes(attribute.String("venue", p.Venue), attribute.String("symbol", p.Symbol)))
	defer span.End()

	slot := c.slot(p.Symbol)

	slot.mu.Lock()
	h, ok := slot.heaps[p.Venue]
	if !ok {
		h = newPriceHeap(c.cfg.HeapCapacityPerVenue)
		slot.heaps[p.Venue] = h
	}
	h.insert(p)

	// Copy-on-write: the current snapshot is never mutated in place, since
	// readers may be holding it.
	var next domain.BestPrices
	if cur := slot.best.Load(); cur == nil {
		next = *domain.NewBestPrices(p)
	} else {
		next = cur.Clone()
		next.Update(p)
	}
	slot.best.Store(&next)
	slot.mu.Unlock()

	if c.updates != nil {
		c.updates.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", p.Venue), attribute.String("symbol", p.Symbol)))
	}

	c.publishPriceUpdate(PriceUpdateEvent{Symbol: p.Symbol, Best: next, At: time.Now()})

	if spreadBps := bpsSpread(next); c.cfg.MinArbSpreadBps > 0 && spreadBps >= c.cfg.MinArbSpreadBps {
		if c.arbSignals != nil {
			c.arbSignals.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", p.Symbol)))
		}
		c.publishArbEvent(ArbitrageEvent{Symbol: p.Symbol, Best: next, SpreadBps: spreadBps, DetectedAt: time.Now()})
	}

	return nil
}

func bpsSpread(bp domain.BestPrices) float64 {
	mid := bp.MidPrice()
	if !mid.IsPositive() {
		return 0
	}
	diff := bp.BestBid.Bid().Sub(bp.BestAsk.Ask())
	bps, _ := diff.Div(mid).Mul(decimal.NewFromInt(10000)).Float64()
	return bps
}

// GetBestPrices returns the current best bid/ask for symbol across venues.
// Wait-free: a single atomic pointer load, no locks.
func (c *Cache) GetBestPrices(symbol string) (domain.BestPrices, bool) {
	v, ok := c.slots.Load(symbol)
	if !ok {
		return domain.BestPrices{}, false
	}
	bp := v.(*symbolSlot).best.Load()
	if bp == nil {
		return domain.BestPrices{}, false
	}
	return *bp, true
}

// GetVenuePrice returns the highest-quality observation held for venue/symbol.
func (c *Cache) GetVenuePrice(venue, symbol string) (domain.PricePoint, bool) {
	v, ok := c.slots.Load(symbol)
	if !ok {
		return domain.PricePoint{}, false
	}
	slot := v.(*symbolSlot)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	h, ok := slot.heaps[venue]
	if !ok {
		return domain.PricePoint{}, false
	}
	return h.best()
}

// Stats summarizes cache occupancy, analogous to the original's cache-stats
// introspection endpoint.
type Stats struct {
	TrackedVenuePairs int
	TrackedSymbols    int
	TotalPoints       int
}

// Stats reports current cache occupancy. Symbols whose best view degraded
// to nothing still hold their slot but don't count as tracked.
func (c *Cache) Stats() Stats {
	var s Stats
	c.slots.Range(func(_, v any) bool {
		slot := v.(*symbolSlot)
		slot.mu.Lock()
		s.TrackedVenuePairs += len(slot.heaps)
		for _, h := range slot.heaps {
			s.TotalPoints += h.Len()
		}
		slot.mu.Unlock()
		if slot.best.Load() != nil {
			s.TrackedSymbols++
		}
		return true
	})
	return s
}

// CleanupExpired evicts observations older than cfg.MaxAge from every heap,
// returning the total number removed. When a symbol's current best bid or ask
// went stale, the best view is rebuilt from whatever survivors the heaps
// still hold; a symbol left with no survivors at all loses its best view
// entirely and a degraded PriceUpdateEvent is published for it. Intended to
// run on a periodic ticker; each symbol's slot is locked on its own, so a
// sweep never stalls updates to other symbols.
func (c *Cache) CleanupExpired(ctx context.Context) int {
	maxAge := int64(c.cfg.MaxAge.Seconds())
	now := time.Now()

	removed := 0
	var degraded []string
	var repromoted []PriceUpdateEvent

	c.slots.Range(func(k, v any) bool {
		symbol := k.(string)
		slot := v.(*symbolSlot)

		slot.mu.Lock()
		evicted := 0
		for _, h := range slot.heaps {
			evicted += h.evictExpired(maxAge)
		}
		removed += evicted

		if evicted > 0 {
			if best := slot.best.Load(); best != nil &&
				(best.BestBid.AgeSeconds() > maxAge || best.BestAsk.AgeSeconds() > maxAge) {
				if rebuilt, ok := rebuildBest(slot.heaps); ok {
					slot.best.Store(&rebuilt)
					repromoted = append(repromoted, PriceUpdateEvent{Symbol: symbol, Best: rebuilt, At: now})
				} else {
					slot.best.Store(nil)
					degraded = append(degraded, symbol)
				}
			}
		}
		slot.mu.Unlock()
		return true
	})

	for _, ev := range repromoted {
		c.publishPriceUpdate(ev)
	}
	for _, symbol := range degraded {
		c.log.Warn(ctx, "symbol degraded: every cached observation expired", "symbol", symbol)
		c.publishPriceUpdate(PriceUpdateEvent{Symbol: symbol, At: now, Degraded: true})
	}

	if removed > 0 {
		if c.evictions != nil {
			c.evictions.Add(ctx, int64(removed))
		}
		c.log.Debug(ctx, "evicted stale price points", "count", removed)
	}
	return removed
}

// rebuildBest folds every surviving observation across a slot's venue heaps
// into a fresh BestPrices. ok is false when no heap holds any observation
// anymore. Caller must hold the slot's lock.
func rebuildBest(heaps map[string]*priceHeap) (domain.BestPrices, bool) {
	var rebuilt *domain.BestPrices
	for _, h := range heaps {
		for _, p := range h.points() {
			if rebuilt == nil {
				rebuilt = domain.NewBestPrices(p)
			} else {
				rebuilt.Update(p)
			}
		}
	}
	if rebuilt == nil {
		return domain.BestPrices{}, false
	}
	return *rebuilt, true
}

// SubscribePriceUpdates returns a channel of PriceUpdateEvent and an unsubscribe
// func. The channel is closed when unsubscribe is called; slow readers drop
// events (non-blocking send) rather than stalling the publisher.
func (c *Cache) SubscribePriceUpdates() (<-chan PriceUpdateEvent, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	ch := make(chan PriceUpdateEvent, c.cfg.SubscriberBuffer)
	c.priceSubs[id] = ch
	return ch, func() { c.unsubscribePrice(id) }
}

// SubscribeArbitrageEvents returns a channel of ArbitrageEvent and an
// unsubscribe func, following the same non-blocking fan-out as price updates.
func (c *Cache) SubscribeArbitrageEvents() (<-chan ArbitrageEvent, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	ch := make(chan ArbitrageEvent, c.cfg.SubscriberBuffer)
	c.arbSubs[id] = ch
	return ch, func() { c.unsubscribeArb(id) }
}

func (c *Cache) unsubscribePrice(id int) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if ch, ok := c.priceSubs[id]; ok {
		delete(c.priceSubs, id)
		close(ch)
	}
}

func (c *Cache) unsubscribeArb(id int) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if ch, ok := c.arbSubs[id]; ok {
		delete(c.arbSubs, id)
		close(ch)
	}
}

func (c *Cache) publishPriceUpdate(ev PriceUpdateEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.priceSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Cache) publishArbEvent(ev ArbitrageEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.arbSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}
