package app

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-core/business/marketdata/domain"
	"github.com/fd1az/arb-core/internal/apperror"
	"github.com/fd1az/arb-core/internal/asset"
	"github.com/fd1az/arb-core/internal/logger"
)

// CleanerConfig bounds how aggressively the Cleaner rejects incoming ticks
// and orderbook snapshots.
type CleanerConfig struct {
	MaxPriceDeviationPercent float64       // reject a tick moving more than this % from the last accepted one
	PriceChangeWindow        time.Duration // deviation check only applies within this window of the prior tick
	MinVolumeThreshold       float64       // ticks with 24h volume below this are flagged (not rejected)
	StaleAfter               time.Duration // ticks older than this relative to arrival are rejected

	MaxBookDepth      int             // levels kept per side after normalization (0 = DefaultMaxBookDepth)
	BookLeaseCapacity int             // in-flight CleanBook buffer leases before pool exhaustion sheds load (0 = DefaultBookLeaseCapacity)
	VWAPReferenceSize decimal.Decimal // size used to cross-check top-of-book against depth-weighted mid
}

// DefaultMaxBookDepth and DefaultBookLeaseCapacity are CleanerConfig's
// zero-value fallbacks.
const (
	DefaultMaxBookDepth      = 50
	DefaultBookLeaseCapacity = 64
)

// DefaultCleanerConfig mirrors conservative defaults suitable for major pairs.
func DefaultCleanerConfig() CleanerConfig {
	return CleanerConfig{
		MaxPriceDeviationPercent: 20.0,
		PriceChangeWindow:        time.Minute,
		MinVolumeThreshold:       0,
		StaleAfter:               10 * time.Second,
		MaxBookDepth:             DefaultMaxBookDepth,
		BookLeaseCapacity:        DefaultBookLeaseCapacity,
		VWAPReferenceSize:        decimal.NewFromFloat(1.0),
	}
}

// cleanerHistory holds the last accepted observation as a PriceScale-fixed
// int64 rather than a decimal, so the per-tick deviation check below runs
// on scalar arithmetic with no heap traffic — the same representation the
// price cache keeps its hot-path values in.
type cleanerHistory struct {
	lastMidScaled int64
	lastAt        time.Time
}

// Cleaner filters obviously-bad ticks and orderbook snapshots before they
// reach the price cache: stale timestamps, crossed/zero prices, outlier
// price jumps relative to the last accepted observation for the same
// venue/symbol, and (for books) depth that doesn't back up the quoted
// top-of-book price.
type Cleaner struct {
	cfg CleanerConfig
	log logger.LoggerInterface

	mu      sync.RWMutex
	history map[domain.VenueSymbol]*cleanerHistory

	levelPool sync.Pool // *[]domain.OrderbookLevel scratch buffers for CleanBook

	leaseMu  sync.Mutex
	leaseCap int
	leases   []time.Time // acquisition order, oldest first
}

// NewCleaner builds a Cleaner with cfg.
func NewCleaner(cfg CleanerConfig, log logger.LoggerInterface) *Cleaner {
	if cfg.MaxBookDepth <= 0 {
		cfg.MaxBookDepth = DefaultMaxBookDepth
	}
	if cfg.BookLeaseCapacity <= 0 {
		cfg.BookLeaseCapacity = DefaultBookLeaseCapacity
	}
	if cfg.VWAPReferenceSize.IsZero() {
		cfg.VWAPReferenceSize = decimal.NewFromFloat(1.0)
	}
	c := &Cleaner{
		cfg:      cfg,
		log:      log,
		history:  make(map[domain.VenueSymbol]*cleanerHistory),
		leaseCap: cfg.BookLeaseCapacity,
	}
	c.levelPool.New = func() any {
		buf := make([]domain.OrderbookLevel, 0, cfg.MaxBookDepth)
		return &buf
	}
	return c
}

// Accept reports whether t should be forwarded downstream, and updates
// internal history regardless so later outlier checks compare against the
// most recent observation. The deviation check runs entirely on scaled
// int64 / float64 scalars; decimal math is reserved for the reject-path
// log line.
func (c *Cleaner) Accept(t domain.Tick) bool {
	if !t.Valid() {
		return false
	}
	if c.cfg.StaleAfter > 0 && time.Since(t.Timestamp) > c.cfg.StaleAfter {
		c.log.Debug(context.Background(), "rejecting stale tick", "venue", t.Venue, "symbol", t.Symbol, "age", time.Since(t.Timestamp).String())
		return false
	}

	key := domain.VenueSymbol{Venue: t.Venue, Symbol: t.Symbol}
	bid, _ := t.BidPrice.Float64()
	ask, _ := t.AskPrice.Float64()
	midScaled := asset.ToFixedFloat64((bid + ask) / 2)

	c.mu.Lock()
	defer c.mu.Unlock()

	hist, ok := c.history[key]
	if !ok {
		c.history[key] = &cleanerHistory{lastMidScaled: midScaled, lastAt: t.Timestamp}
		return true
	}

	accept := true
	if c.cfg.MaxPriceDeviationPercent > 0 && hist.lastMidScaled > 0 {
		within := c.cfg.PriceChangeWindow <= 0 || t.Timestamp.Sub(hist.lastAt) <= c.cfg.PriceChangeWindow
		if within {
			changePct := math.Abs(float64(midScaled-hist.lastMidScaled)) / float64(hist.lastMidScaled) * 100
			if changePct > c.cfg.MaxPriceDeviationPercent {
				accept = false
				c.log.Warn(context.Background(), "rejecting price outlier tick",
					"venue", t.Venue, "symbol", t.Symbol,
					"previous_price", asset.FromFixed(hist.lastMidScaled).String(), "current_price", t.Mid().String(),
					"change_percent", strconv.FormatFloat(changePct, 'f', 2, 64))
			}
		}
	}

	if accept {
		hist.lastMidScaled = midScaled
		hist.lastAt = t.Timestamp
	}
	return accept
}

// LowVolume reports whether t's 24h volume is below the configured minimum,
// a non-blocking signal the arbitrage layer can use to discount confidence.
func (c *Cleaner) LowVolume(t domain.Tick) bool {
	if c.cfg.MinVolumeThreshold <= 0 {
		return false
	}
	vol, _ := t.Volume24h.Float64()
	return vol < c.cfg.MinVolumeThreshold
}

// sortLevels is an in-place insertion sort over a book side. A hand-rolled
// sort rather than sort.Sort/sort.Slice: both of those box their argument
// into an interface (or closure) and allocate on every call, and book sides
// here are clamped to a few dozen mostly-ordered levels, exactly the shape
// insertion sort handles well.
func sortLevels(levels []domain.OrderbookLevel, desc bool) {
	for i := 1; i < len(levels); i++ {
		lvl := levels[i]
		j := i - 1
		for j >= 0 {
			cmp := levels[j].Price.Cmp(lvl.Price)
			if desc {
				cmp = -cmp
			}
			if cmp <= 0 {
				break
			}
			levels[j+1] = levels[j]
			j--
		}
		levels[j+1] = lvl
	}
}

// normalizeSide sorts levels into buf (best price first), dedups adjacent
// same-price rows by keeping the larger size, and clamps to maxDepth. buf is
// reused in place, so the result aliases buf's backing array; with a pooled
// buf of sufficient capacity the whole pass performs no allocations.
func normalizeSide(buf []domain.OrderbookLevel, levels []domain.OrderbookLevel, desc bool, maxDepth int) []domain.OrderbookLevel {
	buf = append(buf[:0], levels...)
	sortLevels(buf, desc)

	out := buf[:0]
	for _, lvl := range buf {
		if n := len(out); n > 0 && out[n-1].Price.Equal(lvl.Price) {
			if lvl.Size.GreaterThan(out[n-1].Size) {
				out[n-1].Size = lvl.Size
			}
			continue
		}
		out = append(out, lvl)
	}
	if maxDepth > 0 && len(out) > maxDepth {
		out = out[:maxDepth]
	}
	return out
}

// acquireLease reserves one of the Cleaner's bounded book-buffer slots.
// sync.Pool itself never blocks or fails (it just allocates fresh on a
// miss), so exhaustion is tracked separately by leaseCap: when every slot
// is already checked out, the oldest outstanding lease is dropped to admit
// the newest book rather than stall the hot path behind a slow consumer.
func (c *Cleaner) acquireLease() {
	c.leaseMu.Lock()
	defer c.leaseMu.Unlock()
	if len(c.leases) >= c.leaseCap {
		c.leases = c.leases[1:]
		c.log.Warn(context.Background(), "book cleaner pool exhausted, dropping oldest in-flight lease",
			"error", apperror.New(apperror.CodePoolExhausted, apperror.WithContext("marketdata.cleaner.CleanBook")).Error())
	}
	c.leases = append(c.leases, time.Now())
}

func (c *Cleaner) releaseLease() {
	c.leaseMu.Lock()
	defer c.leaseMu.Unlock()
	if len(c.leases) > 0 {
		c.leases = c.leases[1:]
	}
}

// CleanBook normalizes a raw orderbook snapshot into canonical form: each
// side deduped by price, sorted best-first, and clamped to MaxBookDepth,
// then rejected outright if either side is empty or the book is crossed
// (best ask at or below best bid). A surviving book is additionally
// cross-checked with VWAP: if its depth-weighted mid diverges from the
// top-of-book mid by more than MaxPriceDeviationPercent, the quote is
// treated as an outlier (e.g. a thin, spoofed top level) and rejected.
//
// release must be called once the caller is done reading the returned
// book; it returns the scratch buffers backing Bids/Asks to the pool. ok is
// false if the book was rejected, in which case release is a no-op.
func (c *Cleaner) CleanBook(ob domain.Orderbook) (cleaned domain.Orderbook, release func(), ok bool) {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return domain.Orderbook{}, func() {}, false
	}

	c.acquireLease()

	bidsPtr := c.levelPool.Get().(*[]domain.OrderbookLevel)
	asksPtr := c.levelPool.Get().(*[]domain.OrderbookLevel)
	release = func() {
		c.levelPool.Put(bidsPtr)
		c.levelPool.Put(asksPtr)
		c.releaseLease()
	}

	bids := normalizeSide(*bidsPtr, ob.Bids, true, c.cfg.MaxBookDepth)
	asks := normalizeSide(*asksPtr, ob.Asks, false, c.cfg.MaxBookDepth)
	*bidsPtr, *asksPtr = bids, asks

	if len(bids) == 0 || len(asks) == 0 {
		release()
		return domain.Orderbook{}, func() {}, false
	}
	if asks[0].Price.LessThanOrEqual(bids[0].Price) {
		c.log.Debug(context.Background(), "rejecting crossed book",
			"venue", ob.Venue, "symbol", ob.Symbol, "best_bid", bids[0].Price.String(), "best_ask", asks[0].Price.String())
		release()
		return domain.Orderbook{}, func() {}, false
	}

	cleaned = domain.Orderbook{
		Venue:     ob.Venue,
		Symbol:    ob.Symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: ob.Timestamp,
		SeqNum:    ob.SeqNum,
	}

	if !c.acceptBookDepth(cleaned) {
		release()
		return domain.Orderbook{}, func() {}, false
	}

	return cleaned, release, true
}

// acceptBookDepth cross-checks the book's top-of-book mid against its
// VWAP-derived mid over VWAPReferenceSize, the same deviation guard Accept
// applies to ticks. Books too thin to fill the reference size are passed
// through unchecked: there isn't enough depth to say anything about
// manipulation either way.
func (c *Cleaner) acceptBookDepth(ob domain.Orderbook) bool {
	if c.cfg.MaxPriceDeviationPercent <= 0 {
		return true
	}
	bidVWAP, bidOK := domain.VWAP(ob.Bids, c.cfg.VWAPReferenceSize)
	askVWAP, askOK := domain.VWAP(ob.Asks, c.cfg.VWAPReferenceSize)
	if !bidOK || !askOK {
		return true
	}

	topMid := ob.Tick().Mid()
	if topMid.Sign() <= 0 {
		return true
	}
	vwapMid := bidVWAP.Add(askVWAP).Div(decimal.NewFromInt(2))
	deviationPct := vwapMid.Sub(topMid).Div(topMid).Abs().Mul(decimal.NewFromInt(100))
	threshold := decimal.NewFromFloat(c.cfg.MaxPriceDeviationPercent)
	if deviationPct.GreaterThan(threshold) {
		c.log.Warn(context.Background(), "rejecting book with VWAP/top-of-book divergence",
			"venue", ob.Venue, "symbol", ob.Symbol, "top_mid", topMid.String(), "vwap_mid", vwapMid.String(),
			"deviation_percent", deviationPct.String())
		return false
	}
	return true
}
