package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-core/business/marketdata/domain"
	"github.com/fd1az/arb-core/internal/apperror"
	"github.com/fd1az/arb-core/internal/logger"
	"github.com/fd1az/arb-core/internal/ratelimit"
	"github.com/fd1az/arb-core/internal/wsconn"
)

const (
	tracerName = "github.com/fd1az/arb-core/business/marketdata/app"
	meterName  = "github.com/fd1az/arb-core/business/marketdata/app"
)

// TickHandler receives ticks derived from book-ticker or depth frames.
type TickHandler func(domain.Tick)

// OrderbookHandler receives full orderbook snapshots/deltas.
type OrderbookHandler func(domain.Orderbook)

// AdapterConfig configures the runtime that drives a Capability.
type AdapterConfig struct {
	Symbols        []string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int
	RateLimitRPS   float64
	RateLimitBurst int
}

// Adapter drives a single venue's Capability over a reconnecting WebSocket
// connection, parsing frames and emitting ticks/orderbooks to registered
// handlers. One Adapter exists per configured venue.
type Adapter struct {
	cap     Capability
	cfg     AdapterConfig
	client  *wsconn.Client
	limiter *ratelimit.Limiter
	log     logger.LoggerInterface

	onTick    TickHandler
	onBook    OrderbookHandler
	onQuality func(event QualityEvent)
	onOutcome func(latency time.Duration, success bool)
	heartbeat func() time.Duration

	tracer trace.Tracer
	msgs   metric.Int64Counter
	errs   metric.Int64Counter
}

// NewAdapter builds an Adapter for cap, wiring a reconnecting WS client
// configured from cfg.
func NewAdapter(cap Capability, cfg AdapterConfig, log logger.LoggerInterface) (*Adapter, error) {
	client, err := wsconn.New(wsconn.Config{
		URL:            cap.WebSocketURL(),
		Name:           cap.Venue(),
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		MaxReconnects:  cfg.MaxReconnects,
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		BufferSize:     4096,
		MaxMessageSize: 10 * 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("marketdata: building ws client for %s: %w", cap.Venue(), err)
	}

	a := &Adapter{
		cap:       cap,
		cfg:       cfg,
		client:    client,
		limiter:   ratelimit.NewWithBurst(cfg.RateLimitRPS, cfg.RateLimitBurst),
		log:       log.With("venue", cap.Venue()),
		tracer:    otel.Tracer(tracerName),
		heartbeat: func() time.Duration { return 30 * time.Second },
	}

	meter := otel.Meter(meterName)
	a.msgs, err = meter.Int64Counter("marketdata_messages_total",
		metric.WithDescription("Total market data frames processed per venue"))
	if err != nil {
		return nil, err
	}
	a.errs, err = meter.Int64Counter("marketdata_parse_errors_total",
		metric.WithDescription("Total market data parse errors per venue"))
	if err != nil {
		return nil, err
	}

	client.OnMessage(a.handleFrame)
	client.OnStateChange(a.handleStateChange)

	return a, nil
}

// Venue returns the name of the venue this adapter drives.
func (a *Adapter) Venue() string { return a.cap.Venue() }

// OnTick registers the callback invoked for every parsed tick.
func (a *Adapter) OnTick(h TickHandler) { a.onTick = h }

// OnOrderbook registers the callback invoked for every parsed orderbook.
func (a *Adapter) OnOrderbook(h OrderbookHandler) { a.onBook = h }

// OnQualityEvent registers the callback invoked on connection quality
// transitions (connect, disconnect, reconnect).
func (a *Adapter) OnQualityEvent(h func(QualityEvent)) { a.onQuality = h }

// OnParseOutcome registers the callback invoked after every parse attempt
// with its latency and success/failure outcome, feeding the connection
// quality monitor's latency EWMA and stability counters.
func (a *Adapter) OnParseOutcome(h func(latency time.Duration, success bool)) { a.onOutcome = h }

// OnHeartbeatInterval overrides the cadence the heartbeat loop polls, e.g.
// to recompute it from the connection quality monitor on every tick instead
// of using the 30s default.
func (a *Adapter) OnHeartbeatInterval(f func() time.Duration) { a.heartbeat = f }

// Start connects and subscribes to the configured symbols. It blocks until
// the initial connection succeeds or ctx is cancelled; streaming continues
// in background goroutines owned by the underlying wsconn.Client.
func (a *Adapter) Start(ctx context.Context) error {
	ctx, span := a.tracer.Start(ctx, "marketdata.adapter.start",
		trace.WithAttributes(attribute.String("venue", a.cap.Venue())))
	defer span.End()

	if err := a.client.ConnectWithRetry(ctx); err != nil {
		return apperror.External(apperror.CodeConnectionError, fmt.Sprintf("connecting to %s", a.cap.Venue()), err)
	}

	a.seedInitialSnapshots(ctx)

	msgs, err := a.cap.BuildSubscription(a.cfg.Symbols)
	if err != nil {
		return fmt.Errorf("marketdata: building subscription for %s: %w", a.cap.Venue(), err)
	}
	for _, m := range msgs {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := a.client.Send(ctx, m); err != nil {
			return apperror.External(apperror.CodeConnectionError, fmt.Sprintf("subscribing on %s", a.cap.Venue()), err)
		}
	}

	a.log.Info(ctx, "adapter subscribed", "symbols", a.cfg.Symbols)

	if a.cap.HeartbeatRequest() != nil {
		go a.runHeartbeat(ctx)
	}

	return nil
}

// seedInitialSnapshots fetches a REST orderbook snapshot per configured
// symbol and forwards it to the registered OnOrderbook handler before any
// incremental WS update is processed, so a cold start (or a gap severe
// enough to warrant a fresh connection) never leaves the book empty.
// Venues with no REST snapshot endpoint wired (ErrSnapshotUnsupported)
// simply build their book up from the WS depth stream instead.
func (a *Adapter) seedInitialSnapshots(ctx context.Context) {
	if a.onBook == nil {
		return
	}
	for _, symbol := range a.cfg.Symbols {
		ob, err := a.cap.InitialSnapshot(symbol)
		if err != nil {
			if !errors.Is(err, ErrSnapshotUnsupported) {
				a.log.Warn(ctx, "initial snapshot fetch failed", "symbol", symbol, "error", err)
			}
			continue
		}
		a.onBook(ob)
	}
}

// runHeartbeat proactively sends the venue's application-level keep-alive
// frame on an interval recomputed before every send, so a quality
// degradation (see OnHeartbeatInterval) shortens the cadence on the next
// tick rather than waiting for the current timer to fully elapse first.
func (a *Adapter) runHeartbeat(ctx context.Context) {
	timer := time.NewTimer(a.heartbeat())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if req := a.cap.HeartbeatRequest(); req != nil {
				if err := a.client.Send(ctx, req); err != nil {
					a.log.Debug(ctx, "heartbeat send failed", "error", err)
				}
			}
			timer.Reset(a.heartbeat())
		}
	}
}

// Stop closes the underlying connection.
func (a *Adapter) Stop() error {
	return a.client.Close()
}

func (a *Adapter) handleFrame(ctx context.Context, frame []byte) {
	attrs := metric.WithAttributes(attribute.String("venue", a.cap.Venue()))
	a.msgs.Add(ctx, 1, attrs)

	if a.cap.IsHeartbeat(frame) {
		if reply := a.cap.HeartbeatReply(frame); reply != nil {
			_ = a.client.Send(ctx, reply)
		}
		return
	}

	start := time.Now()
	ticks, books, ok := a.cap.Parse(frame)
	if a.onOutcome != nil {
		a.onOutcome(time.Since(start), ok)
	}
	if !ok {
		return
	}

	for _, t := range ticks {
		if !t.Valid() {
			continue
		}
		if a.onTick != nil {
			a.onTick(t)
		}
	}
	for _, b := range books {
		if a.onBook != nil {
			a.onBook(b)
		}
	}
}

func (a *Adapter) handleStateChange(state wsconn.State, err error) {
	if a.onQuality == nil {
		return
	}
	var kind QualityEventKind
	switch state {
	case wsconn.StateConnected:
		kind = QualityEventConnected
	case wsconn.StateReconnecting:
		kind = QualityEventReconnecting
	case wsconn.StateDisconnected:
		kind = QualityEventDisconnected
	case wsconn.StateFailed:
		kind = QualityEventFailed
	default:
		return
	}
	a.onQuality(QualityEvent{Venue: a.cap.Venue(), Kind: kind, At: time.Now(), Err: err})
}
