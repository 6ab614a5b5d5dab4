// Package wsconn is the reconnecting WebSocket transport under every venue
// adapter: one Client per market-data session, owning the dial/read/ping
// loops, exponential-backoff reconnects, and per-venue OTEL instrumentation.
// The adapter layer above it only sees parsed frames and state transitions.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/fd1az/arb-core/internal/wsconn"
	meterName  = tracerName
)

// State is the session's lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
	// StateFailed is terminal: the reconnect loop gave up after exhausting
	// MaxReconnects. Unlike StateDisconnected (a transient drop the client
	// is still actively retrying), StateFailed means no further reconnect
	// attempt is coming; the caller must escalate.
	StateFailed State = "failed"
)

// stateGaugeValue maps each state to the value exported on the
// ws_connection_state gauge.
var stateGaugeValue = map[State]int64{
	StateDisconnected: 0,
	StateConnecting:   1,
	StateConnected:    2,
	StateReconnecting: 3,
	StateClosed:       4,
	StateFailed:       5,
}

// Config sizes a Client.
type Config struct {
	URL            string
	Name           string // venue identifier for metrics/tracing
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = retry forever
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	BufferSize     int
	MaxMessageSize int64 // bytes, 0 = no limit
}

// DefaultConfig returns the defaults tuned for exchange public streams:
// 1s→30s backoff, unlimited retries, and a buffer deep enough that a burst
// of depth updates doesn't shed frames.
func DefaultConfig(url string, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		BufferSize:     1024,
		MaxMessageSize: 10 * 1024 * 1024,
	}
}

// MessageHandler receives every inbound text/binary frame.
type MessageHandler func(ctx context.Context, msg []byte)

// StateChangeHandler is invoked on every state transition. err is non-nil
// only for terminal failures.
type StateChangeHandler func(state State, err error)

type wsMetrics struct {
	connectionState  metric.Int64Gauge
	messagesReceived metric.Int64Counter
	messagesSent     metric.Int64Counter
	reconnectsTotal  metric.Int64Counter
	droppedMessages  metric.Int64Counter
	messageLatency   metric.Float64Histogram
	bytesReceived    metric.Int64Counter
	bytesSent        metric.Int64Counter
	pingsTotal       metric.Int64Counter
	pingsFailed      metric.Int64Counter
}

// Client is a single venue session: it dials, reads until the connection
// drops, and reconnects with jittered exponential backoff until closed or
// the retry budget runs out.
type Client struct {
	config Config
	conn   *websocket.Conn
	connMu sync.RWMutex

	state   State
	stateMu sync.RWMutex

	inbox   chan []byte
	done    chan struct{}
	closeMu sync.Mutex
	closed  atomic.Bool

	reconnects   int
	reconnectsMu sync.Mutex

	tracer  trace.Tracer
	metrics *wsMetrics

	handlersMu    sync.RWMutex
	onMessage     MessageHandler
	onStateChange StateChangeHandler

	connectedAt time.Time
	stopPing    chan struct{}
}

// New builds a Client from config. It does not dial; call Connect or
// ConnectWithRetry.
func New(config Config) (*Client, error) {
	c := &Client{
		config:   config,
		state:    StateDisconnected,
		inbox:    make(chan []byte, config.BufferSize),
		done:     make(chan struct{}),
		stopPing: make(chan struct{}),
		tracer:   otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	c.metrics = &wsMetrics{}

	var err error
	counter := func(name, desc, unit string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var instr metric.Int64Counter
		instr, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		return instr
	}

	c.metrics.connectionState, err = meter.Int64Gauge(
		"ws_connection_state",
		metric.WithDescription("WebSocket connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=closed, 5=failed)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	c.metrics.messagesReceived = counter("ws_messages_received_total", "Total WebSocket messages received", "{message}")
	c.metrics.messagesSent = counter("ws_messages_sent_total", "Total WebSocket messages sent", "{message}")
	c.metrics.reconnectsTotal = counter("ws_reconnects_total", "Total WebSocket reconnection attempts", "{attempt}")
	c.metrics.droppedMessages = counter("ws_messages_dropped_total", "Total WebSocket messages dropped due to full buffer", "{message}")
	c.metrics.bytesReceived = counter("ws_bytes_received_total", "Total bytes received over WebSocket", "By")
	c.metrics.bytesSent = counter("ws_bytes_sent_total", "Total bytes sent over WebSocket", "By")
	c.metrics.pingsTotal = counter("ws_pings_total", "Total WebSocket ping attempts", "{ping}")
	c.metrics.pingsFailed = counter("ws_pings_failed_total", "Total WebSocket ping failures", "{ping}")
	if err != nil {
		return err
	}

	c.metrics.messageLatency, err = meter.Float64Histogram(
		"ws_message_latency_ms",
		metric.WithDescription("WebSocket message processing latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// OnMessage installs the inbound frame handler.
func (c *Client) OnMessage(handler MessageHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onMessage = handler
}

// OnStateChange installs the state transition handler.
func (c *Client) OnStateChange(handler StateChangeHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onStateChange = handler
}

func (c *Client) currentConn() *websocket.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

// Connect dials once and, on success, starts the read and ping loops. Use
// ConnectWithRetry for backoff behavior.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "ws.connect",
		trace.WithAttributes(
			attribute.String("ws.url", c.config.URL),
			attribute.String("ws.name", c.config.Name),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	c.setState(StateConnecting)

	conn, _, err := websocket.Dial(ctx, c.config.URL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connection failed")
		c.setState(StateDisconnected)
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	// Bound frame size so a runaway depth snapshot can't OOM the process.
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.connectedAt = time.Now()
	c.setState(StateConnected)
	span.SetStatus(codes.Ok, "connected")
	span.AddEvent("connection established")

	// Both loops outlive the Connect call's ctx; they stop via c.done.
	go c.readLoop(context.Background())
	go c.runPingLoop(context.Background())

	return nil
}

// runPingLoop sends transport-level pings to detect half-open connections.
// Application-level heartbeats (venues that want "ping" frames) are the
// adapter's job, on top of this.
func (c *Client) runPingLoop(ctx context.Context) {
	if c.config.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	attrs := metric.WithAttributes(attribute.String("ws.name", c.config.Name))

	for {
		select {
		case <-c.done:
			return
		case <-c.stopPing:
			return
		case <-ticker.C:
			conn := c.currentConn()
			if conn == nil {
				return
			}

			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()

			if err != nil {
				c.metrics.pingsFailed.Add(ctx, 1, attrs)
				c.handleDisconnect(ctx, fmt.Errorf("ping failed: %w", err))
				return
			}
			c.metrics.pingsTotal.Add(ctx, 1, attrs)
		}
	}
}

// ConnectWithRetry dials with jittered exponential backoff until success,
// ctx cancellation, or the retry budget is spent.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "ws.connect_with_retry",
		trace.WithAttributes(
			attribute.String("ws.url", c.config.URL),
			attribute.String("ws.name", c.config.Name),
			attribute.Int("ws.max_reconnects", c.config.MaxReconnects),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	backoff := c.config.InitialBackoff
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context cancelled")
			return ctx.Err()
		default:
		}

		if c.closed.Load() {
			return errors.New("client is closed")
		}

		err := c.Connect(ctx)
		if err == nil {
			span.SetStatus(codes.Ok, "connected")
			span.SetAttributes(attribute.Int("ws.connect_attempts", attempts+1))
			return nil
		}

		attempts++
		if c.config.MaxReconnects > 0 && attempts >= c.config.MaxReconnects {
			span.RecordError(err)
			span.SetStatus(codes.Error, "max reconnects exceeded")
			return fmt.Errorf("max reconnects (%d) exceeded: %w", c.config.MaxReconnects, err)
		}

		sleepDuration := withJitter(backoff)
		span.AddEvent("reconnect scheduled",
			trace.WithAttributes(
				attribute.Int("attempt", attempts),
				attribute.String("backoff", sleepDuration.String()),
			),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepDuration):
		}

		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}
}

// withJitter spreads reconnects so every adapter dropped by the same venue
// outage doesn't redial in lockstep.
func withJitter(backoff time.Duration) time.Duration {
	if backoff < 2 {
		return backoff
	}
	return backoff + time.Duration(rand.Int63n(int64(backoff)/2))
}

// readLoop pulls frames until the connection drops, fanning each one out to
// the inbox channel and the OnMessage handler.
func (c *Client) readLoop(ctx context.Context) {
	attrs := []attribute.KeyValue{
		attribute.String("ws.name", c.config.Name),
	}

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		conn := c.currentConn()
		if conn == nil {
			return
		}

		readCtx := ctx
		var cancel context.CancelFunc
		if c.config.ReadTimeout > 0 {
			readCtx, cancel = context.WithTimeout(ctx, c.config.ReadTimeout)
		}

		start := time.Now()
		msgType, data, err := conn.Read(readCtx)
		latency := float64(time.Since(start).Milliseconds())

		// Cancel inline; a defer would pile up across loop iterations.
		if cancel != nil {
			cancel()
		}

		if err != nil {
			if c.closed.Load() {
				return
			}

			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.DeadlineExceeded) {
				_, span := c.tracer.Start(ctx, "ws.read_error", trace.WithAttributes(attrs...))
				span.RecordError(err)
				span.SetStatus(codes.Error, "read failed")
				span.End()
			}

			c.handleDisconnect(ctx, err)
			return
		}

		if msgType != websocket.MessageText && msgType != websocket.MessageBinary {
			continue
		}

		_, span := c.tracer.Start(ctx, "ws.message.recv",
			trace.WithAttributes(
				append(attrs,
					attribute.Int("ws.message.size", len(data)),
					attribute.String("ws.message.type", msgType.String()),
				)...,
			),
		)

		c.metrics.messagesReceived.Add(ctx, 1, metric.WithAttributes(attrs...))
		c.metrics.bytesReceived.Add(ctx, int64(len(data)), metric.WithAttributes(attrs...))
		c.metrics.messageLatency.Record(ctx, latency, metric.WithAttributes(attrs...))

		// Non-blocking: a stalled inbox consumer must never stall the read
		// loop, or the venue sees a slow client and closes the session.
		select {
		case c.inbox <- data:
		default:
			c.metrics.droppedMessages.Add(ctx, 1, metric.WithAttributes(attrs...))
			span.AddEvent("message dropped - buffer full",
				trace.WithAttributes(attribute.Int("buffer_size", c.config.BufferSize)))
		}

		c.handlersMu.RLock()
		handler := c.onMessage
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(ctx, data)
		}

		span.SetStatus(codes.Ok, "message received")
		span.End()
	}
}

// handleDisconnect tears the connection down and kicks off the background
// reconnect loop.
func (c *Client) handleDisconnect(ctx context.Context, err error) {
	if c.closed.Load() {
		return
	}

	ctx, span := c.tracer.Start(ctx, "ws.disconnect",
		trace.WithAttributes(attribute.String("ws.name", c.config.Name)),
	)
	defer span.End()

	if err != nil {
		span.RecordError(err)
	}

	c.setState(StateReconnecting)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close(websocket.StatusGoingAway, "reconnecting")
		c.conn = nil
	}
	c.connMu.Unlock()

	go c.reconnect(ctx)
}

// reconnect waits out the backoff for the current attempt number, then
// dials; each failure schedules the next attempt until MaxReconnects, which
// flips the session to StateFailed.
func (c *Client) reconnect(ctx context.Context) {
	c.reconnectsMu.Lock()
	c.reconnects++
	attempt := c.reconnects
	c.reconnectsMu.Unlock()

	ctx, span := c.tracer.Start(ctx, "ws.reconnect",
		trace.WithAttributes(
			attribute.String("ws.name", c.config.Name),
			attribute.Int("ws.reconnect.attempt", attempt),
		),
	)
	defer span.End()

	c.metrics.reconnectsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("ws.name", c.config.Name),
	))

	backoff := c.config.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
			break
		}
	}
	sleepDuration := withJitter(backoff)

	span.AddEvent("waiting before reconnect",
		trace.WithAttributes(attribute.String("backoff", sleepDuration.String())),
	)

	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return
	case <-c.done:
		return
	case <-time.After(sleepDuration):
	}

	if c.closed.Load() {
		return
	}

	if c.config.MaxReconnects > 0 && attempt > c.config.MaxReconnects {
		span.SetStatus(codes.Error, "max reconnects exceeded")
		c.setState(StateFailed)
		c.handlersMu.RLock()
		stateHandler := c.onStateChange
		c.handlersMu.RUnlock()
		if stateHandler != nil {
			stateHandler(StateFailed, errors.New("max reconnects exceeded"))
		}
		return
	}

	if err := c.Connect(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconnect failed")
		go c.reconnect(ctx)
		return
	}

	c.reconnectsMu.Lock()
	c.reconnects = 0
	c.reconnectsMu.Unlock()

	span.SetStatus(codes.Ok, "reconnected")
}

// Send writes a text frame.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	ctx, span := c.tracer.Start(ctx, "ws.message.send",
		trace.WithAttributes(
			attribute.String("ws.name", c.config.Name),
			attribute.Int("ws.message.size", len(msg)),
		),
	)
	defer span.End()

	conn := c.currentConn()
	if conn == nil {
		err := errors.New("not connected")
		span.RecordError(err)
		span.SetStatus(codes.Error, "not connected")
		return err
	}

	writeCtx := ctx
	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	start := time.Now()
	err := conn.Write(writeCtx, websocket.MessageText, msg)
	latency := float64(time.Since(start).Milliseconds())

	attrs := metric.WithAttributes(attribute.String("ws.name", c.config.Name))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return fmt.Errorf("websocket write failed: %w", err)
	}

	c.metrics.messagesSent.Add(ctx, 1, attrs)
	c.metrics.bytesSent.Add(ctx, int64(len(msg)), attrs)
	c.metrics.messageLatency.Record(ctx, latency, attrs)

	span.SetStatus(codes.Ok, "sent")
	return nil
}

// SendJSON marshals v and writes it as a text frame.
func (c *Client) SendJSON(ctx context.Context, v interface{}) error {
	if c.currentConn() == nil {
		return errors.New("not connected")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.Send(ctx, data)
}

// Messages exposes the inbox channel, for callers that prefer pulling over
// the OnMessage callback.
func (c *Client) Messages() <-chan []byte {
	return c.inbox
}

// State returns the current session state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the session is live.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close shuts the session down permanently. Idempotent.
func (c *Client) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Load() {
		return nil
	}

	_, span := c.tracer.Start(context.Background(), "ws.close",
		trace.WithAttributes(attribute.String("ws.name", c.config.Name)),
	)
	defer span.End()

	c.closed.Store(true)
	close(c.done)

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "client closing"); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "close error")
			return err
		}
	}

	c.setState(StateClosed)
	span.SetStatus(codes.Ok, "closed")

	return nil
}

// setState records the transition on the state gauge and notifies the
// OnStateChange handler.
func (c *Client) setState(state State) {
	c.stateMu.Lock()
	oldState := c.state
	c.state = state
	c.stateMu.Unlock()

	if oldState == state {
		return
	}

	c.metrics.connectionState.Record(context.Background(), stateGaugeValue[state],
		metric.WithAttributes(attribute.String("ws.name", c.config.Name)),
	)

	c.handlersMu.RLock()
	stateHandler := c.onStateChange
	c.handlersMu.RUnlock()
	if stateHandler != nil {
		stateHandler(state, nil)
	}
}

// ReconnectCount returns how many reconnect attempts the current outage has
// consumed; it resets to zero on a successful dial.
func (c *Client) ReconnectCount() int {
	c.reconnectsMu.Lock()
	defer c.reconnectsMu.Unlock()
	return c.reconnects
}
