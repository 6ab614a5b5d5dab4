// Package app hosts the venue-agnostic market data pipeline: the Capability
// contract every exchange adapter implements, the adapter runtime that drives
// a Capability over a reconnecting WebSocket connection, the connection
// quality monitor, and the tick cleaner.
package app

import (
	"github.com/fd1az/arb-core/business/marketdata/domain"
)

// Capability is the seam between the venue-agnostic adapter runtime and a
// specific exchange's wire protocol. Each venue (Binance, Bybit, OKX, Huobi,
// Gate.io) implements one. The runtime owns connection lifecycle, reconnect
// backoff, and rate limiting; the Capability only knows the venue's message
// shapes.
type Capability interface {
	// Venue is the lowercase venue identifier used in VenueSymbol and config.
	Venue() string

	// WebSocketURL returns the base WS endpoint to dial.
	WebSocketURL() string

	// BuildSubscription returns the wire messages to send after connecting in
	// order to subscribe to book-ticker/depth updates for the given symbols.
	BuildSubscription(symbols []string) ([][]byte, error)

	// Parse decodes one inbound WS frame. It returns zero or more ticks (some
	// frames, like subscription acks, yield none) and zero or more orderbook
	// snapshots (depth updates). ok is false when the frame was not
	// recognized as market data (e.g. a control frame already handled by
	// IsHeartbeat).
	Parse(frame []byte) (ticks []domain.Tick, books []domain.Orderbook, ok bool)

	// IsHeartbeat reports whether frame is a ping/heartbeat frame from the
	// venue that requires a reply rather than market data parsing.
	IsHeartbeat(frame []byte) bool

	// HeartbeatReply returns the bytes to send back in response to a
	// heartbeat frame, or nil if the venue's protocol handles pings at the
	// transport level (no application-level pong needed).
	HeartbeatReply(frame []byte) []byte

	// HeartbeatRequest returns the bytes the adapter should proactively send
	// to keep the venue's application-level session alive, or nil if the
	// venue relies solely on transport-level ping/pong. Sent on the interval
	// the connection quality monitor recomputes each tick.
	HeartbeatRequest() []byte

	// InitialSnapshot fetches a REST depth snapshot for symbol, used to seed
	// an orderbook before applying incremental WS updates. Returns
	// ErrSnapshotUnsupported if the venue's adapter relies purely on WS
	// book-ticker frames and has no snapshot/delta model.
	InitialSnapshot(symbol string) (domain.Orderbook, error)
}

// ErrSnapshotUnsupported is returned by Capability.InitialSnapshot when the
// venue adapter has no REST snapshot endpoint wired (book-ticker-only feeds).
type errSnapshotUnsupported struct{}

func (errSnapshotUnsupported) Error() string { return "marketdata: snapshot not supported by venue" }

// ErrSnapshotUnsupported is the sentinel error for Capability implementations
// that only stream top-of-book ticks and never need a REST snapshot.
var ErrSnapshotUnsupported error = errSnapshotUnsupported{}
