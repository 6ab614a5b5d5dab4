// Package huobi implements the marketdata Capability for Huobi/HTX's public
// market WebSocket (gzip-compressed JSON, step0 depth + best-quote ticks)
// plus a REST depth fallback, built on the same Capability shape as the
// other venue adapters since no Huobi reference source was retrieved for
// this pack.
package huobi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	mdapp "github.com/fd1az/arb-core/business/marketdata/app"
	"github.com/fd1az/arb-core/business/marketdata/domain"
	"github.com/fd1az/arb-core/internal/apperror"
)

// WebSocketURL is Huobi's public market WebSocket endpoint.
const WebSocketURL = "wss://api.huobi.pro/ws"

// Capability implements mdapp.Capability for Huobi spot.
type Capability struct {
	syms *domain.SymbolMap
	http *HTTPClient
}

var _ mdapp.Capability = (*Capability)(nil)

// New builds a Huobi Capability for the given canonical symbols (e.g.
// "BTC/USDT", spelled "btcusdt" on the wire per Huobi convention). http may
// be nil; InitialSnapshot then always returns ErrSnapshotUnsupported.
func New(symbols []string, http *HTTPClient) *Capability {
	syms := domain.NewSymbolMap(symbols, func(base, quote string) string {
		return strings.ToLower(base + quote)
	})
	return &Capability{syms: syms, http: http}
}

func (c *Capability) Venue() string { return "huobi" }

func (c *Capability) WebSocketURL() string { return WebSocketURL }

// BuildSubscription returns one subscribe message per symbol's depth and
// best-bid-offer channels; Huobi's ws gateway does not accept a single
// batched subscribe for multiple channels.
func (c *Capability) BuildSubscription(symbols []string) ([][]byte, error) {
	msgs := make([][]byte, 0, len(symbols)*2)
	for _, sym := range symbols {
		native := c.syms.Native(sym)
		depth, err := json.Marshal(subRequest{Sub: "market." + native + ".depth.step0", ID: native + "-depth"})
		if err != nil {
			return nil, err
		}
		bbo, err := json.Marshal(subRequest{Sub: "market." + native + ".bbo", ID: native + "-bbo"})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, depth, bbo)
	}
	return msgs, nil
}

// IsHeartbeat reports whether frame is a gzip-compressed ping frame. Huobi's
// market data channel is server-driven: it pings, the client must pong back
// with the same timestamp or be disconnected, so unlike the other venues
// this is the one adapter whose HeartbeatReply is not a no-op.
func (c *Capability) IsHeartbeat(frame []byte) bool {
	payload, err := decompress(frame)
	if err != nil {
		return false
	}
	var ping pingFrame
	if err := json.Unmarshal(payload, &ping); err != nil {
		return false
	}
	return ping.Ping != 0
}

func (c *Capability) HeartbeatReply(frame []byte) []byte {
	payload, err := decompress(frame)
	if err != nil {
		return nil
	}
	var ping pingFrame
	if err := json.Unmarshal(payload, &ping); err != nil || ping.Ping == 0 {
		return nil
	}
	reply, err := json.Marshal(pongFrame{Pong: ping.Ping})
	if err != nil {
		return nil
	}
	return reply
}

// HeartbeatRequest returns nil: Huobi's keep-alive is server-driven
// (HeartbeatReply answers each server ping), so the adapter never needs to
// initiate one itself.
func (c *Capability) HeartbeatRequest() []byte { return nil }

func (c *Capability) Parse(frame []byte) ([]domain.Tick, []domain.Orderbook, bool) {
	payload, err := decompress(frame)
	if err != nil {
		return nil, nil, false
	}

	var env channelEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, nil, false
	}
	if env.Ch == "" {
		return nil, nil, false
	}
	symbol := c.syms.Canonical(symbolFromChannel(env.Ch))

	switch {
	case strings.Contains(env.Ch, ".depth."):
		ob, err := env.Tick.toOrderbook(symbol)
		if err != nil {
			return nil, nil, false
		}
		return nil, []domain.Orderbook{ob}, true

	case strings.HasSuffix(env.Ch, ".bbo"):
		tick, err := env.Tick.toTick(symbol)
		if err != nil {
			return nil, nil, false
		}
		return []domain.Tick{tick}, nil, true
	}

	return nil, nil, false
}

// InitialSnapshot fetches a REST market-depth snapshot to seed state ahead
// of incremental WS updates.
func (c *Capability) InitialSnapshot(symbol string) (domain.Orderbook, error) {
	if c.http == nil {
		return domain.Orderbook{}, mdapp.ErrSnapshotUnsupported
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := c.http.GetDepth(ctx, c.syms.Native(symbol), 20)
	if err != nil {
		return domain.Orderbook{}, apperror.External(apperror.CodeOrderbookFetchFailed, "huobi REST snapshot", err)
	}
	return resp.toOrderbook(symbol)
}

func decompress(frame []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(frame))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// symbolFromChannel extracts "btcusdt" out of "market.btcusdt.depth.step0",
// in Huobi's lowercase spelling so the symbol map can resolve it.
func symbolFromChannel(ch string) string {
	parts := strings.Split(ch, ".")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ch
}

// ---- wire types ----

type subRequest struct {
	Sub string `json:"sub"`
	ID  string `json:"id"`
}

type pingFrame struct {
	Ping int64 `json:"ping"`
}

type pongFrame struct {
	Pong int64 `json:"pong"`
}

type channelEnvelope struct {
	Ch   string       `json:"ch"`
	TS   int64        `json:"ts"`
	Tick tickWireData `json:"tick"`
}

type tickWireData struct {
	Bids [][2]float64 `json:"bids"`
	Asks [][2]float64 `json:"asks"`
	Bid  [2]float64   `json:"bid"` // [price, size], bbo channel
	Ask  [2]float64   `json:"ask"`
}

func (t tickWireData) toOrderbook(symbol string) (domain.Orderbook, error) {
	return domain.Orderbook{
		Venue:     "huobi",
		Symbol:    symbol,
		Bids:      toLevels(t.Bids),
		Asks:      toLevels(t.Asks),
		Timestamp: time.Now(),
	}, nil
}

func (t tickWireData) toTick(symbol string) (domain.Tick, error) {
	if t.Bid[0] <= 0 || t.Ask[0] <= 0 {
		return domain.Tick{}, errZeroQuote
	}
	return domain.Tick{
		Venue:     "huobi",
		Symbol:    symbol,
		BidPrice:  decimal.NewFromFloat(t.Bid[0]),
		BidSize:   decimal.NewFromFloat(t.Bid[1]),
		AskPrice:  decimal.NewFromFloat(t.Ask[0]),
		AskSize:   decimal.NewFromFloat(t.Ask[1]),
		Timestamp: time.Now(),
	}, nil
}

func toLevels(raw [][2]float64) []domain.OrderbookLevel {
	return domain.ParseLevelsFloat(raw)
}

type zeroQuoteErr struct{}

func (zeroQuoteErr) Error() string { return "huobi: zero bid/ask in bbo tick" }

var errZeroQuote error = zeroQuoteErr{}
