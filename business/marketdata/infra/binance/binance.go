// Package binance implements the marketdata Capability for Binance's combined
// WebSocket streams (bookTicker + partial depth) plus a REST depth fallback,
// adapted from the teacher's CEX-only Binance client.
package binance

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	mdapp "github.com/fd1az/arb-core/business/marketdata/app"
	"github.com/fd1az/arb-core/business/marketdata/domain"
	"github.com/fd1az/arb-core/internal/apperror"
)

const (
	// BaseWSURL is Binance's combined-streams WebSocket endpoint.
	BaseWSURL = "wss://stream.binance.com:9443"

	depthSpeedMs = 100
)

// Capability implements mdapp.Capability for Binance.
type Capability struct {
	syms *domain.SymbolMap
	http *HTTPClient
}

var _ mdapp.Capability = (*Capability)(nil)

// New builds a Binance Capability for the given canonical symbols (e.g.
// "BTC/USDT", spelled "BTCUSDT" on the wire). http may be nil;
// InitialSnapshot then always returns ErrSnapshotUnsupported.
func New(symbols []string, http *HTTPClient) *Capability {
	syms := domain.NewSymbolMap(symbols, func(base, quote string) string {
		return strings.ToUpper(base + quote)
	})
	return &Capability{syms: syms, http: http}
}

func (c *Capability) Venue() string { return "binance" }

func (c *Capability) WebSocketURL() string {
	natives := c.syms.Natives()
	streams := make([]string, 0, len(natives)*2)
	for _, sym := range natives {
		streams = append(streams, bookTickerStream(sym), depthStream(sym, depthSpeedMs))
	}
	u, _ := url.Parse(BaseWSURL)
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")
	return u.String()
}

// BuildSubscription is a no-op for Binance: the combined-streams URL already
// subscribes to every requested symbol at connect time.
func (c *Capability) BuildSubscription(symbols []string) ([][]byte, error) {
	return nil, nil
}

func (c *Capability) IsHeartbeat(frame []byte) bool {
	// coder/websocket answers control-frame pings at the transport layer;
	// Binance's combined streams never send an application-level ping frame.
	return false
}

func (c *Capability) HeartbeatReply(frame []byte) []byte { return nil }

// HeartbeatRequest returns nil: Binance's combined streams stay alive on
// the transport-level ping/pong the wsconn client already sends.
func (c *Capability) HeartbeatRequest() []byte { return nil }

func (c *Capability) Parse(frame []byte) ([]domain.Tick, []domain.Orderbook, bool) {
	var event streamEvent
	if err := json.Unmarshal(frame, &event); err != nil {
		return nil, nil, false
	}

	switch {
	case strings.HasSuffix(event.Stream, "@bookTicker"):
		var t bookTickerEvent
		if err := json.Unmarshal(event.Data, &t); err != nil {
			return nil, nil, false
		}
		tick, err := t.toTick()
		if err != nil {
			return nil, nil, false
		}
		tick.Symbol = c.syms.Canonical(tick.Symbol)
		return []domain.Tick{tick}, nil, true

	case strings.Contains(event.Stream, "@depth"):
		var d partialDepthEvent
		if err := json.Unmarshal(event.Data, &d); err != nil {
			return nil, nil, false
		}
		d.Symbol = c.syms.Canonical(extractSymbolFromStream(event.Stream))
		ob, err := d.toOrderbook()
		if err != nil {
			return nil, nil, false
		}
		return nil, []domain.Orderbook{ob}, true
	}

	return nil, nil, false
}

// InitialSnapshot fetches a REST depth snapshot to seed an orderbook.
// symbol is canonical; the REST call goes out in Binance's spelling.
func (c *Capability) InitialSnapshot(symbol string) (domain.Orderbook, error) {
	if c.http == nil {
		return domain.Orderbook{}, mdapp.ErrSnapshotUnsupported
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := c.http.GetDepth(ctx, c.syms.Native(symbol), 20)
	if err != nil {
		return domain.Orderbook{}, apperror.External(apperror.CodeOrderbookFetchFailed, "binance REST snapshot", err)
	}
	d := partialDepthEvent{LastUpdateID: resp.LastUpdateID, Bids: resp.Bids, Asks: resp.Asks, Symbol: symbol}
	return d.toOrderbook()
}

// ---- wire types, adapted from the teacher's messages.go ----

type streamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type bookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

func (e *bookTickerEvent) toTick() (domain.Tick, error) {
	bidPrice, err := decimal.NewFromString(e.BidPrice)
	if err != nil {
		return domain.Tick{}, err
	}
	bidQty, err := decimal.NewFromString(e.BidQty)
	if err != nil {
		return domain.Tick{}, err
	}
	askPrice, err := decimal.NewFromString(e.AskPrice)
	if err != nil {
		return domain.Tick{}, err
	}
	askQty, err := decimal.NewFromString(e.AskQty)
	if err != nil {
		return domain.Tick{}, err
	}
	return domain.Tick{
		Venue:     "binance",
		Symbol:    e.Symbol,
		BidPrice:  bidPrice,
		BidSize:   bidQty,
		AskPrice:  askPrice,
		AskSize:   askQty,
		Timestamp: time.Now(),
		SeqNum:    uint64(e.UpdateID),
	}, nil
}

type partialDepthEvent struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
	Symbol       string     `json:"-"`
}

func (d *partialDepthEvent) toOrderbook() (domain.Orderbook, error) {
	return domain.Orderbook{
		Venue:     "binance",
		Symbol:    d.Symbol,
		Bids:      domain.ParseLevels(d.Bids),
		Asks:      domain.ParseLevels(d.Asks),
		Timestamp: time.Now(),
		SeqNum:    uint64(d.LastUpdateID),
	}, nil
}

func bookTickerStream(symbol string) string {
	return lowercase(symbol) + "@bookTicker"
}

func depthStream(symbol string, speedMs int) string {
	return lowercase(symbol) + "@depth20@" + strconv.Itoa(speedMs) + "ms"
}

func extractSymbolFromStream(stream string) string {
	idx := strings.Index(stream, "@")
	if idx > 0 {
		return strings.ToUpper(stream[:idx])
	}
	return stream
}

func lowercase(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 32
		}
	}
	return string(b)
}
