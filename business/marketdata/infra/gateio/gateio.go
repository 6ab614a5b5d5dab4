// Package gateio implements the marketdata Capability for Gate.io's V4
// public WebSocket (spot.order_book + spot.tickers channels) plus a REST
// depth fallback, built on the same Capability shape as the other venue
// adapters since no Gate.io reference source was retrieved for this pack.
package gateio

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	mdapp "github.com/fd1az/arb-core/business/marketdata/app"
	"github.com/fd1az/arb-core/business/marketdata/domain"
	"github.com/fd1az/arb-core/internal/apperror"
)

// WebSocketURL is Gate.io's V4 public WebSocket endpoint.
const WebSocketURL = "wss://api.gateio.ws/ws/v4/"

// Capability implements mdapp.Capability for Gate.io spot.
type Capability struct {
	syms  *domain.SymbolMap
	http  *HTTPClient
	clock func() int64
}

var _ mdapp.Capability = (*Capability)(nil)

// New builds a Gate.io Capability for the given canonical symbols (e.g.
// "BTC/USDT", currency pair "BTC_USDT" on the wire). http may be nil;
// InitialSnapshot then always returns ErrSnapshotUnsupported.
func New(symbols []string, http *HTTPClient) *Capability {
	syms := domain.NewSymbolMap(symbols, func(base, quote string) string {
		return strings.ToUpper(base) + "_" + strings.ToUpper(quote)
	})
	return &Capability{syms: syms, http: http, clock: func() int64 { return time.Now().Unix() }}
}

func (c *Capability) Venue() string { return "gateio" }

func (c *Capability) WebSocketURL() string { return WebSocketURL }

// BuildSubscription returns one subscribe message per channel, batching all
// configured pairs into each payload as Gate.io's protocol allows.
func (c *Capability) BuildSubscription(symbols []string) ([][]byte, error) {
	natives := make([]string, len(symbols))
	for i, sym := range symbols {
		natives[i] = c.syms.Native(sym)
	}
	now := c.clock()
	orderBook, err := json.Marshal(wsRequest{
		Time: now, Channel: "spot.order_book", Event: "subscribe",
		Payload: orderBookPayload(natives),
	})
	if err != nil {
		return nil, err
	}
	tickers, err := json.Marshal(wsRequest{
		Time: now, Channel: "spot.tickers", Event: "subscribe", Payload: natives,
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{orderBook, tickers}, nil
}

func orderBookPayload(symbols []string) []string {
	payload := make([]string, 0, len(symbols)*3)
	for _, s := range symbols {
		payload = append(payload, s, "20", "100ms")
	}
	return payload
}

// IsHeartbeat reports whether frame is a spot.pong reply to a client-
// initiated spot.ping. Gate.io's keep-alive is client-driven so no reply is
// needed here; the transport-level ping/pong handled by the wsconn client
// keeps the connection warm in between.
func (c *Capability) IsHeartbeat(frame []byte) bool {
	var env channelOnly
	if err := json.Unmarshal(frame, &env); err != nil {
		return false
	}
	return env.Channel == "spot.pong" || env.Channel == "spot.ping"
}

func (c *Capability) HeartbeatReply(frame []byte) []byte { return nil }

// HeartbeatRequest sends Gate.io's spot.ping, which the adapter must
// initiate itself every connection-quality-adjusted interval to keep the
// session alive.
func (c *Capability) HeartbeatRequest() []byte {
	msg, _ := json.Marshal(wsRequest{Time: c.clock(), Channel: "spot.ping"})
	return msg
}

func (c *Capability) Parse(frame []byte) ([]domain.Tick, []domain.Orderbook, bool) {
	var env updateEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, nil, false
	}
	if env.Event != "update" || len(env.Result) == 0 {
		return nil, nil, false
	}

	switch env.Channel {
	case "spot.order_book":
		var d orderBookWireData
		if err := json.Unmarshal(env.Result, &d); err != nil {
			return nil, nil, false
		}
		ob, err := d.toOrderbook()
		if err != nil {
			return nil, nil, false
		}
		ob.Symbol = c.syms.Canonical(ob.Symbol)
		return nil, []domain.Orderbook{ob}, true

	case "spot.tickers":
		var t tickerWireData
		if err := json.Unmarshal(env.Result, &t); err != nil {
			return nil, nil, false
		}
		tick, err := t.toTick()
		if err != nil {
			return nil, nil, false
		}
		tick.Symbol = c.syms.Canonical(tick.Symbol)
		return []domain.Tick{tick}, nil, true
	}

	return nil, nil, false
}

// InitialSnapshot fetches a REST order-book snapshot to seed state ahead of
// incremental WS updates.
func (c *Capability) InitialSnapshot(symbol string) (domain.Orderbook, error) {
	if c.http == nil {
		return domain.Orderbook{}, mdapp.ErrSnapshotUnsupported
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := c.http.GetOrderBook(ctx, c.syms.Native(symbol), 20)
	if err != nil {
		return domain.Orderbook{}, apperror.External(apperror.CodeOrderbookFetchFailed, "gateio REST snapshot", err)
	}
	return resp.toOrderbook(symbol)
}

// ---- wire types ----

type wsRequest struct {
	Time    int64  `json:"time"`
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type channelOnly struct {
	Channel string `json:"channel"`
}

type updateEnvelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Result  json.RawMessage `json:"result"`
}

type orderBookWireData struct {
	CurrencyPair string     `json:"s"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
	T            int64      `json:"t"`
}

func (d orderBookWireData) toOrderbook() (domain.Orderbook, error) {
	return domain.Orderbook{
		Venue:     "gateio",
		Symbol:    d.CurrencyPair,
		Bids:      domain.ParseLevels(d.Bids),
		Asks:      domain.ParseLevels(d.Asks),
		Timestamp: time.Now(),
	}, nil
}

type tickerWireData struct {
	CurrencyPair string `json:"currency_pair"`
	LowestAsk    string `json:"lowest_ask"`
	HighestBid   string `json:"highest_bid"`
	BaseVolume   string `json:"base_volume"`
}

func (t tickerWireData) toTick() (domain.Tick, error) {
	bidPrice, err := decimal.NewFromString(t.HighestBid)
	if err != nil {
		return domain.Tick{}, err
	}
	askPrice, err := decimal.NewFromString(t.LowestAsk)
	if err != nil {
		return domain.Tick{}, err
	}
	vol, _ := decimal.NewFromString(t.BaseVolume)
	return domain.Tick{
		Venue:     "gateio",
		Symbol:    t.CurrencyPair,
		BidPrice:  bidPrice,
		AskPrice:  askPrice,
		Volume24h: vol,
		Timestamp: time.Now(),
	}, nil
}
