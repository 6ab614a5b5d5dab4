// Package bybit implements the marketdata Capability for Bybit's V5 public
// spot WebSocket (orderbook.1 + publicTrade topics) plus a REST depth
// fallback, grounded on the reference qingxi Bybit adapter's topic naming
// and message shapes.
package bybit

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

// WebSocketURL is Bybit's V5 public spot WebSocket endpoint.
const WebSocketURL = "wss://stream.bybit.com/v5/public/spot"

// Capability implements mdapp.Capability for Bybit spot.
type Capability struct {
	syms *domain.SymbolMap
	http *HTTPClient
}

var _ mdapp.Capability = (*Capability)(nil)

// New builds a Bybit Capability for the given canonical symbols (e.g.
// "BTC/USDT", spelled "BTCUSDT" on the wire). http may be nil;
// InitialSnapshot then always returns ErrSnapshotUnsupported.
func New(symbols []string, http *HTTPClient) *Capability {
	syms := domain.NewSymbolMap(symbols, func(base, quote string) string {
		return strings.ToUpper(base + quote)
	})
	return &Capability{syms: syms, http: http}
}

func (c *Capability) Venue() string { return "bybit" }

func (c *Capability) WebSocketURL() string { return WebSocketURL }

// BuildSubscription returns a single combined subscribe message for every
// configured symbol's orderbook and public-trade topics.
func (c *Capability) BuildSubscription(symbols []string) ([][]byte, error) {
	topics := make([]string, 0, len(symbols)*2)
	for _, sym := range symbols {
		native := c.syms.Native(sym)
		topics = append(topics, "orderbook.1."+native, "publicTrade."+native)
	}
	msg, err := json.Marshal(subscribeRequest{Op: "subscribe", Args: topics})
	if err != nil {
		return nil, err
	}
	return [][]byte{msg}, nil
}

// IsHeartbeat reports whether frame is a pong acknowledgment; Bybit never
// pushes an unsolicited app-level ping, so no reply is ever required here —
// the transport-level ping/pong handled by the wsconn client keeps the
// connection warm.
func (c *Capability) IsHeartbeat(frame []byte) bool {
	var op opOnly
	if err := json.Unmarshal(frame, &op); err != nil {
		return false
	}
	return op.Op == "pong" || op.Op == "ping"
}

func (c *Capability) HeartbeatReply(frame []byte) []byte { return nil }

// HeartbeatRequest sends Bybit's application-level ping so the public spot
// topic subscription is not dropped for idling, matching Bybit's documented
// keep-alive ("{"op":"ping"}" every ≤20s).
func (c *Capability) HeartbeatRequest() []byte {
	msg, _ := json.Marshal(opOnly{Op: "ping"})
	return msg
}

func (c *Capability) Parse(frame []byte) ([]domain.Tick, []domain.Orderbook, bool) {
	var env topicEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, nil, false
	}
	if env.Topic == "" {
		return nil, nil, false
	}

	switch {
	case hasPrefix(env.Topic, "orderbook."):
		var resp orderbookResponse
		if err := json.Unmarshal(frame, &resp); err != nil {
			return nil, nil, false
		}
		ob, err := resp.Data.toOrderbook()
		if err != nil {
			return nil, nil, false
		}
		ob.Symbol = c.syms.Canonical(ob.Symbol)
		return nil, []domain.Orderbook{ob}, true

	case hasPrefix(env.Topic, "publicTrade."):
		var resp tradeResponse
		if err := json.Unmarshal(frame, &resp); err != nil {
			return nil, nil, false
		}
		ticks := make([]domain.Tick, 0, len(resp.Data))
		for _, t := range resp.Data {
			tick, err := t.toTick()
			if err != nil {
				continue
			}
			tick.Symbol = c.syms.Canonical(tick.Symbol)
			ticks = append(ticks, tick)
		}
		if len(ticks) == 0 {
			return nil, nil, false
		}
		return ticks, nil, true
	}

	return nil, nil, false
}

// InitialSnapshot fetches a REST orderbook snapshot to seed state ahead of
// incremental WS updates.
func (c *Capability) InitialSnapshot(symbol string) (domain.Orderbook, error) {
	if c.http == nil {
		return domain.Orderbook{}, mdapp.ErrSnapshotUnsupported
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := c.http.GetOrderbook(ctx, c.syms.Native(symbol), 200)
	if err != nil {
		return domain.Orderbook{}, apperror.External(apperror.CodeOrderbookFetchFailed, "bybit REST snapshot", err)
	}
	return resp.toOrderbook(symbol)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// ---- wire types ----

type subscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type opOnly struct {
	Op string `json:"op"`
}

type topicEnvelope struct {
	Topic string `json:"topic"`
}

type orderbookResponse struct {
	Topic string            `json:"topic"`
	Type  string            `json:"type"`
	TS    int64             `json:"ts"`
	Data  orderbookWireData `json:"data"`
}

type orderbookWireData struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
	UID    uint64     `json:"u"`
	Seq    uint64     `json:"seq"`
}

func (d orderbookWireData) toOrderbook() (domain.Orderbook, error) {
	return domain.Orderbook{
		Venue:     "bybit",
		Symbol:    d.Symbol,
		Bids:      domain.ParseLevels(d.Bids),
		Asks:      domain.ParseLevels(d.Asks),
		Timestamp: time.Now(),
		SeqNum:    d.Seq,
	}, nil
}

type tradeResponse struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	TS    int64           `json:"ts"`
	Data  []tradeWireData `json:"data"`
}

type tradeWireData struct {
	Timestamp int64  `json:"T"`
	Symbol    string `json:"s"`
	Side      string `json:"S"`
	Volume    string `json:"v"`
	Price     string `json:"p"`
}

func (t tradeWireData) toTick() (domain.Tick, error) {
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return domain.Tick{}, err
	}
	vol, err := decimal.NewFromString(t.Volume)
	if err != nil {
		return domain.Tick{}, err
	}
	// A single public trade carries no bid/ask spread; both sides collapse
	// to the trade price so downstream Mid()/SpreadBps() still behave.
	return domain.Tick{
		Venue:     "bybit",
		Symbol:    t.Symbol,
		BidPrice:  price,
		BidSize:   vol,
		AskPrice:  price,
		AskSize:   vol,
		Volume24h: vol,
		Timestamp: time.UnixMilli(t.Timestamp),
	}, nil
}
