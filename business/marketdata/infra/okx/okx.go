// Package okx implements the marketdata Capability for OKX's V5 public
// WebSocket (books5 + tickers channels) plus a REST depth fallback, built
// on the same Capability shape as the Binance and Bybit adapters since no
// OKX reference source was retrieved for this pack.
package okx

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

// WebSocketURL is OKX's V5 public WebSocket endpoint.
const WebSocketURL = "wss://ws.okx.com:8443/ws/v5/public"

// Capability implements mdapp.Capability for OKX spot.
type Capability struct {
	syms *domain.SymbolMap
	http *HTTPClient
}

var _ mdapp.Capability = (*Capability)(nil)

// New builds an OKX Capability for the given canonical symbols (e.g.
// "BTC/USDT", instId "BTC-USDT" on the wire). http may be nil;
// InitialSnapshot then always returns ErrSnapshotUnsupported.
func New(symbols []string, http *HTTPClient) *Capability {
	syms := domain.NewSymbolMap(symbols, func(base, quote string) string {
		return strings.ToUpper(base) + "-" + strings.ToUpper(quote)
	})
	return &Capability{syms: syms, http: http}
}

func (c *Capability) Venue() string { return "okx" }

func (c *Capability) WebSocketURL() string { return WebSocketURL }

// BuildSubscription returns a single subscribe message covering every
// configured instrument's order-book and ticker channels.
func (c *Capability) BuildSubscription(symbols []string) ([][]byte, error) {
	args := make([]subArg, 0, len(symbols)*2)
	for _, sym := range symbols {
		instID := c.syms.Native(sym)
		args = append(args, subArg{Channel: "books5", InstID: instID}, subArg{Channel: "tickers", InstID: instID})
	}
	msg, err := json.Marshal(subscribeRequest{Op: "subscribe", Args: args})
	if err != nil {
		return nil, err
	}
	return [][]byte{msg}, nil
}

// IsHeartbeat reports whether frame is OKX's plain-text "pong" reply to a
// client-initiated "ping". OKX's own keep-alive is client-driven, so no
// reply is needed here; the transport-level ping/pong handled by the
// wsconn client keeps the connection warm in between.
func (c *Capability) IsHeartbeat(frame []byte) bool {
	return string(frame) == "pong" || string(frame) == "ping"
}

func (c *Capability) HeartbeatReply(frame []byte) []byte { return nil }

// HeartbeatRequest sends OKX's plain-text "ping", which the adapter must
// initiate itself every connection-quality-adjusted interval or OKX closes
// the session for inactivity.
func (c *Capability) HeartbeatRequest() []byte { return []byte("ping") }

func (c *Capability) Parse(frame []byte) ([]domain.Tick, []domain.Orderbook, bool) {
	var env pushEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, nil, false
	}
	if env.Arg.Channel == "" || len(env.Data) == 0 {
		return nil, nil, false
	}

	switch env.Arg.Channel {
	case "books5":
		var books []booksWireData
		if err := json.Unmarshal(env.Data, &books); err != nil {
			return nil, nil, false
		}
		result := make([]domain.Orderbook, 0, len(books))
		for _, b := range books {
			ob, err := b.toOrderbook(c.syms.Canonical(env.Arg.InstID))
			if err != nil {
				continue
			}
			result = append(result, ob)
		}
		if len(result) == 0 {
			return nil, nil, false
		}
		return nil, result, true

	case "tickers":
		var tickers []tickerWireData
		if err := json.Unmarshal(env.Data, &tickers); err != nil {
			return nil, nil, false
		}
		result := make([]domain.Tick, 0, len(tickers))
		for _, t := range tickers {
			tick, err := t.toTick()
			if err != nil {
				continue
			}
			tick.Symbol = c.syms.Canonical(tick.Symbol)
			result = append(result, tick)
		}
		if len(result) == 0 {
			return nil, nil, false
		}
		return result, nil, true
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
	resp, err := c.http.GetBooks(ctx, c.syms.Native(symbol), 20)
	if err != nil {
		return domain.Orderbook{}, apperror.External(apperror.CodeOrderbookFetchFailed, "okx REST snapshot", err)
	}
	return resp.toOrderbook(symbol)
}

// ---- wire types ----

type subArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type subscribeRequest struct {
	Op   string   `json:"op"`
	Args []subArg `json:"args"`
}

type pushEnvelope struct {
	Arg  subArg          `json:"arg"`
	Data json.RawMessage `json:"data"`
}

type booksWireData struct {
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
	TS   string     `json:"ts"`
	SeqID int64     `json:"seqId"`
}

func (d booksWireData) toOrderbook(instID string) (domain.Orderbook, error) {
	// OKX's levels are [price, size, deprecated, orderCount] quadruples;
	// ParseLevels only looks at the first two fields of each row.
	return domain.Orderbook{
		Venue:     "okx",
		Symbol:    instID,
		Bids:      domain.ParseLevels(d.Bids),
		Asks:      domain.ParseLevels(d.Asks),
		Timestamp: time.Now(),
		SeqNum:    uint64(d.SeqID),
	}, nil
}

type tickerWireData struct {
	InstID  string `json:"instId"`
	Last    string `json:"last"`
	AskPx   string `json:"askPx"`
	AskSz   string `json:"askSz"`
	BidPx   string `json:"bidPx"`
	BidSz   string `json:"bidSz"`
	Vol24h  string `json:"vol24h"`
	TS      string `json:"ts"`
}

func (t tickerWireData) toTick() (domain.Tick, error) {
	bidPrice, err := decimal.NewFromString(orDash(t.BidPx))
	if err != nil {
		return domain.Tick{}, err
	}
	bidSize, err := decimal.NewFromString(orDash(t.BidSz))
	if err != nil {
		return domain.Tick{}, err
	}
	askPrice, err := decimal.NewFromString(orDash(t.AskPx))
	if err != nil {
		return domain.Tick{}, err
	}
	askSize, err := decimal.NewFromString(orDash(t.AskSz))
	if err != nil {
		return domain.Tick{}, err
	}
	vol, _ := decimal.NewFromString(orDash(t.Vol24h))
	return domain.Tick{
		Venue:     "okx",
		Symbol:    t.InstID,
		BidPrice:  bidPrice,
		BidSize:   bidSize,
		AskPrice:  askPrice,
		AskSize:   askSize,
		Volume24h: vol,
		Timestamp: time.Now(),
	}, nil
}

// orDash substitutes "0" for OKX's empty-string placeholder on thin books.
func orDash(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
