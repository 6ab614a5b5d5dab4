// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes the detector family that produced an opportunity.
type Kind string

const (
	KindInterExchange Kind = "inter_exchange"
	KindTriangular    Kind = "triangular"
)

// DefaultExpiry is how long an opportunity remains actionable after
// detection; past this, the dispatcher drops it rather than forwarding it to
// the risk stage.
const DefaultExpiry = 30 * time.Second

// Opportunity is a detected arbitrage chance: either two legs on two venues
// (inter-exchange) or three legs on one venue (triangular), sized and priced
// at detection time, carrying the profit math the detector already did.
type Opportunity struct {
	ID             string
	Kind           Kind
	Symbol         string // primary symbol for inter-exchange; cycle label ("venue:LEG1/LEG2/LEG3") for triangular
	Legs           []Leg
	TradeSize      decimal.Decimal
	ProfitBps      decimal.Decimal
	NetProfitUSD   decimal.Decimal
	DetectedAt     time.Time
	ExpiryEstimate time.Time
	Fingerprint    string
}

// New builds an Opportunity, deriving its fingerprint and expiry from legs
// and detectedAt.
func New(id string, kind Kind, symbol string, legs []Leg, tradeSize, profitBps, netProfitUSD decimal.Decimal, detectedAt time.Time) Opportunity {
	return Opportunity{
		ID:             id,
		Kind:           kind,
		Symbol:         symbol,
		Legs:           legs,
		TradeSize:      tradeSize,
		ProfitBps:      profitBps,
		NetProfitUSD:   netProfitUSD,
		DetectedAt:     detectedAt,
		ExpiryEstimate: detectedAt.Add(DefaultExpiry),
		Fingerprint:    Fingerprint(kind, legs),
	}
}

// Fingerprint identifies an opportunity by its legs' venue/symbol/side,
// independent of price or size, so repeated detections of the same
// structural opportunity within a debounce window can be deduplicated.
func Fingerprint(kind Kind, legs []Leg) string {
	var b strings.Builder
	b.WriteString(string(kind))
	for _, l := range legs {
		b.WriteByte('|')
		b.WriteString(l.Venue)
		b.WriteByte(':')
		b.WriteString(l.Symbol)
		b.WriteByte(':')
		b.WriteString(string(l.Side))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

// Expired reports whether now is past the opportunity's expiry estimate.
func (o Opportunity) Expired(now time.Time) bool {
	return now.After(o.ExpiryEstimate)
}

// IsProfitable reports whether the opportunity clears a zero profit bar;
// detectors only ever emit opportunities already above the configured
// threshold, so this mainly guards against acting on a zero-value.
func (o Opportunity) IsProfitable() bool {
	return o.ProfitBps.IsPositive() && len(o.Legs) > 0
}
