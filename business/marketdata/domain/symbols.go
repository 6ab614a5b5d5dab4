package domain

import "strings"

// SymbolMap translates between the pipeline's canonical "BASE/QUOTE" symbol
// form and one venue's native spelling, in both directions. Every Capability
// builds one at construction: subscriptions go out in the venue's format,
// and every parsed tick/orderbook comes back stamped with the canonical
// symbol, so the price cache keys the same pair identically across venues —
// Binance's "BTCUSDT", OKX's "BTC-USDT" and Gate.io's "BTC_USDT" all fold
// into "BTC/USDT".
type SymbolMap struct {
	toNative    map[string]string
	toCanonical map[string]string
	natives     []string
}

// NewSymbolMap builds a SymbolMap for the given canonical symbols, using
// native to spell each (base, quote) pair the venue's way. A canonical
// symbol without a "/" separator passes through unchanged in both
// directions.
func NewSymbolMap(canonical []string, native func(base, quote string) string) *SymbolMap {
	m := &SymbolMap{
		toNative:    make(map[string]string, len(canonical)),
		toCanonical: make(map[string]string, len(canonical)),
		natives:     make([]string, 0, len(canonical)),
	}
	for _, sym := range canonical {
		nat := sym
		if base, quote, ok := strings.Cut(sym, "/"); ok {
			nat = native(base, quote)
		}
		m.toNative[sym] = nat
		m.toCanonical[nat] = sym
		m.natives = append(m.natives, nat)
	}
	return m
}

// Native returns the venue spelling for a canonical symbol, or the input
// unchanged if it wasn't registered.
func (m *SymbolMap) Native(canonical string) string {
	if nat, ok := m.toNative[canonical]; ok {
		return nat
	}
	return canonical
}

// Canonical returns the canonical symbol for a venue spelling, or the input
// unchanged for symbols that were never registered (a venue pushing an
// unrequested stream).
func (m *SymbolMap) Canonical(native string) string {
	if canon, ok := m.toCanonical[native]; ok {
		return canon
	}
	return native
}

// Natives returns every registered venue spelling in registration order.
func (m *SymbolMap) Natives() []string {
	return m.natives
}
