package asset

// Well-known crypto assets pre-created for the exchange adapters. Quantity
// decimals follow each asset's conventional display precision; the detector
// and price cache additionally clamp to PriceScale (see fixedpoint.go) at
// the I/O boundary, since that path computes before a tick is resolved to
// one of these assets.
var (
	BTC  = NewAssetWithName("BTC", "Bitcoin", 8, ClassCrypto)
	ETH  = NewAssetWithName("ETH", "Ethereum", 18, ClassCrypto)
	BNB  = NewAssetWithName("BNB", "Binance Coin", 8, ClassCrypto)
	SOL  = NewAssetWithName("SOL", "Solana", 9, ClassCrypto)
	USDT = NewAssetWithName("USDT", "Tether USD", 6, ClassCrypto)
	USDC = NewAssetWithName("USDC", "USD Coin", 6, ClassCrypto)

	USD = NewAssetWithName("USD", "US Dollar", 2, ClassFiat)
	EUR = NewAssetWithName("EUR", "Euro", 2, ClassFiat)
)

// DefaultRegistry returns a registry pre-populated with well-known assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(BTC)
	r.Register(ETH)
	r.Register(BNB)
	r.Register(SOL)
	r.Register(USDT)
	r.Register(USDC)
	r.Register(USD)
	r.Register(EUR)

	return r
}

// MustNewCrypto registers a custom crypto asset, for symbols not listed above.
func MustNewCrypto(symbol string, decimals uint8) *Asset {
	return NewAsset(symbol, decimals, ClassCrypto)
}
