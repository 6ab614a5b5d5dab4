// Package di contains dependency injection tokens for the arbitrage context.
package di

// DI tokens for the arbitrage module.
const (
	Detector = "arbitrage.Detector"
	Reporter = "arbitrage.Reporter"
)
