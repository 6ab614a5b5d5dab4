// Package di contains dependency injection tokens for the marketdata context.
package di

// DI tokens for the marketdata module.
const (
	Adapters       = "marketdata.Adapters"
	Cleaner        = "marketdata.Cleaner"
	QualityMonitor = "marketdata.QualityMonitor"
)
