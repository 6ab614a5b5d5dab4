// Package ui provides the Bubble Tea TUI for the arbitrage bot.
package ui

import (
	"time"

	"github.com/fd1az/arb-core/business/arbitrage/domain"
	pcdomain "github.com/fd1az/arb-core/business/pricecache/domain"
)

// Message types for TUI updates

// OpportunityMsg is sent when an arbitrage opportunity is detected.
type OpportunityMsg struct {
	Opportunity domain.Opportunity
}

// BestPriceMsg is sent when a symbol's best bid/ask across venues changes.
type BestPriceMsg struct {
	Symbol string
	Best   pcdomain.BestPrices
}

// ConnectionStatusMsg is sent when a venue's connection status changes.
type ConnectionStatusMsg struct {
	Name        string
	Connected   bool
	LastTickAge time.Duration
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// WelcomeCompleteMsg signals the welcome screen is done (timeout or keypress).
type WelcomeCompleteMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "failed"
	Message string // Optional message
}
