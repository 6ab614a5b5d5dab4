// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"time"

	arbApp "github.com/fd1az/arb-core/business/arbitrage/app"
	"github.com/fd1az/arb-core/business/arbitrage/domain"
	pcdomain "github.com/fd1az/arb-core/business/pricecache/domain"
	"github.com/fd1az/arb-core/pkg/ui"
)

// TUIReporter implements arbApp.Reporter by forwarding to the running
// Bubble Tea program. The program itself is started separately in main.go;
// this reporter just sends messages to it.
type TUIReporter struct {
	started bool
}

var _ arbApp.Reporter = (*TUIReporter)(nil)

// NewTUIReporter creates a new TUIReporter.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{}
}

// Start marks the reporter as live and sends a "config" startup step.
// ui.Send drops every message while no Bubble Tea program is set in
// ui.Program.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.started = true
	ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
	return nil
}

// Report sends an arbitrage opportunity to the TUI.
func (r *TUIReporter) Report(opp domain.Opportunity) {
	if !r.started {
		return
	}
	ui.Send(ui.OpportunityMsg{Opportunity: opp})
}

// UpdateBestPrices sends a symbol's refreshed best bid/ask to the TUI.
func (r *TUIReporter) UpdateBestPrices(symbol string, best pcdomain.BestPrices) {
	if !r.started {
		return
	}
	ui.Send(ui.BestPriceMsg{Symbol: symbol, Best: best})
}

// UpdateConnectionStatus sends a venue's connection status to the TUI.
func (r *TUIReporter) UpdateConnectionStatus(venue string, connected bool, lastTickAge time.Duration) {
	if !r.started {
		return
	}
	ui.Send(ui.ConnectionStatusMsg{
		Name:        venue,
		Connected:   connected,
		LastTickAge: lastTickAge,
	})
}

// Stop gracefully shuts down the TUI reporter.
func (r *TUIReporter) Stop() error {
	r.started = false
	return nil
}
