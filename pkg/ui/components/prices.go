// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// PriceRow represents one symbol's best bid/ask across venues.
type PriceRow struct {
	Symbol      string
	BestBid     float64
	BestAsk     float64
	SpreadBps   float64
	SourceCount int
	LastUpdated time.Time
}

// PricesComponent renders the best-price table.
type PricesComponent struct {
	rows map[string]PriceRow
}

// NewPricesComponent creates a new prices component.
func NewPricesComponent() *PricesComponent {
	return &PricesComponent{rows: make(map[string]PriceRow)}
}

// Update sets or replaces the row for a symbol.
func (p *PricesComponent) Update(row PriceRow) {
	p.rows[row.Symbol] = row
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var result string
	result = headerStyle.Render("BEST PRICES")
	result += "\n\n"

	if len(p.rows) == 0 {
		result += dimStyle.Render("  Waiting for price data...") + "\n"
		return result
	}

	result += fmt.Sprintf("  %-10s  %12s  %12s  %10s  %7s\n",
		"Symbol", "Bid", "Ask", "Spread", "Venues")
	result += dimStyle.Render("  " + strings.Repeat("─", 56)) + "\n"

	for _, row := range p.rows {
		spreadStyle := positiveStyle
		if row.SpreadBps < 0 {
			spreadStyle = negativeStyle
		}
		result += fmt.Sprintf("  %-10s  %12s  %12s  %s  %7d\n",
			row.Symbol,
			fmt.Sprintf("$%.2f", row.BestBid),
			fmt.Sprintf("$%.2f", row.BestAsk),
			spreadStyle.Render(fmt.Sprintf("%8.1fbps", row.SpreadBps)),
			row.SourceCount,
		)
	}

	return result
}
