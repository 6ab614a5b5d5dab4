// Package ui provides the Bubble Tea TUI for the arbitrage bot.
package ui

import "github.com/charmbracelet/lipgloss"

// Palette shared across the dashboard's views.
var (
	ColorPrimary = lipgloss.Color("#7C3AED") // headers, title bar
	ColorProfit  = lipgloss.Color("#10B981") // connected, positive values
	ColorDanger  = lipgloss.Color("#EF4444") // disconnected, errors
	ColorMuted   = lipgloss.Color("#6B7280") // secondary text
	ColorBorder  = lipgloss.Color("#374151")
)

var (
	// BoxStyle frames each dashboard panel.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	// TitleStyle renders the top title bar.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorPrimary).
			Padding(0, 2)

	// StatusConnected and StatusDisconnected color the per-venue
	// connection indicators.
	StatusConnected = lipgloss.NewStyle().
			Foreground(ColorProfit).
			Bold(true)

	StatusDisconnected = lipgloss.NewStyle().
				Foreground(ColorDanger).
				Bold(true)

	// MutedValue de-emphasizes secondary figures (tick ages, counts).
	MutedValue = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// HelpStyle renders the keybinding hint line at the bottom.
	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 1)
)
