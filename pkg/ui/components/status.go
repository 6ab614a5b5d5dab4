// Package components provides the dashboard's reusable view components.
package components

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus is one venue's feed state as shown in the sidebar.
type ConnectionStatus struct {
	Name        string
	Connected   bool
	LastTickAge time.Duration
	LastUpdate  time.Time
}

// StatusComponent renders the per-venue connection list.
type StatusComponent struct {
	venues map[string]ConnectionStatus
}

// NewStatusComponent creates an empty status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{venues: make(map[string]ConnectionStatus)}
}

// Update records a venue's latest status.
func (s *StatusComponent) Update(status ConnectionStatus) {
	s.venues[status.Name] = status
}

var (
	statusUpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	statusDownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// View renders one line per venue, alphabetical so the list doesn't jump
// around as updates arrive.
func (s *StatusComponent) View() string {
	if len(s.venues) == 0 {
		return "No connections"
	}

	names := make([]string, 0, len(s.venues))
	for name := range s.venues {
		names = append(names, name)
	}
	sort.Strings(names)

	var result string
	for _, name := range names {
		conn := s.venues[name]
		status := statusUpStyle.Render("● Connected")
		if !conn.Connected {
			status = statusDownStyle.Render("○ Disconnected")
		}

		line := fmt.Sprintf("├─ %s: %s", conn.Name, status)
		if conn.Connected && conn.LastTickAge > 0 {
			line += fmt.Sprintf(" (last tick %s ago)", conn.LastTickAge.Round(time.Millisecond))
		}
		result += line + "\n"
	}

	return result
}
