package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the dashboard's keybindings; Update matches against these
// and the help line at the bottom of the dashboard is generated from them,
// so a rebinding here changes both behavior and documentation at once.
type KeyMap struct {
	Quit        key.Binding
	Pause       key.Binding
	Clear       key.Binding
	ClearErrors key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding
}

// DefaultKeyMap returns the default dashboard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		ClearErrors: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "clear errors"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑", "scroll"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓", "scroll"),
		),
	}
}

// helpLine renders "q: quit • c: clear • ..." from the bindings' help
// entries, collapsing the two scroll directions into one entry.
func (k KeyMap) helpLine() string {
	entries := []key.Binding{k.Quit, k.Clear, k.Pause, k.ClearErrors}
	parts := make([]string, 0, len(entries)+1)
	for _, b := range entries {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	parts = append(parts, "↑↓: scroll")
	return strings.Join(parts, " • ")
}
