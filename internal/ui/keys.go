package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the login view bindings.
type keyMap struct {
	Copy       key.Binding
	Open       key.Binding
	CycleTheme key.Binding
	Cancel     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Copy code"),
		),
		Open: key.NewBinding(
			key.WithKeys("o", "enter"),
			key.WithHelp("o", "Open URL"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "Cancel"),
		),
	}
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Copy, k.Open, k.CycleTheme, k.Cancel}
}
