package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	Stop       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding

	Help key.Binding
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	Submit: key.NewBinding(
		key.WithKeys("enter", "tab"),
		key.WithHelp("enter", "ask"),
	),
	NewLine: key.NewBinding(
		key.WithKeys("alt+enter", "ctrl+j"),
		key.WithHelp("alt+enter", "new line"),
	),
	Stop: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "stop"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("shift+up", "pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("shift+down", "pgdown"),
		key.WithHelp("pgdown", "scroll down"),
	),
	Help: key.NewBinding(
		key.WithKeys("ctrl+h"),
		key.WithHelp("ctrl+h", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Stop, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.NewLine, k.Stop},
		{k.ScrollUp, k.ScrollDown},
		{k.Help, k.Quit},
	}
}

// updateKeyBindings enables the bindings that make sense for the current state.
func (k *KeyMap) updateKeyBindings(busy bool) {
	k.Submit.SetEnabled(!busy)
	k.NewLine.SetEnabled(!busy)
	k.Stop.SetEnabled(busy)
}
