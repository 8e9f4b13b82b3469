package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	NextPattern   key.Binding
	PrevPattern   key.Binding
	MoreSessions  key.Binding
	FewerSessions key.Binding
	Start         key.Binding
	Stop          key.Binding
	Reset         key.Binding
	Step          key.Binding
	Resync        key.Binding
	Help          key.Binding
	Escape        key.Binding
	Quit          key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextPattern: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "next pattern"),
		),
		PrevPattern: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "previous pattern"),
		),
		MoreSessions: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "sessions ×10"),
		),
		FewerSessions: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "sessions ÷10"),
		),
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "configure and start"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset"),
		),
		Step: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "single step"),
		),
		Resync: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "resync"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// All lists the bindings in help order.
func (k KeyMap) All() []key.Binding {
	return []key.Binding{
		k.NextPattern, k.PrevPattern, k.MoreSessions, k.FewerSessions,
		k.Start, k.Stop, k.Reset, k.Step, k.Resync, k.Help, k.Quit,
	}
}
