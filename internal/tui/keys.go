package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all console key bindings with built-in help text.
type KeyMap struct {
	// Global
	Quit      key.Binding
	ForceQuit key.Binding
	Help      key.Binding

	// Protocol
	Begin   key.Binding
	Halt    key.Binding
	Confirm key.Binding

	// Jogs
	PanLeft  key.Binding
	PanRight key.Binding
	LiftUp   key.Binding
	LiftDown key.Binding
	StopJog  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),

		Begin: key.NewBinding(
			key.WithKeys("enter", "b"),
			key.WithHelp("enter/b", "start or confirm"),
		),
		Halt: key.NewBinding(
			key.WithKeys(" ", "x"),
			key.WithHelp("space/x", "halt immediately"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "confirm shock"),
		),

		PanLeft: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "pan camera left"),
		),
		PanRight: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "pan camera right"),
		),
		LiftUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "raise lift"),
		),
		LiftDown: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "lower lift"),
		),
		StopJog: key.NewBinding(
			key.WithKeys("esc", "s"),
			key.WithHelp("esc/s", "stop jogs"),
		),
	}
}

// helpBindings lists bindings in the order the help overlay shows them.
func (k KeyMap) helpBindings() []key.Binding {
	return []key.Binding{
		k.Begin, k.Halt, k.Confirm,
		k.PanLeft, k.PanRight, k.LiftUp, k.LiftDown, k.StopJog,
		k.Help, k.Quit,
	}
}
