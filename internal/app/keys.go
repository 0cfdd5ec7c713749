package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Tab       key.Binding
	Jobs      key.Binding
	Logs      key.Binding
	Chat      key.Binding
	Dashboard key.Binding
	NewJob    key.Binding
	Stop      key.Binding
	LogStream key.Binding
	Metrics   key.Binding
	Join      key.Binding
	Compose   key.Binding
	Send      key.Binding
	Refresh   key.Binding
	Debug     key.Binding
	Help      key.Binding
	Escape    key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev job / scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next job / scroll down"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "cycle tab"),
		),
		Jobs: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "jobs tab"),
		),
		Logs: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "logs tab"),
		),
		Chat: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "chat tab"),
		),
		Dashboard: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "dashboard tab"),
		),
		NewJob: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "start a job and watch it"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop the current tab's channel"),
		),
		LogStream: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stream logs"),
		),
		Metrics: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "stream host metrics"),
		),
		Join: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "join chat"),
		),
		Compose: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "write a chat message"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send message"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "load dashboard"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "debug log"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay / leave input"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// All returns every binding in help order.
func (k KeyMap) All() []key.Binding {
	return []key.Binding{
		k.Tab, k.Jobs, k.Logs, k.Chat, k.Dashboard,
		k.Up, k.Down,
		k.NewJob, k.LogStream, k.Metrics, k.Join, k.Compose, k.Send, k.Refresh, k.Stop,
		k.Debug, k.Help, k.Escape, k.Quit,
	}
}
