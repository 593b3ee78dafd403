package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds all TUI key bindings.
type keyMap struct {
	Next      key.Binding
	Prev      key.Binding
	First     key.Binding
	Last      key.Binding
	Reset     key.Binding
	Search    key.Binding
	NextMatch key.Binding
	PrevMatch key.Binding
	Query     key.Binding
	Submit    key.Binding
	HistUp    key.Binding
	HistDown  key.Binding
	Cancel    key.Binding
	Quit      key.Binding
	Help      key.Binding
	PgUp      key.Binding
	PgDown    key.Binding
}

var keys = keyMap{
	Next: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next step"),
	),
	Prev: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "previous step"),
	),
	First: key.NewBinding(
		key.WithKeys("home", "g"),
		key.WithHelp("g", "first step"),
	),
	Last: key.NewBinding(
		key.WithKeys("end", "G"),
		key.WithHelp("G", "last step"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	NextMatch: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "next match"),
	),
	PrevMatch: key.NewBinding(
		key.WithKeys("N"),
		key.WithHelp("N", "previous match"),
	),
	Query: key.NewBinding(
		key.WithKeys("tab", "i", ":"),
		key.WithHelp("tab", "edit query"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "run query"),
	),
	HistUp: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "older query"),
	),
	HistDown: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "newer query"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	PgUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "scroll up"),
	),
	PgDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "scroll down"),
	),
}

// keyBarText renders the context-sensitive key hint string.
func keyBarText(f focus, help bool) string {
	hint := func(k, desc string) string {
		return keyStyle.Render(k) + keyDescStyle.Render(":"+desc)
	}
	if help {
		return hint("Esc", "close") + "  " + hint("q", "quit")
	}
	switch f {
	case focusQuery:
		return hint("Enter", "run") + "  " +
			hint("↑↓", "history") + "  " +
			hint("Esc", "back")
	case focusSearch:
		return hint("Enter", "find") + "  " +
			hint("Esc", "cancel")
	}
	return hint("←→", "step") + "  " +
		hint("g/G", "first/last") + "  " +
		hint("/", "search") + "  " +
		hint("n/N", "match") + "  " +
		hint("tab", "query") + "  " +
		hint("q", "quit") + "  " +
		hint("?", "help")
}
