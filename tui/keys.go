package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/nachoal/kaizen-chat/chat"
)

// KeyMap defines key bindings for the chat view
type KeyMap struct {
	Quit    key.Binding
	Send    key.Binding
	Clear   key.Binding
	Dismiss key.Binding
	Tools   key.Binding
	History key.Binding
}

// DefaultKeyMap returns default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ask"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear screen"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "dismiss alert / quit"),
		),
		Tools: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "choose tools"),
		),
		History: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "history"),
		),
	}
}

// ShortHelp lists the bindings shown in the status line
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tools, k.History, k.Quit}
}

// Messages for the update loop
type (
	greetingMsg struct {
		text string
		err  error
	}

	toolsLoadedMsg struct {
		tools map[string]string
		err   error
	}

	chatEventMsg struct {
		event chat.Event
	}

	clearAlertMsg struct {
		id int
	}

	commandResultMsg struct {
		content     string
		err         error
		isQuit      bool
		isClear     bool
		openTools   bool
		openHistory bool
		refetch     bool
	}

	toolMenuClosedMsg struct{}

	historyClosedMsg struct{}

	historyResubmitMsg struct {
		index int
	}
)
