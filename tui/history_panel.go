package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/nachoal/kaizen-chat/history"
	"github.com/nachoal/kaizen-chat/tui/styles"
)

// HistoryPanel lists recent exchanges, newest first. Enter expands one
// exchange at a time; r puts its question back in the input box.
type HistoryPanel struct {
	store    *history.Store
	styles   *styles.Styles
	renderer *glamour.TermRenderer
	selected int
	width    int
	height   int
}

// NewHistoryPanel creates a history panel over the session store
func NewHistoryPanel(store *history.Store, st *styles.Styles, renderer *glamour.TermRenderer) *HistoryPanel {
	return &HistoryPanel{
		store:    store,
		styles:   st,
		renderer: renderer,
		width:    80,
		height:   24,
	}
}

func (p *HistoryPanel) Update(msg tea.Msg) (*HistoryPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		return p, nil

	case tea.KeyMsg:
		n := p.store.Len()
		switch msg.String() {
		case "up", "k":
			if p.selected > 0 {
				p.selected--
			}
		case "down", "j":
			if p.selected < n-1 {
				p.selected++
			}
		case "enter", " ":
			if n > 0 {
				p.store.Toggle(p.selected)
			}
		case "r":
			if n > 0 {
				index := p.selected
				return p, func() tea.Msg { return historyResubmitMsg{index: index} }
			}
		case "esc", "q":
			return p, func() tea.Msg { return historyClosedMsg{} }
		}
	}
	return p, nil
}

func (p *HistoryPanel) View() string {
	entries := p.store.Entries()
	if len(entries) == 0 {
		return "\nNo chat history yet\n\nPress [Esc] to return."
	}
	if p.selected >= len(entries) {
		p.selected = len(entries) - 1
	}

	lineWidth := p.width - 1
	var b strings.Builder

	b.WriteString(p.styles.Title.Render(fmt.Sprintf("Chat history (%d)", len(entries))))
	b.WriteString("\n\n")

	// Collapsed entries take two lines
	visible := (p.height - 6) / 2
	if visible < 1 {
		visible = 1
	}
	startIdx := 0
	endIdx := len(entries)
	if visible < len(entries) {
		if p.selected > visible/2 {
			startIdx = p.selected - visible/2
			if startIdx+visible > len(entries) {
				startIdx = len(entries) - visible
			}
		}
		endIdx = startIdx + visible
		if endIdx > len(entries) {
			endIdx = len(entries)
		}
	}

	for i := startIdx; i < endIdx; i++ {
		entry := entries[i]
		cursor := "  "
		style := p.styles.Normal
		if i == p.selected {
			cursor = "▸ "
			style = p.styles.Selected
		}

		line := fmt.Sprintf("%s#%d %s", cursor, entry.Sequence, strings.Join(strings.Fields(entry.Question), " "))
		b.WriteString(style.Render(truncateToWidth(line, lineWidth)))
		b.WriteString("\n")

		summary := entry.ToolSummary()
		if md := formatMetadata(entry.Metadata, true); md != "" {
			summary = md + " · " + summary
		}
		b.WriteString(p.styles.Metadata.Render(truncateToWidth("    "+summary, lineWidth)))
		b.WriteString("\n")

		if entry.Expanded {
			b.WriteString("\n")
			b.WriteString(renderAnswer(p.renderer, entry.Answer))
			b.WriteString("\n")
			if md := formatMetadata(entry.Metadata, false); md != "" {
				b.WriteString(p.styles.Metadata.Render(wrapToWidth(md, lineWidth)))
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	if startIdx > 0 || endIdx < len(entries) {
		b.WriteString(p.styles.Normal.Render(fmt.Sprintf("\n[%d-%d of %d exchanges]", startIdx+1, endIdx, len(entries))))
	}

	help := "[↑/↓/j/k] Navigate  [Enter] Expand  [r] Ask again  [Esc/q] Close"
	b.WriteString("\n")
	b.WriteString(p.styles.Help.Render(truncateToWidth(help, lineWidth)))
	return b.String()
}
