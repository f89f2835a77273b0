package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nachoal/kaizen-chat/tools"
	"github.com/nachoal/kaizen-chat/tui/styles"
)

// ToolItem represents a tool in the menu
type ToolItem struct {
	Tool     tools.Descriptor
	Selected bool
}

func (i ToolItem) Title() string {
	box := "[ ]"
	if i.Selected {
		box = "[x]"
	}
	return box + " " + i.Tool.DisplayName
}
func (i ToolItem) Description() string { return i.Tool.Description }
func (i ToolItem) FilterValue() string { return i.Tool.DisplayName }

// ToolMenu lets the user choose which server tools a question may use
type ToolMenu struct {
	list      list.Model
	selection *tools.Selection
	styles    *styles.Styles
	width     int
	height    int
}

// NewToolMenu creates a tool menu over the shared selection
func NewToolMenu(selection *tools.Selection, st *styles.Styles) *ToolMenu {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(st.Theme.Selected).
		BorderLeftForeground(st.Theme.Selected)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(st.Theme.Selected).
		BorderLeftForeground(st.Theme.Selected)

	l := list.New([]list.Item{}, delegate, 80, 20)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = st.Title

	m := &ToolMenu{
		list:      l,
		selection: selection,
		styles:    st,
		width:     80,
		height:    20,
	}
	m.refresh()
	return m
}

func (m *ToolMenu) Update(msg tea.Msg) (*ToolMenu, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case " ":
			if item, ok := m.list.SelectedItem().(ToolItem); ok {
				m.selection.Toggle(item.Tool.ID)
				m.refresh()
			}
			return m, nil
		case "a":
			m.selection.SelectAll()
			m.refresh()
			return m, nil
		case "n":
			m.selection.ClearAll()
			m.refresh()
			return m, nil
		case "enter", "esc", "q":
			return m, func() tea.Msg { return toolMenuClosedMsg{} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *ToolMenu) View() string {
	var b strings.Builder
	if len(m.selection.Available()) == 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Normal.Render("No tools available from the server."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.list.View())
		b.WriteString("\n")
	}

	if m.selection.Empty() {
		b.WriteString(m.styles.Warning.Render(truncateToWidth("No tools selected. Select at least one tool to ask a question.", m.width-1)))
		b.WriteString("\n")
	}

	help := "[space] Toggle  [a] All  [n] None  [Enter/Esc] Done"
	b.WriteString(m.styles.Help.Render(truncateToWidth(help, m.width-1)))
	return b.String()
}

// SetSize resizes the menu, leaving room for the warning and help lines
func (m *ToolMenu) SetSize(width, height int) {
	m.width = width
	m.height = height
	listHeight := height - 3
	if listHeight < 3 {
		listHeight = 3
	}
	m.list.SetSize(width, listHeight)
}

// refresh rebuilds the items from the selection, keeping the cursor
func (m *ToolMenu) refresh() {
	available := m.selection.Available()
	items := make([]list.Item, 0, len(available))
	for _, t := range available {
		items = append(items, ToolItem{Tool: t, Selected: m.selection.IsSelected(t.ID)})
	}

	idx := m.list.Index()
	m.list.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
	m.list.Title = fmt.Sprintf("Tools (%d/%d selected)", len(m.selection.Selected()), len(available))
}
