package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nachoal/kaizen-chat/api"
	"github.com/nachoal/kaizen-chat/chat"
	"github.com/nachoal/kaizen-chat/history"
	"github.com/nachoal/kaizen-chat/stream"
	"github.com/nachoal/kaizen-chat/tui/styles"
)

// ChatTUI is an inline chat front end: finished exchanges are printed to the
// terminal scrollback while the live region holds the streaming answer and
// the input box.
type ChatTUI struct {
	controller *chat.Controller
	client     api.Client
	variant    api.Variant
	baseURL    string
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc

	textarea    textarea.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	styles      *styles.Styles
	keys        KeyMap
	borderStyle lipgloss.Style
	width       int
	height      int

	greeting string

	// Active submission
	events       <-chan chat.Event
	streaming    bool
	liveQuestion string
	liveAnswer   string
	liveMetadata *stream.Metadata

	// Output produced while a full screen panel is open
	pending []string

	showTools    bool
	toolMenu     *ToolMenu
	showHistory  bool
	historyPanel *HistoryPanel

	// Slash command autocomplete
	commands       []commandEntry
	suggestVisible bool
	suggestItems   []commandEntry
	suggestIndex   int
}

type commandEntry struct {
	name string
	desc string
}

// Options configures the chat view
type Options struct {
	Variant api.Variant
	BaseURL string
	Theme   string
	Logger  *zap.Logger
}

// NewChatTUI creates the chat view around a controller
func NewChatTUI(controller *chat.Controller, client api.Client, opts Options) *ChatTUI {
	ta := textarea.New()
	ta.Placeholder = "Ask a question..."
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.SetHeight(1)
	ta.Focus()

	transparentStyle := lipgloss.NewStyle().
		UnsetBackground().
		UnsetBorderBackground().
		UnsetBorderStyle()

	ta.FocusedStyle.Base = transparentStyle
	ta.FocusedStyle.Text = transparentStyle
	ta.FocusedStyle.Placeholder = transparentStyle
	ta.FocusedStyle.Prompt = transparentStyle
	ta.FocusedStyle.CursorLine = transparentStyle

	ta.BlurredStyle.Base = transparentStyle
	ta.BlurredStyle.Text = transparentStyle
	ta.BlurredStyle.Placeholder = transparentStyle
	ta.BlurredStyle.Prompt = transparentStyle
	ta.BlurredStyle.CursorLine = transparentStyle

	// Enter submits the question
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.SetWidth(answerWrapWidth)

	st := styles.NewStyles(styles.GetTheme(opts.Theme))

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = st.Spinner

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	variant := opts.Variant
	if variant == "" {
		variant = api.Butler
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ChatTUI{
		controller:  controller,
		client:      client,
		variant:     variant,
		baseURL:     opts.BaseURL,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		textarea:    ta,
		spinner:     s,
		renderer:    newRenderer(),
		styles:      st,
		keys:        DefaultKeyMap(),
		borderStyle: st.Input,
		width:       80,
		commands: []commandEntry{
			{name: "/help", desc: "Show this help"},
			{name: "/tools", desc: "Choose the tools a question may use"},
			{name: "/history", desc: "Browse recent questions"},
			{name: "/greeting", desc: "Show the assistant greeting"},
			{name: "/status", desc: "Show server, tools and history"},
			{name: "/clear", desc: "Clear the screen"},
			{name: "/exit", desc: "Quit"},
		},
	}
}

// Styles exposes the resolved theme for the header printed before start
func (m *ChatTUI) Styles() *styles.Styles {
	return m.styles
}

func (m ChatTUI) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.fetchGreeting(),
		m.fetchTools(),
	)
}

func (m ChatTUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if m.streaming {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if k, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(k, m.keys.Quit) {
			m.cancel()
			return m, tea.Quit
		}
		// Open panels own the keyboard
		if m.showTools && m.toolMenu != nil {
			m.toolMenu, cmd = m.toolMenu.Update(k)
			return m, tea.Batch(append(cmds, cmd)...)
		}
		if m.showHistory && m.historyPanel != nil {
			m.historyPanel, cmd = m.historyPanel.Update(k)
			return m, tea.Batch(append(cmds, cmd)...)
		}
	}

	switch msg := msg.(type) {
	case clearAlertMsg:
		m.controller.Alerts().Expire(msg.id)
		return m, tea.Batch(cmds...)

	case greetingMsg:
		if msg.err != nil {
			m.logger.Warn("greeting unavailable", zap.Error(msg.err))
			return m, tea.Batch(cmds...)
		}
		m.greeting = strings.TrimSpace(msg.text)
		if m.greeting == "" {
			return m, tea.Batch(cmds...)
		}
		cmds = append(cmds, printAboveBlock(renderAnswer(m.renderer, m.greeting)))
		return m, tea.Batch(cmds...)

	case toolsLoadedMsg:
		if msg.err != nil {
			m.logger.Error("failed to load tools", zap.Error(msg.err))
			cmds = append(cmds, printAboveBlock(renderErrorMessage(m.styles, fmt.Sprintf("Failed to load tools: %v", msg.err))))
			return m, tea.Batch(cmds...)
		}
		m.controller.Selection().Load(msg.tools)
		m.logger.Info("tools loaded", zap.Int("count", len(msg.tools)))
		if m.toolMenu != nil {
			m.toolMenu.refresh()
		}
		return m, tea.Batch(cmds...)

	case chatEventMsg:
		return m.handleChatEvent(msg.event, cmds)

	case commandResultMsg:
		m.textarea.Focus()
		if msg.isQuit {
			m.cancel()
			return m, tea.Quit
		}
		if msg.isClear {
			return m, tea.Batch(append(cmds, tea.ClearScreen)...)
		}
		if msg.openTools {
			return m, tea.Batch(append(cmds, m.openToolMenu())...)
		}
		if msg.openHistory {
			return m, tea.Batch(append(cmds, m.openHistoryPanel())...)
		}
		if msg.refetch {
			cmds = append(cmds, m.fetchGreeting())
		}
		if msg.err != nil {
			cmds = append(cmds, printAboveBlock(renderErrorMessage(m.styles, msg.err.Error())))
		} else if msg.content != "" {
			cmds = append(cmds, printAboveBlock(renderCommandMessage(m.styles, msg.content)))
		}
		return m, tea.Batch(cmds...)

	case toolMenuClosedMsg:
		sel := m.controller.Selection()
		summary := fmt.Sprintf("Tools: %d of %d selected", len(sel.Selected()), len(sel.Available()))
		m.pending = append(m.pending, renderCommandMessage(m.styles, summary))
		return m, tea.Batch(append(cmds, m.closePanels())...)

	case historyClosedMsg:
		return m, tea.Batch(append(cmds, m.closePanels())...)

	case historyResubmitMsg:
		question, err := m.controller.Resubmit(msg.index)
		if err != nil {
			m.pending = append(m.pending, renderErrorMessage(m.styles, err.Error()))
		} else {
			m.textarea.SetValue(question)
		}
		cmd := m.closePanels()
		m.adjustTextareaHeight()
		return m, tea.Batch(append(cmds, cmd)...)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// border (2) + padding (2) + margin (2)
		textareaWidth := m.width - 6
		if textareaWidth < 1 {
			textareaWidth = 1
		}
		m.textarea.SetWidth(textareaWidth)
		m.borderStyle = m.borderStyle.Width(m.width - 2)
		m.adjustTextareaHeight()

		if m.toolMenu != nil {
			m.toolMenu.SetSize(msg.Width, msg.Height)
		}
		if m.historyPanel != nil {
			m.historyPanel.Update(msg)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Tools):
			return m, tea.Batch(append(cmds, m.openToolMenu())...)

		case key.Matches(msg, m.keys.History):
			return m, tea.Batch(append(cmds, m.openHistoryPanel())...)

		case key.Matches(msg, m.keys.Clear):
			return m, tea.Batch(append(cmds, tea.ClearScreen)...)

		case key.Matches(msg, m.keys.Dismiss):
			if m.suggestVisible {
				m.hideSuggestions()
				return m, tea.Batch(cmds...)
			}
			if _, ok := m.controller.Alerts().Current(); ok {
				m.controller.Alerts().Dismiss()
				return m, tea.Batch(cmds...)
			}
			if m.streaming {
				// Streams cannot be interrupted
				return m, tea.Batch(cmds...)
			}
			m.cancel()
			return m, tea.Quit
		}

		switch msg.Type {
		case tea.KeyUp:
			if m.suggestVisible && len(m.suggestItems) > 0 {
				if m.suggestIndex > 0 {
					m.suggestIndex--
				} else {
					m.suggestIndex = len(m.suggestItems) - 1
				}
				return m, tea.Batch(cmds...)
			}

		case tea.KeyDown:
			if m.suggestVisible && len(m.suggestItems) > 0 {
				m.suggestIndex = (m.suggestIndex + 1) % len(m.suggestItems)
				return m, tea.Batch(cmds...)
			}

		case tea.KeyTab:
			if m.suggestVisible && len(m.suggestItems) > 0 {
				selected := m.suggestItems[m.suggestIndex].name
				current := strings.TrimLeft(m.textarea.Value(), " ")
				if strings.HasPrefix(current, "/") {
					if i := strings.IndexAny(current, " \t\n"); i == -1 {
						m.textarea.SetValue(selected + " ")
					} else {
						m.textarea.SetValue(selected + current[i:])
					}
					m.hideSuggestions()
					m.adjustTextareaHeight()
					return m, tea.Batch(cmds...)
				}
			}

		case tea.KeyEnter:
			return m.submit(cmds)
		}
	}

	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.updateSuggestions()
	m.adjustTextareaHeight()

	return m, tea.Batch(cmds...)
}

// submit runs a slash command or hands the question to the controller
func (m ChatTUI) submit(cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	value := m.textarea.Value()
	trimmed := strings.TrimSpace(value)

	if strings.HasPrefix(trimmed, "/") {
		command := trimmed
		if m.suggestVisible && len(m.suggestItems) > 0 {
			command = m.suggestItems[m.suggestIndex].name
		}
		m.textarea.Reset()
		m.textarea.SetHeight(1)
		m.hideSuggestions()
		resp := m.handleCommand(command)
		cmds = append(cmds, func() tea.Msg { return resp })
		return m, tea.Batch(cmds...)
	}

	// Typing continues while an answer streams, submitting does not
	if m.streaming {
		return m, tea.Batch(cmds...)
	}

	events, err := m.controller.Submit(m.ctx, value)
	if err != nil {
		var verr *chat.ValidationError
		if errors.As(err, &verr) {
			cmds = append(cmds, m.scheduleAlertExpiry(verr.AlertID))
		}
		return m, tea.Batch(cmds...)
	}

	m.events = events
	m.streaming = true
	m.liveQuestion = value
	m.liveAnswer = ""
	m.liveMetadata = nil
	m.textarea.Reset()
	m.textarea.SetHeight(1)

	cmds = append(cmds, m.spinner.Tick, listenForChatEvents(events))
	return m, tea.Batch(cmds...)
}

func (m ChatTUI) handleChatEvent(ev chat.Event, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case chat.EventStreaming, chat.EventText:
		m.liveAnswer = ev.Answer

	case chat.EventMetadata:
		m.liveAnswer = ev.Answer
		m.liveMetadata = ev.Metadata

	case chat.EventComplete:
		question := m.liveQuestion
		m.resetLive()
		cmds = append(cmds, m.printBlock(renderExchange(m.styles, m.renderer, question, ev.Answer, ev.Metadata)))
		return m, tea.Batch(cmds...)

	case chat.EventError:
		m.resetLive()
		cmds = append(cmds, m.scheduleAlertExpiry(ev.AlertID))
		return m, tea.Batch(cmds...)
	}

	cmds = append(cmds, listenForChatEvents(m.events))
	return m, tea.Batch(cmds...)
}

func (m *ChatTUI) resetLive() {
	m.events = nil
	m.streaming = false
	m.liveQuestion = ""
	m.liveAnswer = ""
	m.liveMetadata = nil
}

func (m ChatTUI) View() string {
	if m.showTools && m.toolMenu != nil {
		return m.toolMenu.View()
	}
	if m.showHistory && m.historyPanel != nil {
		return m.historyPanel.View()
	}

	var b strings.Builder

	// Keep live lines strictly within terminal width; wrapped live lines
	// break Bubble Tea's redraw bookkeeping when resizing.
	boxWidth := m.width - 2
	if boxWidth < 1 {
		boxWidth = 1
	}
	lineWidth := boxWidth - 1

	if m.streaming {
		question := truncateToWidth(strings.Join(strings.Fields(m.liveQuestion), " "), lineWidth-7)
		b.WriteString(renderUserMessage(m.styles, question))
		b.WriteString("\n\n")

		if m.liveAnswer != "" {
			b.WriteString(tailLines(wrapToWidth(m.liveAnswer, lineWidth), m.liveAnswerLines()))
			b.WriteString("\n\n")
		}
		if md := formatMetadata(m.liveMetadata, true); md != "" {
			b.WriteString(m.styles.Metadata.Render(truncateToWidth(md, lineWidth)))
			b.WriteString("\n")
		}

		label := "Waiting for the server..."
		if m.controller.State() == chat.StateStreaming {
			label = "Streaming answer..."
		}
		b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), truncateToWidth(label, lineWidth-2)))
	} else {
		// Extra spacing for multi-line input keeps printed messages off the border
		extraLines := m.textarea.Height()
		if extraLines > 1 {
			for i := 0; i < extraLines; i++ {
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Status.Render(truncateToWidth(m.statusLine(), lineWidth)))
	b.WriteString("\n")

	if alert, ok := m.controller.Alerts().Current(); ok {
		b.WriteString(m.styles.Alert.Render(truncateToWidth("⚠ "+alert.Message, lineWidth)))
		b.WriteString("\n")
	}

	promptedInput := "> " + m.textarea.View()
	b.WriteString(m.borderStyle.
		PaddingLeft(1).
		PaddingRight(1).
		Render(promptedInput))
	b.WriteString("\n")

	if m.suggestVisible && len(m.suggestItems) > 0 {
		max := len(m.suggestItems)
		if max > 8 {
			max = 8
		}
		for i := 0; i < max; i++ {
			item := m.suggestItems[i]
			desc := truncateToWidth(item.desc, lineWidth-len(item.name)-3)
			line := fmt.Sprintf(" %s  %s", m.styles.SuggestName.Render(item.name), m.styles.SuggestDesc.Render(desc))
			if i == m.suggestIndex {
				line = m.styles.SuggestSelected.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		if len(m.suggestItems) > max {
			b.WriteString(m.styles.SuggestDesc.Render(" … more"))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m ChatTUI) statusLine() string {
	sel := m.controller.Selection()
	parts := []string{
		assistantTitle(m.variant),
		fmt.Sprintf("Tools: %d/%d", len(sel.Selected()), len(sel.Available())),
		fmt.Sprintf("History: %d", m.controller.History().Len()),
	}
	for _, binding := range m.keys.ShortHelp() {
		h := binding.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " | ")
}

// liveAnswerLines bounds the streamed answer so the live region fits the terminal
func (m ChatTUI) liveAnswerLines() int {
	if m.height <= 0 {
		return 12
	}
	n := m.height - 10 - m.textarea.Height()
	if n < 3 {
		n = 3
	}
	return n
}

func (m *ChatTUI) openToolMenu() tea.Cmd {
	m.hideSuggestions()
	m.toolMenu = NewToolMenu(m.controller.Selection(), m.styles)
	m.toolMenu.SetSize(m.width, m.menuHeight())
	m.showTools = true
	m.textarea.Blur()
	return tea.EnterAltScreen
}

func (m *ChatTUI) openHistoryPanel() tea.Cmd {
	m.hideSuggestions()
	m.historyPanel = NewHistoryPanel(m.controller.History(), m.styles, m.renderer)
	m.historyPanel.Update(tea.WindowSizeMsg{Width: m.width, Height: m.menuHeight()})
	m.showHistory = true
	m.textarea.Blur()
	return tea.EnterAltScreen
}

// closePanels leaves the alternate screen, then prints whatever was held back
// while a panel covered the scrollback.
func (m *ChatTUI) closePanels() tea.Cmd {
	m.showTools = false
	m.toolMenu = nil
	m.showHistory = false
	m.historyPanel = nil
	m.textarea.Focus()

	seq := []tea.Cmd{tea.ExitAltScreen}
	for _, content := range m.pending {
		seq = append(seq, printAboveBlock(content))
	}
	m.pending = nil
	return tea.Sequence(seq...)
}

// printBlock prints above the live region, or holds the block until the
// open panel closes since the alternate screen discards printed lines.
func (m *ChatTUI) printBlock(content string) tea.Cmd {
	if m.showTools || m.showHistory {
		m.pending = append(m.pending, content)
		return nil
	}
	return printAboveBlock(content)
}

func (m ChatTUI) menuHeight() int {
	if m.height <= 0 {
		return 24
	}
	return m.height
}

// scheduleAlertExpiry hides the alert once its duration elapses unless a
// newer alert replaced it.
func (m ChatTUI) scheduleAlertExpiry(id int) tea.Cmd {
	if id == 0 {
		return nil
	}
	return tea.Tick(m.controller.Alerts().Duration(), func(time.Time) tea.Msg {
		return clearAlertMsg{id: id}
	})
}

func (m ChatTUI) fetchGreeting() tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		text, err := client.Greeting(ctx)
		return greetingMsg{text: text, err: err}
	}
}

func (m ChatTUI) fetchTools() tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		available, err := client.Tools(ctx)
		return toolsLoadedMsg{tools: available, err: err}
	}
}

// listenForChatEvents pumps one controller event into the update loop
func listenForChatEvents(events <-chan chat.Event) tea.Cmd {
	return func() tea.Msg {
		if events == nil {
			return nil
		}
		ev, ok := <-events
		if !ok {
			return nil
		}
		return chatEventMsg{event: ev}
	}
}

func (m *ChatTUI) handleCommand(command string) commandResultMsg {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return commandResultMsg{}
	}

	switch strings.ToLower(parts[0]) {
	case "/help":
		var b strings.Builder
		b.WriteString("Commands:\n")
		for _, c := range m.commands {
			b.WriteString(fmt.Sprintf("  %-10s %s\n", c.name, c.desc))
		}
		b.WriteString("\nKeys:\n")
		for _, k := range []key.Binding{m.keys.Send, m.keys.Tools, m.keys.History, m.keys.Clear, m.keys.Dismiss, m.keys.Quit} {
			h := k.Help()
			b.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
		}
		return commandResultMsg{content: strings.TrimRight(b.String(), "\n")}

	case "/tools":
		return commandResultMsg{openTools: true}

	case "/history":
		return commandResultMsg{openHistory: true}

	case "/greeting":
		if m.greeting == "" {
			return commandResultMsg{refetch: true}
		}
		return commandResultMsg{content: m.greeting}

	case "/status":
		sel := m.controller.Selection()
		lines := []string{
			fmt.Sprintf("Assistant: %s", assistantTitle(m.variant)),
			fmt.Sprintf("Server: %s", m.baseURL),
			fmt.Sprintf("State: %s", m.controller.State()),
			fmt.Sprintf("Tools: %d of %d selected", len(sel.Selected()), len(sel.Available())),
			fmt.Sprintf("History: %d of %d exchanges", m.controller.History().Len(), history.MaxEntries),
		}
		return commandResultMsg{content: strings.Join(lines, "\n")}

	case "/clear":
		return commandResultMsg{isClear: true}

	case "/exit", "/quit":
		return commandResultMsg{isQuit: true}

	default:
		return commandResultMsg{err: fmt.Errorf("unknown command: %s (try /help)", parts[0])}
	}
}

func (m *ChatTUI) adjustTextareaHeight() {
	content := m.textarea.Value()
	if content == "" {
		m.textarea.SetHeight(1)
		return
	}

	lines := 1
	currentLineLength := 0
	textareaWidth := m.width - 8 // borders, padding and prompt
	if textareaWidth < 1 {
		textareaWidth = 1
	}

	for _, char := range content {
		if char == '\n' {
			lines++
			currentLineLength = 0
		} else {
			currentLineLength++
			if currentLineLength >= textareaWidth {
				lines++
				currentLineLength = 0
			}
		}
	}

	maxHeight := 10
	if lines > maxHeight {
		lines = maxHeight
	}
	m.textarea.SetHeight(lines)
}

func (m *ChatTUI) updateSuggestions() {
	cur := strings.TrimSpace(m.textarea.Value())
	if !strings.HasPrefix(cur, "/") {
		m.hideSuggestions()
		return
	}
	// Only the first token is matched
	token := cur
	if i := strings.IndexAny(cur, " \t\n"); i != -1 {
		token = cur[:i]
	}
	lower := strings.ToLower(token)
	var list []commandEntry
	for _, c := range m.commands {
		if token == "/" || strings.HasPrefix(strings.ToLower(c.name), lower) {
			list = append(list, c)
		}
	}
	m.suggestItems = list
	m.suggestVisible = len(list) > 0
	if m.suggestIndex >= len(list) {
		m.suggestIndex = 0
	}
}

func (m *ChatTUI) hideSuggestions() {
	m.suggestVisible = false
	m.suggestItems = nil
	m.suggestIndex = 0
}
