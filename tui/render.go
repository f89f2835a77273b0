package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/nachoal/kaizen-chat/api"
	"github.com/nachoal/kaizen-chat/stream"
	"github.com/nachoal/kaizen-chat/tui/styles"
)

const answerWrapWidth = 74

func newRenderer() *glamour.TermRenderer {
	// Non-colored markdown keeps answers visible across terminal themes.
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(answerWrapWidth),
	)
	return renderer
}

func renderUserMessage(st *styles.Styles, content string) string {
	return fmt.Sprintf("👤 You: %s", st.Question.Render(content))
}

// renderAnswer renders markdown with glamour, falling back to the raw text
func renderAnswer(renderer *glamour.TermRenderer, content string) string {
	if renderer != nil {
		rendered, err := renderer.Render(content)
		if err == nil {
			return strings.Trim(rendered, "\n")
		}
	}
	return content
}

func renderCommandMessage(st *styles.Styles, content string) string {
	return st.Command.Render(content)
}

func renderErrorMessage(st *styles.Styles, content string) string {
	return st.Error.Render(fmt.Sprintf("❌ %s", content))
}

// formatMetadata joins the reported fields, e.g. "time 2s · total 30 · speed 15 t/s".
// It returns "" when nothing was reported.
func formatMetadata(md *stream.Metadata, condensed bool) string {
	if md == nil || md.IsZero() {
		return ""
	}
	fields := md.Fields(condensed)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Label+" "+f.Value)
	}
	return strings.Join(parts, " · ")
}

func renderExchange(st *styles.Styles, renderer *glamour.TermRenderer, question, answer string, md *stream.Metadata) string {
	var b strings.Builder
	b.WriteString(renderUserMessage(st, question))
	b.WriteString("\n\n")
	b.WriteString(renderAnswer(renderer, answer))
	if line := formatMetadata(md, false); line != "" {
		b.WriteString("\n\n")
		b.WriteString(st.Metadata.Render(wordwrap.String(line, answerWrapWidth)))
	}
	return b.String()
}

// wrapToWidth word wraps s and hard wraps words longer than width
func wrapToWidth(s string, width int) string {
	if width < 1 {
		width = 1
	}
	return wrap.String(wordwrap.String(s, width), width)
}

// tailLines keeps the last n lines of s
func tailLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if n <= 0 || len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// truncateToWidth cuts s to max terminal cells, marking the cut with an ellipsis
func truncateToWidth(s string, max int) string {
	if max <= 0 {
		return ""
	}
	return runewidth.Truncate(s, max, "…")
}

func printAboveBlock(content string) tea.Cmd {
	return tea.Printf("%s\n\n", content)
}

// PrintHeader prints the TUI header to stdout before the TUI starts
func PrintHeader(st *styles.Styles, variant api.Variant, baseURL string) {
	header := fmt.Sprintf("%s | Server: %s",
		st.Header.Render(assistantTitle(variant)),
		st.Server.Render(baseURL))

	commands := fmt.Sprintf("%s | %s",
		st.Tools.Render("Ctrl+T tools, Ctrl+R history"),
		st.Command.Render("Commands: /help, /tools, /history, /greeting, /status, /clear, /exit"))

	fmt.Println(header)
	fmt.Println(commands)
	fmt.Println()
}

func assistantTitle(variant api.Variant) string {
	name := string(variant)
	if name == "" {
		name = string(api.Butler)
	}
	return "Kaizen " + strings.ToUpper(name[:1]) + name[1:]
}
