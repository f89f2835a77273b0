package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds all the styles for the application
type Styles struct {
	Theme Theme

	// Header printed before the program starts
	Header lipgloss.Style
	Server lipgloss.Style
	Tools  lipgloss.Style

	// Messages printed above the live region
	Question lipgloss.Style
	Command  lipgloss.Style
	Error    lipgloss.Style
	Metadata lipgloss.Style

	// Live region
	Status  lipgloss.Style
	Alert   lipgloss.Style
	Spinner lipgloss.Style
	Input   lipgloss.Style

	// Slash command suggestions
	SuggestName     lipgloss.Style
	SuggestDesc     lipgloss.Style
	SuggestSelected lipgloss.Style

	// Panels
	Title    lipgloss.Style
	Selected lipgloss.Style
	Normal   lipgloss.Style
	Help     lipgloss.Style
	Warning  lipgloss.Style
	Checked  lipgloss.Style
}

// NewStyles creates a new styles instance with the given theme
func NewStyles(theme Theme) *Styles {
	s := &Styles{
		Theme: theme,
	}

	s.Header = lipgloss.NewStyle().
		Foreground(theme.Text).
		Bold(true)

	s.Server = lipgloss.NewStyle().
		Foreground(theme.Accent)

	s.Tools = lipgloss.NewStyle().
		Foreground(theme.Success)

	s.Question = lipgloss.NewStyle().
		Foreground(theme.Text)

	s.Command = lipgloss.NewStyle().
		Foreground(theme.Muted)

	s.Error = lipgloss.NewStyle().
		Foreground(theme.Error)

	s.Metadata = lipgloss.NewStyle().
		Foreground(theme.Muted).
		Italic(true)

	s.Status = lipgloss.NewStyle().
		Foreground(theme.Muted)

	s.Alert = lipgloss.NewStyle().
		Foreground(theme.Warning).
		Bold(true)

	s.Spinner = lipgloss.NewStyle().
		Foreground(theme.Accent)

	s.Input = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)

	s.SuggestName = lipgloss.NewStyle().
		Foreground(theme.Accent)

	s.SuggestDesc = lipgloss.NewStyle().
		Foreground(theme.Muted)

	s.SuggestSelected = lipgloss.NewStyle().
		Foreground(theme.OnAccent).
		Background(theme.Highlight)

	s.Title = lipgloss.NewStyle().
		Background(theme.Highlight).
		Foreground(theme.OnAccent).
		Padding(0, 1)

	s.Selected = lipgloss.NewStyle().
		Foreground(theme.Accent).
		Bold(true)

	s.Normal = lipgloss.NewStyle().
		Foreground(theme.Muted)

	s.Help = lipgloss.NewStyle().
		Foreground(theme.Faint)

	s.Warning = lipgloss.NewStyle().
		Foreground(theme.Warning)

	s.Checked = lipgloss.NewStyle().
		Foreground(theme.Success)

	return s
}

// RenderCheckbox returns a styled selection marker
func (s *Styles) RenderCheckbox(selected bool) string {
	if selected {
		return s.Checked.Render("[x]")
	}
	return s.Normal.Render("[ ]")
}
