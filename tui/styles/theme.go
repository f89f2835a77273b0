package styles

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme represents a color theme
type Theme struct {
	Name      string
	Accent    lipgloss.AdaptiveColor
	Text      lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Faint     lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Selected  lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	OnAccent  lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor
	Warning   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
}

// Default theme uses the 256-color palette so it reads on light and dark terminals
var DefaultTheme = Theme{
	Name:      "default",
	Accent:    lipgloss.AdaptiveColor{Light: "25", Dark: "75"},
	Text:      lipgloss.AdaptiveColor{Light: "0", Dark: "15"},
	Muted:     lipgloss.AdaptiveColor{Light: "243", Dark: "245"},
	Faint:     lipgloss.AdaptiveColor{Light: "248", Dark: "240"},
	Border:    lipgloss.AdaptiveColor{Light: "0", Dark: "15"},
	Selected:  lipgloss.AdaptiveColor{Light: "162", Dark: "170"},
	Highlight: lipgloss.AdaptiveColor{Light: "62", Dark: "62"},
	OnAccent:  lipgloss.AdaptiveColor{Light: "230", Dark: "230"},
	Success:   lipgloss.AdaptiveColor{Light: "28", Dark: "80"},
	Warning:   lipgloss.AdaptiveColor{Light: "166", Dark: "214"},
	Error:     lipgloss.AdaptiveColor{Light: "160", Dark: "196"},
}

// Dracula theme
var DraculaTheme = Theme{
	Name:      "dracula",
	Accent:    lipgloss.AdaptiveColor{Light: "#BD93F9", Dark: "#BD93F9"},
	Text:      lipgloss.AdaptiveColor{Light: "#282A36", Dark: "#F8F8F2"},
	Muted:     lipgloss.AdaptiveColor{Light: "#6272A4", Dark: "#6272A4"},
	Faint:     lipgloss.AdaptiveColor{Light: "#44475A", Dark: "#44475A"},
	Border:    lipgloss.AdaptiveColor{Light: "#6272A4", Dark: "#6272A4"},
	Selected:  lipgloss.AdaptiveColor{Light: "#FF79C6", Dark: "#FF79C6"},
	Highlight: lipgloss.AdaptiveColor{Light: "#44475A", Dark: "#44475A"},
	OnAccent:  lipgloss.AdaptiveColor{Light: "#F8F8F2", Dark: "#F8F8F2"},
	Success:   lipgloss.AdaptiveColor{Light: "#50FA7B", Dark: "#50FA7B"},
	Warning:   lipgloss.AdaptiveColor{Light: "#FFB86C", Dark: "#F1FA8C"},
	Error:     lipgloss.AdaptiveColor{Light: "#FF5555", Dark: "#FF5555"},
}

// Nord theme
var NordTheme = Theme{
	Name:      "nord",
	Accent:    lipgloss.AdaptiveColor{Light: "#5E81AC", Dark: "#88C0D0"},
	Text:      lipgloss.AdaptiveColor{Light: "#2E3440", Dark: "#ECEFF4"},
	Muted:     lipgloss.AdaptiveColor{Light: "#4C566A", Dark: "#D8DEE9"},
	Faint:     lipgloss.AdaptiveColor{Light: "#4C566A", Dark: "#4C566A"},
	Border:    lipgloss.AdaptiveColor{Light: "#4C566A", Dark: "#81A1C1"},
	Selected:  lipgloss.AdaptiveColor{Light: "#B48EAD", Dark: "#B48EAD"},
	Highlight: lipgloss.AdaptiveColor{Light: "#5E81AC", Dark: "#5E81AC"},
	OnAccent:  lipgloss.AdaptiveColor{Light: "#ECEFF4", Dark: "#ECEFF4"},
	Success:   lipgloss.AdaptiveColor{Light: "#A3BE8C", Dark: "#A3BE8C"},
	Warning:   lipgloss.AdaptiveColor{Light: "#D08770", Dark: "#EBCB8B"},
	Error:     lipgloss.AdaptiveColor{Light: "#BF616A", Dark: "#BF616A"},
}

var themes = map[string]Theme{
	DefaultTheme.Name: DefaultTheme,
	DraculaTheme.Name: DraculaTheme,
	NordTheme.Name:    NordTheme,
}

// GetTheme returns a theme by name, falling back to the default theme
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return DefaultTheme
}

// ThemeNames lists the known themes in sorted order
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
