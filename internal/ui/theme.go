package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines colors for the login view and CLI summaries.
type Theme struct {
	Name string

	Surface string
	Border  string

	Text    string
	Muted   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// StatusColors maps session status names to badge colors.
	StatusColors map[string]string
}

// Styles contains pre-built Lipgloss styles for a theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style

	Title  lipgloss.Style
	Code   lipgloss.Style
	Box    lipgloss.Style
	Footer lipgloss.Style
	Label  lipgloss.Style

	statusColors map[string]string
	surface      string
	muted        string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Text: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Text)),
		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),
		AccentText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)),
		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)).
			Bold(true),
		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)),
		DangerText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)).
			Bold(true),

		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)).
			Bold(true),
		Code: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Accent)),
		Box: lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)),
		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)).
			MarginTop(1),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)).
			Width(12),

		statusColors: t.StatusColors,
		surface:      t.Surface,
		muted:        t.Muted,
	}
}

// StatusStyle returns a badge style for the given status name.
func (s Styles) StatusStyle(status string) lipgloss.Style {
	color := s.statusColors[strings.ToLower(strings.TrimSpace(status))]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.surface)).
		Background(lipgloss.Color(color)).
		Padding(0, 1)
}

var themes = map[string]Theme{
	"Nightfox": nightfoxTheme(),
	"Kanagawa": kanagawaTheme(),
}

var themeOrder = []string{"Nightfox", "Kanagawa"}

// GetTheme returns a theme by name, falling back to Nightfox.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return nightfoxTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func nightfoxTheme() Theme {
	// https://github.com/EdenEast/nightfox.nvim
	return Theme{
		Name:    "Nightfox",
		Surface: "#192330",
		Border:  "#39506d",
		Text:    "#cdcecf",
		Muted:   "#738091",
		Accent:  "#719cd6",
		Success: "#81b29a",
		Warning: "#dbc074",
		Danger:  "#c94f6d",
		Info:    "#63cdcf",
		StatusColors: map[string]string{
			"pending":   "#738091",
			"polling":   "#63cdcf",
			"succeeded": "#81b29a",
			"expired":   "#dbc074",
			"cancelled": "#71839b",
			"failed":    "#c94f6d",
		},
	}
}

func kanagawaTheme() Theme {
	// https://github.com/rebelot/kanagawa.nvim
	return Theme{
		Name:    "Kanagawa",
		Surface: "#1F1F28",
		Border:  "#54546D",
		Text:    "#DCD7BA",
		Muted:   "#C8C093",
		Accent:  "#7E9CD8",
		Success: "#98BB6C",
		Warning: "#E6C384",
		Danger:  "#E46876",
		Info:    "#7FB4CA",
		StatusColors: map[string]string{
			"pending":   "#727169",
			"polling":   "#7FB4CA",
			"succeeded": "#98BB6C",
			"expired":   "#E6C384",
			"cancelled": "#727169",
			"failed":    "#E46876",
		},
	}
}
