package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fleveque/ecosort/internal/model"
)

var (
	primary = lipgloss.Color("#16a34a")
	muted   = lipgloss.Color("#737373")
	danger  = lipgloss.Color("#ef4444")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#fafafa")).
			Background(primary).
			Padding(0, 1).
			MarginBottom(1)

	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	errorStyle   = lipgloss.NewStyle().Foreground(danger).Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)

	resultBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2).
			Width(60)
)

// badge renders the category pill in the category's own colour.
func badge(c model.WasteCategory, lang string) string {
	style := model.CategoryStyles[c]
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ffffff")).
		Background(lipgloss.Color(style.Color)).
		Padding(0, 1).
		Render(style.Icon + " " + c.Label(lang))
}

func boxFor(c model.WasteCategory) lipgloss.Style {
	return resultBox.BorderForeground(lipgloss.Color(model.CategoryStyles[c].Color))
}
