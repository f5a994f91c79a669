package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fleveque/ecosort/internal/session"
)

// Run drives s from the terminal until the user quits.
func Run(s *session.Session, maxBytes int64) error {
	p := tea.NewProgram(New(s, maxBytes), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}
