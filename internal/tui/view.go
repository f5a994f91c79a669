package tui

import (
	"fmt"
	"strings"

	"github.com/fleveque/ecosort/internal/session"
)

// View renders the screen for the current session state.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	lang := m.sess.Language()
	var b strings.Builder

	b.WriteString(titleStyle.Render("♻️  EcoSort"))
	b.WriteString("\n")

	switch m.view.State {
	case session.StateIdle:
		b.WriteString(session.Text(lang, session.MsgPrompt))
		b.WriteString("\n")
		if m.picking {
			b.WriteString("\n" + session.Text(lang, session.MsgUploadPhoto) + ":\n")
			b.WriteString(m.input.View())
			b.WriteString("\n")
		}

	case session.StateCapturing:
		b.WriteString(fmt.Sprintf("📷 %s (%s)\n", session.Text(lang, session.MsgTakePhoto), m.view.Camera))

	case session.StateLoading:
		b.WriteString(m.spinner.View() + " " + session.Text(lang, session.MsgAnalyzing) + "\n")

	case session.StateResult:
		b.WriteString(m.renderResult(lang))

	case session.StateError:
		msg := session.Text(lang, session.MsgAnalysisFailed)
		if m.view.Error != nil {
			msg = m.view.Error.Message
		}
		b.WriteString(errorStyle.Render(msg) + "\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + errorStyle.Render(m.notice) + "\n")
	}

	b.WriteString("\n")
	if m.picking {
		b.WriteString(mutedStyle.Render("enter: ok • esc: cancel"))
	} else {
		b.WriteString(m.help.ShortHelpView(m.shortHelp()))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderResult(lang string) string {
	r := m.view.Result
	if r == nil {
		return ""
	}

	var body strings.Builder
	body.WriteString(badge(r.Category, lang))
	body.WriteString("  ")
	body.WriteString(mutedStyle.Render(fmt.Sprintf("%d%% %s", r.DisplayConfidence(), session.Text(lang, session.MsgConfidence))))
	body.WriteString("\n\n")
	body.WriteString(headingStyle.Render(r.ItemName))
	body.WriteString("\n")
	body.WriteString(headingStyle.Render(session.Text(lang, session.MsgWhy)))
	body.WriteString("\n" + r.Explanation + "\n")
	body.WriteString(headingStyle.Render(session.Text(lang, session.MsgHowToDispose)))
	body.WriteString("\n" + r.DisposalInstruction)

	return boxFor(r.Category).Render(body.String()) + "\n"
}
