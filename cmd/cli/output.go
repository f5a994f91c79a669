package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fleveque/ecosort/internal/model"
	"github.com/fleveque/ecosort/internal/service"
	"github.com/fleveque/ecosort/internal/session"
)

// outcome is one file's line in the classify output.
type outcome struct {
	File   string                      `json:"file"`
	Result *model.ClassificationResult `json:"result,omitempty"`
	Error  string                      `json:"error,omitempty"`
}

type statsReport struct {
	*service.Stats
	Recent []model.ClassificationRecord `json:"recent,omitempty"`
}

var (
	fileStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#737373"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
)

func categoryStyle(c model.WasteCategory) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(model.CategoryStyles[c].Color))
}

func renderOutcome(o outcome, lang string) string {
	var sb strings.Builder
	sb.WriteString(fileStyle.Render(o.File) + "\n")

	if o.Result == nil {
		sb.WriteString("  " + errorStyle.Render("⚠ "+o.Error))
		return sb.String()
	}

	r := o.Result
	icon := model.CategoryStyles[r.Category].Icon
	fmt.Fprintf(&sb, "  %s %s  %s\n", icon, categoryStyle(r.Category).Render(r.Category.Label(lang)),
		mutedStyle.Render(fmt.Sprintf("%d%% %s", r.DisplayConfidence(), session.Text(lang, session.MsgConfidence))))
	fmt.Fprintf(&sb, "  %s\n", r.ItemName)
	fmt.Fprintf(&sb, "  %s %s\n", mutedStyle.Render(session.Text(lang, session.MsgWhy)), r.Explanation)
	fmt.Fprintf(&sb, "  %s %s", mutedStyle.Render(session.Text(lang, session.MsgHowToDispose)+":"), r.DisposalInstruction)
	return sb.String()
}

func renderStats(r statsReport, lang string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s/%s\n", fileStyle.Render("Provider:"), r.Provider, r.Model)
	fmt.Fprintf(&sb, "%s %d (%d failed)\n", fileStyle.Render("Calls:"), r.Total, r.Failures)
	fmt.Fprintf(&sb, "%s %.0f ms\n", fileStyle.Render("Average latency:"), r.AvgDurationMs)

	for _, c := range r.ByCategory {
		cat := model.WasteCategory(c.Category)
		fmt.Fprintf(&sb, "  %-16s %d\n", categoryStyle(cat).Render(cat.Label(lang)), c.Count)
	}

	if len(r.Recent) > 0 {
		sb.WriteString("\n" + fileStyle.Render("Recent:") + "\n")
		for _, rec := range r.Recent {
			sb.WriteString("  " + recordLine(rec, lang) + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func recordLine(rec model.ClassificationRecord, lang string) string {
	when := mutedStyle.Render(rec.CreatedAt.Local().Format("2006-01-02 15:04"))
	if !rec.Success {
		kind := "error"
		if rec.ErrorKind != nil {
			kind = *rec.ErrorKind
		}
		return fmt.Sprintf("%s  #%d  %s", when, rec.ID, errorStyle.Render(kind))
	}

	var item, label string
	if rec.ItemName != nil {
		item = *rec.ItemName
	}
	if rec.Category != nil {
		cat := model.WasteCategory(*rec.Category)
		label = categoryStyle(cat).Render(cat.Label(lang))
	}
	return fmt.Sprintf("%s  #%d  %s  %s  %dms", when, rec.ID, label, item, rec.DurationMs)
}
