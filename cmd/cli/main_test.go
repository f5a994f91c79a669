package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fleveque/ecosort/internal/model"
	"github.com/fleveque/ecosort/internal/service"
	"github.com/fleveque/ecosort/internal/session"
)

func TestRenderOutcome(t *testing.T) {
	ok := outcome{File: "banana.jpg", Result: &model.ClassificationResult{
		ItemName:            "Banana peel",
		Category:            model.CategoryOrganic,
		Explanation:         "Fruit waste is biodegradable",
		DisposalInstruction: "Compost bin",
		Confidence:          87.6,
	}}
	text := renderOutcome(ok, "en")
	for _, want := range []string{"banana.jpg", "Organic", "88% confidence", "Banana peel", "Compost bin"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}

	failed := outcome{File: "blank.jpg", Error: session.Text("en", session.MsgAnalysisFailed)}
	if text := renderOutcome(failed, "en"); !strings.Contains(text, failed.Error) {
		t.Errorf("expected error line, got:\n%s", text)
	}
}

func TestRenderStats(t *testing.T) {
	item, cat, kind := "Plastic bottle", "Recyclable", "network"
	report := statsReport{
		Stats: &service.Stats{
			Provider:   "gemini",
			Model:      "gemini-2.5-flash",
			Total:      3,
			Failures:   1,
			ByCategory: []model.CategoryCount{{Category: cat, Count: 2}},
		},
		Recent: []model.ClassificationRecord{
			{ID: 2, Success: true, ItemName: &item, Category: &cat, DurationMs: 900, CreatedAt: time.Now()},
			{ID: 1, Success: false, ErrorKind: &kind, CreatedAt: time.Now()},
		},
	}

	text := renderStats(report, "en")
	for _, want := range []string{"gemini/gemini-2.5-flash", "3 (1 failed)", "Recyclable", "Plastic bottle", "network"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if got := out.String(); got != "ecosort dev\n" {
		t.Errorf("unexpected version output %q", got)
	}
}

func TestClassifyRequiresFiles(t *testing.T) {
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"classify"})

	if err := root.Execute(); err == nil {
		t.Error("expected an error without files")
	}
}
