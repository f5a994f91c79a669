package model

import (
	"strings"
	"testing"
)

func TestValidCategory(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Recyclable", true},
		{"Organic", true},
		{"Hazardous", true},
		{"Residual", true},
		{"Unknown", true},
		{"recyclable", false},
		{"Tái chế", false},
		{"Plastic", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ValidCategory(tt.in); got != tt.want {
				t.Errorf("ValidCategory(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCategoryStyles_CoverAllCategories(t *testing.T) {
	if len(AllCategories) != 5 {
		t.Fatalf("expected 5 categories, got %d", len(AllCategories))
	}
	for _, c := range AllCategories {
		style, ok := CategoryStyles[c]
		if !ok {
			t.Errorf("missing style for %s", c)
			continue
		}
		if style.Icon == "" || style.Label["vi"] == "" || style.Label["en"] == "" {
			t.Errorf("incomplete style for %s: %+v", c, style)
		}
	}
}

func TestLabel_Fallback(t *testing.T) {
	if got := CategoryOrganic.Label("vi"); got != "Hữu cơ" {
		t.Errorf("expected Vietnamese label, got %q", got)
	}
	if got := CategoryOrganic.Label("de"); got != "Organic" {
		t.Errorf("expected English fallback, got %q", got)
	}
	if got := WasteCategory("Other").Label("en"); got != "Other" {
		t.Errorf("expected wire value fallback, got %q", got)
	}
}

func TestDisplayConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{100, 100},
		{49.5, 50},
		{87.4, 87},
		{99.99, 100},
	}
	for _, tt := range tests {
		r := ClassificationResult{Confidence: tt.in}
		if got := r.DisplayConfidence(); got != tt.want {
			t.Errorf("DisplayConfidence(%v) = %d, want %d", tt.in, got, tt.want)
		}
		// Rounding is presentation-only; the stored value is untouched.
		if r.Confidence != tt.in {
			t.Errorf("confidence mutated: %v", r.Confidence)
		}
	}
}

func TestImage_DataURL(t *testing.T) {
	img := Image{Data: []byte{0xFF, 0xD8, 0xFF}, MIMEType: "image/jpeg"}
	url := img.DataURL()
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("unexpected prefix: %s", url)
	}
	if !strings.HasSuffix(url, "/9j/") {
		t.Errorf("unexpected payload: %s", url)
	}
}
