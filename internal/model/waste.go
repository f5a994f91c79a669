// Package model defines the core data types for the waste classifier.
// In Go, we use structs instead of classes. Struct tags (the `json:"..."` and
// `db:"..."` annotations) tell serialization libraries how to map fields.
package model

import (
	"encoding/base64"
	"math"
	"time"
)

// WasteCategory is one of the five fixed disposal buckets.
// Go doesn't have enums, so we use typed string constants. The string values are
// sent to the AI service as the schema enum, so they must never change.
type WasteCategory string

const (
	CategoryRecyclable WasteCategory = "Recyclable"
	CategoryOrganic    WasteCategory = "Organic"
	CategoryHazardous  WasteCategory = "Hazardous"
	CategoryResidual   WasteCategory = "Residual"
	CategoryUnknown    WasteCategory = "Unknown"
)

// AllCategories is the ordered list of categories, in schema order.
var AllCategories = []WasteCategory{
	CategoryRecyclable,
	CategoryOrganic,
	CategoryHazardous,
	CategoryResidual,
	CategoryUnknown,
}

// ValidCategory checks if a string is one of the five wire values (case-sensitive).
func ValidCategory(s string) bool {
	for _, c := range AllCategories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// CategoryStyle is the presentation metadata shown next to a category.
type CategoryStyle struct {
	Icon  string
	Color string // hex foreground used by the terminal UI
	Label map[string]string
}

// CategoryStyles maps each category to its icon, colour and localized labels.
var CategoryStyles = map[WasteCategory]CategoryStyle{
	CategoryRecyclable: {Icon: "♻️", Color: "#1e40af", Label: map[string]string{"vi": "Tái chế", "en": "Recyclable"}},
	CategoryOrganic:    {Icon: "🍎", Color: "#166534", Label: map[string]string{"vi": "Hữu cơ", "en": "Organic"}},
	CategoryHazardous:  {Icon: "☣️", Color: "#991b1b", Label: map[string]string{"vi": "Nguy hại", "en": "Hazardous"}},
	CategoryResidual:   {Icon: "🗑️", Color: "#1f2937", Label: map[string]string{"vi": "Rác còn lại", "en": "Residual"}},
	CategoryUnknown:    {Icon: "❓", Color: "#854d0e", Label: map[string]string{"vi": "Không xác định", "en": "Unknown"}},
}

// Label returns the localized label for the category, falling back to English
// and then to the wire value.
func (c WasteCategory) Label(lang string) string {
	style, ok := CategoryStyles[c]
	if !ok {
		return string(c)
	}
	if l, ok := style.Label[lang]; ok {
		return l
	}
	if l, ok := style.Label["en"]; ok {
		return l
	}
	return string(c)
}

// ClassificationResult is the structured answer for one image.
// The JSON names are the external schema field names (see llm/schema.go).
// Treat values as immutable: they are passed by value and never mutated after parsing.
type ClassificationResult struct {
	ItemName            string        `json:"itemName"`
	Category            WasteCategory `json:"category"`
	Explanation         string        `json:"explanation"`
	DisposalInstruction string        `json:"disposalInstruction"`
	Confidence          float64       `json:"confidence"`
}

// DisplayConfidence rounds the confidence to the nearest integer for presentation only.
func (r ClassificationResult) DisplayConfidence() int {
	return int(math.Round(r.Confidence))
}

// Image is an encoded still image plus its MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL renders the image as data:<mime>;base64,<payload>.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ClassificationRecord tracks each call to the AI service for cost and quality monitoring.
// Each field has two tags:
//   - `db:"column_name"`: used by sqlx to scan database rows
//   - `json:"field_name"`: used for JSON serialization (API responses)
type ClassificationRecord struct {
	ID         int64     `db:"id" json:"id"`
	Provider   string    `db:"provider" json:"provider"`
	Model      string    `db:"model" json:"model"`
	ItemName   *string   `db:"item_name" json:"item_name,omitempty"`
	Category   *string   `db:"category" json:"category,omitempty"`
	Confidence *float64  `db:"confidence" json:"confidence,omitempty"`
	Success    bool      `db:"success" json:"success"`
	ErrorKind  *string   `db:"error_kind" json:"error_kind,omitempty"`
	DurationMs int64     `db:"duration_ms" json:"duration_ms"`
	ImagePath  *string   `db:"image_path" json:"image_path,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CategoryCount is one row of the per-category ledger aggregate.
type CategoryCount struct {
	Category string `db:"category" json:"category"`
	Count    int64  `db:"count" json:"count"`
}
