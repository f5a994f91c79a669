package llm

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/fleveque/ecosort/internal/model"
)

// ParseResult decodes a schema-constrained reply into a ClassificationResult.
// It is all-or-nothing: any missing field, wrong type, unknown category or
// out-of-range confidence is a schema violation, never a partial result.
func ParseResult(text string) (model.ClassificationResult, error) {
	text = stripCodeFences(strings.TrimSpace(text))
	if text == "" {
		return model.ClassificationResult{}, ErrClassificationFailed
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return model.ClassificationResult{}, violation("invalid JSON: %v", err)
	}

	for _, name := range RequiredFields {
		v, ok := raw[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return model.ClassificationResult{}, violation("missing required field %q", name)
		}
	}

	var out model.ClassificationResult
	strFields := map[string]*string{
		FieldItemName:            &out.ItemName,
		FieldExplanation:         &out.Explanation,
		FieldDisposalInstruction: &out.DisposalInstruction,
	}
	for name, dst := range strFields {
		if err := json.Unmarshal(raw[name], dst); err != nil {
			return model.ClassificationResult{}, violation("field %q must be a string", name)
		}
	}

	var category string
	if err := json.Unmarshal(raw[FieldCategory], &category); err != nil {
		return model.ClassificationResult{}, violation("field %q must be a string", FieldCategory)
	}
	if !model.ValidCategory(category) {
		return model.ClassificationResult{}, violation("category %q is not one of %v", category, CategoryEnum())
	}
	out.Category = model.WasteCategory(category)

	if err := json.Unmarshal(raw[FieldConfidence], &out.Confidence); err != nil {
		return model.ClassificationResult{}, violation("field %q must be a number", FieldConfidence)
	}
	if math.IsNaN(out.Confidence) || out.Confidence < 0 || out.Confidence > 100 {
		return model.ClassificationResult{}, violation("confidence %v outside [0,100]", out.Confidence)
	}

	return out, nil
}

// stripCodeFences removes a ```json ... ``` wrapper some models add around JSON.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var errEmptyImage = fmt.Errorf("%w: empty image", ErrInvalidImage)

// prepareImage strips a data-URL prefix when the caller handed over the text of a
// data URL instead of raw bytes, and settles the MIME type.
// "data:image/png;base64,iVBOR..." → (raw PNG bytes, "image/png")
func prepareImage(image []byte, mimeType string) ([]byte, string, error) {
	trimmed := bytes.TrimSpace(image)
	if bytes.HasPrefix(trimmed, []byte("data:")) {
		comma := bytes.IndexByte(trimmed, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		meta := string(trimmed[len("data:"):comma]) // "<mime>;base64"
		if semi := strings.IndexByte(meta, ';'); semi >= 0 {
			if mimeType == "" {
				mimeType = meta[:semi]
			}
		} else if mimeType == "" {
			mimeType = meta
		}
		decoded, err := base64.StdEncoding.DecodeString(string(trimmed[comma+1:]))
		if err != nil {
			return nil, "", fmt.Errorf("%w: data URL payload is not base64", ErrInvalidImage)
		}
		image = decoded
	}
	if len(image) == 0 {
		return nil, "", errEmptyImage
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return image, mimeType, nil
}
