// Package llm provides a provider-agnostic interface for classifying a photo of
// a waste item with a multimodal LLM. Every backend sends the same instruction and
// the same output schema (schema.go) and returns the same typed result.
package llm

import (
	"context"

	"github.com/fleveque/ecosort/internal/model"
)

// Classifier is the interface for LLM providers that can classify a waste photo.
// Gemini, OpenAI and Anthropic implement it; exactly one is configured at a time.
//
// Go interface design tip: keep interfaces small. Classify is the one method that
// matters; the other two only label ledger records and logs.
type Classifier interface {
	// Classify sends one request and returns the parsed result, or an error that
	// matches ErrNetwork, ErrClassificationFailed or ErrSchemaViolation via errors.Is.
	// It never retries.
	Classify(ctx context.Context, image []byte, mimeType string) (model.ClassificationResult, error)
	ProviderName() string
	ModelName() string
}

// Options are the generation settings shared by every backend.
type Options struct {
	Temperature float32
	Language    string // "vi", "en", ...
}

// DefaultOptions favours classification stability over creative variance.
func DefaultOptions() Options {
	return Options{Temperature: 0.2, Language: "vi"}
}
