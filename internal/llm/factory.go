package llm

import (
	"context"
	"fmt"

	"github.com/fleveque/ecosort/internal/config"
)

// NewFromConfig builds the single configured classifier.
// The caller owns the result; if it implements io.Closer, close it on shutdown.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig) (Classifier, error) {
	opts := Options{Temperature: cfg.Temperature, Language: cfg.Language}
	if opts.Language == "" {
		opts.Language = DefaultOptions().Language
	}

	switch cfg.Provider {
	case "gemini":
		g, err := NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL, opts)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "openai":
		return NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, opts), nil
	case "anthropic":
		return NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.BaseURL, opts), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
