package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fleveque/ecosort/internal/model"
)

// OpenAIClient implements Classifier with OpenAI vision models.
// Structured outputs (response_format json_schema, strict) constrain the reply.
type OpenAIClient struct {
	client *openai.Client
	model  string
	opts   Options
}

// NewOpenAIClient creates an OpenAI-backed classifier. baseURL is optional and
// points the SDK at a compatible endpoint (or an httptest server in tests).
func NewOpenAIClient(apiKey, modelName, baseURL string, opts Options) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
		opts:   opts,
	}
}

func (o *OpenAIClient) ProviderName() string { return "openai" }
func (o *OpenAIClient) ModelName() string    { return o.model }

func (o *OpenAIClient) Classify(ctx context.Context, image []byte, mimeType string) (model.ClassificationResult, error) {
	data, mime, err := prepareImage(image, mimeType)
	if err != nil {
		return model.ClassificationResult{}, err
	}

	// The image travels inline as a data URL; no upload step is needed.
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.opts.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: Instruction(o.opts.Language),
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "waste_classification",
				Schema: openAISchema(),
				Strict: true,
			},
		},
	})
	if err != nil {
		return model.ClassificationResult{}, networkError(o.ProviderName(), err)
	}

	if len(resp.Choices) == 0 {
		return model.ClassificationResult{}, failed(o.ProviderName(), "no choices returned")
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return model.ClassificationResult{}, failed(o.ProviderName(), "refused: "+msg.Refusal)
	}
	if msg.Content == "" {
		return model.ClassificationResult{}, failed(o.ProviderName(), "empty response")
	}

	return ParseResult(msg.Content)
}
