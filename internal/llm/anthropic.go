package llm

import (
	"context"
	"encoding/base64"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/fleveque/ecosort/internal/model"
)

const submitToolName = "submit_classification"

// AnthropicClient implements Classifier with Claude.
// Claude has no response-schema switch, so the schema becomes the input schema of
// a single tool and tool_choice forces Claude to call it exactly once.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	opts   Options
}

// NewAnthropicClient creates a Claude-backed classifier. baseURL is optional.
func NewAnthropicClient(apiKey, modelName, baseURL string, opts Options) *AnthropicClient {
	// The SDK retries 5xx and 429 by default; a classification is a single call.
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(reqOpts...)
	return &AnthropicClient{
		client: &client,
		model:  modelName,
		opts:   opts,
	}
}

func (a *AnthropicClient) ProviderName() string { return "anthropic" }
func (a *AnthropicClient) ModelName() string    { return a.model }

func (a *AnthropicClient) Classify(ctx context.Context, image []byte, mimeType string) (model.ClassificationResult, error) {
	data, mime, err := prepareImage(image, mimeType)
	if err != nil {
		return model.ClassificationResult{}, err
	}

	submitTool := anthropic.ToolParam{
		Name:        submitToolName,
		Description: param.NewOpt("Submit the waste classification of the photographed item."),
		InputSchema: anthropicToolSchema(),
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   1024,
		Temperature: anthropic.Float(float64(a.opts.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mime, base64.StdEncoding.EncodeToString(data)),
				anthropic.NewTextBlock(Instruction(a.opts.Language)),
			),
		},
		Tools:      []anthropic.ToolUnionParam{{OfTool: &submitTool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: submitToolName}},
	})
	if err != nil {
		return model.ClassificationResult{}, networkError(a.ProviderName(), err)
	}

	for _, block := range message.Content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok || toolUse.Name != submitToolName {
			continue
		}
		// Input is the raw JSON of the tool arguments; it goes through the same
		// strict parser as every other backend.
		return ParseResult(string(toolUse.Input))
	}

	return model.ClassificationResult{}, failed(a.ProviderName(), "no "+submitToolName+" call in response")
}
