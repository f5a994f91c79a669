package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/fleveque/ecosort/internal/model"
)

// generator is the one method of *genai.GenerativeModel the classifier needs.
// Tests swap in a fake, so no request ever leaves the process.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements Classifier with Google Gemini.
// Gemini supports a native response schema, so the reply is constrained JSON.
type GeminiClient struct {
	client *genai.Client
	gen    generator
	model  string
	opts   Options
}

// geminiTransport authenticates REST calls with the API key and reports an
// upstream 503 as 502. The generated REST client retries 503 with backoff
// until the context expires; a Classify call must reach the API only once.
// The retryer reads the code from the JSON error body, so the body is
// rewritten along with the status line.
type geminiTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *geminiTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("x-goog-api-key", t.apiKey)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		return resp, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	msg := strings.TrimSpace(string(raw))
	var reply struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &reply) == nil && reply.Error.Message != "" {
		msg = reply.Error.Message
	}
	body, err := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    http.StatusBadGateway,
			"message": "upstream unavailable: " + msg,
			"status":  "UNAVAILABLE",
		},
	})
	if err != nil {
		return nil, err
	}

	resp.StatusCode = http.StatusBadGateway
	resp.Status = "502 Bad Gateway"
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Del("Content-Length")
	return resp, nil
}

// NewGeminiClient dials Gemini and prepares the model with the output schema.
// Call Close when done; the genai client keeps HTTP connections open.
func NewGeminiClient(ctx context.Context, apiKey, modelName, baseURL string, opts Options) (*GeminiClient, error) {
	httpClient := &http.Client{Transport: &geminiTransport{apiKey: apiKey, base: http.DefaultTransport}}
	// WithAPIKey stays for the gRPC cache client, which genai builds without the HTTP client.
	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(baseURL))
	}
	cl, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	m := cl.GenerativeModel(strings.TrimSpace(modelName))
	temp := opts.Temperature
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiSchema(),
	}

	return &GeminiClient{client: cl, gen: m, model: modelName, opts: opts}, nil
}

// newGeminiWithGenerator builds a client around any generator (used by tests).
func newGeminiWithGenerator(gen generator, modelName string, opts Options) *GeminiClient {
	return &GeminiClient{gen: gen, model: modelName, opts: opts}
}

func (g *GeminiClient) ProviderName() string { return "gemini" }
func (g *GeminiClient) ModelName() string    { return g.model }

// Close releases the underlying connection.
func (g *GeminiClient) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GeminiClient) Classify(ctx context.Context, image []byte, mimeType string) (model.ClassificationResult, error) {
	data, mime, err := prepareImage(image, mimeType)
	if err != nil {
		return model.ClassificationResult{}, err
	}

	parts := []genai.Part{
		&genai.Blob{MIMEType: mime, Data: data},
		genai.Text(Instruction(g.opts.Language)),
	}

	resp, err := g.gen.GenerateContent(ctx, parts...)
	if err != nil {
		// A safety block is an answer without usable content, not a transport failure.
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return model.ClassificationResult{}, failed(g.ProviderName(), blocked.Error())
		}
		return model.ClassificationResult{}, networkError(g.ProviderName(), err)
	}

	txt := firstText(resp)
	if strings.TrimSpace(txt) == "" {
		return model.ClassificationResult{}, failed(g.ProviderName(), "empty response")
	}
	return ParseResult(txt)
}

// firstText concatenates the text parts of the first candidate that has any.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}
