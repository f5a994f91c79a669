package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fleveque/ecosort/internal/model"
)

// openAIServer stands in for the chat completions endpoint and keeps the last request body.
func openAIServer(t *testing.T, status int, content string) (*httptest.Server, *map[string]any, *int) {
	t.Helper()
	var body map[string]any
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"upstream unavailable","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o",
			"choices": []any{
				map[string]any{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &body, &calls
}

func TestOpenAIClassify_Success(t *testing.T) {
	srv, body, _ := openAIServer(t, http.StatusOK,
		`{"itemName":"Banana peel","category":"Organic","explanation":"food scrap","disposalInstruction":"compost","confidence":88.4}`)

	c := NewOpenAIClient("sk-test", "gpt-4o", srv.URL+"/v1", Options{Temperature: 0.2, Language: "en"})
	got, err := c.Classify(context.Background(), jpegBytes, "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Category != model.CategoryOrganic || got.DisplayConfidence() != 88 {
		t.Errorf("unexpected result %+v", got)
	}

	rf, _ := (*body)["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Errorf("expected json_schema response format, got %v", rf["type"])
	}
	js, _ := rf["json_schema"].(map[string]any)
	if js["strict"] != true {
		t.Errorf("expected strict schema, got %v", js["strict"])
	}

	msgs, _ := (*body)["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected a single user message, got %d", len(msgs))
	}
	parts, _ := msgs[0].(map[string]any)["content"].([]any)
	img, _ := parts[0].(map[string]any)["image_url"].(map[string]any)
	url, _ := img["url"].(string)
	if !strings.HasPrefix(url, "data:image/jpeg;base64,/9j/") {
		t.Errorf("expected inline JPEG data URL, got %.40s", url)
	}
}

func TestOpenAIClassify_ServerError(t *testing.T) {
	srv, _, calls := openAIServer(t, http.StatusInternalServerError, "")

	c := NewOpenAIClient("sk-test", "gpt-4o", srv.URL+"/v1", DefaultOptions())
	_, err := c.Classify(context.Background(), jpegBytes, "image/jpeg")
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected one request, got %d", *calls)
	}
}

func TestOpenAIClassify_EmptyContent(t *testing.T) {
	srv, _, _ := openAIServer(t, http.StatusOK, "")

	c := NewOpenAIClient("sk-test", "gpt-4o", srv.URL+"/v1", DefaultOptions())
	_, err := c.Classify(context.Background(), jpegBytes, "image/jpeg")
	if !errors.Is(err, ErrClassificationFailed) {
		t.Errorf("expected ErrClassificationFailed, got %v", err)
	}
}

func TestOpenAIClassify_NoCaching(t *testing.T) {
	srv, _, calls := openAIServer(t, http.StatusOK,
		`{"itemName":"x","category":"Residual","explanation":"e","disposalInstruction":"d","confidence":40}`)

	c := NewOpenAIClient("sk-test", "gpt-4o", srv.URL+"/v1", DefaultOptions())
	for i := 0; i < 2; i++ {
		if _, err := c.Classify(context.Background(), jpegBytes, "image/jpeg"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if *calls != 2 {
		t.Errorf("expected 2 requests, got %d", *calls)
	}
}
