package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fleveque/ecosort/internal/model"
)

func anthropicServer(t *testing.T, status int, content []any) (*httptest.Server, *map[string]any, *int) {
	t.Helper()
	var body map[string]any
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-sonnet-4-5",
			"content":       content,
			"stop_reason":   "tool_use",
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 10},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &body, &calls
}

func toolUse(input map[string]any) []any {
	return []any{map[string]any{
		"type":  "tool_use",
		"id":    "toolu_1",
		"name":  submitToolName,
		"input": input,
	}}
}

func TestAnthropicClassify_Success(t *testing.T) {
	srv, body, _ := anthropicServer(t, http.StatusOK, toolUse(map[string]any{
		"itemName":            "Pin AA",
		"category":            "Hazardous",
		"explanation":         "Chứa kim loại nặng",
		"disposalInstruction": "Mang đến điểm thu gom pin",
		"confidence":          97,
	}))

	c := NewAnthropicClient("sk-ant-test", "claude-sonnet-4-5", srv.URL, DefaultOptions())
	got, err := c.Classify(context.Background(), jpegBytes, "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Category != model.CategoryHazardous || got.ItemName != "Pin AA" {
		t.Errorf("unexpected result %+v", got)
	}

	choice, _ := (*body)["tool_choice"].(map[string]any)
	if choice["type"] != "tool" || choice["name"] != submitToolName {
		t.Errorf("expected forced tool choice, got %v", choice)
	}
	msgs, _ := (*body)["messages"].([]any)
	content, _ := msgs[0].(map[string]any)["content"].([]any)
	img, _ := content[0].(map[string]any)
	if img["type"] != "image" {
		t.Errorf("expected image block first, got %v", img["type"])
	}
}

func TestAnthropicClassify_NoToolCall(t *testing.T) {
	srv, _, _ := anthropicServer(t, http.StatusOK, []any{
		map[string]any{"type": "text", "text": "I can't tell what this is."},
	})

	c := NewAnthropicClient("sk-ant-test", "claude-sonnet-4-5", srv.URL, DefaultOptions())
	_, err := c.Classify(context.Background(), jpegBytes, "image/jpeg")
	if !errors.Is(err, ErrClassificationFailed) {
		t.Errorf("expected ErrClassificationFailed, got %v", err)
	}
}

func TestAnthropicClassify_BadToolInput(t *testing.T) {
	srv, _, _ := anthropicServer(t, http.StatusOK, toolUse(map[string]any{
		"itemName": "x",
		"category": "Metal",
	}))

	c := NewAnthropicClient("sk-ant-test", "claude-sonnet-4-5", srv.URL, DefaultOptions())
	_, err := c.Classify(context.Background(), jpegBytes, "image/jpeg")
	if !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestAnthropicClassify_ServerErrorNoRetry(t *testing.T) {
	srv, _, calls := anthropicServer(t, http.StatusServiceUnavailable, nil)

	c := NewAnthropicClient("sk-ant-test", "claude-sonnet-4-5", srv.URL, DefaultOptions())
	_, err := c.Classify(context.Background(), jpegBytes, "image/jpeg")
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected exactly one request, got %d", *calls)
	}
}
