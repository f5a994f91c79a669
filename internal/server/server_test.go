package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/config"
	"github.com/fleveque/ecosort/internal/model"
	"github.com/fleveque/ecosort/internal/service"
	"github.com/fleveque/ecosort/internal/session"
)

type fixedClassifier struct{}

func (fixedClassifier) Classify(ctx context.Context, image []byte, mimeType string) (model.ClassificationResult, error) {
	return model.ClassificationResult{ItemName: "Vỏ chuối", Category: model.CategoryOrganic, Confidence: 88}, nil
}
func (fixedClassifier) ProviderName() string { return "fixed" }
func (fixedClassifier) ModelName() string    { return "fixed-1" }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Auth:      config.AuthConfig{APIKeys: []string{"user-key"}, AdminKeys: []string{"admin-key"}},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		Capture:   config.CaptureConfig{MaxUploadBytes: 1 << 20},
		UI:        config.UIConfig{Language: "vi"},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		Log:       config.LogConfig{Level: "info"},
	}

	logger := zap.NewNop()
	svc := service.NewClassificationService(fixedClassifier{}, nil, nil, service.Options{Timeout: time.Second}, logger)
	store := session.NewStore(func(id string) *session.Session {
		return session.New(id, svc, nil, "vi", logger)
	}, logger)

	return New(cfg, Deps{Service: svc, Sessions: store}, logger)
}

func TestRoutes_Auth(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Shutdown(context.Background())

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		want   int
	}{
		{"health is public", "GET", "/healthz", "", http.StatusOK},
		{"classify needs key", "POST", "/api/v1/classify", "", http.StatusUnauthorized},
		{"sessions need key", "POST", "/api/v1/sessions", "", http.StatusUnauthorized},
		{"create session", "POST", "/api/v1/sessions", "user-key", http.StatusCreated},
		{"admin rejects user key", "GET", "/api/v1/admin/stats", "user-key", http.StatusForbidden},
		{"admin stats", "GET", "/api/v1/admin/stats", "admin-key", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestRoutes_Preflight(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Shutdown(context.Background())

	req := httptest.NewRequest("OPTIONS", "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}

func TestShutdown_ClosesSessions(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/sessions", nil)
	req.Header.Set("X-API-Key", "user-key")
	srv.Router().ServeHTTP(httptest.NewRecorder(), req)

	if srv.deps.Sessions.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", srv.deps.Sessions.Len())
	}
	_ = srv.Shutdown(context.Background())
	if srv.deps.Sessions.Len() != 0 {
		t.Errorf("expected sessions closed on shutdown, got %d", srv.deps.Sessions.Len())
	}
}
