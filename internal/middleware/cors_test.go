package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func kioskCORS() *gin.Engine {
	router := gin.New()
	router.Use(CORS([]string{"http://localhost:5173", "https://kiosk.ecosort.example"}))
	router.POST("/sessions/:id/capture", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return router
}

func TestCORS(t *testing.T) {
	router := kioskCORS()

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"allowed origin", "POST", "https://kiosk.ecosort.example", http.StatusAccepted, "https://kiosk.ecosort.example"},
		{"dev origin", "POST", "http://localhost:5173", http.StatusAccepted, "http://localhost:5173"},
		{"foreign origin still served", "POST", "https://phish.example", http.StatusAccepted, ""},
		{"preflight", "OPTIONS", "http://localhost:5173", http.StatusNoContent, "http://localhost:5173"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/sessions/s1/capture", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin: expected %q, got %q", tt.wantOrigin, got)
			}
			if tt.wantOrigin == "" {
				return
			}
			if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "POST") {
				t.Errorf("POST missing from %q", w.Header().Get("Access-Control-Allow-Methods"))
			}
			if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key") {
				t.Errorf("X-API-Key missing from %q", w.Header().Get("Access-Control-Allow-Headers"))
			}
			if w.Header().Get("Vary") != "Origin" {
				t.Errorf("expected Vary: Origin, got %q", w.Header().Get("Vary"))
			}
		})
	}
}

func TestAllowedOrigin(t *testing.T) {
	check := AllowedOrigin([]string{"http://localhost:5173"})

	for origin, want := range map[string]bool{
		"":                      true, // same-origin or non-browser client
		"http://localhost:5173": true,
		"http://localhost:8080": false,
		"https://phish.example": false,
	} {
		req := httptest.NewRequest("GET", "/sessions/s1/events", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := check(req); got != want {
			t.Errorf("origin %q: expected %v, got %v", origin, want, got)
		}
	}
}
