// Package handler contains HTTP request handlers.
// In Gin, a handler is any function with signature func(*gin.Context).
// No need for controller classes: just functions grouped by file.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	provider string
	model    string
	sessions func() int
}

// NewHealthHandler creates a new HealthHandler.
// In Go, constructors are just regular functions prefixed with "New".
func NewHealthHandler(provider, model string, sessions func() int) *HealthHandler {
	return &HealthHandler{provider: provider, model: model, sessions: sessions}
}

// Healthz responds with service status. It never calls the AI service:
// a health probe must not spend quota.
func (h *HealthHandler) Healthz(c *gin.Context) {
	body := gin.H{
		"status":   "ok",
		"service":  "ecosort",
		"provider": h.provider,
		"model":    h.model,
	}
	if h.sessions != nil {
		body["sessions"] = h.sessions()
	}
	c.JSON(http.StatusOK, body)
}
