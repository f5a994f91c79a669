// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/config"
	"github.com/fleveque/ecosort/internal/handler"
	"github.com/fleveque/ecosort/internal/middleware"
	"github.com/fleveque/ecosort/internal/service"
	"github.com/fleveque/ecosort/internal/session"
)

// Deps holds everything the handlers need. Built once in main and passed down.
type Deps struct {
	Service  *service.ClassificationService
	Sessions *session.Store
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
// In Go, we pass dependencies explicitly: no DI container, no magic.
// Each handler gets exactly the dependencies it needs.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(deps.Service.ProviderName(), deps.Service.ModelName(), deps.Sessions.Len)
	classifyHandler := handler.NewClassifyHandler(deps.Service, cfg.Capture.MaxUploadBytes, cfg.UI.Language, logger)
	sessionHandler := handler.NewSessionHandler(deps.Sessions, cfg.Capture.MaxUploadBytes,
		middleware.AllowedOrigin(cfg.CORS.AllowedOrigins), logger)
	adminHandler := handler.NewAdminHandler(deps.Service, logger)

	// Public endpoints (no auth)
	r.GET("/healthz", healthHandler.Healthz)

	// CORS middleware applies to the entire API group.
	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	// Gin only runs group middleware for matched routes, so preflight requests
	// need a route of their own. CORS answers them before this handler runs.
	api.OPTIONS("/*path", func(c *gin.Context) {})

	// Authenticated API endpoints
	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.POST("/classify", classifyHandler.Classify)

		sessions := authed.Group("/sessions")
		sessions.POST("", sessionHandler.Create)
		sessions.GET("/:id", sessionHandler.Get)
		sessions.DELETE("/:id", sessionHandler.Delete)
		sessions.POST("/:id/capture", sessionHandler.StartCapture)
		sessions.POST("/:id/capture/frame", sessionHandler.CaptureFrame)
		sessions.POST("/:id/capture/cancel", sessionHandler.CancelCapture)
		sessions.POST("/:id/upload", sessionHandler.Upload)
		sessions.POST("/:id/reset", sessionHandler.Reset)
		sessions.GET("/:id/image", sessionHandler.Image)
		sessions.GET("/:id/events", sessionHandler.Events)
	}

	// Admin endpoints (separate auth with admin keys)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.GET("/classifications", adminHandler.Recent)
		admin.GET("/classifications/:id/image", adminHandler.Image)
	}
}
