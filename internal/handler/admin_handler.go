package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/model"
	"github.com/fleveque/ecosort/internal/service"
	"github.com/fleveque/ecosort/internal/storage"
)

// LedgerReader is the read side of the classification ledger.
type LedgerReader interface {
	Stats(ctx context.Context) (*service.Stats, error)
	Recent(ctx context.Context, limit int) ([]model.ClassificationRecord, error)
	ArchivedImage(ctx context.Context, id int64) (model.Image, error)
}

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	ledger LedgerReader
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledger LedgerReader, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		ledger: ledger,
		logger: logger,
	}
}

// Stats returns ledger counts by category and outcome.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.ledger.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("reading ledger stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Recent returns the latest ledger rows.
// Route: GET /api/v1/admin/classifications?limit=20
func (h *AdminHandler) Recent(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}

	records, err := h.ledger.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("reading recent classifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"classifications": records})
}

// Image serves the archived copy of a classified image.
// Route: GET /api/v1/admin/classifications/:id/image
func (h *AdminHandler) Image(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid classification id"})
		return
	}

	img, err := h.ledger.ArchivedImage(c.Request.Context(), id)
	switch {
	case errors.Is(err, storage.ErrRecordNotFound), errors.Is(err, service.ErrNoArchivedImage):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("reading archived image", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, img.MIMEType, img.Data)
}
