package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/model"
)

// ImageClassifier is the part of service.ClassificationService this handler uses.
// Declaring the interface here, at the consumer, keeps the handler testable.
type ImageClassifier interface {
	Classify(ctx context.Context, img model.Image) (model.ClassificationResult, error)
}

// ClassifyHandler serves the stateless one-shot endpoint.
type ClassifyHandler struct {
	classifier ImageClassifier
	maxBytes   int64
	lang       string
	logger     *zap.Logger
}

// NewClassifyHandler creates a new ClassifyHandler.
func NewClassifyHandler(classifier ImageClassifier, maxBytes int64, lang string, logger *zap.Logger) *ClassifyHandler {
	return &ClassifyHandler{
		classifier: classifier,
		maxBytes:   maxBytes,
		lang:       lang,
		logger:     logger,
	}
}

// Classify sends one image to the AI service and returns the result.
// Route: POST /api/v1/classify (multipart "image" or JSON {"image": "<data URL>"})
//
// Every call reaches the external service: there is no cache.
func (h *ClassifyHandler) Classify(c *gin.Context) {
	lang := language(c, h.lang)

	img, err := readImage(c, h.maxBytes)
	if err != nil {
		respondError(c, err, lang)
		return
	}

	result, err := h.classifier.Classify(c.Request.Context(), img)
	if err != nil {
		h.logger.Warn("classify request failed", zap.Error(err))
		respondError(c, err, lang)
		return
	}

	c.JSON(http.StatusOK, newResultResponse(result, lang))
}
