package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/ecosort/internal/capture"
	"github.com/fleveque/ecosort/internal/llm"
	"github.com/fleveque/ecosort/internal/model"
	"github.com/fleveque/ecosort/internal/session"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, capture.ErrCameraUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, capture.ErrReadFailure), errors.Is(err, llm.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, llm.ErrNetwork):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrSchemaViolation), errors.Is(err, llm.ErrClassificationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the localized message for err. The detailed error only
// goes to the log (via c.Error); users always see the catalogue text.
func respondError(c *gin.Context, err error, lang string) {
	_ = c.Error(err)
	body := gin.H{"error": session.Message(err, lang)}
	if kind := llm.ErrorKind(err); kind != "other" {
		body["kind"] = kind
	}
	c.AbortWithStatusJSON(statusFor(err), body)
}

// language picks the message language: ?lang= first, then Accept-Language,
// then the configured default.
func language(c *gin.Context, fallback string) string {
	if l := c.Query("lang"); l == "vi" || l == "en" {
		return l
	}
	accept := strings.ToLower(c.GetHeader("Accept-Language"))
	switch {
	case strings.HasPrefix(accept, "vi"):
		return "vi"
	case strings.HasPrefix(accept, "en"):
		return "en"
	}
	return fallback
}

type imageRequest struct {
	Image string `json:"image" binding:"required"`
}

// uploadSlack covers multipart framing and the JSON envelope around the image.
const uploadSlack = 64 << 10

// readImage accepts a multipart "image" field or a JSON body carrying a data URL
// or bare base64.
// The body is capped before parsing: base64 inflates the image by 4/3, so a
// larger request can never decode to an acceptable image.
func readImage(c *gin.Context, maxBytes int64) (model.Image, error) {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes*4/3+uploadSlack)
	}
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))

	if mediaType == "multipart/form-data" {
		fh, err := c.FormFile("image")
		if err != nil {
			return model.Image{}, errors.Join(capture.ErrReadFailure, err)
		}
		f, err := fh.Open()
		if err != nil {
			return model.Image{}, errors.Join(capture.ErrReadFailure, err)
		}
		defer f.Close()
		return capture.LoadFromReader(f, maxBytes)
	}

	// ShouldBindJSON validates the `binding:"required"` tag via go-playground/validator.
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return model.Image{}, errors.Join(capture.ErrReadFailure, err)
	}
	return capture.LoadFromDataURL(req.Image, maxBytes)
}

// resultResponse is a ClassificationResult plus the presentation fields a
// client needs to render it.
type resultResponse struct {
	model.ClassificationResult
	Label             string `json:"label"`
	Icon              string `json:"icon"`
	Color             string `json:"color"`
	DisplayConfidence int    `json:"display_confidence"`
}

func newResultResponse(r model.ClassificationResult, lang string) resultResponse {
	style := model.CategoryStyles[r.Category]
	return resultResponse{
		ClassificationResult: r,
		Label:                r.Category.Label(lang),
		Icon:                 style.Icon,
		Color:                style.Color,
		DisplayConfidence:    r.DisplayConfidence(),
	}
}
