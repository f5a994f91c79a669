package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/session"
)

const (
	// Time allowed to write one view to the peer.
	writeWait = 10 * time.Second
	// The peer must answer a ping within pongWait.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SessionHandler drives server-side capture sessions. Every route looks the
// session up by :id and answers with its current View.
type SessionHandler struct {
	store    *session.Store
	maxBytes int64
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler. checkOrigin guards the
// websocket handshake; nil accepts every origin.
func NewSessionHandler(store *session.Store, maxBytes int64, checkOrigin func(*http.Request) bool, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		store:    store,
		maxBytes: maxBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// lookup resolves :id or writes a 404.
func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	s, err := h.store.Get(c.Param("id"))
	if err != nil {
		respondError(c, err, language(c, session.DefaultLanguage))
		return nil, false
	}
	return s, true
}

// Create starts a new idle session.
// Route: POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	s := h.store.Create()
	c.JSON(http.StatusCreated, s.Snapshot())
}

// Get returns the session's current view.
// Route: GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// Delete ends the session and releases its camera.
// Route: DELETE /api/v1/sessions/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		respondError(c, err, language(c, session.DefaultLanguage))
		return
	}
	c.Status(http.StatusNoContent)
}

// StartCapture opens the camera. A 503 means no camera could be opened; the
// session stays idle and the client should offer an upload instead.
// Route: POST /api/v1/sessions/:id/capture
func (h *SessionHandler) StartCapture(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := s.StartCapture(c.Request.Context()); err != nil {
		respondError(c, err, s.Language())
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// CaptureFrame takes the still and starts classification. The response is the
// Loading view; the outcome arrives on the events socket or a later GET.
// Route: POST /api/v1/sessions/:id/capture/frame
func (h *SessionHandler) CaptureFrame(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := s.CaptureFrame(c.Request.Context()); err != nil {
		respondError(c, err, s.Language())
		return
	}
	c.JSON(http.StatusAccepted, s.Snapshot())
}

// CancelCapture closes the camera without classifying.
// Route: POST /api/v1/sessions/:id/capture/cancel
func (h *SessionHandler) CancelCapture(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := s.CancelCapture(); err != nil {
		respondError(c, err, s.Language())
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// Upload classifies a user-selected image.
// Route: POST /api/v1/sessions/:id/upload
func (h *SessionHandler) Upload(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	img, err := readImage(c, h.maxBytes)
	if err != nil {
		respondError(c, err, s.Language())
		return
	}
	if err := s.SelectFile(img); err != nil {
		respondError(c, err, s.Language())
		return
	}
	c.JSON(http.StatusAccepted, s.Snapshot())
}

// Reset returns the session to idle.
// Route: POST /api/v1/sessions/:id/reset
func (h *SessionHandler) Reset(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := s.Reset(); err != nil {
		respondError(c, err, s.Language())
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// Image serves the photo of the current cycle so the client can show it next
// to the result.
// Route: GET /api/v1/sessions/:id/image
func (h *SessionHandler) Image(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	img, ok := s.Image()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no image in this session"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, img.MIMEType, img.Data)
}

// Events upgrades to a websocket and pushes every view as a JSON text message,
// starting with the current one. Messages from the client are ignored.
// Route: GET /api/v1/sessions/:id/events
func (h *SessionHandler) Events(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	views, cancel := s.Subscribe()
	defer cancel()

	// The read pump only exists to process pongs and notice the client leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Debug("events reader stopped", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case v, open := <-views:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				// Session deleted or server shutting down.
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := conn.WriteJSON(v); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
