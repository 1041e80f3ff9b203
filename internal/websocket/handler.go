// internal/websocket/handler.go
package websocket

import (
	"context"
	"net/http"

	"authcore-service/internal/domain/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Validator is the lifecycle engine's validation entry point.
type Validator interface {
	ValidateAccessToken(ctx context.Context, raw string) (*session.Context, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect cross-origin in development; tighten upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	hub       *Hub
	validator Validator
	logger    *zap.Logger
}

func NewHandler(hub *Hub, validator Validator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, validator: validator, logger: logger}
}

// HandleConnection upgrades an authenticated request. The token arrives as a
// query parameter because browsers cannot set headers on websocket dials.
func (h *Handler) HandleConnection(c *gin.Context) {
	raw := c.Query("token")
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	sc, err := h.validator.ValidateAccessToken(c.Request.Context(), raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	NewClient(h.hub, conn, sc.UserID, sc.SessionID).Start()
}
