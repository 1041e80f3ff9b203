// internal/handlers/notification/notification_handler.go
package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authcore-service/internal/pkg/response"
	notificationsvc "authcore-service/internal/service/notification"
)

// Handler exposes the caller's notification feed.
type Handler struct {
	notifications *notificationsvc.Service
	logger        *zap.Logger
}

func NewHandler(notifications *notificationsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{notifications: notifications, logger: logger}
}

// List returns the newest notifications for the authenticated user.
func (h *Handler) List(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := h.notifications.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Int64("user_id", userID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Failed to list notifications", nil)
		return
	}

	response.Success(c, http.StatusOK, "Notifications retrieved", gin.H{"notifications": items})
}
