// internal/service/notification/service.go
package notification

import (
	"context"
	"fmt"
	"time"

	"authcore-service/internal/domain/audit"
	domain "authcore-service/internal/domain/notification"
	ws "authcore-service/internal/websocket"

	"go.uber.org/zap"
)

// Store persists notification rows.
type Store interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error)
}

// Service turns security events into persisted notifications and live
// pushes. It sits downstream of the audit recorder, fire-and-forget: a
// failure here never propagates back into an auth decision.
type Service struct {
	store  Store
	hub    *ws.Hub
	logger *zap.Logger
}

func NewService(store Store, hub *ws.Hub, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, hub: hub, logger: logger}
}

// NotifySecurityEvent persists a security alert and pushes it to the user's
// connected clients.
func (s *Service) NotifySecurityEvent(ctx context.Context, e audit.Event) {
	if e.UserID == 0 {
		return
	}

	title, message := describe(e)
	n := &domain.Notification{
		UserID:   e.UserID,
		Title:    title,
		Message:  message,
		Type:     domain.TypeSecurityAlert,
		Metadata: e.Metadata,
	}
	if err := s.store.Create(ctx, n); err != nil {
		s.logger.Error("failed to persist security notification", zap.Int64("user_id", e.UserID), zap.Error(err))
	}

	if s.hub != nil {
		s.hub.Push(e.UserID, &ws.Alert{
			Type:     domain.TypeSecurityAlert,
			Title:    title,
			Message:  message,
			Metadata: e.Metadata,
			At:       time.Now(),
		})
	}
}

// ListForUser returns the newest notifications for display.
func (s *Service) ListForUser(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error) {
	return s.store.ListByUser(ctx, userID, limit)
}

func describe(e audit.Event) (string, string) {
	switch e.Kind {
	case audit.EventReuseDetected:
		return "Suspicious sign-in activity",
			"A previously used refresh token was presented again. If this was not you, revoke your sessions and change your password."
	case audit.EventRevokeAll:
		return "All sessions signed out",
			"Every active session on your account was revoked."
	default:
		return "Security alert", fmt.Sprintf("Security event: %s", e.Kind)
	}
}
