// internal/service/audit/recorder.go
package audit

import (
	"context"
	"time"

	domain "authcore-service/internal/domain/audit"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the append-only persistence for audit rows.
type Store interface {
	AppendLog(ctx context.Context, l *domain.Log) error
	AppendActivity(ctx context.Context, a *domain.Activity) error
}

// Notifier receives security-relevant events, fire-and-forget.
type Notifier interface {
	NotifySecurityEvent(ctx context.Context, e domain.Event)
}

// Recorder consumes lifecycle events and writes audit_logs plus
// user_activities. A write failure is logged and dropped: auditing never
// blocks or fails an auth decision.
type Recorder struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

func NewRecorder(store Store, notifier Notifier, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, notifier: notifier, logger: logger}
}

// securityEvents fan out to the notifier on top of the audit write.
var securityEvents = map[string]bool{
	domain.EventReuseDetected: true,
	domain.EventRevokeAll:     true,
}

// Record persists one event. Called synchronously from the lifecycle engine;
// kept cheap and failure-isolated.
func (r *Recorder) Record(ctx context.Context, e domain.Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	l := &domain.Log{
		ID:       uuid.NewString(),
		Kind:     e.Kind,
		Metadata: e.Metadata,
	}
	if e.UserID != 0 {
		l.UserID.Int64, l.UserID.Valid = e.UserID, true
	}
	if e.TenantID != 0 {
		l.TenantID.Int64, l.TenantID.Valid = e.TenantID, true
	}
	if e.SessionID != "" {
		l.SessionID.String, l.SessionID.Valid = e.SessionID, true
	}
	if err := r.store.AppendLog(ctx, l); err != nil {
		r.logger.Error("failed to append audit log", zap.String("kind", e.Kind), zap.Error(err))
	}

	if e.UserID != 0 {
		a := &domain.Activity{
			ID:       uuid.NewString(),
			UserID:   e.UserID,
			Action:   e.Kind,
			Metadata: e.Metadata,
		}
		if err := r.store.AppendActivity(ctx, a); err != nil {
			r.logger.Error("failed to append user activity", zap.String("kind", e.Kind), zap.Error(err))
		}
	}

	if r.notifier != nil && securityEvents[e.Kind] {
		r.notifier.NotifySecurityEvent(ctx, e)
	}
}
