// internal/domain/audit/entity.go
package audit

import (
	"database/sql"
	"time"
)

// Event kinds emitted by the session lifecycle engine.
const (
	EventSessionIssued    = "session.issued"
	EventSessionRefreshed = "session.refreshed"
	EventSessionRevoked   = "session.revoked"
	EventValidationFailed = "session.validation_failed"
	EventReuseDetected    = "session.reuse_detected"
	EventRevokeAll        = "session.revoke_all"
	EventUserCreated      = "user.created"
)

// Event is the structured record the lifecycle engine emits. UserID and
// TenantID are weak references: they may no longer resolve by the time the
// record is read.
type Event struct {
	Kind      string                 `json:"kind"`
	UserID    int64                  `json:"user_id,omitempty"`
	TenantID  int64                  `json:"tenant_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	At        time.Time              `json:"at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Log is a persisted audit row, append-only.
type Log struct {
	ID        string                 `json:"id" db:"id"`
	Kind      string                 `json:"kind" db:"kind"`
	UserID    sql.NullInt64          `json:"user_id" db:"user_id"`
	TenantID  sql.NullInt64          `json:"tenant_id" db:"tenant_id"`
	SessionID sql.NullString         `json:"session_id" db:"session_id"`
	Metadata  map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// Activity is the per-user activity feed row derived from the same events.
type Activity struct {
	ID        string                 `json:"id" db:"id"`
	UserID    int64                  `json:"user_id" db:"user_id"`
	Action    string                 `json:"action" db:"action"`
	Metadata  map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}
