// internal/domain/notification/entity.go
package notification

import (
	"database/sql"
	"time"
)

// Notification types used for security alerts.
const (
	TypeSecurityAlert = "security_alert"
)

// Notification is a persisted user notification row.
type Notification struct {
	ID        int64                  `json:"id" db:"id"`
	UserID    int64                  `json:"user_id" db:"user_id"`
	Title     string                 `json:"title" db:"title"`
	Message   string                 `json:"message" db:"message"`
	Type      string                 `json:"type" db:"type"`
	Metadata  map[string]interface{} `json:"metadata" db:"metadata"`
	ReadAt    sql.NullTime           `json:"read_at" db:"read_at"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}
