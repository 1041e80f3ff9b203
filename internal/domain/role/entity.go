// internal/domain/role/entity.go
package role

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Role is a named permission bundle. TenantID is null for platform-global
// roles visible to every tenant.
type Role struct {
	ID           int64          `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Description  sql.NullString `json:"description" db:"description"`
	Permissions  pq.StringArray `json:"permissions" db:"permissions"`
	IsSystemRole bool           `json:"is_system_role" db:"is_system_role"`
	TenantID     sql.NullInt64  `json:"tenant_id" db:"tenant_id"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// UserRole is the assignment edge between a user and a role. A past
// ExpiresAt makes the grant inactive even while the row still exists.
type UserRole struct {
	ID        int64         `json:"id" db:"id"`
	UserID    int64         `json:"user_id" db:"user_id"`
	RoleID    int64         `json:"role_id" db:"role_id"`
	GrantedAt time.Time     `json:"granted_at" db:"granted_at"`
	GrantedBy sql.NullInt64 `json:"granted_by" db:"granted_by"`
	ExpiresAt sql.NullTime  `json:"expires_at" db:"expires_at"` // null means permanent
}
