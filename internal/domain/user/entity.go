// internal/domain/user/entity.go
package user

import (
	"database/sql"
	"time"
)

// Status values for User.Status.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDeleted   = "deleted"
)

// User is the core identity record. TenantID is null for platform-level
// accounts that belong to no tenant.
type User struct {
	ID           int64                  `json:"id" db:"id"`
	Email        string                 `json:"email" db:"email"`
	PasswordHash string                 `json:"-" db:"password_hash"`
	Status       string                 `json:"status" db:"status"` // active, suspended, deleted
	TenantID     sql.NullInt64          `json:"tenant_id" db:"tenant_id"`
	Metadata     map[string]interface{} `json:"metadata" db:"metadata"`
	LastLoginAt  sql.NullTime           `json:"last_login_at" db:"last_login_at"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at" db:"updated_at"`
	DeletedAt    sql.NullTime           `json:"-" db:"deleted_at"`
}

// CanAuthenticate reports whether the record may start a session.
// A soft-deleted user never authenticates, whatever Status says.
func (u *User) CanAuthenticate() bool {
	return !u.DeletedAt.Valid && u.Status == StatusActive
}
