// internal/domain/tenant/entity.go
package tenant

import (
	"database/sql"
	"time"
)

// Status values for Tenant.Status.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Tenant is the isolation boundary grouping users, roles and audit data.
// MaxUsers is a soft capacity quota checked at user-creation time, not a
// continuously enforced invariant.
type Tenant struct {
	ID        int64                  `json:"id" db:"id"`
	Slug      string                 `json:"slug" db:"slug"`
	Domain    sql.NullString         `json:"domain" db:"domain"`
	Name      string                 `json:"name" db:"name"`
	Status    string                 `json:"status" db:"status"`
	Plan      string                 `json:"plan" db:"plan"`
	MaxUsers  int                    `json:"max_users" db:"max_users"`
	Settings  map[string]interface{} `json:"settings" db:"settings"`
	Metadata  map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
	DeletedAt sql.NullTime           `json:"-" db:"deleted_at"`
}

// Active reports whether the tenant may host new sessions or users.
func (t *Tenant) Active() bool {
	return !t.DeletedAt.Valid && t.Status == StatusActive
}

// CapacityStrict reads the per-tenant override of capacity enforcement from
// settings; fallback decides when no override is present.
func (t *Tenant) CapacityStrict(fallback bool) bool {
	if t.Settings == nil {
		return fallback
	}
	if v, ok := t.Settings["capacity_strict"].(bool); ok {
		return v
	}
	return fallback
}
