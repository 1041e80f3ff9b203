// internal/domain/session/entity.go
package session

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Status values for AuthSession.Status. There is no transition out of
// revoked or expired.
const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
	StatusExpired = "expired"
)

// AuthSession is one login session. Token columns hold one-way hashes, never
// raw token material; lookups re-derive the hash from the presented token.
// Permissions and Scopes are a point-in-time snapshot of the user's grants at
// issuance, deliberately not live-joined against the role tables.
type AuthSession struct {
	ID               int64                  `json:"id" db:"id"`
	UserID           int64                  `json:"user_id" db:"user_id"`
	TenantID         sql.NullInt64          `json:"tenant_id" db:"tenant_id"`
	SessionID        string                 `json:"session_id" db:"session_id"` // client-facing, unique
	AccessTokenHash  string                 `json:"-" db:"access_token_hash"`
	AccessJTI        string                 `json:"-" db:"access_jti"`
	RefreshTokenHash sql.NullString         `json:"-" db:"refresh_token_hash"` // null once consumed
	TokenType        string                 `json:"token_type" db:"token_type"`
	Status           string                 `json:"status" db:"status"` // active, revoked, expired
	Permissions      pq.StringArray         `json:"permissions" db:"permissions"`
	Scopes           pq.StringArray         `json:"scopes" db:"scopes"`
	DeviceInfo       map[string]interface{} `json:"device_info" db:"device_info"`
	IssuedAt         time.Time              `json:"issued_at" db:"issued_at"`
	ExpiresAt        time.Time              `json:"expires_at" db:"expires_at"`
	LastAccessAt     time.Time              `json:"last_access_at" db:"last_access_at"`
	RevokedAt        sql.NullTime           `json:"revoked_at" db:"revoked_at"`
	RevokedBy        sql.NullString         `json:"revoked_by" db:"revoked_by"`
}

// ExpiredAt reports whether the session is past its expiry at the given
// instant. Expiry is lazy: a stored status of "active" does not override it.
func (s *AuthSession) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// BlacklistEntry is a denylist row for a revoked token, keyed by jti and kept
// independent of the session row so a token can stay denied even after its
// session record is reaped. Presence of a jti here is fail-closed proof of
// revocation regardless of signature validity.
type BlacklistEntry struct {
	ID            int64          `json:"id" db:"id"`
	JTI           string         `json:"jti" db:"jti"`
	UserID        sql.NullInt64  `json:"user_id" db:"user_id"`
	TokenHash     string         `json:"-" db:"token_hash"`
	ExpiresAt     time.Time      `json:"expires_at" db:"expires_at"`
	RevokedAt     time.Time      `json:"revoked_at" db:"revoked_at"`
	RevokedBy     sql.NullString `json:"revoked_by" db:"revoked_by"`
	RevokedReason sql.NullString `json:"revoked_reason" db:"revoked_reason"`
}

// Context is what a successful validation hands back to callers: identity
// plus the snapshotted grants. Callers needing fresh permissions must
// re-authenticate.
type Context struct {
	UserID      int64     `json:"user_id"`
	TenantID    int64     `json:"tenant_id"` // 0 when platform-level
	SessionID   string    `json:"session_id"`
	JTI         string    `json:"jti"`
	Permissions []string  `json:"permissions"`
	Scopes      []string  `json:"scopes"`
	ExpiresAt   time.Time `json:"expires_at"`
}
