// internal/service/lifecycle/stores.go
package lifecycle

import (
	"context"
	"time"

	"authcore-service/internal/domain/audit"
	"authcore-service/internal/domain/role"
	"authcore-service/internal/domain/session"
	"authcore-service/internal/domain/user"
)

// SessionStore is the persistence boundary for session rows. The postgres
// repository is the production implementation; tests use in-memory fakes.
type SessionStore interface {
	Create(ctx context.Context, s *session.AuthSession) error
	FindBySessionID(ctx context.Context, sessionID string) (*session.AuthSession, error)
	FindByAccessHash(ctx context.Context, hash string) (*session.AuthSession, error)
	FindByRefreshHash(ctx context.Context, hash string) (*session.AuthSession, error)
	ListByUser(ctx context.Context, userID int64) ([]*session.AuthSession, error)
	Rotate(ctx context.Context, presentedRefreshHash, newAccessHash, newAccessJTI, newRefreshHash string, newExpiresAt time.Time) (*session.AuthSession, error)
	Revoke(ctx context.Context, sessionID, revokedBy, reason string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64, revokedBy, reason string) (int64, error)
	UpdateLastAccess(ctx context.Context, id int64) error
	MarkExpiredByID(ctx context.Context, id int64) error
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

// BlacklistStore is the persistence boundary for the token denylist.
type BlacklistStore interface {
	Insert(ctx context.Context, e *session.BlacklistEntry) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// UserStore is the slice of user persistence the lifecycle engine needs.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*user.User, error)
	UpdateLastLogin(ctx context.Context, id int64) error
}

// GrantStore reads the currently-active role grants of a user.
type GrantStore interface {
	ActiveGrants(ctx context.Context, userID int64) ([]*role.Role, error)
}

// TenantGuard authorizes tenant context before any session mutation.
type TenantGuard interface {
	AuthorizeTenantContext(ctx context.Context, tenantID int64, operation string) error
}

// Recorder consumes lifecycle events. Implementations decide what to
// persist; the engine never reads events back for auth decisions.
type Recorder interface {
	Record(ctx context.Context, e audit.Event)
}

// DenyCache is an optional fast path in front of BlacklistStore. A hit is
// a denial; a miss proves nothing.
type DenyCache interface {
	Contains(ctx context.Context, jti string) (bool, error)
	Add(ctx context.Context, jti string, expiresAt time.Time) error
}

// NopRecorder discards events.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, audit.Event) {}
