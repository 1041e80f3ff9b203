// internal/service/tenant/guard.go
package tenant

import (
	"context"
	"errors"

	domain "authcore-service/internal/domain/tenant"
	xerrors "authcore-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Store is the slice of tenant persistence the guard reads.
type Store interface {
	FindByID(ctx context.Context, id int64) (*domain.Tenant, error)
}

// UserCounter counts live users of a tenant for the capacity check.
type UserCounter interface {
	CountActiveInTenant(ctx context.Context, tenantID int64) (int64, error)
}

// Guard enforces tenant isolation policy on session and user mutations.
// It holds no state of its own: every decision is a fresh read of the
// tenant row (plus a user count for creation).
type Guard struct {
	tenants Store
	users   UserCounter
	strict  bool
	logger  *zap.Logger
}

// NewGuard builds a guard. strict is the platform default for capacity
// enforcement; individual tenants can override it in their settings.
func NewGuard(tenants Store, users UserCounter, strict bool, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{tenants: tenants, users: users, strict: strict, logger: logger}
}

// AuthorizeTenantContext confirms the tenant may host the operation.
// tenantID 0 is a platform-level context and always passes. User creation
// additionally enforces the maxUsers quota; the check is advisory under
// concurrency (a soft business quota, not a security boundary).
func (g *Guard) AuthorizeTenantContext(ctx context.Context, tenantID int64, operation string) error {
	if tenantID == 0 {
		return nil
	}

	t, err := g.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return xerrors.ErrTenantSuspended
		}
		return xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}
	if !t.Active() {
		return xerrors.ErrTenantSuspended
	}

	if operation != "user.create" {
		return nil
	}

	count, err := g.users.CountActiveInTenant(ctx, tenantID)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}
	if count >= int64(t.MaxUsers) {
		if !t.CapacityStrict(g.strict) {
			g.logger.Warn("tenant over capacity, soft enforcement",
				zap.Int64("tenant_id", tenantID),
				zap.Int64("users", count),
				zap.Int("max_users", t.MaxUsers),
			)
			return nil
		}
		return xerrors.ErrTenantCapacityExceeded
	}

	return nil
}
