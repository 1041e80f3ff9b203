// internal/service/user/user.go
package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authcore-service/internal/domain/audit"
	domain "authcore-service/internal/domain/user"
	xerrors "authcore-service/internal/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Store is the user persistence the service needs.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *domain.User) error
}

// Guard authorizes tenant context for user creation.
type Guard interface {
	AuthorizeTenantContext(ctx context.Context, tenantID int64, operation string) error
}

// Recorder consumes provisioning events.
type Recorder interface {
	Record(ctx context.Context, e audit.Event)
}

// Service owns user provisioning and credential verification. Session
// issuance stays with the lifecycle manager; this is the part upstream of it.
type Service struct {
	store    Store
	guard    Guard
	recorder Recorder
	logger   *zap.Logger
}

func NewService(store Store, guard Guard, recorder Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, guard: guard, recorder: recorder, logger: logger}
}

// Create provisions a user, enforcing the tenant capacity quota at creation
// time. TenantID 0 creates a platform-level user.
func (s *Service) Create(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	exists, err := s.store.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}
	if exists {
		return nil, xerrors.ErrDuplicateEntry
	}

	if err := s.guard.AuthorizeTenantContext(ctx, req.TenantID, "user.create"); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to hash password")
	}

	u := &domain.User{
		Email:        req.Email,
		PasswordHash: string(hashed),
		Status:       domain.StatusActive,
		Metadata:     req.Metadata,
	}
	if req.TenantID != 0 {
		u.TenantID = sql.NullInt64{Int64: req.TenantID, Valid: true}
	}

	if err := s.store.Create(ctx, u); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, audit.Event{
			Kind:     audit.EventUserCreated,
			UserID:   u.ID,
			TenantID: req.TenantID,
			At:       time.Now(),
		})
	}

	return u, nil
}

// VerifyCredentials checks an email/password pair and returns the user on
// success. Inactive and soft-deleted users fail with the same error as a
// wrong password would, so the response does not leak account state.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrInvalidCredentials
		}
		return nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, xerrors.ErrInvalidCredentials
	}
	if !u.CanAuthenticate() {
		return nil, xerrors.ErrInvalidCredentials
	}

	return u, nil
}
