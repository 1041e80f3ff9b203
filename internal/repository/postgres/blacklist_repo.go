// internal/repository/postgres/blacklist_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authcore-service/internal/domain/session"
	xerrors "authcore-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BlacklistRepository struct {
	db *pgxpool.Pool
}

func NewBlacklistRepository(db *pgxpool.Pool) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// Insert adds a denylist entry. Inserting an already-present jti is a no-op
// so revocation stays idempotent.
func (r *BlacklistRepository) Insert(ctx context.Context, e *session.BlacklistEntry) error {
	query := `
		INSERT INTO jwt_blacklist (jti, user_id, token_hash, expires_at, revoked_at, revoked_by, revoked_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (jti) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, e.JTI, e.UserID, e.TokenHash, e.ExpiresAt, e.RevokedAt, e.RevokedBy, e.RevokedReason)
	if err != nil {
		return fmt.Errorf("failed to insert blacklist entry: %w", err)
	}
	return nil
}

// IsBlacklisted is the single indexed lookup on the validation hot path.
// An error here must be surfaced, never swallowed: the caller denies on it.
func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM jwt_blacklist WHERE jti = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, jti).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists, nil
}

// Find retrieves a blacklist entry by jti.
func (r *BlacklistRepository) Find(ctx context.Context, jti string) (*session.BlacklistEntry, error) {
	query := `
		SELECT id, jti, user_id, token_hash, expires_at, revoked_at, revoked_by, revoked_reason
		FROM jwt_blacklist
		WHERE jti = $1
	`

	var e session.BlacklistEntry
	err := r.db.QueryRow(ctx, query, jti).Scan(
		&e.ID, &e.JTI, &e.UserID, &e.TokenHash, &e.ExpiresAt, &e.RevokedAt, &e.RevokedBy, &e.RevokedReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find blacklist entry: %w", err)
	}

	return &e, nil
}

// Purge deletes entries whose token has expired on its own. Safe to delay:
// an expired token fails verification regardless of blacklist presence, so
// this is only a storage-growth concern.
func (r *BlacklistRepository) Purge(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM jwt_blacklist WHERE expires_at < $1`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge blacklist: %w", err)
	}
	return tag.RowsAffected(), nil
}
