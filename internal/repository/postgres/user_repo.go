// internal/repository/postgres/user_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"authcore-service/internal/domain/user"
	xerrors "authcore-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, email, password_hash, status, tenant_id, metadata,
	last_login_at, created_at, updated_at, deleted_at
`

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	var metadataJSON []byte

	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Status, &u.TenantID, &metadataJSON,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &u.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &u, nil
}

// FindByID retrieves a user by ID. Soft-deleted rows are returned so the
// caller can distinguish "deleted" from "never existed".
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// FindByEmail retrieves a non-deleted user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (email, password_hash, status, tenant_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	var metadataJSON []byte
	var err error
	if u.Metadata != nil {
		metadataJSON, err = json.Marshal(u.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err = r.db.QueryRow(ctx, query, u.Email, u.PasswordHash, u.Status, u.TenantID, metadataJSON).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// ExistsByEmail checks whether a live user with this email exists.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL)`
	var exists bool
	err := r.db.QueryRow(ctx, query, email).Scan(&exists)
	return exists, err
}

// CountActiveInTenant counts non-deleted users of a tenant, for the
// capacity check at user creation.
func (r *UserRepository) CountActiveInTenant(ctx context.Context, tenantID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM users WHERE tenant_id = $1 AND deleted_at IS NULL`
	var n int64
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&n)
	return n, err
}

// UpdateLastLogin stamps a successful authentication.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, time.Now(), id)
	return err
}

// UpdateStatus transitions a user between active and suspended.
func (r *UserRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE users SET status = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// SoftDelete marks a user deleted. The row stays for audit back-references.
func (r *UserRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `UPDATE users SET status = 'deleted', deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
