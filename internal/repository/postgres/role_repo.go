// internal/repository/postgres/role_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"authcore-service/internal/domain/role"
	xerrors "authcore-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoleRepository struct {
	db *pgxpool.Pool
}

func NewRoleRepository(db *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{db: db}
}

// ActiveGrants returns the roles a user currently holds: assignment rows
// whose expiry has not passed, joined to their role. Expired grants stay in
// the table but never appear here. Tenant-global and platform-global roles
// are both eligible; the caller already knows the user's tenant.
func (r *RoleRepository) ActiveGrants(ctx context.Context, userID int64) ([]*role.Role, error) {
	query := `
		SELECT ro.id, ro.name, ro.description, ro.permissions, ro.is_system_role,
		       ro.tenant_id, ro.created_at, ro.updated_at
		FROM user_roles ur
		JOIN roles ro ON ur.role_id = ro.id
		WHERE ur.user_id = $1
		  AND (ur.expires_at IS NULL OR ur.expires_at > NOW())
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active grants: %w", err)
	}
	defer rows.Close()

	var roles []*role.Role
	for rows.Next() {
		var ro role.Role
		if err := rows.Scan(
			&ro.ID, &ro.Name, &ro.Description, &ro.Permissions, &ro.IsSystemRole,
			&ro.TenantID, &ro.CreatedAt, &ro.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &ro)
	}

	return roles, rows.Err()
}

// FindByName gets a role by name within a tenant; tenantID 0 means a
// platform-global role.
func (r *RoleRepository) FindByName(ctx context.Context, tenantID int64, name string) (*role.Role, error) {
	query := `
		SELECT id, name, description, permissions, is_system_role, tenant_id, created_at, updated_at
		FROM roles
		WHERE name = $1 AND ($2 = 0 AND tenant_id IS NULL OR tenant_id = $2)
	`

	var ro role.Role
	err := r.db.QueryRow(ctx, query, name, tenantID).Scan(
		&ro.ID, &ro.Name, &ro.Description, &ro.Permissions, &ro.IsSystemRole,
		&ro.TenantID, &ro.CreatedAt, &ro.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role: %w", err)
	}

	return &ro, nil
}

// Assign grants a role to a user. Re-assigning refreshes the grant.
func (r *RoleRepository) Assign(ctx context.Context, ur *role.UserRole) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, granted_by, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, role_id) DO UPDATE
		SET granted_by = $3, granted_at = NOW(), expires_at = $4
	`
	_, err := r.db.Exec(ctx, query, ur.UserID, ur.RoleID, ur.GrantedBy, ur.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}
