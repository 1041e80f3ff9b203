// internal/repository/postgres/tenant_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"authcore-service/internal/domain/tenant"
	xerrors "authcore-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TenantRepository struct {
	db *pgxpool.Pool
}

func NewTenantRepository(db *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `
	id, slug, domain, name, status, plan, max_users, settings, metadata,
	created_at, updated_at, deleted_at
`

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var settingsJSON, metadataJSON []byte

	err := row.Scan(
		&t.ID, &t.Slug, &t.Domain, &t.Name, &t.Status, &t.Plan, &t.MaxUsers,
		&settingsJSON, &metadataJSON, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &t.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &t, nil
}

// FindByID retrieves a tenant by ID.
func (r *TenantRepository) FindByID(ctx context.Context, id int64) (*tenant.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(r.db.QueryRow(ctx, query, id))
}

// FindBySlug retrieves a non-deleted tenant by slug.
func (r *TenantRepository) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1 AND deleted_at IS NULL`
	return scanTenant(r.db.QueryRow(ctx, query, slug))
}
