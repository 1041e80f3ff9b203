// internal/repository/postgres/audit_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"authcore-service/internal/domain/audit"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// AppendLog writes an audit row. The table is append-only; there is no
// update or delete path.
func (r *AuditRepository) AppendLog(ctx context.Context, l *audit.Log) error {
	query := `
		INSERT INTO audit_logs (id, kind, user_id, tenant_id, session_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var metadataJSON []byte
	var err error
	if l.Metadata != nil {
		metadataJSON, err = json.Marshal(l.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	if _, err := r.db.Exec(ctx, query, l.ID, l.Kind, l.UserID, l.TenantID, l.SessionID, metadataJSON); err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}

// AppendActivity writes a user activity row.
func (r *AuditRepository) AppendActivity(ctx context.Context, a *audit.Activity) error {
	query := `
		INSERT INTO user_activities (id, user_id, action, metadata)
		VALUES ($1, $2, $3, $4)
	`

	var metadataJSON []byte
	var err error
	if a.Metadata != nil {
		metadataJSON, err = json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal activity metadata: %w", err)
		}
	}

	if _, err := r.db.Exec(ctx, query, a.ID, a.UserID, a.Action, metadataJSON); err != nil {
		return fmt.Errorf("failed to append user activity: %w", err)
	}
	return nil
}
