// internal/repository/postgres/notification_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"authcore-service/internal/domain/notification"

	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create persists a user notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO user_notifications (user_id, title, message, type, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	var metadataJSON []byte
	var err error
	if n.Metadata != nil {
		metadataJSON, err = json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal notification metadata: %w", err)
		}
	}

	err = r.db.QueryRow(ctx, query, n.UserID, n.Title, n.Message, n.Type, metadataJSON).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByUser returns the newest notifications for a user.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, title, message, type, metadata, read_at, created_at
		FROM user_notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		var n notification.Notification
		var metadataJSON []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &metadataJSON, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &n.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification metadata: %w", err)
			}
		}
		out = append(out, &n)
	}

	return out, rows.Err()
}
