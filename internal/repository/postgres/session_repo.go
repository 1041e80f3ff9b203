// internal/repository/postgres/session_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"authcore-service/internal/domain/session"
	xerrors "authcore-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id, user_id, tenant_id, session_id, access_token_hash, access_jti,
	refresh_token_hash, token_type, status, permissions, scopes, device_info,
	issued_at, expires_at, last_access_at, revoked_at, revoked_by
`

func scanSession(row pgx.Row) (*session.AuthSession, error) {
	var s session.AuthSession
	var deviceJSON []byte

	err := row.Scan(
		&s.ID, &s.UserID, &s.TenantID, &s.SessionID, &s.AccessTokenHash, &s.AccessJTI,
		&s.RefreshTokenHash, &s.TokenType, &s.Status, &s.Permissions, &s.Scopes, &deviceJSON,
		&s.IssuedAt, &s.ExpiresAt, &s.LastAccessAt, &s.RevokedAt, &s.RevokedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if len(deviceJSON) > 0 {
		if err := json.Unmarshal(deviceJSON, &s.DeviceInfo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device info: %w", err)
		}
	}

	return &s, nil
}

// Create persists a new session row.
func (r *SessionRepository) Create(ctx context.Context, s *session.AuthSession) error {
	query := `
		INSERT INTO auth_sessions (
			user_id, tenant_id, session_id, access_token_hash, access_jti,
			refresh_token_hash, token_type, status, permissions, scopes,
			device_info, issued_at, expires_at, last_access_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $12)
		RETURNING id
	`

	var deviceJSON []byte
	var err error
	if s.DeviceInfo != nil {
		deviceJSON, err = json.Marshal(s.DeviceInfo)
		if err != nil {
			return fmt.Errorf("failed to marshal device info: %w", err)
		}
	}

	err = r.db.QueryRow(
		ctx, query,
		s.UserID, s.TenantID, s.SessionID, s.AccessTokenHash, s.AccessJTI,
		s.RefreshTokenHash, s.TokenType, s.Status, s.Permissions, s.Scopes,
		deviceJSON, s.IssuedAt, s.ExpiresAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.LastAccessAt = s.IssuedAt

	return nil
}

// FindBySessionID retrieves a session by its client-facing identifier,
// whatever its status.
func (r *SessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*session.AuthSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE session_id = $1`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

// FindByAccessHash retrieves a session by the hash of a presented access
// token. Status and expiry are intentionally not filtered here: the caller
// decides between expired, revoked and valid.
func (r *SessionRepository) FindByAccessHash(ctx context.Context, hash string) (*session.AuthSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE access_token_hash = $1`
	return scanSession(r.db.QueryRow(ctx, query, hash))
}

// FindByRefreshHash retrieves a session by the hash of a presented refresh
// token.
func (r *SessionRepository) FindByRefreshHash(ctx context.Context, hash string) (*session.AuthSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE refresh_token_hash = $1`
	return scanSession(r.db.QueryRow(ctx, query, hash))
}

// ListByUser returns every session row for a user, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID int64) ([]*session.AuthSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE user_id = $1 ORDER BY issued_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.AuthSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// Rotate is the compare-and-swap at the heart of refresh: the update only
// lands if the stored refresh hash still equals the presented one and the
// session is still live. Zero rows affected means the token was already
// consumed; the caller must treat that as reuse, not retry.
func (r *SessionRepository) Rotate(ctx context.Context, presentedRefreshHash, newAccessHash, newAccessJTI, newRefreshHash string, newExpiresAt time.Time) (*session.AuthSession, error) {
	query := `
		UPDATE auth_sessions
		SET access_token_hash = $1,
		    access_jti = $2,
		    refresh_token_hash = $3,
		    expires_at = $4,
		    last_access_at = NOW()
		WHERE refresh_token_hash = $5
		  AND status = 'active'
		  AND expires_at > NOW()
		RETURNING ` + sessionColumns

	var refresh interface{}
	if newRefreshHash != "" {
		refresh = newRefreshHash
	} else {
		// Rotation disabled: the presented token stays the stored one.
		refresh = presentedRefreshHash
	}

	s, err := scanSession(r.db.QueryRow(ctx, query, newAccessHash, newAccessJTI, refresh, newExpiresAt, presentedRefreshHash))
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, xerrors.ErrRefreshTokenReused
	}
	return s, err
}

// Revoke flips a session to revoked and inserts the blacklist row for its
// access jti in the same transaction, so no concurrent validation can see
// "revoked but not blacklisted". Returns false without error when the
// session was already terminal: re-revoking is a no-op success.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID, revokedBy, reason string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin revoke tx: %w", err)
	}
	defer tx.Rollback(ctx)

	update := `
		UPDATE auth_sessions
		SET status = 'revoked', revoked_at = NOW(), revoked_by = $1,
		    refresh_token_hash = NULL
		WHERE session_id = $2 AND status = 'active'
		RETURNING user_id, access_jti, access_token_hash, expires_at
	`

	var userID int64
	var jti, accessHash string
	var expiresAt time.Time
	err = tx.QueryRow(ctx, update, revokedBy, sessionID).Scan(&userID, &jti, &accessHash, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already revoked or expired, or unknown. Distinguish for the caller.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM auth_sessions WHERE session_id = $1)`, sessionID).Scan(&exists); err != nil {
			return false, fmt.Errorf("failed to check session: %w", err)
		}
		if !exists {
			return false, xerrors.ErrNotFound
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to revoke session: %w", err)
	}

	insert := `
		INSERT INTO jwt_blacklist (jti, user_id, token_hash, expires_at, revoked_at, revoked_by, revoked_reason)
		VALUES ($1, $2, $3, $4, NOW(), $5, $6)
		ON CONFLICT (jti) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insert, jti, userID, accessHash, expiresAt, revokedBy, reason); err != nil {
		return false, fmt.Errorf("failed to blacklist session token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit revoke tx: %w", err)
	}

	return true, nil
}

// RevokeAllForUser revokes every active session of a user and blacklists
// their access tokens, returning how many were revoked.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID int64, revokedBy, reason string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin revoke-all tx: %w", err)
	}
	defer tx.Rollback(ctx)

	update := `
		UPDATE auth_sessions
		SET status = 'revoked', revoked_at = NOW(), revoked_by = $1,
		    refresh_token_hash = NULL
		WHERE user_id = $2 AND status = 'active'
		RETURNING access_jti, access_token_hash, expires_at
	`

	rows, err := tx.Query(ctx, update, revokedBy, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", err)
	}

	type revoked struct {
		jti       string
		hash      string
		expiresAt time.Time
	}
	var toBlacklist []revoked
	for rows.Next() {
		var rv revoked
		if err := rows.Scan(&rv.jti, &rv.hash, &rv.expiresAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan revoked session: %w", err)
		}
		toBlacklist = append(toBlacklist, rv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", err)
	}

	insert := `
		INSERT INTO jwt_blacklist (jti, user_id, token_hash, expires_at, revoked_at, revoked_by, revoked_reason)
		VALUES ($1, $2, $3, $4, NOW(), $5, $6)
		ON CONFLICT (jti) DO NOTHING
	`
	for _, rv := range toBlacklist {
		if _, err := tx.Exec(ctx, insert, rv.jti, userID, rv.hash, rv.expiresAt, revokedBy, reason); err != nil {
			return 0, fmt.Errorf("failed to blacklist session token: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit revoke-all tx: %w", err)
	}

	return int64(len(toBlacklist)), nil
}

// UpdateLastAccess bumps the activity timestamp.
func (r *SessionRepository) UpdateLastAccess(ctx context.Context, id int64) error {
	query := `UPDATE auth_sessions SET last_access_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// MarkExpired writes status='expired' on overdue active rows so listings
// stay truthful. Authorization never depends on this write: the read path
// compares expires_at itself.
func (r *SessionRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE auth_sessions SET status = 'expired' WHERE status = 'active' AND expires_at <= $1`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkExpiredByID is the best-effort single-row variant scheduled from the
// validation path.
func (r *SessionRepository) MarkExpiredByID(ctx context.Context, id int64) error {
	query := `UPDATE auth_sessions SET status = 'expired' WHERE id = $1 AND status = 'active'`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// CountActiveForUser counts live sessions, for revoke-all verification.
func (r *SessionRepository) CountActiveForUser(ctx context.Context, userID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM auth_sessions WHERE user_id = $1 AND status = 'active' AND expires_at > NOW()`
	var n int64
	err := r.db.QueryRow(ctx, query, userID).Scan(&n)
	return n, err
}
