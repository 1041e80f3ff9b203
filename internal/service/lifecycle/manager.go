// internal/service/lifecycle/manager.go
package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authcore-service/internal/domain/audit"
	"authcore-service/internal/domain/role"
	"authcore-service/internal/domain/session"
	"authcore-service/internal/obs"
	xerrors "authcore-service/internal/pkg/errors"
	"authcore-service/internal/pkg/token"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Operation names passed to the tenant guard.
const (
	OpIssueSession = "session.issue"
	OpCreateUser   = "user.create"
)

type Config struct {
	// RotationEnabled controls whether refresh invalidates the presented
	// refresh token and hands out a new one. Single-use rotation is the
	// default and the reuse-detection guarantees assume it.
	RotationEnabled bool
}

// Manager is the sole authority for creating, validating, refreshing and
// revoking sessions. It holds no state of its own: all shared state lives in
// the stores, so any number of replicas can run it concurrently.
type Manager struct {
	sessions  SessionStore
	blacklist BlacklistStore
	users     UserStore
	grants    GrantStore
	guard     TenantGuard
	codec     *token.Codec
	recorder  Recorder
	denyCache DenyCache
	cfg       Config
	logger    *zap.Logger
}

func NewManager(
	sessions SessionStore,
	blacklist BlacklistStore,
	users UserStore,
	grants GrantStore,
	guard TenantGuard,
	codec *token.Codec,
	recorder Recorder,
	denyCache DenyCache,
	cfg Config,
	logger *zap.Logger,
) *Manager {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions:  sessions,
		blacklist: blacklist,
		users:     users,
		grants:    grants,
		guard:     guard,
		codec:     codec,
		recorder:  recorder,
		denyCache: denyCache,
		cfg:       cfg,
		logger:    logger,
	}
}

// IssueSession creates a new session for an already-authenticated user.
// Credential verification happens upstream; this is the point where user
// state, tenant state and the grant snapshot are decided.
func (m *Manager) IssueSession(ctx context.Context, userID int64, deviceInfo map[string]interface{}, requestedScopes []string) (*session.AuthSession, *session.TokenPair, error) {
	u, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, nil, xerrors.ErrNotFound
		}
		return nil, nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}
	if !u.CanAuthenticate() {
		return nil, nil, xerrors.ErrUserInactive
	}

	tenantID := int64(0)
	if u.TenantID.Valid {
		tenantID = u.TenantID.Int64
		if err := m.guard.AuthorizeTenantContext(ctx, tenantID, OpIssueSession); err != nil {
			return nil, nil, err
		}
	}

	grants, err := m.grants.ActiveGrants(ctx, userID)
	if err != nil {
		return nil, nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}
	permissions, scopes := snapshotGrants(grants, tenantID, requestedScopes)

	sessionID := uuid.NewString()

	access, err := m.codec.Generator.AccessToken(userID, tenantID, sessionID, permissions, scopes)
	if err != nil {
		return nil, nil, xerrors.Wrap(err, "failed to sign access token")
	}
	refresh, err := m.codec.Generator.RefreshToken(userID, tenantID, sessionID)
	if err != nil {
		return nil, nil, xerrors.Wrap(err, "failed to sign refresh token")
	}

	s := &session.AuthSession{
		UserID:           userID,
		TenantID:         u.TenantID,
		SessionID:        sessionID,
		AccessTokenHash:  access.Hash,
		AccessJTI:        access.JTI,
		RefreshTokenHash: sql.NullString{String: refresh.Hash, Valid: true},
		TokenType:        "Bearer",
		Status:           session.StatusActive,
		Permissions:      permissions,
		Scopes:           scopes,
		DeviceInfo:       deviceInfo,
		IssuedAt:         access.IssuedAt,
		ExpiresAt:        access.ExpiresAt,
		LastAccessAt:     access.IssuedAt,
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return nil, nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	if err := m.users.UpdateLastLogin(ctx, userID); err != nil {
		m.logger.Warn("failed to update last login", zap.Int64("user_id", userID), zap.Error(err))
	}

	obs.SessionsIssued.Inc()
	m.recorder.Record(ctx, audit.Event{
		Kind:      audit.EventSessionIssued,
		UserID:    userID,
		TenantID:  tenantID,
		SessionID: sessionID,
		At:        access.IssuedAt,
		Metadata:  map[string]interface{}{"scopes": scopes},
	})

	return s, &session.TokenPair{
		SessionID:    sessionID,
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    "Bearer",
		ExpiresAt:    access.ExpiresAt,
	}, nil
}

// ValidateAccessToken checks a presented access token against store state.
// Order matters: the blacklist is consulted first, before signature and
// expiry, so revocation wins over everything. Store failures deny.
func (m *Manager) ValidateAccessToken(ctx context.Context, raw string) (*session.Context, error) {
	unverified, err := token.UnverifiedClaims(raw)
	if err != nil {
		return nil, m.validationFailed(ctx, nil, "malformed", xerrors.ErrInvalidInput)
	}

	revoked, err := m.isBlacklisted(ctx, unverified.ID)
	if err != nil {
		obs.ValidationFailures.WithLabelValues("store_unavailable").Inc()
		return nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}
	if revoked {
		return nil, m.validationFailed(ctx, unverified, "revoked", xerrors.ErrTokenRevoked)
	}

	claims, err := m.codec.Verifier.VerifyAccessToken(raw)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			m.scheduleExpiry(token.Hash(raw))
			return nil, m.validationFailed(ctx, unverified, "expired", xerrors.ErrSessionExpired)
		}
		return nil, m.validationFailed(ctx, unverified, "invalid", xerrors.ErrInvalidInput)
	}

	s, err := m.sessions.FindByAccessHash(ctx, token.Hash(raw))
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			// Cryptographically valid but no live session record: the token
			// was rotated away or the session is gone. Deny.
			return nil, m.validationFailed(ctx, claims, "unknown_session", xerrors.ErrInvalidInput)
		}
		obs.ValidationFailures.WithLabelValues("store_unavailable").Inc()
		return nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	switch {
	case s.Status == session.StatusRevoked:
		return nil, m.validationFailed(ctx, claims, "revoked", xerrors.ErrTokenRevoked)
	case s.Status == session.StatusExpired || s.ExpiredAt(time.Now()):
		m.scheduleExpiryByID(s.ID)
		return nil, m.validationFailed(ctx, claims, "expired", xerrors.ErrSessionExpired)
	}

	go func(id int64) {
		if err := m.sessions.UpdateLastAccess(context.Background(), id); err != nil {
			m.logger.Warn("failed to update session activity", zap.Int64("session_row", id), zap.Error(err))
		}
	}(s.ID)

	tenantID := int64(0)
	if s.TenantID.Valid {
		tenantID = s.TenantID.Int64
	}

	// Snapshot semantics: grants come from the session row, never a live
	// role re-query. Callers needing fresh permissions re-authenticate.
	return &session.Context{
		UserID:      s.UserID,
		TenantID:    tenantID,
		SessionID:   s.SessionID,
		JTI:         s.AccessJTI,
		Permissions: []string(s.Permissions),
		Scopes:      []string(s.Scopes),
		ExpiresAt:   s.ExpiresAt,
	}, nil
}

// RefreshSession rotates a refresh token. The rotation itself is a single
// conditional update in the store; when two callers race with the same
// token, exactly one wins and the other surfaces ErrRefreshTokenReused.
func (m *Manager) RefreshSession(ctx context.Context, raw string) (*session.AuthSession, *session.TokenPair, error) {
	claims, err := m.codec.Verifier.VerifyRefreshToken(raw)
	if err != nil {
		return nil, nil, xerrors.ErrRefreshTokenInvalid
	}

	// A rotated-away refresh token sits in the blacklist under its own jti.
	// Finding it there is the reuse signal, not a plain invalid token.
	revoked, err := m.isBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}
	if revoked {
		m.reuseDetected(ctx, claims)
		return nil, nil, xerrors.ErrRefreshTokenReused
	}

	presentedHash := token.Hash(raw)
	s, err := m.sessions.FindByRefreshHash(ctx, presentedHash)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			// The token verifies but no row holds its hash. If its session is
			// still live under a different refresh hash, the token was rotated
			// away and this is a replay, even when the blacklist write for the
			// rotation has not landed yet.
			if cur, lookErr := m.sessions.FindBySessionID(ctx, claims.SessionID); lookErr == nil &&
				cur.Status == session.StatusActive && !cur.ExpiredAt(time.Now()) {
				m.reuseDetected(ctx, claims)
				return nil, nil, xerrors.ErrRefreshTokenReused
			}
			return nil, nil, xerrors.ErrRefreshTokenInvalid
		}
		return nil, nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}
	if s.Status != session.StatusActive || s.ExpiredAt(time.Now()) {
		return nil, nil, xerrors.ErrRefreshTokenInvalid
	}

	tenantID := int64(0)
	if s.TenantID.Valid {
		tenantID = s.TenantID.Int64
	}

	access, err := m.codec.Generator.AccessToken(s.UserID, tenantID, s.SessionID, s.Permissions, s.Scopes)
	if err != nil {
		return nil, nil, xerrors.Wrap(err, "failed to sign access token")
	}

	newRefreshHash := ""
	var refresh *token.Issued
	if m.cfg.RotationEnabled {
		refresh, err = m.codec.Generator.RefreshToken(s.UserID, tenantID, s.SessionID)
		if err != nil {
			return nil, nil, xerrors.Wrap(err, "failed to sign refresh token")
		}
		newRefreshHash = refresh.Hash
	}

	updated, err := m.sessions.Rotate(ctx, presentedHash, access.Hash, access.JTI, newRefreshHash, access.ExpiresAt)
	if err != nil {
		if errors.Is(err, xerrors.ErrRefreshTokenReused) {
			// Zero rows from the compare-and-swap. A session that expired or
			// was revoked between our read and the write is not a replay, so
			// re-read before raising the theft signal.
			if cur, lookErr := m.sessions.FindBySessionID(ctx, s.SessionID); lookErr == nil &&
				(cur.Status != session.StatusActive || cur.ExpiredAt(time.Now())) {
				return nil, nil, xerrors.ErrRefreshTokenInvalid
			}
			m.reuseDetected(ctx, claims)
			return nil, nil, xerrors.ErrRefreshTokenReused
		}
		return nil, nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	if m.cfg.RotationEnabled {
		// Retire the consumed refresh token so a later replay is recognized
		// as reuse rather than a token that never existed.
		entry := &session.BlacklistEntry{
			JTI:           claims.ID,
			UserID:        sql.NullInt64{Int64: s.UserID, Valid: true},
			TokenHash:     presentedHash,
			ExpiresAt:     claims.ExpiresAt.Time,
			RevokedAt:     time.Now(),
			RevokedReason: sql.NullString{String: "rotated", Valid: true},
		}
		if err := m.blacklist.Insert(ctx, entry); err != nil {
			m.logger.Error("failed to retire rotated refresh token", zap.String("session_id", s.SessionID), zap.Error(err))
		}
		m.cacheDenial(claims.ID, claims.ExpiresAt.Time)
	}

	obs.SessionsRefreshed.Inc()
	m.recorder.Record(ctx, audit.Event{
		Kind:      audit.EventSessionRefreshed,
		UserID:    s.UserID,
		TenantID:  tenantID,
		SessionID: s.SessionID,
		At:        access.IssuedAt,
	})

	pair := &session.TokenPair{
		SessionID:   s.SessionID,
		AccessToken: access.Token,
		TokenType:   "Bearer",
		ExpiresAt:   access.ExpiresAt,
	}
	if refresh != nil {
		pair.RefreshToken = refresh.Token
	}

	return updated, pair, nil
}

// RevokeSession terminates a session and blacklists its access token.
// callerID scopes the operation: a non-zero caller may only revoke their own
// sessions, and a foreign session id answers ErrNotFound so its existence is
// not disclosed. callerID 0 is the unscoped platform/system path.
// Revoking an already-terminal session is a no-op success so client retries
// never storm.
func (m *Manager) RevokeSession(ctx context.Context, callerID int64, sessionID, revokedBy, reason string) error {
	if callerID != 0 {
		s, err := m.sessions.FindBySessionID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, xerrors.ErrNotFound) {
				return xerrors.ErrNotFound
			}
			return xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
		}
		if s.UserID != callerID {
			return xerrors.ErrNotFound
		}
	}

	revoked, err := m.sessions.Revoke(ctx, sessionID, revokedBy, reason)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return xerrors.ErrNotFound
		}
		return xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}
	if !revoked {
		return nil
	}

	s, err := m.sessions.FindBySessionID(ctx, sessionID)
	if err != nil {
		m.logger.Warn("revoked session not readable after revoke", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	m.cacheDenial(s.AccessJTI, s.ExpiresAt)

	tenantID := int64(0)
	if s.TenantID.Valid {
		tenantID = s.TenantID.Int64
	}

	obs.SessionsRevoked.Inc()
	m.recorder.Record(ctx, audit.Event{
		Kind:      audit.EventSessionRevoked,
		UserID:    s.UserID,
		TenantID:  tenantID,
		SessionID: sessionID,
		At:        time.Now(),
		Metadata:  map[string]interface{}{"revoked_by": revokedBy, "reason": reason},
	})

	return nil
}

// RevokeAllSessionsForUser is the bulk variant used on password change or
// compromise. Partial completion under a crash is safe: revocation is
// monotonic and idempotent, so callers retry until the count matches.
func (m *Manager) RevokeAllSessionsForUser(ctx context.Context, userID int64, revokedBy, reason string) (int64, error) {
	count, err := m.sessions.RevokeAllForUser(ctx, userID, revokedBy, reason)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	if count > 0 {
		obs.SessionsRevoked.Add(float64(count))
		m.recorder.Record(ctx, audit.Event{
			Kind:     audit.EventRevokeAll,
			UserID:   userID,
			At:       time.Now(),
			Metadata: map[string]interface{}{"revoked_by": revokedBy, "reason": reason, "count": count},
		})
	}

	return count, nil
}

// ListSessions returns the listing view of a user's sessions. The stored
// status can lag reality between sweeps, so overdue rows are reported as
// expired regardless of what the row says.
func (m *Manager) ListSessions(ctx context.Context, userID int64, currentSessionID string) ([]*session.SessionInfo, error) {
	rows, err := m.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStoreUnavailable, err.Error())
	}

	now := time.Now()
	out := make([]*session.SessionInfo, 0, len(rows))
	for _, s := range rows {
		status := s.Status
		if status == session.StatusActive && s.ExpiredAt(now) {
			status = session.StatusExpired
		}
		out = append(out, &session.SessionInfo{
			SessionID:    s.SessionID,
			Status:       status,
			DeviceInfo:   s.DeviceInfo,
			IssuedAt:     s.IssuedAt,
			ExpiresAt:    s.ExpiresAt,
			LastAccessAt: s.LastAccessAt,
			Current:      s.SessionID == currentSessionID,
		})
	}

	return out, nil
}

// ---- helpers ----

func (m *Manager) isBlacklisted(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	if m.denyCache != nil {
		hit, err := m.denyCache.Contains(ctx, jti)
		if err != nil {
			// Cache outage is not a decision either way; fall through to
			// the store, which is authoritative.
			m.logger.Warn("deny cache unavailable", zap.Error(err))
		} else if hit {
			return true, nil
		}
	}
	return m.blacklist.IsBlacklisted(ctx, jti)
}

func (m *Manager) cacheDenial(jti string, expiresAt time.Time) {
	if m.denyCache == nil || jti == "" {
		return
	}
	if err := m.denyCache.Add(context.Background(), jti, expiresAt); err != nil {
		m.logger.Warn("failed to cache denial", zap.String("jti", jti), zap.Error(err))
	}
}

func (m *Manager) validationFailed(ctx context.Context, claims *token.Claims, reason string, sentinel error) error {
	obs.ValidationFailures.WithLabelValues(reason).Inc()

	e := audit.Event{
		Kind:     audit.EventValidationFailed,
		At:       time.Now(),
		Metadata: map[string]interface{}{"reason": reason},
	}
	if claims != nil {
		e.UserID = claims.UserID
		e.TenantID = claims.TenantID
		e.SessionID = claims.SessionID
	}
	m.recorder.Record(ctx, e)

	return sentinel
}

func (m *Manager) reuseDetected(ctx context.Context, claims *token.Claims) {
	obs.ReuseDetected.Inc()
	m.logger.Warn("refresh token reuse detected",
		zap.Int64("user_id", claims.UserID),
		zap.String("session_id", claims.SessionID),
	)
	m.recorder.Record(ctx, audit.Event{
		Kind:      audit.EventReuseDetected,
		UserID:    claims.UserID,
		TenantID:  claims.TenantID,
		SessionID: claims.SessionID,
		At:        time.Now(),
	})
}

func (m *Manager) scheduleExpiry(accessHash string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s, err := m.sessions.FindByAccessHash(ctx, accessHash)
		if err != nil {
			return
		}
		if err := m.sessions.MarkExpiredByID(ctx, s.ID); err != nil {
			m.logger.Warn("failed to mark session expired", zap.Int64("session_row", s.ID), zap.Error(err))
		}
	}()
}

func (m *Manager) scheduleExpiryByID(id int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.sessions.MarkExpiredByID(ctx, id); err != nil {
			m.logger.Warn("failed to mark session expired", zap.Int64("session_row", id), zap.Error(err))
		}
	}()
}

// snapshotGrants flattens active grants into the ordered permission and
// scope lists frozen onto the session. Scopes are the role names; when the
// caller requested a subset, only the requested roles contribute.
// Roles scoped to a different tenant never leak into the snapshot.
func snapshotGrants(grants []*role.Role, tenantID int64, requestedScopes []string) ([]string, []string) {
	requested := map[string]bool{}
	for _, s := range requestedScopes {
		requested[s] = true
	}

	var permissions, scopes []string
	seenPerm := map[string]bool{}
	seenScope := map[string]bool{}

	for _, g := range grants {
		if g.TenantID.Valid && g.TenantID.Int64 != tenantID {
			continue
		}
		if len(requestedScopes) > 0 && !requested[g.Name] {
			continue
		}
		if !seenScope[g.Name] {
			seenScope[g.Name] = true
			scopes = append(scopes, g.Name)
		}
		for _, p := range g.Permissions {
			if !seenPerm[p] {
				seenPerm[p] = true
				permissions = append(permissions, p)
			}
		}
	}

	return permissions, scopes
}
