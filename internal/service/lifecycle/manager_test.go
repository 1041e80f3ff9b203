// internal/service/lifecycle/manager_test.go
package lifecycle

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore-service/internal/domain/audit"
	"authcore-service/internal/domain/role"
	"authcore-service/internal/domain/session"
	"authcore-service/internal/domain/user"
	xerrors "authcore-service/internal/pkg/errors"
	"authcore-service/internal/pkg/token"
)

// ---- in-memory fakes ----

type fakeBlacklistStore struct {
	mu      sync.Mutex
	entries map[string]*session.BlacklistEntry
	err     error
}

func newFakeBlacklist() *fakeBlacklistStore {
	return &fakeBlacklistStore{entries: map[string]*session.BlacklistEntry{}}
}

func (f *fakeBlacklistStore) Insert(ctx context.Context, e *session.BlacklistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.entries[e.JTI]; !ok {
		f.entries[e.JTI] = e
	}
	return nil
}

func (f *fakeBlacklistStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.entries[jti]
	return ok, nil
}

func (f *fakeBlacklistStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for jti, e := range f.entries {
		if e.ExpiresAt.Before(now) {
			delete(f.entries, jti)
			n++
		}
	}
	return n, nil
}

type fakeSessionStore struct {
	mu        sync.Mutex
	rows      map[string]*session.AuthSession
	blacklist *fakeBlacklistStore
	nextID    int64
	err       error

	// beforeRotate, when set, runs at the top of Rotate so tests can
	// interleave a state change between the manager's read and its write.
	beforeRotate func()
}

func newFakeSessions(blacklist *fakeBlacklistStore) *fakeSessionStore {
	return &fakeSessionStore{rows: map[string]*session.AuthSession{}, blacklist: blacklist}
}

func (f *fakeSessionStore) Create(ctx context.Context, s *session.AuthSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.nextID++
	s.ID = f.nextID
	cp := *s
	f.rows[s.SessionID] = &cp
	return nil
}

func (f *fakeSessionStore) FindBySessionID(ctx context.Context, sessionID string) (*session.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.rows[sessionID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) FindByAccessHash(ctx context.Context, hash string) (*session.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.rows {
		if s.AccessTokenHash == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeSessionStore) FindByRefreshHash(ctx context.Context, hash string) (*session.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.rows {
		if s.RefreshTokenHash.Valid && s.RefreshTokenHash.String == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeSessionStore) ListByUser(ctx context.Context, userID int64) ([]*session.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*session.AuthSession
	for _, s := range f.rows {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) Rotate(ctx context.Context, presentedRefreshHash, newAccessHash, newAccessJTI, newRefreshHash string, newExpiresAt time.Time) (*session.AuthSession, error) {
	if f.beforeRotate != nil {
		f.beforeRotate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.rows {
		if !s.RefreshTokenHash.Valid || s.RefreshTokenHash.String != presentedRefreshHash {
			continue
		}
		if s.Status != session.StatusActive || !s.ExpiresAt.After(time.Now()) {
			continue
		}
		s.AccessTokenHash = newAccessHash
		s.AccessJTI = newAccessJTI
		if newRefreshHash != "" {
			s.RefreshTokenHash = sql.NullString{String: newRefreshHash, Valid: true}
		}
		s.ExpiresAt = newExpiresAt
		s.LastAccessAt = time.Now()
		cp := *s
		return &cp, nil
	}
	return nil, xerrors.ErrRefreshTokenReused
}

func (f *fakeSessionStore) Revoke(ctx context.Context, sessionID, revokedBy, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	s, ok := f.rows[sessionID]
	if !ok {
		return false, xerrors.ErrNotFound
	}
	if s.Status != session.StatusActive {
		return false, nil
	}
	s.Status = session.StatusRevoked
	s.RevokedAt = sql.NullTime{Time: time.Now(), Valid: true}
	s.RevokedBy = sql.NullString{String: revokedBy, Valid: true}
	s.RefreshTokenHash = sql.NullString{}
	f.blacklist.entries[s.AccessJTI] = &session.BlacklistEntry{
		JTI:       s.AccessJTI,
		TokenHash: s.AccessTokenHash,
		ExpiresAt: s.ExpiresAt,
		RevokedAt: time.Now(),
	}
	return true, nil
}

func (f *fakeSessionStore) RevokeAllForUser(ctx context.Context, userID int64, revokedBy, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, s := range f.rows {
		if s.UserID != userID || s.Status != session.StatusActive {
			continue
		}
		s.Status = session.StatusRevoked
		s.RevokedAt = sql.NullTime{Time: time.Now(), Valid: true}
		s.RevokedBy = sql.NullString{String: revokedBy, Valid: true}
		s.RefreshTokenHash = sql.NullString{}
		f.blacklist.entries[s.AccessJTI] = &session.BlacklistEntry{
			JTI:       s.AccessJTI,
			TokenHash: s.AccessTokenHash,
			ExpiresAt: s.ExpiresAt,
			RevokedAt: time.Now(),
		}
		n++
	}
	return n, nil
}

func (f *fakeSessionStore) UpdateLastAccess(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.ID == id {
			s.LastAccessAt = time.Now()
		}
	}
	return nil
}

func (f *fakeSessionStore) MarkExpiredByID(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.ID == id && s.Status == session.StatusActive {
			s.Status = session.StatusExpired
		}
	}
	return nil
}

func (f *fakeSessionStore) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.rows {
		if s.Status == session.StatusActive && !s.ExpiresAt.After(now) {
			s.Status = session.StatusExpired
			n++
		}
	}
	return n, nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[int64]*user.User
}

func newFakeUsers(users ...*user.User) *fakeUserStore {
	f := &fakeUserStore{users: map[int64]*user.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserStore) FindByID(ctx context.Context, id int64) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) UpdateLastLogin(ctx context.Context, id int64) error { return nil }

type fakeGrantStore struct {
	grants []*role.Role
	err    error
}

func (f *fakeGrantStore) ActiveGrants(ctx context.Context, userID int64) ([]*role.Role, error) {
	return f.grants, f.err
}

type fakeGuard struct {
	err   error
	calls []string
}

func (f *fakeGuard) AuthorizeTenantContext(ctx context.Context, tenantID int64, operation string) error {
	f.calls = append(f.calls, operation)
	return f.err
}

type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureRecorder) Record(ctx context.Context, e audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureRecorder) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Kind)
	}
	return out
}

// ---- test wiring ----

type fixture struct {
	manager   *Manager
	sessions  *fakeSessionStore
	blacklist *fakeBlacklistStore
	users     *fakeUserStore
	grants    *fakeGrantStore
	guard     *fakeGuard
	recorder  *captureRecorder
	codec     *token.Codec
}

func activeUser(id int64) *user.User {
	return &user.User{ID: id, Email: "u@example.com", Status: user.StatusActive}
}

func adminGrant() *role.Role {
	return &role.Role{ID: 1, Name: "admin", Permissions: []string{"users:create", "users:read"}}
}

func newTestCodec(t *testing.T, accessTTL time.Duration) *token.Codec {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return token.Build(priv, &priv.PublicKey, token.Config{
		Issuer:     "authcore-test",
		Audience:   "authcore-api",
		KID:        "test-1",
		AccessTTL:  accessTTL,
		RefreshTTL: time.Hour,
	})
}

func newFixture(t *testing.T, opts ...func(*fixture)) *fixture {
	t.Helper()
	f := &fixture{
		blacklist: newFakeBlacklist(),
		users:     newFakeUsers(activeUser(1)),
		grants:    &fakeGrantStore{grants: []*role.Role{adminGrant()}},
		guard:     &fakeGuard{},
		recorder:  &captureRecorder{},
	}
	f.sessions = newFakeSessions(f.blacklist)
	f.codec = newTestCodec(t, 15*time.Minute)
	for _, opt := range opts {
		opt(f)
	}
	f.manager = NewManager(
		f.sessions, f.blacklist, f.users, f.grants, f.guard,
		f.codec, f.recorder, nil,
		Config{RotationEnabled: true}, nil,
	)
	return f
}

// ---- tests ----

func TestIssueSessionAndValidate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s, pair, err := f.manager.IssueSession(ctx, 1, map[string]interface{}{"os": "linux"}, nil)
	require.NoError(t, err)
	require.NotNil(t, pair)

	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, s.SessionID, pair.SessionID)
	assert.True(t, s.ExpiresAt.After(s.IssuedAt))

	// The store holds hashes, never raw token material.
	stored, err := f.sessions.FindBySessionID(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, token.Hash(pair.AccessToken), stored.AccessTokenHash)
	assert.Equal(t, token.Hash(pair.RefreshToken), stored.RefreshTokenHash.String)
	assert.NotEqual(t, pair.AccessToken, stored.AccessTokenHash)

	sc, err := f.manager.ValidateAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sc.UserID)
	assert.Equal(t, s.SessionID, sc.SessionID)
	assert.Equal(t, []string{"users:create", "users:read"}, sc.Permissions)
	assert.Equal(t, []string{"admin"}, sc.Scopes)

	assert.Contains(t, f.recorder.kinds(), audit.EventSessionIssued)
}

func TestIssueSessionUserStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		user    *user.User
		wantErr error
	}{
		{
			name:    "suspended user",
			user:    &user.User{ID: 1, Status: user.StatusSuspended},
			wantErr: xerrors.ErrUserInactive,
		},
		{
			name: "soft-deleted user with active status",
			user: &user.User{
				ID:        1,
				Status:    user.StatusActive,
				DeletedAt: sql.NullTime{Time: time.Now(), Valid: true},
			},
			wantErr: xerrors.ErrUserInactive,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, func(f *fixture) {
				f.users = newFakeUsers(tt.user)
			})

			_, _, err := f.manager.IssueSession(context.Background(), 1, nil, nil)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.sessions.rows)
		})
	}
}

func TestIssueSessionUnknownUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, _, err := f.manager.IssueSession(context.Background(), 99, nil, nil)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestIssueSessionGuardDenies(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(f *fixture) {
		u := activeUser(1)
		u.TenantID = sql.NullInt64{Int64: 7, Valid: true}
		f.users = newFakeUsers(u)
		f.guard = &fakeGuard{err: xerrors.ErrTenantSuspended}
	})

	_, _, err := f.manager.IssueSession(context.Background(), 1, nil, nil)
	assert.ErrorIs(t, err, xerrors.ErrTenantSuspended)
	assert.Equal(t, []string{OpIssueSession}, f.guard.calls)
	assert.Empty(t, f.sessions.rows)
}

func TestIssueSessionSnapshot(t *testing.T) {
	t.Parallel()

	otherTenant := &role.Role{
		ID:          2,
		Name:        "other-admin",
		Permissions: []string{"secret:read"},
		TenantID:    sql.NullInt64{Int64: 99, Valid: true},
	}
	viewer := &role.Role{ID: 3, Name: "viewer", Permissions: []string{"users:read"}}

	t.Run("cross-tenant roles never leak", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(f *fixture) {
			f.grants = &fakeGrantStore{grants: []*role.Role{adminGrant(), otherTenant}}
		})

		s, _, err := f.manager.IssueSession(context.Background(), 1, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"users:create", "users:read"}, []string(s.Permissions))
		assert.NotContains(t, []string(s.Scopes), "other-admin")
	})

	t.Run("requested scopes narrow the snapshot", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(f *fixture) {
			f.grants = &fakeGrantStore{grants: []*role.Role{adminGrant(), viewer}}
		})

		s, _, err := f.manager.IssueSession(context.Background(), 1, nil, []string{"viewer"})
		require.NoError(t, err)
		assert.Equal(t, []string{"viewer"}, []string(s.Scopes))
		assert.Equal(t, []string{"users:read"}, []string(s.Permissions))
	})
}

func TestValidateRevokedWinsOverSignature(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	require.NoError(t, f.manager.RevokeSession(ctx, 1, pair.SessionID, "user:1", "logout"))

	_, err = f.manager.ValidateAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrTokenRevoked)
}

func TestValidateBlacklistCheckedBeforeSignature(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	// Sign with a key the verifier does not trust. The jti is blacklisted,
	// so the verdict must be "revoked", not "invalid signature".
	rogue := newTestCodec(t, 15*time.Minute)
	issued, err := rogue.Generator.AccessToken(1, 0, "rogue-session", nil, nil)
	require.NoError(t, err)

	require.NoError(t, f.blacklist.Insert(ctx, &session.BlacklistEntry{
		JTI:       issued.JTI,
		TokenHash: issued.Hash,
		ExpiresAt: issued.ExpiresAt,
		RevokedAt: time.Now(),
	}))

	_, err = f.manager.ValidateAccessToken(ctx, issued.Token)
	assert.ErrorIs(t, err, xerrors.ErrTokenRevoked)
}

func TestValidateExpiredNeverSucceeds(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(f *fixture) {
		f.codec = newTestCodec(t, -time.Minute)
	})
	ctx := context.Background()

	_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	_, err = f.manager.ValidateAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
}

func TestValidateMalformedToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.manager.ValidateAccessToken(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestValidateStoreOutageDenies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	f.blacklist.mu.Lock()
	f.blacklist.err = errors.New("connection refused")
	f.blacklist.mu.Unlock()

	_, err = f.manager.ValidateAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrStoreUnavailable)
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	updated, next, err := f.manager.RefreshSession(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.SessionID, next.SessionID)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)
	assert.NotEmpty(t, next.RefreshToken)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.Equal(t, token.Hash(next.RefreshToken), updated.RefreshTokenHash.String)

	// The new access token works, the rotated-away one does not.
	_, err = f.manager.ValidateAccessToken(ctx, next.AccessToken)
	require.NoError(t, err)

	// Replaying the consumed refresh token is the theft signal.
	_, _, err = f.manager.RefreshSession(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, xerrors.ErrRefreshTokenReused)
	assert.Contains(t, f.recorder.kinds(), audit.EventReuseDetected)

	// The live session is untouched by the replay.
	current, err := f.sessions.FindBySessionID(ctx, pair.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, current.Status)
	assert.Equal(t, token.Hash(next.RefreshToken), current.RefreshTokenHash.String)

	_, err = f.manager.ValidateAccessToken(ctx, next.AccessToken)
	assert.NoError(t, err)
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	// Two callers race with the same refresh token. Exactly one rotation
	// lands; the loser sees the reuse signal, never a silent success.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	pairs := make([]*session.TokenPair, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, pairs[i], errs[i] = f.manager.RefreshSession(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	var winner *session.TokenPair
	var successes int
	for i := range errs {
		if errs[i] == nil {
			successes++
			winner = pairs[i]
		} else {
			assert.ErrorIs(t, errs[i], xerrors.ErrRefreshTokenReused)
		}
	}
	require.Equal(t, 1, successes)

	// The session reflects the winner's rotation and nothing else.
	stored, err := f.sessions.FindBySessionID(ctx, pair.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, stored.Status)
	assert.Equal(t, token.Hash(winner.RefreshToken), stored.RefreshTokenHash.String)
	assert.Equal(t, token.Hash(winner.AccessToken), stored.AccessTokenHash)
}

func TestRefreshExpiryRaceIsNotReuse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	// The session lapses between the manager's read and the conditional
	// update. That is an expiry, not a theft signal.
	f.sessions.beforeRotate = func() {
		f.sessions.mu.Lock()
		f.sessions.rows[pair.SessionID].ExpiresAt = time.Now().Add(-time.Second)
		f.sessions.mu.Unlock()
	}

	_, _, err = f.manager.RefreshSession(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, xerrors.ErrRefreshTokenInvalid)
	assert.NotContains(t, f.recorder.kinds(), audit.EventReuseDetected)
}

func TestRefreshRejectsWrongPurpose(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	// An access token is never accepted for refresh.
	_, _, err = f.manager.RefreshSession(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrRefreshTokenInvalid)

	_, _, err = f.manager.RefreshSession(ctx, "garbage")
	assert.ErrorIs(t, err, xerrors.ErrRefreshTokenInvalid)
}

func TestRefreshRevokedSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.manager.RevokeSession(ctx, 1, pair.SessionID, "user:1", "logout"))

	// Revoke clears the stored refresh hash, so the lookup misses.
	_, _, err = f.manager.RefreshSession(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, xerrors.ErrRefreshTokenInvalid)
}

func TestRefreshRotationDisabled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.manager = NewManager(
		f.sessions, f.blacklist, f.users, f.grants, f.guard,
		f.codec, f.recorder, nil,
		Config{RotationEnabled: false}, nil,
	)
	ctx := context.Background()

	_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	_, next, err := f.manager.RefreshSession(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, next.RefreshToken)

	// Without rotation the presented token stays valid.
	_, again, err := f.manager.RefreshSession(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, again.AccessToken)
}

func TestRevokeIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	require.NoError(t, f.manager.RevokeSession(ctx, 1, pair.SessionID, "user:1", "logout"))
	require.NoError(t, f.manager.RevokeSession(ctx, 1, pair.SessionID, "user:1", "logout"))

	err = f.manager.RevokeSession(ctx, 1, "no-such-session", "user:1", "logout")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestRevokeScopedToCaller(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(f *fixture) {
		other := activeUser(2)
		other.Email = "other@example.com"
		f.users = newFakeUsers(activeUser(1), other)
	})
	ctx := context.Background()

	_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	// A different user revoking by a known session id gets not-found, the
	// session stays live and its token keeps validating.
	err = f.manager.RevokeSession(ctx, 2, pair.SessionID, "user:2", "logout")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	stored, err := f.sessions.FindBySessionID(ctx, pair.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, stored.Status)

	_, err = f.manager.ValidateAccessToken(ctx, pair.AccessToken)
	assert.NoError(t, err)

	// callerID 0 is the unscoped platform path.
	require.NoError(t, f.manager.RevokeSession(ctx, 0, pair.SessionID, "system", "compromise"))
	_, err = f.manager.ValidateAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrTokenRevoked)
}

func TestRevokeBlacklistsAccessToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	require.NoError(t, f.manager.RevokeSession(ctx, 1, pair.SessionID, "admin:2", "compromise"))

	// The jti is denied the moment Revoke returns.
	revoked, err := f.blacklist.IsBlacklisted(ctx, s.AccessJTI)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = f.manager.ValidateAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrTokenRevoked)
}

func TestRevokeAllSessionsForUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	var pairs []*session.TokenPair
	for i := 0; i < 3; i++ {
		_, pair, err := f.manager.IssueSession(ctx, 1, nil, nil)
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}

	count, err := f.manager.RevokeAllSessionsForUser(ctx, 1, "user:1", "password_change")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	for _, pair := range pairs {
		_, err := f.manager.ValidateAccessToken(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, xerrors.ErrTokenRevoked)
	}

	// Second pass finds nothing left to revoke.
	count, err = f.manager.RevokeAllSessionsForUser(ctx, 1, "user:1", "password_change")
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Contains(t, f.recorder.kinds(), audit.EventRevokeAll)
}

func TestListSessionsReportsOverdueAsExpired(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s, _, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	// Backdate the stored expiry; the row still says active.
	f.sessions.mu.Lock()
	f.sessions.rows[s.SessionID].ExpiresAt = time.Now().Add(-time.Minute)
	f.sessions.mu.Unlock()

	infos, err := f.manager.ListSessions(ctx, 1, s.SessionID)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, session.StatusExpired, infos[0].Status)
	assert.True(t, infos[0].Current)
}

func TestSweeperExpiresAndPurges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s, _, err := f.manager.IssueSession(ctx, 1, nil, nil)
	require.NoError(t, err)

	f.sessions.mu.Lock()
	f.sessions.rows[s.SessionID].ExpiresAt = time.Now().Add(-time.Minute)
	f.sessions.mu.Unlock()

	require.NoError(t, f.blacklist.Insert(ctx, &session.BlacklistEntry{
		JTI:       "stale",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	NewSweeper(f.sessions, f.blacklist, time.Minute, nil).Sweep(ctx)

	stored, err := f.sessions.FindBySessionID(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusExpired, stored.Status)

	stale, err := f.blacklist.IsBlacklisted(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, stale)
}
