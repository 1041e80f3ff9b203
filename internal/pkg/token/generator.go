// internal/pkg/token/generator.go
package token

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv       *rsa.PrivateKey
	issuer     string
	audience   string
	kid        string // key id for rotation
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, accessTTL, refreshTTL time.Duration) *Generator {
	return &Generator{
		priv:       priv,
		issuer:     issuer,
		audience:   audience,
		kid:        kid,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}
}

// Issued is one signed token plus the identifiers the stores need: the jti
// for blacklist keying and the one-way hash persisted in place of the raw
// token.
type Issued struct {
	Token     string
	JTI       string
	Hash      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (g *Generator) generate(userID, tenantID int64, sessionID, purpose string, permissions, scopes []string, ttl time.Duration) (*Issued, error) {
	if g.priv == nil {
		return nil, fmt.Errorf("token generator has nil private key")
	}

	now := time.Now()
	jti := ulid.Make().String()

	claims := &Claims{
		UserID:      userID,
		TenantID:    tenantID,
		SessionID:   sessionID,
		Purpose:     purpose,
		Permissions: permissions,
		Scopes:      scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	if err != nil {
		return nil, err
	}

	return &Issued{
		Token:     signed,
		JTI:       jti,
		Hash:      Hash(signed),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// AccessToken signs an access token carrying the permission/scope snapshot.
func (g *Generator) AccessToken(userID, tenantID int64, sessionID string, permissions, scopes []string) (*Issued, error) {
	return g.generate(userID, tenantID, sessionID, PurposeAccess, permissions, scopes, g.AccessTTL)
}

// RefreshToken signs a refresh token. Refresh tokens carry no grants, they
// only entitle the holder to a new access token.
func (g *Generator) RefreshToken(userID, tenantID int64, sessionID string) (*Issued, error) {
	return g.generate(userID, tenantID, sessionID, PurposeRefresh, nil, nil, g.RefreshTTL)
}
