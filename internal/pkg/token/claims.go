// internal/pkg/token/claims.go
package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token purposes. A refresh token can never be presented for access.
const (
	PurposeAccess  = "access"
	PurposeRefresh = "refresh"
)

// Claims carried in every token issued by the codec. The jti lives in
// RegisteredClaims.ID and keys the blacklist.
type Claims struct {
	UserID      int64    `json:"user_id"`
	TenantID    int64    `json:"tenant_id,omitempty"`
	SessionID   string   `json:"session_id"`
	Purpose     string   `json:"purpose"`
	Permissions []string `json:"permissions,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// HasPermission checks if the claims contain a specific permission.
func (c *Claims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// HasScope checks if the claims contain a specific scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}
	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}
	return false
}
