// internal/pkg/token/unverified.go
package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// UnverifiedClaims extracts claims without checking the signature or expiry.
// Validation uses it to learn the jti before anything else, so a blacklisted
// token is rejected even when its signature no longer verifies. Never trust
// the result for an allow decision.
func UnverifiedClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}
