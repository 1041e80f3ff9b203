// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	xerrors "authcore-service/internal/pkg/errors"
	"authcore-service/internal/pkg/response"
	"authcore-service/internal/service/lifecycle"
)

// AuthMiddleware validates the bearer token on every request and loads the
// session context into gin for downstream handlers.
func AuthMiddleware(manager *lifecycle.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractToken(c)
		if raw == "" {
			response.Unauthorized(c, "Authorization token required")
			return
		}

		sessCtx, err := manager.ValidateAccessToken(c.Request.Context(), raw)
		if err != nil {
			switch {
			case xerrors.Is(err, xerrors.ErrSessionExpired):
				response.Error(c, http.StatusUnauthorized, "Session expired", err)
			case xerrors.Is(err, xerrors.ErrTokenRevoked):
				response.Error(c, http.StatusUnauthorized, "Token revoked", err)
			case xerrors.Is(err, xerrors.ErrStoreUnavailable):
				response.Error(c, http.StatusServiceUnavailable, "Service temporarily unavailable", nil)
			default:
				response.Unauthorized(c, "Invalid token")
			}
			return
		}

		c.Set("user_id", sessCtx.UserID)
		c.Set("tenant_id", sessCtx.TenantID)
		c.Set("session_id", sessCtx.SessionID)
		c.Set("jti", sessCtx.JTI)
		c.Set("permissions", sessCtx.Permissions)
		c.Set("scopes", sessCtx.Scopes)
		c.Set("session_context", sessCtx)

		c.Next()
	}
}

// RequirePermission gates a route on a permission captured in the session
// snapshot at issuance.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, ok := c.Get("permissions")
		if !ok {
			response.Error(c, http.StatusForbidden, "Insufficient permissions", nil)
			return
		}

		for _, p := range perms.([]string) {
			if p == permission {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, "Insufficient permissions", nil)
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// WebSocket clients cannot set headers from the browser.
	return c.Query("token")
}
