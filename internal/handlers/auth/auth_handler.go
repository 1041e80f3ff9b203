// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authcore-service/internal/domain/session"
	"authcore-service/internal/pkg/cache"
	xerrors "authcore-service/internal/pkg/errors"
	"authcore-service/internal/pkg/response"
	"authcore-service/internal/service/lifecycle"
	usersvc "authcore-service/internal/service/user"
)

// Handler exposes the session lifecycle over HTTP.
type Handler struct {
	manager *lifecycle.Manager
	users   *usersvc.Service
	limiter *cache.RateLimiter
	logger  *zap.Logger
}

func NewHandler(manager *lifecycle.Manager, users *usersvc.Service, limiter *cache.RateLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		manager: manager,
		users:   users,
		limiter: limiter,
		logger:  logger,
	}
}

// Login verifies credentials and issues a new session.
func (h *Handler) Login(c *gin.Context) {
	var req session.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Invalid request body", err)
		return
	}

	if h.limiter != nil {
		allowed, _, err := h.limiter.CheckLoginAttempt(c.Request.Context(), c.ClientIP(), req.Email)
		if err != nil {
			h.logger.Warn("rate limiter unavailable, allowing login attempt", zap.Error(err))
		} else if !allowed {
			response.Error(c, http.StatusTooManyRequests, "Too many login attempts", xerrors.ErrRateLimited)
			return
		}
	}

	user, err := h.users.VerifyCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err, "Login failed")
		return
	}

	sess, pair, err := h.manager.IssueSession(c.Request.Context(), user.ID, req.Device, req.Scopes)
	if err != nil {
		h.respondError(c, err, "Login failed")
		return
	}

	if h.limiter != nil {
		_ = h.limiter.ResetLoginAttempts(c.Request.Context(), c.ClientIP(), req.Email)
	}

	response.Success(c, http.StatusOK, "Login successful", gin.H{
		"session_id": sess.SessionID,
		"tokens":     pair,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}

// Refresh rotates a refresh token and returns a fresh token pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req session.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Invalid request body", err)
		return
	}

	_, pair, err := h.manager.RefreshSession(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err, "Token refresh failed")
		return
	}

	response.Success(c, http.StatusOK, "Token refreshed", pair)
}

// Logout revokes the session behind the presented access token.
func (h *Handler) Logout(c *gin.Context) {
	sessionID := c.GetString("session_id")
	userID := c.GetInt64("user_id")

	if err := h.manager.RevokeSession(c.Request.Context(), userID, sessionID, actor(userID), "logout"); err != nil {
		h.respondError(c, err, "Logout failed")
		return
	}

	response.Success(c, http.StatusOK, "Logged out", nil)
}

// LogoutAll revokes every active session belonging to the caller.
func (h *Handler) LogoutAll(c *gin.Context) {
	userID := c.GetInt64("user_id")

	count, err := h.manager.RevokeAllSessionsForUser(c.Request.Context(), userID, actor(userID), "logout_all")
	if err != nil {
		h.respondError(c, err, "Logout failed")
		return
	}

	response.Success(c, http.StatusOK, "All sessions revoked", gin.H{"revoked_count": count})
}

// GetSessions lists the caller's sessions, flagging the current one.
func (h *Handler) GetSessions(c *gin.Context) {
	userID := c.GetInt64("user_id")
	current := c.GetString("session_id")

	sessions, err := h.manager.ListSessions(c.Request.Context(), userID, current)
	if err != nil {
		h.respondError(c, err, "Failed to list sessions")
		return
	}

	response.Success(c, http.StatusOK, "Sessions retrieved", gin.H{"sessions": sessions})
}

// RevokeSession revokes one of the caller's sessions by id. A session id
// belonging to someone else answers 404.
func (h *Handler) RevokeSession(c *gin.Context) {
	sessionID := c.Param("id")
	userID := c.GetInt64("user_id")

	if err := h.manager.RevokeSession(c.Request.Context(), userID, sessionID, actor(userID), "user_revoked"); err != nil {
		h.respondError(c, err, "Failed to revoke session")
		return
	}

	response.Success(c, http.StatusOK, "Session revoked", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, message string) {
	switch {
	case xerrors.Is(err, xerrors.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "Invalid email or password", nil)
	case xerrors.Is(err, xerrors.ErrRefreshTokenReused):
		response.Error(c, http.StatusUnauthorized, "Refresh token already used", err)
	case xerrors.Is(err, xerrors.ErrRefreshTokenInvalid):
		response.Error(c, http.StatusUnauthorized, "Invalid refresh token", nil)
	case xerrors.Is(err, xerrors.ErrTokenRevoked):
		response.Error(c, http.StatusUnauthorized, "Token revoked", nil)
	case xerrors.Is(err, xerrors.ErrSessionExpired):
		response.Error(c, http.StatusUnauthorized, "Session expired", nil)
	case xerrors.Is(err, xerrors.ErrUserInactive):
		response.Error(c, http.StatusForbidden, "Account is not active", nil)
	case xerrors.Is(err, xerrors.ErrTenantSuspended):
		response.Error(c, http.StatusForbidden, "Tenant is suspended", nil)
	case xerrors.Is(err, xerrors.ErrTenantCapacityExceeded):
		response.Error(c, http.StatusForbidden, "Tenant capacity exceeded", nil)
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.Error(c, http.StatusNotFound, "Not found", nil)
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		response.ValidationError(c, message, err)
	case xerrors.Is(err, xerrors.ErrStoreUnavailable):
		response.Error(c, http.StatusServiceUnavailable, "Service temporarily unavailable", nil)
	default:
		h.logger.Error("unhandled auth error", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, message, nil)
	}
}

func actor(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}
