// internal/handlers/user/user_handler.go
package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domain "authcore-service/internal/domain/user"
	xerrors "authcore-service/internal/pkg/errors"
	"authcore-service/internal/pkg/response"
	usersvc "authcore-service/internal/service/user"
)

// Handler exposes user provisioning over HTTP.
type Handler struct {
	users  *usersvc.Service
	logger *zap.Logger
}

func NewHandler(users *usersvc.Service, logger *zap.Logger) *Handler {
	return &Handler{users: users, logger: logger}
}

// resolveTenant decides which tenant a new user lands in. Platform
// callers (tenant 0) may target any tenant; tenant-bound callers only
// their own. A zero requested tenant means "mine".
func resolveTenant(callerTenant, requested int64) (int64, bool) {
	if callerTenant == 0 {
		return requested, true
	}
	if requested == 0 || requested == callerTenant {
		return callerTenant, true
	}
	return 0, false
}

// Create provisions a new user, subject to tenant capacity.
func (h *Handler) Create(c *gin.Context) {
	var req domain.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Invalid request body", err)
		return
	}

	tenantID, ok := resolveTenant(c.GetInt64("tenant_id"), req.TenantID)
	if !ok {
		response.Error(c, http.StatusForbidden, "Cannot provision users outside your tenant", nil)
		return
	}
	req.TenantID = tenantID

	created, err := h.users.Create(c.Request.Context(), &req)
	if err != nil {
		switch {
		case xerrors.Is(err, xerrors.ErrDuplicateEntry):
			response.Error(c, http.StatusConflict, "Email already registered", nil)
		case xerrors.Is(err, xerrors.ErrTenantCapacityExceeded):
			response.Error(c, http.StatusForbidden, "Tenant capacity exceeded", nil)
		case xerrors.Is(err, xerrors.ErrTenantSuspended):
			response.Error(c, http.StatusForbidden, "Tenant is suspended", nil)
		case xerrors.Is(err, xerrors.ErrInvalidInput):
			response.ValidationError(c, "Invalid user data", err)
		case xerrors.Is(err, xerrors.ErrStoreUnavailable):
			response.Error(c, http.StatusServiceUnavailable, "Service temporarily unavailable", nil)
		default:
			h.logger.Error("user creation failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "Failed to create user", nil)
		}
		return
	}

	response.Success(c, http.StatusCreated, "User created", gin.H{
		"id":        created.ID,
		"email":     created.Email,
		"status":    created.Status,
		"tenant_id": created.TenantID.Int64,
	})
}
