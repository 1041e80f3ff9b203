// internal/domain/user/dto.go
package user

// CreateUserRequest provisions a user inside a tenant (or at platform level
// when TenantID is zero).
type CreateUserRequest struct {
	Email    string                 `json:"email" binding:"required,email"`
	Password string                 `json:"password" binding:"required,min=8"`
	TenantID int64                  `json:"tenant_id"`
	Metadata map[string]interface{} `json:"metadata"`
}
