// internal/domain/session/dto.go
package session

import "time"

// LoginRequest carries the credentials presented at login.
type LoginRequest struct {
	Email    string                 `json:"email" binding:"required,email"`
	Password string                 `json:"password" binding:"required"`
	Scopes   []string               `json:"scopes"`
	Device   map[string]interface{} `json:"device"`
}

// RefreshRequest carries the refresh token presented for rotation.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenPair is returned on issue and refresh. The refresh token is absent
// when rotation is disabled and the old one stays valid.
type TokenPair struct {
	SessionID    string    `json:"session_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionInfo is the listing view of a session, without token material.
type SessionInfo struct {
	SessionID    string                 `json:"session_id"`
	Status       string                 `json:"status"`
	DeviceInfo   map[string]interface{} `json:"device_info,omitempty"`
	IssuedAt     time.Time              `json:"issued_at"`
	ExpiresAt    time.Time              `json:"expires_at"`
	LastAccessAt time.Time              `json:"last_access_at"`
	Current      bool                   `json:"current"`
}
