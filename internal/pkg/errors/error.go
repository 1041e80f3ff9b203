// internal/pkg/errors/error.go
package xerrors

import (
	"errors"
	"fmt"
)

// Caller input errors: returned directly, never retried automatically.
var (
	ErrNotFound               = errors.New("resource not found")
	ErrDuplicateEntry         = errors.New("duplicate entry")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUserInactive           = errors.New("user is inactive or deleted")
	ErrTenantSuspended        = errors.New("tenant is suspended")
	ErrTenantCapacityExceeded = errors.New("tenant user capacity exceeded")
	ErrRefreshTokenInvalid    = errors.New("refresh token invalid or consumed")
	ErrTokenRevoked           = errors.New("token has been revoked")
	ErrSessionExpired         = errors.New("session expired")
	ErrRateLimited            = errors.New("too many requests")
)

// ErrRefreshTokenReused is a security signal, not a plain input error: the
// presented refresh token was valid once but has already been rotated.
// Callers should treat it as a possible token theft and escalate.
var ErrRefreshTokenReused = errors.New("refresh token reuse detected")

// ErrStoreUnavailable wraps infrastructure failures. Validation paths must
// fail closed on it: an unreachable store is a denial, never an allow.
var ErrStoreUnavailable = errors.New("store unavailable")

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsCallerError reports whether the error belongs to the caller-input class,
// i.e. retrying the same request cannot succeed.
func IsCallerError(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrDuplicateEntry, ErrInvalidInput, ErrInvalidCredentials,
		ErrUserInactive, ErrTenantSuspended, ErrTenantCapacityExceeded,
		ErrRefreshTokenInvalid, ErrTokenRevoked, ErrSessionExpired, ErrRateLimited,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
