// internal/pkg/token/hash.go
package token

import (
	"crypto/sha256"
	"encoding/base64"
)

// Hash derives the one-way fingerprint stored in place of a raw token.
// Stores only ever compare hashes; the raw token is never persisted.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
