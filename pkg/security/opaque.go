package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewOpaqueToken generates a cryptographically random bearer-style token for
// single-use flows (email verification, password reset, magic link).
// Only its HashOpaque digest is ever stored server-side.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashOpaque returns the deterministic SHA-256 digest of a token.
// Deterministic so a stored digest can be looked up by equality; the
// underlying token is never recoverable from it.
func HashOpaque(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
