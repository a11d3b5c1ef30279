// Package security generates session identifiers and tokens and hashes tokens
// for storage. Plaintext tokens exist only in memory on their way to the caller.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// NewSessionID returns a random 128-bit session id, hex-encoded (32 characters).
func NewSessionID() (string, error) {
	return randomHex(16)
}

// NewSessionToken returns a random 256-bit session token, hex-encoded.
// The token is handed to the client once and only its hash is persisted.
func NewSessionToken() (string, error) {
	return randomHex(32)
}

// HashSessionToken returns the SHA-256 hash of the token, as 64 lowercase hex
// characters. This is the only form of the token that is ever stored or compared.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenHashEqual performs constant-time comparison of the provided token's
// hash with the stored hash. Returns true only if they match.
func TokenHashEqual(providedToken, storedHash string) bool {
	providedHash := HashSessionToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("security: random source: %w", err)
	}
	return hex.EncodeToString(b), nil
}
