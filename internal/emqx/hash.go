package emqx

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// The broker verifies device logins by querying mqtt_user and computing
// SHA256(password || salt) on its side (EMQX PostgreSQL authentication,
// password hash SHA256, salt position suffix). The concatenation order and
// the absence of a separator are part of that contract and must not change.

const saltBytes = 16

// NewSalt returns a fresh random salt, hex-encoded.
func NewSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword derives the stored verification hash for a plaintext password
// and salt. Deterministic: same inputs, same output.
func HashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword reports whether password matches the stored hash/salt pair.
// Constant-time comparison; a wrong password and an unknown user must be
// indistinguishable to callers.
func VerifyPassword(password, salt, storedHash string) bool {
	computed := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
