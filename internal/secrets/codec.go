package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrDecryption is returned when a stored value cannot be decrypted, either
// because it is malformed or because the key has changed. Callers treat this
// as "value unavailable", not as a fatal error.
var ErrDecryption = errors.New("failed to decrypt value")

const keyBytes = 32

// Codec encrypts operator-recoverable secrets (broker passwords, device MQTT
// passwords) with AES-256-GCM. This is deliberately reversible, unlike the
// broker-auth hash: operators need the plaintext back to flash devices.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec creates a codec from a base64-encoded 32-byte key.
func NewCodec(encodedKey string) (*Codec, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key encoding: %w", err)
	}
	if len(key) != keyBytes {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keyBytes, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// NewKey generates a random key in the encoding NewCodec expects.
func NewKey() (string, error) {
	key := make([]byte, keyBytes)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt seals the plaintext and returns base64(nonce || ciphertext).
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Returns ErrDecryption for anything that does not
// open cleanly, including values written under a different key.
func (c *Codec) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryption
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrDecryption
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}
