package emqx

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordDeterministic(t *testing.T) {
	first := HashPassword("secret", "abc123")
	second := HashPassword("secret", "abc123")
	assert.Equal(t, first, second)
}

func TestHashPasswordSaltSuffix(t *testing.T) {
	// The broker computes SHA256(password || salt) with the salt appended
	// and no separator.
	sum := sha256.Sum256([]byte("hunter2" + "deadbeef"))
	assert.Equal(t, hex.EncodeToString(sum[:]), HashPassword("hunter2", "deadbeef"))
}

func TestVerifyPassword(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	hash := HashPassword("correct horse", salt)

	assert.True(t, VerifyPassword("correct horse", salt, hash))
	assert.False(t, VerifyPassword("wrong horse", salt, hash))
	assert.False(t, VerifyPassword("correct horse", "othersalt", hash))
}

func TestNewSaltUnique(t *testing.T) {
	a, err := NewSalt()
	require.NoError(t, err)
	b, err := NewSalt()
	require.NoError(t, err)

	assert.Len(t, a, 32) // 16 bytes hex-encoded
	assert.NotEqual(t, a, b)
}

func TestBrokerIdentityPasswordLifecycle(t *testing.T) {
	ident, err := NewBrokerIdentity("device_dev-1", "initial", false, nil)
	require.NoError(t, err)

	assert.True(t, ident.CheckPassword("initial"))
	assert.False(t, ident.CheckPassword("other"))

	oldSalt := ident.Salt
	require.NoError(t, ident.SetPassword("rotated"))

	assert.NotEqual(t, oldSalt, ident.Salt, "rotation must regenerate the salt")
	assert.True(t, ident.CheckPassword("rotated"))
	assert.False(t, ident.CheckPassword("initial"))
}
