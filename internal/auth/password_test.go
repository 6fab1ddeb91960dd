package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasherRoundTrip(t *testing.T) {
	hasher := NewPasswordHasher()

	encoded, err := hasher.HashPassword("console-password")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := hasher.VerifyPassword("console-password", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.VerifyPassword("wrong-password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasherUniqueSalts(t *testing.T) {
	hasher := NewPasswordHasher()

	a, err := hasher.HashPassword("same")
	require.NoError(t, err)
	b, err := hasher.HashPassword("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	hasher := NewPasswordHasher()

	_, err := hasher.VerifyPassword("pw", "not-an-encoded-hash")
	assert.Error(t, err)
}
