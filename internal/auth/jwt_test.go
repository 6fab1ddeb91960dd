package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	handler := NewJWTHandler("test-secret-at-least-32-characters!", time.Hour, 24*time.Hour)
	userID := uuid.New()

	token, err := handler.GenerateAccessToken(userID, "alice", RoleTechnician)
	require.NoError(t, err)

	claims, err := handler.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, RoleTechnician, claims.Role)
}

func TestAccessTokenRejectedWithWrongSecret(t *testing.T) {
	issuer := NewJWTHandler("secret-one-needs-enough-characters!", time.Hour, 24*time.Hour)
	verifier := NewJWTHandler("secret-two-needs-enough-characters!", time.Hour, 24*time.Hour)

	token, err := issuer.GenerateAccessToken(uuid.New(), "alice", RoleAdmin)
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	handler := NewJWTHandler("test-secret-at-least-32-characters!", -time.Minute, 24*time.Hour)

	token, err := handler.GenerateAccessToken(uuid.New(), "alice", RoleOperator)
	require.NoError(t, err)

	_, err = handler.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestGenerateRefreshTokenUnique(t *testing.T) {
	handler := NewJWTHandler("test-secret-at-least-32-characters!", time.Hour, 24*time.Hour)

	a, err := handler.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := handler.GenerateRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64) // 32 random bytes hex-encoded
}

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, roleAtLeast(RoleAdmin, RoleOperator))
	assert.True(t, roleAtLeast(RoleTechnician, RoleOperator))
	assert.True(t, roleAtLeast(RoleOperator, RoleOperator))
	assert.False(t, roleAtLeast(RoleOperator, RoleTechnician))
	assert.False(t, roleAtLeast(RoleTechnician, RoleAdmin))
	assert.False(t, roleAtLeast("unknown", RoleOperator))
}
