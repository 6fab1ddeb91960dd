package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/GuiSarIot/backend-iot-agro/internal/config"
	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/google/uuid"
)

// Console roles. Admin can see decrypted secrets and manage users;
// technician manages devices and MQTT config; operator is read-mostly.
const (
	RoleOperator   = "operator"
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
)

type AuthService struct {
	storage        *storage.PostgresClient
	jwtHandler     *JWTHandler
	passwordHasher *PasswordHasher
}

func NewAuthService(store *storage.PostgresClient, cfg config.AuthConfig) *AuthService {
	return &AuthService{
		storage:        store,
		jwtHandler:     NewJWTHandler(cfg.GetJWTSecret(), cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		passwordHasher: NewPasswordHasher(),
	}
}

// LoginUser authenticates a user and returns tokens
func (a *AuthService) LoginUser(ctx context.Context, username, password string) (accessToken, refreshToken string, err error) {
	user, err := a.storage.GetUserByUsername(ctx, username)
	if err != nil {
		return "", "", fmt.Errorf("invalid credentials")
	}

	valid, err := a.passwordHasher.VerifyPassword(password, user.PasswordHash)
	if err != nil || !valid {
		return "", "", fmt.Errorf("invalid credentials")
	}

	accessToken, err = a.jwtHandler.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = a.jwtHandler.GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	tokenHash := a.hashRefreshToken(refreshToken)
	expiresAt := time.Now().Add(a.jwtHandler.refreshTokenTTL)
	if err := a.storage.StoreRefreshToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	a.storage.UpdateLastLogin(ctx, user.ID)

	return accessToken, refreshToken, nil
}

// RefreshAccessToken generates new access token from refresh token
func (a *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, string, error) {
	tokenHash := a.hashRefreshToken(refreshToken)

	userID, err := a.storage.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token: %w", err)
	}

	user, err := a.storage.GetUserByID(ctx, *userID)
	if err != nil {
		return "", "", fmt.Errorf("user not found: %w", err)
	}

	// Rotate the refresh token
	a.storage.RevokeRefreshToken(ctx, tokenHash)

	accessToken, err := a.jwtHandler.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	newRefreshToken, err := a.jwtHandler.GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	newTokenHash := a.hashRefreshToken(newRefreshToken)
	expiresAt := time.Now().Add(a.jwtHandler.refreshTokenTTL)
	if err := a.storage.StoreRefreshToken(ctx, user.ID, newTokenHash, expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return accessToken, newRefreshToken, nil
}

// RevokeRefreshToken revokes a refresh token
func (a *AuthService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return a.storage.RevokeRefreshToken(ctx, a.hashRefreshToken(refreshToken))
}

// CreateUser creates a new console user
func (a *AuthService) CreateUser(ctx context.Context, username, password, role string) (*storage.User, error) {
	switch role {
	case RoleOperator, RoleTechnician, RoleAdmin:
	default:
		return nil, fmt.Errorf("invalid role %q", role)
	}

	passwordHash, err := a.passwordHasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return a.storage.CreateUser(ctx, username, passwordHash, role)
}

func (a *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error) {
	return a.storage.GetUserByID(ctx, userID)
}

func (a *AuthService) ListUsers(ctx context.Context) ([]*storage.User, error) {
	return a.storage.ListUsers(ctx)
}

// UpdateUser updates password and/or role
func (a *AuthService) UpdateUser(ctx context.Context, userID uuid.UUID, password, role *string) error {
	if password != nil {
		passwordHash, err := a.passwordHasher.HashPassword(*password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := a.storage.UpdateUserPassword(ctx, userID, passwordHash); err != nil {
			return err
		}
	}

	if role != nil {
		if err := a.storage.UpdateUserRole(ctx, userID, *role); err != nil {
			return err
		}
	}

	return nil
}

func (a *AuthService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return a.storage.DeleteUser(ctx, userID)
}

func (a *AuthService) hashRefreshToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
