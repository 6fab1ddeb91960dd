package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is a console operator account. TelegramChatID and Email are the
// notification identities used by the alert flow.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"` // Never expose in JSON
	Role           string     `json:"role"`
	TelegramChatID *string    `json:"telegram_chat_id,omitempty"`
	Email          *string    `json:"email,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

const userColumns = `id, username, password_hash, role, telegram_chat_id, email, created_at, last_login_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role,
		&u.TelegramChatID, &u.Email, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (p *PostgresClient) CreateUser(ctx context.Context, username, passwordHash, role string) (*User, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		username, passwordHash, role,
	)
	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q already exists", username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (p *PostgresClient) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := p.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (p *PostgresClient) GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	row := p.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (p *PostgresClient) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := p.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (p *PostgresClient) UpdateUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	_, err := p.db.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	return err
}

func (p *PostgresClient) UpdateUserRole(ctx context.Context, userID uuid.UUID, role string) error {
	_, err := p.db.Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, userID)
	return err
}

func (p *PostgresClient) UpdateUserContact(ctx context.Context, userID uuid.UUID, telegramChatID, email *string) error {
	_, err := p.db.Exec(ctx,
		`UPDATE users SET telegram_chat_id = $1, email = $2 WHERE id = $3`, telegramChatID, email, userID)
	return err
}

func (p *PostgresClient) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := p.db.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID)
	return err
}

func (p *PostgresClient) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	result, err := p.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Refresh Token Methods

func (p *PostgresClient) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	return err
}

func (p *PostgresClient) GetRefreshToken(ctx context.Context, tokenHash string) (*uuid.UUID, error) {
	var userID uuid.UUID
	var expiresAt time.Time
	var revokedAt *time.Time

	err := p.db.QueryRow(ctx, `
		SELECT user_id, expires_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&userID, &expiresAt, &revokedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("refresh token not found")
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if revokedAt != nil {
		return nil, fmt.Errorf("refresh token revoked")
	}

	if time.Now().After(expiresAt) {
		return nil, fmt.Errorf("refresh token expired")
	}

	return &userID, nil
}

func (p *PostgresClient) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := p.db.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = NOW() WHERE token_hash = $1`, tokenHash)
	return err
}
