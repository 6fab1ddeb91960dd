package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/GuiSarIot/backend-iot-agro/internal/emqx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const identityColumns = `id, username, password_hash, salt, is_superuser, device_id, created_at, updated_at`

func scanIdentity(row pgx.Row) (*emqx.BrokerIdentity, error) {
	var ident emqx.BrokerIdentity
	err := row.Scan(
		&ident.ID, &ident.Username, &ident.PasswordHash, &ident.Salt,
		&ident.IsSuperuser, &ident.DeviceID, &ident.CreatedAt, &ident.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, emqx.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to scan broker identity: %w", err)
	}
	return &ident, nil
}

// InsertBrokerIdentity persists a new mqtt_user row. Returns
// emqx.ErrDuplicateUsername when the username is taken; the uniqueness
// constraint also serializes concurrent provisioning of colliding usernames.
func (p *PostgresClient) InsertBrokerIdentity(ctx context.Context, ident emqx.BrokerIdentity) (*emqx.BrokerIdentity, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO mqtt_user (username, password_hash, salt, is_superuser, device_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+identityColumns,
		ident.Username, ident.PasswordHash, ident.Salt, ident.IsSuperuser, ident.DeviceID,
	)
	created, err := scanIdentity(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", emqx.ErrDuplicateUsername, ident.Username)
		}
		return nil, fmt.Errorf("failed to insert broker identity: %w", err)
	}
	return created, nil
}

func (p *PostgresClient) GetBrokerIdentity(ctx context.Context, id uuid.UUID) (*emqx.BrokerIdentity, error) {
	row := p.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM mqtt_user WHERE id = $1`, id)
	return scanIdentity(row)
}

func (p *PostgresClient) GetBrokerIdentityByUsername(ctx context.Context, username string) (*emqx.BrokerIdentity, error) {
	row := p.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM mqtt_user WHERE username = $1`, username)
	return scanIdentity(row)
}

func (p *PostgresClient) GetBrokerIdentityByDevice(ctx context.Context, deviceID uuid.UUID) (*emqx.BrokerIdentity, error) {
	row := p.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM mqtt_user WHERE device_id = $1`, deviceID)
	return scanIdentity(row)
}

func (p *PostgresClient) ListBrokerIdentities(ctx context.Context) ([]*emqx.BrokerIdentity, error) {
	rows, err := p.db.Query(ctx, `SELECT `+identityColumns+` FROM mqtt_user ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list broker identities: %w", err)
	}
	defer rows.Close()

	var idents []*emqx.BrokerIdentity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		idents = append(idents, ident)
	}
	return idents, rows.Err()
}

// VerifyCredentials checks a username/password pair against mqtt_user the same
// way the broker does. Unknown usernames and wrong passwords both come back
// false; callers cannot tell the two apart.
func (p *PostgresClient) VerifyCredentials(ctx context.Context, username, password string) (bool, error) {
	ident, err := p.GetBrokerIdentityByUsername(ctx, username)
	return credentialsValid(ident, err, password)
}

func credentialsValid(ident *emqx.BrokerIdentity, err error, password string) (bool, error) {
	if err != nil {
		if errors.Is(err, emqx.ErrIdentityNotFound) {
			return false, nil
		}
		return false, err
	}
	return ident.CheckPassword(password), nil
}

// UpdateBrokerIdentityPassword writes new verification material after an
// explicit rotation. This is the only update path that touches the salt.
func (p *PostgresClient) UpdateBrokerIdentityPassword(ctx context.Context, id uuid.UUID, passwordHash, salt string) error {
	result, err := p.db.Exec(ctx, `
		UPDATE mqtt_user SET password_hash = $2, salt = $3, updated_at = NOW() WHERE id = $1
	`, id, passwordHash, salt)
	if err != nil {
		return fmt.Errorf("failed to rotate broker password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return emqx.ErrIdentityNotFound
	}
	return nil
}

// DeleteBrokerIdentity removes the identity; its ACL rules are removed by the
// mqtt_acl foreign key cascade.
func (p *PostgresClient) DeleteBrokerIdentity(ctx context.Context, id uuid.UUID) error {
	result, err := p.db.Exec(ctx, `DELETE FROM mqtt_user WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete broker identity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return emqx.ErrIdentityNotFound
	}
	return nil
}
