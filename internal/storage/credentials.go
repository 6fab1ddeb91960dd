package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DeviceCredential is the operator-facing secret record for a device: the
// values its firmware is configured with. PasswordEnc is reversible
// (codec-encrypted), unlike the hash the broker verifies against; the two are
// set from the same plaintext at provisioning time.
type DeviceCredential struct {
	ID            uuid.UUID `json:"id"`
	DeviceID      uuid.UUID `json:"device_id"`
	ClientID      string    `json:"client_id"`
	Username      string    `json:"username"`
	PasswordEnc   string    `json:"-"`
	UseDeviceCert bool      `json:"use_device_cert"`
	ClientCert    *string   `json:"client_cert,omitempty"`
	ClientKey     *string   `json:"client_key,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const credentialColumns = `id, device_id, client_id, username, password_enc, use_device_cert,
	client_cert, client_key, is_active, created_at, updated_at`

func scanCredential(row pgx.Row) (*DeviceCredential, error) {
	var c DeviceCredential
	err := row.Scan(&c.ID, &c.DeviceID, &c.ClientID, &c.Username, &c.PasswordEnc,
		&c.UseDeviceCert, &c.ClientCert, &c.ClientKey, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan device credential: %w", err)
	}
	return &c, nil
}

func (p *PostgresClient) InsertDeviceCredential(ctx context.Context, c *DeviceCredential) (*DeviceCredential, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO mqtt_credentials (device_id, client_id, username, password_enc, use_device_cert, client_cert, client_key, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+credentialColumns,
		c.DeviceID, c.ClientID, c.Username, c.PasswordEnc, c.UseDeviceCert, c.ClientCert, c.ClientKey, c.IsActive,
	)
	created, err := scanCredential(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("credential for client_id %q already exists", c.ClientID)
		}
		return nil, fmt.Errorf("failed to insert device credential: %w", err)
	}
	return created, nil
}

func (p *PostgresClient) GetDeviceCredential(ctx context.Context, id uuid.UUID) (*DeviceCredential, error) {
	row := p.db.QueryRow(ctx, `SELECT `+credentialColumns+` FROM mqtt_credentials WHERE id = $1`, id)
	return scanCredential(row)
}

func (p *PostgresClient) GetDeviceCredentialByDevice(ctx context.Context, deviceID uuid.UUID) (*DeviceCredential, error) {
	row := p.db.QueryRow(ctx, `SELECT `+credentialColumns+` FROM mqtt_credentials WHERE device_id = $1`, deviceID)
	return scanCredential(row)
}

func (p *PostgresClient) ListDeviceCredentials(ctx context.Context) ([]*DeviceCredential, error) {
	rows, err := p.db.Query(ctx, `SELECT `+credentialColumns+` FROM mqtt_credentials ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list device credentials: %w", err)
	}
	defer rows.Close()

	var creds []*DeviceCredential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// UpdateDeviceCredentialPassword stores a new encrypted password after a
// rotation, keeping the record in step with mqtt_user.
func (p *PostgresClient) UpdateDeviceCredentialPassword(ctx context.Context, deviceID uuid.UUID, passwordEnc string) error {
	result, err := p.db.Exec(ctx, `
		UPDATE mqtt_credentials SET password_enc = $2, updated_at = NOW() WHERE device_id = $1
	`, deviceID, passwordEnc)
	if err != nil {
		return fmt.Errorf("failed to update device credential password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresClient) DeleteDeviceCredentialByDevice(ctx context.Context, deviceID uuid.UUID) error {
	_, err := p.db.Exec(ctx, `DELETE FROM mqtt_credentials WHERE device_id = $1`, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete device credential: %w", err)
	}
	return nil
}
