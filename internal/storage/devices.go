package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Device states as kept by operators.
const (
	DeviceStateActive       = "active"
	DeviceStateInactive     = "inactive"
	DeviceStateMaintenance  = "maintenance"
	DeviceStateDisconnected = "disconnected"
)

// Connection status values reported by the external status-report call.
const (
	ConnStatusOnline  = "online"
	ConnStatusOffline = "offline"
	ConnStatusError   = "error"
)

var ErrNotFound = errors.New("record not found")

type Device struct {
	ID               uuid.UUID      `json:"id"`
	Name             string         `json:"name"`
	Type             string         `json:"type"`
	ExternalID       string         `json:"external_id"`
	Location         string         `json:"location"`
	State            string         `json:"state"`
	Description      string         `json:"description"`
	MQTTEnabled      bool           `json:"mqtt_enabled"`
	MQTTClientID     *string        `json:"mqtt_client_id,omitempty"`
	LastSeen         *time.Time     `json:"last_seen,omitempty"`
	ConnectionStatus string         `json:"connection_status"`
	OperatorID       *uuid.UUID     `json:"operator_id,omitempty"`
	Metadata         map[string]any `json:"metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

const deviceColumns = `id, name, device_type, external_id, location, state, description,
	mqtt_enabled, mqtt_client_id, last_seen, connection_status, operator_id, metadata,
	created_at, updated_at`

func scanDevice(row pgx.Row) (*Device, error) {
	var d Device
	err := row.Scan(
		&d.ID, &d.Name, &d.Type, &d.ExternalID, &d.Location, &d.State, &d.Description,
		&d.MQTTEnabled, &d.MQTTClientID, &d.LastSeen, &d.ConnectionStatus, &d.OperatorID,
		&d.Metadata, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}
	return &d, nil
}

// InsertDevice persists a new device. external_id must be unique.
func (p *PostgresClient) InsertDevice(ctx context.Context, d *Device) (*Device, error) {
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	row := p.db.QueryRow(ctx, `
		INSERT INTO devices (name, device_type, external_id, location, state, description, operator_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+deviceColumns,
		d.Name, d.Type, d.ExternalID, d.Location, d.State, d.Description, d.OperatorID, d.Metadata,
	)
	created, err := scanDevice(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("device with external_id %q already exists", d.ExternalID)
		}
		return nil, fmt.Errorf("failed to insert device: %w", err)
	}
	return created, nil
}

func (p *PostgresClient) GetDevice(ctx context.Context, id uuid.UUID) (*Device, error) {
	row := p.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	return scanDevice(row)
}

func (p *PostgresClient) GetDeviceByExternalID(ctx context.Context, externalID string) (*Device, error) {
	row := p.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE external_id = $1`, externalID)
	return scanDevice(row)
}

func (p *PostgresClient) ListDevices(ctx context.Context) ([]*Device, error) {
	rows, err := p.db.Query(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// UpdateDevice saves operator-editable fields. MQTT state and password
// material are managed by provisioning, not here.
func (p *PostgresClient) UpdateDevice(ctx context.Context, d *Device) (*Device, error) {
	row := p.db.QueryRow(ctx, `
		UPDATE devices
		SET name = $2, device_type = $3, location = $4, state = $5, description = $6,
		    operator_id = $7, metadata = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING `+deviceColumns,
		d.ID, d.Name, d.Type, d.Location, d.State, d.Description, d.OperatorID, d.Metadata,
	)
	return scanDevice(row)
}

func (p *PostgresClient) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	result, err := p.db.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDeviceMQTT marks a device MQTT-enabled (or disabled) and records its
// client identifier.
func (p *PostgresClient) SetDeviceMQTT(ctx context.Context, id uuid.UUID, enabled bool, clientID *string) error {
	_, err := p.db.Exec(ctx, `
		UPDATE devices SET mqtt_enabled = $2, mqtt_client_id = $3, updated_at = NOW() WHERE id = $1
	`, id, enabled, clientID)
	if err != nil {
		return fmt.Errorf("failed to update device mqtt state: %w", err)
	}
	return nil
}

// UpdateDeviceConnection records the status reported by an external monitor.
func (p *PostgresClient) UpdateDeviceConnection(ctx context.Context, id uuid.UUID, status string, seenAt time.Time) error {
	_, err := p.db.Exec(ctx, `
		UPDATE devices SET connection_status = $2, last_seen = $3, updated_at = NOW() WHERE id = $1
	`, id, status, seenAt)
	if err != nil {
		return fmt.Errorf("failed to update device connection: %w", err)
	}
	return nil
}
