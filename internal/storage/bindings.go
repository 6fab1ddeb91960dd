package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Binding connection status values.
const (
	BindingConnected    = "connected"
	BindingDisconnected = "disconnected"
	BindingError        = "error"
)

// DeviceBinding links a device to a broker and its topics. This is operator
// monitoring state; it is updated by the external status-report call, never
// by this system observing traffic.
type DeviceBinding struct {
	ID               uuid.UUID      `json:"id"`
	DeviceID         uuid.UUID      `json:"device_id"`
	BrokerID         uuid.UUID      `json:"broker_id"`
	PublishTopicID   *uuid.UUID     `json:"publish_topic_id,omitempty"`
	PublishInterval  int            `json:"publish_interval"`
	QoS              int            `json:"qos"`
	Retain           bool           `json:"retain"`
	AutoReconnect    bool           `json:"auto_reconnect"`
	LastConnection   *time.Time     `json:"last_connection,omitempty"`
	ConnectionStatus string         `json:"connection_status"`
	Metadata         map[string]any `json:"metadata"`
	IsActive         bool           `json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

const bindingColumns = `id, device_id, broker_id, publish_topic_id, publish_interval, qos, retain,
	auto_reconnect, last_connection, connection_status, metadata, is_active, created_at, updated_at`

func scanBinding(row pgx.Row) (*DeviceBinding, error) {
	var b DeviceBinding
	err := row.Scan(&b.ID, &b.DeviceID, &b.BrokerID, &b.PublishTopicID, &b.PublishInterval,
		&b.QoS, &b.Retain, &b.AutoReconnect, &b.LastConnection, &b.ConnectionStatus,
		&b.Metadata, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan device binding: %w", err)
	}
	return &b, nil
}

func (p *PostgresClient) InsertDeviceBinding(ctx context.Context, b *DeviceBinding) (*DeviceBinding, error) {
	if b.Metadata == nil {
		b.Metadata = map[string]any{}
	}
	row := p.db.QueryRow(ctx, `
		INSERT INTO mqtt_device_config
			(device_id, broker_id, publish_topic_id, publish_interval, qos, retain, auto_reconnect, metadata, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+bindingColumns,
		b.DeviceID, b.BrokerID, b.PublishTopicID, b.PublishInterval, b.QoS, b.Retain,
		b.AutoReconnect, b.Metadata, b.IsActive,
	)
	created, err := scanBinding(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("binding for device %s already exists", b.DeviceID)
		}
		return nil, fmt.Errorf("failed to insert device binding: %w", err)
	}
	return created, nil
}

func (p *PostgresClient) GetDeviceBinding(ctx context.Context, id uuid.UUID) (*DeviceBinding, error) {
	row := p.db.QueryRow(ctx, `SELECT `+bindingColumns+` FROM mqtt_device_config WHERE id = $1`, id)
	return scanBinding(row)
}

func (p *PostgresClient) GetDeviceBindingByDevice(ctx context.Context, deviceID uuid.UUID) (*DeviceBinding, error) {
	row := p.db.QueryRow(ctx, `SELECT `+bindingColumns+` FROM mqtt_device_config WHERE device_id = $1`, deviceID)
	return scanBinding(row)
}

func (p *PostgresClient) ListDeviceBindings(ctx context.Context) ([]*DeviceBinding, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+bindingColumns+` FROM mqtt_device_config ORDER BY last_connection DESC NULLS LAST`)
	if err != nil {
		return nil, fmt.Errorf("failed to list device bindings: %w", err)
	}
	defer rows.Close()

	var bindings []*DeviceBinding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

func (p *PostgresClient) UpdateDeviceBinding(ctx context.Context, b *DeviceBinding) (*DeviceBinding, error) {
	row := p.db.QueryRow(ctx, `
		UPDATE mqtt_device_config
		SET broker_id = $2, publish_topic_id = $3, publish_interval = $4, qos = $5, retain = $6,
		    auto_reconnect = $7, metadata = $8, is_active = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING `+bindingColumns,
		b.ID, b.BrokerID, b.PublishTopicID, b.PublishInterval, b.QoS, b.Retain,
		b.AutoReconnect, b.Metadata, b.IsActive,
	)
	return scanBinding(row)
}

// UpdateBindingStatus records a status report from the external monitor.
// A successful connection also stamps last_connection.
func (p *PostgresClient) UpdateBindingStatus(ctx context.Context, deviceID uuid.UUID, status string, at time.Time) (*DeviceBinding, error) {
	row := p.db.QueryRow(ctx, `
		UPDATE mqtt_device_config
		SET connection_status = $2,
		    last_connection = CASE WHEN $2 = 'connected' THEN $3 ELSE last_connection END,
		    updated_at = NOW()
		WHERE device_id = $1
		RETURNING `+bindingColumns,
		deviceID, status, at,
	)
	return scanBinding(row)
}

// Subscription topics (many-to-many with the registry).

func (p *PostgresClient) SetBindingSubscriptions(ctx context.Context, configID uuid.UUID, topicIDs []uuid.UUID) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM mqtt_device_subscriptions WHERE config_id = $1`, configID); err != nil {
		return fmt.Errorf("failed to clear subscriptions: %w", err)
	}
	for _, topicID := range topicIDs {
		if _, err := p.db.Exec(ctx,
			`INSERT INTO mqtt_device_subscriptions (config_id, topic_id) VALUES ($1, $2)`, configID, topicID); err != nil {
			return fmt.Errorf("failed to add subscription: %w", err)
		}
	}
	return nil
}

func (p *PostgresClient) ListBindingSubscriptions(ctx context.Context, configID uuid.UUID) ([]*Topic, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+prefixedTopicColumns("t")+`
		FROM mqtt_topics t
		JOIN mqtt_device_subscriptions s ON s.topic_id = t.id
		WHERE s.config_id = $1
		ORDER BY t.name
	`, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var topics []*Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func prefixedTopicColumns(alias string) string {
	return alias + `.id, ` + alias + `.name, ` + alias + `.topic_pattern, ` + alias + `.direction, ` +
		alias + `.qos, ` + alias + `.retain, ` + alias + `.description, ` + alias + `.created_at, ` + alias + `.updated_at`
}
