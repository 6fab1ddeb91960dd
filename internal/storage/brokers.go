package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Broker transport variants.
const (
	ProtocolMQTT  = "mqtt"
	ProtocolMQTTS = "mqtts"
	ProtocolWS    = "ws"
	ProtocolWSS   = "wss"
)

// BrokerConfig is one broker endpoint definition. PasswordEnc holds the
// codec-encrypted broker password, decrypted only on demand.
type BrokerConfig struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	Protocol     string    `json:"protocol"`
	Username     *string   `json:"username,omitempty"`
	PasswordEnc  *string   `json:"-"`
	Keepalive    int       `json:"keepalive"`
	CleanSession bool      `json:"clean_session"`
	UseTLS       bool      `json:"use_tls"`
	CACert       *string   `json:"ca_cert,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const brokerColumns = `id, name, host, port, protocol, username, password_enc, keepalive,
	clean_session, use_tls, ca_cert, is_active, created_at, updated_at`

func scanBroker(row pgx.Row) (*BrokerConfig, error) {
	var b BrokerConfig
	err := row.Scan(
		&b.ID, &b.Name, &b.Host, &b.Port, &b.Protocol, &b.Username, &b.PasswordEnc,
		&b.Keepalive, &b.CleanSession, &b.UseTLS, &b.CACert, &b.IsActive,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan broker config: %w", err)
	}
	return &b, nil
}

func (p *PostgresClient) InsertBrokerConfig(ctx context.Context, b *BrokerConfig) (*BrokerConfig, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO mqtt_broker_config
			(name, host, port, protocol, username, password_enc, keepalive, clean_session, use_tls, ca_cert, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+brokerColumns,
		b.Name, b.Host, b.Port, b.Protocol, b.Username, b.PasswordEnc,
		b.Keepalive, b.CleanSession, b.UseTLS, b.CACert, b.IsActive,
	)
	created, err := scanBroker(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("broker config %q already exists", b.Name)
		}
		return nil, fmt.Errorf("failed to insert broker config: %w", err)
	}
	return created, nil
}

func (p *PostgresClient) GetBrokerConfig(ctx context.Context, id uuid.UUID) (*BrokerConfig, error) {
	row := p.db.QueryRow(ctx, `SELECT `+brokerColumns+` FROM mqtt_broker_config WHERE id = $1`, id)
	return scanBroker(row)
}

func (p *PostgresClient) ListBrokerConfigs(ctx context.Context) ([]*BrokerConfig, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+brokerColumns+` FROM mqtt_broker_config ORDER BY is_active DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list broker configs: %w", err)
	}
	defer rows.Close()

	var brokers []*BrokerConfig
	for rows.Next() {
		b, err := scanBroker(rows)
		if err != nil {
			return nil, err
		}
		brokers = append(brokers, b)
	}
	return brokers, rows.Err()
}

func (p *PostgresClient) UpdateBrokerConfig(ctx context.Context, b *BrokerConfig) (*BrokerConfig, error) {
	row := p.db.QueryRow(ctx, `
		UPDATE mqtt_broker_config
		SET name = $2, host = $3, port = $4, protocol = $5, username = $6, password_enc = $7,
		    keepalive = $8, clean_session = $9, use_tls = $10, ca_cert = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING `+brokerColumns,
		b.ID, b.Name, b.Host, b.Port, b.Protocol, b.Username, b.PasswordEnc,
		b.Keepalive, b.CleanSession, b.UseTLS, b.CACert,
	)
	return scanBroker(row)
}

func (p *PostgresClient) SetBrokerActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := p.db.Exec(ctx,
		`UPDATE mqtt_broker_config SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update broker active flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresClient) DeleteBrokerConfig(ctx context.Context, id uuid.UUID) error {
	result, err := p.db.Exec(ctx, `DELETE FROM mqtt_broker_config WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete broker config: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
