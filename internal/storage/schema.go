package storage

import (
	"context"
	"fmt"
)

// EnsureSchema creates the relations if they do not exist. The mqtt_user and
// mqtt_acl tables are queried directly by the external EMQX broker; their
// names and columns must stay exactly as written here.
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,

		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'operator',
			telegram_chat_id TEXT,
			email TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_login_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT UNIQUE NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS devices (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			device_type TEXT NOT NULL,
			external_id TEXT UNIQUE NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'inactive',
			description TEXT NOT NULL DEFAULT '',
			mqtt_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			mqtt_client_id TEXT UNIQUE,
			last_seen TIMESTAMPTZ,
			connection_status TEXT NOT NULL DEFAULT 'offline',
			operator_id UUID REFERENCES users(id) ON DELETE SET NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_external_id ON devices(external_id)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_conn_status ON devices(connection_status)`,

		`CREATE TABLE IF NOT EXISTS sensors (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			sensor_type TEXT NOT NULL,
			unit TEXT NOT NULL,
			range_min DOUBLE PRECISION NOT NULL,
			range_max DOUBLE PRECISION NOT NULL,
			state TEXT NOT NULL DEFAULT 'active',
			description TEXT NOT NULL DEFAULT '',
			mqtt_topic_suffix TEXT,
			publish_interval INTEGER,
			created_by UUID REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sensors_type ON sensors(sensor_type)`,
		`CREATE INDEX IF NOT EXISTS idx_sensors_state ON sensors(state)`,

		`CREATE TABLE IF NOT EXISTS sensor_readings (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			device_id UUID NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			sensor_id UUID NOT NULL REFERENCES sensors(id) ON DELETE CASCADE,
			value DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			metadata JSONB NOT NULL DEFAULT '{}',
			mqtt_message_id TEXT,
			mqtt_qos SMALLINT,
			mqtt_retained BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON sensor_readings(device_id, recorded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_sensor_ts ON sensor_readings(sensor_id, recorded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_mqtt_msg ON sensor_readings(mqtt_message_id)`,

		// Broker authentication table. EMQX query:
		//   SELECT password_hash, salt, is_superuser FROM mqtt_user WHERE username = $1
		`CREATE TABLE IF NOT EXISTS mqtt_user (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username TEXT UNIQUE NOT NULL,
			password_hash VARCHAR(100) NOT NULL,
			salt VARCHAR(40) NOT NULL,
			is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
			device_id UUID REFERENCES devices(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mqtt_user_username ON mqtt_user(username)`,

		// Broker authorization table. EMQX query:
		//   SELECT permission, action, topic, qos, retain FROM mqtt_acl
		//   WHERE username = $1 ORDER BY position
		`CREATE TABLE IF NOT EXISTS mqtt_acl (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username TEXT NOT NULL,
			permission TEXT NOT NULL CHECK (permission IN ('allow', 'deny')),
			action TEXT NOT NULL CHECK (action IN ('publish', 'subscribe', 'all')),
			topic TEXT NOT NULL,
			qos SMALLINT,
			retain SMALLINT,
			position INTEGER NOT NULL DEFAULT 0,
			identity_id UUID REFERENCES mqtt_user(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mqtt_acl_username ON mqtt_acl(username)`,

		`CREATE TABLE IF NOT EXISTS mqtt_broker_config (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT UNIQUE NOT NULL,
			host TEXT NOT NULL,
			port INTEGER NOT NULL DEFAULT 1883,
			protocol TEXT NOT NULL DEFAULT 'mqtt',
			username TEXT,
			password_enc TEXT,
			keepalive INTEGER NOT NULL DEFAULT 60,
			clean_session BOOLEAN NOT NULL DEFAULT TRUE,
			use_tls BOOLEAN NOT NULL DEFAULT FALSE,
			ca_cert TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_broker_active ON mqtt_broker_config(is_active)`,

		`CREATE TABLE IF NOT EXISTS mqtt_topics (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT UNIQUE NOT NULL,
			topic_pattern TEXT NOT NULL,
			direction TEXT NOT NULL DEFAULT 'both',
			qos SMALLINT NOT NULL DEFAULT 1,
			retain BOOLEAN NOT NULL DEFAULT FALSE,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Operator-facing secret record. password_enc is reversible (codec),
		// distinct from the one-way mqtt_user hash.
		`CREATE TABLE IF NOT EXISTS mqtt_credentials (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			device_id UUID UNIQUE NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			client_id TEXT UNIQUE NOT NULL,
			username TEXT NOT NULL,
			password_enc TEXT NOT NULL,
			use_device_cert BOOLEAN NOT NULL DEFAULT FALSE,
			client_cert TEXT,
			client_key TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS mqtt_device_config (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			device_id UUID UNIQUE NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			broker_id UUID NOT NULL REFERENCES mqtt_broker_config(id) ON DELETE CASCADE,
			publish_topic_id UUID REFERENCES mqtt_topics(id) ON DELETE SET NULL,
			publish_interval INTEGER NOT NULL DEFAULT 60,
			qos SMALLINT NOT NULL DEFAULT 1,
			retain BOOLEAN NOT NULL DEFAULT FALSE,
			auto_reconnect BOOLEAN NOT NULL DEFAULT TRUE,
			last_connection TIMESTAMPTZ,
			connection_status TEXT NOT NULL DEFAULT 'disconnected',
			metadata JSONB NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mqtt_dev_status ON mqtt_device_config(connection_status)`,

		`CREATE TABLE IF NOT EXISTS mqtt_device_subscriptions (
			config_id UUID NOT NULL REFERENCES mqtt_device_config(id) ON DELETE CASCADE,
			topic_id UUID NOT NULL REFERENCES mqtt_topics(id) ON DELETE CASCADE,
			PRIMARY KEY (config_id, topic_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
