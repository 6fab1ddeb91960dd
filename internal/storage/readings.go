package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Reading is a single measurement reported by a device for one of its
// sensors. Rows arrive over the REST ingest endpoint; the MQTT columns carry
// the broker envelope when the edge agent relayed the value from a message.
type Reading struct {
	ID            uuid.UUID      `json:"id"`
	DeviceID      uuid.UUID      `json:"device_id"`
	SensorID      uuid.UUID      `json:"sensor_id"`
	Value         float64        `json:"value"`
	RecordedAt    time.Time      `json:"recorded_at"`
	Metadata      map[string]any `json:"metadata"`
	MQTTMessageID *string        `json:"mqtt_message_id,omitempty"`
	MQTTQoS       *int16         `json:"mqtt_qos,omitempty"`
	MQTTRetained  bool           `json:"mqtt_retained"`
}

// ReadingFilter narrows queries over sensor_readings. Nil fields match
// everything.
type ReadingFilter struct {
	DeviceID *uuid.UUID
	SensorID *uuid.UUID
	From     *time.Time
	To       *time.Time
	MQTTOnly bool
	Limit    int
}

// ReadingStats aggregates the readings matched by a filter. The float
// pointers are nil when no rows matched.
type ReadingStats struct {
	Count     int64    `json:"count"`
	Average   *float64 `json:"average"`
	Maximum   *float64 `json:"maximum"`
	Minimum   *float64 `json:"minimum"`
	MQTTCount int64    `json:"mqtt_count"`
}

const readingColumns = `id, device_id, sensor_id, value, recorded_at, metadata,
	mqtt_message_id, mqtt_qos, mqtt_retained`

func scanReading(row pgx.Row) (*Reading, error) {
	var r Reading
	err := row.Scan(
		&r.ID, &r.DeviceID, &r.SensorID, &r.Value, &r.RecordedAt, &r.Metadata,
		&r.MQTTMessageID, &r.MQTTQoS, &r.MQTTRetained,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}
	return &r, nil
}

func (p *PostgresClient) InsertReading(ctx context.Context, r *Reading) (*Reading, error) {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	row := p.db.QueryRow(ctx, `
		INSERT INTO sensor_readings (device_id, sensor_id, value, metadata, mqtt_message_id, mqtt_qos, mqtt_retained)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+readingColumns,
		r.DeviceID, r.SensorID, r.Value, r.Metadata, r.MQTTMessageID, r.MQTTQoS, r.MQTTRetained,
	)
	created, err := scanReading(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reading: %w", err)
	}
	return created, nil
}

// InsertReadings writes a batch atomically. Either every reading lands or
// none do.
func (p *PostgresClient) InsertReadings(ctx context.Context, readings []*Reading) ([]*Reading, error) {
	tx, err := p.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch insert: %w", err)
	}
	defer tx.Rollback(ctx)

	txClient := p.WithTx(tx)
	created := make([]*Reading, 0, len(readings))
	for _, r := range readings {
		row, err := txClient.InsertReading(ctx, r)
		if err != nil {
			return nil, err
		}
		created = append(created, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit batch insert: %w", err)
	}
	return created, nil
}

func (f ReadingFilter) whereArgs() (string, []any) {
	where := `WHERE ($1::uuid IS NULL OR device_id = $1)
	  AND ($2::uuid IS NULL OR sensor_id = $2)
	  AND ($3::timestamptz IS NULL OR recorded_at >= $3)
	  AND ($4::timestamptz IS NULL OR recorded_at <= $4)
	  AND ($5 = FALSE OR mqtt_message_id IS NOT NULL)`
	return where, []any{f.DeviceID, f.SensorID, f.From, f.To, f.MQTTOnly}
}

// ListReadings returns matching readings newest first. Limit caps the result
// at 1000 rows; zero means the cap.
func (p *PostgresClient) ListReadings(ctx context.Context, f ReadingFilter) ([]*Reading, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	where, args := f.whereArgs()
	args = append(args, limit)

	rows, err := p.db.Query(ctx, `
		SELECT `+readingColumns+` FROM sensor_readings
		`+where+`
		ORDER BY recorded_at DESC
		LIMIT $6
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	var readings []*Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// GetReadingStats aggregates count, average, extremes and the share of rows
// that arrived through the broker.
func (p *PostgresClient) GetReadingStats(ctx context.Context, f ReadingFilter) (*ReadingStats, error) {
	where, args := f.whereArgs()
	row := p.db.QueryRow(ctx, `
		SELECT COUNT(*), AVG(value), MAX(value), MIN(value),
		       COUNT(*) FILTER (WHERE mqtt_message_id IS NOT NULL)
		FROM sensor_readings
		`+where, args...)

	var stats ReadingStats
	if err := row.Scan(&stats.Count, &stats.Average, &stats.Maximum, &stats.Minimum, &stats.MQTTCount); err != nil {
		return nil, fmt.Errorf("failed to aggregate readings: %w", err)
	}
	return &stats, nil
}
