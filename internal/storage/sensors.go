package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Sensor states mirror the device lifecycle minus "disconnected"; a sensor
// has no connection of its own.
const (
	SensorStateActive      = "active"
	SensorStateInactive    = "inactive"
	SensorStateMaintenance = "maintenance"
)

// SensorTypes is the catalogue offered to the console when creating a sensor.
var SensorTypes = []string{
	"temperature", "humidity", "pressure", "light", "motion",
	"gas", "sound", "distance", "accelerometer", "gyroscope", "other",
}

type Sensor struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Unit            string     `json:"unit"`
	RangeMin        float64    `json:"range_min"`
	RangeMax        float64    `json:"range_max"`
	State           string     `json:"state"`
	Description     string     `json:"description"`
	MQTTTopicSuffix *string    `json:"mqtt_topic_suffix,omitempty"`
	PublishInterval *int       `json:"publish_interval,omitempty"`
	CreatedBy       *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Validate checks the measurement range before the row is written.
func (s *Sensor) Validate() error {
	if s.RangeMin >= s.RangeMax {
		return fmt.Errorf("range_min (%g) must be less than range_max (%g)", s.RangeMin, s.RangeMax)
	}
	if s.PublishInterval != nil && (*s.PublishInterval < 1 || *s.PublishInterval > 86400) {
		return errors.New("publish_interval must be between 1 and 86400 seconds")
	}
	return nil
}

// InRange reports whether a reading value lies inside the sensor's
// declared measurement range.
func (s *Sensor) InRange(value float64) bool {
	return value >= s.RangeMin && value <= s.RangeMax
}

const sensorColumns = `id, name, sensor_type, unit, range_min, range_max, state, description,
	mqtt_topic_suffix, publish_interval, created_by, created_at, updated_at`

func scanSensor(row pgx.Row) (*Sensor, error) {
	var s Sensor
	err := row.Scan(
		&s.ID, &s.Name, &s.Type, &s.Unit, &s.RangeMin, &s.RangeMax, &s.State, &s.Description,
		&s.MQTTTopicSuffix, &s.PublishInterval, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan sensor: %w", err)
	}
	return &s, nil
}

func (p *PostgresClient) InsertSensor(ctx context.Context, s *Sensor) (*Sensor, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	row := p.db.QueryRow(ctx, `
		INSERT INTO sensors (name, sensor_type, unit, range_min, range_max, state, description,
			mqtt_topic_suffix, publish_interval, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+sensorColumns,
		s.Name, s.Type, s.Unit, s.RangeMin, s.RangeMax, s.State, s.Description,
		s.MQTTTopicSuffix, s.PublishInterval, s.CreatedBy,
	)
	created, err := scanSensor(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sensor: %w", err)
	}
	return created, nil
}

func (p *PostgresClient) GetSensor(ctx context.Context, id uuid.UUID) (*Sensor, error) {
	row := p.db.QueryRow(ctx, `SELECT `+sensorColumns+` FROM sensors WHERE id = $1`, id)
	return scanSensor(row)
}

// ListSensors returns sensors newest first. Empty filter values match
// everything.
func (p *PostgresClient) ListSensors(ctx context.Context, sensorType, state string) ([]*Sensor, error) {
	rows, err := p.db.Query(ctx, `
		SELECT `+sensorColumns+` FROM sensors
		WHERE ($1 = '' OR sensor_type = $1)
		  AND ($2 = '' OR state = $2)
		ORDER BY created_at DESC
	`, sensorType, state)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	defer rows.Close()

	var sensors []*Sensor
	for rows.Next() {
		s, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, s)
	}
	return sensors, rows.Err()
}

func (p *PostgresClient) UpdateSensor(ctx context.Context, s *Sensor) (*Sensor, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	row := p.db.QueryRow(ctx, `
		UPDATE sensors
		SET name = $2, sensor_type = $3, unit = $4, range_min = $5, range_max = $6,
		    state = $7, description = $8, mqtt_topic_suffix = $9, publish_interval = $10,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+sensorColumns,
		s.ID, s.Name, s.Type, s.Unit, s.RangeMin, s.RangeMax,
		s.State, s.Description, s.MQTTTopicSuffix, s.PublishInterval,
	)
	return scanSensor(row)
}

func (p *PostgresClient) DeleteSensor(ctx context.Context, id uuid.UUID) error {
	result, err := p.db.Exec(ctx, `DELETE FROM sensors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sensor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
