package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Topic directionality.
const (
	TopicPublish   = "publish"
	TopicSubscribe = "subscribe"
	TopicBoth      = "both"
)

// Topic is a registry entry used for UI pickers and for generating concrete
// ACL topics at provisioning time. The broker never consults this table.
type Topic struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Pattern     string    `json:"topic_pattern"`
	Direction   string    `json:"direction"`
	QoS         int       `json:"qos"`
	Retain      bool      `json:"retain"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const topicColumns = `id, name, topic_pattern, direction, qos, retain, description, created_at, updated_at`

func scanTopic(row pgx.Row) (*Topic, error) {
	var t Topic
	err := row.Scan(&t.ID, &t.Name, &t.Pattern, &t.Direction, &t.QoS, &t.Retain,
		&t.Description, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan topic: %w", err)
	}
	return &t, nil
}

func (p *PostgresClient) InsertTopic(ctx context.Context, t *Topic) (*Topic, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO mqtt_topics (name, topic_pattern, direction, qos, retain, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+topicColumns,
		t.Name, t.Pattern, t.Direction, t.QoS, t.Retain, t.Description,
	)
	created, err := scanTopic(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("topic %q already exists", t.Name)
		}
		return nil, fmt.Errorf("failed to insert topic: %w", err)
	}
	return created, nil
}

// UpsertTopic inserts a registry entry or refreshes an existing one by name.
// Used by the topic seed at startup.
func (p *PostgresClient) UpsertTopic(ctx context.Context, t *Topic) (*Topic, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO mqtt_topics (name, topic_pattern, direction, qos, retain, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			topic_pattern = EXCLUDED.topic_pattern,
			direction = EXCLUDED.direction,
			qos = EXCLUDED.qos,
			retain = EXCLUDED.retain,
			description = EXCLUDED.description,
			updated_at = NOW()
		RETURNING `+topicColumns,
		t.Name, t.Pattern, t.Direction, t.QoS, t.Retain, t.Description,
	)
	return scanTopic(row)
}

func (p *PostgresClient) UpdateTopic(ctx context.Context, t *Topic) (*Topic, error) {
	row := p.db.QueryRow(ctx, `
		UPDATE mqtt_topics
		SET name = $2, topic_pattern = $3, direction = $4, qos = $5, retain = $6,
			description = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING `+topicColumns,
		t.ID, t.Name, t.Pattern, t.Direction, t.QoS, t.Retain, t.Description,
	)
	return scanTopic(row)
}

func (p *PostgresClient) GetTopic(ctx context.Context, id uuid.UUID) (*Topic, error) {
	row := p.db.QueryRow(ctx, `SELECT `+topicColumns+` FROM mqtt_topics WHERE id = $1`, id)
	return scanTopic(row)
}

func (p *PostgresClient) ListTopics(ctx context.Context) ([]*Topic, error) {
	rows, err := p.db.Query(ctx, `SELECT `+topicColumns+` FROM mqtt_topics ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
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

func (p *PostgresClient) DeleteTopic(ctx context.Context, id uuid.UUID) error {
	result, err := p.db.Exec(ctx, `DELETE FROM mqtt_topics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
