package storage

import (
	"context"
	"fmt"

	"github.com/GuiSarIot/backend-iot-agro/internal/emqx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const aclColumns = `id, username, permission, action, topic, qos, retain, position, identity_id, created_at`

func scanACLRule(row pgx.Row) (*emqx.ACLRule, error) {
	var r emqx.ACLRule
	err := row.Scan(
		&r.ID, &r.Username, &r.Permission, &r.Action, &r.Topic,
		&r.QoS, &r.Retain, &r.Position, &r.IdentityID, &r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan acl rule: %w", err)
	}
	return &r, nil
}

// InsertACLRule validates and persists an authorization rule. Invalid topic
// patterns and owner mismatches are rejected here and never reach the
// broker-facing table. A zero Position is assigned the next free slot for the
// rule's username.
func (p *PostgresClient) InsertACLRule(ctx context.Context, rule emqx.ACLRule) (*emqx.ACLRule, error) {
	var owner *emqx.BrokerIdentity
	if rule.IdentityID != nil {
		var err error
		owner, err = p.GetBrokerIdentity(ctx, *rule.IdentityID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve owning identity: %w", err)
		}
	}

	if err := rule.Validate(owner); err != nil {
		return nil, err
	}

	if rule.Position == 0 {
		row := p.db.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), 0) + 1 FROM mqtt_acl WHERE username = $1`, rule.Username)
		if err := row.Scan(&rule.Position); err != nil {
			return nil, fmt.Errorf("failed to assign rule position: %w", err)
		}
	}

	created, err := scanACLRule(p.db.QueryRow(ctx, `
		INSERT INTO mqtt_acl (username, permission, action, topic, qos, retain, position, identity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+aclColumns,
		rule.Username, rule.Permission, rule.Action, rule.Topic,
		rule.QoS, rule.Retain, rule.Position, rule.IdentityID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert acl rule: %w", err)
	}
	return created, nil
}

// ListACLRulesForUsername returns rules in evaluation order. The broker's
// authorization query sorts the same way, which is what keeps the deny-all
// catch-all last.
func (p *PostgresClient) ListACLRulesForUsername(ctx context.Context, username string) ([]*emqx.ACLRule, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+aclColumns+` FROM mqtt_acl WHERE username = $1 ORDER BY position, created_at`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list acl rules: %w", err)
	}
	defer rows.Close()

	var rules []*emqx.ACLRule
	for rows.Next() {
		r, err := scanACLRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (p *PostgresClient) ListACLRules(ctx context.Context) ([]*emqx.ACLRule, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+aclColumns+` FROM mqtt_acl ORDER BY username, position, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list acl rules: %w", err)
	}
	defer rows.Close()

	var rules []*emqx.ACLRule
	for rows.Next() {
		r, err := scanACLRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// DeleteACLRulesForIdentity removes all rules owned by a broker identity.
// Used by deprovisioning; the FK cascade covers the same ground when the
// identity row itself is deleted.
func (p *PostgresClient) DeleteACLRulesForIdentity(ctx context.Context, identityID uuid.UUID) (int64, error) {
	result, err := p.db.Exec(ctx, `DELETE FROM mqtt_acl WHERE identity_id = $1`, identityID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete acl rules: %w", err)
	}
	return result.RowsAffected(), nil
}

func (p *PostgresClient) DeleteACLRule(ctx context.Context, id uuid.UUID) error {
	result, err := p.db.Exec(ctx, `DELETE FROM mqtt_acl WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete acl rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
