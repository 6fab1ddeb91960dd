package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/GuiSarIot/backend-iot-agro/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. Storage
// methods run against it so the same client works inside and outside a
// transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresClient struct {
	pool *pgxpool.Pool
	db   Querier
}

func NewPostgresClient(cfg config.DatabaseConfig) (*PostgresClient, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Connection testen
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{pool: pool, db: pool}, nil
}

func (p *PostgresClient) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresClient) Pool() *pgxpool.Pool {
	return p.pool
}

// Begin opens a transaction on the underlying pool.
func (p *PostgresClient) Begin(ctx context.Context) (pgx.Tx, error) {
	return p.pool.Begin(ctx)
}

// WithTx returns a client whose operations run on the given transaction.
// The returned client must not be used after the transaction ends.
func (p *PostgresClient) WithTx(tx pgx.Tx) *PostgresClient {
	return &PostgresClient{pool: p.pool, db: tx}
}

// isUniqueViolation reports whether err is a postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
