// Package db provides a pgxpool-based connection pool for the remote
// notification history table, with prepared statement registration and
// health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/racewatch/internal/config"
)

// Prepared statement names.
const (
	StmtHealthCheck   = "health_check"
	StmtInsertHistory = "insert_history"
	StmtRecentHistory = "recent_history"
	StmtPruneHistory  = "prune_history"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
	table string
}

// New creates and validates a new connection pool against the configured
// history table. The table is created if missing.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.HistoryDatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	table := cfg.HistoryTable

	// The table must exist before statements referencing it can be prepared.
	if err := ensureSchema(ctx, poolCfg.ConnConfig, table); err != nil {
		return nil, err
	}

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn, table)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool, table: table}, nil
}

func ensureSchema(ctx context.Context, connCfg *pgx.ConnConfig, table string) error {
	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, SchemaSQL(table)); err != nil {
		return fmt.Errorf("ensure history table: %w", err)
	}
	return nil
}

// Table returns the sanitized history table identifier.
func (p *Pool) Table() string {
	return pgx.Identifier{p.table}.Sanitize()
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, StmtHealthCheck).Scan(&n)
}

// SchemaSQL returns the DDL for the history table.
func SchemaSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id                UUID PRIMARY KEY,
	dispatched_at     TIMESTAMPTZ NOT NULL,
	event_date        TEXT        NOT NULL,
	venue_id          TEXT        NOT NULL,
	venue_name        TEXT        NOT NULL,
	race_number       INTEGER     NOT NULL,
	deadline_time     TEXT        NOT NULL,
	minutes_remaining DOUBLE PRECISION NOT NULL,
	mode              TEXT        NOT NULL
)`, pgx.Identifier{table}.Sanitize())
}

// registerPreparedStatements registers the statements the history sink
// uses. The table name is part of the SQL so it is sanitized here.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn, table string) error {
	t := pgx.Identifier{table}.Sanitize()
	stmts := map[string]string{
		StmtHealthCheck: "SELECT 1",

		StmtInsertHistory: fmt.Sprintf(`INSERT INTO %s
			(id, dispatched_at, event_date, venue_id, venue_name, race_number, deadline_time, minutes_remaining, mode)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, t),

		StmtRecentHistory: fmt.Sprintf(`SELECT id, dispatched_at, event_date, venue_id, venue_name, race_number, deadline_time, minutes_remaining, mode
			FROM %s ORDER BY dispatched_at DESC LIMIT $1`, t),

		StmtPruneHistory: fmt.Sprintf(`DELETE FROM %s WHERE dispatched_at < $1`, t),
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
