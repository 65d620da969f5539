// Package postgres stores the alert ledger in Postgres so exactly-once
// alerting survives across runs and hosts.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for the ledger.
type Config struct {
	DSN      string
	Table    string
	MaxConns int32
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Ledger records alerted listing ids in a table keyed by listing id.
type Ledger struct {
	pool  pool
	table string
}

// New connects to Postgres and makes sure the ledger table exists.
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("ledger.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	l, err := NewWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := l.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return l, nil
}

// NewWithPool constructs a ledger from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*Ledger, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "alerted_listings"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Ledger{pool: p, table: table}, nil
}

// EnsureSchema creates the ledger table if needed.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	listing_id BIGINT PRIMARY KEY,
	alerted_at TIMESTAMPTZ NOT NULL
)`, l.table)
	if _, err := l.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	return nil
}

// Seen reports whether id has a ledger row.
func (l *Ledger) Seen(ctx context.Context, id int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE listing_id = $1)`, l.table)
	var exists bool
	if err := l.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return exists, nil
}

// Mark inserts id; an existing row keeps its original timestamp.
func (l *Ledger) Mark(ctx context.Context, id int64, at time.Time) error {
	query := fmt.Sprintf(`INSERT INTO %s (listing_id, alerted_at) VALUES ($1, $2)
ON CONFLICT (listing_id) DO NOTHING`, l.table)
	if _, err := l.pool.Exec(ctx, query, id, at.UTC()); err != nil {
		return fmt.Errorf("insert ledger row: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (l *Ledger) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}
