// Package pgstore persists the mirror snapshot in PostgreSQL for
// deployments where several service instances share one warm cache seed.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"assetmirror/internal/persist"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ persist.Backend = (*Store)(nil)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/assetmirror?sslmode=disable"

	snapshotKey = "assets"
)

// Store is a Postgres-backed snapshot backend.
type Store struct {
	db *sql.DB
}

// New opens a connection using dsn (falls back to defaultDSN) and ensures
// the snapshot table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS snapshot (
		key TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure snapshot table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshot WHERE key = $1`, snapshotKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persist.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return payload, nil
}

func (s *Store) Save(ctx context.Context, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshot(key,payload) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET payload=excluded.payload`,
		snapshotKey, payload)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }
