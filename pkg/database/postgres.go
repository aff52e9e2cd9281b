// Package database opens the Postgres pool shared by the vector index, the
// rating graph and the River queue.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Option configures NewPostgresPool.
type Option func(*settings)

type settings struct {
	vectorTypes bool
	maxConns    int32
}

// WithVectorTypes registers the pgvector types on every connection. The
// extension is created first when the database does not have it yet.
func WithVectorTypes() Option {
	return func(s *settings) {
		s.vectorTypes = true
	}
}

// WithMaxConns caps the pool size. Values below 1 keep the pgx default.
func WithMaxConns(n int) Option {
	return func(s *settings) {
		s.maxConns = int32(n) //nolint:gosec // bounded by configuration
	}
}

func (s settings) apply(config *pgxpool.Config) {
	if s.maxConns > 0 {
		config.MaxConns = s.maxConns
	}

	if s.vectorTypes {
		config.AfterConnect = pgxvec.RegisterTypes
	}
}

// NewPostgresPool creates a connection pool and verifies it with a ping.
func NewPostgresPool(ctx context.Context, databaseURL string, opts ...Option) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	if s.vectorTypes {
		if err := ensureVectorExtension(ctx, config.ConnConfig.Copy()); err != nil {
			return nil, err
		}
	}

	s.apply(config)

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Connected to PostgreSQL", "max_conns", config.MaxConns, "vector_types", s.vectorTypes)

	return pool, nil
}

// ensureVectorExtension creates the vector extension over a single connection.
// Type registration fails on connections to a database without it.
func ensureVectorExtension(ctx context.Context, connConfig *pgx.ConnConfig) error {
	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	var installed bool

	err = conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`).Scan(&installed)
	if err != nil {
		return fmt.Errorf("check vector extension: %w", err)
	}

	if installed {
		return nil
	}

	if _, err := conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	slog.Info("Created pgvector extension")

	return nil
}
