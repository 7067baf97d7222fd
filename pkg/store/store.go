package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaixt/contaixt/pkg/log"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDefaultVault is returned when deleting a workspace's default vault.
	ErrDefaultVault = errors.New("default vault cannot be deleted")
	// ErrVaultNotEmpty is returned when deleting a vault whose linked
	// connections still have documents.
	ErrVaultNotEmpty = errors.New("vault still has documents")
	// ErrCrossWorkspace is returned when a link references a connection
	// from another workspace.
	ErrCrossWorkspace = errors.New("connection belongs to a different workspace")
)

// Store provides access to all relational state: tenants, documents,
// chunks, entity mentions, and the job queue.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a pgx pool to the given database URL and pings it.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns < 50 {
		cfg.MaxConns = 50
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger := log.WithComponent("store")
	logger.Info().Msg("connected to Postgres")
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
