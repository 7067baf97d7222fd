package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/contaixt/contaixt/pkg/types"
)

// CreateConnection registers a gateway connection in a workspace. Upserts
// on (workspace_id, external_auth_id) so a re-delivered auth webhook is
// harmless.
func (s *Store) CreateConnection(ctx context.Context, workspaceID uuid.UUID, sourceType types.SourceType, externalAuthID, externalAccountID string) (*types.Connection, error) {
	var c types.Connection
	err := s.pool.QueryRow(ctx,
		`INSERT INTO connections (id, workspace_id, source_type, external_auth_id, external_account_id, status)
		 VALUES ($1, $2, $3, $4, $5, 'active')
		 ON CONFLICT (workspace_id, external_auth_id) DO UPDATE
		   SET source_type = EXCLUDED.source_type,
		       external_account_id = EXCLUDED.external_account_id,
		       status = 'active',
		       updated_at = now()
		 RETURNING id, workspace_id, source_type, external_auth_id,
		           COALESCE(external_account_id, ''), status, created_at, updated_at`,
		uuid.New(), workspaceID, sourceType, externalAuthID, externalAccountID,
	).Scan(&c.ID, &c.WorkspaceID, &c.SourceType, &c.ExternalAuthID, &c.ExternalAccountID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert connection: %w", err)
	}
	return &c, nil
}

// GetConnection fetches one connection scoped to a workspace.
func (s *Store) GetConnection(ctx context.Context, workspaceID, connectionID uuid.UUID) (*types.Connection, error) {
	var c types.Connection
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, source_type, external_auth_id,
		        COALESCE(external_account_id, ''), status, created_at, updated_at
		 FROM connections WHERE id = $1 AND workspace_id = $2`,
		connectionID, workspaceID,
	).Scan(&c.ID, &c.WorkspaceID, &c.SourceType, &c.ExternalAuthID, &c.ExternalAccountID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return &c, nil
}

// GetConnectionByAuthID looks a connection up by its gateway auth ID, used
// by sync webhooks which identify connections externally.
func (s *Store) GetConnectionByAuthID(ctx context.Context, externalAuthID string) (*types.Connection, error) {
	var c types.Connection
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, source_type, external_auth_id,
		        COALESCE(external_account_id, ''), status, created_at, updated_at
		 FROM connections WHERE external_auth_id = $1`,
		externalAuthID,
	).Scan(&c.ID, &c.WorkspaceID, &c.SourceType, &c.ExternalAuthID, &c.ExternalAccountID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection by auth id: %w", err)
	}
	return &c, nil
}

// ListConnections returns all connections in a workspace.
func (s *Store) ListConnections(ctx context.Context, workspaceID uuid.UUID) ([]types.Connection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, source_type, external_auth_id,
		        COALESCE(external_account_id, ''), status, created_at, updated_at
		 FROM connections WHERE workspace_id = $1 ORDER BY created_at ASC`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var out []types.Connection
	for rows.Next() {
		var c types.Connection
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.SourceType, &c.ExternalAuthID, &c.ExternalAccountID, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateConnectionStatus moves a connection between active, inactive, and
// error states.
func (s *Store) UpdateConnectionStatus(ctx context.Context, workspaceID, connectionID uuid.UUID, status types.ConnectionStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE connections SET status = $3, updated_at = now()
		 WHERE id = $1 AND workspace_id = $2`,
		connectionID, workspaceID, status)
	if err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
