package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/contaixt/contaixt/pkg/types"
)

// CreateWorkspace inserts a workspace and its default vault in one
// transaction. Every workspace always has exactly one default vault.
func (s *Store) CreateWorkspace(ctx context.Context, name string) (*types.Workspace, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ws := &types.Workspace{ID: uuid.New(), Name: name}
	err = tx.QueryRow(ctx,
		`INSERT INTO workspaces (id, name) VALUES ($1, $2) RETURNING created_at`,
		ws.ID, ws.Name,
	).Scan(&ws.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert workspace: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO vaults (id, workspace_id, name, description, is_default)
		 VALUES ($1, $2, 'Default', 'Default vault', TRUE)`,
		uuid.New(), ws.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert default vault: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit workspace: %w", err)
	}
	return ws, nil
}

// GetWorkspace fetches one workspace by ID.
func (s *Store) GetWorkspace(ctx context.Context, id uuid.UUID) (*types.Workspace, error) {
	var ws types.Workspace
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM workspaces WHERE id = $1`, id,
	).Scan(&ws.ID, &ws.Name, &ws.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &ws, nil
}

// ListWorkspaces returns all workspaces, newest first.
func (s *Store) ListWorkspaces(ctx context.Context) ([]types.Workspace, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM workspaces ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var out []types.Workspace
	for rows.Next() {
		var ws types.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}
