package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/contaixt/contaixt/pkg/types"
)

// CreateVault inserts a non-default vault in a workspace.
func (s *Store) CreateVault(ctx context.Context, workspaceID uuid.UUID, name, description string) (*types.Vault, error) {
	v := &types.Vault{ID: uuid.New(), WorkspaceID: workspaceID, Name: name, Description: description}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO vaults (id, workspace_id, name, description, is_default)
		 VALUES ($1, $2, $3, $4, FALSE)
		 RETURNING created_at, updated_at`,
		v.ID, v.WorkspaceID, v.Name, v.Description,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert vault: %w", err)
	}
	return v, nil
}

// GetVault fetches one vault scoped to a workspace.
func (s *Store) GetVault(ctx context.Context, workspaceID, vaultID uuid.UUID) (*types.Vault, error) {
	var v types.Vault
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, name, COALESCE(description, ''), is_default, created_at, updated_at
		 FROM vaults WHERE id = $1 AND workspace_id = $2`,
		vaultID, workspaceID,
	).Scan(&v.ID, &v.WorkspaceID, &v.Name, &v.Description, &v.IsDefault, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vault: %w", err)
	}
	return &v, nil
}

// ListVaults returns all vaults in a workspace, default first.
func (s *Store) ListVaults(ctx context.Context, workspaceID uuid.UUID) ([]types.Vault, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, name, COALESCE(description, ''), is_default, created_at, updated_at
		 FROM vaults WHERE workspace_id = $1
		 ORDER BY is_default DESC, created_at ASC`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vaults: %w", err)
	}
	defer rows.Close()

	var out []types.Vault
	for rows.Next() {
		var v types.Vault
		if err := rows.Scan(&v.ID, &v.WorkspaceID, &v.Name, &v.Description, &v.IsDefault, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vault: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateVault renames a vault or changes its description.
func (s *Store) UpdateVault(ctx context.Context, workspaceID, vaultID uuid.UUID, name, description string) (*types.Vault, error) {
	var v types.Vault
	err := s.pool.QueryRow(ctx,
		`UPDATE vaults SET name = $3, description = $4, updated_at = now()
		 WHERE id = $1 AND workspace_id = $2
		 RETURNING id, workspace_id, name, COALESCE(description, ''), is_default, created_at, updated_at`,
		vaultID, workspaceID, name, description,
	).Scan(&v.ID, &v.WorkspaceID, &v.Name, &v.Description, &v.IsDefault, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update vault: %w", err)
	}
	return &v, nil
}

// DeleteVault removes a vault. The default vault is protected, and a
// vault whose linked connections still have documents must be emptied
// first. Links alone do not block deletion; they cascade away with the
// vault.
func (s *Store) DeleteVault(ctx context.Context, workspaceID, vaultID uuid.UUID) error {
	v, err := s.GetVault(ctx, workspaceID, vaultID)
	if err != nil {
		return err
	}
	if v.IsDefault {
		return ErrDefaultVault
	}

	var reachable int
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM documents d
		 JOIN vault_connections vc ON vc.connection_id = d.connection_id
		 WHERE vc.vault_id = $1`, vaultID,
	).Scan(&reachable)
	if err != nil {
		return fmt.Errorf("failed to count vault documents: %w", err)
	}
	if reachable > 0 {
		return ErrVaultNotEmpty
	}

	_, err = s.pool.Exec(ctx,
		`DELETE FROM vaults WHERE id = $1 AND workspace_id = $2`, vaultID, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to delete vault: %w", err)
	}
	return nil
}

// SetVaultConnections replaces the connection set of a vault. Every
// connection must belong to the vault's workspace.
func (s *Store) SetVaultConnections(ctx context.Context, workspaceID, vaultID uuid.UUID, connectionIDs []uuid.UUID) error {
	if _, err := s.GetVault(ctx, workspaceID, vaultID); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, connID := range connectionIDs {
		var connWorkspace uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT workspace_id FROM connections WHERE id = $1`, connID,
		).Scan(&connWorkspace)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check connection %s: %w", connID, err)
		}
		if connWorkspace != workspaceID {
			return ErrCrossWorkspace
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM vault_connections WHERE vault_id = $1`, vaultID); err != nil {
		return fmt.Errorf("failed to clear vault connections: %w", err)
	}

	for _, connID := range connectionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO vault_connections (vault_id, connection_id) VALUES ($1, $2)`,
			vaultID, connID); err != nil {
			return fmt.Errorf("failed to link connection %s: %w", connID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit vault connections: %w", err)
	}
	return nil
}

// VaultConnectionIDs resolves the union of connection IDs linked to the
// given vaults. Vaults outside the workspace are ignored.
func (s *Store) VaultConnectionIDs(ctx context.Context, workspaceID uuid.UUID, vaultIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(vaultIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT vc.connection_id
		 FROM vault_connections vc
		 JOIN vaults v ON v.id = vc.vault_id
		 WHERE v.workspace_id = $1 AND vc.vault_id = ANY($2)`,
		workspaceID, vaultIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault connections: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan connection id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
