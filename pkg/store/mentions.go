package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/contaixt/contaixt/pkg/types"
)

// ReplaceDocumentMentions deletes a document's entity mentions and inserts
// the new set transactionally. Re-extraction is replace, not append.
func (s *Store) ReplaceDocumentMentions(ctx context.Context, workspaceID, documentID uuid.UUID, mentions []types.EntityMention) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM entity_mentions WHERE workspace_id = $1 AND document_id = $2`,
		workspaceID, documentID); err != nil {
		return fmt.Errorf("failed to delete existing mentions: %w", err)
	}

	for _, m := range mentions {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO entity_mentions
			   (id, workspace_id, document_id, chunk_id, entity_key, entity_type, entity_name, confidence)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			m.ID, workspaceID, documentID, m.ChunkID, m.EntityKey, m.EntityType, m.EntityName, m.Confidence,
		); err != nil {
			return fmt.Errorf("failed to insert mention %s: %w", m.EntityKey, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit mentions: %w", err)
	}
	return nil
}

// ListDocumentMentions returns the mentions recorded for a document.
func (s *Store) ListDocumentMentions(ctx context.Context, workspaceID, documentID uuid.UUID) ([]types.EntityMention, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, document_id, chunk_id, entity_key, entity_type, entity_name, COALESCE(confidence, 0)
		 FROM entity_mentions
		 WHERE workspace_id = $1 AND document_id = $2
		 ORDER BY entity_key ASC`,
		workspaceID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentions: %w", err)
	}
	defer rows.Close()

	var out []types.EntityMention
	for rows.Next() {
		var m types.EntityMention
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.DocumentID, &m.ChunkID, &m.EntityKey, &m.EntityType, &m.EntityName, &m.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan mention: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
