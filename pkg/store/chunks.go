package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/contaixt/contaixt/pkg/chunker"
	"github.com/contaixt/contaixt/pkg/types"
)

// ReplaceDocumentChunks deletes a document's chunks and inserts the new
// set in one transaction, so re-chunking after an update never leaves a
// mixed generation behind.
func (s *Store) ReplaceDocumentChunks(ctx context.Context, workspaceID, documentID uuid.UUID, pieces []chunker.Chunk) ([]types.Chunk, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM document_chunks WHERE workspace_id = $1 AND document_id = $2`,
		workspaceID, documentID); err != nil {
		return nil, fmt.Errorf("failed to delete existing chunks: %w", err)
	}

	out := make([]types.Chunk, 0, len(pieces))
	for _, p := range pieces {
		c := types.Chunk{
			ID:          uuid.New(),
			WorkspaceID: workspaceID,
			DocumentID:  documentID,
			Idx:         p.Idx,
			Text:        p.Text,
			StartOffset: p.StartOffset,
			EndOffset:   p.EndOffset,
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO document_chunks (id, workspace_id, document_id, idx, text, start_offset, end_offset)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING created_at`,
			c.ID, c.WorkspaceID, c.DocumentID, c.Idx, c.Text, c.StartOffset, c.EndOffset,
		).Scan(&c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert chunk %d: %w", p.Idx, err)
		}
		out = append(out, c)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit chunks: %w", err)
	}
	return out, nil
}

// ListDocumentChunks returns a document's chunks in index order. Embeddings
// are not loaded; vector search runs in the graph store.
func (s *Store) ListDocumentChunks(ctx context.Context, workspaceID, documentID uuid.UUID) ([]types.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, document_id, idx, text, start_offset, end_offset, created_at
		 FROM document_chunks
		 WHERE workspace_id = $1 AND document_id = $2
		 ORDER BY idx ASC`,
		workspaceID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var out []types.Chunk
	for rows.Next() {
		var c types.Chunk
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.DocumentID, &c.Idx, &c.Text, &c.StartOffset, &c.EndOffset, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListUnembeddedChunks returns the document's chunks still missing an
// embedding, in index order. Replayed EMBED jobs skip finished work.
func (s *Store) ListUnembeddedChunks(ctx context.Context, workspaceID, documentID uuid.UUID) ([]types.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, document_id, idx, text, start_offset, end_offset, created_at
		 FROM document_chunks
		 WHERE workspace_id = $1 AND document_id = $2 AND embedding IS NULL
		 ORDER BY idx ASC`,
		workspaceID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unembedded chunks: %w", err)
	}
	defer rows.Close()

	var out []types.Chunk
	for rows.Next() {
		var c types.Chunk
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.DocumentID, &c.Idx, &c.Text, &c.StartOffset, &c.EndOffset, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListEmbeddedChunks returns the document's chunks that already carry an
// embedding, vectors included, in index order. The embed stage mirrors
// these into the graph, so a replay can re-push vectors a prior attempt
// stored but never mirrored.
func (s *Store) ListEmbeddedChunks(ctx context.Context, workspaceID, documentID uuid.UUID) ([]types.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, document_id, idx, text, start_offset, end_offset, embedding, created_at
		 FROM document_chunks
		 WHERE workspace_id = $1 AND document_id = $2 AND embedding IS NOT NULL
		 ORDER BY idx ASC`,
		workspaceID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded chunks: %w", err)
	}
	defer rows.Close()

	var out []types.Chunk
	for rows.Next() {
		var c types.Chunk
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.DocumentID, &c.Idx, &c.Text, &c.StartOffset, &c.EndOffset, &vec, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan embedded chunk: %w", err)
		}
		c.Embedding = vec.Slice()
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetChunkEmbedding stores the embedding for one chunk.
func (s *Store) SetChunkEmbedding(ctx context.Context, chunkID uuid.UUID, embedding []float32) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE document_chunks SET embedding = $2 WHERE id = $1`,
		chunkID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to set chunk embedding: %w", err)
	}
	return nil
}
