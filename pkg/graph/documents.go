package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/contaixt/contaixt/pkg/types"
)

// UpsertDocument merges the Document node for a Postgres document row.
// connection_id carries the vault scoping used by pre-filtered search.
func (g *Graph) UpsertDocument(ctx context.Context, workspaceID, documentID, connectionID uuid.UUID) error {
	_, err := g.run(ctx, `
		MERGE (d:Document {workspace_id: $ws, key: $key})
		SET d.document_id = $doc_id,
		    d.connection_id = $conn_id`,
		map[string]any{
			"ws":      workspaceID.String(),
			"key":     docKey(documentID),
			"doc_id":  documentID.String(),
			"conn_id": connectionID.String(),
		})
	if err != nil {
		return fmt.Errorf("failed to upsert document node: %w", err)
	}
	return nil
}

// UpsertChunks batch-merges Chunk nodes and their PART_OF edges. Chunks
// are identified by (workspace_id, document_id, idx) so re-embedding the
// same document updates nodes in place.
func (g *Graph) UpsertChunks(ctx context.Context, workspaceID, documentID, connectionID uuid.UUID, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	payload := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		payload = append(payload, map[string]any{
			"chunk_id":     c.ID.String(),
			"idx":          c.Idx,
			"text":         c.Text,
			"start_offset": c.StartOffset,
			"end_offset":   c.EndOffset,
			"embedding":    float64s(c.Embedding),
		})
	}

	_, err := g.run(ctx, `
		UNWIND $chunks AS c
		MERGE (chunk:Chunk {workspace_id: $ws, document_id: $doc_id, idx: c.idx})
		SET chunk.chunk_id = c.chunk_id,
		    chunk.text = c.text,
		    chunk.start_offset = c.start_offset,
		    chunk.end_offset = c.end_offset,
		    chunk.embedding = c.embedding,
		    chunk.connection_id = $conn_id
		WITH chunk
		MATCH (d:Document {workspace_id: $ws, key: $doc_key})
		MERGE (chunk)-[:PART_OF]->(d)`,
		map[string]any{
			"ws":      workspaceID.String(),
			"doc_id":  documentID.String(),
			"doc_key": docKey(documentID),
			"conn_id": connectionID.String(),
			"chunks":  payload,
		})
	if err != nil {
		return fmt.Errorf("failed to upsert chunk nodes: %w", err)
	}
	return nil
}

// DeleteDocumentChunks removes a document's Chunk nodes. Run before
// re-chunking so the graph never mixes chunk generations.
func (g *Graph) DeleteDocumentChunks(ctx context.Context, workspaceID, documentID uuid.UUID) error {
	_, err := g.run(ctx, `
		MATCH (chunk:Chunk {workspace_id: $ws, document_id: $doc_id})
		DETACH DELETE chunk`,
		map[string]any{
			"ws":     workspaceID.String(),
			"doc_id": documentID.String(),
		})
	if err != nil {
		return fmt.Errorf("failed to delete chunk nodes: %w", err)
	}
	return nil
}

// MissingEmbeddingIdx returns the idx values of a document's Chunk nodes
// that carry no embedding, so mirror drift between Postgres and the graph
// is detectable after the embed stage.
func (g *Graph) MissingEmbeddingIdx(ctx context.Context, workspaceID, documentID uuid.UUID) ([]int, error) {
	res, err := g.run(ctx, `
		MATCH (chunk:Chunk {workspace_id: $ws, document_id: $doc_id})
		WHERE chunk.embedding IS NULL
		RETURN chunk.idx AS idx
		ORDER BY idx`,
		map[string]any{
			"ws":     workspaceID.String(),
			"doc_id": documentID.String(),
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks missing embeddings: %w", err)
	}

	out := make([]int, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, asInt(rec.AsMap()["idx"]))
	}
	return out, nil
}

func docKey(documentID uuid.UUID) string {
	return "doc:" + documentID.String()
}
