package graph

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/contaixt/contaixt/pkg/types"
)

// maxTraversalDepth caps variable-length path expansion regardless of the
// requested depth.
const maxTraversalDepth = 3

// maxFacts bounds how many distinct facts a traversal may return.
const maxFacts = 100

// VectorSearch runs exact nearest neighbour cosine search over Chunk
// embeddings. The workspace filter (and connection filter, when present)
// is applied BEFORE similarity is computed, so tenant isolation does not
// depend on result post-filtering.
func (g *Graph) VectorSearch(ctx context.Context, workspaceID uuid.UUID, embedding []float32, topK int, connectionIDs []uuid.UUID) ([]types.RetrievedChunk, error) {
	params := map[string]any{
		"ws":        workspaceID.String(),
		"embedding": float64s(embedding),
		"top_k":     topK,
	}

	connFilter := ""
	if len(connectionIDs) > 0 {
		connFilter = "AND chunk.connection_id IN $conn_ids"
		connIDs := make([]string, len(connectionIDs))
		for i, id := range connectionIDs {
			connIDs[i] = id.String()
		}
		params["conn_ids"] = connIDs
	}

	result, err := g.run(ctx, fmt.Sprintf(`
		MATCH (chunk:Chunk)
		WHERE chunk.workspace_id = $ws
		  %s
		  AND chunk.embedding IS NOT NULL
		WITH chunk, vector.similarity.cosine(chunk.embedding, $embedding) AS score
		WHERE score > 0.0
		ORDER BY score DESC
		LIMIT $top_k
		RETURN chunk.chunk_id AS chunk_id,
		       chunk.document_id AS document_id,
		       chunk.idx AS idx,
		       chunk.text AS text,
		       chunk.start_offset AS start_offset,
		       chunk.end_offset AS end_offset,
		       score`, connFilter),
		params)
	if err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}

	out := make([]types.RetrievedChunk, 0, len(result.Records))
	for _, rec := range result.Records {
		row := rec.AsMap()
		out = append(out, types.RetrievedChunk{
			ChunkID:     asString(row["chunk_id"]),
			DocumentID:  asString(row["document_id"]),
			Idx:         asInt(row["idx"]),
			Text:        asString(row["text"]),
			StartOffset: asInt(row["start_offset"]),
			EndOffset:   asInt(row["end_offset"]),
			Score:       asFloat(row["score"]),
		})
	}
	return out, nil
}

// SeedEntities returns the distinct entities mentioned by the given
// documents, reached via MENTIONS edges.
func (g *Graph) SeedEntities(ctx context.Context, workspaceID uuid.UUID, documentIDs []string) ([]types.SeedEntity, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}

	result, err := g.run(ctx, `
		UNWIND $doc_ids AS doc_id
		MATCH (d:Document {workspace_id: $ws, key: 'doc:' + doc_id})-[:MENTIONS]->(entity)
		RETURN DISTINCT entity.key AS key,
		                labels(entity)[0] AS type,
		                entity.name AS name`,
		map[string]any{
			"ws":      workspaceID.String(),
			"doc_ids": documentIDs,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to look up seed entities: %w", err)
	}

	var out []types.SeedEntity
	for _, rec := range result.Records {
		row := rec.AsMap()
		key := asString(row["key"])
		if key == "" {
			continue
		}
		out = append(out, types.SeedEntity{
			Key:  key,
			Type: asString(row["type"]),
			Name: asString(row["name"]),
		})
	}
	return out, nil
}

// Traverse walks variable-length paths from the seed entity keys and
// collects distinct facts. Depth is capped at maxTraversalDepth and the
// result at maxFacts rows. Traversal is workspace-unified: edges are not
// vault-filtered, so cross-vault knowledge stays discoverable.
func (g *Graph) Traverse(ctx context.Context, workspaceID uuid.UUID, entityKeys []string, depth int) ([]types.Fact, error) {
	if len(entityKeys) == 0 || depth < 1 {
		return nil, nil
	}
	if depth > maxTraversalDepth {
		depth = maxTraversalDepth
	}

	// Variable-length bounds cannot be parameterized; depth is a clamped
	// integer by the time it is interpolated.
	query := `
		UNWIND $keys AS k
		MATCH (start {workspace_id: $ws, key: k})
		MATCH (start)-[r*1..` + strconv.Itoa(depth) + `]->(end)
		WITH r
		UNWIND r AS rel
		WITH startNode(rel) AS a, endNode(rel) AS b, rel, type(rel) AS rel_type
		RETURN DISTINCT
		    a.name AS from_name,
		    a.key AS from_key,
		    rel_type AS relation,
		    b.name AS to_name,
		    b.key AS to_key,
		    rel.document_id AS document_id,
		    rel.evidence AS evidence
		LIMIT ` + strconv.Itoa(maxFacts)

	result, err := g.run(ctx, query, map[string]any{
		"ws":   workspaceID.String(),
		"keys": entityKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to traverse graph: %w", err)
	}

	var out []types.Fact
	for _, rec := range result.Records {
		row := rec.AsMap()
		fromKey := asString(row["from_key"])
		if fromKey == "" {
			continue
		}
		out = append(out, types.Fact{
			FromKey:    fromKey,
			FromName:   asString(row["from_name"]),
			Relation:   asString(row["relation"]),
			ToKey:      asString(row["to_key"]),
			ToName:     asString(row["to_name"]),
			DocumentID: asString(row["document_id"]),
			Evidence:   asString(row["evidence"]),
		})
	}
	return out, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
