package graph

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/contaixt/contaixt/pkg/types"
)

// labelFor maps an extracted entity type to its node label. Unknown types
// project as Topic.
func labelFor(entityType string) string {
	switch strings.ToLower(entityType) {
	case "person":
		return "Person"
	case "company":
		return "Company"
	default:
		return "Topic"
	}
}

// NormalizeRelationType upper-snake-cases a relation type and strips
// anything unsafe to interpolate into Cypher. Relation types cannot be
// parameterized, so only [A-Z0-9_] survives. Empty input falls back to
// RELATED_TO.
func NormalizeRelationType(relType string) string {
	up := strings.ToUpper(strings.TrimSpace(relType))
	up = strings.ReplaceAll(up, " ", "_")

	var b strings.Builder
	for _, r := range up {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "RELATED_TO"
	}
	return out
}

// UpsertEntities merges entity nodes and MENTIONS edges from the document
// node to each entity. Entity keys must already be resolved.
func (g *Graph) UpsertEntities(ctx context.Context, workspaceID, documentID uuid.UUID, entities []types.ExtractedEntity) error {
	ws := workspaceID.String()
	dk := docKey(documentID)

	for _, ent := range entities {
		if ent.Key == "" {
			continue
		}
		label := labelFor(ent.Type)

		_, err := g.run(ctx, fmt.Sprintf(`
			MERGE (e:%s {workspace_id: $ws, key: $key})
			SET e.name = $name,
			    e.email = $email,
			    e.domain = $domain`, label),
			map[string]any{
				"ws":     ws,
				"key":    ent.Key,
				"name":   ent.Name,
				"email":  ent.Email,
				"domain": ent.Domain,
			})
		if err != nil {
			return fmt.Errorf("failed to merge entity %s: %w", ent.Key, err)
		}

		_, err = g.run(ctx, fmt.Sprintf(`
			MATCH (d:Document {workspace_id: $ws, key: $doc_key})
			MATCH (e:%s {workspace_id: $ws, key: $entity_key})
			MERGE (d)-[r:MENTIONS]->(e)
			SET r.document_id = $doc_id,
			    r.confidence = $confidence`, label),
			map[string]any{
				"ws":         ws,
				"doc_key":    dk,
				"entity_key": ent.Key,
				"doc_id":     documentID.String(),
				"confidence": mentionConfidence(ent.Confidence),
			})
		if err != nil {
			return fmt.Errorf("failed to merge MENTIONS edge for %s: %w", ent.Key, err)
		}
	}
	return nil
}

// UpsertRelations merges typed edges between already-merged entities.
// Relations whose endpoints did not resolve are skipped.
func (g *Graph) UpsertRelations(ctx context.Context, workspaceID, documentID uuid.UUID, relations []types.ExtractedRelation) error {
	ws := workspaceID.String()

	for _, rel := range relations {
		if rel.FromKey == "" || rel.ToKey == "" {
			continue
		}
		relType := NormalizeRelationType(rel.Type)

		_, err := g.run(ctx, fmt.Sprintf(`
			MATCH (a {workspace_id: $ws, key: $from_key})
			MATCH (b {workspace_id: $ws, key: $to_key})
			MERGE (a)-[r:%s]->(b)
			SET r.document_id = $doc_id,
			    r.evidence = $evidence`, relType),
			map[string]any{
				"ws":       ws,
				"from_key": rel.FromKey,
				"to_key":   rel.ToKey,
				"doc_id":   documentID.String(),
				"evidence": truncate(rel.Evidence, 200),
			})
		if err != nil {
			return fmt.Errorf("failed to merge %s relation %s -> %s: %w", relType, rel.FromKey, rel.ToKey, err)
		}
	}
	return nil
}

func mentionConfidence(c float64) float64 {
	if c <= 0 {
		return 1.0
	}
	return c
}

// truncate caps s at n bytes, narrowed to a rune boundary so the graph
// never stores a split multi-byte character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
