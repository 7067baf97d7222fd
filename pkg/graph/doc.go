/*
Package graph is the Neo4j access layer.

The property graph is a projection of relational state plus the extracted
knowledge layer: Document and Chunk nodes mirror Postgres rows, while
Person, Company, and Topic nodes with typed relation edges exist only here.
It can always be rebuilt from Postgres plus a re-extraction pass.

# Node identity

Every node carries workspace_id, and all node lookups merge on
(workspace_id, key):

	Document  key "doc:<uuid>"
	Chunk     identified by (workspace_id, document_id, idx)
	Person    key "person:email:<email>" or "person:name:<normalized>"
	Company   key "company:domain:<domain>" or "company:name:<normalized>"
	Topic     key "topic:<normalized>"

Document and Chunk nodes carry connection_id; vault scoping at query time
is a connection-set pre-filter, never a property of entities or edges.

# Search

VectorSearch uses exact nearest neighbour cosine similarity with the tenant
filter in the Cypher WHERE clause, so isolation happens before any scores
are computed. Traversal from seed entities walks untyped variable-length
paths, capped at depth 3 and 100 facts.

# Writes

All write queries are MERGE-based and idempotent; the pipeline replays them
freely under at-least-once job delivery. Relation types are interpolated
into Cypher (they cannot be parameterized) and therefore pass through
NormalizeRelationType first.
*/
package graph
