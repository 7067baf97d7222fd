// Package retrieval builds query context from the vector index and the
// knowledge graph.
//
// The pipeline for one query:
//
//	1. embed the prompt
//	2. resolve vault ids to connection ids (strict: an unconnected
//	   vault filter yields an empty result)
//	3. pre-filtered exact-nearest-neighbor vector search, fetching a
//	   multiple of top_k as rerank candidates
//	4. cross-encoder rerank down to top_k
//	5. seed entities from the matched documents' MENTIONS edges
//	6. multi-hop graph traversal from the seeds
//	7. enrich chunks with document provenance from Postgres
//
// Tenant isolation happens inside the vector search: the workspace and
// connection filters are applied before similarity is computed, never as a
// post-filter over a global candidate set.
package retrieval
