// Package pipeline implements the five-stage ingestion pipeline as job
// handlers.
//
// Stages hand off by enqueueing their successor:
//
//	PROCESS_DOCUMENT ──▶ CHUNK_DOCUMENT ──▶ EMBED_CHUNKS
//	                              │
//	                              └───────▶ EXTRACT_ENTITIES_RELATIONS ──▶ UPSERT_GRAPH
//
// PROCESS and CHUNK guard their successors with a pending-job check so that
// re-ingesting a document while its pipeline is still running does not
// stack duplicate work. EXTRACT carries its full result in the UPSERT_GRAPH
// payload, so a graph retry never repeats the model call.
//
// The handlers depend on narrow interfaces over the Postgres store, the
// Neo4j graph, the embedder, and the extractor, which keeps each stage
// testable with in-memory fakes.
package pipeline
