/*
Package types defines the core domain entities shared across Contaixt's
ingestion pipeline, job queue, and retrieval engine.

The tenant hierarchy is:

	Workspace ──┬── Vault ←──┐
	            │            │ VaultConnectionLink (many-to-many)
	            ├── Connection ←┘
	            ├── Document ── Chunk
	            │      └────── EntityMention
	            └── Job

A Workspace is the hard tenant boundary; every row and every graph node
carries its workspace ID. Vaults scope retrieval only: a vault is a set of
connections, and a document is visible to a vault when its connection is
linked to that vault. Documents own their chunks and mentions; re-chunking
replaces both.

Jobs model the five pipeline stages (PROCESS_DOCUMENT → CHUNK_DOCUMENT →
EMBED_CHUNKS ∥ EXTRACT_ENTITIES_RELATIONS → UPSERT_GRAPH) with at-least-once
delivery, so every stage handler must be idempotent.

All types here are plain data; behavior lives in pkg/store, pkg/graph, and
pkg/pipeline.
*/
package types
