/*
Package store is the Postgres access layer.

All relational state lives here: the tenant hierarchy (workspaces, vaults,
connections, vault-connection links), canonical documents with their chunks
and entity mentions, and the job queue. Postgres is the source of truth;
the property graph is a projection that can always be rebuilt from these
tables.

# Tenancy

Every read and write below the workspace level takes a workspace ID and
scopes its SQL with it. Vault deletion is guarded twice: the default vault
is never deletable, and a vault with connections assigned must be emptied
first.

# Document dedup

UpsertDocument deduplicates on (workspace_id, source_type, external_id) and
compares content hashes, reporting created, updated, or unchanged. Chunk and
mention writes are replace-per-document inside a transaction, so a document
update never leaves rows from two generations.

# Job queue

The jobs table is an at-least-once queue. Claim uses

	SELECT ... FOR UPDATE SKIP LOCKED

inside an UPDATE so concurrent workers never share a row, with FIFO order
within the ready set. Failures requeue with a linear backoff of
attempts x BACKOFF_BASE until the attempt cap, then park the job in the
terminal failed state with the truncated handler error in last_error.
ReleaseStuck requeues running jobs whose worker died mid-claim.
*/
package store
