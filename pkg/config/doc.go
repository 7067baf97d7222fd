/*
Package config loads runtime configuration from the environment.

A .env file in the working directory is read first when present (via
godotenv); variables already set in the real environment take precedence.
Load applies defaults, parses numeric and duration knobs, and validates the
handful of invariants the pipeline depends on (overlap smaller than chunk
size, positive attempt cap).

# Variables

Stores:

	DATABASE_URL       Postgres DSN (pgx pool)
	NEO4J_URI          bolt:// endpoint
	NEO4J_USERNAME, NEO4J_PASSWORD, NEO4J_DATABASE

Models:

	OPENAI_API_KEY
	EMBED_MODEL        default text-embedding-3-small
	EMBED_DIM          default 1536
	EMBED_BATCH_SIZE   default 50
	EXTRACT_MODEL      default gpt-4o-mini
	ANSWER_MODEL       default gpt-4o-mini
	COHERE_API_KEY     empty disables reranking
	RERANK_MODEL       default rerank-v3.5

Queue and pipeline:

	MAX_ATTEMPTS       default 3
	POLL_INTERVAL      default 2s (bare integers mean seconds)
	BACKOFF_BASE       default 30s
	JOB_TIMEOUT        default 5m
	STUCK_JOB_TIMEOUT  default 10m
	WORKER_CONCURRENCY default 1
	CHUNK_SIZE         default 1200
	CHUNK_OVERLAP      default 150
	MAX_DEPTH          default 4
	RERANK_CANDIDATE_MULTIPLIER default 3

Gateway:

	GATEWAY_BASE_URL   default https://api.nango.dev
	GATEWAY_SECRET_KEY proxy API key
	WEBHOOK_SECRET     HMAC shared secret for /v1/webhooks/ingest
*/
package config
