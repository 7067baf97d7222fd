/*
Package log provides structured logging for Contaixt using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Usage

Initialize once at process startup:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Create component loggers that tag every entry:

	logger := log.WithComponent("worker")
	logger.Info().Str("job_id", job.ID.String()).Msg("claimed job")

Pipeline code uses the contextual helpers to keep ingestion traceable across
stages:

	log.WithDocumentID(docID.String()).Info().Msg("chunking document")

# Output Formats

JSON output (production, one object per line):

	{"level":"info","component":"worker","job_id":"a1b2","time":"...","message":"claimed job"}

Console output (development) renders the same fields human-readable via
zerolog.ConsoleWriter.

# Integration Points

Every long-running component (API server, worker loop, graph driver) takes a
child logger from WithComponent at construction. Handlers add document and job
fields so a single document can be traced through PROCESS → CHUNK → EMBED /
EXTRACT → UPSERT_GRAPH in the logs.
*/
package log
