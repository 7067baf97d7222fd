/*
Package embed wraps the OpenAI embeddings API.

EmbedTexts sends inputs in batches of at most the configured size (default
50) and returns vectors in input order, failing loudly on any count or
dimension mismatch rather than silently misaligning chunks and vectors.
Errors surface to the job runner, which retries with backoff.
*/
package embed
