// Package answer composes grounded answers from retrieved context.
//
// The model is constrained to the provided chunks and graph facts and asked
// for strict JSON with inline chunk citations. Cited chunk ids are filtered
// against the retrieved set, so a hallucinated id can never surface as a
// citation. When retrieval produced no chunks the composer short-circuits
// with a canned answer and spends no tokens.
package answer
