// Package rerank reorders vector-search candidates with a cross-encoder
// relevance model.
//
// Vector similarity retrieves a wide candidate set; the reranker scores
// each candidate against the query text and keeps the top N. When no API
// key is configured the reranker is disabled and simply truncates the
// similarity-ordered candidates, so callers never need to branch on
// whether reranking is available.
package rerank
