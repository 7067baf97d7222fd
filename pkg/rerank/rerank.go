package rerank

import (
	"context"
	"fmt"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"github.com/contaixt/contaixt/pkg/types"
)

const requestTimeout = 30 * time.Second

// Config holds reranker settings. An empty APIKey disables reranking.
type Config struct {
	APIKey string
	Model  string
}

// Reranker reorders retrieved chunks by relevance to the query using a
// cross-encoder model. When no API key is configured it degrades to
// truncating the similarity-ordered candidates.
type Reranker struct {
	api   *cohereclient.Client
	model string
}

// New creates a reranker. Returns a disabled reranker when cfg.APIKey is
// empty.
func New(cfg Config) *Reranker {
	r := &Reranker{model: cfg.Model}
	if cfg.APIKey != "" {
		r.api = cohereclient.NewClient(cohereclient.WithToken(cfg.APIKey))
	}
	return r
}

// Enabled reports whether a rerank model will actually be called.
func (r *Reranker) Enabled() bool {
	return r != nil && r.api != nil
}

// Rerank returns the topN chunks most relevant to query, reordered by the
// rerank model's relevance score. When disabled it returns the first topN
// chunks unchanged.
func (r *Reranker) Rerank(ctx context.Context, query string, chunks []types.RetrievedChunk, topN int) ([]types.RetrievedChunk, error) {
	if topN > len(chunks) {
		topN = len(chunks)
	}
	if !r.Enabled() || len(chunks) == 0 {
		return chunks[:topN], nil
	}

	docs := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = c.Text
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := r.api.V2.Rerank(ctx, &cohere.V2RerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: docs,
		TopN:      cohere.Int(topN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rerank chunks: %w", err)
	}

	out := make([]types.RetrievedChunk, 0, len(resp.Results))
	for _, res := range resp.Results {
		if res.Index < 0 || res.Index >= len(chunks) {
			continue
		}
		c := chunks[res.Index]
		c.Score = res.RelevanceScore
		out = append(out, c)
	}
	return out, nil
}
