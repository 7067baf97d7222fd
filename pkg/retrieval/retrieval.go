package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contaixt/contaixt/pkg/log"
	"github.com/contaixt/contaixt/pkg/metrics"
	"github.com/contaixt/contaixt/pkg/store"
	"github.com/contaixt/contaixt/pkg/types"
)

const (
	// DefaultDepth is the traversal depth used when the caller passes none.
	DefaultDepth = 2
	// DefaultTopK is the chunk count used when the caller passes none.
	DefaultTopK = 20
)

// Store is the subset of the Postgres store the engine needs.
type Store interface {
	VaultConnectionIDs(ctx context.Context, workspaceID uuid.UUID, vaultIDs []uuid.UUID) ([]uuid.UUID, error)
	GetDocumentMeta(ctx context.Context, workspaceID uuid.UUID, documentIDs []uuid.UUID) (map[uuid.UUID]store.DocumentMeta, error)
}

// Graph is the subset of the Neo4j layer the engine needs.
type Graph interface {
	VectorSearch(ctx context.Context, workspaceID uuid.UUID, embedding []float32, topK int, connectionIDs []uuid.UUID) ([]types.RetrievedChunk, error)
	SeedEntities(ctx context.Context, workspaceID uuid.UUID, documentIDs []string) ([]types.SeedEntity, error)
	Traverse(ctx context.Context, workspaceID uuid.UUID, entityKeys []string, depth int) ([]types.Fact, error)
}

// Embedder turns the query text into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Reranker reorders vector-search candidates by relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, chunks []types.RetrievedChunk, topN int) ([]types.RetrievedChunk, error)
}

// Config bounds retrieval parameters.
type Config struct {
	MaxDepth                  int
	RerankCandidateMultiplier int
}

// Options scopes one retrieval call. An empty VaultIDs slice means the
// whole workspace is searchable. Depth is a pointer because an explicit
// zero disables traversal, which is different from leaving it unset.
type Options struct {
	VaultIDs []uuid.UUID
	Depth    *int
	TopK     int
}

// Result is the retrieved context for one query.
type Result struct {
	Chunks       []types.RetrievedChunk `json:"chunks"`
	Facts        []types.Fact           `json:"facts"`
	SeedEntities []types.SeedEntity     `json:"seed_entities"`
}

// Engine builds query context by combining vector search over chunk
// embeddings with multi-hop graph traversal.
type Engine struct {
	store    Store
	graph    Graph
	embedder Embedder
	reranker Reranker
	cfg      Config
	logger   zerolog.Logger
}

// New creates a retrieval engine.
func New(s Store, g Graph, e Embedder, r Reranker, cfg Config) *Engine {
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = 3
	}
	if cfg.RerankCandidateMultiplier < 1 {
		cfg.RerankCandidateMultiplier = 3
	}
	return &Engine{
		store:    s,
		graph:    g,
		embedder: e,
		reranker: r,
		cfg:      cfg,
		logger:   log.WithComponent("retrieval"),
	}
}

// Retrieve runs the full context pipeline: embed the prompt, resolve vault
// scoping to connection ids, pre-filtered vector search, rerank, seed
// entity lookup, graph traversal, and document metadata enrichment.
//
// Vault scoping is strict: when vaults are given but none of them has a
// connection, the result is empty rather than falling back to the whole
// workspace.
func (e *Engine) Retrieve(ctx context.Context, workspaceID uuid.UUID, prompt string, opts Options) (*Result, error) {
	metrics.QueriesTotal.Inc()

	depth := DefaultDepth
	if opts.Depth != nil {
		depth = *opts.Depth
	}
	if depth < 0 {
		depth = 0
	}
	if depth > e.cfg.MaxDepth {
		depth = e.cfg.MaxDepth
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	timer := metrics.NewTimer()
	embedding, err := e.embedder.EmbedQuery(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	timer.ObserveDurationVec(metrics.RetrievalStageDuration, "embed")

	var connectionIDs []uuid.UUID
	if len(opts.VaultIDs) > 0 {
		connectionIDs, err = e.store.VaultConnectionIDs(ctx, workspaceID, opts.VaultIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve vault connections: %w", err)
		}
		if len(connectionIDs) == 0 {
			e.logger.Info().Stringer("workspace_id", workspaceID).Msg("vault filter matches no connections")
			return &Result{}, nil
		}
	}

	timer = metrics.NewTimer()
	candidates, err := e.graph.VectorSearch(ctx, workspaceID, embedding, topK*e.cfg.RerankCandidateMultiplier, connectionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	timer.ObserveDurationVec(metrics.RetrievalStageDuration, "vector_search")
	if len(candidates) == 0 {
		return &Result{}, nil
	}

	timer = metrics.NewTimer()
	chunks, err := e.reranker.Rerank(ctx, prompt, candidates, topK)
	if err != nil {
		// Vector ordering is a usable fallback when the reranker is down.
		e.logger.Warn().Err(err).Msg("rerank failed, keeping vector order")
		if topK > len(candidates) {
			topK = len(candidates)
		}
		chunks = candidates[:topK]
	}
	timer.ObserveDurationVec(metrics.RetrievalStageDuration, "rerank")

	docIDs := distinctDocumentIDs(chunks)

	// Traversal is additive context; when it fails the answer proceeds
	// with chunks only.
	timer = metrics.NewTimer()
	seeds, err := e.graph.SeedEntities(ctx, workspaceID, docIDs)
	if err != nil {
		e.logger.Warn().Err(err).Msg("seed entity lookup failed, answering with chunks only")
		seeds = nil
	}

	keys := make([]string, 0, len(seeds))
	for _, s := range seeds {
		keys = append(keys, s.Key)
	}
	facts, err := e.graph.Traverse(ctx, workspaceID, keys, depth)
	if err != nil {
		e.logger.Warn().Err(err).Msg("graph traversal failed, answering with chunks only")
		facts = nil
	}
	timer.ObserveDurationVec(metrics.RetrievalStageDuration, "traverse")

	if err := e.enrich(ctx, workspaceID, chunks, docIDs); err != nil {
		return nil, err
	}

	e.logger.Info().
		Stringer("workspace_id", workspaceID).
		Int("chunks", len(chunks)).
		Int("facts", len(facts)).
		Int("seed_entities", len(seeds)).
		Msg("context built")

	return &Result{Chunks: chunks, Facts: facts, SeedEntities: seeds}, nil
}

// enrich attaches document title, URL, and source type to each chunk.
func (e *Engine) enrich(ctx context.Context, workspaceID uuid.UUID, chunks []types.RetrievedChunk, docIDs []string) error {
	ids := make([]uuid.UUID, 0, len(docIDs))
	for _, s := range docIDs {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}

	meta, err := e.store.GetDocumentMeta(ctx, workspaceID, ids)
	if err != nil {
		return fmt.Errorf("failed to load document metadata: %w", err)
	}

	for i := range chunks {
		id, err := uuid.Parse(chunks[i].DocumentID)
		if err != nil {
			continue
		}
		if m, ok := meta[id]; ok {
			chunks[i].DocTitle = m.Title
			chunks[i].DocURL = m.URL
			chunks[i].DocSourceType = string(m.SourceType)
		}
	}
	return nil
}

func distinctDocumentIDs(chunks []types.RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	var out []string
	for _, c := range chunks {
		if c.DocumentID == "" {
			continue
		}
		if _, ok := seen[c.DocumentID]; ok {
			continue
		}
		seen[c.DocumentID] = struct{}{}
		out = append(out, c.DocumentID)
	}
	return out
}
