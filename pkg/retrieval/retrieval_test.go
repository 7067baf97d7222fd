package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaixt/contaixt/pkg/store"
	"github.com/contaixt/contaixt/pkg/types"
)

type fakeStore struct {
	connections []uuid.UUID
	meta        map[uuid.UUID]store.DocumentMeta

	vaultCalls [][]uuid.UUID
}

func (f *fakeStore) VaultConnectionIDs(_ context.Context, _ uuid.UUID, vaultIDs []uuid.UUID) ([]uuid.UUID, error) {
	f.vaultCalls = append(f.vaultCalls, vaultIDs)
	return f.connections, nil
}

func (f *fakeStore) GetDocumentMeta(_ context.Context, _ uuid.UUID, _ []uuid.UUID) (map[uuid.UUID]store.DocumentMeta, error) {
	if f.meta == nil {
		return map[uuid.UUID]store.DocumentMeta{}, nil
	}
	return f.meta, nil
}

type fakeGraph struct {
	chunks []types.RetrievedChunk
	seeds  []types.SeedEntity
	facts  []types.Fact

	searchTopK    int
	searchConnIDs []uuid.UUID
	traverseDepth int
	traverseKeys  []string
	traversed     bool
	traverseErr   error
}

func (f *fakeGraph) VectorSearch(_ context.Context, _ uuid.UUID, _ []float32, topK int, connectionIDs []uuid.UUID) ([]types.RetrievedChunk, error) {
	f.searchTopK = topK
	f.searchConnIDs = connectionIDs
	return f.chunks, nil
}

func (f *fakeGraph) SeedEntities(_ context.Context, _ uuid.UUID, _ []string) ([]types.SeedEntity, error) {
	return f.seeds, nil
}

func (f *fakeGraph) Traverse(_ context.Context, _ uuid.UUID, keys []string, depth int) ([]types.Fact, error) {
	f.traversed = true
	f.traverseDepth = depth
	f.traverseKeys = keys
	if f.traverseErr != nil {
		return nil, f.traverseErr
	}
	if depth < 1 {
		return nil, nil
	}
	return f.facts, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeReranker struct {
	err error
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, chunks []types.RetrievedChunk, topN int) ([]types.RetrievedChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	if topN > len(chunks) {
		topN = len(chunks)
	}
	return chunks[:topN], nil
}

func testEngine(s *fakeStore, g *fakeGraph, r Reranker) *Engine {
	if r == nil {
		r = &fakeReranker{}
	}
	return New(s, g, fakeEmbedder{}, r, Config{MaxDepth: 3, RerankCandidateMultiplier: 3})
}

func docChunks(docID uuid.UUID, n int) []types.RetrievedChunk {
	out := make([]types.RetrievedChunk, n)
	for i := range out {
		out[i] = types.RetrievedChunk{
			ChunkID:    uuid.NewString(),
			DocumentID: docID.String(),
			Idx:        i,
			Text:       "chunk text",
			Score:      1.0 - float64(i)/10,
		}
	}
	return out
}

func TestRetrieve(t *testing.T) {
	docID := uuid.New()
	s := &fakeStore{meta: map[uuid.UUID]store.DocumentMeta{
		docID: {ID: docID, Title: "Q3 Plan", URL: "https://example.com/doc", SourceType: types.SourceNotion},
	}}
	g := &fakeGraph{
		chunks: docChunks(docID, 5),
		seeds:  []types.SeedEntity{{Key: "person:email:ada@acme.com", Type: "Person", Name: "Ada"}},
		facts:  []types.Fact{{FromKey: "person:email:ada@acme.com", Relation: "WORKS_AT", ToKey: "company:domain:acme.com"}},
	}
	e := testEngine(s, g, nil)

	result, err := e.Retrieve(context.Background(), uuid.New(), "what is the plan", Options{TopK: 3})
	require.NoError(t, err)

	require.Len(t, result.Chunks, 3)
	assert.Equal(t, 9, g.searchTopK, "candidate count is top_k times the multiplier")
	assert.Equal(t, 2, g.traverseDepth, "default depth")
	assert.Equal(t, []string{"person:email:ada@acme.com"}, g.traverseKeys)
	require.Len(t, result.Facts, 1)
	require.Len(t, result.SeedEntities, 1)

	assert.Equal(t, "Q3 Plan", result.Chunks[0].DocTitle)
	assert.Equal(t, "https://example.com/doc", result.Chunks[0].DocURL)
	assert.Equal(t, "notion", result.Chunks[0].DocSourceType)
}

func TestRetrieveVaultWithoutConnectionsIsEmpty(t *testing.T) {
	s := &fakeStore{connections: nil}
	g := &fakeGraph{chunks: docChunks(uuid.New(), 3)}
	e := testEngine(s, g, nil)

	result, err := e.Retrieve(context.Background(), uuid.New(), "anything", Options{VaultIDs: []uuid.UUID{uuid.New()}})
	require.NoError(t, err)

	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.Facts)
	assert.Zero(t, g.searchTopK, "vector search must not run for an unconnected vault")
}

func TestRetrieveVaultScopingPassesConnectionIDs(t *testing.T) {
	connID := uuid.New()
	s := &fakeStore{connections: []uuid.UUID{connID}}
	g := &fakeGraph{chunks: docChunks(uuid.New(), 2)}
	e := testEngine(s, g, nil)

	_, err := e.Retrieve(context.Background(), uuid.New(), "anything", Options{VaultIDs: []uuid.UUID{uuid.New()}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{connID}, g.searchConnIDs)
}

func TestRetrieveNoCandidates(t *testing.T) {
	e := testEngine(&fakeStore{}, &fakeGraph{}, nil)

	result, err := e.Retrieve(context.Background(), uuid.New(), "anything", Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.SeedEntities)
}

func TestRetrieveDepthClamping(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		want  int
	}{
		{"explicit zero disables traversal", 0, 0},
		{"negative clamps to zero", -2, 0},
		{"above max clamps to max", 7, 3},
		{"in range passes through", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGraph{chunks: docChunks(uuid.New(), 2)}
			e := testEngine(&fakeStore{}, g, nil)

			depth := tt.depth
			_, err := e.Retrieve(context.Background(), uuid.New(), "q", Options{Depth: &depth})
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.traverseDepth)
		})
	}
}

func TestRetrieveRerankFailureFallsBack(t *testing.T) {
	docID := uuid.New()
	g := &fakeGraph{chunks: docChunks(docID, 5)}
	e := testEngine(&fakeStore{}, g, &fakeReranker{err: errors.New("rerank backend down")})

	result, err := e.Retrieve(context.Background(), uuid.New(), "q", Options{TopK: 2})
	require.NoError(t, err)

	// Falls back to the first TopK candidates in similarity order.
	require.Len(t, result.Chunks, 2)
	assert.Equal(t, g.chunks[0].ChunkID, result.Chunks[0].ChunkID)
	assert.Equal(t, g.chunks[1].ChunkID, result.Chunks[1].ChunkID)
}

func TestRetrieveTraversalFailureKeepsChunks(t *testing.T) {
	docID := uuid.New()
	g := &fakeGraph{
		chunks:      docChunks(docID, 3),
		seeds:       []types.SeedEntity{{Key: "person:email:ada@acme.com", Name: "Ada"}},
		traverseErr: errors.New("graph store unavailable"),
	}
	e := testEngine(&fakeStore{}, g, nil)

	result, err := e.Retrieve(context.Background(), uuid.New(), "q", Options{})
	require.NoError(t, err)
	require.Len(t, result.Chunks, 3)
	assert.Empty(t, result.Facts)
}

func TestDistinctDocumentIDs(t *testing.T) {
	a, b := uuid.NewString(), uuid.NewString()
	chunks := []types.RetrievedChunk{
		{DocumentID: a}, {DocumentID: b}, {DocumentID: a}, {DocumentID: ""},
	}
	assert.Equal(t, []string{a, b}, distinctDocumentIDs(chunks))
}
