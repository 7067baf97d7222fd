package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaixt/contaixt/pkg/chunker"
	"github.com/contaixt/contaixt/pkg/extract"
	"github.com/contaixt/contaixt/pkg/store"
	"github.com/contaixt/contaixt/pkg/types"
)

type fakeStore struct {
	doc        *types.Document
	getErr     error
	chunks     []types.Chunk
	unembedded []types.Chunk
	embedded   []types.Chunk
	pending    map[types.JobType]bool

	enqueued   []*types.Job
	embeddings map[uuid.UUID][]float32
	mentions   []types.EntityMention
	replaced   []chunker.Chunk
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pending:    map[types.JobType]bool{},
		embeddings: map[uuid.UUID][]float32{},
	}
}

func (f *fakeStore) GetDocument(_ context.Context, _, _ uuid.UUID) (*types.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.doc, nil
}

func (f *fakeStore) ReplaceDocumentChunks(_ context.Context, workspaceID, documentID uuid.UUID, pieces []chunker.Chunk) ([]types.Chunk, error) {
	f.replaced = pieces
	out := make([]types.Chunk, len(pieces))
	for i, p := range pieces {
		out[i] = types.Chunk{ID: uuid.New(), WorkspaceID: workspaceID, DocumentID: documentID, Idx: p.Idx, Text: p.Text}
	}
	f.chunks = out
	return out, nil
}

func (f *fakeStore) ListDocumentChunks(_ context.Context, _, _ uuid.UUID) ([]types.Chunk, error) {
	return f.chunks, nil
}

func (f *fakeStore) ListUnembeddedChunks(_ context.Context, _, _ uuid.UUID) ([]types.Chunk, error) {
	return f.unembedded, nil
}

func (f *fakeStore) ListEmbeddedChunks(_ context.Context, _, _ uuid.UUID) ([]types.Chunk, error) {
	out := append([]types.Chunk(nil), f.embedded...)
	for _, c := range f.unembedded {
		if vec, ok := f.embeddings[c.ID]; ok {
			c.Embedding = vec
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) SetChunkEmbedding(_ context.Context, chunkID uuid.UUID, embedding []float32) error {
	f.embeddings[chunkID] = embedding
	return nil
}

func (f *fakeStore) ReplaceDocumentMentions(_ context.Context, _, _ uuid.UUID, mentions []types.EntityMention) error {
	f.mentions = mentions
	return nil
}

func (f *fakeStore) Enqueue(_ context.Context, workspaceID uuid.UUID, jobType types.JobType, payload []byte) (*types.Job, error) {
	job := &types.Job{ID: uuid.New(), WorkspaceID: workspaceID, Type: jobType, Payload: payload}
	f.enqueued = append(f.enqueued, job)
	return job, nil
}

func (f *fakeStore) HasPendingJob(_ context.Context, _ uuid.UUID, jobType types.JobType, _ uuid.UUID) (bool, error) {
	return f.pending[jobType], nil
}

type fakeGraph struct {
	docs         int
	chunkBatches [][]types.Chunk
	deleted      int
	missing      []int
	entities     []types.ExtractedEntity
	relations    []types.ExtractedRelation
}

func (f *fakeGraph) UpsertDocument(_ context.Context, _, _, _ uuid.UUID) error {
	f.docs++
	return nil
}

func (f *fakeGraph) UpsertChunks(_ context.Context, _, _, _ uuid.UUID, chunks []types.Chunk) error {
	f.chunkBatches = append(f.chunkBatches, chunks)
	return nil
}

func (f *fakeGraph) DeleteDocumentChunks(_ context.Context, _, _ uuid.UUID) error {
	f.deleted++
	return nil
}

func (f *fakeGraph) MissingEmbeddingIdx(_ context.Context, _, _ uuid.UUID) ([]int, error) {
	return f.missing, nil
}

func (f *fakeGraph) UpsertEntities(_ context.Context, _, _ uuid.UUID, entities []types.ExtractedEntity) error {
	f.entities = entities
	return nil
}

func (f *fakeGraph) UpsertRelations(_ context.Context, _, _ uuid.UUID, relations []types.ExtractedRelation) error {
	f.relations = relations
	return nil
}

type fakeEmbedder struct {
	dim   int
	calls int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

type fakeExtractor struct{ result *types.ExtractionResult }

func (f *fakeExtractor) Extract(_ context.Context, _ extract.Input) (*types.ExtractionResult, error) {
	return f.result, nil
}

func testJob(jobType types.JobType, documentID uuid.UUID) *types.Job {
	payload, _ := json.Marshal(DocumentPayload{DocumentID: documentID})
	return &types.Job{ID: uuid.New(), WorkspaceID: uuid.New(), Type: jobType, Payload: payload}
}

func TestHandleProcessDocument(t *testing.T) {
	store := newFakeStore()
	p := New(store, &fakeGraph{}, &fakeEmbedder{dim: 4}, &fakeExtractor{}, Config{})

	docID := uuid.New()
	require.NoError(t, p.HandleProcessDocument(context.Background(), testJob(types.JobProcessDocument, docID)))

	require.Len(t, store.enqueued, 1)
	assert.Equal(t, types.JobChunkDocument, store.enqueued[0].Type)
}

func TestHandleProcessDocumentSkipsWhenPending(t *testing.T) {
	store := newFakeStore()
	store.pending[types.JobChunkDocument] = true
	p := New(store, &fakeGraph{}, &fakeEmbedder{dim: 4}, &fakeExtractor{}, Config{})

	require.NoError(t, p.HandleProcessDocument(context.Background(), testJob(types.JobProcessDocument, uuid.New())))
	assert.Empty(t, store.enqueued)
}

func TestHandleChunkDocument(t *testing.T) {
	docID := uuid.New()
	store := newFakeStore()
	store.doc = &types.Document{ID: docID, ContentText: "First sentence here. Second sentence follows. Third one closes."}
	graph := &fakeGraph{}
	p := New(store, graph, &fakeEmbedder{dim: 4}, &fakeExtractor{}, Config{ChunkSize: 40, ChunkOverlap: 10})

	require.NoError(t, p.HandleChunkDocument(context.Background(), testJob(types.JobChunkDocument, docID)))

	assert.NotEmpty(t, store.replaced)
	assert.Equal(t, 1, graph.deleted)

	var jobTypes []types.JobType
	for _, j := range store.enqueued {
		jobTypes = append(jobTypes, j.Type)
	}
	assert.Equal(t, []types.JobType{types.JobEmbedChunks, types.JobExtractEntities}, jobTypes)
}

func TestHandleChunkDocumentEmptyContent(t *testing.T) {
	store := newFakeStore()
	store.doc = &types.Document{ID: uuid.New()}
	p := New(store, &fakeGraph{}, &fakeEmbedder{dim: 4}, &fakeExtractor{}, Config{})

	require.NoError(t, p.HandleChunkDocument(context.Background(), testJob(types.JobChunkDocument, store.doc.ID)))
	assert.Empty(t, store.replaced)
	assert.Empty(t, store.enqueued)
}

func TestHandleEmbedChunks(t *testing.T) {
	docID := uuid.New()
	store := newFakeStore()
	store.doc = &types.Document{ID: docID, ConnectionID: uuid.New()}
	store.unembedded = []types.Chunk{
		{ID: uuid.New(), Text: "alpha"},
		{ID: uuid.New(), Text: "beta"},
	}
	graph := &fakeGraph{}
	p := New(store, graph, &fakeEmbedder{dim: 4}, &fakeExtractor{}, Config{})

	require.NoError(t, p.HandleEmbedChunks(context.Background(), testJob(types.JobEmbedChunks, docID)))

	assert.Len(t, store.embeddings, 2)
	assert.Equal(t, 1, graph.docs)
	require.Len(t, graph.chunkBatches, 1)
	assert.Len(t, graph.chunkBatches[0], 2)
	for _, c := range graph.chunkBatches[0] {
		assert.Len(t, c.Embedding, 4)
	}
}

func TestHandleEmbedChunksNothingToDo(t *testing.T) {
	st := newFakeStore()
	st.doc = &types.Document{ID: uuid.New(), ConnectionID: uuid.New()}
	graph := &fakeGraph{}
	p := New(st, graph, &fakeEmbedder{dim: 4}, &fakeExtractor{}, Config{})

	require.NoError(t, p.HandleEmbedChunks(context.Background(), testJob(types.JobEmbedChunks, st.doc.ID)))
	assert.Zero(t, graph.docs)
}

func TestHandleEmbedChunksReplayMirrorsStoredVectors(t *testing.T) {
	docID := uuid.New()
	st := newFakeStore()
	st.doc = &types.Document{ID: docID, ConnectionID: uuid.New()}
	// A prior attempt embedded everything in Postgres but died before the
	// graph write landed. The replay must still push the stored vectors.
	st.embedded = []types.Chunk{
		{ID: uuid.New(), Idx: 0, Text: "alpha", Embedding: []float32{1, 0, 0, 0}},
		{ID: uuid.New(), Idx: 1, Text: "beta", Embedding: []float32{0, 1, 0, 0}},
	}
	graph := &fakeGraph{}
	embedder := &fakeEmbedder{dim: 4}
	p := New(st, graph, embedder, &fakeExtractor{}, Config{})

	require.NoError(t, p.HandleEmbedChunks(context.Background(), testJob(types.JobEmbedChunks, docID)))

	assert.Zero(t, embedder.calls)
	assert.Equal(t, 1, graph.docs)
	require.Len(t, graph.chunkBatches, 1)
	require.Len(t, graph.chunkBatches[0], 2)
	for _, c := range graph.chunkBatches[0] {
		assert.NotEmpty(t, c.Embedding)
	}
}

func TestHandleEmbedChunksFailsWhenMirrorIncomplete(t *testing.T) {
	docID := uuid.New()
	st := newFakeStore()
	st.doc = &types.Document{ID: docID, ConnectionID: uuid.New()}
	st.unembedded = []types.Chunk{{ID: uuid.New(), Idx: 0, Text: "alpha"}}
	graph := &fakeGraph{missing: []int{0}}
	p := New(st, graph, &fakeEmbedder{dim: 4}, &fakeExtractor{}, Config{})

	err := p.HandleEmbedChunks(context.Background(), testJob(types.JobEmbedChunks, docID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing embeddings")
}

func TestHandlersTolerateDeletedDocument(t *testing.T) {
	graphPayload, err := json.Marshal(GraphPayload{DocumentID: uuid.New()})
	require.NoError(t, err)

	handlers := map[string]func(p *Pipeline) error{
		"chunk": func(p *Pipeline) error {
			return p.HandleChunkDocument(context.Background(), testJob(types.JobChunkDocument, uuid.New()))
		},
		"embed": func(p *Pipeline) error {
			return p.HandleEmbedChunks(context.Background(), testJob(types.JobEmbedChunks, uuid.New()))
		},
		"extract": func(p *Pipeline) error {
			return p.HandleExtractEntities(context.Background(), testJob(types.JobExtractEntities, uuid.New()))
		},
		"upsert graph": func(p *Pipeline) error {
			job := &types.Job{ID: uuid.New(), WorkspaceID: uuid.New(), Type: types.JobUpsertGraph, Payload: graphPayload}
			return p.HandleUpsertGraph(context.Background(), job)
		},
	}

	for name, run := range handlers {
		t.Run(name, func(t *testing.T) {
			st := newFakeStore()
			st.getErr = store.ErrNotFound
			graph := &fakeGraph{}
			p := New(st, graph, &fakeEmbedder{dim: 4}, &fakeExtractor{}, Config{})

			// A document deleted mid-pipeline leaves nothing to do; the job
			// must succeed instead of retrying into failed.
			require.NoError(t, run(p))
			assert.Empty(t, st.enqueued)
			assert.Zero(t, graph.docs)
		})
	}
}

func TestHandleExtractEntities(t *testing.T) {
	docID := uuid.New()
	chunkID := uuid.New()
	store := newFakeStore()
	store.doc = &types.Document{
		ID:          docID,
		SourceType:  types.SourceGmail,
		ContentText: "Ada Lovelace joined Acme last spring.",
	}
	store.chunks = []types.Chunk{{ID: chunkID, Text: "Ada Lovelace joined Acme last spring."}}

	extractor := &fakeExtractor{result: &types.ExtractionResult{
		Entities: []types.ExtractedEntity{
			{Type: "Person", Name: "Ada Lovelace", Email: "ada@acme.com", Evidence: "Ada Lovelace joined Acme"},
			{Type: "Company", Name: "Acme", Domain: "acme.com"},
		},
		Relations: []types.ExtractedRelation{
			{FromName: "Ada Lovelace", ToName: "Acme", Type: "WORKS_AT", Evidence: "joined Acme"},
		},
	}}
	p := New(store, &fakeGraph{}, &fakeEmbedder{dim: 4}, extractor, Config{})

	require.NoError(t, p.HandleExtractEntities(context.Background(), testJob(types.JobExtractEntities, docID)))

	require.Len(t, store.mentions, 2)
	assert.Equal(t, "person:email:ada@acme.com", store.mentions[0].EntityKey)
	require.NotNil(t, store.mentions[0].ChunkID)
	assert.Equal(t, chunkID, *store.mentions[0].ChunkID)
	assert.Equal(t, "company:domain:acme.com", store.mentions[1].EntityKey)

	require.Len(t, store.enqueued, 1)
	assert.Equal(t, types.JobUpsertGraph, store.enqueued[0].Type)

	var payload GraphPayload
	require.NoError(t, json.Unmarshal(store.enqueued[0].Payload, &payload))
	assert.Equal(t, docID, payload.DocumentID)
	require.Len(t, payload.Entities, 2)
	assert.Equal(t, "person:email:ada@acme.com", payload.Entities[0].Key)
	require.Len(t, payload.Relations, 1)
	assert.Equal(t, "person:email:ada@acme.com", payload.Relations[0].FromKey)
	assert.Equal(t, "company:domain:acme.com", payload.Relations[0].ToKey)
	assert.Equal(t, []uuid.UUID{chunkID}, payload.Relations[0].EvidenceChunkIDs)
}

func TestHandleExtractEntitiesNoEntities(t *testing.T) {
	docID := uuid.New()
	store := newFakeStore()
	store.doc = &types.Document{ID: docID, ContentText: "nothing of note"}
	p := New(store, &fakeGraph{}, &fakeEmbedder{dim: 4}, &fakeExtractor{result: &types.ExtractionResult{}}, Config{})

	require.NoError(t, p.HandleExtractEntities(context.Background(), testJob(types.JobExtractEntities, docID)))
	assert.Empty(t, store.mentions)
	assert.Empty(t, store.enqueued)
}

func TestHandleUpsertGraph(t *testing.T) {
	docID := uuid.New()
	store := newFakeStore()
	store.doc = &types.Document{ID: docID, ConnectionID: uuid.New()}
	graph := &fakeGraph{}
	p := New(store, graph, &fakeEmbedder{dim: 4}, &fakeExtractor{}, Config{})

	payload, err := json.Marshal(GraphPayload{
		DocumentID: docID,
		Entities:   []types.ExtractedEntity{{Type: "Person", Name: "Ada", Key: "person:email:ada@acme.com"}},
		Relations:  []types.ExtractedRelation{{FromKey: "a", ToKey: "b", Type: "WORKS_AT"}},
	})
	require.NoError(t, err)

	job := &types.Job{ID: uuid.New(), WorkspaceID: uuid.New(), Type: types.JobUpsertGraph, Payload: payload}
	require.NoError(t, p.HandleUpsertGraph(context.Background(), job))

	assert.Equal(t, 1, graph.docs)
	assert.Len(t, graph.entities, 1)
	assert.Len(t, graph.relations, 1)
}

func TestFindEvidenceChunks(t *testing.T) {
	a := types.Chunk{ID: uuid.New(), Text: "Ada Lovelace works on the engine."}
	b := types.Chunk{ID: uuid.New(), Text: "Unrelated text about budgets."}
	c := types.Chunk{ID: uuid.New(), Text: "ada lovelace again, different case."}
	chunks := []types.Chunk{a, b, c}

	t.Run("substring match is case insensitive", func(t *testing.T) {
		got := findEvidenceChunks(chunks, "ADA LOVELACE", nil)
		assert.Equal(t, []uuid.UUID{a.ID, c.ID}, got)
	})

	t.Run("fallback terms when evidence matches nothing", func(t *testing.T) {
		got := findEvidenceChunks(chunks, "paraphrased span", []string{"budgets"})
		assert.Equal(t, []uuid.UUID{b.ID}, got)
	})

	t.Run("no match returns nil", func(t *testing.T) {
		assert.Nil(t, findEvidenceChunks(chunks, "zzz", []string{"qqq"}))
	})

	t.Run("empty chunk list", func(t *testing.T) {
		assert.Nil(t, findEvidenceChunks(nil, "anything", []string{"x"}))
	})
}
