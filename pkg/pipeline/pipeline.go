package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contaixt/contaixt/pkg/chunker"
	"github.com/contaixt/contaixt/pkg/extract"
	"github.com/contaixt/contaixt/pkg/log"
	"github.com/contaixt/contaixt/pkg/metrics"
	"github.com/contaixt/contaixt/pkg/resolver"
	"github.com/contaixt/contaixt/pkg/store"
	"github.com/contaixt/contaixt/pkg/types"
)

// Store is the subset of the Postgres store the pipeline needs.
type Store interface {
	GetDocument(ctx context.Context, workspaceID, documentID uuid.UUID) (*types.Document, error)
	ReplaceDocumentChunks(ctx context.Context, workspaceID, documentID uuid.UUID, pieces []chunker.Chunk) ([]types.Chunk, error)
	ListDocumentChunks(ctx context.Context, workspaceID, documentID uuid.UUID) ([]types.Chunk, error)
	ListUnembeddedChunks(ctx context.Context, workspaceID, documentID uuid.UUID) ([]types.Chunk, error)
	ListEmbeddedChunks(ctx context.Context, workspaceID, documentID uuid.UUID) ([]types.Chunk, error)
	SetChunkEmbedding(ctx context.Context, chunkID uuid.UUID, embedding []float32) error
	ReplaceDocumentMentions(ctx context.Context, workspaceID, documentID uuid.UUID, mentions []types.EntityMention) error
	Enqueue(ctx context.Context, workspaceID uuid.UUID, jobType types.JobType, payload []byte) (*types.Job, error)
	HasPendingJob(ctx context.Context, workspaceID uuid.UUID, jobType types.JobType, documentID uuid.UUID) (bool, error)
}

// Graph is the subset of the Neo4j layer the pipeline needs.
type Graph interface {
	UpsertDocument(ctx context.Context, workspaceID, documentID, connectionID uuid.UUID) error
	UpsertChunks(ctx context.Context, workspaceID, documentID, connectionID uuid.UUID, chunks []types.Chunk) error
	DeleteDocumentChunks(ctx context.Context, workspaceID, documentID uuid.UUID) error
	MissingEmbeddingIdx(ctx context.Context, workspaceID, documentID uuid.UUID) ([]int, error)
	UpsertEntities(ctx context.Context, workspaceID, documentID uuid.UUID, entities []types.ExtractedEntity) error
	UpsertRelations(ctx context.Context, workspaceID, documentID uuid.UUID, relations []types.ExtractedRelation) error
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Extractor pulls entities and relations out of document text.
type Extractor interface {
	Extract(ctx context.Context, in extract.Input) (*types.ExtractionResult, error)
}

// Pipeline wires the five ingestion stages together. Each stage is a job
// handler; stages hand off to each other by enqueueing the successor job.
type Pipeline struct {
	store     Store
	graph     Graph
	embedder  Embedder
	extractor Extractor

	chunkSize    int
	chunkOverlap int

	logger zerolog.Logger
}

// Config holds chunking parameters for the pipeline.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// New creates a pipeline over the given backends.
func New(store Store, graph Graph, embedder Embedder, extractor Extractor, cfg Config) *Pipeline {
	size := cfg.ChunkSize
	if size <= 0 {
		size = chunker.DefaultChunkSize
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 {
		overlap = chunker.DefaultOverlap
	}
	return &Pipeline{
		store:        store,
		graph:        graph,
		embedder:     embedder,
		extractor:    extractor,
		chunkSize:    size,
		chunkOverlap: overlap,
		logger:       log.WithComponent("pipeline"),
	}
}

// DocumentPayload is the payload for PROCESS_DOCUMENT, CHUNK_DOCUMENT,
// EMBED_CHUNKS and EXTRACT_ENTITIES_RELATIONS jobs.
type DocumentPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
}

// GraphPayload carries the full extraction result from EXTRACT to
// UPSERT_GRAPH, so the graph stage needs no second model call.
type GraphPayload struct {
	DocumentID uuid.UUID                 `json:"document_id"`
	Entities   []types.ExtractedEntity   `json:"entities"`
	Relations  []types.ExtractedRelation `json:"relations"`
}

// HandleProcessDocument fans out: it enqueues CHUNK_DOCUMENT unless one is
// already pending for the document.
func (p *Pipeline) HandleProcessDocument(ctx context.Context, job *types.Job) error {
	var payload DocumentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	return p.enqueueUnlessPending(ctx, job.WorkspaceID, types.JobChunkDocument, payload.DocumentID, job.Payload)
}

// HandleChunkDocument splits the document text, replaces its chunks in
// Postgres, clears stale chunk nodes in the graph, and enqueues embedding
// and extraction.
func (p *Pipeline) HandleChunkDocument(ctx context.Context, job *types.Job) error {
	var payload DocumentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	logger := p.logger.With().Stringer("document_id", payload.DocumentID).Logger()

	doc, err := p.store.GetDocument(ctx, job.WorkspaceID, payload.DocumentID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn().Msg("document deleted before chunking, nothing to do")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc.ContentText == "" {
		logger.Warn().Msg("document has no content, skipping chunking")
		return nil
	}

	pieces := chunker.Split(doc.ContentText, p.chunkSize, p.chunkOverlap)
	if len(pieces) == 0 {
		logger.Info().Msg("no chunks produced")
		return nil
	}

	if _, err := p.store.ReplaceDocumentChunks(ctx, job.WorkspaceID, payload.DocumentID, pieces); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	// Re-chunking can shrink the chunk count; stale graph nodes keyed by
	// a higher idx would otherwise survive the merge.
	if err := p.graph.DeleteDocumentChunks(ctx, job.WorkspaceID, payload.DocumentID); err != nil {
		return fmt.Errorf("failed to clear graph chunks: %w", err)
	}

	logger.Info().Int("chunks", len(pieces)).Msg("stored chunks")

	if err := p.enqueueUnlessPending(ctx, job.WorkspaceID, types.JobEmbedChunks, payload.DocumentID, job.Payload); err != nil {
		return err
	}
	return p.enqueueUnlessPending(ctx, job.WorkspaceID, types.JobExtractEntities, payload.DocumentID, job.Payload)
}

// HandleEmbedChunks embeds every unembedded chunk of the document, stores
// the vectors in Postgres, and mirrors the document's embedded chunks into
// the graph where the vector index lives.
func (p *Pipeline) HandleEmbedChunks(ctx context.Context, job *types.Job) error {
	var payload DocumentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	logger := p.logger.With().Stringer("document_id", payload.DocumentID).Logger()

	doc, err := p.store.GetDocument(ctx, job.WorkspaceID, payload.DocumentID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn().Msg("document deleted before embedding, nothing to do")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	chunks, err := p.store.ListUnembeddedChunks(ctx, job.WorkspaceID, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}

		vectors, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(vectors), len(chunks))
		}

		for i := range chunks {
			if err := p.store.SetChunkEmbedding(ctx, chunks[i].ID, vectors[i]); err != nil {
				return fmt.Errorf("failed to store embedding: %w", err)
			}
		}
	}

	// Mirror from the stored vectors rather than from this attempt's batch.
	// A prior attempt can commit embeddings to Postgres and die before the
	// graph write; the replay then has nothing left to embed but the graph
	// is still missing those chunks.
	stored, err := p.store.ListEmbeddedChunks(ctx, job.WorkspaceID, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to list embedded chunks: %w", err)
	}
	if len(stored) == 0 {
		logger.Info().Msg("no chunks to embed")
		return nil
	}

	if err := p.graph.UpsertDocument(ctx, job.WorkspaceID, doc.ID, doc.ConnectionID); err != nil {
		return fmt.Errorf("failed to upsert graph document: %w", err)
	}
	if err := p.graph.UpsertChunks(ctx, job.WorkspaceID, doc.ID, doc.ConnectionID, stored); err != nil {
		return fmt.Errorf("failed to upsert graph chunks: %w", err)
	}

	// Every embedded chunk was just pushed, so a bare graph node here means
	// the mirror did not land; fail the attempt and let the retry re-push.
	if missing, err := p.graph.MissingEmbeddingIdx(ctx, job.WorkspaceID, doc.ID); err != nil {
		logger.Warn().Err(err).Msg("failed to check graph embeddings")
	} else if len(missing) > 0 {
		return fmt.Errorf("graph chunks %v missing embeddings after mirror", missing)
	}

	metrics.ChunksUpserted.Add(float64(len(stored)))
	logger.Info().Int("embedded", len(chunks)).Int("mirrored", len(stored)).Msg("embedded chunks")
	return nil
}

// HandleExtractEntities runs LLM extraction, resolves entity keys, links
// evidence chunks, replaces the document's mentions, and enqueues the
// graph upsert with the full extraction result as payload.
func (p *Pipeline) HandleExtractEntities(ctx context.Context, job *types.Job) error {
	var payload DocumentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	logger := p.logger.With().Stringer("document_id", payload.DocumentID).Logger()

	doc, err := p.store.GetDocument(ctx, job.WorkspaceID, payload.DocumentID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn().Msg("document deleted before extraction, nothing to do")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc.ContentText == "" {
		logger.Warn().Msg("document has no content, skipping extraction")
		return nil
	}

	chunks, err := p.store.ListDocumentChunks(ctx, job.WorkspaceID, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}

	result, err := p.extractor.Extract(ctx, extract.Input{
		ContentText: doc.ContentText,
		Title:       doc.Title,
		AuthorName:  doc.AuthorName,
		AuthorEmail: doc.AuthorEmail,
		SourceType:  string(doc.SourceType),
	})
	if err != nil {
		return fmt.Errorf("failed to extract entities: %w", err)
	}

	if len(result.Entities) == 0 {
		logger.Info().Msg("no entities found")
		return nil
	}

	entityKeys := make(map[string]string, len(result.Entities))
	for i := range result.Entities {
		ent := &result.Entities[i]
		ent.Key = resolver.EntityKey(*ent)
		entityKeys[ent.Name] = ent.Key
		ent.EvidenceChunkIDs = findEvidenceChunks(chunks, ent.Evidence, []string{ent.Name})
	}

	for i := range result.Relations {
		rel := &result.Relations[i]
		rel.FromKey = entityKeys[rel.FromName]
		rel.ToKey = entityKeys[rel.ToName]
		rel.EvidenceChunkIDs = findEvidenceChunks(chunks, rel.Evidence, []string{rel.FromName, rel.ToName})
	}

	mentions := make([]types.EntityMention, 0, len(result.Entities))
	for _, ent := range result.Entities {
		m := types.EntityMention{
			WorkspaceID: job.WorkspaceID,
			DocumentID:  payload.DocumentID,
			EntityKey:   ent.Key,
			EntityType:  types.EntityType(ent.Type),
			EntityName:  ent.Name,
			Confidence:  1.0,
		}
		if len(ent.EvidenceChunkIDs) > 0 {
			chunkID := ent.EvidenceChunkIDs[0]
			m.ChunkID = &chunkID
		}
		mentions = append(mentions, m)
	}
	if err := p.store.ReplaceDocumentMentions(ctx, job.WorkspaceID, payload.DocumentID, mentions); err != nil {
		return fmt.Errorf("failed to store mentions: %w", err)
	}

	logger.Info().
		Int("entities", len(result.Entities)).
		Int("relations", len(result.Relations)).
		Msg("extraction complete")

	graphPayload, err := json.Marshal(GraphPayload{
		DocumentID: payload.DocumentID,
		Entities:   result.Entities,
		Relations:  result.Relations,
	})
	if err != nil {
		return fmt.Errorf("failed to encode graph payload: %w", err)
	}
	if _, err := p.store.Enqueue(ctx, job.WorkspaceID, types.JobUpsertGraph, graphPayload); err != nil {
		return fmt.Errorf("failed to enqueue graph upsert: %w", err)
	}
	return nil
}

// HandleUpsertGraph merges the extracted entities and relations into the
// graph.
func (p *Pipeline) HandleUpsertGraph(ctx context.Context, job *types.Job) error {
	var payload GraphPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	logger := p.logger.With().Stringer("document_id", payload.DocumentID).Logger()

	doc, err := p.store.GetDocument(ctx, job.WorkspaceID, payload.DocumentID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn().Msg("document deleted before graph upsert, nothing to do")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	if err := p.graph.UpsertDocument(ctx, job.WorkspaceID, doc.ID, doc.ConnectionID); err != nil {
		return fmt.Errorf("failed to upsert graph document: %w", err)
	}
	if err := p.graph.UpsertEntities(ctx, job.WorkspaceID, doc.ID, payload.Entities); err != nil {
		return fmt.Errorf("failed to upsert entities: %w", err)
	}
	if err := p.graph.UpsertRelations(ctx, job.WorkspaceID, doc.ID, payload.Relations); err != nil {
		return fmt.Errorf("failed to upsert relations: %w", err)
	}

	metrics.EntitiesUpserted.Add(float64(len(payload.Entities)))
	logger.Info().
		Int("entities", len(payload.Entities)).
		Int("relations", len(payload.Relations)).
		Msg("graph upsert complete")
	return nil
}

func (p *Pipeline) enqueueUnlessPending(ctx context.Context, workspaceID uuid.UUID, jobType types.JobType, documentID uuid.UUID, payload []byte) error {
	pending, err := p.store.HasPendingJob(ctx, workspaceID, jobType, documentID)
	if err != nil {
		return fmt.Errorf("failed to check pending jobs: %w", err)
	}
	if pending {
		p.logger.Info().
			Stringer("document_id", documentID).
			Str("job_type", string(jobType)).
			Msg("successor already pending, skipping enqueue")
		return nil
	}
	if _, err := p.store.Enqueue(ctx, workspaceID, jobType, payload); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", jobType, err)
	}
	return nil
}
