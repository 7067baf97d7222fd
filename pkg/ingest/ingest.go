package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contaixt/contaixt/pkg/log"
	"github.com/contaixt/contaixt/pkg/metrics"
	"github.com/contaixt/contaixt/pkg/store"
	"github.com/contaixt/contaixt/pkg/types"
)

// CanonicalDocument is a source-agnostic document ready for ingestion.
// Normalizers produce these from provider records; API callers submit them
// directly.
type CanonicalDocument struct {
	SourceType  types.SourceType
	ExternalID  string
	URL         string
	Title       string
	AuthorName  string
	AuthorEmail string
	ContentText string
	CreatedAt   *time.Time
}

// Store is the subset of the Postgres store the ingest service needs.
type Store interface {
	UpsertDocument(ctx context.Context, doc *types.Document) (*types.Document, store.DocumentOutcome, error)
	Enqueue(ctx context.Context, workspaceID uuid.UUID, jobType types.JobType, payload []byte) (*types.Job, error)
	HasPendingJob(ctx context.Context, workspaceID uuid.UUID, jobType types.JobType, documentID uuid.UUID) (bool, error)
}

// Service is the single ingestion entry point. Everything that brings
// documents into the system, webhook syncs and direct API calls alike,
// funnels through IngestDocument.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService creates an ingest service.
func NewService(s Store) *Service {
	return &Service{store: s, logger: log.WithComponent("ingest")}
}

// IngestDocument upserts the document and starts the processing pipeline.
// Content is deduplicated by SHA-256 hash: an unchanged document is
// acknowledged without enqueueing any work.
func (s *Service) IngestDocument(ctx context.Context, workspaceID, connectionID uuid.UUID, doc CanonicalDocument) (*types.Document, store.DocumentOutcome, error) {
	if doc.ExternalID == "" {
		return nil, "", fmt.Errorf("external_id is required")
	}

	sum := sha256.Sum256([]byte(doc.ContentText))
	stored, outcome, err := s.store.UpsertDocument(ctx, &types.Document{
		WorkspaceID:  workspaceID,
		ConnectionID: connectionID,
		SourceType:   doc.SourceType,
		ExternalID:   doc.ExternalID,
		URL:          doc.URL,
		Title:        doc.Title,
		AuthorName:   doc.AuthorName,
		AuthorEmail:  doc.AuthorEmail,
		ContentText:  doc.ContentText,
		ContentHash:  hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to upsert document: %w", err)
	}
	metrics.DocumentsIngested.WithLabelValues(string(outcome)).Inc()

	logger := s.logger.With().
		Stringer("document_id", stored.ID).
		Str("source_type", string(doc.SourceType)).
		Str("outcome", string(outcome)).
		Logger()

	if outcome == store.DocumentUnchanged {
		logger.Info().Msg("document unchanged, skipping pipeline")
		return stored, outcome, nil
	}

	pending, err := s.store.HasPendingJob(ctx, workspaceID, types.JobProcessDocument, stored.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check pending jobs: %w", err)
	}
	if pending {
		logger.Info().Msg("processing already pending")
		return stored, outcome, nil
	}

	payload, err := json.Marshal(map[string]uuid.UUID{"document_id": stored.ID})
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode payload: %w", err)
	}
	if _, err := s.store.Enqueue(ctx, workspaceID, types.JobProcessDocument, payload); err != nil {
		return nil, "", fmt.Errorf("failed to enqueue processing: %w", err)
	}

	logger.Info().Msg("document ingested")
	return stored, outcome, nil
}
