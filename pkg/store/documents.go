package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/contaixt/contaixt/pkg/types"
)

// DocumentOutcome reports what an upsert did.
type DocumentOutcome string

const (
	DocumentCreated   DocumentOutcome = "created"
	DocumentUpdated   DocumentOutcome = "updated"
	DocumentUnchanged DocumentOutcome = "unchanged"
)

// UpsertDocument deduplicates by (workspace_id, source_type, external_id).
// A new identity inserts; a known identity with a different content hash
// updates content and metadata; an identical hash leaves the row untouched.
func (s *Store) UpsertDocument(ctx context.Context, doc *types.Document) (*types.Document, DocumentOutcome, error) {
	existing, err := s.getDocumentByIdentity(ctx, doc.WorkspaceID, doc.SourceType, doc.ExternalID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	if existing == nil {
		doc.ID = uuid.New()
		err := s.pool.QueryRow(ctx,
			`INSERT INTO documents
			   (id, workspace_id, connection_id, source_type, external_id,
			    url, title, author_name, author_email, content_text, content_hash)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING created_at, updated_at`,
			doc.ID, doc.WorkspaceID, doc.ConnectionID, doc.SourceType, doc.ExternalID,
			doc.URL, doc.Title, doc.AuthorName, doc.AuthorEmail, doc.ContentText, doc.ContentHash,
		).Scan(&doc.CreatedAt, &doc.UpdatedAt)
		if err != nil {
			return nil, "", fmt.Errorf("failed to insert document: %w", err)
		}
		return doc, DocumentCreated, nil
	}

	if existing.ContentHash == doc.ContentHash {
		return existing, DocumentUnchanged, nil
	}

	err = s.pool.QueryRow(ctx,
		`UPDATE documents
		 SET connection_id = $2, url = $3, title = $4, author_name = $5,
		     author_email = $6, content_text = $7, content_hash = $8, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		existing.ID, doc.ConnectionID, doc.URL, doc.Title, doc.AuthorName,
		doc.AuthorEmail, doc.ContentText, doc.ContentHash,
	).Scan(&existing.UpdatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to update document: %w", err)
	}

	existing.ConnectionID = doc.ConnectionID
	existing.URL = doc.URL
	existing.Title = doc.Title
	existing.AuthorName = doc.AuthorName
	existing.AuthorEmail = doc.AuthorEmail
	existing.ContentText = doc.ContentText
	existing.ContentHash = doc.ContentHash
	return existing, DocumentUpdated, nil
}

// GetDocument fetches one document scoped to a workspace.
func (s *Store) GetDocument(ctx context.Context, workspaceID, documentID uuid.UUID) (*types.Document, error) {
	var d types.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, connection_id, source_type, external_id,
		        COALESCE(url, ''), COALESCE(title, ''), COALESCE(author_name, ''),
		        COALESCE(author_email, ''), COALESCE(content_text, ''),
		        COALESCE(content_hash, ''), created_at, updated_at
		 FROM documents WHERE id = $1 AND workspace_id = $2`,
		documentID, workspaceID,
	).Scan(&d.ID, &d.WorkspaceID, &d.ConnectionID, &d.SourceType, &d.ExternalID,
		&d.URL, &d.Title, &d.AuthorName, &d.AuthorEmail, &d.ContentText,
		&d.ContentHash, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &d, nil
}

// DocumentMeta is the provenance subset used to enrich retrieval results.
type DocumentMeta struct {
	ID         uuid.UUID
	Title      string
	URL        string
	SourceType types.SourceType
}

// GetDocumentMeta fetches title, URL, and source for a set of documents.
func (s *Store) GetDocumentMeta(ctx context.Context, workspaceID uuid.UUID, documentIDs []uuid.UUID) (map[uuid.UUID]DocumentMeta, error) {
	out := make(map[uuid.UUID]DocumentMeta, len(documentIDs))
	if len(documentIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(title, ''), COALESCE(url, ''), source_type
		 FROM documents WHERE workspace_id = $1 AND id = ANY($2)`,
		workspaceID, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get document metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m DocumentMeta
		if err := rows.Scan(&m.ID, &m.Title, &m.URL, &m.SourceType); err != nil {
			return nil, fmt.Errorf("failed to scan document metadata: %w", err)
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

func (s *Store) getDocumentByIdentity(ctx context.Context, workspaceID uuid.UUID, sourceType types.SourceType, externalID string) (*types.Document, error) {
	var d types.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, connection_id, source_type, external_id,
		        COALESCE(url, ''), COALESCE(title, ''), COALESCE(author_name, ''),
		        COALESCE(author_email, ''), COALESCE(content_text, ''),
		        COALESCE(content_hash, ''), created_at, updated_at
		 FROM documents
		 WHERE workspace_id = $1 AND source_type = $2 AND external_id = $3`,
		workspaceID, sourceType, externalID,
	).Scan(&d.ID, &d.WorkspaceID, &d.ConnectionID, &d.SourceType, &d.ExternalID,
		&d.URL, &d.Title, &d.AuthorName, &d.AuthorEmail, &d.ContentText,
		&d.ContentHash, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document by identity: %w", err)
	}
	return &d, nil
}
