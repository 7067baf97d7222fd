package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/contaixt/contaixt/pkg/ingest"
	"github.com/contaixt/contaixt/pkg/types"
)

type ingestDocumentRequest struct {
	WorkspaceID  uuid.UUID        `json:"workspace_id"`
	ConnectionID uuid.UUID        `json:"connection_id"`
	SourceType   types.SourceType `json:"source_type"`
	ExternalID   string           `json:"external_id"`
	URL          string           `json:"url,omitempty"`
	Title        string           `json:"title,omitempty"`
	AuthorName   string           `json:"author_name,omitempty"`
	AuthorEmail  string           `json:"author_email,omitempty"`
	CreatedAt    *time.Time       `json:"created_at,omitempty"`
	ContentText  string           `json:"content_text"`
}

type ingestDocumentResponse struct {
	DocumentID uuid.UUID `json:"document_id"`
	Status     string    `json:"status"`
}

func (s *Server) ingestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WorkspaceID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}
	if req.ExternalID == "" {
		writeError(w, http.StatusBadRequest, "external_id is required")
		return
	}
	if req.ContentText == "" {
		writeError(w, http.StatusBadRequest, "content_text is required")
		return
	}

	doc, outcome, err := s.ingestor.IngestDocument(r.Context(), req.WorkspaceID, req.ConnectionID, ingest.CanonicalDocument{
		SourceType:  req.SourceType,
		ExternalID:  req.ExternalID,
		URL:         req.URL,
		Title:       req.Title,
		AuthorName:  req.AuthorName,
		AuthorEmail: req.AuthorEmail,
		ContentText: req.ContentText,
		CreatedAt:   req.CreatedAt,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestDocumentResponse{DocumentID: doc.ID, Status: string(outcome)})
}
