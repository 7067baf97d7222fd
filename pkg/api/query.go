package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/contaixt/contaixt/pkg/retrieval"
	"github.com/contaixt/contaixt/pkg/types"
)

type queryRequest struct {
	WorkspaceID uuid.UUID   `json:"workspace_id"`
	Prompt      string      `json:"prompt"`
	VaultIDs    []uuid.UUID `json:"vault_ids,omitempty"`
	Depth       *int        `json:"depth,omitempty"`
	TopK        int         `json:"top_k,omitempty"`
}

type queryDebug struct {
	ChunksFound  int      `json:"chunks_found"`
	FactsFound   int      `json:"facts_found"`
	SeedEntities []string `json:"seed_entities"`
}

type queryResponse struct {
	Answer    string           `json:"answer"`
	Citations []types.Citation `json:"citations"`
	Debug     queryDebug       `json:"debug"`
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WorkspaceID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	result, err := s.retriever.Retrieve(r.Context(), req.WorkspaceID, req.Prompt, retrieval.Options{
		VaultIDs: req.VaultIDs,
		Depth:    req.Depth,
		TopK:     req.TopK,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	ans, err := s.composer.Compose(r.Context(), req.Prompt, result)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	seedNames := make([]string, 0, len(result.SeedEntities))
	for _, e := range result.SeedEntities {
		seedNames = append(seedNames, e.Name)
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:    ans.Text,
		Citations: ans.Citations,
		Debug: queryDebug{
			ChunksFound:  len(result.Chunks),
			FactsFound:   len(result.Facts),
			SeedEntities: seedNames,
		},
	})
}
