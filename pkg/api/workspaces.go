package api

import (
	"net/http"
	"strings"

	"github.com/contaixt/contaixt/pkg/types"
)

type createWorkspaceRequest struct {
	Name string `json:"name"`
}

func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	ws, err := s.store.CreateWorkspace(r.Context(), req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) getWorkspace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "workspaceID")
	if !ok {
		return
	}
	ws, err := s.store.GetWorkspace(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := s.store.ListWorkspaces(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if workspaces == nil {
		workspaces = []types.Workspace{}
	}
	writeJSON(w, http.StatusOK, workspaces)
}

func (s *Server) listConnections(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := pathUUID(w, r, "workspaceID")
	if !ok {
		return
	}
	connections, err := s.store.ListConnections(r.Context(), workspaceID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if connections == nil {
		connections = []types.Connection{}
	}
	writeJSON(w, http.StatusOK, connections)
}
