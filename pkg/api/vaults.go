package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/contaixt/contaixt/pkg/types"
)

type vaultRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) createVault(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := pathUUID(w, r, "workspaceID")
	if !ok {
		return
	}
	var req vaultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	vault, err := s.store.CreateVault(r.Context(), workspaceID, req.Name, req.Description)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vault)
}

func (s *Server) getVault(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := pathUUID(w, r, "workspaceID")
	if !ok {
		return
	}
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	vault, err := s.store.GetVault(r.Context(), workspaceID, vaultID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vault)
}

func (s *Server) listVaults(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := pathUUID(w, r, "workspaceID")
	if !ok {
		return
	}
	vaults, err := s.store.ListVaults(r.Context(), workspaceID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if vaults == nil {
		vaults = []types.Vault{}
	}
	writeJSON(w, http.StatusOK, vaults)
}

func (s *Server) updateVault(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := pathUUID(w, r, "workspaceID")
	if !ok {
		return
	}
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	var req vaultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	vault, err := s.store.UpdateVault(r.Context(), workspaceID, vaultID, req.Name, req.Description)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vault)
}

func (s *Server) deleteVault(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := pathUUID(w, r, "workspaceID")
	if !ok {
		return
	}
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	if err := s.store.DeleteVault(r.Context(), workspaceID, vaultID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setVaultConnectionsRequest struct {
	ConnectionIDs []uuid.UUID `json:"connection_ids"`
}

// setVaultConnections replaces the vault's connection set. Connections from
// another workspace are rejected as a whole; the set is applied atomically.
func (s *Server) setVaultConnections(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := pathUUID(w, r, "workspaceID")
	if !ok {
		return
	}
	vaultID, ok := pathUUID(w, r, "vaultID")
	if !ok {
		return
	}
	var req setVaultConnectionsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.store.SetVaultConnections(r.Context(), workspaceID, vaultID, req.ConnectionIDs); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vault_id": vaultID, "connection_ids": req.ConnectionIDs})
}
