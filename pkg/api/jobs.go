package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/contaixt/contaixt/pkg/types"
)

type jobStatsResponse struct {
	Stats   []types.JobStat `json:"stats"`
	Summary map[string]int  `json:"summary"`
}

// jobStats returns (type, status) counts plus a status roll-up, optionally
// scoped to one workspace.
func (s *Server) jobStats(w http.ResponseWriter, r *http.Request) {
	var (
		stats []types.JobStat
		err   error
	)
	if raw := r.URL.Query().Get("workspace_id"); raw != "" {
		workspaceID, perr := uuid.Parse(raw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid workspace_id")
			return
		}
		stats, err = s.store.WorkspaceJobStats(r.Context(), workspaceID)
	} else {
		stats, err = s.store.JobStats(r.Context())
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}

	summary := map[string]int{"queued": 0, "running": 0, "done": 0, "failed": 0, "total": 0}
	for _, st := range stats {
		summary[string(st.Status)] += st.Count
		summary["total"] += st.Count
	}
	if stats == nil {
		stats = []types.JobStat{}
	}
	writeJSON(w, http.StatusOK, jobStatsResponse{Stats: stats, Summary: summary})
}

type failedJob struct {
	ID          uuid.UUID       `json:"id"`
	WorkspaceID uuid.UUID       `json:"workspace_id"`
	Type        types.JobType   `json:"type"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error"`
	UpdatedAt   string          `json:"updated_at"`
	Status      types.JobStatus `json:"status"`
}

func (s *Server) jobsFailed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	jobs, err := s.store.RecentFailed(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]failedJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, failedJob{
			ID:          j.ID,
			WorkspaceID: j.WorkspaceID,
			Type:        j.Type,
			Attempts:    j.Attempts,
			LastError:   j.LastError,
			UpdatedAt:   j.UpdatedAt.UTC().Format(time.RFC3339),
			Status:      j.Status,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
