package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/contaixt/contaixt/pkg/ingest"
	"github.com/contaixt/contaixt/pkg/metrics"
)

// signatureHeader carries the gateway's HMAC-SHA256 of the raw body.
const signatureHeader = "X-Signature-HMAC-SHA256"

type webhookEvent struct {
	Type              string `json:"type"`
	ConnectionID      string `json:"connectionId"`
	ProviderConfigKey string `json:"providerConfigKey"`
	Model             string `json:"model"`
	ModifiedAfter     string `json:"modifiedAfter"`
	Success           bool   `json:"success"`
	EndUser           struct {
		EndUserID string `json:"endUserId"`
	} `json:"endUser"`
}

// webhook receives gateway events. Signature failures return 401 with no
// body; unknown event types are acknowledged as ignored so the gateway does
// not retry them forever.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if !verifySignature(s.webhookSecret, body, r.Header.Get(signatureHeader)) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.logger.Info().Str("type", event.Type).Str("provider", event.ProviderConfigKey).Msg("webhook received")

	switch event.Type {
	case "auth":
		s.handleAuthEvent(w, r, event)
	case "sync":
		s.handleSyncEvent(w, r, event)
	default:
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}

// verifySignature compares the HMAC-SHA256 of the raw body in constant
// time. Verification is skipped only when no secret is configured.
func verifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// handleAuthEvent registers a new connection bound at the gateway. The
// workspace comes from the end-user metadata set when the auth flow was
// started.
func (s *Server) handleAuthEvent(w http.ResponseWriter, r *http.Request, event webhookEvent) {
	sourceType, ok := ingest.ProviderSource[event.ProviderConfigKey]
	if !ok {
		metrics.WebhookEventsTotal.WithLabelValues("auth", "unsupported").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "unsupported_provider"})
		return
	}

	workspaceID, err := uuid.Parse(event.EndUser.EndUserID)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("auth", "error").Inc()
		writeError(w, http.StatusBadRequest, "endUser.endUserId must be a workspace id")
		return
	}

	conn, err := s.store.CreateConnection(r.Context(), workspaceID, sourceType, event.ConnectionID, "")
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("auth", "error").Inc()
		writeStoreError(w, err)
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues("auth", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "connection_id": conn.ID.String()})
}

// handleSyncEvent fetches the synced records, normalizes them, and funnels
// each through the ingest entry point.
func (s *Server) handleSyncEvent(w http.ResponseWriter, r *http.Request, event webhookEvent) {
	if !event.Success {
		s.logger.Warn().Str("provider", event.ProviderConfigKey).Msg("provider sync reported failure")
		metrics.WebhookEventsTotal.WithLabelValues("sync", "sync_failed").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "sync_failed"})
		return
	}

	normalize, ok := ingest.Normalizers[event.ProviderConfigKey]
	if !ok {
		metrics.WebhookEventsTotal.WithLabelValues("sync", "unsupported").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "unsupported_provider"})
		return
	}

	conn, err := s.store.GetConnectionByAuthID(r.Context(), event.ConnectionID)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("sync", "no_connection").Inc()
		writeStoreError(w, err)
		return
	}

	records, err := s.gateway.ListRecords(r.Context(), event.ConnectionID, event.ProviderConfigKey, event.Model, event.ModifiedAfter)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("sync", "error").Inc()
		s.logger.Error().Err(err).Msg("failed to fetch records from gateway")
		writeError(w, http.StatusBadGateway, "failed to fetch records")
		return
	}

	ingested := 0
	for _, doc := range normalize(records, nil) {
		if doc.ContentText == "" {
			continue
		}
		if _, _, err := s.ingestor.IngestDocument(r.Context(), conn.WorkspaceID, conn.ID, doc); err != nil {
			s.logger.Error().Err(err).Str("external_id", doc.ExternalID).Msg("failed to ingest synced document")
			continue
		}
		ingested++
	}

	s.logger.Info().
		Stringer("workspace_id", conn.WorkspaceID).
		Int("ingested", ingested).
		Msg("sync processed")
	metrics.WebhookEventsTotal.WithLabelValues("sync", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ingested": ingested})
}
