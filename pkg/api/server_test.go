package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaixt/contaixt/pkg/answer"
	"github.com/contaixt/contaixt/pkg/ingest"
	"github.com/contaixt/contaixt/pkg/retrieval"
	"github.com/contaixt/contaixt/pkg/store"
	"github.com/contaixt/contaixt/pkg/types"
)

type fakeAPIStore struct {
	Store

	workspaces  []types.Workspace
	vault       *types.Vault
	connection  *types.Connection
	stats       []types.JobStat
	failed      []types.Job
	vaultErr    error
	connections struct {
		workspaceID uuid.UUID
		vaultID     uuid.UUID
		ids         []uuid.UUID
	}
}

func (f *fakeAPIStore) CreateWorkspace(_ context.Context, name string) (*types.Workspace, error) {
	ws := types.Workspace{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	f.workspaces = append(f.workspaces, ws)
	return &ws, nil
}

func (f *fakeAPIStore) ListWorkspaces(_ context.Context) ([]types.Workspace, error) {
	return f.workspaces, nil
}

func (f *fakeAPIStore) DeleteVault(_ context.Context, _, _ uuid.UUID) error {
	return f.vaultErr
}

func (f *fakeAPIStore) SetVaultConnections(_ context.Context, workspaceID, vaultID uuid.UUID, ids []uuid.UUID) error {
	if f.vaultErr != nil {
		return f.vaultErr
	}
	f.connections.workspaceID = workspaceID
	f.connections.vaultID = vaultID
	f.connections.ids = ids
	return nil
}

func (f *fakeAPIStore) CreateConnection(_ context.Context, workspaceID uuid.UUID, sourceType types.SourceType, externalAuthID, _ string) (*types.Connection, error) {
	f.connection = &types.Connection{ID: uuid.New(), WorkspaceID: workspaceID, SourceType: sourceType, ExternalAuthID: externalAuthID}
	return f.connection, nil
}

func (f *fakeAPIStore) GetConnectionByAuthID(_ context.Context, _ string) (*types.Connection, error) {
	if f.connection == nil {
		return nil, store.ErrNotFound
	}
	return f.connection, nil
}

func (f *fakeAPIStore) JobStats(_ context.Context) ([]types.JobStat, error) {
	return f.stats, nil
}

func (f *fakeAPIStore) WorkspaceJobStats(_ context.Context, _ uuid.UUID) ([]types.JobStat, error) {
	return f.stats, nil
}

func (f *fakeAPIStore) RecentFailed(_ context.Context, _ int) ([]types.Job, error) {
	return f.failed, nil
}

type fakeIngestor struct {
	docs []ingest.CanonicalDocument
}

func (f *fakeIngestor) IngestDocument(_ context.Context, workspaceID, connectionID uuid.UUID, doc ingest.CanonicalDocument) (*types.Document, store.DocumentOutcome, error) {
	f.docs = append(f.docs, doc)
	return &types.Document{ID: uuid.New(), WorkspaceID: workspaceID, ConnectionID: connectionID}, store.DocumentCreated, nil
}

type fakeRetriever struct {
	result *retrieval.Result
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ uuid.UUID, _ string, _ retrieval.Options) (*retrieval.Result, error) {
	if f.result == nil {
		return &retrieval.Result{}, nil
	}
	return f.result, nil
}

type fakeComposer struct{}

func (fakeComposer) Compose(_ context.Context, _ string, result *retrieval.Result) (*answer.Answer, error) {
	if result == nil || len(result.Chunks) == 0 {
		return &answer.Answer{Text: answer.NoContextAnswer, Citations: []types.Citation{}}, nil
	}
	return &answer.Answer{
		Text:      "grounded answer",
		Citations: []types.Citation{{ChunkID: result.Chunks[0].ChunkID, Quote: result.Chunks[0].Text}},
	}, nil
}

type fakeGateway struct {
	records []ingest.Record
}

func (f *fakeGateway) ListRecords(_ context.Context, _, _, _, _ string) ([]ingest.Record, error) {
	return f.records, nil
}

func newTestServer(st *fakeAPIStore, ing *fakeIngestor, ret *fakeRetriever, gw *fakeGateway, secret string) *Server {
	if st == nil {
		st = &fakeAPIStore{}
	}
	if ing == nil {
		ing = &fakeIngestor{}
	}
	if ret == nil {
		ret = &fakeRetriever{}
	}
	if gw == nil {
		gw = &fakeGateway{}
	}
	return NewServer(st, ing, ret, fakeComposer{}, gw, Config{ListenAddr: ":0", WebhookSecret: secret})
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestCreateWorkspace(t *testing.T) {
	st := &fakeAPIStore{}
	srv := newTestServer(st, nil, nil, nil, "")

	rec := doJSON(t, srv, http.MethodPost, "/v1/workspaces", map[string]string{"name": "acme"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var ws types.Workspace
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ws))
	assert.Equal(t, "acme", ws.Name)
}

func TestCreateWorkspaceValidation(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil, "")

	rec := doJSON(t, srv, http.MethodPost, "/v1/workspaces", map[string]string{"name": "  "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "detail")
}

func TestDeleteDefaultVaultRejected(t *testing.T) {
	st := &fakeAPIStore{vaultErr: store.ErrDefaultVault}
	srv := newTestServer(st, nil, nil, nil, "")

	rec := doJSON(t, srv, http.MethodDelete,
		"/v1/workspaces/"+uuid.NewString()+"/vaults/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "default vault")
}

func TestSetVaultConnectionsCrossWorkspace(t *testing.T) {
	st := &fakeAPIStore{vaultErr: store.ErrCrossWorkspace}
	srv := newTestServer(st, nil, nil, nil, "")

	rec := doJSON(t, srv, http.MethodPut,
		"/v1/workspaces/"+uuid.NewString()+"/vaults/"+uuid.NewString()+"/connections",
		map[string]any{"connection_ids": []string{uuid.NewString()}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "different workspace")
}

func TestIngestDocument(t *testing.T) {
	ing := &fakeIngestor{}
	srv := newTestServer(nil, ing, nil, nil, "")

	rec := doJSON(t, srv, http.MethodPost, "/v1/ingest/document", map[string]any{
		"workspace_id": uuid.NewString(),
		"source_type":  "gmail",
		"external_id":  "msg-1",
		"content_text": "hello",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ingestDocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "created", resp.Status)
	require.Len(t, ing.docs, 1)
	assert.Equal(t, "msg-1", ing.docs[0].ExternalID)
}

func TestIngestDocumentValidation(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil, "")

	for name, body := range map[string]map[string]any{
		"missing workspace": {"external_id": "x", "content_text": "y"},
		"missing external":  {"workspace_id": uuid.NewString(), "content_text": "y"},
		"missing content":   {"workspace_id": uuid.NewString(), "external_id": "x"},
	} {
		rec := doJSON(t, srv, http.MethodPost, "/v1/ingest/document", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestQuery(t *testing.T) {
	ret := &fakeRetriever{result: &retrieval.Result{
		Chunks:       []types.RetrievedChunk{{ChunkID: "chunk-1", Text: "evidence text"}},
		Facts:        []types.Fact{{FromName: "Ada", Relation: "WORKS_AT", ToName: "Acme"}},
		SeedEntities: []types.SeedEntity{{Key: "k", Name: "Ada"}},
	}}
	srv := newTestServer(nil, nil, ret, nil, "")

	rec := doJSON(t, srv, http.MethodPost, "/v1/query", map[string]any{
		"workspace_id": uuid.NewString(),
		"prompt":       "who works at acme",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "grounded answer", resp.Answer)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, 1, resp.Debug.ChunksFound)
	assert.Equal(t, []string{"Ada"}, resp.Debug.SeedEntities)
}

func TestQueryNoContext(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil, "")

	rec := doJSON(t, srv, http.MethodPost, "/v1/query", map[string]any{
		"workspace_id": uuid.NewString(),
		"prompt":       "anything",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, answer.NoContextAnswer, resp.Answer)
	assert.Empty(t, resp.Citations)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(srv *Server, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/ingest", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestWebhookSignature(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil, "topsecret")
	body := []byte(`{"type":"ping"}`)

	t.Run("missing signature", func(t *testing.T) {
		rec := postWebhook(srv, body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Body.String(), "401 must not carry a body")
	})

	t.Run("wrong signature", func(t *testing.T) {
		rec := postWebhook(srv, body, sign("othersecret", body))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid signature, unknown type acked", func(t *testing.T) {
		rec := postWebhook(srv, body, sign("topsecret", body))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ignored")
	})
}

func TestWebhookAuthEvent(t *testing.T) {
	st := &fakeAPIStore{}
	srv := newTestServer(st, nil, nil, nil, "")

	workspaceID := uuid.NewString()
	body, _ := json.Marshal(map[string]any{
		"type":              "auth",
		"connectionId":      "conn-ext-1",
		"providerConfigKey": "google-mail",
		"endUser":           map[string]string{"endUserId": workspaceID},
	})

	rec := postWebhook(srv, body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, st.connection)
	assert.Equal(t, types.SourceGmail, st.connection.SourceType)
	assert.Equal(t, "conn-ext-1", st.connection.ExternalAuthID)
	assert.Equal(t, workspaceID, st.connection.WorkspaceID.String())
}

func TestWebhookSyncEvent(t *testing.T) {
	st := &fakeAPIStore{connection: &types.Connection{
		ID: uuid.New(), WorkspaceID: uuid.New(), SourceType: types.SourceGmail, ExternalAuthID: "conn-ext-1",
	}}
	ing := &fakeIngestor{}
	gw := &fakeGateway{records: []ingest.Record{
		{"id": "msg-1", "sender": "ada@acme.com", "subject": "hi", "body": "hello there"},
		{"id": "msg-2", "sender": "bob@acme.com", "subject": "empty"},
	}}
	srv := newTestServer(st, ing, nil, gw, "")

	body, _ := json.Marshal(map[string]any{
		"type":              "sync",
		"connectionId":      "conn-ext-1",
		"providerConfigKey": "gmail",
		"model":             "GmailEmail",
		"success":           true,
	})

	rec := postWebhook(srv, body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ingested":1`)
	require.Len(t, ing.docs, 1, "records without content are skipped")
	assert.Equal(t, "msg-1", ing.docs[0].ExternalID)
}

func TestJobStats(t *testing.T) {
	st := &fakeAPIStore{stats: []types.JobStat{
		{Type: types.JobChunkDocument, Status: types.JobQueued, Count: 2},
		{Type: types.JobEmbedChunks, Status: types.JobDone, Count: 5},
		{Type: types.JobUpsertGraph, Status: types.JobFailed, Count: 1},
	}}
	srv := newTestServer(st, nil, nil, nil, "")

	rec := doJSON(t, srv, http.MethodGet, "/v1/jobs/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp jobStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Summary["queued"])
	assert.Equal(t, 5, resp.Summary["done"])
	assert.Equal(t, 1, resp.Summary["failed"])
	assert.Equal(t, 8, resp.Summary["total"])
}

func TestJobsFailed(t *testing.T) {
	st := &fakeAPIStore{failed: []types.Job{
		{ID: uuid.New(), Type: types.JobEmbedChunks, Status: types.JobFailed, Attempts: 3, LastError: "timeout"},
	}}
	srv := newTestServer(st, nil, nil, nil, "")

	rec := doJSON(t, srv, http.MethodGet, "/v1/jobs/failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []failedJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "timeout", resp[0].LastError)
}
