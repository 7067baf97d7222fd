package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contaixt/contaixt/pkg/answer"
	"github.com/contaixt/contaixt/pkg/ingest"
	"github.com/contaixt/contaixt/pkg/log"
	"github.com/contaixt/contaixt/pkg/metrics"
	"github.com/contaixt/contaixt/pkg/retrieval"
	"github.com/contaixt/contaixt/pkg/store"
	"github.com/contaixt/contaixt/pkg/types"
)

// Store is the subset of the Postgres store the API serves from.
type Store interface {
	CreateWorkspace(ctx context.Context, name string) (*types.Workspace, error)
	GetWorkspace(ctx context.Context, id uuid.UUID) (*types.Workspace, error)
	ListWorkspaces(ctx context.Context) ([]types.Workspace, error)

	CreateVault(ctx context.Context, workspaceID uuid.UUID, name, description string) (*types.Vault, error)
	GetVault(ctx context.Context, workspaceID, vaultID uuid.UUID) (*types.Vault, error)
	ListVaults(ctx context.Context, workspaceID uuid.UUID) ([]types.Vault, error)
	UpdateVault(ctx context.Context, workspaceID, vaultID uuid.UUID, name, description string) (*types.Vault, error)
	DeleteVault(ctx context.Context, workspaceID, vaultID uuid.UUID) error
	SetVaultConnections(ctx context.Context, workspaceID, vaultID uuid.UUID, connectionIDs []uuid.UUID) error

	CreateConnection(ctx context.Context, workspaceID uuid.UUID, sourceType types.SourceType, externalAuthID, externalAccountID string) (*types.Connection, error)
	GetConnectionByAuthID(ctx context.Context, externalAuthID string) (*types.Connection, error)
	ListConnections(ctx context.Context, workspaceID uuid.UUID) ([]types.Connection, error)

	WorkspaceJobStats(ctx context.Context, workspaceID uuid.UUID) ([]types.JobStat, error)
	JobStats(ctx context.Context) ([]types.JobStat, error)
	RecentFailed(ctx context.Context, limit int) ([]types.Job, error)
}

// Ingestor is the ingestion entry point.
type Ingestor interface {
	IngestDocument(ctx context.Context, workspaceID, connectionID uuid.UUID, doc ingest.CanonicalDocument) (*types.Document, store.DocumentOutcome, error)
}

// Retriever builds query context.
type Retriever interface {
	Retrieve(ctx context.Context, workspaceID uuid.UUID, prompt string, opts retrieval.Options) (*retrieval.Result, error)
}

// Composer produces grounded answers.
type Composer interface {
	Compose(ctx context.Context, prompt string, result *retrieval.Result) (*answer.Answer, error)
}

// RecordLister fetches synced records from the OAuth gateway.
type RecordLister interface {
	ListRecords(ctx context.Context, connectionID, providerConfigKey, model, modifiedAfter string) ([]ingest.Record, error)
}

// Server is the HTTP API.
type Server struct {
	store         Store
	ingestor      Ingestor
	retriever     Retriever
	composer      Composer
	gateway       RecordLister
	webhookSecret string

	http   *http.Server
	logger zerolog.Logger
}

// Config holds API server settings.
type Config struct {
	ListenAddr    string
	WebhookSecret string
}

// NewServer wires the HTTP surface.
func NewServer(s Store, ing Ingestor, r Retriever, c Composer, g RecordLister, cfg Config) *Server {
	srv := &Server{
		store:         s,
		ingestor:      ing,
		retriever:     r,
		composer:      c,
		gateway:       g,
		webhookSecret: cfg.WebhookSecret,
		logger:        log.WithComponent("api"),
	}
	srv.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Routes builds the router. Exposed for tests.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", metrics.HealthHandler())
	r.Get("/readyz", metrics.ReadyHandler())
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/workspaces", func(r chi.Router) {
			r.Post("/", s.createWorkspace)
			r.Get("/", s.listWorkspaces)
			r.Get("/{workspaceID}", s.getWorkspace)

			r.Route("/{workspaceID}/vaults", func(r chi.Router) {
				r.Post("/", s.createVault)
				r.Get("/", s.listVaults)
				r.Get("/{vaultID}", s.getVault)
				r.Patch("/{vaultID}", s.updateVault)
				r.Delete("/{vaultID}", s.deleteVault)
				r.Put("/{vaultID}/connections", s.setVaultConnections)
			})
			r.Get("/{workspaceID}/connections", s.listConnections)
		})

		r.Post("/ingest/document", s.ingestDocument)
		r.Post("/query", s.query)
		r.Post("/webhooks/ingest", s.webhook)

		r.Get("/jobs/stats", s.jobStats)
		r.Get("/jobs/failed", s.jobsFailed)
	})
	return r
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("http api listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
