package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/contaixt/contaixt/pkg/answer"
	"github.com/contaixt/contaixt/pkg/api"
	"github.com/contaixt/contaixt/pkg/embed"
	"github.com/contaixt/contaixt/pkg/graph"
	"github.com/contaixt/contaixt/pkg/ingest"
	"github.com/contaixt/contaixt/pkg/metrics"
	"github.com/contaixt/contaixt/pkg/rerank"
	"github.com/contaixt/contaixt/pkg/retrieval"
	"github.com/contaixt/contaixt/pkg/store"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the HTTP API server",
	Long: `Run the HTTP API server: workspace and vault management, manual
ingestion, the query endpoint, gateway webhooks, and health and metrics
endpoints. Ingestion enqueues jobs; run at least one worker to process
them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		metrics.SetVersion(Version)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer st.Close()
		metrics.RegisterComponent("postgres", true, "connected")

		g, err := graph.New(graph.Config{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUsername,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		})
		if err != nil {
			return fmt.Errorf("failed to create graph driver: %w", err)
		}
		defer g.Close(context.Background())

		if err := g.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("failed to reach neo4j: %w", err)
		}
		if err := g.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to ensure graph indexes: %w", err)
		}
		metrics.RegisterComponent("neo4j", true, "connected")

		embedder := embed.New(embed.Config{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.EmbedModel,
			Dim:       cfg.EmbedDim,
			BatchSize: cfg.EmbedBatch,
		})

		// Disabled automatically when no Cohere key is configured.
		reranker := rerank.New(rerank.Config{
			APIKey: cfg.CohereAPIKey,
			Model:  cfg.RerankModel,
		})

		engine := retrieval.New(st, g, embedder, reranker, retrieval.Config{
			MaxDepth:                  cfg.MaxDepth,
			RerankCandidateMultiplier: cfg.RerankCandidateMultiplier,
		})
		composer := answer.New(answer.Config{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AnswerModel,
		})
		ingestor := ingest.NewService(st)
		gateway := ingest.NewGateway(ingest.GatewayConfig{
			BaseURL:   cfg.GatewayBaseURL,
			SecretKey: cfg.GatewaySecretKey,
		})

		collector := metrics.NewCollector(st)
		collector.Start()
		defer collector.Stop()

		srv := api.NewServer(st, ingestor, engine, composer, gateway, api.Config{
			ListenAddr:    cfg.ListenAddr,
			WebhookSecret: cfg.WebhookSecret,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("api server error: %w", err)
			}
			return nil
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
