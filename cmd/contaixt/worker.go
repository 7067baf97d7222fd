package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/contaixt/contaixt/pkg/embed"
	"github.com/contaixt/contaixt/pkg/extract"
	"github.com/contaixt/contaixt/pkg/graph"
	"github.com/contaixt/contaixt/pkg/metrics"
	"github.com/contaixt/contaixt/pkg/pipeline"
	"github.com/contaixt/contaixt/pkg/store"
	"github.com/contaixt/contaixt/pkg/types"
	"github.com/contaixt/contaixt/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the ingestion pipeline worker",
	Long: `Run the ingestion pipeline worker. It claims jobs from the shared
Postgres queue and advances documents through chunking, embedding,
entity extraction and graph upsert. Any number of workers can run
against the same queue.`,
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

		embedder := embed.New(embed.Config{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.EmbedModel,
			Dim:       cfg.EmbedDim,
			BatchSize: cfg.EmbedBatch,
		})
		extractor := extract.New(extract.Config{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.ExtractModel,
		})

		p := pipeline.New(st, g, embedder, extractor, pipeline.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		})

		w := worker.New(st, worker.Config{
			MaxAttempts:  cfg.MaxAttempts,
			PollInterval: cfg.PollInterval,
			BackoffBase:  cfg.BackoffBase,
			JobTimeout:   cfg.JobTimeout,
			StuckTimeout: cfg.StuckTimeout,
			Concurrency:  cfg.Concurrency,
		})

		handlers := map[types.JobType]worker.Handler{
			types.JobProcessDocument: p.HandleProcessDocument,
			types.JobChunkDocument:   p.HandleChunkDocument,
			types.JobEmbedChunks:     p.HandleEmbedChunks,
			types.JobExtractEntities: p.HandleExtractEntities,
			types.JobUpsertGraph:     p.HandleUpsertGraph,
		}
		for jobType, h := range handlers {
			if err := w.Register(jobType, h); err != nil {
				return fmt.Errorf("failed to register handler: %w", err)
			}
		}

		return w.Run(ctx)
	},
}
