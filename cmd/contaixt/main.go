package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contaixt/contaixt/db"
	"github.com/contaixt/contaixt/pkg/config"
	"github.com/contaixt/contaixt/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "contaixt",
	Short: "Contaixt - workspace knowledge graph and retrieval service",
	Long: `Contaixt ingests documents from connected sources (Gmail, Notion,
Google Drive), builds a per-workspace knowledge graph with chunk
embeddings, and answers questions grounded in the ingested content.

The api and worker commands share one Postgres queue, so both can be
scaled independently.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Contaixt version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Contaixt version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	return cfg, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		status, _ := cmd.Flags().GetBool("status")
		if status {
			return db.Status(cfg.DatabaseURL)
		}
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		fmt.Println("✓ Migrations applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("status", false, "Show migration status instead of applying")
}
