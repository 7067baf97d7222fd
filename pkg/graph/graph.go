package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/contaixt/contaixt/pkg/log"
)

// Config holds Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Graph is the property graph access layer. One Graph per process; the
// driver maintains its own connection pool.
type Graph struct {
	driver   neo4j.DriverWithContext
	database string
}

// New creates a Graph backed by a pooled Neo4j driver.
func New(cfg Config) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	return &Graph{driver: driver, database: cfg.Database}, nil
}

// VerifyConnectivity checks the graph store is reachable. The API process
// refuses to start when this fails.
func (g *Graph) VerifyConnectivity(ctx context.Context) error {
	if err := g.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}
	return nil
}

// Close shuts the driver pool down.
func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// run executes one Cypher statement and returns its eager result.
func (g *Graph) run(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, g.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.database))
}

// schemaStatements are idempotent constraint and index definitions.
var schemaStatements = []string{
	`CREATE CONSTRAINT person_workspace_key IF NOT EXISTS
	 FOR (n:Person) REQUIRE (n.workspace_id, n.key) IS UNIQUE`,
	`CREATE CONSTRAINT company_workspace_key IF NOT EXISTS
	 FOR (n:Company) REQUIRE (n.workspace_id, n.key) IS UNIQUE`,
	`CREATE CONSTRAINT topic_workspace_key IF NOT EXISTS
	 FOR (n:Topic) REQUIRE (n.workspace_id, n.key) IS UNIQUE`,
	`CREATE CONSTRAINT document_workspace_key IF NOT EXISTS
	 FOR (n:Document) REQUIRE (n.workspace_id, n.key) IS UNIQUE`,
	`CREATE CONSTRAINT chunk_workspace_doc_idx IF NOT EXISTS
	 FOR (n:Chunk) REQUIRE (n.workspace_id, n.document_id, n.idx) IS UNIQUE`,
	`CREATE INDEX person_workspace_idx IF NOT EXISTS FOR (n:Person) ON (n.workspace_id)`,
	`CREATE INDEX company_workspace_idx IF NOT EXISTS FOR (n:Company) ON (n.workspace_id)`,
	`CREATE INDEX topic_workspace_idx IF NOT EXISTS FOR (n:Topic) ON (n.workspace_id)`,
	`CREATE INDEX document_workspace_idx IF NOT EXISTS FOR (n:Document) ON (n.workspace_id)`,
	`CREATE INDEX chunk_workspace_idx IF NOT EXISTS FOR (n:Chunk) ON (n.workspace_id)`,
	`CREATE INDEX chunk_document_idx IF NOT EXISTS FOR (n:Chunk) ON (n.document_id)`,
	`CREATE INDEX chunk_connection_idx IF NOT EXISTS FOR (n:Chunk) ON (n.connection_id)`,
	`CREATE VECTOR INDEX chunk_embeddings IF NOT EXISTS
	 FOR (n:Chunk) ON (n.embedding)
	 OPTIONS {indexConfig: {
	     ` + "`vector.dimensions`" + `: 1536,
	     ` + "`vector.similarity_function`" + `: 'cosine'
	 }}`,
}

// EnsureIndexes applies all constraints and indexes. Safe to run at every
// startup.
func (g *Graph) EnsureIndexes(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := g.run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to apply graph schema statement: %w", err)
		}
	}
	logger := log.WithComponent("graph")
	logger.Info().Int("statements", len(schemaStatements)).Msg("graph schema ensured")
	return nil
}

// float64s converts an embedding to the float64 slice the bolt protocol
// expects.
func float64s(v []float32) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
