package types

import (
	"time"

	"github.com/google/uuid"
)

// Workspace is the tenant root. All data is partitioned by workspace ID.
type Workspace struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Vault is a named retrieval scope within a workspace. It does not own
// documents; it selects which connections' documents are searchable via
// VaultConnectionLink. Exactly one vault per workspace has IsDefault=true.
type Vault struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string
	Description string
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SourceType identifies the external system a document came from.
type SourceType string

const (
	SourceGmail       SourceType = "gmail"
	SourceNotion      SourceType = "notion"
	SourceGoogleDrive SourceType = "google-drive"
)

// ConnectionStatus represents the health of a bound external identity.
type ConnectionStatus string

const (
	ConnectionActive   ConnectionStatus = "active"
	ConnectionInactive ConnectionStatus = "inactive"
	ConnectionError    ConnectionStatus = "error"
)

// Connection is a bound OAuth identity at the external gateway. Credentials
// live at the gateway; we only keep its connection id for proxy calls.
type Connection struct {
	ID                uuid.UUID
	WorkspaceID       uuid.UUID
	SourceType        SourceType
	ExternalAuthID    string
	ExternalAccountID string
	Status            ConnectionStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// VaultConnectionLink assigns a connection to a vault. The set of links for
// a vault determines which documents are visible to vault-scoped retrieval.
type VaultConnectionLink struct {
	VaultID      uuid.UUID
	ConnectionID uuid.UUID
}

// Document is the canonical unit of ingested text with provenance.
// Dedup-unique on (workspace_id, source_type, external_id).
type Document struct {
	ID           uuid.UUID
	WorkspaceID  uuid.UUID
	ConnectionID uuid.UUID
	SourceType   SourceType
	ExternalID   string
	URL          string
	Title        string
	AuthorName   string
	AuthorEmail  string
	ContentText  string
	ContentHash  string // sha-256 hex of ContentText
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chunk is a contiguous substring of a document. Offsets are character
// positions into the stripped document text; Embedding is nil until the
// EMBED_CHUNKS stage has run.
type Chunk struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	DocumentID  uuid.UUID
	Idx         int
	Text        string
	StartOffset int
	EndOffset   int
	Embedding   []float32
	CreatedAt   time.Time
}

// EntityType classifies extracted entities. Unknown types fall back to
// Topic when projected into the graph.
type EntityType string

const (
	EntityPerson  EntityType = "Person"
	EntityCompany EntityType = "Company"
	EntityTopic   EntityType = "Topic"
)

// EntityMention is an attested occurrence of an entity in a document.
type EntityMention struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	DocumentID  uuid.UUID
	ChunkID     *uuid.UUID
	EntityKey   string
	EntityType  EntityType
	EntityName  string
	Confidence  float64
}

// JobType enumerates the pipeline stages.
type JobType string

const (
	JobProcessDocument JobType = "PROCESS_DOCUMENT"
	JobChunkDocument   JobType = "CHUNK_DOCUMENT"
	JobEmbedChunks     JobType = "EMBED_CHUNKS"
	JobExtractEntities JobType = "EXTRACT_ENTITIES_RELATIONS"
	JobUpsertGraph     JobType = "UPSERT_GRAPH"
)

// JobStatus represents the queue state of a job. done and failed are
// terminal.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is a unit of asynchronous pipeline work, persisted in Postgres.
type Job struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Type        JobType
	Payload     []byte // opaque JSON
	Status      JobStatus
	Attempts    int
	LastError   string
	RunAfter    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobStat is one (type, status) bucket from the jobs table.
type JobStat struct {
	Type   JobType
	Status JobStatus
	Count  int
}

// ExtractedEntity is one entity as returned by the extraction model, after
// key resolution and evidence linking.
type ExtractedEntity struct {
	Type             string      `json:"type"`
	Name             string      `json:"name"`
	Email            string      `json:"email,omitempty"`
	Domain           string      `json:"domain,omitempty"`
	Evidence         string      `json:"evidence,omitempty"`
	Confidence       float64     `json:"confidence,omitempty"`
	Key              string      `json:"entity_key,omitempty"`
	EvidenceChunkIDs []uuid.UUID `json:"evidence_chunk_ids,omitempty"`
}

// RelationQualifiers carries optional context on an extracted relation.
type RelationQualifiers struct {
	Time       string  `json:"time,omitempty"`
	Location   string  `json:"location,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ExtractedRelation is one directed relation between two extracted entities.
// FromKey/ToKey are resolved from the entity set of the same extraction
// call; relations whose endpoints do not resolve are dropped.
type ExtractedRelation struct {
	FromName         string              `json:"from_name"`
	ToName           string              `json:"to_name"`
	Type             string              `json:"type"`
	Evidence         string              `json:"evidence,omitempty"`
	Qualifiers       *RelationQualifiers `json:"qualifiers,omitempty"`
	FromKey          string              `json:"from_key,omitempty"`
	ToKey            string              `json:"to_key,omitempty"`
	EvidenceChunkIDs []uuid.UUID         `json:"evidence_chunk_ids,omitempty"`
}

// ExtractionResult is the strict shape expected from the extraction model.
type ExtractionResult struct {
	Entities  []ExtractedEntity   `json:"entities"`
	Relations []ExtractedRelation `json:"relations"`
}

// RetrievedChunk is one scored chunk from the retrieval engine, enriched
// with document metadata.
type RetrievedChunk struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	Idx           int     `json:"idx"`
	Text          string  `json:"text"`
	StartOffset   int     `json:"start_offset"`
	EndOffset     int     `json:"end_offset"`
	Score         float64 `json:"score"`
	DocTitle      string  `json:"doc_title,omitempty"`
	DocURL        string  `json:"doc_url,omitempty"`
	DocSourceType string  `json:"doc_source_type,omitempty"`
}

// Fact is a directed typed relation collected during graph traversal.
type Fact struct {
	FromKey    string `json:"from_key"`
	FromName   string `json:"from_name"`
	Relation   string `json:"relation"`
	ToKey      string `json:"to_key"`
	ToName     string `json:"to_name"`
	DocumentID string `json:"document_id,omitempty"`
	Evidence   string `json:"evidence,omitempty"`
}

// SeedEntity is an entity reachable from the top retrieved chunks via
// MENTIONS edges; traversal starts from these.
type SeedEntity struct {
	Key  string `json:"key"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Citation links an answer back to a retrieved chunk.
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	Quote      string `json:"quote"`
}
