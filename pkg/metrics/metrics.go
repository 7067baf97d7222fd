package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job queue metrics
	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "contaixt_jobs_total",
			Help: "Total number of jobs by type and status",
		},
		[]string{"type", "status"},
	)

	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contaixt_jobs_processed_total",
			Help: "Total number of jobs processed by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contaixt_job_duration_seconds",
			Help:    "Job handler duration in seconds by type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// Ingestion metrics
	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contaixt_documents_ingested_total",
			Help: "Total number of documents ingested by outcome (created, updated, unchanged)",
		},
		[]string{"outcome"},
	)

	ChunksUpserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contaixt_chunks_upserted_total",
			Help: "Total number of chunks written to the graph store",
		},
	)

	EntitiesUpserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contaixt_entities_upserted_total",
			Help: "Total number of entities merged into the graph store",
		},
	)

	EmbeddingBatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contaixt_embedding_batches_total",
			Help: "Total number of embedding API batches issued",
		},
	)

	// Retrieval metrics
	QueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contaixt_queries_total",
			Help: "Total number of retrieval queries served",
		},
	)

	RetrievalStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contaixt_retrieval_stage_duration_seconds",
			Help:    "Retrieval stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contaixt_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contaixt_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Webhook metrics
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contaixt_webhook_events_total",
			Help: "Total number of webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobsProcessed)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(ChunksUpserted)
	prometheus.MustRegister(EntitiesUpserted)
	prometheus.MustRegister(EmbeddingBatches)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(RetrievalStageDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(WebhookEventsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
