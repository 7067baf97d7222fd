/*
Package metrics provides Prometheus metrics collection and exposition for
Contaixt.

The metrics package defines counters, gauges, and histograms covering the job
queue, the ingestion pipeline, retrieval, and the HTTP API, plus a lightweight
health checker used by the /healthz and /readyz endpoints.

# Metrics

Job queue:

	contaixt_jobs_total{type,status}           current jobs per (type, status) bucket
	contaixt_jobs_processed_total{type,outcome} handler completions (done, failed, retried)
	contaixt_job_duration_seconds{type}        handler wall time

Ingestion:

	contaixt_documents_ingested_total{outcome} created / updated / unchanged
	contaixt_chunks_upserted_total             chunk nodes merged into the graph
	contaixt_entities_upserted_total           entity nodes merged into the graph
	contaixt_embedding_batches_total           embedding API batches issued

Retrieval and API:

	contaixt_queries_total
	contaixt_retrieval_stage_duration_seconds{stage}
	contaixt_api_requests_total{method,status}
	contaixt_api_request_duration_seconds{method}
	contaixt_webhook_events_total{type,outcome}

# Collector

The Collector refreshes contaixt_jobs_total from the job store every 15
seconds:

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

# Timer

Timer measures handler and stage durations:

	timer := metrics.NewTimer()
	// ... do work ...
	timer.ObserveDurationVec(metrics.JobDuration, string(job.Type))

# Health

Components register themselves at startup and update on state changes:

	metrics.RegisterComponent("postgres", true, "")
	metrics.UpdateComponent("neo4j", false, "connectivity check failed")

GetReadiness treats postgres and neo4j as critical; /readyz returns 503 until
both report healthy.
*/
package metrics
