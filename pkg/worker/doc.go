// Package worker runs the job queue poll loop.
//
// Jobs are claimed from Postgres with FOR UPDATE SKIP LOCKED, so multiple
// worker processes can share the queue without double-claiming. Each claim
// increments the attempt counter up front; a handler error re-queues the
// job with linear backoff until the attempt limit, after which it lands in
// the failed state for inspection.
//
// A background ticker releases jobs stuck in the running state, which
// happens when a worker dies mid-job.
package worker
