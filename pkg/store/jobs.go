package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/contaixt/contaixt/pkg/types"
)

// maxErrorLen bounds last_error so a giant stack trace cannot bloat the row.
const maxErrorLen = 4000

// Enqueue inserts a queued job with an opaque JSON payload.
func (s *Store) Enqueue(ctx context.Context, workspaceID uuid.UUID, jobType types.JobType, payload []byte) (*types.Job, error) {
	j := &types.Job{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Type:        jobType,
		Payload:     payload,
		Status:      types.JobQueued,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, workspace_id, type, payload_json, status)
		 VALUES ($1, $2, $3, $4, 'queued')
		 RETURNING created_at, updated_at`,
		j.ID, j.WorkspaceID, j.Type, j.Payload,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
	}
	return j, nil
}

// Claim atomically picks the oldest ready job, moves it to running, and
// increments its attempt counter. FOR UPDATE SKIP LOCKED keeps concurrent
// workers from claiming the same row. Returns (nil, nil) when nothing is
// ready.
func (s *Store) Claim(ctx context.Context, maxAttempts int) (*types.Job, error) {
	var j types.Job
	err := s.pool.QueryRow(ctx,
		`UPDATE jobs
		 SET status = 'running', attempts = attempts + 1, updated_at = now()
		 WHERE id = (
		     SELECT id FROM jobs
		     WHERE status = 'queued'
		       AND (run_after IS NULL OR run_after <= now())
		       AND attempts < $1
		     ORDER BY created_at
		     FOR UPDATE SKIP LOCKED
		     LIMIT 1
		 )
		 RETURNING id, workspace_id, type, payload_json, status, attempts,
		           COALESCE(last_error, ''), run_after, created_at, updated_at`,
		maxAttempts,
	).Scan(&j.ID, &j.WorkspaceID, &j.Type, &j.Payload, &j.Status, &j.Attempts,
		&j.LastError, &j.RunAfter, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return &j, nil
}

// Complete marks a job done.
func (s *Store) Complete(ctx context.Context, jobID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'done', updated_at = now() WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Fail records a handler error. Below the attempt cap the job goes back to
// queued with a linear backoff (attempts x base); at the cap it becomes
// terminally failed.
func (s *Store) Fail(ctx context.Context, jobID uuid.UUID, errMsg string, attempts, maxAttempts int, backoffBase time.Duration) error {
	status := types.JobQueued
	var runAfter *time.Time
	if attempts < maxAttempts {
		t := time.Now().UTC().Add(Backoff(attempts, backoffBase))
		runAfter = &t
	} else {
		status = types.JobFailed
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = $2, last_error = $3, run_after = $4, updated_at = now()
		 WHERE id = $1`,
		jobID, status, TruncateError(errMsg), runAfter)
	if err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Backoff returns the linear retry delay after the given attempt count.
func Backoff(attempts int, base time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts) * base
}

// TruncateError bounds an error message to the stored column size.
func TruncateError(msg string) string {
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}

// HasPendingJob reports whether a queued or running job of the given type
// already targets the document. Used as the enqueue idempotency guard so a
// replayed stage does not fan out duplicate successors.
func (s *Store) HasPendingJob(ctx context.Context, workspaceID uuid.UUID, jobType types.JobType, documentID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM jobs
		     WHERE workspace_id = $1
		       AND type = $2
		       AND status IN ('queued', 'running')
		       AND payload_json->>'document_id' = $3
		 )`,
		workspaceID, jobType, documentID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending jobs: %w", err)
	}
	return exists, nil
}

// JobStats returns the (type, status) histogram of the jobs table.
func (s *Store) JobStats(ctx context.Context) ([]types.JobStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT type, status, COUNT(*) FROM jobs GROUP BY type, status ORDER BY type, status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	defer rows.Close()

	var out []types.JobStat
	for rows.Next() {
		var st types.JobStat
		if err := rows.Scan(&st.Type, &st.Status, &st.Count); err != nil {
			return nil, fmt.Errorf("failed to scan job stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// WorkspaceJobStats returns the (type, status) histogram for one workspace.
func (s *Store) WorkspaceJobStats(ctx context.Context, workspaceID uuid.UUID) ([]types.JobStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT type, status, COUNT(*) FROM jobs
		 WHERE workspace_id = $1
		 GROUP BY type, status ORDER BY type, status`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	defer rows.Close()

	var out []types.JobStat
	for rows.Next() {
		var st types.JobStat
		if err := rows.Scan(&st.Type, &st.Status, &st.Count); err != nil {
			return nil, fmt.Errorf("failed to scan job stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// RecentFailed returns terminally failed jobs, newest first.
func (s *Store) RecentFailed(ctx context.Context, limit int) ([]types.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, type, payload_json, status, attempts,
		        COALESCE(last_error, ''), run_after, created_at, updated_at
		 FROM jobs WHERE status = 'failed'
		 ORDER BY updated_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed jobs: %w", err)
	}
	defer rows.Close()

	var out []types.Job
	for rows.Next() {
		var j types.Job
		if err := rows.Scan(&j.ID, &j.WorkspaceID, &j.Type, &j.Payload, &j.Status, &j.Attempts,
			&j.LastError, &j.RunAfter, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ReleaseStuck requeues running jobs that have not been touched within the
// timeout. Covers workers that died mid-claim; at-least-once delivery means
// the handler may run again, which every handler tolerates.
func (s *Store) ReleaseStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = 'queued', updated_at = now()
		 WHERE status = 'running' AND updated_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to release stuck jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
