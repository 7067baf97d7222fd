package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/contaixt/contaixt/pkg/log"
	"github.com/contaixt/contaixt/pkg/metrics"
	"github.com/contaixt/contaixt/pkg/types"
)

// Handler processes one claimed job. A nil return marks the job done; an
// error schedules a retry with linear backoff until the attempt limit.
type Handler func(ctx context.Context, job *types.Job) error

// Queue is the subset of the Postgres store the worker needs.
type Queue interface {
	Claim(ctx context.Context, maxAttempts int) (*types.Job, error)
	Complete(ctx context.Context, jobID uuid.UUID) error
	Fail(ctx context.Context, jobID uuid.UUID, errMsg string, attempts, maxAttempts int, backoffBase time.Duration) error
	ReleaseStuck(ctx context.Context, olderThan time.Duration) (int, error)
}

// Config holds worker loop settings.
type Config struct {
	MaxAttempts  int
	PollInterval time.Duration
	BackoffBase  time.Duration
	JobTimeout   time.Duration
	StuckTimeout time.Duration
	Concurrency  int
}

// Worker claims jobs from the queue and dispatches them to registered
// handlers. Claiming uses FOR UPDATE SKIP LOCKED, so any number of worker
// processes can share one queue.
type Worker struct {
	queue    Queue
	handlers map[types.JobType]Handler
	cfg      Config
	logger   zerolog.Logger
}

// New creates a worker. Register handlers before calling Run.
func New(queue Queue, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Worker{
		queue:    queue,
		handlers: make(map[types.JobType]Handler),
		cfg:      cfg,
		logger:   log.WithComponent("worker"),
	}
}

// Register binds a handler to a job type. Registering the same type twice
// is a programming error.
func (w *Worker) Register(jobType types.JobType, h Handler) error {
	if _, ok := w.handlers[jobType]; ok {
		return fmt.Errorf("handler already registered for %s", jobType)
	}
	w.handlers[jobType] = h
	return nil
}

// Run starts the poll loops and the stuck-job release ticker, blocking
// until ctx is cancelled. In-flight jobs finish their attempt before Run
// returns.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().
		Int("concurrency", w.cfg.Concurrency).
		Dur("poll_interval", w.cfg.PollInterval).
		Msg("worker started")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			w.pollLoop(ctx)
			return nil
		})
	}
	g.Go(func() error {
		w.releaseLoop(ctx)
		return nil
	})
	return g.Wait()
}

func (w *Worker) pollLoop(ctx context.Context) {
	for {
		job, err := w.queue.Claim(ctx, w.cfg.MaxAttempts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Msg("failed to claim job")
		} else if job != nil {
			w.dispatch(ctx, job)
			// Drain the queue before sleeping again.
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Worker) releaseLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.StuckTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.ReleaseStuck(ctx, w.cfg.StuckTimeout)
			if err != nil {
				if ctx.Err() == nil {
					w.logger.Error().Err(err).Msg("failed to release stuck jobs")
				}
				continue
			}
			if n > 0 {
				w.logger.Warn().Int("jobs", n).Msg("released stuck jobs back to queued")
			}
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, job *types.Job) {
	logger := w.logger.With().
		Stringer("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Int("attempt", job.Attempts).
		Logger()
	logger.Info().Msg("claimed job")

	// Outcome must be recorded even when shutdown cancelled ctx mid-job,
	// or a finished job would sit in running until the stuck release.
	recordCtx := context.WithoutCancel(ctx)

	handler, ok := w.handlers[job.Type]
	if !ok {
		// No retry can fix a type nothing handles; fail it terminally.
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "failed").Inc()
		logger.Error().Msg("no handler registered for job type")
		msg := fmt.Sprintf("no handler registered for job type %s", job.Type)
		if ferr := w.queue.Fail(recordCtx, job.ID, msg, w.cfg.MaxAttempts, w.cfg.MaxAttempts, w.cfg.BackoffBase); ferr != nil {
			logger.Error().Err(ferr).Msg("failed to record job failure")
		}
		return
	}

	timer := metrics.NewTimer()
	err := w.runHandler(ctx, handler, job)
	elapsed := timer.Duration()
	metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(elapsed.Seconds())

	if err != nil {
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "failed").Inc()
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("job failed")
		if ferr := w.queue.Fail(recordCtx, job.ID, err.Error(), job.Attempts, w.cfg.MaxAttempts, w.cfg.BackoffBase); ferr != nil {
			logger.Error().Err(ferr).Msg("failed to record job failure")
		}
		return
	}

	metrics.JobsProcessed.WithLabelValues(string(job.Type), "done").Inc()
	logger.Info().Dur("elapsed", elapsed).Msg("job done")
	if cerr := w.queue.Complete(recordCtx, job.ID); cerr != nil {
		logger.Error().Err(cerr).Msg("failed to mark job done")
	}
}

// runHandler executes the handler under the job timeout, converting panics
// into ordinary failures so one bad payload cannot take the loop down.
// The job context is detached from shutdown cancellation: the poll loops
// stop claiming when ctx ends, but a claimed job finishes its attempt
// instead of aborting mid-flight and burning a retry.
func (w *Worker) runHandler(ctx context.Context, handler Handler, job *types.Job) (err error) {
	jobCtx := context.WithoutCancel(ctx)
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, w.cfg.JobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(jobCtx, job)
}
