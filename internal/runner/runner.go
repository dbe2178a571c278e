// Package runner drives job execution. The same per-job logic backs two
// deployment shapes: a long-lived poll loop (worker service) and a
// batch-once invocation (API endpoint), so any number of processes can
// work the same backlog concurrently.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/photoflow-app/photoflow/internal/jobs"
)

// Config holds runner configuration
type Config struct {
	Logger       *slog.Logger
	Store        jobs.Store
	Registry     *jobs.Registry
	WorkerID     string
	BatchSize    int
	PollInterval time.Duration
	LeaseTimeout time.Duration
}

// Summary aggregates one batch-once invocation
type Summary struct {
	Total     int      `json:"total"`
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Runner leases jobs and dispatches them to registered handlers
type Runner struct {
	logger       *slog.Logger
	store        jobs.Store
	registry     *jobs.Registry
	workerID     string
	batchSize    int
	pollInterval time.Duration
	leaseTimeout time.Duration
	wake         chan struct{}
}

// New creates a runner. A worker id is generated when none is configured.
func New(cfg *Config) *Runner {
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	leaseTimeout := cfg.LeaseTimeout
	if leaseTimeout <= 0 {
		leaseTimeout = jobs.DefaultLeaseTimeout
	}

	return &Runner{
		logger:       cfg.Logger,
		store:        cfg.Store,
		registry:     cfg.Registry,
		workerID:     workerID,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		leaseTimeout: leaseTimeout,
		wake:         make(chan struct{}, 1),
	}
}

// WorkerID returns the lease owner id used by this runner
func (r *Runner) WorkerID() string {
	return r.workerID
}

// Wake requests an immediate poll tick. Safe to call from any goroutine;
// extra wake-ups coalesce.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run polls the store until the context is cancelled. Errors inside a tick
// are logged, never fatal: the loop always schedules the next tick.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Job runner started",
		slog.String("worker_id", r.workerID),
		slog.Int("batch_size", r.batchSize),
		slog.Duration("poll_interval", r.pollInterval),
		slog.Duration("lease_timeout", r.leaseTimeout),
	)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		summary := r.RunBatch(ctx)
		if summary.Processed > 0 {
			r.logger.Info("Batch processed",
				slog.String("worker_id", r.workerID),
				slog.Int("total", summary.Total),
				slog.Int("processed", summary.Processed),
				slog.Int("succeeded", summary.Succeeded),
				slog.Int("failed", summary.Failed),
			)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Job runner stopping - context canceled",
				slog.String("worker_id", r.workerID),
			)
			return ctx.Err()
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

// RunBatch fetches one FIFO batch and processes every job in it
// concurrently. The per-job lease is the only serialization point.
func (r *Runner) RunBatch(ctx context.Context) Summary {
	now := time.Now()

	batch, err := r.store.FetchPending(ctx, r.batchSize, now, r.leaseTimeout)
	if err != nil {
		r.logger.Error("Failed to fetch pending jobs",
			slog.String("worker_id", r.workerID),
			slog.String("error", err.Error()),
		)
		return Summary{Errors: []string{err.Error()}}
	}

	summary := Summary{Total: len(batch)}
	if len(batch) == 0 {
		return summary
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, job := range batch {
		wg.Add(1)
		go func(job jobs.Job) {
			defer wg.Done()

			processed, err := r.processJob(ctx, job, now)

			mu.Lock()
			defer mu.Unlock()
			if processed {
				summary.Processed++
				if err != nil {
					summary.Failed++
					summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", job.ID, err.Error()))
				} else {
					summary.Succeeded++
				}
			}
		}(job)
	}
	wg.Wait()

	return summary
}

// processJob runs the shared per-job sequence: lease, dispatch, record.
// processed is false when the lease was lost to another worker.
func (r *Runner) processJob(ctx context.Context, job jobs.Job, now time.Time) (processed bool, err error) {
	acquired, err := r.store.TryAcquire(ctx, job.ID, r.workerID, now, r.leaseTimeout)
	if err != nil {
		if errors.Is(err, jobs.ErrAlreadyClaimed) || errors.Is(err, jobs.ErrJobNotFound) {
			// Another worker holds it; skip silently.
			return false, nil
		}
		r.logger.Error("Failed to acquire job lease",
			slog.String("job_id", job.ID),
			slog.String("worker_id", r.workerID),
			slog.String("error", err.Error()),
		)
		return false, err
	}

	r.logger.Info("Processing job",
		slog.String("job_id", acquired.ID),
		slog.String("job_type", string(acquired.Type)),
		slog.String("worker_id", r.workerID),
		slog.Int("attempt", acquired.Attempts),
	)

	handler, ok := r.registry.Lookup(acquired.Type)
	if !ok {
		err = fmt.Errorf("%w: %q", jobs.ErrNoHandler, acquired.Type)
		return true, r.recordFailure(ctx, acquired, err)
	}

	payload, err := jobs.DecodePayload(acquired.Type, []byte(acquired.Payload))
	if err != nil {
		return true, r.recordFailure(ctx, acquired, err)
	}

	if err := handler.Handle(ctx, payload, acquired.ID); err != nil {
		return true, r.recordFailure(ctx, acquired, err)
	}

	if err := r.store.Complete(ctx, acquired.ID); err != nil {
		r.logger.Error("Failed to mark job completed",
			slog.String("job_id", acquired.ID),
			slog.String("error", err.Error()),
		)
		return true, err
	}

	r.logger.Info("Job completed",
		slog.String("job_id", acquired.ID),
		slog.String("job_type", string(acquired.Type)),
	)

	return true, nil
}

// recordFailure persists the attempt outcome and returns the handler error
// so batch summaries can report it.
func (r *Runner) recordFailure(ctx context.Context, job *jobs.Job, handlerErr error) error {
	if err := r.store.Fail(ctx, job.ID, handlerErr.Error(), job.Attempts, job.MaxAttempts); err != nil {
		r.logger.Error("Failed to record job failure",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
	return handlerErr
}
