package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store is the persistence contract for job rows. TryAcquire is the sole
// mutual-exclusion primitive: it must be a single atomic compare-and-set,
// never a read followed by a write.
type Store interface {
	// Enqueue inserts a new PENDING job for the payload's type.
	Enqueue(ctx context.Context, p Payload) (*Job, error)

	// Get returns a job by id, or ErrJobNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// FetchPending returns up to limit claimable jobs ordered FIFO by
	// creation time. Claimable means PENDING, or RUNNING with a lease
	// older than leaseTimeout (the holder is presumed dead).
	FetchPending(ctx context.Context, limit int, now time.Time, leaseTimeout time.Duration) ([]Job, error)

	// TryAcquire atomically claims a job: sets RUNNING, stamps the lease
	// and increments attempts, only if the job is still claimable. Returns
	// the post-acquisition row, or ErrAlreadyClaimed when the CAS loses.
	TryAcquire(ctx context.Context, id, workerID string, now time.Time, leaseTimeout time.Duration) (*Job, error)

	// Complete marks a job COMPLETED and clears the lease.
	Complete(ctx context.Context, id string) error

	// Fail records the error and clears the lease. The job goes back to
	// PENDING while attempts < maxAttempts, else to terminal FAILED.
	Fail(ctx context.Context, id, errMsg string, attempts, maxAttempts int) error

	// Cancel marks a PENDING or RUNNING job CANCELLED. In-flight handler
	// code is not interrupted; the status only blocks future leases.
	Cancel(ctx context.Context, id string) error

	// List returns jobs for the API surface, newest first, cursor-paged.
	List(ctx context.Context, filter ListFilter) ([]Job, error)
}

// ListFilter narrows and pages a job listing
type ListFilter struct {
	Status   string
	Type     string
	PageSize int
	Cursor   *ListCursor
}

// ListCursor is a (created_at, id) position for keyset pagination
type ListCursor struct {
	CreatedAt time.Time
	ID        string
}

// SQLStore is the PostgreSQL-backed job store
type SQLStore struct {
	db          *sqlx.DB
	logger      *slog.Logger
	maxAttempts int
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a job store on the given database. maxAttempts is
// applied to newly enqueued jobs.
func NewSQLStore(db *sqlx.DB, logger *slog.Logger, maxAttempts int) *SQLStore {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &SQLStore{
		db:          db,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

const jobColumns = `id, type, payload, status, attempts, max_attempts, last_error, locked_at, locked_by, created_at, updated_at`

func (s *SQLStore) Enqueue(ctx context.Context, p Payload) (*Job, error) {
	payload, err := EncodePayload(p)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:          uuid.New().String(),
		Type:        p.JobType(),
		Payload:     payload,
		Status:      StatusPending,
		MaxAttempts: s.maxAttempts,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	query := `
		INSERT INTO jobs (id, type, payload, status, attempts, max_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7)
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.Type,
		job.Payload,
		job.Status,
		job.MaxAttempts,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Info("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.Type)),
	)

	return job, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Job, error) {
	var job Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	if err := s.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *SQLStore) FetchPending(ctx context.Context, limit int, now time.Time, leaseTimeout time.Duration) ([]Job, error) {
	cutoff := now.Add(-leaseTimeout)

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1
		   OR (status = $2 AND locked_at IS NOT NULL AND locked_at < $3)
		ORDER BY created_at ASC
		LIMIT $4
	`

	var batch []Job
	if err := s.db.SelectContext(ctx, &batch, query, StatusPending, StatusRunning, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	return batch, nil
}

func (s *SQLStore) TryAcquire(ctx context.Context, id, workerID string, now time.Time, leaseTimeout time.Duration) (*Job, error) {
	cutoff := now.Add(-leaseTimeout)

	// Single compare-and-set: claimable is PENDING, or RUNNING whose lease
	// expired (holder crashed). A fresh lease on a RUNNING job blocks the
	// update, which is what guarantees lease exclusivity.
	query := `
		UPDATE jobs
		SET status = $1,
		    locked_at = $2,
		    locked_by = $3,
		    attempts = attempts + 1,
		    updated_at = $2
		WHERE id = $4
		  AND (status = $5 OR status = $1)
		  AND (locked_at IS NULL OR locked_at < $6)
		RETURNING ` + jobColumns

	var job Job
	err := s.db.QueryRowxContext(ctx, query,
		StatusRunning,
		now,
		workerID,
		id,
		StatusPending,
		cutoff,
	).StructScan(&job)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to acquire job lease: %w", err)
	}

	s.logger.Debug("Job lease acquired",
		slog.String("job_id", id),
		slog.String("worker_id", workerID),
		slog.Int("attempts", job.Attempts),
	)

	return &job, nil
}

func (s *SQLStore) Complete(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, StatusCompleted, id); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	return nil
}

func (s *SQLStore) Fail(ctx context.Context, id, errMsg string, attempts, maxAttempts int) error {
	status := StatusPending
	if attempts >= maxAttempts {
		status = StatusFailed
	}

	query := `
		UPDATE jobs
		SET status = $1,
		    last_error = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, status, errMsg, id); err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}

	s.logger.Warn("Job attempt failed",
		slog.String("job_id", id),
		slog.String("status", status),
		slog.Int("attempts", attempts),
		slog.Int("max_attempts", maxAttempts),
		slog.String("error", errMsg),
	)

	return nil
}

func (s *SQLStore) Cancel(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE id = $2
		  AND status IN ($3, $4)
	`

	result, err := s.db.ExecContext(ctx, query, StatusCancelled, id, StatusPending, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return ErrNotCancellable
	}

	return nil
}

func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	// Keyset order must match the cursor tuple for stable pagination
	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var result []Job
	if err := s.db.SelectContext(ctx, &result, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return result, nil
}
