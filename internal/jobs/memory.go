package jobs

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with an in-process map. It exists for tests
// and brokerless local runs and mirrors the SQL store's compare-and-set
// semantics under a single mutex.
type MemoryStore struct {
	mu          sync.Mutex
	jobs        map[string]*Job
	order       []string // insertion order, FIFO fetch
	maxAttempts int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory job store
func NewMemoryStore(maxAttempts int) *MemoryStore {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &MemoryStore{
		jobs:        make(map[string]*Job),
		maxAttempts: maxAttempts,
	}
}

func (s *MemoryStore) Enqueue(ctx context.Context, p Payload) (*Job, error) {
	payload, err := EncodePayload(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:          uuid.New().String(),
		Type:        p.JobType(),
		Payload:     payload,
		Status:      StatusPending,
		MaxAttempts: s.maxAttempts,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)

	copied := *job
	return &copied, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	copied := *job
	return &copied, nil
}

func claimable(job *Job, now time.Time, leaseTimeout time.Duration) bool {
	if job.Status != StatusPending && job.Status != StatusRunning {
		return false
	}
	return job.LeaseExpired(now, leaseTimeout)
}

func (s *MemoryStore) FetchPending(ctx context.Context, limit int, now time.Time, leaseTimeout time.Duration) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch []Job
	for _, id := range s.order {
		if len(batch) >= limit {
			break
		}
		job := s.jobs[id]
		if claimable(job, now, leaseTimeout) {
			batch = append(batch, *job)
		}
	}

	return batch, nil
}

func (s *MemoryStore) TryAcquire(ctx context.Context, id, workerID string, now time.Time, leaseTimeout time.Duration) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	if !claimable(job, now, leaseTimeout) {
		return nil, ErrAlreadyClaimed
	}

	job.Status = StatusRunning
	job.LockedAt = sql.NullTime{Time: now, Valid: true}
	job.LockedBy = sql.NullString{String: workerID, Valid: true}
	job.Attempts++
	job.UpdatedAt = now

	copied := *job
	return &copied, nil
}

func (s *MemoryStore) Complete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}

	job.Status = StatusCompleted
	job.LockedAt = sql.NullTime{}
	job.LockedBy = sql.NullString{}
	job.UpdatedAt = time.Now()

	return nil
}

func (s *MemoryStore) Fail(ctx context.Context, id, errMsg string, attempts, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}

	if attempts >= maxAttempts {
		job.Status = StatusFailed
	} else {
		job.Status = StatusPending
	}
	job.LastError = sql.NullString{String: errMsg, Valid: true}
	job.LockedAt = sql.NullTime{}
	job.LockedBy = sql.NullString{}
	job.UpdatedAt = time.Now()

	return nil
}

func (s *MemoryStore) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}

	if job.Status != StatusPending && job.Status != StatusRunning {
		return ErrNotCancellable
	}

	job.Status = StatusCancelled
	job.LockedAt = sql.NullTime{}
	job.LockedBy = sql.NullString{}
	job.UpdatedAt = time.Now()

	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Job
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Type != "" && string(job.Type) != filter.Type {
			continue
		}
		if filter.Cursor != nil {
			if !job.CreatedAt.Before(filter.Cursor.CreatedAt) &&
				!(job.CreatedAt.Equal(filter.Cursor.CreatedAt) && job.ID < filter.Cursor.ID) {
				continue
			}
		}
		result = append(result, *job)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.PageSize > 0 && len(result) > filter.PageSize+1 {
		result = result[:filter.PageSize+1]
	}

	return result, nil
}

// SetPayload overwrites a job's raw payload. Test hook for simulating
// corrupted rows.
func (s *MemoryStore) SetPayload(id, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.Payload = raw
	return nil
}
