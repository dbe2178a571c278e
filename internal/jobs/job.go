package jobs

import (
	"database/sql"
	"time"
)

// Type discriminates job payloads and selects the handler to run.
type Type string

const (
	TypeOffloadOriginal     Type = "OFFLOAD_ORIGINAL"
	TypeThumbnailGeneration Type = "THUMBNAIL_GENERATION"
	TypePreviewGeneration   Type = "PREVIEW_GENERATION"
	TypeExifEnrichment      Type = "EXIF_ENRICHMENT"
	TypeFaceDetection       Type = "FACE_DETECTION"
	TypeObjectDetection     Type = "OBJECT_DETECTION"
	TypeFaceGrouping        Type = "FACE_GROUPING"
)

// Job status constants
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// DefaultLeaseTimeout is how long a worker may hold a job before another
// worker is allowed to reclaim it.
const DefaultLeaseTimeout = 30 * time.Second

// Job represents a persisted queue entry. The lease fields (locked_at,
// locked_by) are the only mutual-exclusion primitive in the pipeline.
type Job struct {
	ID          string         `db:"id"`
	Type        Type           `db:"type"`
	Payload     string         `db:"payload"`
	Status      string         `db:"status"`
	Attempts    int            `db:"attempts"`
	MaxAttempts int            `db:"max_attempts"`
	LastError   sql.NullString `db:"last_error"`
	LockedAt    sql.NullTime   `db:"locked_at"`
	LockedBy    sql.NullString `db:"locked_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// LeaseExpired reports whether the job's lease is absent or older than the
// timeout at the given instant.
func (j *Job) LeaseExpired(now time.Time, leaseTimeout time.Duration) bool {
	if !j.LockedAt.Valid {
		return true
	}
	return j.LockedAt.Time.Before(now.Add(-leaseTimeout))
}
