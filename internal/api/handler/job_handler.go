package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/photoflow-app/photoflow/internal/api/dto"
	"github.com/photoflow-app/photoflow/internal/jobs"
)

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	deps *Dependencies
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{deps: deps}
}

// CreateJob handles POST /api/v1/jobs
// Enqueues a background job of any registered type
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.deps.Logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	// Decoding through the typed payload registry doubles as validation of
	// both the type name and the payload shape.
	payload, err := jobs.DecodePayload(jobs.Type(req.JobType), req.Payload)
	if err != nil {
		h.deps.Logger.Error("Invalid job payload",
			slog.String("job_type", req.JobType),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown job type or malformed payload",
		})
		return
	}

	job, err := h.deps.Jobs.Enqueue(c.Request.Context(), payload)
	if err != nil {
		h.deps.Logger.Error("Failed to enqueue job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	h.deps.notifyEnqueued(c.Request.Context(), job)

	c.JSON(http.StatusCreated, jobToDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.deps.Jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.deps.Logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, jobToDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := jobs.ListFilter{
		Status:   req.Status,
		Type:     req.JobType,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	list, err := h.deps.Jobs.List(c.Request.Context(), filter)
	if err != nil {
		h.deps.Logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(list) > req.PageSize
	if hasMore {
		list = list[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(list))
	for i := range list {
		jobResponse[i] = jobToDTO(&list[i])
	}

	var nextCursor string
	if hasMore {
		last := list[len(list)-1]
		nextCursor = EncodeJobCursor(&jobs.ListCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Cancels a job that has not reached a terminal state
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	err := h.deps.Jobs.Cancel(c.Request.Context(), jobID)
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
	case errors.Is(err, jobs.ErrNotCancellable):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Job is already in a terminal state",
		})
	case err != nil:
		h.deps.Logger.Error("Failed to cancel job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel job",
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"job_id": jobID,
			"status": string(jobs.StatusCancelled),
		})
	}
}

// RunBatch handles POST /api/v1/jobs/run
// Processes one batch of pending jobs synchronously and reports the
// aggregate outcome. This is the serverless-style entry point: any number
// of concurrent callers safely share the backlog through the lease
// protocol.
func (h *JobHandler) RunBatch(c *gin.Context) {
	summary := h.deps.Runner.RunBatch(c.Request.Context())
	c.JSON(http.StatusOK, summary)
}

func jobToDTO(job *jobs.Job) dto.JobDTO {
	d := dto.JobDTO{
		JobID:     job.ID,
		JobType:   string(job.Type),
		Payload:   json.RawMessage(job.Payload),
		Status:    string(job.Status),
		Attempts:  job.Attempts,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	if job.LastError.Valid {
		d.LastError = job.LastError.String
	}
	return d
}
