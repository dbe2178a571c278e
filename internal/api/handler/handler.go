// Package handler implements the HTTP request handlers of the API service
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/photoflow-app/photoflow/internal/gallery"
	"github.com/photoflow-app/photoflow/internal/jobs"
	"github.com/photoflow-app/photoflow/internal/runner"
	"github.com/photoflow-app/photoflow/internal/storage"
	"github.com/photoflow-app/photoflow/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers. Queue is optional;
// when nil, enqueues are not broadcast and workers rely on polling alone.
type Dependencies struct {
	Logger        *slog.Logger
	Jobs          jobs.Store
	Gallery       gallery.Repo
	Storage       storage.Provider
	Runner        *runner.Runner
	Queue         *rabbitmq.Client
	TempDir       string
	MaxUploadSize int64
	URLExpiry     time.Duration
}

// notifyEnqueued publishes the wake-up message for a freshly enqueued job.
// Best-effort: the database row is authoritative and polling picks it up
// regardless.
func (d *Dependencies) notifyEnqueued(ctx context.Context, job *jobs.Job) {
	if d.Queue == nil {
		return
	}
	n := rabbitmq.Notification{JobID: job.ID, Type: string(job.Type)}
	if err := d.Queue.NotifyEnqueued(ctx, n); err != nil {
		d.Logger.Warn("Failed to publish job notification",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}
