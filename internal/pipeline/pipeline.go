// Package pipeline contains the derived-asset job handlers: offloading
// originals, thumbnail and preview rendering, EXIF enrichment, face and
// object detection, and face grouping.
package pipeline

import (
	"log/slog"

	"github.com/photoflow-app/photoflow/internal/gallery"
	"github.com/photoflow-app/photoflow/internal/jobs"
	"github.com/photoflow-app/photoflow/internal/storage"
)

// Deps bundles everything the handlers share
type Deps struct {
	Logger  *slog.Logger
	Jobs    jobs.Store
	Gallery gallery.Repo
	Storage storage.Provider
	TempDir string
}

// Register wires every pipeline handler into the registry
func Register(reg *jobs.Registry, deps Deps) {
	resolver := storage.NewResolver(deps.Storage, deps.TempDir)

	reg.Register(jobs.TypeOffloadOriginal, &OffloadHandler{deps: deps, resolver: resolver})
	reg.Register(jobs.TypeThumbnailGeneration, &ThumbnailHandler{deps: deps, resolver: resolver})
	reg.Register(jobs.TypePreviewGeneration, &PreviewHandler{deps: deps, resolver: resolver})
	reg.Register(jobs.TypeExifEnrichment, &ExifHandler{deps: deps, resolver: resolver})
	reg.Register(jobs.TypeFaceDetection, &FaceDetectionHandler{deps: deps, resolver: resolver})
	reg.Register(jobs.TypeObjectDetection, &ObjectDetectionHandler{deps: deps, resolver: resolver})
	reg.Register(jobs.TypeFaceGrouping, &FaceGroupingHandler{deps: deps})
}
