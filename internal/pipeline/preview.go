package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/photoflow-app/photoflow/internal/jobs"
	"github.com/photoflow-app/photoflow/internal/storage"
)

// Previews are capped at this many pixels on the longer edge
const previewMaxEdge = 2000

const previewQuality = 85

// PreviewHandler renders the display-sized JPEG preview of an image
type PreviewHandler struct {
	deps     Deps
	resolver *storage.Resolver
}

func (h *PreviewHandler) Handle(ctx context.Context, payload jobs.Payload, jobID string) error {
	p, ok := payload.(*jobs.PreviewGeneration)
	if !ok {
		return fmt.Errorf("%w: expected PreviewGeneration", jobs.ErrInvalidPayload)
	}

	src, err := openImageOrFail(ctx, h.deps, h.resolver, p.ImageID, p.OriginalPath)
	if err != nil {
		return err
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	preview := src
	if width > previewMaxEdge || height > previewMaxEdge {
		preview = imaging.Fit(src, previewMaxEdge, previewMaxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, preview, imaging.JPEG, imaging.JPEGQuality(previewQuality)); err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}

	obj := storage.PreviewObject(p.ImageID)
	if _, err := h.deps.Storage.Store(ctx, &buf, obj, "image/jpeg"); err != nil {
		return fmt.Errorf("failed to store preview: %w", err)
	}

	if err := h.deps.Gallery.SetDimensions(ctx, p.ImageID, width, height, "image/jpeg"); err != nil {
		return fmt.Errorf("failed to record dimensions: %w", err)
	}
	if err := h.deps.Gallery.SetPreviewPath(ctx, p.ImageID, obj.Key()); err != nil {
		return fmt.Errorf("failed to record preview path: %w", err)
	}

	stored, err := h.deps.Gallery.MarkStoredIfComplete(ctx, p.ImageID)
	if err != nil {
		return fmt.Errorf("failed to join stored status: %w", err)
	}

	h.deps.Logger.Info("Preview generated",
		slog.String("image_id", p.ImageID),
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Bool("image_stored", stored),
	)

	return nil
}
