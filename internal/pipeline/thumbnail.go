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

// Square thumbnail renditions, smallest first
var thumbnailSizes = []int{128, 256, 512}

const thumbnailQuality = 80

// ThumbnailHandler renders the square cover-cropped renditions of an image
type ThumbnailHandler struct {
	deps     Deps
	resolver *storage.Resolver
}

func (h *ThumbnailHandler) Handle(ctx context.Context, payload jobs.Payload, jobID string) error {
	p, ok := payload.(*jobs.ThumbnailGeneration)
	if !ok {
		return fmt.Errorf("%w: expected ThumbnailGeneration", jobs.ErrInvalidPayload)
	}

	src, err := openImageOrFail(ctx, h.deps, h.resolver, p.ImageID, p.OriginalPath)
	if err != nil {
		return err
	}

	var smallest storage.Object
	for _, size := range thumbnailSizes {
		thumb := imaging.Fill(src, size, size, imaging.Center, imaging.Lanczos)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
			return fmt.Errorf("failed to encode %dpx thumbnail: %w", size, err)
		}

		obj := storage.ThumbnailObject(p.ImageID, size)
		if _, err := h.deps.Storage.Store(ctx, &buf, obj, "image/jpeg"); err != nil {
			return fmt.Errorf("failed to store %dpx thumbnail: %w", size, err)
		}
		if size == thumbnailSizes[0] {
			smallest = obj
		}
	}

	if err := h.deps.Gallery.SetThumbnailPath(ctx, p.ImageID, smallest.Key()); err != nil {
		return fmt.Errorf("failed to record thumbnail path: %w", err)
	}

	stored, err := h.deps.Gallery.MarkStoredIfComplete(ctx, p.ImageID)
	if err != nil {
		return fmt.Errorf("failed to join stored status: %w", err)
	}

	h.deps.Logger.Info("Thumbnails generated",
		slog.String("image_id", p.ImageID),
		slog.Bool("image_stored", stored),
	)

	return nil
}
