package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/photoflow-app/photoflow/internal/gallery"
	"github.com/photoflow-app/photoflow/internal/storage"
)

// openImageOrFail resolves and decodes the original for the image-derivation
// handlers. A missing or undecodable source marks the image FAILED
// immediately, not at retry exhaustion, since it will not self-heal.
func openImageOrFail(ctx context.Context, deps Deps, resolver *storage.Resolver, imageID, location string) (image.Image, error) {
	resolved, err := resolver.Resolve(ctx, location)
	if err != nil {
		markImageFailed(ctx, deps, imageID)
		return nil, err
	}

	src, err := imaging.Open(resolved.LocalPath, imaging.AutoOrientation(true))
	if err != nil {
		markImageFailed(ctx, deps, imageID)
		return nil, fmt.Errorf("failed to decode source image: %w", err)
	}
	return src, nil
}

func markImageFailed(ctx context.Context, deps Deps, imageID string) {
	if err := deps.Gallery.SetStatus(ctx, imageID, gallery.ImageStatusFailed); err != nil && !errors.Is(err, gallery.ErrImageNotFound) {
		deps.Logger.Error("Failed to mark image failed",
			slog.String("image_id", imageID),
			slog.String("error", err.Error()),
		)
	}
}
