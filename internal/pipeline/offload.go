package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/photoflow-app/photoflow/internal/jobs"
	"github.com/photoflow-app/photoflow/internal/storage"
)

// OffloadHandler moves an uploaded original from its temp location to
// permanent storage, then fans out the three derived-asset jobs. This is
// the only handler that enqueues other jobs.
type OffloadHandler struct {
	deps     Deps
	resolver *storage.Resolver
}

func (h *OffloadHandler) Handle(ctx context.Context, payload jobs.Payload, jobID string) error {
	p, ok := payload.(*jobs.OffloadOriginal)
	if !ok {
		return fmt.Errorf("%w: expected OffloadOriginal", jobs.ErrInvalidPayload)
	}

	img, err := h.deps.Gallery.GetImage(ctx, p.ImageID)
	if err != nil {
		return fmt.Errorf("failed to load image %s: %w", p.ImageID, err)
	}

	location := p.TempPath
	if location == "" {
		location = img.TempPath
	}

	if h.deps.Storage.Remote() {
		resolved, err := h.resolver.Resolve(ctx, location)
		if err != nil {
			return fmt.Errorf("offload source: %w", err)
		}

		if p.Checksum != "" {
			if err := verifyChecksum(resolved.LocalPath, p.Checksum); err != nil {
				return err
			}
		}

		dest := destinationObject(img.UserID, img.ProjectID, img.AlbumID, img.ID, img.FileName)
		stored, err := h.deps.Storage.StoreFile(ctx, resolved.LocalPath, dest, img.MimeType)
		if err != nil {
			return fmt.Errorf("failed to offload original: %w", err)
		}

		// The temp file is spent once the permanent copy exists.
		if err := os.Remove(resolved.LocalPath); err != nil && !os.IsNotExist(err) {
			h.deps.Logger.Warn("Failed to remove temp file after offload",
				slog.String("image_id", img.ID),
				slog.String("path", resolved.LocalPath),
				slog.String("error", err.Error()),
			)
		}

		location = storage.Object{Bucket: stored.Bucket, Path: stored.Path}.Key()
	}

	if err := h.deps.Gallery.SetOffloaded(ctx, img.ID, location); err != nil {
		return fmt.Errorf("failed to record offload: %w", err)
	}

	// Fan-out point: the three siblings run independently in any order.
	siblings := []jobs.Payload{
		&jobs.ThumbnailGeneration{ImageID: img.ID, OriginalPath: location},
		&jobs.PreviewGeneration{ImageID: img.ID, OriginalPath: location},
		&jobs.ExifEnrichment{ImageID: img.ID, OriginalPath: location},
	}
	for _, sibling := range siblings {
		if _, err := h.deps.Jobs.Enqueue(ctx, sibling); err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", sibling.JobType(), err)
		}
	}

	h.deps.Logger.Info("Original offloaded",
		slog.String("image_id", img.ID),
		slog.String("location", location),
	)

	return nil
}

// destinationObject picks the permanent bucket/path scheme: project-album
// assets when the image belongs to an album, user-gallery otherwise.
func destinationObject(userID, projectID, albumID, imageID, fileName string) storage.Object {
	if projectID != "" && albumID != "" {
		return storage.ProjectAlbumObject(projectID, albumID, imageID, fileName)
	}
	return storage.UserGalleryObject(userID, imageID, fileName)
}

func verifyChecksum(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to hash source: %w", err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
	}
	return nil
}
