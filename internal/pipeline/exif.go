package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/evanoberholster/imagemeta"

	"github.com/photoflow-app/photoflow/internal/gallery"
	"github.com/photoflow-app/photoflow/internal/jobs"
	"github.com/photoflow-app/photoflow/internal/storage"
)

// ExifHandler extracts embedded metadata onto the image row. It is a
// best-effort enrichment: it never changes the image status, and an image
// without an EXIF block is a success with no side effects.
type ExifHandler struct {
	deps     Deps
	resolver *storage.Resolver
}

func (h *ExifHandler) Handle(ctx context.Context, payload jobs.Payload, jobID string) error {
	p, ok := payload.(*jobs.ExifEnrichment)
	if !ok {
		return fmt.Errorf("%w: expected ExifEnrichment", jobs.ErrInvalidPayload)
	}

	resolved, err := h.resolver.Resolve(ctx, p.OriginalPath)
	if err != nil {
		return err
	}

	f, err := os.Open(resolved.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	meta, err := imagemeta.Decode(f)
	if err != nil {
		// No readable EXIF block; nothing to record.
		h.deps.Logger.Debug("No EXIF metadata found",
			slog.String("image_id", p.ImageID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	exif := gallery.Exif{
		CameraMake:  strings.TrimSpace(meta.Make),
		CameraModel: strings.TrimSpace(meta.Model),
		Software:    strings.TrimSpace(meta.Software),
		LensModel:   strings.TrimSpace(meta.LensModel),
	}

	if v := float64(meta.FNumber); v > 0 {
		exif.FNumber = sql.NullFloat64{Float64: v, Valid: true}
	}
	if meta.ISOSpeed > 0 {
		exif.ISO = sql.NullInt32{Int32: int32(meta.ISOSpeed), Valid: true}
	}
	if v := float64(meta.FocalLength); v > 0 {
		exif.FocalLength = sql.NullFloat64{Float64: v, Valid: true}
	}
	if v := float64(meta.ExposureTime); v > 0 {
		exif.ExposureTime = formatExposure(v)
	}

	if taken := meta.DateTimeOriginal(); !taken.IsZero() {
		exif.TakenAt = sql.NullTime{Time: taken, Valid: true}
	} else if created := meta.CreateDate(); !created.IsZero() {
		exif.TakenAt = sql.NullTime{Time: created, Valid: true}
	}

	// GPS references (N/S, E/W) are already folded into the sign here.
	gps := meta.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		exif.Latitude = sql.NullFloat64{Float64: gps.Latitude(), Valid: true}
		exif.Longitude = sql.NullFloat64{Float64: gps.Longitude(), Valid: true}
		if alt := gps.Altitude(); alt != 0 {
			exif.Altitude = sql.NullFloat64{Float64: float64(alt), Valid: true}
		}
	}

	if err := h.deps.Gallery.SaveExif(ctx, p.ImageID, exif); err != nil {
		return fmt.Errorf("failed to save EXIF: %w", err)
	}

	h.deps.Logger.Info("EXIF metadata extracted",
		slog.String("image_id", p.ImageID),
		slog.String("camera", strings.TrimSpace(exif.CameraMake+" "+exif.CameraModel)),
	)

	return nil
}

// formatExposure renders sub-second exposures in the conventional "1/n"
// form; longer exposures keep their decimal value.
func formatExposure(seconds float64) string {
	if seconds > 0 && seconds < 1 {
		return fmt.Sprintf("1/%d", int(math.Round(1/seconds)))
	}
	return fmt.Sprintf("%g", seconds)
}
