package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"math/rand"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/photoflow-app/photoflow/internal/gallery"
	"github.com/photoflow-app/photoflow/internal/jobs"
	"github.com/photoflow-app/photoflow/internal/storage"
)

// Length of the synthetic face/object embedding vectors
const embeddingDim = 128

// DefaultMinConfidence filters detections when the payload carries none
const DefaultMinConfidence = 0.7

// FaceDetectionHandler records face bounding boxes and embeddings for an
// image. Real model inference plugs in behind detectFaces; the placeholder
// derives one deterministic centered box and a random embedding.
type FaceDetectionHandler struct {
	deps     Deps
	resolver *storage.Resolver
}

func (h *FaceDetectionHandler) Handle(ctx context.Context, payload jobs.Payload, jobID string) error {
	p, ok := payload.(*jobs.FaceDetection)
	if !ok {
		return fmt.Errorf("%w: expected FaceDetection", jobs.ErrInvalidPayload)
	}

	// Idempotency guard: a reclaimed lease must not duplicate rows.
	count, err := h.deps.Gallery.CountFaces(ctx, p.ImageID)
	if err != nil {
		return fmt.Errorf("failed to check existing faces: %w", err)
	}
	if count > 0 {
		h.deps.Logger.Debug("Faces already detected, skipping",
			slog.String("image_id", p.ImageID),
			slog.Int("count", count),
		)
		return nil
	}

	img, err := h.deps.Gallery.GetImage(ctx, p.ImageID)
	if err != nil {
		return fmt.Errorf("failed to load image %s: %w", p.ImageID, err)
	}

	width, height, err := decodeDimensions(ctx, h.resolver, img.TempPath)
	if err != nil {
		return err
	}

	minConfidence := p.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	var faces []gallery.DetectedFace
	for _, det := range detectFaces(width, height) {
		if det.Confidence < minConfidence {
			continue
		}
		det.ID = uuid.New().String()
		det.ImageID = p.ImageID
		faces = append(faces, det)
	}

	if len(faces) == 0 {
		return nil
	}
	if err := h.deps.Gallery.InsertFaces(ctx, faces); err != nil {
		return fmt.Errorf("failed to insert faces: %w", err)
	}

	h.deps.Logger.Info("Faces detected",
		slog.String("image_id", p.ImageID),
		slog.Int("count", len(faces)),
	)

	return nil
}

// ObjectDetectionHandler records object bounding boxes for an image, with
// the same idempotency guard as face detection.
type ObjectDetectionHandler struct {
	deps     Deps
	resolver *storage.Resolver
}

func (h *ObjectDetectionHandler) Handle(ctx context.Context, payload jobs.Payload, jobID string) error {
	p, ok := payload.(*jobs.ObjectDetection)
	if !ok {
		return fmt.Errorf("%w: expected ObjectDetection", jobs.ErrInvalidPayload)
	}

	count, err := h.deps.Gallery.CountObjects(ctx, p.ImageID)
	if err != nil {
		return fmt.Errorf("failed to check existing objects: %w", err)
	}
	if count > 0 {
		return nil
	}

	img, err := h.deps.Gallery.GetImage(ctx, p.ImageID)
	if err != nil {
		return fmt.Errorf("failed to load image %s: %w", p.ImageID, err)
	}

	width, height, err := decodeDimensions(ctx, h.resolver, img.TempPath)
	if err != nil {
		return err
	}

	objects := []gallery.DetectedObject{{
		ID:         uuid.New().String(),
		ImageID:    p.ImageID,
		Type:       "scene",
		Label:      orientationLabel(width, height),
		X:          0.25,
		Y:          0.25,
		Width:      0.5,
		Height:     0.5,
		Confidence: 0.9,
		Embedding:  randomEmbedding(),
	}}

	if err := h.deps.Gallery.InsertObjects(ctx, objects); err != nil {
		return fmt.Errorf("failed to insert objects: %w", err)
	}

	h.deps.Logger.Info("Objects detected",
		slog.String("image_id", p.ImageID),
		slog.Int("count", len(objects)),
	)

	return nil
}

// detectFaces is the model integration point. The placeholder yields one
// centered square box with a side of half the shorter edge, normalized to
// the frame.
func detectFaces(width, height int) []gallery.DetectedFace {
	if width <= 0 || height <= 0 {
		return nil
	}

	side := math.Min(float64(width), float64(height)) / 2
	w := side / float64(width)
	hgt := side / float64(height)

	return []gallery.DetectedFace{{
		X:          (1 - w) / 2,
		Y:          (1 - hgt) / 2,
		Width:      w,
		Height:     hgt,
		Confidence: 0.95,
		Embedding:  randomEmbedding(),
	}}
}

func randomEmbedding() pq.Float64Array {
	embedding := make(pq.Float64Array, embeddingDim)
	for i := range embedding {
		embedding[i] = rand.Float64()*2 - 1
	}
	return embedding
}

func orientationLabel(width, height int) string {
	switch {
	case width > height:
		return "landscape"
	case height > width:
		return "portrait"
	default:
		return "square"
	}
}

// decodeDimensions resolves the source and reads its pixel dimensions
// without decoding the full image.
func decodeDimensions(ctx context.Context, resolver *storage.Resolver, location string) (int, int, error) {
	resolved, err := resolver.Resolve(ctx, location)
	if err != nil {
		return 0, 0, err
	}

	f, err := os.Open(resolved.LocalPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image dimensions: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
