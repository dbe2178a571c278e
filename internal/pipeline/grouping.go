package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/photoflow-app/photoflow/internal/gallery"
	"github.com/photoflow-app/photoflow/internal/jobs"
)

// DefaultGroupingThreshold is the cosine similarity needed to join a seed
const DefaultGroupingThreshold = 0.8

// FaceGroupingHandler clusters ungrouped faces into identity groups,
// scoped to one album or globally when no album is given.
type FaceGroupingHandler struct {
	deps Deps
}

func (h *FaceGroupingHandler) Handle(ctx context.Context, payload jobs.Payload, jobID string) error {
	p, ok := payload.(*jobs.FaceGrouping)
	if !ok {
		return fmt.Errorf("%w: expected FaceGrouping", jobs.ErrInvalidPayload)
	}

	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultGroupingThreshold
	}

	faces, err := h.deps.Gallery.ListFacesByAlbum(ctx, p.AlbumID)
	if err != nil {
		return fmt.Errorf("failed to list faces: %w", err)
	}

	// Only ungrouped faces participate; existing assignments are final.
	var ungrouped []gallery.DetectedFace
	for _, face := range faces {
		if !face.FaceGroupID.Valid {
			ungrouped = append(ungrouped, face)
		}
	}
	if len(ungrouped) == 0 {
		return nil
	}

	embeddings := make([][]float64, len(ungrouped))
	for i, face := range ungrouped {
		embeddings[i] = face.Embedding
	}

	clusters := singleLinkClusters(embeddings, threshold)

	existing, err := h.deps.Gallery.CountFaceGroups(ctx, p.AlbumID)
	if err != nil {
		return fmt.Errorf("failed to count face groups: %w", err)
	}

	for n, cluster := range clusters {
		group := &gallery.FaceGroup{
			ID:            uuid.New().String(),
			AlbumID:       p.AlbumID,
			SuggestedName: fmt.Sprintf("Person %d", existing+n+1),
		}
		if err := h.deps.Gallery.CreateFaceGroup(ctx, group); err != nil {
			return fmt.Errorf("failed to create face group: %w", err)
		}

		for _, idx := range cluster {
			if err := h.deps.Gallery.AssignFaceGroup(ctx, ungrouped[idx].ID, group.ID); err != nil {
				return fmt.Errorf("failed to assign face to group: %w", err)
			}
		}
	}

	h.deps.Logger.Info("Faces grouped",
		slog.String("album_id", p.AlbumID),
		slog.Int("faces", len(ungrouped)),
		slog.Int("groups", len(clusters)),
	)

	return nil
}
