package gallery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkStoredIfComplete_RequiresBothPaths(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	require.NoError(t, repo.CreateImage(ctx, &Image{ID: "img-1", UserID: "u1"}))

	// Neither path set.
	stored, err := repo.MarkStoredIfComplete(ctx, "img-1")
	require.NoError(t, err)
	assert.False(t, stored)

	// Only one path set.
	require.NoError(t, repo.SetThumbnailPath(ctx, "img-1", "thumbnails/img-1/thumb-128.jpg"))
	stored, err = repo.MarkStoredIfComplete(ctx, "img-1")
	require.NoError(t, err)
	assert.False(t, stored)

	img, err := repo.GetImage(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, ImageStatusUploaded, img.Status)

	// Both set: first caller flips, second is a no-op.
	require.NoError(t, repo.SetPreviewPath(ctx, "img-1", "processed/img-1/preview.jpg"))
	stored, err = repo.MarkStoredIfComplete(ctx, "img-1")
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = repo.MarkStoredIfComplete(ctx, "img-1")
	require.NoError(t, err)
	assert.False(t, stored)

	img, err = repo.GetImage(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, ImageStatusStored, img.Status)
}

func TestListFacesByAlbum_ScopedAndOrdered(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	require.NoError(t, repo.CreateImage(ctx, &Image{ID: "img-a", AlbumID: "album-1"}))
	require.NoError(t, repo.CreateImage(ctx, &Image{ID: "img-b", AlbumID: "album-1"}))
	require.NoError(t, repo.CreateImage(ctx, &Image{ID: "img-c", AlbumID: "album-2"}))

	require.NoError(t, repo.InsertFaces(ctx, []DetectedFace{
		{ID: "f1", ImageID: "img-a", Confidence: 0.9},
		{ID: "f2", ImageID: "img-b", Confidence: 0.9},
		{ID: "f3", ImageID: "img-c", Confidence: 0.9},
	}))

	faces, err := repo.ListFacesByAlbum(ctx, "album-1")
	require.NoError(t, err)
	require.Len(t, faces, 2)
	assert.Equal(t, "f1", faces[0].ID)
	assert.Equal(t, "f2", faces[1].ID)

	// Empty album id lists every face.
	faces, err = repo.ListFacesByAlbum(ctx, "")
	require.NoError(t, err)
	assert.Len(t, faces, 3)
}

func TestAssignFaceGroup_BumpsCount(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	require.NoError(t, repo.CreateImage(ctx, &Image{ID: "img-a", AlbumID: "album-1"}))
	require.NoError(t, repo.InsertFaces(ctx, []DetectedFace{{ID: "f1", ImageID: "img-a"}}))
	require.NoError(t, repo.CreateFaceGroup(ctx, &FaceGroup{ID: "g1", AlbumID: "album-1", SuggestedName: "Person 1"}))

	require.NoError(t, repo.AssignFaceGroup(ctx, "f1", "g1"))

	groups := repo.FaceGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].FaceCount)

	faces := repo.Faces()
	require.Len(t, faces, 1)
	assert.Equal(t, "g1", faces[0].FaceGroupID.String)
}
