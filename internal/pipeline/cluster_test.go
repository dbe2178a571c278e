package pipeline

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoflow-app/photoflow/internal/gallery"
	"github.com/photoflow-app/photoflow/internal/jobs"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float64
		b    []float64
		want float64
	}{
		{name: "identical", a: []float64{1, 0, 0}, b: []float64{1, 0, 0}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "opposite", a: []float64{1, 0}, b: []float64{-1, 0}, want: -1},
		{name: "scaled", a: []float64{2, 2}, b: []float64{5, 5}, want: 1},
		{name: "zero norm", a: []float64{0, 0}, b: []float64{1, 1}, want: 0},
		{name: "length mismatch", a: []float64{1, 2, 3}, b: []float64{1, 2}, want: 0},
		{name: "both empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

// Single-link grouping joins a face to the first matching seed only; a
// later face similar to a non-seed member does not merge clusters.
func TestSingleLinkClusters_NoTransitiveMerge(t *testing.T) {
	// a and b are similar; c is similar to b but not to a.
	a := []float64{1, 0, 0}
	b := []float64{0.9, 0.4359, 0} // cos(a,b) ≈ 0.9
	c := []float64{0.6, 0.8, 0}    // cos(a,c) = 0.6, cos(b,c) ≈ 0.89

	clusters := singleLinkClusters([][]float64{a, b, c}, 0.85)

	require.Len(t, clusters, 2)
	assert.Equal(t, []int{0, 1}, clusters[0])
	assert.Equal(t, []int{2}, clusters[1])
}

func TestSingleLinkClusters_OrderDependent(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{0.9, 0.4359, 0}
	c := []float64{0.6, 0.8, 0}

	// Starting from c, b joins c's cluster instead of a's.
	clusters := singleLinkClusters([][]float64{c, b, a}, 0.85)

	require.Len(t, clusters, 2)
	assert.Equal(t, []int{0, 1}, clusters[0])
	assert.Equal(t, []int{2}, clusters[1])
}

func TestSingleLinkClusters_Singletons(t *testing.T) {
	clusters := singleLinkClusters([][]float64{{1, 0}, {0, 1}}, 0.8)
	require.Len(t, clusters, 2)
	assert.Equal(t, []int{0}, clusters[0])
	assert.Equal(t, []int{1}, clusters[1])

	assert.Empty(t, singleLinkClusters(nil, 0.8))
}

func TestFaceGrouping_CreatesGroupsAndBackfills(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.repo.CreateImage(ctx, &gallery.Image{ID: "img-a", AlbumID: "album-1"}))
	require.NoError(t, env.repo.InsertFaces(ctx, []gallery.DetectedFace{
		{ID: "face-a", ImageID: "img-a", Confidence: 0.95, Embedding: pq.Float64Array{1, 0, 0}},
		{ID: "face-b", ImageID: "img-a", Confidence: 0.95, Embedding: pq.Float64Array{0.9, 0.4359, 0}},
		{ID: "face-c", ImageID: "img-a", Confidence: 0.95, Embedding: pq.Float64Array{0.6, 0.8, 0}},
	}))

	handler := &FaceGroupingHandler{deps: env.deps}
	require.NoError(t, handler.Handle(ctx, &jobs.FaceGrouping{AlbumID: "album-1", Threshold: 0.85}, "job-1"))

	groups := env.repo.FaceGroups()
	require.Len(t, groups, 2)
	assert.Equal(t, "Person 1", groups[0].SuggestedName)
	assert.Equal(t, 2, groups[0].FaceCount)
	assert.Equal(t, "Person 2", groups[1].SuggestedName)
	assert.Equal(t, 1, groups[1].FaceCount)

	byID := make(map[string]gallery.DetectedFace)
	for _, face := range env.repo.Faces() {
		byID[face.ID] = face
	}
	assert.Equal(t, byID["face-a"].FaceGroupID, byID["face-b"].FaceGroupID)
	assert.NotEqual(t, byID["face-a"].FaceGroupID, byID["face-c"].FaceGroupID)
	assert.True(t, byID["face-c"].FaceGroupID.Valid)
}

// Without an album id the grouping scope is global: faces from every album
// participate.
func TestFaceGrouping_GlobalScopeWithoutAlbum(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.repo.CreateImage(ctx, &gallery.Image{ID: "img-a", AlbumID: "album-1"}))
	require.NoError(t, env.repo.CreateImage(ctx, &gallery.Image{ID: "img-b", AlbumID: "album-2"}))
	require.NoError(t, env.repo.InsertFaces(ctx, []gallery.DetectedFace{
		{ID: "face-a", ImageID: "img-a", Confidence: 0.95, Embedding: pq.Float64Array{1, 0, 0}},
		{ID: "face-b", ImageID: "img-b", Confidence: 0.95, Embedding: pq.Float64Array{1, 0, 0}},
	}))

	handler := &FaceGroupingHandler{deps: env.deps}
	require.NoError(t, handler.Handle(ctx, &jobs.FaceGrouping{Threshold: 0.85}, "job-1"))

	// Identical embeddings across different albums land in one group.
	groups := env.repo.FaceGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].FaceCount)
	assert.Empty(t, groups[0].AlbumID)

	for _, face := range env.repo.Faces() {
		assert.True(t, face.FaceGroupID.Valid)
	}
}

func TestFaceGrouping_SkipsGroupedFaces(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.repo.CreateImage(ctx, &gallery.Image{ID: "img-a", AlbumID: "album-1"}))
	require.NoError(t, env.repo.CreateFaceGroup(ctx, &gallery.FaceGroup{ID: "g-existing", AlbumID: "album-1", SuggestedName: "Person 1"}))
	require.NoError(t, env.repo.InsertFaces(ctx, []gallery.DetectedFace{
		{ID: "face-old", ImageID: "img-a", Embedding: pq.Float64Array{1, 0, 0}, FaceGroupID: sql.NullString{String: "g-existing", Valid: true}},
		{ID: "face-new", ImageID: "img-a", Embedding: pq.Float64Array{1, 0, 0}},
	}))

	handler := &FaceGroupingHandler{deps: env.deps}
	require.NoError(t, handler.Handle(ctx, &jobs.FaceGrouping{AlbumID: "album-1"}, "job-1"))

	// The grouped face keeps its assignment; the new face gets a new group
	// numbered after the existing ones.
	byID := make(map[string]gallery.DetectedFace)
	for _, face := range env.repo.Faces() {
		byID[face.ID] = face
	}
	assert.Equal(t, "g-existing", byID["face-old"].FaceGroupID.String)
	assert.True(t, byID["face-new"].FaceGroupID.Valid)
	assert.NotEqual(t, "g-existing", byID["face-new"].FaceGroupID.String)

	groups := env.repo.FaceGroups()
	require.Len(t, groups, 2)
	assert.Equal(t, "Person 2", groups[1].SuggestedName)
}

func TestFaceGrouping_NoUngroupedFacesIsNoop(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	handler := &FaceGroupingHandler{deps: env.deps}
	require.NoError(t, handler.Handle(ctx, &jobs.FaceGrouping{AlbumID: "album-1"}, "job-1"))
	assert.Empty(t, env.repo.FaceGroups())
}
