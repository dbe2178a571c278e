package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		jobType Type
		raw     string
		want    Payload
		wantErr error
	}{
		{
			name:    "offload original",
			jobType: TypeOffloadOriginal,
			raw:     `{"imageId":"img1","tempPath":"/tmp/a.jpg","checksum":"abc"}`,
			want:    &OffloadOriginal{ImageID: "img1", TempPath: "/tmp/a.jpg", Checksum: "abc"},
		},
		{
			name:    "thumbnail generation",
			jobType: TypeThumbnailGeneration,
			raw:     `{"imageId":"img1","originalPath":"user-gallery/u1/Gallery/images/img1.jpg"}`,
			want:    &ThumbnailGeneration{ImageID: "img1", OriginalPath: "user-gallery/u1/Gallery/images/img1.jpg"},
		},
		{
			name:    "face detection with threshold",
			jobType: TypeFaceDetection,
			raw:     `{"imageId":"img1","minConfidence":0.9}`,
			want:    &FaceDetection{ImageID: "img1", MinConfidence: 0.9},
		},
		{
			name:    "face grouping defaults",
			jobType: TypeFaceGrouping,
			raw:     `{}`,
			want:    &FaceGrouping{},
		},
		{
			name:    "empty payload decodes as zero value",
			jobType: TypeObjectDetection,
			raw:     "",
			want:    &ObjectDetection{},
		},
		{
			name:    "unknown type",
			jobType: Type("REINDEX_EVERYTHING"),
			raw:     `{}`,
			wantErr: ErrUnknownType,
		},
		{
			name:    "malformed json",
			jobType: TypeOffloadOriginal,
			raw:     `{"imageId":`,
			wantErr: ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.jobType, []byte(tt.raw))

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.jobType, got.JobType())
		})
	}
}

func TestEncodePayload_RoundTrip(t *testing.T) {
	original := OffloadOriginal{ImageID: "img1", TempPath: "/tmp/a.jpg", Checksum: "abc"}

	encoded, err := EncodePayload(original)
	require.NoError(t, err)

	decoded, err := DecodePayload(TypeOffloadOriginal, []byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, &original, decoded)
}

// Handlers receive the decoded variant by pointer; a value would fail every
// handler's type assertion.
func TestDecodePayload_ReturnsPointerVariants(t *testing.T) {
	got, err := DecodePayload(TypeThumbnailGeneration, []byte(`{"imageId":"img1"}`))
	require.NoError(t, err)

	tp, ok := got.(*ThumbnailGeneration)
	require.True(t, ok, "expected *ThumbnailGeneration, got %T", got)
	assert.Equal(t, "img1", tp.ImageID)
}
