package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) key(bucket, key *string) string {
	return *bucket + "/" + *key
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[f.key(params.Bucket, params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[f.key(params.Bucket, params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, f.key(params.Bucket, params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[f.key(params.Bucket, params.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{
		URL: "https://" + *params.Bucket + ".s3.test/" + *params.Key + "?signed=1",
	}, nil
}

func newTestS3Provider(t *testing.T, api *fakeS3) *S3Provider {
	t.Helper()
	return newS3Provider(api, fakePresigner{}, S3Options{
		BucketPrefix:  "photoflow",
		PresignExpiry: time.Hour,
		CacheDir:      t.TempDir(),
	}, slog.New(slog.DiscardHandler))
}

func TestS3Provider_StoreRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	provider := newTestS3Provider(t, api)

	obj := Object{Bucket: BucketUserGallery, Path: "u1/Gallery/images/img-1.jpg"}
	stored, err := provider.Store(ctx, bytes.NewReader([]byte("jpeg bytes")), obj, "image/jpeg")
	require.NoError(t, err)

	// Logical bucket is mapped through the prefix on the wire.
	assert.Contains(t, api.objects, "photoflow-user-gallery/u1/Gallery/images/img-1.jpg")
	assert.Equal(t, obj.Key(), stored.FullPath)
	assert.Contains(t, stored.PublicURL, "signed=1")

	localPath, err := provider.Retrieve(ctx, obj)
	require.NoError(t, err)

	data, err := os.ReadFile(localPath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestS3Provider_RetrieveMissing(t *testing.T) {
	provider := newTestS3Provider(t, newFakeS3())

	_, err := provider.Retrieve(context.Background(), TempObject("gone.jpg"))
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3Provider_Remove(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	provider := newTestS3Provider(t, api)

	obj := TempObject("victim.jpg")
	_, err := provider.Store(ctx, bytes.NewReader([]byte("x")), obj, "")
	require.NoError(t, err)

	removed, err := provider.Remove(ctx, obj)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, api.objects)

	removed, err = provider.Remove(ctx, obj)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestS3Provider_ResolverUsesCache(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	provider := newTestS3Provider(t, api)

	obj := Object{Bucket: BucketProjectAlbums, Path: "projects/p1/albums/a1/img-1.jpg"}
	_, err := provider.Store(ctx, bytes.NewReader([]byte("remote bytes")), obj, "image/jpeg")
	require.NoError(t, err)

	resolver := NewResolver(provider, "")
	resolved, err := resolver.Resolve(ctx, obj.Key())
	require.NoError(t, err)
	assert.Equal(t, StrategyBucketComposite, resolved.Strategy)

	data, err := os.ReadFile(resolved.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "remote bytes", string(data))
}
