package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Strategy names how a source location string was resolved to a local file
type Strategy string

const (
	// StrategyLocalFile means the string was already a readable local path
	StrategyLocalFile Strategy = "local-file"
	// StrategyBucketComposite means the string parsed as "bucket/path"
	StrategyBucketComposite Strategy = "bucket-composite"
	// StrategyDefaultBucket means the bare path was found in the temp bucket
	StrategyDefaultBucket Strategy = "default-bucket"
	// StrategyTempDir means the bare name was found in the local temp dir
	StrategyTempDir Strategy = "temp-dir"
)

// Resolved is the outcome of a source-location resolution
type Resolved struct {
	LocalPath string
	Strategy  Strategy
}

// Resolver turns persisted location strings into local file paths. Location
// strings come in two shapes: a bare filesystem path left behind by a local
// upload, or a "bucket/path" composite written after a cloud offload.
type Resolver struct {
	provider Provider
	tempDir  string
}

// NewResolver creates a Resolver; tempDir is the last-resort search location
// for bare file names.
func NewResolver(provider Provider, tempDir string) *Resolver {
	return &Resolver{provider: provider, tempDir: tempDir}
}

// Resolve tries each candidate strategy in priority order and returns the
// first hit. All candidates exhausted means the source is gone and the
// caller should treat the asset as failed.
func (r *Resolver) Resolve(ctx context.Context, location string) (*Resolved, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: empty source location", ErrObjectNotFound)
	}

	// 1. The string may already be a local file.
	if isLocalFile(location) {
		return &Resolved{LocalPath: location, Strategy: StrategyLocalFile}, nil
	}

	// 2. "bucket/path" composite written by the offload step.
	if bucket, path, ok := splitComposite(location); ok {
		localPath, err := r.provider.Retrieve(ctx, Object{Bucket: bucket, Path: path})
		if err == nil {
			return &Resolved{LocalPath: localPath, Strategy: StrategyBucketComposite}, nil
		}
	}

	// 3. Bare path in the default (temp) bucket.
	localPath, err := r.provider.Retrieve(ctx, Object{Bucket: BucketTemp, Path: location})
	if err == nil {
		return &Resolved{LocalPath: localPath, Strategy: StrategyDefaultBucket}, nil
	}

	// 4. Bare file name in the local temp directory.
	if r.tempDir != "" {
		candidate := filepath.Join(r.tempDir, filepath.Base(location))
		if isLocalFile(candidate) {
			return &Resolved{LocalPath: candidate, Strategy: StrategyTempDir}, nil
		}
	}

	return nil, fmt.Errorf("%w: source not found at %q", ErrObjectNotFound, location)
}

// splitComposite parses "bucket/rest-of-path" when bucket is one of the
// logical buckets.
func splitComposite(location string) (bucket, path string, ok bool) {
	trimmed := strings.TrimPrefix(location, "/")
	bucket, path, found := strings.Cut(trimmed, "/")
	if !found || path == "" || !IsKnownBucket(bucket) {
		return "", "", false
	}
	return bucket, path, true
}

func isLocalFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
