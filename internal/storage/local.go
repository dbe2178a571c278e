package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalProvider stores objects under <root>/<bucket>/<path>
type LocalProvider struct {
	root    string
	baseURL string
	logger  *slog.Logger
}

// NewLocalProvider creates a filesystem-backed provider rooted at root.
// baseURL, when set, is prepended to object keys for public URLs.
func NewLocalProvider(root, baseURL string, logger *slog.Logger) (*LocalProvider, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	return &LocalProvider{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

func (p *LocalProvider) Remote() bool {
	return false
}

func (p *LocalProvider) objectPath(obj Object) string {
	return filepath.Join(p.root, obj.Bucket, filepath.FromSlash(obj.Path))
}

func (p *LocalProvider) Store(ctx context.Context, r io.Reader, obj Object, contentType string) (*Stored, error) {
	fullPath := p.objectPath(obj)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create object file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("failed to write object %s: %w", obj.Key(), err)
	}

	p.logger.Debug("Stored object locally",
		slog.String("bucket", obj.Bucket),
		slog.String("path", obj.Path),
	)

	return &Stored{
		Bucket:    obj.Bucket,
		Path:      obj.Path,
		FullPath:  fullPath,
		PublicURL: p.publicURL(obj),
	}, nil
}

func (p *LocalProvider) StoreFile(ctx context.Context, localPath string, obj Object, contentType string) (*Stored, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	return p.Store(ctx, f, obj, contentType)
}

// Retrieve returns the object's path on disk unchanged; there is no cache
// step for a local backend.
func (p *LocalProvider) Retrieve(ctx context.Context, obj Object) (string, error) {
	fullPath := p.objectPath(obj)
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, obj.Key())
	}
	return fullPath, nil
}

func (p *LocalProvider) Remove(ctx context.Context, obj Object) (bool, error) {
	err := os.Remove(p.objectPath(obj))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to remove object %s: %w", obj.Key(), err)
	}
	return true, nil
}

// SignedURL returns a plain URL under the configured base; local files need
// no signature. Empty when no base URL is configured.
func (p *LocalProvider) SignedURL(ctx context.Context, obj Object, expiry time.Duration) (string, error) {
	return p.publicURL(obj), nil
}

func (p *LocalProvider) publicURL(obj Object) string {
	if p.baseURL == "" {
		return ""
	}
	return p.baseURL + "/" + obj.Key()
}
