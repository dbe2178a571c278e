// Package storage abstracts object persistence over a local directory tree
// and an S3-compatible bucket store. Handlers address objects by
// bucket/path and never know which backend is configured.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when a bucket/path has no object behind it
var ErrObjectNotFound = errors.New("storage object not found")

// Object addresses a stored blob
type Object struct {
	Bucket string
	Path   string
}

// Key returns the "bucket/path" composite form used in persisted location
// strings.
func (o Object) Key() string {
	return o.Bucket + "/" + o.Path
}

// Stored describes where a blob ended up after a write
type Stored struct {
	Bucket    string `json:"bucket"`
	Path      string `json:"path"`
	FullPath  string `json:"fullPath"`
	PublicURL string `json:"publicUrl,omitempty"`
}

// Provider is the storage contract shared by all job handlers
type Provider interface {
	// Store writes the reader's bytes to the given object
	Store(ctx context.Context, r io.Reader, obj Object, contentType string) (*Stored, error)

	// StoreFile uploads an existing local file to the given object
	StoreFile(ctx context.Context, localPath string, obj Object, contentType string) (*Stored, error)

	// Retrieve resolves an object to a local file path, downloading to a
	// local cache when the backend is remote
	Retrieve(ctx context.Context, obj Object) (string, error)

	// Remove deletes an object; the bool reports whether it existed
	Remove(ctx context.Context, obj Object) (bool, error)

	// SignedURL returns a time-limited URL for the object, or "" when the
	// backend has no URL scheme
	SignedURL(ctx context.Context, obj Object, expiry time.Duration) (string, error)

	// Remote reports whether objects live outside the local filesystem
	Remote() bool
}
