package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Logical buckets. The S3 backend maps each to a real bucket name; the
// local backend uses them as top-level directories under its root.
const (
	BucketTemp          = "temp"
	BucketUserGallery   = "user-gallery"
	BucketProjectAlbums = "project-albums"
	BucketThumbnails    = "thumbnails"
	BucketProcessed     = "processed"
)

var knownBuckets = map[string]bool{
	BucketTemp:          true,
	BucketUserGallery:   true,
	BucketProjectAlbums: true,
	BucketThumbnails:    true,
	BucketProcessed:     true,
}

// IsKnownBucket reports whether name is one of the logical buckets
func IsKnownBucket(name string) bool {
	return knownBuckets[name]
}

// UserGalleryObject builds the permanent location for a gallery asset
func UserGalleryObject(userID, imageID, fileName string) Object {
	return Object{
		Bucket: BucketUserGallery,
		Path:   fmt.Sprintf("%s/Gallery/images/%s%s", userID, imageID, Ext(fileName)),
	}
}

// ProjectAlbumObject builds the permanent location for a project-album asset
func ProjectAlbumObject(projectID, albumID, imageID, fileName string) Object {
	return Object{
		Bucket: BucketProjectAlbums,
		Path:   fmt.Sprintf("projects/%s/albums/%s/%s%s", projectID, albumID, imageID, Ext(fileName)),
	}
}

// ThumbnailObject builds the location of one thumbnail rendition
func ThumbnailObject(imageID string, size int) Object {
	return Object{
		Bucket: BucketThumbnails,
		Path:   fmt.Sprintf("%s/thumb-%d.jpg", imageID, size),
	}
}

// PreviewObject builds the location of the processed preview
func PreviewObject(imageID string) Object {
	return Object{
		Bucket: BucketProcessed,
		Path:   fmt.Sprintf("%s/preview.jpg", imageID),
	}
}

// TempObject builds a temp-bucket location for an uploaded file
func TempObject(name string) Object {
	return Object{Bucket: BucketTemp, Path: name}
}

// Ext returns the lowercase extension of a file name, defaulting to ".jpg"
// when the name carries none.
func Ext(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return ".jpg"
	}
	return ext
}
