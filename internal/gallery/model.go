// Package gallery holds the image catalog: uploaded assets, their derived
// artifact paths, extracted EXIF metadata, and detection results.
package gallery

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Image lifecycle. Derived-asset handlers move an image from UPLOADED
// through PROCESSING to STORED; a missing source forces FAILED.
const (
	ImageStatusUploaded   = "UPLOADED"
	ImageStatusIngested   = "INGESTED"
	ImageStatusProcessing = "PROCESSING"
	ImageStatusStored     = "STORED"
	ImageStatusFailed     = "FAILED"
)

// Image is one uploaded asset and everything derived from it
type Image struct {
	ID            string         `db:"id" json:"id"`
	UserID        string         `db:"user_id" json:"userId"`
	ProjectID     string         `db:"project_id" json:"projectId,omitempty"`
	AlbumID       string         `db:"album_id" json:"albumId,omitempty"`
	FileName      string         `db:"file_name" json:"fileName"`
	TempPath      string         `db:"temp_path" json:"tempPath"`
	ThumbnailPath sql.NullString `db:"thumbnail_path" json:"-"`
	PreviewPath   sql.NullString `db:"preview_path" json:"-"`
	Status        string         `db:"status" json:"status"`
	Width         int            `db:"width" json:"width"`
	Height        int            `db:"height" json:"height"`
	MimeType      string         `db:"mime_type" json:"mimeType"`

	CameraMake   string          `db:"camera_make" json:"cameraMake,omitempty"`
	CameraModel  string          `db:"camera_model" json:"cameraModel,omitempty"`
	Software     string          `db:"software" json:"software,omitempty"`
	LensModel    string          `db:"lens_model" json:"lensModel,omitempty"`
	ExposureTime string          `db:"exposure_time" json:"exposureTime,omitempty"`
	FNumber      sql.NullFloat64 `db:"f_number" json:"-"`
	ISO          sql.NullInt32   `db:"iso" json:"-"`
	FocalLength  sql.NullFloat64 `db:"focal_length" json:"-"`
	TakenAt      sql.NullTime    `db:"taken_at" json:"-"`
	Latitude     sql.NullFloat64 `db:"latitude" json:"-"`
	Longitude    sql.NullFloat64 `db:"longitude" json:"-"`
	Altitude     sql.NullFloat64 `db:"altitude" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Exif carries the metadata extracted from an image's EXIF block
type Exif struct {
	CameraMake   string
	CameraModel  string
	Software     string
	LensModel    string
	ExposureTime string
	FNumber      sql.NullFloat64
	ISO          sql.NullInt32
	FocalLength  sql.NullFloat64
	TakenAt      sql.NullTime
	Latitude     sql.NullFloat64
	Longitude    sql.NullFloat64
	Altitude     sql.NullFloat64
}

// DetectedFace is one face found in an image. The bounding box is
// normalized to [0,1] of the image dimensions.
type DetectedFace struct {
	ID          string          `db:"id" json:"id"`
	ImageID     string          `db:"image_id" json:"imageId"`
	X           float64         `db:"x" json:"x"`
	Y           float64         `db:"y" json:"y"`
	Width       float64         `db:"width" json:"width"`
	Height      float64         `db:"height" json:"height"`
	Confidence  float64         `db:"confidence" json:"confidence"`
	Embedding   pq.Float64Array `db:"embedding" json:"-"`
	FaceGroupID sql.NullString  `db:"face_group_id" json:"faceGroupId,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// DetectedObject is one object found in an image
type DetectedObject struct {
	ID         string          `db:"id" json:"id"`
	ImageID    string          `db:"image_id" json:"imageId"`
	Type       string          `db:"type" json:"type"`
	Label      string          `db:"label" json:"label"`
	X          float64         `db:"x" json:"x"`
	Y          float64         `db:"y" json:"y"`
	Width      float64         `db:"width" json:"width"`
	Height     float64         `db:"height" json:"height"`
	Confidence float64         `db:"confidence" json:"confidence"`
	Embedding  pq.Float64Array `db:"embedding" json:"-"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// FaceGroup is a cluster of faces believed to be the same person within an
// album scope.
type FaceGroup struct {
	ID            string    `db:"id" json:"id"`
	AlbumID       string    `db:"album_id" json:"albumId,omitempty"`
	FaceCount     int       `db:"face_count" json:"faceCount"`
	SuggestedName string    `db:"suggested_name" json:"suggestedName"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
