package jobs

import (
	"encoding/json"
	"fmt"
)

// Payload is the decoded, type-specific job input. Serialization to JSON
// happens only at the store boundary; handlers always receive the typed
// variant.
type Payload interface {
	JobType() Type
}

// OffloadOriginal moves a freshly uploaded file to permanent storage and
// fans out the derived-asset jobs.
type OffloadOriginal struct {
	ImageID  string `json:"imageId"`
	TempPath string `json:"tempPath"`
	Checksum string `json:"checksum"`
}

func (OffloadOriginal) JobType() Type { return TypeOffloadOriginal }

// ThumbnailGeneration produces the fixed-size square thumbnails.
type ThumbnailGeneration struct {
	ImageID      string `json:"imageId"`
	OriginalPath string `json:"originalPath"`
}

func (ThumbnailGeneration) JobType() Type { return TypeThumbnailGeneration }

// PreviewGeneration produces the downscaled preview JPEG.
type PreviewGeneration struct {
	ImageID      string `json:"imageId"`
	OriginalPath string `json:"originalPath"`
}

func (PreviewGeneration) JobType() Type { return TypePreviewGeneration }

// ExifEnrichment extracts embedded metadata onto the image record.
type ExifEnrichment struct {
	ImageID      string `json:"imageId"`
	OriginalPath string `json:"originalPath"`
}

func (ExifEnrichment) JobType() Type { return TypeExifEnrichment }

// FaceDetection inserts DetectedFace rows for an image.
type FaceDetection struct {
	ImageID       string  `json:"imageId"`
	MinConfidence float64 `json:"minConfidence,omitempty"`
}

func (FaceDetection) JobType() Type { return TypeFaceDetection }

// ObjectDetection inserts DetectedObject rows for an image.
type ObjectDetection struct {
	ImageID string `json:"imageId"`
}

func (ObjectDetection) JobType() Type { return TypeObjectDetection }

// FaceGrouping clusters ungrouped face embeddings, optionally scoped to one
// album.
type FaceGrouping struct {
	AlbumID   string  `json:"albumId,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

func (FaceGrouping) JobType() Type { return TypeFaceGrouping }

// EncodePayload serializes a typed payload to the JSON stored on the job row.
func EncodePayload(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload: %w", p.JobType(), err)
	}
	return string(data), nil
}

// DecodePayload parses raw payload JSON into the variant for the given type.
func DecodePayload(t Type, raw []byte) (Payload, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var (
		p   Payload
		err error
	)

	switch t {
	case TypeOffloadOriginal:
		var v OffloadOriginal
		err = json.Unmarshal(raw, &v)
		p = &v
	case TypeThumbnailGeneration:
		var v ThumbnailGeneration
		err = json.Unmarshal(raw, &v)
		p = &v
	case TypePreviewGeneration:
		var v PreviewGeneration
		err = json.Unmarshal(raw, &v)
		p = &v
	case TypeExifEnrichment:
		var v ExifEnrichment
		err = json.Unmarshal(raw, &v)
		p = &v
	case TypeFaceDetection:
		var v FaceDetection
		err = json.Unmarshal(raw, &v)
		p = &v
	case TypeObjectDetection:
		var v ObjectDetection
		err = json.Unmarshal(raw, &v)
		p = &v
	case TypeFaceGrouping:
		var v FaceGrouping
		err = json.Unmarshal(raw, &v)
		p = &v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}
