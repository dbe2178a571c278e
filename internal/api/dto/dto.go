// Package dto defines the request and response shapes of the HTTP API
package dto

import "encoding/json"

type CreateJobRequest struct {
	JobType string          `json:"jobType" binding:"required"`
	Payload json.RawMessage `json:"payload" binding:"required"`
}

type JobDTO struct {
	JobID     string          `json:"jobId"`
	JobType   string          `json:"jobType"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"lastError,omitempty"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	JobType  string `form:"job_type"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type UploadImageResponse struct {
	ImageID  string `json:"imageId"`
	FileName string `json:"fileName"`
	Status   string `json:"status"`
	JobID    string `json:"jobId"`
}

type ImageResponse struct {
	ImageID      string  `json:"imageId"`
	UserID       string  `json:"userId"`
	ProjectID    string  `json:"projectId,omitempty"`
	AlbumID      string  `json:"albumId,omitempty"`
	FileName     string  `json:"fileName"`
	Status       string  `json:"status"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	MimeType     string  `json:"mimeType,omitempty"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	PreviewURL   string  `json:"previewUrl,omitempty"`
	CameraMake   string  `json:"cameraMake,omitempty"`
	CameraModel  string  `json:"cameraModel,omitempty"`
	ExposureTime string  `json:"exposureTime,omitempty"`
	FNumber      float64 `json:"fNumber,omitempty"`
	ISO          int32   `json:"iso,omitempty"`
	FocalLength  float64 `json:"focalLength,omitempty"`
	TakenAt      string  `json:"takenAt,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
	CreatedAt    string  `json:"createdAt"`
}
