package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/photoflow-app/photoflow/internal/api/dto"
	"github.com/photoflow-app/photoflow/internal/gallery"
	"github.com/photoflow-app/photoflow/internal/jobs"
	"github.com/photoflow-app/photoflow/internal/storage"
)

// ImageHandler handles image upload and retrieval
type ImageHandler struct {
	deps *Dependencies
}

func NewImageHandler(deps *Dependencies) *ImageHandler {
	return &ImageHandler{deps: deps}
}

// UploadImage handles POST /api/v1/images
// Accepts a multipart upload, parks the file in the temp directory, and
// enqueues the offload job. The request returns as soon as the job is
// queued; all derivation happens asynchronously.
func (h *ImageHandler) UploadImage(c *gin.Context) {
	userID := c.PostForm("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id is required",
		})
		return
	}
	projectID := c.PostForm("project_id")
	albumID := c.PostForm("album_id")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "file is required",
		})
		return
	}
	defer file.Close()

	if h.deps.MaxUploadSize > 0 && header.Size > h.deps.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds maximum size of %d bytes", h.deps.MaxUploadSize),
		})
		return
	}

	imageID := uuid.New().String()
	tempPath := filepath.Join(h.deps.TempDir, imageID+storage.Ext(header.Filename))

	checksum, err := h.saveTempFile(file, tempPath)
	if err != nil {
		h.deps.Logger.Error("Failed to save upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store upload",
		})
		return
	}

	img := &gallery.Image{
		ID:        imageID,
		UserID:    userID,
		ProjectID: projectID,
		AlbumID:   albumID,
		FileName:  header.Filename,
		TempPath:  tempPath,
		MimeType:  header.Header.Get("Content-Type"),
		Status:    gallery.ImageStatusUploaded,
	}
	if err := h.deps.Gallery.CreateImage(c.Request.Context(), img); err != nil {
		os.Remove(tempPath)
		h.deps.Logger.Error("Failed to create image record", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create image",
		})
		return
	}

	job, err := h.deps.Jobs.Enqueue(c.Request.Context(), &jobs.OffloadOriginal{
		ImageID:  imageID,
		TempPath: tempPath,
		Checksum: checksum,
	})
	if err != nil {
		h.deps.Logger.Error("Failed to enqueue offload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to schedule processing",
		})
		return
	}

	h.deps.notifyEnqueued(c.Request.Context(), job)

	h.deps.Logger.Info("Image uploaded",
		slog.String("image_id", imageID),
		slog.String("user_id", userID),
		slog.String("file_name", header.Filename),
		slog.Int64("size", header.Size),
	)

	c.JSON(http.StatusAccepted, dto.UploadImageResponse{
		ImageID:  imageID,
		FileName: header.Filename,
		Status:   img.Status,
		JobID:    job.ID,
	})
}

// GetImage handles GET /api/v1/images/:image_id
// Returns the catalog record with signed URLs for the derived assets
func (h *ImageHandler) GetImage(c *gin.Context) {
	imageID := c.Param("image_id")
	if _, err := uuid.Parse(imageID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "image_id must be a valid UUID",
		})
		return
	}

	img, err := h.deps.Gallery.GetImage(c.Request.Context(), imageID)
	if err != nil {
		if errors.Is(err, gallery.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Image not found",
			})
			return
		}
		h.deps.Logger.Error("Failed to get image", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get image",
		})
		return
	}

	c.JSON(http.StatusOK, h.imageToResponse(c, img))
}

func (h *ImageHandler) imageToResponse(c *gin.Context, img *gallery.Image) dto.ImageResponse {
	resp := dto.ImageResponse{
		ImageID:      img.ID,
		UserID:       img.UserID,
		ProjectID:    img.ProjectID,
		AlbumID:      img.AlbumID,
		FileName:     img.FileName,
		Status:       img.Status,
		Width:        img.Width,
		Height:       img.Height,
		MimeType:     img.MimeType,
		CameraMake:   img.CameraMake,
		CameraModel:  img.CameraModel,
		ExposureTime: img.ExposureTime,
		CreatedAt:    img.CreatedAt.Format(time.RFC3339),
	}
	if img.FNumber.Valid {
		resp.FNumber = img.FNumber.Float64
	}
	if img.ISO.Valid {
		resp.ISO = img.ISO.Int32
	}
	if img.FocalLength.Valid {
		resp.FocalLength = img.FocalLength.Float64
	}
	if img.TakenAt.Valid {
		resp.TakenAt = img.TakenAt.Time.Format(time.RFC3339)
	}
	if img.Latitude.Valid {
		resp.Latitude = img.Latitude.Float64
	}
	if img.Longitude.Valid {
		resp.Longitude = img.Longitude.Float64
	}
	resp.ThumbnailURL = h.derivedURL(c, img.ThumbnailPath.String)
	resp.PreviewURL = h.derivedURL(c, img.PreviewPath.String)
	return resp
}

// derivedURL signs a stored "bucket/path" composite, tolerating unset paths
func (h *ImageHandler) derivedURL(c *gin.Context, location string) string {
	if location == "" {
		return ""
	}
	bucket, path, found := strings.Cut(location, "/")
	if !found || bucket == "" || path == "" {
		return ""
	}

	url, err := h.deps.Storage.SignedURL(c.Request.Context(), storage.Object{Bucket: bucket, Path: path}, h.deps.URLExpiry)
	if err != nil {
		h.deps.Logger.Warn("Failed to sign derived asset URL",
			slog.String("location", location),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return url
}

// saveTempFile streams the upload to disk and returns its SHA-256 hex digest
func (h *ImageHandler) saveTempFile(src io.Reader, tempPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(tempPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	out, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer out.Close()

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, hash), src); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
