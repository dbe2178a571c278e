package gallery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/photoflow-app/photoflow/shared/postgresql"
)

// ErrImageNotFound is returned when an image id has no row
var ErrImageNotFound = errors.New("image not found")

// Repo is the catalog contract the handlers and API depend on
type Repo interface {
	CreateImage(ctx context.Context, img *Image) error
	GetImage(ctx context.Context, id string) (*Image, error)

	// SetOffloaded records the post-offload asset location and moves the
	// image to PROCESSING
	SetOffloaded(ctx context.Context, id, location string) error
	SetStatus(ctx context.Context, id, status string) error
	SetThumbnailPath(ctx context.Context, id, path string) error
	SetPreviewPath(ctx context.Context, id, path string) error
	SetDimensions(ctx context.Context, id string, width, height int, mimeType string) error

	// MarkStoredIfComplete flips the image to STORED only when both derived
	// paths are present. Reports whether the flip happened.
	MarkStoredIfComplete(ctx context.Context, id string) (bool, error)

	SaveExif(ctx context.Context, id string, exif Exif) error

	CountFaces(ctx context.Context, imageID string) (int, error)
	InsertFaces(ctx context.Context, faces []DetectedFace) error
	CountObjects(ctx context.Context, imageID string) (int, error)
	InsertObjects(ctx context.Context, objects []DetectedObject) error

	// ListFacesByAlbum returns all faces for an album's images in insertion
	// order, grouped and ungrouped alike. An empty albumID lists every face.
	ListFacesByAlbum(ctx context.Context, albumID string) ([]DetectedFace, error)
	CountFaceGroups(ctx context.Context, albumID string) (int, error)
	CreateFaceGroup(ctx context.Context, group *FaceGroup) error
	AssignFaceGroup(ctx context.Context, faceID, groupID string) error
}

const imageColumns = `id, user_id, project_id, album_id, file_name, temp_path,
	thumbnail_path, preview_path, status, width, height, mime_type,
	camera_make, camera_model, software, lens_model, exposure_time,
	f_number, iso, focal_length, taken_at, latitude, longitude, altitude,
	created_at, updated_at`

// SQLRepo is the PostgreSQL-backed catalog
type SQLRepo struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSQLRepo creates a catalog repo on the shared database client
func NewSQLRepo(client *postgresql.Client, logger *slog.Logger) *SQLRepo {
	return &SQLRepo{db: client.GetDB(), logger: logger}
}

func (r *SQLRepo) CreateImage(ctx context.Context, img *Image) error {
	now := time.Now()
	img.CreatedAt = now
	img.UpdatedAt = now
	if img.Status == "" {
		img.Status = ImageStatusUploaded
	}

	query := `
		INSERT INTO images (id, user_id, project_id, album_id, file_name,
			temp_path, status, mime_type, created_at, updated_at)
		VALUES (:id, :user_id, :project_id, :album_id, :file_name,
			:temp_path, :status, :mime_type, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, img); err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

func (r *SQLRepo) GetImage(ctx context.Context, id string) (*Image, error) {
	var img Image
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`
	if err := r.db.GetContext(ctx, &img, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}

func (r *SQLRepo) SetOffloaded(ctx context.Context, id, location string) error {
	query := `
		UPDATE images
		SET temp_path = $2, status = $3, updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id, location, ImageStatusProcessing)
}

func (r *SQLRepo) SetStatus(ctx context.Context, id, status string) error {
	query := `UPDATE images SET status = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, status)
}

func (r *SQLRepo) SetThumbnailPath(ctx context.Context, id, path string) error {
	query := `UPDATE images SET thumbnail_path = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, path)
}

func (r *SQLRepo) SetPreviewPath(ctx context.Context, id, path string) error {
	query := `UPDATE images SET preview_path = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, path)
}

func (r *SQLRepo) SetDimensions(ctx context.Context, id string, width, height int, mimeType string) error {
	query := `
		UPDATE images
		SET width = $2, height = $3, mime_type = $4, updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id, width, height, mimeType)
}

// MarkStoredIfComplete joins the sibling pipelines without a transaction:
// a single conditional update that only fires once both paths exist.
func (r *SQLRepo) MarkStoredIfComplete(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE images
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		  AND status <> $2
		  AND thumbnail_path IS NOT NULL
		  AND preview_path IS NOT NULL`

	result, err := r.db.ExecContext(ctx, query, id, ImageStatusStored)
	if err != nil {
		return false, fmt.Errorf("failed to mark image stored: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check stored update: %w", err)
	}
	return rows > 0, nil
}

func (r *SQLRepo) SaveExif(ctx context.Context, id string, exif Exif) error {
	query := `
		UPDATE images
		SET camera_make = $2, camera_model = $3, software = $4,
			lens_model = $5, exposure_time = $6, f_number = $7, iso = $8,
			focal_length = $9, taken_at = $10, latitude = $11,
			longitude = $12, altitude = $13, updated_at = NOW()
		WHERE id = $1`
	return r.exec(ctx, query, id,
		exif.CameraMake, exif.CameraModel, exif.Software,
		exif.LensModel, exif.ExposureTime, exif.FNumber, exif.ISO,
		exif.FocalLength, exif.TakenAt, exif.Latitude,
		exif.Longitude, exif.Altitude)
}

func (r *SQLRepo) CountFaces(ctx context.Context, imageID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM detected_faces WHERE image_id = $1`
	if err := r.db.GetContext(ctx, &count, query, imageID); err != nil {
		return 0, fmt.Errorf("failed to count faces: %w", err)
	}
	return count, nil
}

func (r *SQLRepo) InsertFaces(ctx context.Context, faces []DetectedFace) error {
	query := `
		INSERT INTO detected_faces (id, image_id, x, y, width, height,
			confidence, embedding, created_at)
		VALUES (:id, :image_id, :x, :y, :width, :height,
			:confidence, :embedding, :created_at)`

	for i := range faces {
		if faces[i].CreatedAt.IsZero() {
			faces[i].CreatedAt = time.Now()
		}
		if _, err := r.db.NamedExecContext(ctx, query, faces[i]); err != nil {
			return fmt.Errorf("failed to insert face: %w", err)
		}
	}
	return nil
}

func (r *SQLRepo) CountObjects(ctx context.Context, imageID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM detected_objects WHERE image_id = $1`
	if err := r.db.GetContext(ctx, &count, query, imageID); err != nil {
		return 0, fmt.Errorf("failed to count objects: %w", err)
	}
	return count, nil
}

func (r *SQLRepo) InsertObjects(ctx context.Context, objects []DetectedObject) error {
	query := `
		INSERT INTO detected_objects (id, image_id, type, label, x, y,
			width, height, confidence, embedding, created_at)
		VALUES (:id, :image_id, :type, :label, :x, :y,
			:width, :height, :confidence, :embedding, :created_at)`

	for i := range objects {
		if objects[i].CreatedAt.IsZero() {
			objects[i].CreatedAt = time.Now()
		}
		if _, err := r.db.NamedExecContext(ctx, query, objects[i]); err != nil {
			return fmt.Errorf("failed to insert object: %w", err)
		}
	}
	return nil
}

// ListFacesByAlbum lists faces for one album, or across all images when
// albumID is empty (global grouping scope).
func (r *SQLRepo) ListFacesByAlbum(ctx context.Context, albumID string) ([]DetectedFace, error) {
	var faces []DetectedFace

	query := `
		SELECT f.id, f.image_id, f.x, f.y, f.width, f.height,
			f.confidence, f.embedding, f.face_group_id, f.created_at
		FROM detected_faces f
		ORDER BY f.created_at ASC, f.id ASC`
	args := []any{}
	if albumID != "" {
		query = `
			SELECT f.id, f.image_id, f.x, f.y, f.width, f.height,
				f.confidence, f.embedding, f.face_group_id, f.created_at
			FROM detected_faces f
			JOIN images i ON i.id = f.image_id
			WHERE i.album_id = $1
			ORDER BY f.created_at ASC, f.id ASC`
		args = append(args, albumID)
	}

	if err := r.db.SelectContext(ctx, &faces, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list faces: %w", err)
	}
	return faces, nil
}

func (r *SQLRepo) CountFaceGroups(ctx context.Context, albumID string) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM face_groups`
	args := []any{}
	if albumID != "" {
		query += ` WHERE album_id = $1`
		args = append(args, albumID)
	}

	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count face groups: %w", err)
	}
	return count, nil
}

func (r *SQLRepo) CreateFaceGroup(ctx context.Context, group *FaceGroup) error {
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO face_groups (id, album_id, face_count, suggested_name, created_at)
		VALUES (:id, :album_id, :face_count, :suggested_name, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("failed to create face group: %w", err)
	}
	return nil
}

func (r *SQLRepo) AssignFaceGroup(ctx context.Context, faceID, groupID string) error {
	query := `UPDATE detected_faces SET face_group_id = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, faceID, groupID); err != nil {
		return fmt.Errorf("failed to assign face group: %w", err)
	}

	query = `UPDATE face_groups SET face_count = face_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, groupID); err != nil {
		return fmt.Errorf("failed to bump face group count: %w", err)
	}
	return nil
}

func (r *SQLRepo) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if rows == 0 {
		return ErrImageNotFound
	}
	return nil
}
