package gallery

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"
)

// MemoryRepo implements Repo in memory with the same semantics as SQLRepo.
// Used in tests and brokerless local runs.
type MemoryRepo struct {
	mu      sync.Mutex
	images  map[string]*Image
	faces   map[string]*DetectedFace
	objects map[string]*DetectedObject
	groups  map[string]*FaceGroup
	seq     int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		images:  make(map[string]*Image),
		faces:   make(map[string]*DetectedFace),
		objects: make(map[string]*DetectedObject),
		groups:  make(map[string]*FaceGroup),
	}
}

func (r *MemoryRepo) CreateImage(ctx context.Context, img *Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	img.CreatedAt = now
	img.UpdatedAt = now
	if img.Status == "" {
		img.Status = ImageStatusUploaded
	}

	stored := *img
	r.images[img.ID] = &stored
	return nil
}

func (r *MemoryRepo) GetImage(ctx context.Context, id string) (*Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, ok := r.images[id]
	if !ok {
		return nil, ErrImageNotFound
	}
	copied := *img
	return &copied, nil
}

func (r *MemoryRepo) update(id string, fn func(*Image)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, ok := r.images[id]
	if !ok {
		return ErrImageNotFound
	}
	fn(img)
	img.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepo) SetOffloaded(ctx context.Context, id, location string) error {
	return r.update(id, func(img *Image) {
		img.TempPath = location
		img.Status = ImageStatusProcessing
	})
}

func (r *MemoryRepo) SetStatus(ctx context.Context, id, status string) error {
	return r.update(id, func(img *Image) {
		img.Status = status
	})
}

func (r *MemoryRepo) SetThumbnailPath(ctx context.Context, id, path string) error {
	return r.update(id, func(img *Image) {
		img.ThumbnailPath = sql.NullString{String: path, Valid: true}
	})
}

func (r *MemoryRepo) SetPreviewPath(ctx context.Context, id, path string) error {
	return r.update(id, func(img *Image) {
		img.PreviewPath = sql.NullString{String: path, Valid: true}
	})
}

func (r *MemoryRepo) SetDimensions(ctx context.Context, id string, width, height int, mimeType string) error {
	return r.update(id, func(img *Image) {
		img.Width = width
		img.Height = height
		img.MimeType = mimeType
	})
}

func (r *MemoryRepo) MarkStoredIfComplete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, ok := r.images[id]
	if !ok {
		return false, ErrImageNotFound
	}
	if img.Status == ImageStatusStored || !img.ThumbnailPath.Valid || !img.PreviewPath.Valid {
		return false, nil
	}
	img.Status = ImageStatusStored
	img.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryRepo) SaveExif(ctx context.Context, id string, exif Exif) error {
	return r.update(id, func(img *Image) {
		img.CameraMake = exif.CameraMake
		img.CameraModel = exif.CameraModel
		img.Software = exif.Software
		img.LensModel = exif.LensModel
		img.ExposureTime = exif.ExposureTime
		img.FNumber = exif.FNumber
		img.ISO = exif.ISO
		img.FocalLength = exif.FocalLength
		img.TakenAt = exif.TakenAt
		img.Latitude = exif.Latitude
		img.Longitude = exif.Longitude
		img.Altitude = exif.Altitude
	})
}

func (r *MemoryRepo) CountFaces(ctx context.Context, imageID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, face := range r.faces {
		if face.ImageID == imageID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepo) InsertFaces(ctx context.Context, faces []DetectedFace) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range faces {
		if faces[i].CreatedAt.IsZero() {
			r.seq++
			faces[i].CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Nanosecond)
		}
		stored := faces[i]
		r.faces[stored.ID] = &stored
	}
	return nil
}

func (r *MemoryRepo) CountObjects(ctx context.Context, imageID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, obj := range r.objects {
		if obj.ImageID == imageID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepo) InsertObjects(ctx context.Context, objects []DetectedObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range objects {
		if objects[i].CreatedAt.IsZero() {
			objects[i].CreatedAt = time.Now()
		}
		stored := objects[i]
		r.objects[stored.ID] = &stored
	}
	return nil
}

func (r *MemoryRepo) ListFacesByAlbum(ctx context.Context, albumID string) ([]DetectedFace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []DetectedFace
	for _, face := range r.faces {
		if albumID != "" {
			img, ok := r.images[face.ImageID]
			if !ok || img.AlbumID != albumID {
				continue
			}
		}
		result = append(result, *face)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *MemoryRepo) CountFaceGroups(ctx context.Context, albumID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, group := range r.groups {
		if albumID == "" || group.AlbumID == albumID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepo) CreateFaceGroup(ctx context.Context, group *FaceGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now()
	}
	stored := *group
	r.groups[group.ID] = &stored
	return nil
}

func (r *MemoryRepo) AssignFaceGroup(ctx context.Context, faceID, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	face, ok := r.faces[faceID]
	if !ok {
		return nil
	}
	face.FaceGroupID = sql.NullString{String: groupID, Valid: true}
	if group, ok := r.groups[groupID]; ok {
		group.FaceCount++
	}
	return nil
}

// FaceGroups returns all groups for inspection in tests
func (r *MemoryRepo) FaceGroups() []FaceGroup {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []FaceGroup
	for _, group := range r.groups {
		result = append(result, *group)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Faces returns all faces for inspection in tests
func (r *MemoryRepo) Faces() []DetectedFace {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []DetectedFace
	for _, face := range r.faces {
		result = append(result, *face)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Objects returns all detected objects for inspection in tests
func (r *MemoryRepo) Objects() []DetectedObject {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []DetectedObject
	for _, obj := range r.objects {
		result = append(result, *obj)
	}
	return result
}
