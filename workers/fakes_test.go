package workers

import (
	"fmt"
	"strings"
	"sync"

	"github.com/holden-dev/photolibbackend/media"
	"github.com/holden-dev/photolibbackend/models"
	"github.com/holden-dev/photolibbackend/repository"
)

// memMediaRepo is an in-memory MediaRepositoryInterface for orchestrator
// tests. Column updates are applied so that successive jobs observe the
// persisted state, and recorded so tests can assert exactly what was written.
type memMediaRepo struct {
	mu        sync.Mutex
	nextID    uint
	rows      map[uint]*models.Media
	recorded  []map[string]interface{}
	insertErr error
}

func newMemMediaRepo() *memMediaRepo {
	return &memMediaRepo{rows: map[uint]*models.Media{}}
}

func (r *memMediaRepo) add(row models.Media) uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	row.ID = r.nextID
	r.rows[row.ID] = &row
	return row.ID
}

func (r *memMediaRepo) row(id uint) models.Media {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

func (r *memMediaRepo) updatesFor(id uint) map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged := map[string]interface{}{}
	for _, u := range r.recorded {
		if u["__id"] == id {
			for k, v := range u {
				if k != "__id" {
					merged[k] = v
				}
			}
		}
	}
	return merged
}

func (r *memMediaRepo) FindByHash(contentHash string) (*models.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ContentHash != nil && *row.ContentHash == contentHash && !row.DeletedAt.Valid {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memMediaRepo) Insert(m *models.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	if m.ContentHash != nil {
		for _, row := range r.rows {
			if row.ContentHash != nil && *row.ContentHash == *m.ContentHash {
				return repository.ErrDuplicateHash
			}
		}
	}
	r.nextID++
	m.ID = r.nextID
	copied := *m
	r.rows[m.ID] = &copied
	return nil
}

func (r *memMediaRepo) GetByID(id uint) (*models.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("media %d not found", id)
	}
	copied := *row
	return &copied, nil
}

func (r *memMediaRepo) Update(id uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("media %d not found", id)
	}
	record := map[string]interface{}{"__id": id}
	for col, val := range updates {
		record[col] = val
		applyColumn(row, col, val)
	}
	r.recorded = append(r.recorded, record)
	return nil
}

func (r *memMediaRepo) UpdateDerived(id uint, thumbnailPath, tinyThumbnailPath, previewPath *string) error {
	return r.Update(id, map[string]interface{}{
		"thumbnail_path":      thumbnailPath,
		"tiny_thumbnail_path": tinyThumbnailPath,
		"preview_path":        previewPath,
	})
}

func (r *memMediaRepo) ListAllInBatches(batchSize int, fn func(batch []models.Media) error) error {
	r.mu.Lock()
	var all []models.Media
	for id := uint(1); id <= r.nextID; id++ {
		if row, ok := r.rows[id]; ok && !row.DeletedAt.Valid {
			all = append(all, *row)
		}
	}
	r.mu.Unlock()

	if batchSize <= 0 {
		batchSize = 100
	}
	for start := 0; start < len(all); start += batchSize {
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *memMediaRepo) ListMissingHash() ([]models.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Media
	for id := uint(1); id <= r.nextID; id++ {
		if row, ok := r.rows[id]; ok && row.ContentHash == nil {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *memMediaRepo) UpdateContentHash(id uint, contentHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("media %d not found", id)
	}
	row.ContentHash = &contentHash
	return nil
}

func (r *memMediaRepo) ClearDerivedData(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("media %d not found", id)
	}
	clearRow(row)
	return nil
}

func (r *memMediaRepo) ClearAllDerivedData() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var affected int64
	for _, row := range r.rows {
		if !row.DeletedAt.Valid {
			clearRow(row)
			affected++
		}
	}
	return affected, nil
}

func (r *memMediaRepo) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memMediaRepo) Count() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

func clearRow(row *models.Media) {
	row.ThumbnailPath = nil
	row.TinyThumbnailPath = nil
	row.PreviewPath = nil
	row.MimeType = nil
	row.Width = nil
	row.Height = nil
	row.DurationSeconds = nil
	row.TakenAt = nil
	row.GPSLatitude = nil
	row.GPSLongitude = nil
	row.GPSAltitude = nil
	row.LocationCity = nil
	row.LocationState = nil
	row.LocationCountry = nil
	row.CameraMake = nil
	row.CameraModel = nil
	row.LensMake = nil
	row.LensModel = nil
	row.ISO = nil
	row.ExposureTime = nil
	row.FNumber = nil
	row.FocalLength = nil
	row.FocalLength35mm = nil
	row.VideoCodec = nil
	row.Keywords = nil
}

func applyColumn(row *models.Media, col string, val interface{}) {
	switch col {
	case "width":
		v := val.(int)
		row.Width = &v
	case "height":
		v := val.(int)
		row.Height = &v
	case "mime_type":
		v := val.(string)
		row.MimeType = &v
	case "duration_seconds":
		v := val.(float64)
		row.DurationSeconds = &v
	case "taken_at":
		v := val.(int64)
		row.TakenAt = &v
	case "gps_latitude":
		v := val.(float64)
		row.GPSLatitude = &v
	case "gps_longitude":
		v := val.(float64)
		row.GPSLongitude = &v
	case "gps_altitude":
		v := val.(float64)
		row.GPSAltitude = &v
	case "location_city":
		v := val.(string)
		row.LocationCity = &v
	case "location_state":
		v := val.(string)
		row.LocationState = &v
	case "location_country":
		v := val.(string)
		row.LocationCountry = &v
	case "camera_make":
		v := val.(string)
		row.CameraMake = &v
	case "camera_model":
		v := val.(string)
		row.CameraModel = &v
	case "keywords":
		v := val.(string)
		row.Keywords = &v
	case "thumbnail_path":
		v := val.(string)
		row.ThumbnailPath = &v
	case "tiny_thumbnail_path":
		v := val.(string)
		row.TinyThumbnailPath = &v
	case "preview_path":
		v := val.(string)
		row.PreviewPath = &v
	}
}

// memTagRepo is an in-memory TagRepositoryInterface
type memTagRepo struct {
	mu     sync.Mutex
	nextID uint
	tags   map[string]uint
	links  map[string]bool
}

func newMemTagRepo() *memTagRepo {
	return &memTagRepo{tags: map[string]uint{}, links: map[string]bool{}}
}

func (r *memTagRepo) EnsureTag(name string) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.tags[name]; ok {
		return id, nil
	}
	r.nextID++
	r.tags[name] = r.nextID
	return r.nextID, nil
}

func (r *memTagRepo) LinkMediaTag(mediaID, tagID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%d-%d", mediaID, tagID)
	if r.links[key] {
		return false, nil
	}
	r.links[key] = true
	return true, nil
}

// stubExtractor returns a fresh copy of its template per call and invokes the
// optional hook, which tests use to trigger cancellation mid-job.
type stubExtractor struct {
	template media.Metadata
	onCall   func(path string)
}

func (e *stubExtractor) Extract(filePath string, kind media.Kind) *media.Metadata {
	if e.onCall != nil {
		e.onCall(filePath)
	}
	copied := e.template
	return &copied
}

// stubRenderer produces fixed bytes, failing for paths that contain any of
// the configured markers.
type stubRenderer struct {
	failOn []string
}

func (r *stubRenderer) shouldFail(filePath string) bool {
	for _, marker := range r.failOn {
		if marker != "" && strings.Contains(filePath, marker) {
			return true
		}
	}
	return false
}

func (r *stubRenderer) RenderThumbnail(filePath string, kind media.Kind, maxSize, quality int) ([]byte, error) {
	if r.shouldFail(filePath) {
		return nil, fmt.Errorf("%w: stub renderer rejecting %s", media.ErrDecode, filePath)
	}
	return []byte("thumbnail"), nil
}

func (r *stubRenderer) RenderPreview(filePath string, kind media.Kind) (*media.RenderedPreview, error) {
	if r.shouldFail(filePath) {
		return nil, fmt.Errorf("%w: stub renderer rejecting %s", media.ErrDecode, filePath)
	}
	if kind == media.KindVideo {
		return &media.RenderedPreview{ReferenceOriginal: true}, nil
	}
	return &media.RenderedPreview{Bytes: []byte("preview")}, nil
}

// failingSaveStore wraps a real store and rejects writes of one asset type
type failingSaveStore struct {
	media.Store
	failType media.AssetType
}

func (s *failingSaveStore) SaveBytes(assetType media.AssetType, relativeDirHint, filenameHint string, data []byte) (string, error) {
	if assetType == s.failType {
		return "", fmt.Errorf("no space left for %s", assetType)
	}
	return s.Store.SaveBytes(assetType, relativeDirHint, filenameHint, data)
}

// stubGeocoder returns a fixed place and counts calls
type stubGeocoder struct {
	mu    sync.Mutex
	calls int
}

func (g *stubGeocoder) ReverseGeocode(lat, lon float64) (*string, *string, *string) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	city, state, country := "Paris", "Ile-de-France", "France"
	return &city, &state, &country
}

func (g *stubGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
