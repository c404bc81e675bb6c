package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/holden-dev/photolibbackend/models"
)

// ErrDuplicateHash is returned by Insert when another row already carries the
// same content hash. The orchestrator treats it as a skip, not a failure.
var ErrDuplicateHash = errors.New("media with identical content hash already exists")

// MediaRepository handles database operations for Media entities
type MediaRepository struct {
	DB *gorm.DB
}

// NewMediaRepository creates a new instance of MediaRepository
func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{DB: db}
}

// FindByHash retrieves a non-trashed media row by its content hash
func (r *MediaRepository) FindByHash(contentHash string) (*models.Media, error) {
	var media models.Media
	// GORM automatically excludes soft-deleted rows
	err := r.DB.Where("content_hash = ?", contentHash).First(&media).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find media by hash %s: %w", contentHash, err)
	}
	return &media, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Insert creates a media row inside its own transaction. A concurrent
// duplicate loses the race at the unique index and gets ErrDuplicateHash.
func (r *MediaRepository) Insert(media *models.Media) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(media).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateHash
		}
		return fmt.Errorf("failed to insert media %s: %w", media.OriginalFilename, err)
	}
	return nil
}

// GetByID retrieves a media row by its id
func (r *MediaRepository) GetByID(id uint) (*models.Media, error) {
	var media models.Media
	err := r.DB.First(&media, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get media %d: %w", id, err)
	}
	return &media, nil
}

// Update applies a patch of column -> value pairs to one row transactionally
func (r *MediaRepository) Update(id uint, updates map[string]interface{}) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.Media{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return fmt.Errorf("failed to update media %d: %w", id, err)
	}
	return nil
}

// UpdateDerived records the derived-asset paths for a row in one write
func (r *MediaRepository) UpdateDerived(id uint, thumbnailPath, tinyThumbnailPath, previewPath *string) error {
	updates := map[string]interface{}{
		"thumbnail_path":      thumbnailPath,
		"tiny_thumbnail_path": tinyThumbnailPath,
		"preview_path":        previewPath,
	}
	return r.Update(id, updates)
}

// ListAllInBatches streams the library to fn without loading it whole
func (r *MediaRepository) ListAllInBatches(batchSize int, fn func(batch []models.Media) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	var batch []models.Media
	result := r.DB.Order("id").FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	if result.Error != nil {
		return fmt.Errorf("failed to iterate media in batches: %w", result.Error)
	}
	return nil
}

// ListMissingHash returns rows created before content hashing existed
func (r *MediaRepository) ListMissingHash() ([]models.Media, error) {
	var rows []models.Media
	if err := r.DB.Where("content_hash IS NULL").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list media missing a content hash: %w", err)
	}
	return rows, nil
}

// UpdateContentHash backfills the content hash for one row
func (r *MediaRepository) UpdateContentHash(id uint, contentHash string) error {
	return r.Update(id, map[string]interface{}{"content_hash": contentHash})
}

// enrichment and derived-asset columns nulled by the reset path. Identity
// columns (content_hash, filename, original_filename, file_path, file_size,
// media_type) are deliberately absent.
var clearedColumns = map[string]interface{}{
	"thumbnail_path":      gorm.Expr("NULL"),
	"tiny_thumbnail_path": gorm.Expr("NULL"),
	"preview_path":        gorm.Expr("NULL"),
	"mime_type":           gorm.Expr("NULL"),
	"width":               gorm.Expr("NULL"),
	"height":              gorm.Expr("NULL"),
	"duration_seconds":    gorm.Expr("NULL"),
	"taken_at":            gorm.Expr("NULL"),
	"gps_latitude":        gorm.Expr("NULL"),
	"gps_longitude":       gorm.Expr("NULL"),
	"gps_altitude":        gorm.Expr("NULL"),
	"location_city":       gorm.Expr("NULL"),
	"location_state":      gorm.Expr("NULL"),
	"location_country":    gorm.Expr("NULL"),
	"camera_make":         gorm.Expr("NULL"),
	"camera_model":        gorm.Expr("NULL"),
	"lens_make":           gorm.Expr("NULL"),
	"lens_model":          gorm.Expr("NULL"),
	"iso":                 gorm.Expr("NULL"),
	"exposure_time":       gorm.Expr("NULL"),
	"f_number":            gorm.Expr("NULL"),
	"focal_length":        gorm.Expr("NULL"),
	"focal_length_35mm":   gorm.Expr("NULL"),
	"video_codec":         gorm.Expr("NULL"),
	"keywords":            gorm.Expr("NULL"),
}

// ClearDerivedData nulls derived assets and enrichment on one row
func (r *MediaRepository) ClearDerivedData(id uint) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.Media{}).Where("id = ?", id).Updates(clearedColumns).Error
	})
	if err != nil {
		return fmt.Errorf("failed to clear derived data for media %d: %w", id, err)
	}
	return nil
}

// ClearAllDerivedData nulls derived assets and enrichment on every row
func (r *MediaRepository) ClearAllDerivedData() (int64, error) {
	var affected int64
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Media{}).Where("1 = 1").Updates(clearedColumns)
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear derived data: %w", err)
	}
	return affected, nil
}

// Delete moves a media row to the trash (soft delete)
func (r *MediaRepository) Delete(id uint) error {
	result := r.DB.Delete(&models.Media{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to trash media %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Count returns the number of non-trashed rows
func (r *MediaRepository) Count() (int64, error) {
	var count int64
	if err := r.DB.Model(&models.Media{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count media: %w", err)
	}
	return count, nil
}
