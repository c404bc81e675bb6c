package repository

import (
	"github.com/holden-dev/photolibbackend/models"
)

// MediaRepositoryInterface defines the persistence boundary used by the
// ingestion and regeneration pipeline. All single-item writes are
// transactional; a row is never observable half-written.
type MediaRepositoryInterface interface {
	// FindByHash returns the non-trashed row with the given content hash,
	// or nil when no such row exists.
	FindByHash(contentHash string) (*models.Media, error)

	// Insert creates a new media row. A unique-constraint violation on the
	// content hash is reported as ErrDuplicateHash so callers can treat a
	// concurrent duplicate as a benign skip.
	Insert(media *models.Media) error

	GetByID(id uint) (*models.Media, error)
	Update(id uint, updates map[string]interface{}) error

	// UpdateDerived sets the thumbnail/preview paths for a row in one write.
	UpdateDerived(id uint, thumbnailPath, tinyThumbnailPath, previewPath *string) error

	// ListAllInBatches streams non-trashed rows to fn in fixed-size batches
	// so regeneration never materializes the whole library in memory.
	ListAllInBatches(batchSize int, fn func(batch []models.Media) error) error

	// ListMissingHash returns rows whose content hash was never computed.
	ListMissingHash() ([]models.Media, error)
	UpdateContentHash(id uint, contentHash string) error

	// ClearDerivedData nulls the derived-asset paths and every enrichment
	// field on one row. Identity (id, hash, filename, file path, size,
	// media type) is preserved.
	ClearDerivedData(id uint) error
	// ClearAllDerivedData does the same across every non-trashed row and
	// returns the number of rows touched.
	ClearAllDerivedData() (int64, error)

	// Delete moves a row to the trash (soft delete). The pipeline never
	// hard-deletes; purging is an explicit separate path.
	Delete(id uint) error

	Count() (int64, error)
}

// TagRepositoryInterface covers the keyword merge performed during
// regeneration.
type TagRepositoryInterface interface {
	// EnsureTag returns the id of the tag with the given name, creating it
	// if needed.
	EnsureTag(name string) (uint, error)
	// LinkMediaTag associates a tag with a media row, ignoring an existing
	// association. Returns true if a new link was made.
	LinkMediaTag(mediaID, tagID uint) (bool, error)
}
