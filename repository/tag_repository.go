package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/holden-dev/photolibbackend/models"
)

// TagRepository handles database operations for Tag entities
type TagRepository struct {
	DB *gorm.DB
}

// NewTagRepository creates a new instance of TagRepository
func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{DB: db}
}

// EnsureTag finds or creates a tag by name and returns its id
func (r *TagRepository) EnsureTag(name string) (uint, error) {
	tag := models.Tag{Name: name}
	err := r.DB.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error
	if err != nil {
		return 0, fmt.Errorf("failed to ensure tag %q: %w", name, err)
	}
	return tag.ID, nil
}

// LinkMediaTag inserts a media<->tag association unless it already exists
func (r *TagRepository) LinkMediaTag(mediaID, tagID uint) (bool, error) {
	var existing int64
	err := r.DB.Table("media_tags").
		Where("media_id = ? AND tag_id = ?", mediaID, tagID).
		Count(&existing).Error
	if err != nil {
		return false, fmt.Errorf("failed to check media_tags link: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	err = r.DB.Exec("INSERT INTO media_tags (media_id, tag_id) VALUES (?, ?)", mediaID, tagID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to link tag %d to media %d: %w", tagID, mediaID, err)
	}
	return true, nil
}
