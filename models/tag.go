package models

// Tag is a free-text keyword merged from EXIF/IPTC keyword fields during
// regeneration.
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

func (Tag) TableName() string {
	return "tags"
}
