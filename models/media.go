package models

import "gorm.io/gorm"

// Media represents one unique library item in the 'media' table.
// Every enrichment field is nullable; absence of EXIF data is not an error.
type Media struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// ContentHash is the dedup key. Unique across non-purged rows; only
	// transiently null for rows created before hashing existed (backfilled
	// during regeneration).
	ContentHash *string `gorm:"uniqueIndex" json:"content_hash,omitempty"`

	Filename         string `gorm:"not null" json:"filename"`          // stored filename
	OriginalFilename string `gorm:"not null" json:"original_filename"` // name the file arrived with
	FilePath         string `gorm:"not null" json:"file_path"`         // path relative to the originals root

	ThumbnailPath     *string `gorm:"" json:"thumbnail_path,omitempty"`      // Nullable
	TinyThumbnailPath *string `gorm:"" json:"tiny_thumbnail_path,omitempty"` // Nullable
	PreviewPath       *string `gorm:"" json:"preview_path,omitempty"`        // Nullable, videos reference the original

	MediaType string  `gorm:"not null" json:"media_type"` // "image" or "video"
	MimeType  *string `gorm:"" json:"mime_type,omitempty"`

	Width           *int     `gorm:"" json:"width,omitempty"`
	Height          *int     `gorm:"" json:"height,omitempty"`
	FileSize        int64    `gorm:"not null" json:"file_size"`
	DurationSeconds *float64 `gorm:"" json:"duration_seconds,omitempty"` // video only

	TakenAt         *int64   `gorm:"index" json:"taken_at,omitempty"` // Unix timestamp
	GPSLatitude     *float64 `gorm:"" json:"gps_latitude,omitempty"`
	GPSLongitude    *float64 `gorm:"" json:"gps_longitude,omitempty"`
	GPSAltitude     *float64 `gorm:"" json:"gps_altitude,omitempty"`
	LocationCity    *string  `gorm:"" json:"location_city,omitempty"`
	LocationState   *string  `gorm:"" json:"location_state,omitempty"`
	LocationCountry *string  `gorm:"" json:"location_country,omitempty"`

	CameraMake      *string  `gorm:"" json:"camera_make,omitempty"`
	CameraModel     *string  `gorm:"" json:"camera_model,omitempty"`
	LensMake        *string  `gorm:"" json:"lens_make,omitempty"`
	LensModel       *string  `gorm:"" json:"lens_model,omitempty"`
	ISO             *int     `gorm:"" json:"iso,omitempty"`
	ExposureTime    *string  `gorm:"" json:"exposure_time,omitempty"` // e.g., "1/125"
	FNumber         *float64 `gorm:"" json:"f_number,omitempty"`
	FocalLength     *float64 `gorm:"" json:"focal_length,omitempty"` // mm
	FocalLength35mm *float64 `gorm:"column:focal_length_35mm" json:"focal_length_35mm,omitempty"`
	VideoCodec      *string  `gorm:"" json:"video_codec,omitempty"`
	Keywords        *string  `gorm:"" json:"keywords,omitempty"` // comma-separated

	CreatedAt int64          `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"` // trash; the pipeline never hard-deletes

	Tags []Tag `gorm:"many2many:media_tags" json:"tags,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Media) TableName() string {
	return "media"
}

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)
