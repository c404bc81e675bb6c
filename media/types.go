// media/types.go
package media

import "errors"

type AssetType string

const (
	AssetTypeOriginal      AssetType = "original"
	AssetTypeThumbnail     AssetType = "thumbnail"
	AssetTypeTinyThumbnail AssetType = "thumbnail_tiny"
	AssetTypePreview       AssetType = "preview"
	AssetTypeStaging       AssetType = "staging"
)

// Kind classifies a library item by its container family
type Kind string

const (
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindUnknown Kind = "unknown"
)

// ErrDecode marks a structurally broken source file (corrupt or unsupported
// codec). It is distinguishable from os.ErrNotExist so callers can tell a
// bad file apart from a missing one.
var ErrDecode = errors.New("media: failed to decode source file")

// Metadata contains everything the extractor can learn about one file.
// Every field is independently optional; a metadata-poor file produces a
// mostly-empty record, never an error.
type Metadata struct {
	Width           *int     `json:"width,omitempty"`
	Height          *int     `json:"height,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	MimeType        *string  `json:"mime_type,omitempty"`

	TakenAt      *int64   `json:"taken_at,omitempty"` // Unix timestamp
	GPSLatitude  *float64 `json:"gps_latitude,omitempty"`
	GPSLongitude *float64 `json:"gps_longitude,omitempty"`
	GPSAltitude  *float64 `json:"gps_altitude,omitempty"`

	CameraMake      *string  `json:"camera_make,omitempty"`
	CameraModel     *string  `json:"camera_model,omitempty"`
	LensMake        *string  `json:"lens_make,omitempty"`
	LensModel       *string  `json:"lens_model,omitempty"`
	ISO             *int     `json:"iso,omitempty"`
	ExposureTime    *string  `json:"exposure_time,omitempty"` // e.g., "1/125"
	FNumber         *float64 `json:"f_number,omitempty"`
	FocalLength     *float64 `json:"focal_length,omitempty"` // mm
	FocalLength35mm *float64 `json:"focal_length_35mm,omitempty"`
	VideoCodec      *string  `json:"video_codec,omitempty"`
	Keywords        *string  `json:"keywords,omitempty"` // comma-separated
}

// MetadataExtractor reads EXIF/container metadata from a file. Extraction
// must not fail for valid-but-metadata-poor files; whatever could be read is
// returned.
type MetadataExtractor interface {
	Extract(filePath string, kind Kind) *Metadata
}

// RenderedPreview is either inline preview bytes or a marker that the
// original stream should be served directly (videos, per configuration).
type RenderedPreview struct {
	Bytes             []byte
	ReferenceOriginal bool
}

// Renderer produces derived assets from a source file
type Renderer interface {
	// RenderThumbnail returns JPEG bytes bounded by maxSize on the longer
	// edge. Decode failures wrap ErrDecode.
	RenderThumbnail(filePath string, kind Kind, maxSize, quality int) ([]byte, error)
	// RenderPreview returns a web-optimized preview, or a reference to the
	// original stream for kinds that stream as-is.
	RenderPreview(filePath string, kind Kind) (*RenderedPreview, error)
}

// Geocoder resolves coordinates to human-readable place names. Failures are
// reported as all-nil results; enrichment is strictly best-effort.
type Geocoder interface {
	ReverseGeocode(latitude, longitude float64) (city, state, country *string)
}
