package media

import (
	"path/filepath"
	"strings"
)

var supportedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true, ".heic": true, ".heif": true,
}

var supportedVideoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true, ".m4v": true,
}

var mimeByExtension = map[string]string{
	".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png",
	".gif": "image/gif", ".webp": "image/webp", ".bmp": "image/bmp",
	".tif": "image/tiff", ".tiff": "image/tiff", ".heic": "image/heic", ".heif": "image/heic",
	".mp4": "video/mp4", ".mov": "video/quicktime", ".avi": "video/x-msvideo",
	".mkv": "video/x-matroska", ".webm": "video/webm", ".m4v": "video/x-m4v",
}

// KindForPath classifies a file by extension
func KindForPath(filename string) Kind {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case supportedImageExtensions[ext]:
		return KindImage
	case supportedVideoExtensions[ext]:
		return KindVideo
	default:
		return KindUnknown
	}
}

// IsSupportedMedia reports whether the filename looks like an importable item
func IsSupportedMedia(filename string) bool {
	return KindForPath(filename) != KindUnknown
}

// MimeTypeForPath guesses a MIME type from the file extension, or nil
func MimeTypeForPath(filename string) *string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mime, ok := mimeByExtension[ext]; ok {
		return &mime
	}
	return nil
}
