package media

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/rwcarlsen/goexif/exif"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ExifExtractor is the production MetadataExtractor. Images are read with
// goexif plus image.DecodeConfig for dimensions; videos go through ffprobe.
type ExifExtractor struct{}

func NewExifExtractor() *ExifExtractor {
	return &ExifExtractor{}
}

// Extract never fails: whatever could not be read stays nil
func (e *ExifExtractor) Extract(filePath string, kind Kind) *Metadata {
	var meta *Metadata
	switch kind {
	case KindVideo:
		meta = extractVideoMetadata(filePath)
	default:
		meta = extractImageMetadata(filePath)
	}

	if meta.MimeType == nil {
		meta.MimeType = MimeTypeForPath(filePath)
	}
	if meta.TakenAt == nil {
		meta.TakenAt = fileModTime(filePath)
	}
	return meta
}

func fileModTime(filePath string) *int64 {
	info, err := os.Stat(filePath)
	if err != nil {
		now := time.Now().Unix()
		return &now
	}
	ts := info.ModTime().Unix()
	return &ts
}

// helper to safely get and convert a rational tag (like FNumber, FocalLength)
func getRational(exifData *exif.Exif, tagName exif.FieldName) *float64 {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	// rational numbers are often stored as num/den
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		// sometimes stored as Int instead
		valInt, errInt := tag.Int(0)
		if errInt == nil {
			fVal := float64(valInt)
			return &fVal
		}
		return nil
	}
	val := float64(num) / float64(den)
	return &val
}

// helper to safely get and convert an integer tag (like ISO)
func getInt(exifData *exif.Exif, tagName exif.FieldName) *int {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	// ISO might be a slice, get the first value
	val, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &val
}

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val := strings.Trim(strings.TrimSpace(tag.String()), "\"\x00")
	if val == "" {
		return nil
	}
	return &val
}

// helper to get ExposureTime, formatted the conventional photographic way
func getExposureTime(exifData *exif.Exif) *string {
	tag, err := exifData.Get(exif.ExposureTime)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}

	val := float64(num) / float64(den)
	if val > 0 && val < 1.0 {
		s := fmt.Sprintf("1/%d", int(1.0/val+0.5))
		return &s
	}
	s := fmt.Sprintf("%g", val)
	return &s
}

// getXPKeywords decodes the UTF-16LE XPKeywords tag into a comma-separated
// string. XP fields use semicolons as separators.
func getXPKeywords(exifData *exif.Exif) *string {
	tag, err := exifData.Get(exif.XPKeywords)
	if err != nil || tag == nil || len(tag.Val) < 2 || len(tag.Val)%2 != 0 {
		return nil
	}
	codes := make([]uint16, 0, len(tag.Val)/2)
	for i := 0; i+1 < len(tag.Val); i += 2 {
		codes = append(codes, uint16(tag.Val[i])|uint16(tag.Val[i+1])<<8)
	}
	decoded := strings.Trim(string(utf16.Decode(codes)), "\x00")
	decoded = strings.ReplaceAll(decoded, ";", ",")
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return nil
	}
	return &decoded
}

// getGPSAltitude reads altitude in metres, negative below sea level
func getGPSAltitude(exifData *exif.Exif) *float64 {
	alt := getRational(exifData, exif.GPSAltitude)
	if alt == nil {
		return nil
	}
	if ref, err := exifData.Get(exif.GPSAltitudeRef); err == nil && ref != nil {
		if v, err := ref.Int(0); err == nil && v == 1 {
			neg := -*alt
			return &neg
		}
	}
	return alt
}

// validCoordinates discards out-of-range GPS values instead of storing them
func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func extractImageMetadata(filePath string) *Metadata {
	meta := &Metadata{}

	if w, h, err := decodeBounds(filePath); err == nil {
		meta.Width = &w
		meta.Height = &h
	} else {
		log.Printf("metadata: could not decode dimensions of %s: %v", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		log.Printf("metadata: failed to open %s: %v", filePath, err)
		return meta
	}
	defer file.Close()

	exifData, err := exif.Decode(file)
	if err != nil {
		// not an error, the file might just lack an EXIF block
		return meta
	}

	meta.CameraMake = getString(exifData, exif.Make)
	meta.CameraModel = getString(exifData, exif.Model)
	meta.LensMake = getString(exifData, exif.LensMake)
	meta.LensModel = getString(exifData, exif.LensModel)
	meta.ISO = getInt(exifData, exif.ISOSpeedRatings)
	meta.ExposureTime = getExposureTime(exifData)
	meta.FNumber = getRational(exifData, exif.FNumber)
	meta.FocalLength = getRational(exifData, exif.FocalLength)
	meta.FocalLength35mm = getRational(exifData, exif.FocalLengthIn35mmFilm)
	meta.Keywords = getXPKeywords(exifData)

	if dt, err := exifData.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}

	if lat, lon, err := exifData.LatLong(); err == nil {
		if validCoordinates(lat, lon) {
			meta.GPSLatitude = &lat
			meta.GPSLongitude = &lon
			meta.GPSAltitude = getGPSAltitude(exifData)
		} else {
			log.Printf("metadata: discarding out-of-range coordinates (%f, %f) for %s", lat, lon, filePath)
		}
	}

	return meta
}
