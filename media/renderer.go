package media

import (
	"bytes"
	"fmt"
	"image"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	previewMaxSize     = 2048
	previewJpegQuality = 85
)

// ImagingRenderer is the production Renderer. Images are decoded and resized
// with the imaging library; video thumbnails go through a single ffmpeg frame
// extract and then the image path.
type ImagingRenderer struct {
	// TempDir receives intermediate video frames; defaults to os.TempDir
	TempDir string
	// VideoFrameQuality is the ffmpeg -q:v value for the extracted frame
	VideoFrameQuality int
}

func NewImagingRenderer(tempDir string, videoFrameQuality int) *ImagingRenderer {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if videoFrameQuality <= 0 {
		videoFrameQuality = 2
	}
	return &ImagingRenderer{TempDir: tempDir, VideoFrameQuality: videoFrameQuality}
}

// RenderThumbnail returns JPEG bytes bounded by maxSize on the longer edge
func (r *ImagingRenderer) RenderThumbnail(filePath string, kind Kind, maxSize, quality int) ([]byte, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("renderer: source file unavailable: %w", err)
	}

	sourcePath := filePath
	if kind == KindVideo {
		framePath, err := r.extractVideoFrame(filePath)
		if err != nil {
			return nil, err
		}
		defer os.Remove(framePath)
		sourcePath = framePath
	}

	return renderJpegBounded(sourcePath, maxSize, quality)
}

// RenderPreview produces a web-optimized rendition. Videos reference the
// original stream rather than materializing a second file.
func (r *ImagingRenderer) RenderPreview(filePath string, kind Kind) (*RenderedPreview, error) {
	if kind == KindVideo {
		return &RenderedPreview{ReferenceOriginal: true}, nil
	}

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("renderer: source file unavailable: %w", err)
	}

	data, err := renderJpegBounded(filePath, previewMaxSize, previewJpegQuality)
	if err != nil {
		return nil, err
	}
	return &RenderedPreview{Bytes: data}, nil
}

func renderJpegBounded(sourcePath string, maxSize, quality int) ([]byte, error) {
	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, sourcePath, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxSize || bounds.Dy() > maxSize {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("renderer: failed to encode thumbnail for %s: %w", sourcePath, err)
	}
	return buf.Bytes(), nil
}

// extractVideoFrame grabs one frame at 10% of the duration (capped at 5s)
func (r *ImagingRenderer) extractVideoFrame(filePath string) (string, error) {
	seek := 0.0
	if duration := probeVideoDuration(filePath); duration > 0 {
		seek = duration * 0.1
		if seek > 5.0 {
			seek = 5.0
		}
	}

	framePath := filepath.Join(r.TempDir, uuid.NewString()+".jpg")
	cmd := exec.Command("ffmpeg",
		"-y",
		"-ss", strconv.FormatFloat(seek, 'f', 2, 64),
		"-i", filePath,
		"-vframes", "1",
		"-q:v", strconv.Itoa(r.VideoFrameQuality),
		framePath,
	)
	if err := cmd.Run(); err != nil {
		os.Remove(framePath)
		return "", fmt.Errorf("%w: ffmpeg frame extract failed for %s: %v", ErrDecode, filePath, err)
	}
	if _, err := os.Stat(framePath); err != nil {
		return "", fmt.Errorf("%w: ffmpeg produced no frame for %s", ErrDecode, filePath)
	}
	return framePath, nil
}

func probeVideoDuration(filePath string) float64 {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		filePath,
	).Output()
	if err != nil {
		return 0
	}
	duration, err := strconv.ParseFloat(string(bytes.TrimSpace(out)), 64)
	if err != nil {
		log.Printf("renderer: unparsable duration for %s: %v", filePath, err)
		return 0
	}
	return duration
}

// decodeBounds reads image dimensions without a full decode.
func decodeBounds(filePath string) (int, int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()
	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return config.Width, config.Height, nil
}
