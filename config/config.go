package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	DefaultOriginalsSubDir      = "originals"
	DefaultThumbnailsSubDir     = "thumbnails"
	DefaultTinyThumbnailsSubDir = "thumbnails_tiny"
	DefaultPreviewsSubDir       = "previews"
	DefaultImportsSubDir        = "imports"
	DefaultFrameCacheSubDir     = "frame_cache"
)

const (
	defaultThumbnailMaxSize  = 1200
	defaultTinyThumbnailSize = 300
	defaultThumbnailQuality  = 85
	defaultVideoFrameQuality = 2
	defaultGeocodeTimeout    = 10
)

// ReverseGeocodingConfig controls the optional coordinates -> place lookup
// performed during metadata enrichment.
type ReverseGeocodingConfig struct {
	Enabled          bool    `yaml:"enabled"`
	BaseURL          string  `yaml:"base_url"`
	UserAgent        string  `yaml:"user_agent"`
	TimeoutSeconds   int     `yaml:"timeout_seconds"`
	RateLimitSeconds float64 `yaml:"rate_limit_seconds"`
}

// WebDAVConfig holds credentials for the remote import source
type WebDAVConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Hostname   string `yaml:"hostname"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	RemotePath string `yaml:"remote_path"`
}

type Config struct {
	// database path
	DatabasePath string

	// media storage configuration
	MediaStoragePath   string // primary root for originals and generated assets
	OriginalsPath      string // full-calculated path for permanent originals
	ThumbnailsPath     string // full-calculated path for thumbnails
	TinyThumbnailsPath string // full-calculated path for grid-size thumbnails
	PreviewsPath       string // full-calculated path for web-optimized previews
	ImportsPath        string // full-calculated path for the import staging area
	FrameCachePath     string // scratch space for extracted video frames, outside staging

	// thumbnail generation settings
	ThumbnailMaxSize  int `yaml:"thumbnail_max_size"`
	TinyThumbnailSize int `yaml:"tiny_thumbnail_size"`
	ThumbnailQuality  int `yaml:"thumbnail_quality"`
	VideoFrameQuality int `yaml:"video_frame_quality"`

	ReverseGeocoding ReverseGeocodingConfig `yaml:"reverse_geocoding"`
	WebDAV           WebDAVConfig           `yaml:"webdav"`

	// cron expression for periodic missing-only regeneration; empty disables it
	RegenerationSchedule string `yaml:"regeneration_schedule"`
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvBool(envVar string) bool {
	valStr := os.Getenv(envVar)
	return valStr == "1" || valStr == "true" || valStr == "yes"
}

// settingsFile mirrors the YAML settings document. Only the tunables live
// here; storage paths stay environment-driven.
type settingsFile struct {
	ThumbnailMaxSize     int                    `yaml:"thumbnail_max_size"`
	TinyThumbnailSize    int                    `yaml:"tiny_thumbnail_size"`
	ThumbnailQuality     int                    `yaml:"thumbnail_quality"`
	VideoFrameQuality    int                    `yaml:"video_frame_quality"`
	ReverseGeocoding     *ReverseGeocodingConfig `yaml:"reverse_geocoding"`
	WebDAV               *WebDAVConfig           `yaml:"webdav"`
	RegenerationSchedule string                 `yaml:"regeneration_schedule"`
}

func applySettingsFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	var settings settingsFile
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	if settings.ThumbnailMaxSize > 0 {
		cfg.ThumbnailMaxSize = settings.ThumbnailMaxSize
	}
	if settings.TinyThumbnailSize > 0 {
		cfg.TinyThumbnailSize = settings.TinyThumbnailSize
	}
	if settings.ThumbnailQuality > 0 {
		cfg.ThumbnailQuality = settings.ThumbnailQuality
	}
	if settings.VideoFrameQuality > 0 {
		cfg.VideoFrameQuality = settings.VideoFrameQuality
	}
	if settings.ReverseGeocoding != nil {
		cfg.ReverseGeocoding = *settings.ReverseGeocoding
	}
	if settings.WebDAV != nil {
		cfg.WebDAV = *settings.WebDAV
	}
	if settings.RegenerationSchedule != "" {
		cfg.RegenerationSchedule = settings.RegenerationSchedule
	}
	return nil
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "library.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	originalsSubDir := getEnvOrDefault("ORIGINALS_SUBDIR", DefaultOriginalsSubDir)
	thumbSubDir := getEnvOrDefault("THUMBNAILS_SUBDIR", DefaultThumbnailsSubDir)
	tinyThumbSubDir := getEnvOrDefault("TINY_THUMBNAILS_SUBDIR", DefaultTinyThumbnailsSubDir)
	previewsSubDir := getEnvOrDefault("PREVIEWS_SUBDIR", DefaultPreviewsSubDir)
	importsSubDir := getEnvOrDefault("IMPORTS_SUBDIR", DefaultImportsSubDir)
	frameCacheSubDir := getEnvOrDefault("FRAME_CACHE_SUBDIR", DefaultFrameCacheSubDir)

	cfg := Config{
		DatabasePath:       dbPath,
		MediaStoragePath:   absMediaStorage,
		OriginalsPath:      filepath.Join(absMediaStorage, originalsSubDir),
		ThumbnailsPath:     filepath.Join(absMediaStorage, thumbSubDir),
		TinyThumbnailsPath: filepath.Join(absMediaStorage, tinyThumbSubDir),
		PreviewsPath:       filepath.Join(absMediaStorage, previewsSubDir),
		ImportsPath:        filepath.Join(absMediaStorage, importsSubDir),
		FrameCachePath:     filepath.Join(absMediaStorage, frameCacheSubDir),
		ThumbnailMaxSize:   getEnvIntOrDefault("THUMBNAIL_MAX_SIZE", defaultThumbnailMaxSize),
		TinyThumbnailSize:  getEnvIntOrDefault("TINY_THUMBNAIL_SIZE", defaultTinyThumbnailSize),
		ThumbnailQuality:   getEnvIntOrDefault("THUMBNAIL_QUALITY", defaultThumbnailQuality),
		VideoFrameQuality:  getEnvIntOrDefault("VIDEO_FRAME_QUALITY", defaultVideoFrameQuality),
		ReverseGeocoding: ReverseGeocodingConfig{
			Enabled:          getEnvBool("REVERSE_GEOCODING_ENABLED"),
			BaseURL:          getEnvOrDefault("REVERSE_GEOCODING_URL", "https://nominatim.openstreetmap.org/reverse"),
			UserAgent:        getEnvOrDefault("REVERSE_GEOCODING_USER_AGENT", "photolibbackend/1.0"),
			TimeoutSeconds:   getEnvIntOrDefault("REVERSE_GEOCODING_TIMEOUT", defaultGeocodeTimeout),
			RateLimitSeconds: 1.0,
		},
		WebDAV: WebDAVConfig{
			Enabled:    getEnvBool("WEBDAV_IMPORT_ENABLED"),
			Hostname:   os.Getenv("WEBDAV_HOSTNAME"),
			Username:   os.Getenv("WEBDAV_USERNAME"),
			Password:   os.Getenv("WEBDAV_PASSWORD"),
			RemotePath: getEnvOrDefault("WEBDAV_REMOTE_PATH", "/"),
		},
		RegenerationSchedule: os.Getenv("REGENERATION_SCHEDULE"),
	}

	if settingsPath := os.Getenv("SETTINGS_FILE"); settingsPath != "" {
		if err := applySettingsFile(&cfg, settingsPath); err != nil {
			return Config{}, err
		}
		log.Printf("Applied settings overrides from %s", settingsPath)
	}

	return cfg, nil
}
