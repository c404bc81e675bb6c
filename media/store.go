package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store defines the interface for saving, retrieving, and deleting assets
// under the media storage root (originals, thumbnails, staging).
type Store interface {
	// Save stores data under assetType/relativeDirHint/filenameHint. An
	// empty filenameHint gets a generated UUID name with a .jpg extension.
	// Returns the path relative to the asset type root.
	Save(assetType AssetType, relativeDirHint string, filenameHint string, data io.Reader) (string, error)
	// SaveBytes is Save for in-memory derived assets
	SaveBytes(assetType AssetType, relativeDirHint string, filenameHint string, data []byte) (string, error)
	// Get retrieves a reader for an asset
	Get(assetType AssetType, relativePath string) (io.ReadCloser, os.FileInfo, error)
	// Delete removes an asset, tolerating absence
	Delete(assetType AssetType, relativePath string) error
	// GetFullPath returns the absolute filesystem path for an asset
	GetFullPath(assetType AssetType, relativePath string) (string, error)
	// EnsureDir makes sure an asset type directory exists
	EnsureDir(assetType AssetType) (string, error)
	// MoveIn relocates an outside file into the store (consuming the
	// source), falling back to copy+remove across filesystems.
	MoveIn(assetType AssetType, relativeDirHint string, filename string, sourcePath string) (string, error)
}

// LocalStorage implements the Store interface on the local filesystem
type LocalStorage struct {
	basePath        string               // absolute media storage root
	resolvedPathMap map[AssetType]string // AssetType -> absolute directory
}

// NewLocalStorage creates a local filesystem store rooted at basePath
func NewLocalStorage(basePath string, subDirs map[AssetType]string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	resolvedPaths := make(map[AssetType]string)
	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !strings.HasPrefix(filepath.Clean(fullPath), absBasePath) {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		resolvedPaths[assetType] = fullPath
	}

	log.Printf("media.store: initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{
		basePath:        absBasePath,
		resolvedPathMap: resolvedPaths,
	}, nil
}

func (ls *LocalStorage) assetTypeDir(assetType AssetType) (string, error) {
	dirPath, ok := ls.resolvedPathMap[assetType]
	if !ok {
		dirPath = filepath.Join(ls.basePath, string(assetType))
		if !strings.HasPrefix(filepath.Clean(dirPath), ls.basePath) {
			return "", fmt.Errorf("asset type '%s' resolves outside base path", assetType)
		}
		ls.resolvedPathMap[assetType] = dirPath
	}
	return dirPath, nil
}

// EnsureDir creates the directory for the asset type if it doesn't exist
func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dirPath, err := ls.assetTypeDir(assetType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

func (ls *LocalStorage) resolveTarget(assetType AssetType, relativeDirHint, filenameHint string) (string, string, error) {
	baseAssetDir, err := ls.EnsureDir(assetType)
	if err != nil {
		return "", "", err
	}

	targetDir := baseAssetDir
	if relativeDirHint != "" {
		targetDir = filepath.Join(baseAssetDir, relativeDirHint)
		if !strings.HasPrefix(filepath.Clean(targetDir), baseAssetDir) {
			return "", "", fmt.Errorf("invalid relative directory hint '%s'", relativeDirHint)
		}
		if err := os.MkdirAll(targetDir, 0755); err != nil {
			return "", "", fmt.Errorf("failed to create sub-directory '%s': %w", targetDir, err)
		}
	}

	if filenameHint == "" {
		filenameHint = uuid.NewString() + ".jpg"
	}

	fullPath := filepath.Join(targetDir, filenameHint)
	relativePath, err := filepath.Rel(baseAssetDir, fullPath)
	if err != nil {
		return "", "", fmt.Errorf("internal error calculating relative path: %w", err)
	}
	return fullPath, filepath.ToSlash(relativePath), nil
}

// Save streams data into the store
func (ls *LocalStorage) Save(assetType AssetType, relativeDirHint string, filenameHint string, data io.Reader) (string, error) {
	fullSavePath, relativePath, err := ls.resolveTarget(assetType, relativeDirHint, filenameHint)
	if err != nil {
		return "", err
	}

	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}

	return relativePath, nil
}

// SaveBytes stores an in-memory derived asset
func (ls *LocalStorage) SaveBytes(assetType AssetType, relativeDirHint string, filenameHint string, data []byte) (string, error) {
	return ls.Save(assetType, relativeDirHint, filenameHint, bytes.NewReader(data))
}

// MoveIn consumes sourcePath, relocating it under the asset type root
func (ls *LocalStorage) MoveIn(assetType AssetType, relativeDirHint string, filename string, sourcePath string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty for MoveIn")
	}
	fullDestPath, relativePath, err := ls.resolveTarget(assetType, relativeDirHint, filename)
	if err != nil {
		return "", err
	}

	if err := os.Rename(sourcePath, fullDestPath); err != nil {
		// cross-device rename fails; copy then remove
		src, openErr := os.Open(sourcePath)
		if openErr != nil {
			return "", fmt.Errorf("failed to move '%s' into store: %w", sourcePath, err)
		}
		defer src.Close()

		dst, createErr := os.Create(fullDestPath)
		if createErr != nil {
			return "", fmt.Errorf("failed to create destination '%s': %w", fullDestPath, createErr)
		}
		defer dst.Close()

		if _, copyErr := io.Copy(dst, src); copyErr != nil {
			os.Remove(fullDestPath)
			return "", fmt.Errorf("failed to copy '%s' into store: %w", sourcePath, copyErr)
		}
		src.Close()
		if removeErr := os.Remove(sourcePath); removeErr != nil {
			log.Printf("media.store: failed to remove source after copy '%s': %v", sourcePath, removeErr)
		}
	}

	return relativePath, nil
}

// Get opens an asset for reading
func (ls *LocalStorage) Get(assetType AssetType, relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(assetType, relativePath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("asset not found at '%s': %w", relativePath, err)
		}
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}

	return file, info, nil
}

// Delete removes an asset file, treating absence as success
func (ls *LocalStorage) Delete(assetType AssetType, relativePath string) error {
	fullPath, err := ls.GetFullPath(assetType, relativePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	return nil
}

// GetFullPath calculates the absolute path and performs a traversal check
func (ls *LocalStorage) GetFullPath(assetType AssetType, relativePath string) (string, error) {
	baseDir, err := ls.assetTypeDir(assetType)
	if err != nil {
		return "", err
	}

	cleanRelativePath := filepath.Clean(relativePath)
	fullPath := filepath.Join(baseDir, cleanRelativePath)

	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}

	if !strings.HasPrefix(absFullPath, baseDir) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}

	return absFullPath, nil
}
