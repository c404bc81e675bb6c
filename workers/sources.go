package workers

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/facette/natsort"
	"github.com/google/uuid"
	"github.com/studio-b12/gowebdav"

	"github.com/holden-dev/photolibbackend/config"
	"github.com/holden-dev/photolibbackend/media"
)

// ErrSourceUnavailable means the whole import source cannot be enumerated.
// It is a job-level failure; no items run.
var ErrSourceUnavailable = errors.New("import source unavailable")

// ImportItem is one candidate file offered by an import source
type ImportItem interface {
	// Name is the file's original name, used for logging and as the
	// original_filename column
	Name() string
	// Stage makes the file available on the local filesystem and returns
	// its path. Failures are item failures, not job failures.
	Stage() (string, error)
	// Discard cleans up whatever staging left behind. Safe to call after
	// the staged file was consumed.
	Discard()
}

// ImportSource enumerates candidate files for an import job
type ImportSource interface {
	Name() string
	Enumerate() ([]ImportItem, error)
}

// LocalStagingSource walks a fixed staging directory tree. Import from it is
// consuming: committed files are moved, not copied, out of staging.
type LocalStagingSource struct {
	Root string
}

func NewLocalStagingSource(root string) *LocalStagingSource {
	return &LocalStagingSource{Root: root}
}

func (s *LocalStagingSource) Name() string { return "local staging" }

// Enumerate yields supported files under Root in natural-sort order
func (s *LocalStagingSource) Enumerate() ([]ImportItem, error) {
	info, err := os.Stat(s.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: staging directory %s: %v", ErrSourceUnavailable, s.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: staging path %s is not a directory", ErrSourceUnavailable, s.Root)
	}

	var paths []string
	err = filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && media.IsSupportedMedia(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to walk staging directory %s: %v", ErrSourceUnavailable, s.Root, err)
	}

	natsort.Sort(paths)

	items := make([]ImportItem, len(paths))
	for i, p := range paths {
		items[i] = &localImportItem{path: p}
	}
	return items, nil
}

type localImportItem struct {
	path string
}

func (i *localImportItem) Name() string { return filepath.Base(i.path) }

func (i *localImportItem) Stage() (string, error) { return i.path, nil }

func (i *localImportItem) Discard() {
	if err := os.Remove(i.path); err != nil && !os.IsNotExist(err) {
		log.Printf("source: failed to remove staged file %s: %v", i.path, err)
	}
}

// WebDAVSource lists a remote share recursively and downloads each file to
// local staging before the common per-item pipeline runs. Per-file network
// failures are item failures; an unreachable share is a job failure.
type WebDAVSource struct {
	cfg        config.WebDAVConfig
	stagingDir string
	client     *gowebdav.Client
}

func NewWebDAVSource(cfg config.WebDAVConfig, stagingDir string) *WebDAVSource {
	return &WebDAVSource{
		cfg:        cfg,
		stagingDir: stagingDir,
		client:     gowebdav.NewClient(cfg.Hostname, cfg.Username, cfg.Password),
	}
}

func (s *WebDAVSource) Name() string { return "webdav " + s.cfg.Hostname }

func (s *WebDAVSource) Enumerate() ([]ImportItem, error) {
	if err := s.client.Connect(); err != nil {
		return nil, fmt.Errorf("%w: webdav host %s: %v", ErrSourceUnavailable, s.cfg.Hostname, err)
	}

	var items []ImportItem
	if err := s.walk(s.cfg.RemotePath, &items); err != nil {
		return nil, fmt.Errorf("%w: failed to list webdav path %s: %v", ErrSourceUnavailable, s.cfg.RemotePath, err)
	}
	return items, nil
}

func (s *WebDAVSource) walk(remotePath string, items *[]ImportItem) error {
	entries, err := s.client.ReadDir(remotePath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		childPath := filepath.ToSlash(filepath.Join(remotePath, entry.Name()))
		if entry.IsDir() {
			if err := s.walk(childPath, items); err != nil {
				return err
			}
			continue
		}
		if media.IsSupportedMedia(entry.Name()) {
			*items = append(*items, &webdavImportItem{
				client:     s.client,
				remotePath: childPath,
				stagingDir: s.stagingDir,
			})
		}
	}
	return nil
}

type webdavImportItem struct {
	client     *gowebdav.Client
	remotePath string
	stagingDir string
	localPath  string
}

func (i *webdavImportItem) Name() string { return filepath.Base(i.remotePath) }

// Stage downloads the remote file into local staging
func (i *webdavImportItem) Stage() (string, error) {
	if err := os.MkdirAll(i.stagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory %s: %w", i.stagingDir, err)
	}

	reader, err := i.client.ReadStream(i.remotePath)
	if err != nil {
		return "", fmt.Errorf("failed to open webdav stream for %s: %w", i.remotePath, err)
	}
	defer reader.Close()

	localPath := filepath.Join(i.stagingDir, uuid.NewString()[:8]+"_"+i.Name())
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create staging file %s: %w", localPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("failed to download %s: %w", i.remotePath, err)
	}

	i.localPath = localPath
	return localPath, nil
}

// Discard removes the downloaded copy; the remote file is left untouched
func (i *webdavImportItem) Discard() {
	if i.localPath == "" {
		return
	}
	if err := os.Remove(i.localPath); err != nil && !os.IsNotExist(err) {
		log.Printf("source: failed to remove downloaded file %s: %v", i.localPath, err)
	}
}
