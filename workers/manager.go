package workers

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/holden-dev/photolibbackend/config"
	"github.com/holden-dev/photolibbackend/media"
	"github.com/holden-dev/photolibbackend/repository"
)

var (
	// ErrAlreadyRunning is returned by every Start* operation while a job
	// is active. No state changes and no work happens.
	ErrAlreadyRunning = errors.New("another job is already running")
	// ErrNotRunning is returned by Cancel when there is nothing to cancel
	ErrNotRunning = errors.New("no job is running")
	// ErrWebDAVDisabled is returned when a WebDAV import is requested but
	// no remote source is configured
	ErrWebDAVDisabled = errors.New("webdav import is not configured")
)

type jobKind int

const (
	jobNone jobKind = iota
	jobImport
	jobRegeneration
)

// JobManager owns the single active background job. Exactly one import or
// regeneration may run system-wide; the claim in startJob is the only
// cross-run shared mutable state.
type JobManager struct {
	cfg       config.Config
	store     media.Store
	mediaRepo repository.MediaRepositoryInterface
	tagRepo   repository.TagRepositoryInterface
	extractor media.MetadataExtractor
	renderer  media.Renderer
	geocoder  media.Geocoder // nil when reverse geocoding is disabled

	hashFile func(string) (string, error)
	now      func() time.Time

	mu           sync.RWMutex // guards active and both status records
	active       jobKind
	importStatus ImportStatus
	regenStatus  RegenerationStatus

	cancelRequested atomic.Bool
	wg              sync.WaitGroup
}

// NewJobManager wires the pipeline's capabilities together. geocoder may be
// nil to disable reverse geocoding.
func NewJobManager(
	cfg config.Config,
	store media.Store,
	mediaRepo repository.MediaRepositoryInterface,
	tagRepo repository.TagRepositoryInterface,
	extractor media.MetadataExtractor,
	renderer media.Renderer,
	geocoder media.Geocoder,
) *JobManager {
	return &JobManager{
		cfg:          cfg,
		store:        store,
		mediaRepo:    mediaRepo,
		tagRepo:      tagRepo,
		extractor:    extractor,
		renderer:     renderer,
		geocoder:     geocoder,
		hashFile:     media.HashFile,
		now:          time.Now,
		importStatus: ImportStatus{State: JobIdle},
		regenStatus:  RegenerationStatus{State: JobIdle},
	}
}

// startJob atomically claims the single-job slot. It is the check-and-set
// that prevents two triggers from both believing they started a job.
func (m *JobManager) startJob(kind jobKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != jobNone {
		return ErrAlreadyRunning
	}

	m.active = kind
	m.cancelRequested.Store(false)
	startedAt := m.now()

	switch kind {
	case jobImport:
		m.importStatus = ImportStatus{State: JobRunning, StartedAt: &startedAt, Errors: []string{}}
	case jobRegeneration:
		m.regenStatus = RegenerationStatus{State: JobRunning, StartedAt: &startedAt, Errors: []string{}}
	}
	return nil
}

// StartLocalImport begins importing from the configured staging directory
func (m *JobManager) StartLocalImport() error {
	return m.startImport(NewLocalStagingSource(m.cfg.ImportsPath))
}

// StartWebDAVImport begins importing from the configured remote share
func (m *JobManager) StartWebDAVImport() error {
	if !m.cfg.WebDAV.Enabled {
		return ErrWebDAVDisabled
	}
	return m.startImport(NewWebDAVSource(m.cfg.WebDAV, m.cfg.ImportsPath))
}

func (m *JobManager) startImport(source ImportSource) error {
	if err := m.startJob(jobImport); err != nil {
		return err
	}
	m.wg.Add(1)
	go m.runImport(source)
	return nil
}

// StartRegeneration begins re-deriving metadata/thumbnails over the library.
// With missingOnly, items that already have both metadata and a thumbnail
// are skipped without being re-read.
func (m *JobManager) StartRegeneration(missingOnly bool) error {
	if err := m.startJob(jobRegeneration); err != nil {
		return err
	}
	m.wg.Add(1)
	go m.runRegeneration(missingOnly, false)
	return nil
}

// StartReset clears every derived asset and enrichment field (identity is
// preserved) and then regenerates the whole library.
func (m *JobManager) StartReset() error {
	if err := m.startJob(jobRegeneration); err != nil {
		return err
	}
	m.wg.Add(1)
	go m.runRegeneration(false, true)
	return nil
}

// Cancel requests cooperative cancellation of the running job. The in-flight
// item finishes; committed items are kept.
func (m *JobManager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == jobNone {
		return ErrNotRunning
	}
	m.cancelRequested.Store(true)
	return nil
}

// ImportSnapshot returns a copy of the import status safe for concurrent use
func (m *JobManager) ImportSnapshot() ImportStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyImportStatus(m.importStatus)
}

// RegenerationSnapshot returns a copy of the regeneration status
func (m *JobManager) RegenerationSnapshot() RegenerationStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyRegenerationStatus(m.regenStatus)
}

// Wait blocks until the current background job (if any) finishes. Used by
// shutdown and tests.
func (m *JobManager) Wait() {
	m.wg.Wait()
}

func copyImportStatus(s ImportStatus) ImportStatus {
	out := s
	out.Errors = append([]string(nil), s.Errors...)
	return out
}

func copyRegenerationStatus(s RegenerationStatus) RegenerationStatus {
	out := s
	out.Errors = append([]string(nil), s.Errors...)
	return out
}
