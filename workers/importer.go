package workers

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/holden-dev/photolibbackend/media"
	"github.com/holden-dev/photolibbackend/models"
	"github.com/holden-dev/photolibbackend/repository"
)

// runImport is the single background goroutine of an import job. It always
// lands the status record in a terminal state, even on panic.
func (m *JobManager) runImport(source ImportSource) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker: import job panicked: %v", r)
			m.finishImport(JobFailed, fmt.Sprintf("internal error: %v", r))
		}
	}()

	log.Printf("worker: starting import from %s", source.Name())

	items, err := source.Enumerate()
	if err != nil {
		log.Printf("worker: import enumeration failed: %v", err)
		m.finishImport(JobFailed, err.Error())
		return
	}

	m.mu.Lock()
	m.importStatus.TotalFiles = len(items)
	m.mu.Unlock()

	for _, item := range items {
		if m.cancelRequested.Load() {
			log.Printf("worker: import cancelled after %d of %d files", m.ImportSnapshot().ProcessedFiles, len(items))
			m.finishImport(JobCancelled, "")
			return
		}
		m.importOne(item)
	}

	m.mu.Lock()
	status := m.importStatus
	m.mu.Unlock()

	finalState := JobCompleted
	if status.TotalFiles > 0 && status.FailedImports == status.TotalFiles {
		finalState = JobFailed
	}
	log.Printf("worker: import finished: %d imported, %d skipped, %d failed of %d",
		status.SuccessfulImports, status.SkippedDuplicates, status.FailedImports, status.TotalFiles)
	m.finishImport(finalState, "")
}

// importOne runs the per-file pipeline and folds the result into the status
// record. An individual failure never stops the job.
func (m *JobManager) importOne(item ImportItem) {
	outcome, err := m.runImportItem(item)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.importStatus.ProcessedFiles++
	switch outcome {
	case importOutcomeSuccess:
		m.importStatus.SuccessfulImports++
	case importOutcomeDuplicate:
		m.importStatus.SkippedDuplicates++
	case importOutcomeFailed:
		m.importStatus.FailedImports++
		message := fmt.Sprintf("%s: %v", item.Name(), err)
		log.Printf("worker: import failed for %s", message)
		m.importStatus.Errors = appendJobError(m.importStatus.Errors, message)
	}
}

type importOutcome int

const (
	importOutcomeSuccess importOutcome = iota
	importOutcomeDuplicate
	importOutcomeFailed
)

// runImportItem converts an item panic into an item failure so the loop
// always continues to the next file.
func (m *JobManager) runImportItem(item ImportItem) (outcome importOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = importOutcomeFailed
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()
	return m.importItem(item)
}

// importItem ingests a single staged file: hash, dedup check, metadata,
// derived assets, then a transactional insert. The original is only moved
// into permanent storage after every derived asset rendered, so a failed
// item leaves nothing behind.
func (m *JobManager) importItem(item ImportItem) (importOutcome, error) {
	stagedPath, err := item.Stage()
	if err != nil {
		return importOutcomeFailed, fmt.Errorf("failed to stage: %w", err)
	}

	contentHash, err := m.hashFile(stagedPath)
	if err != nil {
		return importOutcomeFailed, fmt.Errorf("failed to hash: %w", err)
	}

	existing, err := m.mediaRepo.FindByHash(contentHash)
	if err != nil {
		return importOutcomeFailed, fmt.Errorf("failed dedup lookup: %w", err)
	}
	if existing != nil {
		log.Printf("worker: skipping duplicate %s (hash %s already imported as id %d)", item.Name(), contentHash[:12], existing.ID)
		item.Discard()
		return importOutcomeDuplicate, nil
	}

	kind := media.KindForPath(stagedPath)
	meta := m.extractor.Extract(stagedPath, kind)

	info, err := os.Stat(stagedPath)
	if err != nil {
		return importOutcomeFailed, fmt.Errorf("failed to stat staged file: %w", err)
	}

	// render all derived assets before anything is committed
	thumbBytes, err := m.renderer.RenderThumbnail(stagedPath, kind, m.cfg.ThumbnailMaxSize, m.cfg.ThumbnailQuality)
	if err != nil {
		return importOutcomeFailed, fmt.Errorf("failed to render thumbnail: %w", err)
	}

	tinyBytes, tinyErr := m.renderer.RenderThumbnail(stagedPath, kind, m.cfg.TinyThumbnailSize, m.cfg.ThumbnailQuality)
	if tinyErr != nil {
		log.Printf("worker: tiny thumbnail failed for %s: %v", item.Name(), tinyErr)
	}

	preview, err := m.renderer.RenderPreview(stagedPath, kind)
	if err != nil {
		return importOutcomeFailed, fmt.Errorf("failed to render preview: %w", err)
	}

	takenAt := m.now().Unix()
	if meta.TakenAt != nil {
		takenAt = *meta.TakenAt
	}

	dirHint, storedName := storedLayout(takenAt, item.Name())
	derivedName := derivedAssetName(storedName)

	// derived assets are written first; the staged original is only consumed
	// once everything else is in place, so a failed item keeps its source
	thumbRel, err := m.store.SaveBytes(media.AssetTypeThumbnail, dirHint, derivedName, thumbBytes)
	if err != nil {
		return importOutcomeFailed, fmt.Errorf("failed to save thumbnail: %w", err)
	}
	cleanupDerived := func() {
		if err := m.store.Delete(media.AssetTypeThumbnail, thumbRel); err != nil {
			log.Printf("worker: cleanup of thumbnail %s failed: %v", thumbRel, err)
		}
	}

	var tinyRel *string
	if tinyErr == nil {
		rel, err := m.store.SaveBytes(media.AssetTypeTinyThumbnail, dirHint, derivedName, tinyBytes)
		if err != nil {
			log.Printf("worker: failed to save tiny thumbnail for %s: %v", item.Name(), err)
		} else {
			tinyRel = &rel
		}
	}
	if tinyRel != nil {
		prev := cleanupDerived
		cleanupDerived = func() {
			prev()
			m.store.Delete(media.AssetTypeTinyThumbnail, *tinyRel)
		}
	}

	var previewRel *string
	if !preview.ReferenceOriginal {
		rel, err := m.store.SaveBytes(media.AssetTypePreview, dirHint, derivedName, preview.Bytes)
		if err != nil {
			cleanupDerived()
			return importOutcomeFailed, fmt.Errorf("failed to save preview: %w", err)
		}
		previewRel = &rel
		prev := cleanupDerived
		cleanupDerived = func() {
			prev()
			m.store.Delete(media.AssetTypePreview, *previewRel)
		}
	}

	relPath, err := m.store.MoveIn(media.AssetTypeOriginal, dirHint, storedName, stagedPath)
	if err != nil {
		cleanupDerived()
		return importOutcomeFailed, fmt.Errorf("failed to store original: %w", err)
	}

	row := buildMediaRow(contentHash, storedName, item.Name(), relPath, kind, info.Size(), takenAt, meta)
	row.ThumbnailPath = &thumbRel
	row.TinyThumbnailPath = tinyRel
	row.PreviewPath = previewRel

	m.fillLocation(row)

	if err := m.mediaRepo.Insert(row); err != nil {
		cleanupDerived()
		if errors.Is(err, repository.ErrDuplicateHash) {
			// another copy of the same content won the insert race
			log.Printf("worker: duplicate content detected at insert for %s", item.Name())
			m.store.Delete(media.AssetTypeOriginal, relPath)
			item.Discard()
			return importOutcomeDuplicate, nil
		}
		m.restoreToStaging(relPath, stagedPath)
		return importOutcomeFailed, fmt.Errorf("failed to persist: %w", err)
	}

	item.Discard()
	return importOutcomeSuccess, nil
}

// restoreToStaging moves an original back to its staged path after a failed
// persist, so the file stays available for a retry.
func (m *JobManager) restoreToStaging(relPath, stagedPath string) {
	fullPath, err := m.store.GetFullPath(media.AssetTypeOriginal, relPath)
	if err != nil {
		log.Printf("worker: cannot resolve %s to restore it: %v", relPath, err)
		return
	}
	if err := os.Rename(fullPath, stagedPath); err != nil {
		log.Printf("worker: failed to restore %s to staging: %v", relPath, err)
	}
}

// fillLocation resolves city/state/country from coordinates when geocoding
// is enabled. Best-effort only.
func (m *JobManager) fillLocation(row *models.Media) {
	if m.geocoder == nil || row.GPSLatitude == nil || row.GPSLongitude == nil {
		return
	}
	if row.LocationCity != nil || row.LocationState != nil || row.LocationCountry != nil {
		return
	}
	city, state, country := m.geocoder.ReverseGeocode(*row.GPSLatitude, *row.GPSLongitude)
	row.LocationCity = city
	row.LocationState = state
	row.LocationCountry = country
}

func (m *JobManager) finishImport(state JobState, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	completedAt := m.now()
	m.importStatus.State = state
	m.importStatus.CompletedAt = &completedAt
	if message != "" {
		m.importStatus.Errors = appendJobError(m.importStatus.Errors, message)
	}
	m.active = jobNone
}

// storedLayout derives the date-based storage location for an original:
// a YYYY-MM directory and a YYYYMMDD_HHMMSS_<uuid12>.<ext> filename.
func storedLayout(takenAt int64, originalName string) (dirHint, storedName string) {
	t := time.Unix(takenAt, 0)
	ext := strings.ToLower(filepath.Ext(originalName))
	shortID := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	dirHint = t.Format("2006-01")
	storedName = fmt.Sprintf("%s_%s%s", t.Format("20060102_150405"), shortID, ext)
	return dirHint, storedName
}

// derivedAssetName maps a stored original name to its thumbnail/preview
// filename (always JPEG).
func derivedAssetName(storedName string) string {
	base := strings.TrimSuffix(storedName, filepath.Ext(storedName))
	return base + ".jpg"
}

func buildMediaRow(contentHash, storedName, originalName, relPath string, kind media.Kind, size int64, takenAt int64, meta *media.Metadata) *models.Media {
	mediaType := models.MediaTypeImage
	if kind == media.KindVideo {
		mediaType = models.MediaTypeVideo
	}

	row := &models.Media{
		ContentHash:      &contentHash,
		Filename:         storedName,
		OriginalFilename: originalName,
		FilePath:         relPath,
		MediaType:        mediaType,
		FileSize:         size,
		TakenAt:          &takenAt,
	}
	applyMetadata(row, meta)
	return row
}

// applyMetadata copies every extracted field onto the row. Used verbatim by
// import; regeneration applies the same fields through its merge instead.
func applyMetadata(row *models.Media, meta *media.Metadata) {
	row.MimeType = meta.MimeType
	row.Width = meta.Width
	row.Height = meta.Height
	row.DurationSeconds = meta.DurationSeconds
	row.GPSLatitude = meta.GPSLatitude
	row.GPSLongitude = meta.GPSLongitude
	row.GPSAltitude = meta.GPSAltitude
	row.CameraMake = meta.CameraMake
	row.CameraModel = meta.CameraModel
	row.LensMake = meta.LensMake
	row.LensModel = meta.LensModel
	row.ISO = meta.ISO
	row.ExposureTime = meta.ExposureTime
	row.FNumber = meta.FNumber
	row.FocalLength = meta.FocalLength
	row.FocalLength35mm = meta.FocalLength35mm
	row.VideoCodec = meta.VideoCodec
	row.Keywords = meta.Keywords
}
