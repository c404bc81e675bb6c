package workers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/holden-dev/photolibbackend/media"
	"github.com/holden-dev/photolibbackend/models"
)

const regenBatchSize = 200

// runRegeneration is the single background goroutine of a regeneration job.
// With reset, every derived asset and enrichment field is cleared first and
// the whole library is rebuilt.
func (m *JobManager) runRegeneration(missingOnly, reset bool) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker: regeneration job panicked: %v", r)
			m.finishRegeneration(JobFailed, fmt.Sprintf("internal error: %v", r))
		}
	}()

	log.Printf("worker: starting regeneration (missingOnly=%v, reset=%v)", missingOnly, reset)

	if reset {
		if err := m.clearDerivedState(); err != nil {
			log.Printf("worker: reset failed: %v", err)
			m.finishRegeneration(JobFailed, err.Error())
			return
		}
	}

	m.backfillMissingHashes()

	targets, err := m.collectRegenTargets(missingOnly)
	if err != nil {
		log.Printf("worker: failed to list media for regeneration: %v", err)
		m.finishRegeneration(JobFailed, err.Error())
		return
	}

	m.mu.Lock()
	m.regenStatus.TotalMedia = len(targets)
	m.mu.Unlock()

	for _, id := range targets {
		if m.cancelRequested.Load() {
			log.Printf("worker: regeneration cancelled after %d of %d items", m.RegenerationSnapshot().ProcessedMedia, len(targets))
			m.finishRegeneration(JobCancelled, "")
			return
		}
		m.regenerateOne(id)
	}

	status := m.RegenerationSnapshot()
	log.Printf("worker: regeneration finished: %d processed, %d metadata updates, %d thumbnails, %d tag links",
		status.ProcessedMedia, status.UpdatedMetadata, status.GeneratedThumbnails, status.UpdatedTags)
	m.finishRegeneration(JobCompleted, "")
}

// clearDerivedState deletes every derived asset file and nulls the derived
// and enrichment columns. Identity columns survive untouched.
func (m *JobManager) clearDerivedState() error {
	err := m.mediaRepo.ListAllInBatches(regenBatchSize, func(batch []models.Media) error {
		for _, row := range batch {
			if row.ThumbnailPath != nil {
				if err := m.store.Delete(media.AssetTypeThumbnail, *row.ThumbnailPath); err != nil {
					log.Printf("worker: failed to delete thumbnail %s: %v", *row.ThumbnailPath, err)
				}
			}
			if row.TinyThumbnailPath != nil {
				if err := m.store.Delete(media.AssetTypeTinyThumbnail, *row.TinyThumbnailPath); err != nil {
					log.Printf("worker: failed to delete tiny thumbnail %s: %v", *row.TinyThumbnailPath, err)
				}
			}
			if row.PreviewPath != nil {
				if err := m.store.Delete(media.AssetTypePreview, *row.PreviewPath); err != nil {
					log.Printf("worker: failed to delete preview %s: %v", *row.PreviewPath, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enumerate media for reset: %w", err)
	}

	cleared, err := m.mediaRepo.ClearAllDerivedData()
	if err != nil {
		return fmt.Errorf("failed to clear derived data: %w", err)
	}
	log.Printf("worker: reset cleared derived data on %d rows", cleared)
	return nil
}

// backfillMissingHashes computes content hashes for rows created before
// hashing existed. Failures are logged per row, never fatal.
func (m *JobManager) backfillMissingHashes() {
	rows, err := m.mediaRepo.ListMissingHash()
	if err != nil {
		log.Printf("worker: failed to list rows missing a hash: %v", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	log.Printf("worker: backfilling content hashes for %d rows", len(rows))
	for _, row := range rows {
		fullPath, err := m.store.GetFullPath(media.AssetTypeOriginal, row.FilePath)
		if err != nil {
			log.Printf("worker: hash backfill skipped for id %d: %v", row.ID, err)
			continue
		}
		hash, err := m.hashFile(fullPath)
		if err != nil {
			log.Printf("worker: hash backfill failed for id %d: %v", row.ID, err)
			continue
		}
		if err := m.mediaRepo.UpdateContentHash(row.ID, hash); err != nil {
			log.Printf("worker: hash backfill write failed for id %d: %v", row.ID, err)
		}
	}
}

// collectRegenTargets gathers the ids to process up front so the total is
// known before the loop starts. With missingOnly, items that already have
// dimensions and a thumbnail are left alone.
func (m *JobManager) collectRegenTargets(missingOnly bool) ([]uint, error) {
	var targets []uint
	err := m.mediaRepo.ListAllInBatches(regenBatchSize, func(batch []models.Media) error {
		for _, row := range batch {
			if missingOnly && row.Width != nil && row.Height != nil && row.ThumbnailPath != nil {
				continue
			}
			targets = append(targets, row.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return targets, nil
}

// regenerateOne re-derives metadata and assets for one row. Existing values
// win over freshly extracted ones; only gaps are filled.
func (m *JobManager) regenerateOne(id uint) {
	err := m.runRegenerateItem(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.regenStatus.ProcessedMedia++
	if err != nil {
		message := fmt.Sprintf("media %d: %v", id, err)
		log.Printf("worker: regeneration failed for %s", message)
		m.regenStatus.Errors = appendJobError(m.regenStatus.Errors, message)
	}
}

// runRegenerateItem converts an item panic into an item failure so the loop
// always continues to the next row.
func (m *JobManager) runRegenerateItem(id uint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()
	return m.regenerateItem(id)
}

func (m *JobManager) regenerateItem(id uint) error {
	row, err := m.mediaRepo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to load row: %w", err)
	}

	fullPath, err := m.store.GetFullPath(media.AssetTypeOriginal, row.FilePath)
	if err != nil {
		return fmt.Errorf("invalid original path: %w", err)
	}
	if _, err := os.Stat(fullPath); err != nil {
		return fmt.Errorf("original file unavailable: %w", err)
	}

	kind := media.KindForPath(row.FilePath)
	meta := m.extractor.Extract(fullPath, kind)

	updates := map[string]interface{}{}
	metadataFilled := mergeMetadata(row, meta, updates)

	if m.geocoder != nil &&
		row.GPSLatitude != nil && row.GPSLongitude != nil &&
		row.LocationCity == nil && row.LocationState == nil && row.LocationCountry == nil {
		city, state, country := m.geocoder.ReverseGeocode(*row.GPSLatitude, *row.GPSLongitude)
		if city != nil {
			updates["location_city"] = *city
		}
		if state != nil {
			updates["location_state"] = *state
		}
		if country != nil {
			updates["location_country"] = *country
		}
	}

	dirHint := filepath.Dir(row.FilePath)
	if dirHint == "." {
		dirHint = ""
	}
	derivedName := derivedAssetName(row.Filename)

	thumbnailGenerated := false
	if row.ThumbnailPath == nil {
		thumbBytes, err := m.renderer.RenderThumbnail(fullPath, kind, m.cfg.ThumbnailMaxSize, m.cfg.ThumbnailQuality)
		if err != nil {
			return fmt.Errorf("failed to render thumbnail: %w", err)
		}
		thumbRel, err := m.store.SaveBytes(media.AssetTypeThumbnail, dirHint, derivedName, thumbBytes)
		if err != nil {
			return fmt.Errorf("failed to save thumbnail: %w", err)
		}
		updates["thumbnail_path"] = thumbRel
		thumbnailGenerated = true
	}

	// tiny thumbnails and previews regenerate independently of the main
	// thumbnail, so a row that lost just one of them can recover it
	if row.TinyThumbnailPath == nil {
		if tinyBytes, err := m.renderer.RenderThumbnail(fullPath, kind, m.cfg.TinyThumbnailSize, m.cfg.ThumbnailQuality); err != nil {
			log.Printf("worker: tiny thumbnail failed for media %d: %v", id, err)
		} else if tinyRel, err := m.store.SaveBytes(media.AssetTypeTinyThumbnail, dirHint, derivedName, tinyBytes); err != nil {
			log.Printf("worker: failed to save tiny thumbnail for media %d: %v", id, err)
		} else {
			updates["tiny_thumbnail_path"] = tinyRel
		}
	}

	if row.PreviewPath == nil {
		if preview, err := m.renderer.RenderPreview(fullPath, kind); err != nil {
			log.Printf("worker: preview failed for media %d: %v", id, err)
		} else if !preview.ReferenceOriginal {
			if previewRel, err := m.store.SaveBytes(media.AssetTypePreview, dirHint, derivedName, preview.Bytes); err != nil {
				log.Printf("worker: failed to save preview for media %d: %v", id, err)
			} else {
				updates["preview_path"] = previewRel
			}
		}
	}

	if len(updates) > 0 {
		if err := m.mediaRepo.Update(id, updates); err != nil {
			return fmt.Errorf("failed to persist updates: %w", err)
		}
	}

	linkedTags, err := m.mergeKeywordTags(row, meta)
	if err != nil {
		log.Printf("worker: keyword tag merge failed for media %d: %v", id, err)
	}

	m.mu.Lock()
	if metadataFilled {
		m.regenStatus.UpdatedMetadata++
	}
	if thumbnailGenerated {
		m.regenStatus.GeneratedThumbnails++
	}
	m.regenStatus.UpdatedTags += linkedTags
	m.mu.Unlock()

	return nil
}

// mergeMetadata fills only the gaps: a stored value is never overwritten by
// a freshly extracted one. Returns whether the core dimensions were filled.
func mergeMetadata(row *models.Media, meta *media.Metadata, updates map[string]interface{}) bool {
	metadataFilled := false
	if row.Width == nil && meta.Width != nil {
		updates["width"] = *meta.Width
		metadataFilled = true
	}
	if row.Height == nil && meta.Height != nil {
		updates["height"] = *meta.Height
		metadataFilled = true
	}
	if row.MimeType == nil && meta.MimeType != nil {
		updates["mime_type"] = *meta.MimeType
	}
	if row.DurationSeconds == nil && meta.DurationSeconds != nil {
		updates["duration_seconds"] = *meta.DurationSeconds
	}
	if row.TakenAt == nil && meta.TakenAt != nil {
		updates["taken_at"] = *meta.TakenAt
	}
	if row.GPSLatitude == nil && meta.GPSLatitude != nil {
		updates["gps_latitude"] = *meta.GPSLatitude
		row.GPSLatitude = meta.GPSLatitude
	}
	if row.GPSLongitude == nil && meta.GPSLongitude != nil {
		updates["gps_longitude"] = *meta.GPSLongitude
		row.GPSLongitude = meta.GPSLongitude
	}
	if row.GPSAltitude == nil && meta.GPSAltitude != nil {
		updates["gps_altitude"] = *meta.GPSAltitude
	}
	if row.CameraMake == nil && meta.CameraMake != nil {
		updates["camera_make"] = *meta.CameraMake
	}
	if row.CameraModel == nil && meta.CameraModel != nil {
		updates["camera_model"] = *meta.CameraModel
	}
	if row.LensMake == nil && meta.LensMake != nil {
		updates["lens_make"] = *meta.LensMake
	}
	if row.LensModel == nil && meta.LensModel != nil {
		updates["lens_model"] = *meta.LensModel
	}
	if row.ISO == nil && meta.ISO != nil {
		updates["iso"] = *meta.ISO
	}
	if row.ExposureTime == nil && meta.ExposureTime != nil {
		updates["exposure_time"] = *meta.ExposureTime
	}
	if row.FNumber == nil && meta.FNumber != nil {
		updates["f_number"] = *meta.FNumber
	}
	if row.FocalLength == nil && meta.FocalLength != nil {
		updates["focal_length"] = *meta.FocalLength
	}
	if row.FocalLength35mm == nil && meta.FocalLength35mm != nil {
		updates["focal_length_35mm"] = *meta.FocalLength35mm
	}
	if row.VideoCodec == nil && meta.VideoCodec != nil {
		updates["video_codec"] = *meta.VideoCodec
	}
	if row.Keywords == nil && meta.Keywords != nil {
		updates["keywords"] = *meta.Keywords
		row.Keywords = meta.Keywords
	}
	return metadataFilled
}

// mergeKeywordTags upserts the row's keywords into the tags table and links
// them, returning the number of new links.
func (m *JobManager) mergeKeywordTags(row *models.Media, meta *media.Metadata) (int, error) {
	keywords := row.Keywords
	if keywords == nil {
		keywords = meta.Keywords
	}
	if keywords == nil || *keywords == "" {
		return 0, nil
	}

	linked := 0
	for _, raw := range strings.Split(*keywords, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		tagID, err := m.tagRepo.EnsureTag(name)
		if err != nil {
			return linked, fmt.Errorf("failed to ensure tag %q: %w", name, err)
		}
		newlyLinked, err := m.tagRepo.LinkMediaTag(row.ID, tagID)
		if err != nil {
			return linked, fmt.Errorf("failed to link tag %q: %w", name, err)
		}
		if newlyLinked {
			linked++
		}
	}
	return linked, nil
}

func (m *JobManager) finishRegeneration(state JobState, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	completedAt := m.now()
	m.regenStatus.State = state
	m.regenStatus.CompletedAt = &completedAt
	if message != "" {
		m.regenStatus.Errors = appendJobError(m.regenStatus.Errors, message)
	}
	m.active = jobNone
}
