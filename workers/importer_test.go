package workers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holden-dev/photolibbackend/media"
	"github.com/holden-dev/photolibbackend/models"
)

func stagedFileCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestImportHappyPath(t *testing.T) {
	fx := newFixture(t)
	takenAt := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC).Unix()
	width, height := 800, 600
	fx.extractor.template = media.Metadata{Width: &width, Height: &height, TakenAt: &takenAt}
	fx.stage(t, "IMG_0001.jpg", []byte("photo content"))

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	snapshot := fx.manager.ImportSnapshot()
	assert.Equal(t, JobCompleted, snapshot.State)
	assert.Equal(t, 1, snapshot.TotalFiles)
	assert.Equal(t, 1, snapshot.ProcessedFiles)
	assert.Equal(t, 1, snapshot.SuccessfulImports)
	assert.Equal(t, 0, snapshot.FailedImports)
	assert.Empty(t, snapshot.Errors)

	row, err := fx.mediaRepo.FindByHash(mustHash(t, []byte("photo content")))
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "IMG_0001.jpg", row.OriginalFilename)
	assert.Equal(t, models.MediaTypeImage, row.MediaType)
	assert.Equal(t, int64(len("photo content")), row.FileSize)
	require.NotNil(t, row.TakenAt)
	assert.Equal(t, takenAt, *row.TakenAt)

	// originals land in a date directory derived from the capture date
	assert.Equal(t, "2021-06", filepath.Dir(row.FilePath))

	originalPath, err := fx.store.GetFullPath(media.AssetTypeOriginal, row.FilePath)
	require.NoError(t, err)
	assert.FileExists(t, originalPath)

	require.NotNil(t, row.ThumbnailPath)
	thumbPath, err := fx.store.GetFullPath(media.AssetTypeThumbnail, *row.ThumbnailPath)
	require.NoError(t, err)
	assert.FileExists(t, thumbPath)

	require.NotNil(t, row.TinyThumbnailPath)
	require.NotNil(t, row.PreviewPath)

	// the staged file was consumed
	assert.Equal(t, 0, stagedFileCount(t, fx.cfg.ImportsPath))
}

func TestImportSkipsDuplicateContent(t *testing.T) {
	fx := newFixture(t)
	fx.stage(t, "a.jpg", []byte("same bytes"))
	fx.stage(t, "b.jpg", []byte("same bytes"))

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	snapshot := fx.manager.ImportSnapshot()
	assert.Equal(t, JobCompleted, snapshot.State)
	assert.Equal(t, 2, snapshot.ProcessedFiles)
	assert.Equal(t, 1, snapshot.SuccessfulImports)
	assert.Equal(t, 1, snapshot.SkippedDuplicates)
	assert.Equal(t, 0, snapshot.FailedImports)

	count, err := fx.mediaRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "duplicate content must not create a second row")

	// both staged copies were consumed: one imported, one discarded
	assert.Equal(t, 0, stagedFileCount(t, fx.cfg.ImportsPath))
}

func TestImportIsIdempotentAcrossRuns(t *testing.T) {
	fx := newFixture(t)
	fx.stage(t, "a.jpg", []byte("run one"))

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()
	require.Equal(t, 1, fx.manager.ImportSnapshot().SuccessfulImports)

	fx.stage(t, "a_again.jpg", []byte("run one"))
	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	snapshot := fx.manager.ImportSnapshot()
	assert.Equal(t, 0, snapshot.SuccessfulImports)
	assert.Equal(t, 1, snapshot.SkippedDuplicates)

	count, err := fx.mediaRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestImportItemFailureIsIsolated(t *testing.T) {
	fx := newFixture(t)
	fx.stage(t, "good1.jpg", []byte("good one"))
	fx.stage(t, "broken.jpg", []byte("broken one"))
	fx.stage(t, "good2.jpg", []byte("good two"))
	fx.renderer.failOn = []string{"broken"}

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	snapshot := fx.manager.ImportSnapshot()
	assert.Equal(t, JobCompleted, snapshot.State, "partial failure still completes")
	assert.Equal(t, 3, snapshot.ProcessedFiles)
	assert.Equal(t, 2, snapshot.SuccessfulImports)
	assert.Equal(t, 1, snapshot.FailedImports)
	require.Len(t, snapshot.Errors, 1)
	assert.Contains(t, snapshot.Errors[0], "broken.jpg")

	count, err := fx.mediaRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// the failed file stays in staging for a retry after the cause is fixed
	assert.Equal(t, 1, stagedFileCount(t, fx.cfg.ImportsPath))
}

func TestImportRendererFailureLeavesNoPartialState(t *testing.T) {
	fx := newFixture(t)
	fx.stage(t, "broken.jpg", []byte("broken"))
	fx.renderer.failOn = []string{"broken"}

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	count, err := fx.mediaRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "a failed item must not leave a row behind")

	// no orphaned files under originals
	originalsDir, err := fx.store.EnsureDir(media.AssetTypeOriginal)
	require.NoError(t, err)
	var files int
	require.NoError(t, filepath.Walk(originalsDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files++
		}
		return nil
	}))
	assert.Equal(t, 0, files)
}

// filesUnder counts regular files below root, tolerating a missing root
func filesUnder(t *testing.T, root string) int {
	t.Helper()
	var files int
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files++
		}
		return nil
	})
	return files
}

func TestImportStorageFailureKeepsSourceFile(t *testing.T) {
	for _, failType := range []media.AssetType{media.AssetTypeThumbnail, media.AssetTypePreview} {
		t.Run(string(failType), func(t *testing.T) {
			fx := newFixture(t)
			fx.stage(t, "a.jpg", []byte("photo"))
			failing := &failingSaveStore{Store: fx.store, failType: failType}
			fx.manager = NewJobManager(fx.cfg, failing, fx.mediaRepo, fx.tagRepo, fx.extractor, fx.renderer, nil)

			require.NoError(t, fx.manager.StartLocalImport())
			fx.manager.Wait()

			snapshot := fx.manager.ImportSnapshot()
			assert.Equal(t, 1, snapshot.FailedImports)

			count, err := fx.mediaRepo.Count()
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			// the only copy of the file stays in staging for a retry
			assert.Equal(t, 1, stagedFileCount(t, fx.cfg.ImportsPath))
			assert.Equal(t, 0, filesUnder(t, fx.cfg.OriginalsPath))
			assert.Equal(t, 0, filesUnder(t, fx.cfg.ThumbnailsPath))
		})
	}
}

func TestImportInsertFailureRestoresSourceToStaging(t *testing.T) {
	fx := newFixture(t)
	fx.stage(t, "a.jpg", []byte("photo"))
	fx.mediaRepo.insertErr = fmt.Errorf("database is locked")

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	snapshot := fx.manager.ImportSnapshot()
	assert.Equal(t, JobFailed, snapshot.State)
	assert.Equal(t, 1, snapshot.FailedImports)

	assert.Equal(t, 1, stagedFileCount(t, fx.cfg.ImportsPath), "the moved original comes back to staging")
	assert.Equal(t, 0, filesUnder(t, fx.cfg.OriginalsPath))
	assert.Equal(t, 0, filesUnder(t, fx.cfg.ThumbnailsPath))
}

func TestImportAllItemsFailedMarksJobFailed(t *testing.T) {
	fx := newFixture(t)
	fx.stage(t, "bad1.jpg", []byte("one"))
	fx.stage(t, "bad2.jpg", []byte("two"))
	fx.renderer.failOn = []string{"bad"}

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	snapshot := fx.manager.ImportSnapshot()
	assert.Equal(t, JobFailed, snapshot.State)
	assert.Equal(t, 2, snapshot.FailedImports)
}

func TestImportSourceUnavailable(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, os.RemoveAll(fx.cfg.ImportsPath))

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	snapshot := fx.manager.ImportSnapshot()
	assert.Equal(t, JobFailed, snapshot.State)
	assert.Equal(t, 0, snapshot.ProcessedFiles)
	require.NotEmpty(t, snapshot.Errors)
	assert.Contains(t, snapshot.Errors[0], "unavailable")
}

func TestImportCancellationStopsBetweenItems(t *testing.T) {
	fx := newFixture(t)
	fx.stage(t, "a.jpg", []byte("first"))
	fx.stage(t, "b.jpg", []byte("second"))
	fx.stage(t, "c.jpg", []byte("third"))

	fx.extractor.onCall = func(string) {
		// request cancellation while the first item is mid-flight
		_ = fx.manager.Cancel()
	}

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	snapshot := fx.manager.ImportSnapshot()
	assert.Equal(t, JobCancelled, snapshot.State)
	assert.Equal(t, 1, snapshot.ProcessedFiles, "the in-flight item finishes, the rest never start")
	assert.Equal(t, 1, snapshot.SuccessfulImports)

	// the committed item survives, the remaining files stay staged
	count, err := fx.mediaRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 2, stagedFileCount(t, fx.cfg.ImportsPath))
}

func TestImportErrorLogIsCapped(t *testing.T) {
	fx := newFixture(t)
	total := maxJobErrors + 20
	for i := 0; i < total; i++ {
		fx.stage(t, fmt.Sprintf("bad_%03d.jpg", i), []byte(fmt.Sprintf("content %d", i)))
	}
	fx.renderer.failOn = []string{"bad_"}

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	snapshot := fx.manager.ImportSnapshot()
	assert.Equal(t, total, snapshot.FailedImports, "counters keep counting past the cap")
	require.Len(t, snapshot.Errors, maxJobErrors+1)
	assert.Equal(t, "(additional errors truncated)", snapshot.Errors[maxJobErrors])
}

func TestImportGeocodesWhenCoordinatesPresent(t *testing.T) {
	fx := newFixture(t)
	lat, lon := 48.8577, 2.2950
	fx.extractor.template = media.Metadata{GPSLatitude: &lat, GPSLongitude: &lon}
	geocoder := &stubGeocoder{}
	fx.manager.geocoder = geocoder
	fx.stage(t, "eiffel.jpg", []byte("tower"))

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	assert.Equal(t, 1, geocoder.callCount())
	row, err := fx.mediaRepo.FindByHash(mustHash(t, []byte("tower")))
	require.NoError(t, err)
	require.NotNil(t, row)
	require.NotNil(t, row.LocationCity)
	assert.Equal(t, "Paris", *row.LocationCity)
}

func TestImportVideoPreviewReferencesOriginal(t *testing.T) {
	fx := newFixture(t)
	fx.stage(t, "clip.mp4", []byte("video bytes"))

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	require.Equal(t, 1, fx.manager.ImportSnapshot().SuccessfulImports)
	row, err := fx.mediaRepo.FindByHash(mustHash(t, []byte("video bytes")))
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, models.MediaTypeVideo, row.MediaType)
	assert.Nil(t, row.PreviewPath, "videos stream the original instead of a preview file")
	assert.NotNil(t, row.ThumbnailPath)
}

func mustHash(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hashinput")
	require.NoError(t, os.WriteFile(path, content, 0644))
	hash, err := media.HashFile(path)
	require.NoError(t, err)
	return hash
}

func TestImportItemPanicIsContained(t *testing.T) {
	fx := newFixture(t)
	fx.stage(t, "boom.jpg", []byte("explodes"))
	fx.stage(t, "fine.jpg", []byte("fine"))

	fx.extractor.onCall = func(path string) {
		if strings.Contains(path, "boom") {
			panic("extractor blew up")
		}
	}

	require.NoError(t, fx.manager.StartLocalImport())
	fx.manager.Wait()

	snapshot := fx.manager.ImportSnapshot()
	assert.Equal(t, JobCompleted, snapshot.State, "a panicking item must not take down the job")
	assert.Equal(t, 2, snapshot.ProcessedFiles)
	assert.Equal(t, 1, snapshot.SuccessfulImports)
	assert.Equal(t, 1, snapshot.FailedImports)
	require.Len(t, snapshot.Errors, 1)
	assert.Contains(t, snapshot.Errors[0], "boom.jpg")
}
