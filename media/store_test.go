package media

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), map[AssetType]string{
		AssetTypeOriginal:  "originals",
		AssetTypeThumbnail: "thumbnails",
	})
	require.NoError(t, err)
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)

	rel, err := store.SaveBytes(AssetTypeThumbnail, "2021-06", "photo.jpg", []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, "2021-06/photo.jpg", rel)

	reader, info, err := store.Get(AssetTypeThumbnail, rel)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)
	assert.Equal(t, int64(len(data)), info.Size())
}

func TestSaveGeneratesNameWhenHintEmpty(t *testing.T) {
	store := newTestStore(t)

	rel, err := store.SaveBytes(AssetTypeThumbnail, "", "", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rel, ".jpg"))
}

func TestDeleteTolerantOfAbsence(t *testing.T) {
	store := newTestStore(t)

	rel, err := store.SaveBytes(AssetTypeThumbnail, "", "gone.jpg", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(AssetTypeThumbnail, rel))
	assert.NoError(t, store.Delete(AssetTypeThumbnail, rel), "double delete must be a no-op")
}

func TestGetFullPathRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetFullPath(AssetTypeThumbnail, "../../etc/passwd")
	assert.Error(t, err)
}

func TestMoveInConsumesSource(t *testing.T) {
	store := newTestStore(t)

	sourcePath := filepath.Join(t.TempDir(), "staged.jpg")
	require.NoError(t, os.WriteFile(sourcePath, []byte("original bytes"), 0644))

	rel, err := store.MoveIn(AssetTypeOriginal, "2021-06", "20210615_120000_abc.jpg", sourcePath)
	require.NoError(t, err)
	assert.Equal(t, "2021-06/20210615_120000_abc.jpg", rel)

	_, err = os.Stat(sourcePath)
	assert.True(t, os.IsNotExist(err), "source must be consumed")

	fullPath, err := store.GetFullPath(AssetTypeOriginal, rel)
	require.NoError(t, err)
	data, err := os.ReadFile(fullPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("original bytes"), data)
}

func TestMoveInRequiresFilename(t *testing.T) {
	store := newTestStore(t)
	_, err := store.MoveIn(AssetTypeOriginal, "", "", "/tmp/anything")
	assert.Error(t, err)
}
