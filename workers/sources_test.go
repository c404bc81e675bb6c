package workers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStagingSourceEnumerate(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0755))
	for _, name := range []string{"img10.jpg", "img2.jpg", "img1.jpg", "notes.txt", "nested/clip.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0644))
	}

	items, err := NewLocalStagingSource(root).Enumerate()
	require.NoError(t, err)
	require.Len(t, items, 4, "unsupported files are filtered out")

	// natural sort: img2 before img10
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name()
	}
	assert.Contains(t, names, "clip.mp4")
	idx2, idx10 := indexOf(names, "img2.jpg"), indexOf(names, "img10.jpg")
	require.GreaterOrEqual(t, idx2, 0)
	require.GreaterOrEqual(t, idx10, 0)
	assert.Less(t, idx2, idx10)
}

func TestLocalStagingSourceMissingRoot(t *testing.T) {
	_, err := NewLocalStagingSource(filepath.Join(t.TempDir(), "nope")).Enumerate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLocalStagingSourceRootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afile")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := NewLocalStagingSource(path).Enumerate()
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLocalImportItemStageAndDiscard(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	items, err := NewLocalStagingSource(root).Enumerate()
	require.NoError(t, err)
	require.Len(t, items, 1)

	staged, err := items[0].Stage()
	require.NoError(t, err)
	assert.Equal(t, path, staged, "local items are already on disk")

	items[0].Discard()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}
