package derive_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clipforge/clipforge/internal/derive"
	"github.com/stretchr/testify/assert"
)

// writeArtifactSet lays down a complete artifact directory with two
// thumbnails, returning its path.
func writeArtifactSet(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range map[string]string{
		derive.MasterFileName:     "master-bytes",
		derive.NormalizedFileName: "normalized-bytes",
		derive.ProxyFileName:      "proxy-bytes",
		derive.WaveformFileName:   `{"peaks":[]}`,
	} {
		assert.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	thumbDir := filepath.Join(dir, derive.ThumbnailDirName)
	assert.Nil(t, os.MkdirAll(thumbDir, os.ModePerm))
	assert.Nil(t, os.WriteFile(filepath.Join(thumbDir, "thumb-001.jpg"), []byte("t1"), 0o644))
	assert.Nil(t, os.WriteFile(filepath.Join(thumbDir, "thumb-002.jpg"), []byte("t2"), 0o644))

	return dir
}

func TestStoreAndMaterializeRoundTrip(t *testing.T) {
	cache := derive.NewArtifactCache(t.TempDir())
	srcDir := writeArtifactSet(t)

	const key = "abcdef0123456789"
	assert.False(t, cache.IsComplete(key))

	assert.Nil(t, cache.Store(srcDir, key))
	assert.True(t, cache.IsComplete(key))

	destDir := t.TempDir()
	assert.Nil(t, cache.Materialize(key, destDir))

	master, err := os.ReadFile(filepath.Join(destDir, derive.MasterFileName))
	assert.Nil(t, err)
	assert.Equal(t, "master-bytes", string(master))

	thumbs, err := os.ReadDir(filepath.Join(destDir, derive.ThumbnailDirName))
	assert.Nil(t, err)
	assert.Len(t, thumbs, 2)
}

func TestStore_NoOpWhenEntryComplete(t *testing.T) {
	cache := derive.NewArtifactCache(t.TempDir())
	srcDir := writeArtifactSet(t)

	const key = "samekey"
	assert.Nil(t, cache.Store(srcDir, key))

	// Altering the source then storing again must not disturb the
	// published entry.
	assert.Nil(t, os.WriteFile(filepath.Join(srcDir, derive.MasterFileName), []byte("changed"), 0o644))
	assert.Nil(t, cache.Store(srcDir, key))

	master, err := os.ReadFile(filepath.Join(cache.EntryDir(key), derive.MasterFileName))
	assert.Nil(t, err)
	assert.Equal(t, "master-bytes", string(master))
}

func TestIsComplete_FalseWhenArtifactMissing(t *testing.T) {
	for _, missing := range []string{
		derive.MasterFileName,
		derive.NormalizedFileName,
		derive.ProxyFileName,
		derive.WaveformFileName,
	} {
		t.Run(missing, func(t *testing.T) {
			cache := derive.NewArtifactCache(t.TempDir())
			srcDir := writeArtifactSet(t)

			const key = "partial"
			assert.Nil(t, cache.Store(srcDir, key))
			assert.Nil(t, os.Remove(filepath.Join(cache.EntryDir(key), missing)))

			assert.False(t, cache.IsComplete(key))
		})
	}
}

func TestIsComplete_FalseWhenNoThumbnails(t *testing.T) {
	cache := derive.NewArtifactCache(t.TempDir())
	srcDir := writeArtifactSet(t)

	const key = "nothumbs"
	assert.Nil(t, cache.Store(srcDir, key))

	thumbDir := filepath.Join(cache.EntryDir(key), derive.ThumbnailDirName)
	assert.Nil(t, os.RemoveAll(thumbDir))
	assert.False(t, cache.IsComplete(key))

	assert.Nil(t, os.MkdirAll(thumbDir, os.ModePerm))
	assert.False(t, cache.IsComplete(key), "an empty thumbnail dir must not count as complete")
}

func TestMaterialize_PartialEntryRejected(t *testing.T) {
	cache := derive.NewArtifactCache(t.TempDir())
	srcDir := writeArtifactSet(t)

	const key = "partial"
	assert.Nil(t, cache.Store(srcDir, key))
	assert.Nil(t, os.Remove(filepath.Join(cache.EntryDir(key), derive.WaveformFileName)))

	err := cache.Materialize(key, t.TempDir())
	assert.ErrorIs(t, err, derive.ErrCachePartial)
}

func TestMaterialize_AbsentEntryRejected(t *testing.T) {
	cache := derive.NewArtifactCache(t.TempDir())

	err := cache.Materialize("never-stored", t.TempDir())
	assert.ErrorIs(t, err, derive.ErrCachePartial)
}
