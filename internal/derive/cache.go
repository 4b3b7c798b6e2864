package derive

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/clipforge/clipforge/pkg/logger"
)

// ErrCachePartial indicates a cache entry exists on disk but is missing
// one or more artifacts, typically the debris of an interrupted Store.
// Partial entries are never served; callers should re-derive.
var ErrCachePartial = errors.New("cache entry is incomplete")

const (
	MasterFileName     = "master.mp4"
	NormalizedFileName = "normalized.m4a"
	ProxyFileName      = "proxy.mp4"
	WaveformFileName   = "waveform.json"
	ThumbnailDirName   = "thumbnails"
)

// ArtifactCache is a content-addressed store of derived artifact sets.
// Each entry is a directory named by it's key; entries become visible
// atomically via a staging-dir rename, so concurrent readers only ever
// observe absent or fully written entries.
type ArtifactCache struct {
	rootDir string
}

func NewArtifactCache(rootDir string) *ArtifactCache {
	return &ArtifactCache{rootDir: rootDir}
}

// Key computes the cache key for a source and processing profile. The
// key covers the source content hash and every profile field, so any
// change to either addresses a different entry.
func (cache *ArtifactCache) Key(sourceHash string, profile Profile) string {
	digest := sha256.New()
	digest.Write([]byte(sourceHash))
	digest.Write(profile.CanonicalJSON())
	return hex.EncodeToString(digest.Sum(nil))
}

func (cache *ArtifactCache) EntryDir(key string) string {
	return filepath.Join(cache.rootDir, key)
}

// IsComplete reports whether the entry holds every expected artifact:
// all four files plus at least one thumbnail.
func (cache *ArtifactCache) IsComplete(key string) bool {
	dir := cache.EntryDir(key)
	for _, name := range []string{MasterFileName, NormalizedFileName, ProxyFileName, WaveformFileName} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.IsDir() {
			return false
		}
	}

	thumbs, err := os.ReadDir(filepath.Join(dir, ThumbnailDirName))
	return err == nil && len(thumbs) > 0
}

// Materialize copies a complete cache entry's artifacts in to destDir.
// The destination receives the four artifact files plus a thumbnails
// subdirectory, mirroring the entry layout.
func (cache *ArtifactCache) Materialize(key string, destDir string) error {
	if !cache.IsComplete(key) {
		return fmt.Errorf("cannot materialize entry %s: %w", key, ErrCachePartial)
	}

	log.Emit(logger.DEBUG, "Materializing cache entry %s -> %s\n", key, destDir)
	return copyArtifacts(cache.EntryDir(key), destDir)
}

// Store copies the artifact set from srcDir in to the cache under the
// given key. The copy lands in a staging directory first and is renamed
// in to place, so a crash mid-store leaves no visible partial entry. If
// a complete entry already exists the store is a no-op; two concurrent
// derivations of identical content simply race to publish equal bytes.
func (cache *ArtifactCache) Store(srcDir string, key string) error {
	if cache.IsComplete(key) {
		log.Emit(logger.DEBUG, "Cache entry %s already complete, skipping store\n", key)
		return nil
	}

	stagingDir := cache.EntryDir(key) + ".staging"
	if err := os.RemoveAll(stagingDir); err != nil {
		return fmt.Errorf("failed to clear cache staging dir: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	if err := copyArtifacts(srcDir, stagingDir); err != nil {
		return fmt.Errorf("failed to stage cache entry %s: %w", key, err)
	}

	if err := os.Rename(stagingDir, cache.EntryDir(key)); err != nil {
		// A concurrent derivation may have published the same entry
		// between our completeness check and the rename.
		if cache.IsComplete(key) {
			return nil
		}
		return fmt.Errorf("failed to publish cache entry %s: %w", key, err)
	}

	log.Emit(logger.INFO, "Stored cache entry %s\n", key)
	return nil
}

func copyArtifacts(srcDir string, destDir string) error {
	if err := os.MkdirAll(filepath.Join(destDir, ThumbnailDirName), os.ModePerm); err != nil {
		return err
	}

	for _, name := range []string{MasterFileName, NormalizedFileName, ProxyFileName, WaveformFileName} {
		if err := copyFile(filepath.Join(srcDir, name), filepath.Join(destDir, name)); err != nil {
			return err
		}
	}

	thumbs, err := os.ReadDir(filepath.Join(srcDir, ThumbnailDirName))
	if err != nil {
		return err
	}
	for _, thumb := range thumbs {
		if thumb.IsDir() {
			continue
		}

		src := filepath.Join(srcDir, ThumbnailDirName, thumb.Name())
		dest := filepath.Join(destDir, ThumbnailDirName, thumb.Name())
		if err := copyFile(src, dest); err != nil {
			return err
		}
	}

	return nil
}

func copyFile(src string, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
