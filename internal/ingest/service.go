package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/pkg/logger"
	"github.com/google/uuid"
)

var log = logger.Get("IngestServ")

type (
	Config struct {
		WatchPath            string `yaml:"watch_path" env:"INGEST_WATCH_PATH"`
		ForceSyncSeconds     int    `yaml:"force_sync_seconds" env:"INGEST_FORCE_SYNC_SECONDS" env-default:"300"`
		IngestionParallelism int    `yaml:"parallelism" env:"INGEST_PARALLELISM" env-default:"2" validate:"min=1"`
	}

	metadataExtractor interface {
		Extract(ctx context.Context, path string) (*media.Metadata, error)
	}

	deriver interface {
		DeriveAll(ctx context.Context, sourcePath string, derivedDir string, meta *media.Metadata, sourceHash string) (*media.DerivedAssets, error)
	}

	assetStore interface {
		Save(asset *media.Asset) error
		Get(id uuid.UUID) (*media.Asset, error)
		Delete(id uuid.UUID) error
	}

	service struct {
		paths        media.StoragePaths
		extractor    metadataExtractor
		deriver      deriver
		store        assetStore
		ensureEngine func() error
	}
)

// New constructs the ingestion service with it's collaborators injected,
// keeping the orchestration testable without an engine or database.
func New(paths media.StoragePaths, extractor metadataExtractor, deriver deriver, store assetStore, ensureEngine func() error) *service {
	return &service{
		paths:        paths,
		extractor:    extractor,
		deriver:      deriver,
		store:        store,
		ensureEngine: ensureEngine,
	}
}

// Ingest copies the provided content in to the asset store, probes it,
// derives the full artifact set and persists the resulting asset record.
// The engine availability check runs before any bytes are written so a
// misconfigured host fails instantly rather than after a large copy.
//
// Files written before a failure are deliberately left on disk for
// inspection; their paths are logged and no asset record references them.
func (service *service) Ingest(ctx context.Context, content io.Reader, declaredFilename string) (*media.Asset, error) {
	if err := service.ensureEngine(); err != nil {
		return nil, err
	}

	id := uuid.New()
	filename := SanitizeFilename(declaredFilename)
	log.Emit(logger.INFO, "Ingesting '%s' as asset %s\n", filename, id)

	sourceDir := service.paths.SourceDir(id)
	if err := os.MkdirAll(sourceDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create source dir for asset %s: %w", id, err)
	}

	sourcePath := filepath.Join(sourceDir, filename)
	sizeBytes, contentHash, err := writeAndHash(sourcePath, content)
	if err != nil {
		service.logAbandoned(id)
		return nil, fmt.Errorf("failed to write source file for asset %s: %w", id, err)
	}

	meta, err := service.extractor.Extract(ctx, sourcePath)
	if err != nil {
		service.logAbandoned(id)
		return nil, err
	}

	derived, err := service.deriver.DeriveAll(ctx, sourcePath, service.paths.DerivedDir(id), meta, contentHash)
	if err != nil {
		service.logAbandoned(id)
		return nil, err
	}

	asset := &media.Asset{
		ID:           id,
		OriginalName: filename,
		SourcePath:   sourcePath,
		SizeBytes:    sizeBytes,
		ContentHash:  contentHash,
		CreatedAt:    time.Now().UTC(),
		Metadata:     meta,
		Derived:      derived,
	}

	if err := service.paths.WriteRecord(asset); err != nil {
		service.logAbandoned(id)
		return nil, err
	}

	if err := service.store.Save(asset); err != nil {
		service.logAbandoned(id)
		return nil, fmt.Errorf("failed to persist asset %s: %w", id, err)
	}

	log.Emit(logger.SUCCESS, "Asset %s ('%s', %d bytes) ingested\n", id, filename, sizeBytes)
	return asset, nil
}

// IngestFile is a convenience wrapper which ingests a file already on
// disk, deriving the declared name from it's path.
func (service *service) IngestFile(ctx context.Context, path string) (*media.Asset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file for ingestion: %w", err)
	}
	defer file.Close()

	return service.Ingest(ctx, file, filepath.Base(path))
}

// Remove deletes an assets database record and it's entire storage
// directory. Cached derivation artifacts are untouched; a re-ingest of
// identical content will still hit the cache.
func (service *service) Remove(id uuid.UUID) error {
	asset, err := service.store.Get(id)
	if err != nil {
		return err
	}

	if err := service.store.Delete(asset.ID); err != nil {
		return err
	}

	if err := os.RemoveAll(service.paths.AssetDir(asset.ID)); err != nil {
		return fmt.Errorf("asset %s record deleted, but removing it's files failed: %w", asset.ID, err)
	}

	log.Emit(logger.REMOVE, "Asset %s removed\n", asset.ID)
	return nil
}

func (service *service) logAbandoned(id uuid.UUID) {
	log.Emit(logger.WARNING, "Ingestion of asset %s failed; orphaned files (if any) retained at %s\n", id, service.paths.AssetDir(id))
}

// writeAndHash streams content to the path, computing it's sha256 in the
// same pass. Returns the byte count and lowercase hex digest.
func writeAndHash(path string, content io.Reader) (int64, string, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, "", err
	}

	digest := sha256.New()
	sizeBytes, err := io.Copy(out, io.TeeReader(content, digest))
	if err != nil {
		out.Close()
		return 0, "", err
	}

	if err := out.Close(); err != nil {
		return 0, "", err
	}

	return sizeBytes, hex.EncodeToString(digest.Sum(nil)), nil
}

// SanitizeFilename reduces a client-declared filename to a safe basename.
// Path separators are replaced and names which reduce to nothing (or to
// directory traversal tokens) fall back to "source".
func SanitizeFilename(declared string) string {
	name := filepath.Base(strings.TrimSpace(declared))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "source"
	}

	name = strings.NewReplacer("\\", "_", "/", "_").Replace(name)
	if name == "" {
		return "source"
	}

	return name
}
