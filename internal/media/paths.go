package media

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// StoragePaths computes the on-disk layout of the asset store. Every asset
// owns a directory keyed by it's ID:
//
//	<root>/assets/<id>/source/<original name>
//	<root>/assets/<id>/derived/...
//	<root>/assets/<id>/asset.json
type StoragePaths struct {
	Root string
}

func (p StoragePaths) AssetDir(id uuid.UUID) string {
	return filepath.Join(p.Root, "assets", id.String())
}

func (p StoragePaths) SourceDir(id uuid.UUID) string {
	return filepath.Join(p.AssetDir(id), "source")
}

func (p StoragePaths) DerivedDir(id uuid.UUID) string {
	return filepath.Join(p.AssetDir(id), "derived")
}

func (p StoragePaths) RecordPath(id uuid.UUID) string {
	return filepath.Join(p.AssetDir(id), "asset.json")
}

// WriteRecord persists a JSON copy of the asset record alongside it's
// files. The database remains authoritative; this copy keeps the asset
// directory self-describing for manual inspection and recovery.
func (p StoragePaths) WriteRecord(asset *Asset) error {
	data, err := json.MarshalIndent(asset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode asset record %s: %w", asset.ID, err)
	}

	if err := os.WriteFile(p.RecordPath(asset.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write asset record %s: %w", asset.ID, err)
	}

	return nil
}
