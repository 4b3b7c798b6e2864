package internal

import (
	"fmt"
	"path/filepath"

	"github.com/clipforge/clipforge/internal/database"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/ingest"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
)

// ClipForgeConfig is the struct used to contain the
// various user config supplied by file, or
// manually inside the code.
type ClipForgeConfig struct {
	Storage  StorageConfig           `yaml:"storage"`
	Engine   ffmpeg.Config           `yaml:"engine"`
	Database database.DatabaseConfig `yaml:"database"`
	Ingest   ingest.Config           `yaml:"ingestion"`
}

// StorageConfig locates the asset store root and the derivation cache.
// The cache defaults to living under the storage root so a single
// directory carries everything the server owns.
type StorageConfig struct {
	Root     string `yaml:"root" env:"ASSET_STORAGE_ROOT" env-default:"./storage" validate:"required"`
	CacheDir string `yaml:"cache_dir" env:"ARTIFACT_CACHE_DIR"`
}

// ResolvedRoot expands a leading ~ in the configured root path.
func (config *StorageConfig) ResolvedRoot() (string, error) {
	root, err := homedir.Expand(config.Root)
	if err != nil {
		return "", fmt.Errorf("failed to expand storage root '%s': %w", config.Root, err)
	}

	return root, nil
}

func (config *StorageConfig) ResolvedCacheDir() (string, error) {
	if config.CacheDir != "" {
		return homedir.Expand(config.CacheDir)
	}

	root, err := config.ResolvedRoot()
	if err != nil {
		return "", err
	}

	return filepath.Join(root, "cache"), nil
}

// LoadFromFile loads a YAML configuration file in to the config struct,
// falling back to environment variables when no file path is given.
func (config *ClipForgeConfig) LoadFromFile(configPath string) error {
	if configPath == "" {
		if err := cleanenv.ReadEnv(config); err != nil {
			return fmt.Errorf("failed to load configuration from environment - %v", err.Error())
		}
		return nil
	}

	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration from '%s' - %v", configPath, err.Error())
	}

	return nil
}

func (config *ClipForgeConfig) Validate() error {
	return validator.New().Struct(config)
}
