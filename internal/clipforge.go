package internal

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/clipforge/clipforge/internal/database"
	"github.com/clipforge/clipforge/internal/derive"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/ingest"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/pkg/logger"
	"github.com/google/uuid"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	// boundAssetStore binds the asset store to the database manager so
	// that the ingestion service doesn't carry persistence plumbing.
	boundAssetStore struct {
		store *media.Store
		db    database.Manager
	}

	clipForge struct {
		config ClipForgeConfig

		db         database.Manager
		assetStore *media.Store
	}
)

func (b *boundAssetStore) Save(asset *media.Asset) error {
	return b.store.Save(b.db.GetSqlxDb(), asset)
}

func (b *boundAssetStore) Get(id uuid.UUID) (*media.Asset, error) {
	return b.store.Get(b.db.GetSqlxDb(), id)
}

func (b *boundAssetStore) Delete(id uuid.UUID) error {
	return b.store.Delete(b.db.GetSqlxDb(), id)
}

func New(config ClipForgeConfig) *clipForge {
	log.Emit(logger.DEBUG, "Bootstrapping ClipForge services using config: %#v\n", config)
	return &clipForge{
		config:     config,
		db:         database.New(),
		assetStore: media.NewStore(),
	}
}

// Run brings up the database connection and the ingestion machinery,
// then either ingests the provided files and returns, or (when no files
// are given) watches the configured drop folder until the context is
// cancelled.
func (forge *clipForge) Run(parent context.Context, oneShotFiles []string) error {
	storageRoot, err := forge.config.Storage.ResolvedRoot()
	if err != nil {
		return err
	}
	cacheDir, err := forge.config.Storage.ResolvedCacheDir()
	if err != nil {
		return err
	}

	for _, dir := range []string{storageRoot, cacheDir} {
		if err := os.MkdirAll(dir, os.ModeDir|os.ModePerm); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}

	log.Emit(logger.NEW, "Connecting to database...\n")
	if err := forge.db.Connect(forge.config.Database); err != nil {
		return err
	}

	engineConfig := &forge.config.Engine
	paths := media.StoragePaths{Root: storageRoot}
	cache := derive.NewArtifactCache(cacheDir)
	deriveService := derive.New(engineConfig, cache)
	extractor := &media.Extractor{EngineConfig: engineConfig}
	ingestService := ingest.New(
		paths,
		extractor,
		deriveService,
		&boundAssetStore{store: forge.assetStore, db: forge.db},
		func() error { return ffmpeg.EnsureAvailable(engineConfig) },
	)

	if len(oneShotFiles) > 0 {
		for _, path := range oneShotFiles {
			asset, err := ingestService.IngestFile(parent, path)
			if err != nil {
				return fmt.Errorf("ingestion of '%s' failed: %w", path, err)
			}
			log.Emit(logger.SUCCESS, "Ingested '%s' -> asset %s\n", path, asset.ID)
		}
		return nil
	}

	if forge.config.Ingest.WatchPath == "" {
		return fmt.Errorf("no files provided and no watch path configured; nothing to do")
	}

	watcher, err := ingest.NewWatcher(forge.config.Ingest, ingestService)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	wg := &sync.WaitGroup{}
	forge.spawnAsyncService(ctx, wg, watcher, "ingest-watcher", crashHandler)
	log.Emit(logger.SUCCESS, "ClipForge services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the service waitgroup is updated correctly
func (forge *clipForge) spawnAsyncService(context context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(context); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
