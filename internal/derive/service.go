package derive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/waveform"
	"github.com/clipforge/clipforge/pkg/logger"
	"github.com/floostack/transcoder"
	"golang.org/x/sync/errgroup"
)

var log = logger.Get("DeriveServ")

// ErrNoVideoStream indicates a source was probed successfully but holds
// no video stream, making derivation (proxy, thumbnails) impossible.
var ErrNoVideoStream = errors.New("source contains no video stream")

type (
	// Runner abstracts a single engine invocation so tests can substitute
	// the external process with a fake.
	Runner interface {
		Run(ctx context.Context, inputPath string, outputPath string, totalDuration float64, opts transcoder.Options, handlers ffmpeg.CommandHandlers) error
	}

	engineRunner struct {
		config *ffmpeg.Config
	}

	// Service generates the full derived artifact set for a source file,
	// consulting the artifact cache before doing any work and populating
	// it afterwards.
	Service struct {
		cache  *ArtifactCache
		runner Runner
	}
)

func (r *engineRunner) Run(ctx context.Context, inputPath string, outputPath string, totalDuration float64, opts transcoder.Options, handlers ffmpeg.CommandHandlers) error {
	return ffmpeg.NewCmd(inputPath, outputPath, r.config).
		WithDuration(totalDuration).
		Run(ctx, opts, handlers)
}

func New(engineConfig *ffmpeg.Config, cache *ArtifactCache) *Service {
	return &Service{cache: cache, runner: &engineRunner{config: engineConfig}}
}

func NewWithRunner(cache *ArtifactCache, runner Runner) *Service {
	return &Service{cache: cache, runner: runner}
}

// DeriveAll produces every derived artifact for the given source in to
// derivedDir. On a cache hit the artifacts are materialized directly;
// otherwise the trimmed master is generated first, and every other
// artifact derives from it: normalization (feeding the waveform), the
// proxy and the thumbnails run concurrently once the master exists. The
// cache is only populated once every artifact has succeeded.
func (service *Service) DeriveAll(
	ctx context.Context,
	sourcePath string,
	derivedDir string,
	meta *media.Metadata,
	sourceHash string,
) (*media.DerivedAssets, error) {
	if meta == nil || meta.Width == nil {
		return nil, ErrNoVideoStream
	}

	profile := ProfileFor(meta)
	key := service.cache.Key(sourceHash, profile)

	if err := os.MkdirAll(filepath.Join(derivedDir, ThumbnailDirName), os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create derived artifact dir: %w", err)
	}

	if service.cache.IsComplete(key) {
		log.Emit(logger.INFO, "Cache HIT for %s (key %s)\n", sourcePath, key)
		if err := service.cache.Materialize(key, derivedDir); err != nil {
			return nil, err
		}

		return assembleRecord(key, derivedDir)
	}

	log.Emit(logger.INFO, "Cache MISS for %s (key %s), deriving artifacts\n", sourcePath, key)

	duration := 0.0
	if meta.DurationSeconds != nil {
		duration = *meta.DurationSeconds
	}

	masterPath := filepath.Join(derivedDir, MasterFileName)
	if err := service.runner.Run(ctx, sourcePath, masterPath, duration, ffmpeg.TrimOptions{}, service.handlers("master")); err != nil {
		return nil, fmt.Errorf("master generation failed: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		normalizedPath := filepath.Join(derivedDir, NormalizedFileName)
		opts := ffmpeg.NormalizeOptions{
			TargetLufs:    profile.TargetLufs,
			TruePeak:      profile.TruePeak,
			LoudnessRange: profile.LoudnessRange,
		}
		if err := service.runner.Run(groupCtx, masterPath, normalizedPath, duration, opts, service.handlers("normalize")); err != nil {
			return fmt.Errorf("audio normalization failed: %w", err)
		}

		// The waveform is built from the normalized audio so the
		// rendered peaks match what playback actually sounds like.
		return service.buildWaveform(groupCtx, normalizedPath, filepath.Join(derivedDir, WaveformFileName), profile, duration)
	})
	group.Go(func() error {
		opts := ffmpeg.ProxyOptions{
			Width:        profile.ProxyWidth,
			VideoBitrate: "1500k",
			AudioBitrate: "128k",
		}
		if err := service.runner.Run(groupCtx, masterPath, filepath.Join(derivedDir, ProxyFileName), duration, opts, service.handlers("proxy")); err != nil {
			return fmt.Errorf("proxy generation failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		framesPerSecond := 1.0
		if duration > 0 {
			framesPerSecond = float64(profile.ThumbnailCount) / duration
		}

		pattern := filepath.Join(derivedDir, ThumbnailDirName, "thumb-%03d.jpg")
		opts := ffmpeg.ThumbnailOptions{Count: profile.ThumbnailCount, FramesPerSecond: framesPerSecond, Width: 320}
		if err := service.runner.Run(groupCtx, masterPath, pattern, duration, opts, service.handlers("thumbnails")); err != nil {
			return fmt.Errorf("thumbnail generation failed: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if err := service.cache.Store(derivedDir, key); err != nil {
		return nil, err
	}

	return assembleRecord(key, derivedDir)
}

// buildWaveform extracts raw PCM from the audio artifact, reduces it to
// peak buckets and writes the JSON artifact. The intermediate PCM file
// is removed regardless of outcome.
func (service *Service) buildWaveform(ctx context.Context, audioPath string, waveformPath string, profile Profile, duration float64) error {
	pcmPath := waveformPath + ".pcm"
	defer os.Remove(pcmPath)

	opts := ffmpeg.RawAudioOptions{SampleRate: profile.WaveformSampleRate, Channels: 1}
	if err := service.runner.Run(ctx, audioPath, pcmPath, duration, opts, service.handlers("waveform-pcm")); err != nil {
		return fmt.Errorf("waveform PCM extraction failed: %w", err)
	}

	pcm, err := os.ReadFile(pcmPath)
	if err != nil {
		return fmt.Errorf("failed to read extracted PCM: %w", err)
	}

	data := waveform.Build(pcm, profile.WaveformSampleRate, profile.WaveformPointCount)
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode waveform data: %w", err)
	}

	if err := os.WriteFile(waveformPath, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write waveform artifact: %w", err)
	}

	return nil
}

func (service *Service) handlers(step string) ffmpeg.CommandHandlers {
	return ffmpeg.CommandHandlers{
		OnStart: func(command string) {
			log.Emit(logger.DEBUG, "[%s] %s\n", step, command)
		},
		OnProgress: func(progress *ffmpeg.Progress) {
			log.Emit(logger.VERBOSE, "[%s] progress %.0f%% (time=%s speed=%s)\n", step, progress.Progress*100, progress.CurrentTime, progress.Speed)
		},
	}
}

// assembleRecord builds the DerivedAssets record by inspecting the
// artifacts on disk. Thumbnails are listed in lexicographic order, which
// matches their temporal order due to the zero-padded numbering.
func assembleRecord(key string, derivedDir string) (*media.DerivedAssets, error) {
	entries, err := os.ReadDir(filepath.Join(derivedDir, ThumbnailDirName))
	if err != nil {
		return nil, fmt.Errorf("failed to list thumbnails: %w", err)
	}

	thumbs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		thumbs = append(thumbs, filepath.Join(derivedDir, ThumbnailDirName, entry.Name()))
	}
	sort.Strings(thumbs)

	return &media.DerivedAssets{
		CacheKey:            key,
		MasterPath:          filepath.Join(derivedDir, MasterFileName),
		NormalizedAudioPath: filepath.Join(derivedDir, NormalizedFileName),
		ProxyPath:           filepath.Join(derivedDir, ProxyFileName),
		WaveformPath:        filepath.Join(derivedDir, WaveformFileName),
		ThumbnailPaths:      thumbs,
	}, nil
}
