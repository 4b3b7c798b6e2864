package derive_test

import (
	"testing"

	"github.com/clipforge/clipforge/internal/derive"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/stretchr/testify/assert"
)

func metaWith(width int, durationSeconds float64, sampleRate int) *media.Metadata {
	height := width * 9 / 16
	meta := &media.Metadata{Width: &width, Height: &height, DurationSeconds: &durationSeconds}
	if sampleRate > 0 {
		meta.AudioTracks = []media.AudioTrack{{Index: 1, SampleRate: sampleRate}}
	}
	return meta
}

func TestProfileFor_Defaults(t *testing.T) {
	profile := derive.ProfileFor(nil)

	assert.Equal(t, derive.ProfileVersion, profile.Version)
	assert.Equal(t, 640, profile.ProxyWidth)
	assert.Equal(t, -16.0, profile.TargetLufs)
	assert.Equal(t, -1.5, profile.TruePeak)
	assert.Equal(t, 11.0, profile.LoudnessRange)
	assert.Equal(t, 8, profile.ThumbnailCount)
	assert.Equal(t, 800, profile.WaveformPointCount)
	assert.Equal(t, 44100, profile.WaveformSampleRate)
}

func TestProfileFor_ProxyWidth(t *testing.T) {
	tests := []struct {
		name        string
		sourceWidth int
		expected    int
	}{
		{"standard HD halves", 1280, 640},
		{"full HD halves", 1920, 960},
		{"small source clamps up", 320, 480},
		{"4k clamps down", 3840, 960},
		{"odd half rounds to even", 1281, 642},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			profile := derive.ProfileFor(metaWith(test.sourceWidth, 30, 44100))
			assert.Equal(t, test.expected, profile.ProxyWidth)
			assert.Zero(t, profile.ProxyWidth%2)
		})
	}
}

func TestProfileFor_ThumbnailCount(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		expected int
	}{
		{"short clip clamps to minimum", 10, 8},
		{"one per five seconds", 60, 12},
		{"long video clamps to maximum", 1000, 24},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			profile := derive.ProfileFor(metaWith(1280, test.duration, 44100))
			assert.Equal(t, test.expected, profile.ThumbnailCount)
		})
	}
}

func TestProfileFor_WaveformPoints(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		expected int
	}{
		{"short clip clamps to minimum", 10, 600},
		{"forty per second", 30, 1200},
		{"long video clamps to maximum", 1000, 2000},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			profile := derive.ProfileFor(metaWith(1280, test.duration, 44100))
			assert.Equal(t, test.expected, profile.WaveformPointCount)
		})
	}
}

func TestProfileFor_WaveformSampleRateFollowsSource(t *testing.T) {
	assert.Equal(t, 48000, derive.ProfileFor(metaWith(1280, 30, 48000)).WaveformSampleRate)
	assert.Equal(t, 44100, derive.ProfileFor(metaWith(1280, 30, 0)).WaveformSampleRate)
}

func TestCacheKey_Deterministic(t *testing.T) {
	cache := derive.NewArtifactCache(t.TempDir())
	profile := derive.ProfileFor(metaWith(1280, 30, 44100))

	first := cache.Key("abc123", profile)
	second := cache.Key("abc123", profile)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestCacheKey_SensitiveToEveryInput(t *testing.T) {
	cache := derive.NewArtifactCache(t.TempDir())
	base := derive.ProfileFor(metaWith(1280, 30, 44100))
	baseKey := cache.Key("abc123", base)

	assert.NotEqual(t, baseKey, cache.Key("different-hash", base))

	mutations := []func(*derive.Profile){
		func(p *derive.Profile) { p.Version++ },
		func(p *derive.Profile) { p.ProxyWidth = 480 },
		func(p *derive.Profile) { p.TargetLufs = -23 },
		func(p *derive.Profile) { p.TruePeak = -2 },
		func(p *derive.Profile) { p.LoudnessRange = 7 },
		func(p *derive.Profile) { p.ThumbnailCount++ },
		func(p *derive.Profile) { p.WaveformPointCount++ },
		func(p *derive.Profile) { p.WaveformSampleRate = 48000 },
	}

	for k, mutate := range mutations {
		mutated := base
		mutate(&mutated)
		assert.NotEqualf(t, baseKey, cache.Key("abc123", mutated), "mutation %d did not alter the cache key", k)
	}
}
