package derive

import (
	"encoding/json"
	"math"

	"github.com/clipforge/clipforge/internal/media"
)

// ProfileVersion is baked in to every cache key. Bumping it invalidates
// all previously derived artifacts, which is required whenever the
// derivation commands change in a way that alters their output.
const ProfileVersion = 1

// Profile captures every input to derivation which affects artifact
// content. Two sources with equal content hashes and equal profiles are
// guaranteed interchangeable, which is what makes cache reuse sound.
type Profile struct {
	Version            int     `json:"version"`
	ProxyWidth         int     `json:"proxyWidth"`
	TargetLufs         float64 `json:"targetLufs"`
	TruePeak           float64 `json:"truePeak"`
	LoudnessRange      float64 `json:"loudnessRange"`
	ThumbnailCount     int     `json:"thumbnailCount"`
	WaveformPointCount int     `json:"waveformPointCount"`
	WaveformSampleRate int     `json:"waveformSampleRate"`
}

// ProfileFor derives the processing profile from the probed source
// shape. Every tunable is clamped to a sane range so pathological
// sources (8 hour screen recordings, 100px clips) can't explode the
// artifact sizes.
func ProfileFor(meta *media.Metadata) Profile {
	profile := Profile{
		Version:            ProfileVersion,
		ProxyWidth:         640,
		TargetLufs:         -16,
		TruePeak:           -1.5,
		LoudnessRange:      11,
		ThumbnailCount:     8,
		WaveformPointCount: 800,
		WaveformSampleRate: 44100,
	}
	if meta == nil {
		return profile
	}

	if meta.Width != nil {
		width := clampInt(480, 960, int(math.Round(float64(*meta.Width)/2)))
		if width%2 != 0 {
			width++
		}
		profile.ProxyWidth = width
	}

	if meta.DurationSeconds != nil && *meta.DurationSeconds > 0 {
		duration := *meta.DurationSeconds
		profile.ThumbnailCount = clampInt(8, 24, int(math.Round(duration/5)))
		profile.WaveformPointCount = clampInt(600, 2000, int(math.Round(duration*40)))
	}

	profile.WaveformSampleRate = meta.FirstAudioSampleRate(44100)

	return profile
}

// CanonicalJSON renders the profile in a stable byte form suitable for
// hashing. Struct field order is fixed at compile time, so plain
// marshalling is already deterministic.
func (p Profile) CanonicalJSON() []byte {
	data, err := json.Marshal(p)
	if err != nil {
		// Profile contains only scalar fields; marshalling cannot fail.
		panic(err)
	}

	return data
}

func clampInt(min int, max int, value int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
