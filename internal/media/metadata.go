package media

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/pkg/logger"
)

var log = logger.Get("MediaProbe")

// Extractor probes source files on disk and maps the raw stream
// information into the asset Metadata shape.
type Extractor struct {
	EngineConfig *ffmpeg.Config
}

func (ex *Extractor) Extract(ctx context.Context, path string) (*Metadata, error) {
	probe, err := ffmpeg.ProbeFile(ctx, path, ex.EngineConfig)
	if err != nil {
		return nil, err
	}

	meta := MetadataFromProbe(probe)
	log.Emit(logger.DEBUG, "Probed %s: %d streams, duration=%v\n", path, len(probe.Streams), meta.DurationSeconds)
	return meta, nil
}

// MetadataFromProbe maps a raw probe result into Metadata. Missing or
// unparseable fields are left nil; a probe never fails just because a
// stream omits an attribute.
func MetadataFromProbe(probe *ffmpeg.ProbeResult) *Metadata {
	meta := &Metadata{AudioTracks: make([]AudioTrack, 0)}

	if seconds, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && !math.IsInf(seconds, 0) && !math.IsNaN(seconds) {
		meta.DurationSeconds = &seconds
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if meta.Width == nil && stream.Width > 0 && stream.Height > 0 {
				width, height := stream.Width, stream.Height
				meta.Width = &width
				meta.Height = &height
			}

			if meta.FrameRate == nil {
				if fps := ParseRational(stream.AvgFrameRate); fps != nil {
					meta.FrameRate = fps
				} else if fps := ParseRational(stream.RFrameRate); fps != nil {
					meta.FrameRate = fps
				}
			}
		case "audio":
			sampleRate, _ := strconv.Atoi(stream.SampleRate)
			meta.AudioTracks = append(meta.AudioTracks, AudioTrack{
				Index:      stream.Index,
				Codec:      stream.CodecName,
				Channels:   stream.Channels,
				SampleRate: sampleRate,
			})
		}
	}

	return meta
}

// ParseRational parses ffprobe's fractional notation (e.g. "30000/1001")
// into a float. Returns nil for malformed input, or when either side of
// the fraction is zero; ffprobe uses "0/0" for streams with no usable
// frame rate.
func ParseRational(value string) *float64 {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return nil
	}

	num, numErr := strconv.ParseFloat(parts[0], 64)
	den, denErr := strconv.ParseFloat(parts[1], 64)
	if numErr != nil || denErr != nil || num == 0 || den == 0 {
		return nil
	}

	result := num / den
	return &result
}

// FirstAudioSampleRate returns the sample rate of the first audio track,
// or the fallback when the source carries no usable audio.
func (meta *Metadata) FirstAudioSampleRate(fallback int) int {
	for _, track := range meta.AudioTracks {
		if track.SampleRate > 0 {
			return track.SampleRate
		}
	}
	return fallback
}

func (meta *Metadata) String() string {
	dims := "unknown"
	if meta.Width != nil && meta.Height != nil {
		dims = fmt.Sprintf("%dx%d", *meta.Width, *meta.Height)
	}
	return fmt.Sprintf("Metadata{dims=%s audioTracks=%d}", dims, len(meta.AudioTracks))
}
