// Package waveform reduces raw PCM audio into the compact peak table
// rendered by timeline UIs. Samples are grouped into evenly sized buckets
// and each bucket is collapsed to it's maximum absolute amplitude.
package waveform

import (
	"encoding/binary"
	"math"
)

// Data is the serialized waveform artifact. Peaks are normalized to the
// 0..1 range, one entry per bucket, ordered from the start of the audio.
type Data struct {
	SampleRate int       `json:"sampleRate"`
	PointCount int       `json:"pointCount"`
	Peaks      []float64 `json:"peaks"`
}

// Build collapses signed 16-bit little-endian mono PCM into exactly
// min(pointCount, sampleCount) peak buckets: audio shorter than the
// requested resolution yields one bucket per sample rather than empty
// padding buckets. A trailing odd byte (a truncated sample) is ignored.
func Build(pcm []byte, sampleRate int, pointCount int) *Data {
	sampleCount := len(pcm) / 2
	if pointCount > sampleCount {
		pointCount = sampleCount
	}

	data := &Data{
		SampleRate: sampleRate,
		PointCount: pointCount,
		Peaks:      make([]float64, 0, pointCount),
	}
	if sampleCount == 0 || pointCount <= 0 {
		data.PointCount = 0
		return data
	}

	// Index-range partitioning gives every one of the pointCount buckets
	// at least one sample, with bucket sizes differing by at most one.
	for bucket := 0; bucket < pointCount; bucket++ {
		start := bucket * sampleCount / pointCount
		end := (bucket + 1) * sampleCount / pointCount

		peak := 0.0
		for i := start; i < end; i++ {
			sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
			if amplitude := math.Abs(float64(sample)) / 32768; amplitude > peak {
				peak = amplitude
			}
		}

		data.Peaks = append(data.Peaks, peak)
	}

	return data
}
