package media_test

import (
	"testing"

	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/stretchr/testify/assert"
)

func TestParseRational(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *float64
	}{
		{"standard NTSC rate", "30000/1001", floatPtr(30000.0 / 1001.0)},
		{"whole frame rate", "25/1", floatPtr(25)},
		{"zero over zero", "0/0", nil},
		{"zero numerator", "0/1", nil},
		{"zero denominator", "30/0", nil},
		{"missing denominator", "30", nil},
		{"empty", "", nil},
		{"garbage", "abc/def", nil},
		{"too many parts", "1/2/3", nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := media.ParseRational(test.input)
			if test.expected == nil {
				assert.Nil(t, result)
			} else {
				assert.NotNil(t, result)
				assert.InDelta(t, *test.expected, *result, 0.0001)
			}
		})
	}
}

func TestMetadataFromProbe(t *testing.T) {
	probe := &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{FormatName: "mov,mp4,m4a", Duration: "5.000000"},
		Streams: []ffmpeg.ProbeStream{
			{Index: 0, CodecType: "video", CodecName: "h264", Width: 1280, Height: 720, AvgFrameRate: "30/1"},
			{Index: 1, CodecType: "audio", CodecName: "aac", Channels: 2, SampleRate: "48000"},
		},
	}

	meta := media.MetadataFromProbe(probe)

	assert.NotNil(t, meta.DurationSeconds)
	assert.InDelta(t, 5.0, *meta.DurationSeconds, 0.0001)
	assert.NotNil(t, meta.Width)
	assert.Equal(t, 1280, *meta.Width)
	assert.Equal(t, 720, *meta.Height)
	assert.NotNil(t, meta.FrameRate)
	assert.InDelta(t, 30.0, *meta.FrameRate, 0.0001)

	assert.Len(t, meta.AudioTracks, 1)
	assert.Equal(t, media.AudioTrack{Index: 1, Codec: "aac", Channels: 2, SampleRate: 48000}, meta.AudioTracks[0])
}

func TestMetadataFromProbe_FrameRateFallsBackToRFrameRate(t *testing.T) {
	probe := &ffmpeg.ProbeResult{
		Streams: []ffmpeg.ProbeStream{
			{CodecType: "video", Width: 640, Height: 480, AvgFrameRate: "0/0", RFrameRate: "24/1"},
		},
	}

	meta := media.MetadataFromProbe(probe)
	assert.NotNil(t, meta.FrameRate)
	assert.InDelta(t, 24.0, *meta.FrameRate, 0.0001)
}

func TestMetadataFromProbe_MissingFieldsRemainNil(t *testing.T) {
	meta := media.MetadataFromProbe(&ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{Duration: "N/A"},
	})

	assert.Nil(t, meta.DurationSeconds)
	assert.Nil(t, meta.Width)
	assert.Nil(t, meta.Height)
	assert.Nil(t, meta.FrameRate)
	assert.Empty(t, meta.AudioTracks)
}

func TestFirstAudioSampleRate(t *testing.T) {
	meta := &media.Metadata{AudioTracks: []media.AudioTrack{
		{Index: 1, SampleRate: 0},
		{Index: 2, SampleRate: 22050},
	}}
	assert.Equal(t, 22050, meta.FirstAudioSampleRate(44100))

	empty := &media.Metadata{}
	assert.Equal(t, 44100, empty.FirstAudioSampleRate(44100))
}

func floatPtr(v float64) *float64 { return &v }
