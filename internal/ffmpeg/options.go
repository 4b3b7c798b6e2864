package ffmpeg

import (
	"fmt"
	"strconv"
)

// Each derivation kind has it's own option builder below. The builders all
// satisfy the floostack 'transcoder.Options' contract (GetStrArguments), which
// is the command description consumed by TranscodeCommand.Run - the option
// struct describes WHAT to do, the command decides HOW it's executed.

// TrimOptions produces a bounded (or, with the zero value, full-range)
// copy of the input. Codecs default to stream-copy so trimming a master
// is a remux rather than a re-encode.
type TrimOptions struct {
	StartTime  float64
	Duration   *float64
	VideoCodec string
	AudioCodec string
	Format     string
}

func (o TrimOptions) GetStrArguments() []string {
	videoCodec := o.VideoCodec
	if videoCodec == "" {
		videoCodec = "copy"
	}
	audioCodec := o.AudioCodec
	if audioCodec == "" {
		audioCodec = "copy"
	}

	args := []string{"-ss", formatFloat(o.StartTime)}
	if o.Duration != nil {
		args = append(args, "-t", formatFloat(*o.Duration))
	}

	args = append(args, "-c:v", videoCodec, "-c:a", audioCodec)
	if o.Format != "" {
		args = append(args, "-f", o.Format)
	}

	return args
}

// NormalizeOptions applies a single-pass EBU R128 loudness normalization
// filter and drops the video stream. Zero-values fall back to the broadcast
// defaults: -16 LUFS integrated, -1.5 dBTP ceiling, 11 LU range.
type NormalizeOptions struct {
	TargetLufs    float64
	TruePeak      float64
	LoudnessRange float64
	Format        string
}

func (o NormalizeOptions) GetStrArguments() []string {
	targetLufs := o.TargetLufs
	if targetLufs == 0 {
		targetLufs = -16
	}
	truePeak := o.TruePeak
	if truePeak == 0 {
		truePeak = -1.5
	}
	loudnessRange := o.LoudnessRange
	if loudnessRange == 0 {
		loudnessRange = 11
	}

	filter := fmt.Sprintf("loudnorm=I=%g:TP=%g:LRA=%g", targetLufs, truePeak, loudnessRange)
	args := []string{"-af", filter, "-vn"}
	if o.Format != "" {
		args = append(args, "-f", o.Format)
	}

	return args
}

// ProxyOptions downscales to the target width; height is computed by the
// engine and forced even (-2) so the result stays encodable. The faststart
// flag relocates the moov atom for immediate browser playback.
type ProxyOptions struct {
	Width        int
	Height       int
	VideoBitrate string
	AudioBitrate string
	Format       string
}

func (o ProxyOptions) GetStrArguments() []string {
	height := o.Height
	if height == 0 {
		height = -2
	}

	args := []string{
		"-vf", fmt.Sprintf("scale=%d:%d", o.Width, height),
		"-movflags", "faststart",
	}

	if o.VideoBitrate != "" {
		args = append(args, "-b:v", o.VideoBitrate)
	}
	if o.AudioBitrate != "" {
		args = append(args, "-b:a", o.AudioBitrate)
	}
	if o.Format != "" {
		args = append(args, "-f", o.Format)
	}

	return args
}

// RawAudioOptions extracts uncompressed PCM (signed 16-bit little-endian)
// with no video stream, downmixed and resampled for waveform analysis.
type RawAudioOptions struct {
	SampleRate int
	Channels   int
}

func (o RawAudioOptions) GetStrArguments() []string {
	sampleRate := o.SampleRate
	if sampleRate == 0 {
		sampleRate = 44100
	}
	channels := o.Channels
	if channels == 0 {
		channels = 1
	}

	return []string{
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
	}
}

// ThumbnailOptions samples N frames from the input using the fps filter;
// the output path is expected to carry a numbered image pattern
// (e.g. thumb-%03d.jpg). FramesPerSecond should be count/duration for
// evenly spaced frames across the whole input.
type ThumbnailOptions struct {
	Count           int
	FramesPerSecond float64
	Width           int
}

func (o ThumbnailOptions) GetStrArguments() []string {
	framesPerSecond := o.FramesPerSecond
	if framesPerSecond <= 0 {
		framesPerSecond = 1
	}

	filter := fmt.Sprintf("fps=%s", formatFloat(framesPerSecond))
	if o.Width > 0 {
		filter = fmt.Sprintf("%s,scale=%d:-2", filter, o.Width)
	}

	return []string{
		"-vf", filter,
		"-frames:v", strconv.Itoa(o.Count),
		"-f", "image2",
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
