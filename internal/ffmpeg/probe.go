package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// ErrProbeFailed indicates the probing tool could not be invoked against
// a file, or produced output that could not be understood.
var ErrProbeFailed = errors.New("media file could not be probed")

type (
	ProbeFormat struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	}

	ProbeStream struct {
		Index        int    `json:"index"`
		CodecName    string `json:"codec_name"`
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		Channels     int    `json:"channels"`
		SampleRate   string `json:"sample_rate"`
	}

	// ProbeResult is the typed subset of ffprobe's JSON output which the
	// ingestion pipeline consumes.
	ProbeResult struct {
		Format  ProbeFormat   `json:"format"`
		Streams []ProbeStream `json:"streams"`
	}
)

// ProbeFile runs ffprobe against the path provided and parses the
// structured output. Failures to invoke the binary or to decode it's
// output both wrap ErrProbeFailed. Cancelling the context kills a
// still-running probe.
func ProbeFile(ctx context.Context, path string, config *Config) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, config.ffprobeBin(),
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe execution failed for %s: %v", ErrProbeFailed, path, err)
	}

	var result ProbeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed ffprobe output for %s: %v", ErrProbeFailed, path, err)
	}

	return &result, nil
}
