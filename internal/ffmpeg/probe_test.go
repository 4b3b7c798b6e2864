package ffmpeg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbeFile_CancelledContextAbortsProbe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := ProbeFile(ctx, "/nonexistent/clip.mp4", nil)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrProbeFailed)
}
