package ffmpeg

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/clipforge/clipforge/pkg/logger"
)

// ErrUnavailable indicates the external transcode engine is missing or
// misconfigured on the host machine.
var ErrUnavailable = errors.New("ffmpeg engine is not available")

var (
	availabilityOnce sync.Once
	availabilityErr  error
)

// EnsureAvailable verifies the engine binaries can be found and executed.
// The check runs at most once per process lifetime; every subsequent call
// returns the memoized result, so callers can gate each ingestion on it
// without re-probing the host.
func EnsureAvailable(config *Config) error {
	availabilityOnce.Do(func() {
		availabilityErr = checkAvailability(config)
		if availabilityErr == nil {
			log.Emit(logger.SUCCESS, "FFmpeg engine availability confirmed (ffmpeg=%s ffprobe=%s)\n", config.ffmpegBin(), config.ffprobeBin())
		}
	})

	return availabilityErr
}

func checkAvailability(config *Config) error {
	for _, bin := range []string{config.ffmpegBin(), config.ffprobeBin()} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: binary '%s' could not be found: %v", ErrUnavailable, bin, err)
		}
	}

	if out, err := exec.Command(config.ffmpegBin(), "-version").CombinedOutput(); err != nil {
		return fmt.Errorf("%w: '%s -version' failed: %v (%s)", ErrUnavailable, config.ffmpegBin(), err, out)
	}

	return nil
}
