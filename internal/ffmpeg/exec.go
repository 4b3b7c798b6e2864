package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/clipforge/clipforge/pkg/logger"
	"github.com/floostack/transcoder"
)

var log = logger.Get("FFmpeg")

// Config holds the binary locations for the external transcode engine.
// Empty paths fall back to $PATH lookup.
type Config struct {
	FfmpegBinPath  string `yaml:"ffmpeg_binary" env:"FFMPEG_BINARY_PATH" env-default:"ffmpeg"`
	FfprobeBinPath string `yaml:"ffprobe_binary" env:"FFPROBE_BINARY_PATH" env-default:"ffprobe"`
}

func (config *Config) ffmpegBin() string {
	if config == nil || config.FfmpegBinPath == "" {
		return "ffmpeg"
	}
	return config.FfmpegBinPath
}

func (config *Config) ffprobeBin() string {
	if config == nil || config.FfprobeBinPath == "" {
		return "ffprobe"
	}
	return config.FfprobeBinPath
}

type Progress struct {
	FramesProcessed string
	CurrentTime     string
	CurrentBitrate  string
	Speed           string
	Progress        float64
}

// CommandHandlers carries the optional observability callbacks for a
// running engine command.
type CommandHandlers struct {
	OnStart    func(command string)
	OnProgress func(*Progress)
}

// CommandFailedError is returned when an engine invocation exits non-zero
// (or is killed). It retains the full command line and captured output
// streams for diagnostics.
type CommandFailedError struct {
	Command string
	Stdout  string
	Stderr  string
	Cause   error
}

func (e *CommandFailedError) Error() string {
	tail := e.Stderr
	if len(tail) > 512 {
		tail = "..." + tail[len(tail)-512:]
	}

	return fmt.Sprintf("ffmpeg command failed (%s): %v: %s", e.Command, e.Cause, tail)
}

func (e *CommandFailedError) Unwrap() error { return e.Cause }

// TranscodeCommand executes a single engine invocation built from a
// transcoder.Options command description.
type TranscodeCommand struct {
	inputPath       string
	outputPath      string
	transcodeConfig *Config
	totalDuration   float64
}

func NewCmd(input string, output string, config *Config) *TranscodeCommand {
	return &TranscodeCommand{inputPath: input, outputPath: output, transcodeConfig: config}
}

// WithDuration provides the known duration of the input, enabling
// percentage calculation on emitted progress updates.
func (cmd *TranscodeCommand) WithDuration(seconds float64) *TranscodeCommand {
	cmd.totalDuration = seconds
	return cmd
}

// Run executes the engine on the host machine, blocking until the process
// exits. Progress updates parsed from the engines stderr stream are
// delivered to the handlers as they arrive. Cancelling the context kills
// the underlying process, so an abandoned ingestion never leaves an
// orphaned transcode running.
func (cmd *TranscodeCommand) Run(ctx context.Context, opts transcoder.Options, handlers CommandHandlers) error {
	args := append([]string{"-y", "-hide_banner", "-i", cmd.inputPath}, opts.GetStrArguments()...)
	args = append(args, cmd.outputPath)
	commandLine := strings.Join(append([]string{cmd.transcodeConfig.ffmpegBin()}, args...), " ")

	if err := os.MkdirAll(filepath.Dir(cmd.outputPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output directory for engine command: %w", err)
	}

	proc := exec.CommandContext(ctx, cmd.transcodeConfig.ffmpegBin(), args...)

	var stdout bytes.Buffer
	proc.Stdout = &stdout

	stderrPipe, err := proc.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to attach to engine stderr: %w", err)
	}

	if err := proc.Start(); err != nil {
		return &CommandFailedError{Command: commandLine, Cause: err}
	}

	log.Emit(logger.DEBUG, "FFmpeg command started: %s\n", commandLine)
	if handlers.OnStart != nil {
		handlers.OnStart(commandLine)
	}

	stderr := cmd.consumeStderr(stderrPipe, handlers.OnProgress)

	if err := proc.Wait(); err != nil {
		log.Emit(logger.ERROR, "FFmpeg command failed (%s): %v\n", commandLine, err)
		return &CommandFailedError{
			Command: commandLine,
			Stdout:  stdout.String(),
			Stderr:  stderr,
			Cause:   err,
		}
	}

	log.Emit(logger.DEBUG, "FFmpeg command completed: %s\n", commandLine)
	return nil
}

// consumeStderr drains the engines stderr, returning the captured output
// once the stream closes. Status lines are additionally parsed into
// Progress updates for the provided callback.
func (cmd *TranscodeCommand) consumeStderr(pipe io.Reader, onProgress func(*Progress)) string {
	var captured strings.Builder

	scanner := bufio.NewScanner(pipe)
	scanner.Split(scanStatusLines)
	for scanner.Scan() {
		line := scanner.Text()
		captured.WriteString(line)
		captured.WriteByte('\n')

		if onProgress == nil {
			continue
		}

		if progress := cmd.parseProgressLine(line); progress != nil {
			onProgress(progress)
		}
	}

	return captured.String()
}

var (
	frameMatcher   = regexp.MustCompile(`frame=\s*(\d+)`)
	timeMatcher    = regexp.MustCompile(`time=(\d+:\d{2}:\d{2}(?:\.\d+)?)`)
	bitrateMatcher = regexp.MustCompile(`bitrate=\s*(\S+)`)
	speedMatcher   = regexp.MustCompile(`speed=\s*(\S+)`)
)

// parseProgressLine extracts a Progress from an ffmpeg status line. The
// engine writes these carriage-return terminated lines of the form:
//
//	frame=  100 fps= 25 q=28.0 size=256kB time=00:00:04.00 bitrate=524.3kbits/s speed=1.00x
//
// Lines without a time= field (version banners, stream mapping output)
// yield nil.
func (cmd *TranscodeCommand) parseProgressLine(line string) *Progress {
	timeGroups := timeMatcher.FindStringSubmatch(line)
	if timeGroups == nil {
		return nil
	}

	progress := &Progress{CurrentTime: timeGroups[1]}
	if groups := frameMatcher.FindStringSubmatch(line); groups != nil {
		progress.FramesProcessed = groups[1]
	}
	if groups := bitrateMatcher.FindStringSubmatch(line); groups != nil {
		progress.CurrentBitrate = groups[1]
	}
	if groups := speedMatcher.FindStringSubmatch(line); groups != nil {
		progress.Speed = groups[1]
	}

	if cmd.totalDuration > 0 {
		elapsed := parseTimestamp(progress.CurrentTime)
		ratio := elapsed / cmd.totalDuration
		if ratio > 1 {
			ratio = 1
		}
		progress.Progress = ratio
	}

	return progress
}

// scanStatusLines splits on newlines AND carriage returns, as ffmpeg
// re-writes it's status line using bare '\r'.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}

func parseTimestamp(value string) float64 {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0
	}

	hours, _ := strconv.ParseFloat(parts[0], 64)
	minutes, _ := strconv.ParseFloat(parts[1], 64)
	seconds, _ := strconv.ParseFloat(parts[2], 64)
	return hours*3600 + minutes*60 + seconds
}
