package engine

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"vidserve/logger"
)

// FFmpeg drives the external ffmpeg/ffprobe binaries. The target format
// string is handed to ffmpeg unchecked; ffmpeg is the authority on what it
// supports and rejects the rest.
type FFmpeg struct {
	BinPath   string
	ProbePath string
}

// New returns an adapter using the ffmpeg/ffprobe found on PATH.
func New() *FFmpeg {
	return &FFmpeg{BinPath: "ffmpeg", ProbePath: "ffprobe"}
}

// Transcode starts converting sourcePath into targetFormat at destPath and
// returns the job's event sequence. The channel closes after the terminal
// event; callers must drain it.
func (f *FFmpeg) Transcode(ctx context.Context, sourcePath, targetFormat, destPath string) <-chan Event {
	events := make(chan Event, 8)
	go f.run(ctx, sourcePath, targetFormat, destPath, events)
	return events
}

func (f *FFmpeg) run(ctx context.Context, sourcePath, targetFormat, destPath string, events chan<- Event) {
	defer close(events)

	// Duration makes progress percentages possible; without it progress
	// stays coarse but the transcode still runs.
	var durationSeconds float64
	if info, err := f.Probe(ctx, sourcePath); err != nil {
		logger.Warnf("could not probe source duration, progress will be coarse: %v", err)
	} else {
		durationSeconds = info.DurationSeconds
	}

	args := transcodeArgs(sourcePath, targetFormat, destPath)
	cmd := exec.CommandContext(ctx, f.BinPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		events <- Event{Type: EventFailed, Reason: fmt.Sprintf("failed to create ffmpeg stdout pipe: %v", err)}
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		events <- Event{Type: EventFailed, Reason: fmt.Sprintf("failed to create ffmpeg stderr pipe: %v", err)}
		return
	}

	if err := cmd.Start(); err != nil {
		events <- Event{Type: EventFailed, Reason: fmt.Sprintf("failed to start ffmpeg: %v", err)}
		return
	}

	events <- Event{Type: EventStarted, Command: f.BinPath + " " + strings.Join(args, " ")}

	// ffmpeg writes diagnostics to stderr; keep the last line as the
	// failure reason.
	var lastErrLine string
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		errScanner := bufio.NewScanner(stderr)
		for errScanner.Scan() {
			if line := strings.TrimSpace(errScanner.Text()); line != "" {
				lastErrLine = line
			}
		}
	}()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if percent, ok := progressPercent(scanner.Text(), durationSeconds); ok {
			events <- Event{Type: EventProgress, Percent: percent}
		}
	}

	<-stderrDone
	if err := cmd.Wait(); err != nil {
		reason := lastErrLine
		if reason == "" {
			reason = err.Error()
		}
		if ctx.Err() != nil {
			reason = ctx.Err().Error()
		}
		events <- Event{Type: EventFailed, Reason: reason}
		return
	}

	events <- Event{Type: EventCompleted}
}

// transcodeArgs builds the ffmpeg invocation. "-progress pipe:1 -nostats"
// turns stdout into a machine-readable progress feed.
func transcodeArgs(sourcePath, targetFormat, destPath string) []string {
	return []string{
		"-y",
		"-i", sourcePath,
		"-progress", "pipe:1",
		"-nostats",
		"-f", targetFormat,
		destPath,
	}
}

// progressPercent interprets one line of the progress feed. out_time_ms is
// microseconds of output produced so far; against a known duration that
// yields a percentage. "progress=end" pins 100 even without a duration.
func progressPercent(line string, durationSeconds float64) (float64, bool) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "progress=end") {
		return 100, true
	}
	if !strings.HasPrefix(line, "out_time_ms=") {
		return 0, false
	}
	if durationSeconds <= 0 {
		return 0, false
	}
	outMicros, err := strconv.ParseFloat(strings.TrimPrefix(line, "out_time_ms="), 64)
	if err != nil {
		return 0, false
	}
	ratio := (outMicros / 1_000_000.0) / durationSeconds
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return ratio * 100, true
}
