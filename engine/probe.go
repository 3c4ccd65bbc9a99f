package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"vidserve/models"
)

// probeOutput mirrors the subset of `ffprobe -of json` we ask for.
type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// Probe extracts duration, resolution and bitrate from a media file. It is
// independent of any transcode: callers treat a failure here as missing
// metadata, never as a failed job.
func (f *FFmpeg) Probe(ctx context.Context, path string) (models.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, f.ProbePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-show_entries", "format=duration,bit_rate",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return models.MediaInfo{}, fmt.Errorf("ffprobe error: %w", err)
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out []byte) (models.MediaInfo, error) {
	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return models.MediaInfo{}, fmt.Errorf("invalid ffprobe output: %w", err)
	}

	var info models.MediaInfo
	if parsed.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.DurationSeconds = dur
		}
	}
	if parsed.Format.BitRate != "" {
		if rate, err := strconv.ParseInt(parsed.Format.BitRate, 10, 64); err == nil {
			info.Bitrate = rate
		}
	}
	if len(parsed.Streams) > 0 && parsed.Streams[0].Width > 0 {
		info.Resolution = fmt.Sprintf("%dx%d", parsed.Streams[0].Width, parsed.Streams[0].Height)
	}

	if info.DurationSeconds == 0 && info.Resolution == "" && info.Bitrate == 0 {
		return info, fmt.Errorf("ffprobe returned no usable fields")
	}
	return info, nil
}
