package engine

import (
	"strings"
	"testing"
)

func TestTranscodeArgs(t *testing.T) {
	args := transcodeArgs("/uploads/in.mp4", "avi", "/converted/out.avi")
	joined := strings.Join(args, " ")

	want := "-y -i /uploads/in.mp4 -progress pipe:1 -nostats -f avi /converted/out.avi"
	if joined != want {
		t.Errorf("transcodeArgs = %q, want %q", joined, want)
	}
}

func TestTranscodeArgsFormatPassthrough(t *testing.T) {
	// The format string goes to ffmpeg as-is; deciding what is valid is
	// ffmpeg's job.
	args := transcodeArgs("in.mp4", "definitely-not-a-format", "out.x")
	found := false
	for i, a := range args {
		if a == "-f" && i+1 < len(args) && args[i+1] == "definitely-not-a-format" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected format passed through unchanged, got %v", args)
	}
}

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		line     string
		duration float64
		want     float64
		ok       bool
	}{
		{"out_time_ms=5000000", 10, 50, true},
		{"out_time_ms=10000000", 10, 100, true},
		{"out_time_ms=20000000", 10, 100, true}, // clamped
		{"out_time_ms=-100", 10, 0, true},       // clamped
		{"progress=end", 10, 100, true},
		{"progress=end", 0, 100, true}, // end pins 100 even without duration
		{"progress=continue", 10, 0, false},
		{"out_time_ms=5000000", 0, 0, false}, // no duration, no percentage
		{"out_time_ms=garbage", 10, 0, false},
		{"frame=42", 10, 0, false},
		{"", 10, 0, false},
	}

	for _, c := range cases {
		got, ok := progressPercent(c.line, c.duration)
		if ok != c.ok || got != c.want {
			t.Errorf("progressPercent(%q, %v) = (%v, %v), want (%v, %v)",
				c.line, c.duration, got, ok, c.want, c.ok)
		}
	}
}

func TestParseProbeOutput(t *testing.T) {
	out := []byte(`{
		"streams": [{"width": 1920, "height": 1080}],
		"format": {"duration": "12.345", "bit_rate": "800000"}
	}`)

	info, err := parseProbeOutput(out)
	if err != nil {
		t.Fatalf("Failed to parse probe output: %v", err)
	}
	if info.DurationSeconds != 12.345 {
		t.Errorf("Expected duration 12.345, got %v", info.DurationSeconds)
	}
	if info.Resolution != "1920x1080" {
		t.Errorf("Expected resolution 1920x1080, got %s", info.Resolution)
	}
	if info.Bitrate != 800000 {
		t.Errorf("Expected bitrate 800000, got %d", info.Bitrate)
	}
}

func TestParseProbeOutputPartialFields(t *testing.T) {
	// Audio-only or stripped containers may have no video stream; duration
	// alone is still usable.
	out := []byte(`{"streams": [], "format": {"duration": "3.5"}}`)

	info, err := parseProbeOutput(out)
	if err != nil {
		t.Fatalf("Failed to parse partial probe output: %v", err)
	}
	if info.DurationSeconds != 3.5 {
		t.Errorf("Expected duration 3.5, got %v", info.DurationSeconds)
	}
	if info.Resolution != "" {
		t.Errorf("Expected empty resolution, got %s", info.Resolution)
	}
}

func TestParseProbeOutputNoUsableFields(t *testing.T) {
	if _, err := parseProbeOutput([]byte(`{"streams": [], "format": {}}`)); err == nil {
		t.Error("Expected error when probe output has no usable fields")
	}
}

func TestParseProbeOutputInvalidJSON(t *testing.T) {
	if _, err := parseProbeOutput([]byte("not json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
