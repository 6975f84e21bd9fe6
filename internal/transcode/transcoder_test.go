package transcode

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func newTestTranscoder(location string) *Transcoder {
	logger, _ := test.NewNullLogger()
	return New(Options{FFmpegLocation: location, Logger: logger})
}

func TestBuildFFmpegArgs(t *testing.T) {
	tr := newTestTranscoder("")
	args := tr.BuildFFmpegArgs("/input.mp4", "/output.part")

	expectedArgs := []string{
		"-y",
		"-i", "/input.mp4",
		"-map", "0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "320k",
		"-movflags", "+faststart",
		"-f", "mp4",
		"-progress", "pipe:2",
		"-nostats",
		"/output.part",
	}

	if len(args) != len(expectedArgs) {
		t.Fatalf("Expected %d args, got %d", len(expectedArgs), len(args))
	}
	for i, expected := range expectedArgs {
		if args[i] != expected {
			t.Errorf("Arg %d: expected %s, got %s", i, expected, args[i])
		}
	}
}

func TestBuildFFmpegArgs_Container(t *testing.T) {
	tests := []struct {
		container string
		muxer     string
		faststart bool
	}{
		{"", "mp4", true},
		{"mp4", "mp4", true},
		{"MOV", "mov", true},
		{"mkv", "matroska", false},
	}

	for _, tt := range tests {
		t.Run(tt.container, func(t *testing.T) {
			args := strings.Join(New(Options{Container: tt.container}).BuildFFmpegArgs("in", "out"), " ")
			if !strings.Contains(args, "-f "+tt.muxer+" ") {
				t.Errorf("expected muxer %s in %q", tt.muxer, args)
			}
			if got := strings.Contains(args, "-movflags"); got != tt.faststart {
				t.Errorf("faststart present = %v, expected %v in %q", got, tt.faststart, args)
			}
		})
	}
}

func TestSupportsContainer(t *testing.T) {
	tests := map[string]bool{
		"mp4":  true,
		"MKV":  true,
		"mov":  true,
		"webm": false,
		"flv":  false,
		"":     false,
	}
	for format, expected := range tests {
		if got := SupportsContainer(format); got != expected {
			t.Errorf("SupportsContainer(%q) = %v, expected %v", format, got, expected)
		}
	}
}

func TestBuildFFmpegArgs_CustomBitrate(t *testing.T) {
	tr := New(Options{AudioBitrate: "192k"})
	args := strings.Join(tr.BuildFFmpegArgs("in", "out"), " ")
	if !strings.Contains(args, "-b:a 192k") {
		t.Errorf("expected custom bitrate in %q", args)
	}
}

func TestResolveBinaries(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "bin", "ffmpeg-6")

	tests := []struct {
		name            string
		location        string
		expectedFFmpeg  string
		expectedFFprobe string
	}{
		{name: "empty uses PATH", location: "", expectedFFmpeg: "ffmpeg", expectedFFprobe: "ffprobe"},
		{name: "directory", location: dir, expectedFFmpeg: filepath.Join(dir, "ffmpeg"), expectedFFprobe: filepath.Join(dir, "ffprobe")},
		{name: "binary path", location: binary, expectedFFmpeg: binary, expectedFFprobe: filepath.Join(dir, "bin", "ffprobe")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ffmpeg, ffprobe := resolveBinaries(tt.location)
			if ffmpeg != tt.expectedFFmpeg {
				t.Errorf("ffmpeg = %s, expected %s", ffmpeg, tt.expectedFFmpeg)
			}
			if ffprobe != tt.expectedFFprobe {
				t.Errorf("ffprobe = %s, expected %s", ffprobe, tt.expectedFFprobe)
			}
		})
	}
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line     string
		expected time.Duration
		ok       bool
	}{
		{line: "out_time_us=1500000", expected: 1500 * time.Millisecond, ok: true},
		{line: "  out_time_us=0  ", expected: 0, ok: true},
		{line: "out_time_us=N/A", ok: false},
		{line: "out_time_us=-5", ok: false},
		{line: "frame=100", ok: false},
		{line: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseProgressLine(tt.line)
		if ok != tt.ok || got != tt.expected {
			t.Errorf("ParseProgressLine(%q) = %v, %v, expected %v, %v", tt.line, got, ok, tt.expected, tt.ok)
		}
	}
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("12.5\n")
	if err != nil {
		t.Fatalf("parseDuration returned error: %v", err)
	}
	if d != 12500*time.Millisecond {
		t.Errorf("expected 12.5s, got %v", d)
	}

	for _, bad := range []string{"", "N/A", "0", "-1"} {
		if _, err := parseDuration(bad); err == nil {
			t.Errorf("parseDuration(%q) expected error", bad)
		}
	}
}

func TestMonitorProgress(t *testing.T) {
	output := strings.Join([]string{
		"frame=1",
		"out_time_us=2000000",
		"progress=continue",
		"out_time_us=5000000",
		"out_time_us=12000000",
		"progress=end",
	}, "\n")

	var got []float64
	monitorProgress(strings.NewReader(output), 10*time.Second, func(p float64) {
		got = append(got, p)
	})

	expected := []float64{20, 50, 100}
	if len(got) != len(expected) {
		t.Fatalf("expected %d updates, got %v", len(expected), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("update %d = %v, expected %v", i, got[i], expected[i])
		}
	}
}

func TestMonitorProgress_UnknownDuration(t *testing.T) {
	calls := 0
	monitorProgress(strings.NewReader("out_time_us=1000\n"), 0, func(float64) { calls++ })
	if calls != 0 {
		t.Errorf("expected no updates without a duration, got %d", calls)
	}
}

func TestReencodeAudio_NonExistentFile(t *testing.T) {
	tr := newTestTranscoder("")

	err := tr.ReencodeAudio(context.Background(), "/path/to/nonexistent/file.mp4", nil)
	if err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected 'does not exist' error, got: %v", err)
	}
}

func TestReencodeAudio_MissingFFmpegKeepsInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip [job].mp4")
	if err := os.WriteFile(input, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	tr := newTestTranscoder(filepath.Join(dir, "no-such-ffmpeg"))
	if err := tr.ReencodeAudio(context.Background(), input, nil); err == nil {
		t.Fatal("expected error when ffmpeg is missing")
	}

	content, err := os.ReadFile(input)
	if err != nil || string(content) != "data" {
		t.Errorf("expected input to be untouched, got %q (%v)", content, err)
	}
	if _, err := os.Stat(input + TempSuffix); !os.IsNotExist(err) {
		t.Errorf("expected no temp file to be left behind")
	}
}
