package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FFmpeg settings
const (
	VideoCodec          = "copy"
	AudioCodec          = "aac"
	DefaultAudioBitrate = "320k"
	FastStartFlag       = "+faststart"
	DefaultContainer    = "mp4"
)

// containerMuxers maps merge formats that can carry AAC to ffmpeg muxers
var containerMuxers = map[string]string{
	"mp4": "mp4",
	"m4v": "mp4",
	"mov": "mov",
	"mkv": "matroska",
}

// SupportsContainer reports whether audio in the given container format can
// be re-encoded to AAC
func SupportsContainer(format string) bool {
	_, ok := containerMuxers[strings.ToLower(format)]
	return ok
}

// Executable and I/O constants
const (
	FFmpegCommand       = "ffmpeg"
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "csv=p=0"
	ProgressPipeTarget  = "pipe:2"
	ProgressTimePrefix  = "out_time_us="
	TempSuffix          = ".reencode.part"
)

// ProgressFunc receives the re-encode progress in percent
type ProgressFunc func(percent float64)

// Options configures a Transcoder
type Options struct {
	// FFmpegLocation is either the ffmpeg binary or the directory holding
	// ffmpeg and ffprobe; empty means look them up in PATH
	FFmpegLocation string
	AudioBitrate   string
	// Container is the format of the files to re-encode (mp4, m4v, mov, mkv)
	Container string
	Logger    logrus.FieldLogger
}

// Transcoder runs ffmpeg jobs
type Transcoder struct {
	ffmpeg  string
	ffprobe string
	bitrate string
	muxer   string
	log     logrus.FieldLogger
}

// New creates a transcoder
func New(opts Options) *Transcoder {
	ffmpeg, ffprobe := resolveBinaries(opts.FFmpegLocation)
	bitrate := opts.AudioBitrate
	if bitrate == "" {
		bitrate = DefaultAudioBitrate
	}
	muxer, ok := containerMuxers[strings.ToLower(opts.Container)]
	if !ok {
		muxer = containerMuxers[DefaultContainer]
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Transcoder{
		ffmpeg:  ffmpeg,
		ffprobe: ffprobe,
		bitrate: bitrate,
		muxer:   muxer,
		log:     logger.WithField("component", "transcode"),
	}
}

// resolveBinaries maps a ffmpeg location to the ffmpeg and ffprobe executables
func resolveBinaries(location string) (string, string) {
	if location == "" {
		return FFmpegCommand, FFprobeCommand
	}
	if info, err := os.Stat(location); err == nil && info.IsDir() {
		return filepath.Join(location, FFmpegCommand), filepath.Join(location, FFprobeCommand)
	}
	return location, filepath.Join(filepath.Dir(location), FFprobeCommand)
}

// ReencodeAudio replaces the audio track of inputPath with AAC at the
// configured bitrate. The result overwrites inputPath; on failure the input is
// left as it was.
func (t *Transcoder) ReencodeAudio(ctx context.Context, inputPath string, onProgress ProgressFunc) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file does not exist: %w", err)
	}

	log := t.log.WithField("file", filepath.Base(inputPath))

	duration, err := t.probeDuration(ctx, inputPath)
	if err != nil {
		// Progress reporting is skipped without a duration
		log.WithError(err).Debug("Could not probe duration")
	}

	tempPath := inputPath + TempSuffix
	cmd := exec.CommandContext(ctx, t.ffmpeg, t.BuildFFmpegArgs(inputPath, tempPath)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// stderr must be drained before Wait
	monitorProgress(stderr, duration, onProgress)

	if err := cmd.Wait(); err != nil {
		os.Remove(tempPath)
		if ctx.Err() != nil {
			return fmt.Errorf("re-encode cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}

	if err := os.Rename(tempPath, inputPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", inputPath, err)
	}

	log.WithField("bitrate", t.bitrate).Info("Audio re-encoded")
	return nil
}

// BuildFFmpegArgs builds the ffmpeg command arguments
func (t *Transcoder) BuildFFmpegArgs(inputPath, outputPath string) []string {
	args := []string{
		"-y",            // Overwrite output file
		"-i", inputPath, // Input file
		"-map", "0", // Keep every stream
		"-c:v", VideoCodec, // Copy video
		"-c:a", AudioCodec, // Audio codec
		"-b:a", t.bitrate, // Audio bitrate
	}
	if t.muxer != containerMuxers["mkv"] {
		args = append(args, "-movflags", FastStartFlag) // MP4 optimization
	}
	return append(args,
		"-f", t.muxer, // Output extension is not a container hint
		"-progress", ProgressPipeTarget, // Progress to stderr
		"-nostats",
		outputPath,
	)
}

// probeDuration gets the duration of a media file using ffprobe
func (t *Transcoder) probeDuration(ctx context.Context, filePath string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe, "-v", FFprobeLogLevel, "-show_entries", FFprobeShowEntries, "-of", FFprobeOutputFormat, filePath)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}
	return parseDuration(string(output))
}

func parseDuration(s string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	if seconds <= 0 {
		return 0, errors.New("non-positive duration")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// ParseProgressLine extracts the encoded position from an
// "out_time_us=123456" line
func ParseProgressLine(line string) (time.Duration, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ProgressTimePrefix) {
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimPrefix(line, ProgressTimePrefix), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return time.Duration(us) * time.Microsecond, true
}

// monitorProgress reads ffmpeg progress output until EOF
func monitorProgress(r io.Reader, total time.Duration, onProgress ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		pos, ok := ParseProgressLine(scanner.Text())
		if !ok || total <= 0 || onProgress == nil {
			continue
		}
		percent := float64(pos) / float64(total) * 100
		if percent > 100 {
			percent = 100
		}
		onProgress(percent)
	}
}
