// Package logging configures the logrus logger shared by the service.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ytget/yt-downloader-api/internal/config"
)

// Output targets
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New builds a logger from cfg. The returned cleanup closes the log file, if
// one was opened.
func New(cfg config.Logger) (*logrus.Logger, func(), error) {
	l := logrus.New()
	cleanup := func() {}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, cleanup, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	l.SetLevel(level)

	switch cfg.Format {
	case FormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch cfg.Output {
	case OutputStderr:
		l.SetOutput(os.Stderr)
	case OutputFile:
		f, err := openLogFile(cfg.OutputFile, time.Now())
		if err != nil {
			return nil, cleanup, err
		}
		l.SetOutput(f)
		cleanup = func() { _ = f.Close() }
	default:
		l.SetOutput(os.Stdout)
	}

	return l, cleanup, nil
}

// LogFileName returns the date-stamped file name for base
func LogFileName(base string, now time.Time) string {
	return fmt.Sprintf("%s.%s.log", strings.TrimSuffix(base, ".log"), now.Format("2006-01-02"))
}

func openLogFile(base string, now time.Time) (*os.File, error) {
	if base == "" {
		return nil, fmt.Errorf("log output is %q but no output file is set", OutputFile)
	}
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(LogFileName(base, now), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
