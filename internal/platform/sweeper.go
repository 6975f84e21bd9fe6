package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper defaults
const (
	DefaultSweepInterval = 10 * time.Minute
	DefaultMaxFileAge    = time.Hour
)

// Sweeper periodically deletes old files from the download directory
type Sweeper struct {
	dir      string
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewSweeper creates a sweeper for dir
func NewSweeper(dir string, interval, maxAge time.Duration, logger logrus.FieldLogger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxFileAge
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sweeper{
		dir:      dir,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
		log:      logger.WithField("component", "sweeper"),
	}
}

// Run sweeps immediately and then once per interval until ctx is done
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(); err != nil {
			s.log.WithError(err).Warn("Cleanup failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep removes regular files older than the max age and returns how many
// were deleted. A missing directory is not an error.
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read directory %s: %w", s.dir, err)
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.WithError(err).WithField("file", entry.Name()).Warn("Error deleting file")
			continue
		}
		removed++
		s.log.WithField("file", entry.Name()).Info("Cleaned up")
	}
	return removed, nil
}
