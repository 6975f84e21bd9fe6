package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// File extensions to skip
var (
	SkippedExtensions = []string{".part", ".ytdl"}
)

// ErrOutputNotFound is returned when no finished file belongs to a job
var ErrOutputNotFound = errors.New("output file not found")

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// IsTemporaryFile reports whether name is an unfinished download artifact
func IsTemporaryFile(name string) bool {
	for _, ext := range SkippedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// FindJobOutput returns the finished file of a job. hint, when it names an
// existing finished file, wins; otherwise the largest finished file in dir
// whose name contains jobID is returned.
func FindJobOutput(dir, jobID, hint string) (string, error) {
	if hint != "" && !IsTemporaryFile(hint) {
		if info, err := os.Stat(hint); err == nil && info.Mode().IsRegular() {
			return hint, nil
		}
	}
	if jobID == "" {
		return "", ErrOutputNotFound
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var (
		best     string
		bestSize int64 = -1
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.Contains(name, jobID) || IsTemporaryFile(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = filepath.Join(dir, name), info.Size()
		}
	}

	if best == "" {
		return "", fmt.Errorf("%w: job %s", ErrOutputNotFound, jobID)
	}
	return best, nil
}
