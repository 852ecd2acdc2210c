// Package startup provides utilities for application startup tasks.
package startup

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/storage"
)

// DefaultCleanupAge is the minimum age of a working directory before it is
// considered orphaned.
const DefaultCleanupAge = 1 * time.Hour

// CleanupOrphanedTempDirs removes target working directories below tempDir
// that are older than maxAge. Such directories are left behind when the
// process dies mid-run. tempDir is sandbox-relative.
//
// Returns the number of directories removed.
func CleanupOrphanedTempDirs(logger *slog.Logger, sandbox *storage.Sandbox, tempDir string, maxAge time.Duration) (int, error) {
	entries, err := sandbox.List(tempDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("temp directory does not exist, skipping cleanup",
				slog.String("path", tempDir),
			)
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), core.TempDirPrefix) {
			continue
		}
		dir := filepath.Join(tempDir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			logger.Warn("failed to get directory info",
				slog.String("path", dir),
				slog.String("error", err.Error()),
			)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := sandbox.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove orphaned temp directory",
				slog.String("path", dir),
				slog.String("error", err.Error()),
			)
			continue
		}

		logger.Info("removed orphaned temp directory",
			slog.String("path", dir),
			slog.Duration("age", time.Since(info.ModTime()).Round(time.Second)),
		)
		removed++
	}

	return removed, nil
}
