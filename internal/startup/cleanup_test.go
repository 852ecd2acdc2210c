package startup

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/avfs/avfs/vfs/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvfilter/internal/storage"
)

func testSandbox(t *testing.T) *storage.Sandbox {
	t.Helper()
	sandbox, err := storage.NewSandboxFS(memfs.New(), "/data")
	require.NoError(t, err)
	return sandbox
}

func age(t *testing.T, sandbox *storage.Sandbox, rel string, d time.Duration) {
	t.Helper()
	path, err := sandbox.ResolvePath(rel)
	require.NoError(t, err)
	old := time.Now().Add(-d)
	require.NoError(t, sandbox.FS().Chtimes(path, old, old))
}

func TestCleanupOrphanedTempDirs(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sandbox := testSandbox(t)

	require.NoError(t, sandbox.WriteFile("temp/tvfilter-de-01abc/de.m3u", []byte("#EXTM3U\n")))
	require.NoError(t, sandbox.MkdirAll("temp/tvfilter-all-01def"))
	require.NoError(t, sandbox.MkdirAll("temp/other-dir"))
	require.NoError(t, sandbox.WriteFile("temp/tvfilter-file", []byte("x")))

	age(t, sandbox, "temp/tvfilter-de-01abc", 2*time.Hour)
	age(t, sandbox, "temp/other-dir", 2*time.Hour)

	removed, err := CleanupOrphanedTempDirs(logger, sandbox, "temp", DefaultCleanupAge)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	for path, want := range map[string]bool{
		"temp/tvfilter-de-01abc":  false,
		"temp/tvfilter-all-01def": true,
		"temp/other-dir":          true,
		"temp/tvfilter-file":      true,
	} {
		exists, err := sandbox.Exists(path)
		require.NoError(t, err)
		assert.Equal(t, want, exists, path)
	}
}

func TestCleanupOrphanedTempDirs_MissingDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	removed, err := CleanupOrphanedTempDirs(logger, testSandbox(t), "temp", time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
