package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBuild(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	})
	Version, Commit, Date = v, commit, date
}

func TestGetInfo(t *testing.T) {
	setBuild(t, "1.2.3", "abc123def456789", "2024-01-15T10:30:00Z")

	info := GetInfo()
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc123def456789", info.Commit)
	assert.Equal(t, "2024-01-15T10:30:00Z", info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestString(t *testing.T) {
	t.Run("without commit", func(t *testing.T) {
		setBuild(t, "dev", "unknown", "unknown")
		assert.Contains(t, String(), "tvfilter version dev (")
		assert.Equal(t, "tvfilter dev", Short())
	})

	t.Run("with commit", func(t *testing.T) {
		setBuild(t, "1.0.0", "abc123def456789", "2024-01-15T10:30:00Z")
		assert.Contains(t, String(), "commit: abc123de")
		assert.Contains(t, String(), "built: 2024-01-15T10:30:00Z")
		assert.Equal(t, "tvfilter 1.0.0 (abc123de)", Short())
	})
}

func TestUserAgent(t *testing.T) {
	setBuild(t, "1.0.0", "unknown", "unknown")
	assert.Equal(t, "tvfilter/1.0.0", UserAgent())
}

func TestBuildChannel(t *testing.T) {
	tests := []struct {
		version string
		want    Channel
	}{
		{"dev", ChannelDev},
		{"1.2.4-SNAPSHOT.abc1234", ChannelSnapshot},
		{"1.2.3", ChannelRelease},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			setBuild(t, tt.version, "unknown", "unknown")
			assert.Equal(t, tt.want, BuildChannel())
			assert.Equal(t, tt.want, GetInfo().Channel)
		})
	}
}

func TestShortCommit(t *testing.T) {
	assert.Empty(t, Info{Commit: "unknown"}.ShortCommit())
	assert.Empty(t, Info{Commit: "abc"}.ShortCommit())
	assert.Equal(t, "abc123de", Info{Commit: "abc123def456789"}.ShortCommit())
}

func TestJSON(t *testing.T) {
	setBuild(t, "1.2.3", "abc123def456789", "2024-01-15T10:30:00Z")

	var info Info
	require.NoError(t, json.Unmarshal([]byte(JSON()), &info))
	assert.Equal(t, GetInfo(), info)
}
