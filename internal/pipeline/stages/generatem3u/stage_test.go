package generatem3u

import (
	"context"
	"strings"
	"testing"

	"github.com/avfs/avfs/vfs/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/storage"
)

func setup(t *testing.T, opts catalog.TargetOptions, channels ...*models.Channel) (*storage.Sandbox, *core.State) {
	t.Helper()
	sandbox, err := storage.NewSandboxFS(memfs.New(), "/data")
	require.NoError(t, err)

	target := &catalog.Target{Name: "de", Output: catalog.OutputM3U, Filename: "de.m3u", Options: opts}
	state := core.NewState(models.NewULID(), target, nil)
	state.TempDir = "temp/run"
	state.Channels = channels
	return sandbox, state
}

func readOutput(t *testing.T, sandbox *storage.Sandbox) string {
	t.Helper()
	data, err := sandbox.ReadFile("temp/run/de.m3u")
	require.NoError(t, err)
	return string(data)
}

func TestStageID(t *testing.T) {
	assert.Equal(t, "generate_m3u", StageID)
	assert.Equal(t, "Generate M3U", StageName)
}

func TestExecute_WritesPlaylist(t *testing.T) {
	sandbox, state := setup(t, catalog.TargetOptions{},
		&models.Channel{ID: "1", Name: "Das Erste", Title: "Das Erste HD", Group: "News", EpgID: "ard.de",
			Logo: "http://logo/ard.png", URL: "http://provider/1.ts", Kind: models.ChannelKindLive},
		&models.Channel{ID: "2", Name: "ZDF", Group: "News", URL: "http://provider/2.ts", Kind: models.ChannelKindLive},
	)

	result, err := New(sandbox).Execute(context.Background(), state)
	require.NoError(t, err)

	content := readOutput(t, sandbox)
	assert.True(t, strings.HasPrefix(content, "#EXTM3U\n"))
	assert.Contains(t, content, `#EXTINF:-1 tvg-id="ard.de" tvg-name="Das Erste" tvg-logo="http://logo/ard.png" group-title="News",Das Erste HD`)
	assert.Contains(t, content, "http://provider/1.ts\n")
	assert.Contains(t, content, `group-title="News",ZDF`)

	assert.Equal(t, 2, state.ChannelCount)
	require.Len(t, result.Artifacts, 1)
	artifact := result.Artifacts[0]
	assert.Equal(t, core.ArtifactTypeM3U, artifact.Type)
	assert.Equal(t, core.ProcessingStageGenerated, artifact.Stage)
	assert.Equal(t, "temp/run/de.m3u", artifact.Path)
	assert.Equal(t, "de.m3u", artifact.DestName)
	assert.Equal(t, int64(len(content)), artifact.FileSize)
}

func TestExecute_SkipsSeriesInfo(t *testing.T) {
	channels := []*models.Channel{
		{ID: "1", Name: "Show", Group: "Series", URL: "http://p/player_api.php?action=get_series_info", Kind: models.ChannelKindSeriesInfo},
		{ID: "2", Name: "Movie", Group: "VOD", URL: "http://p/movie/u/p/2.mp4", Kind: models.ChannelKindVideo},
	}

	sandbox, state := setup(t, catalog.TargetOptions{}, channels...)
	_, err := New(sandbox).Execute(context.Background(), state)
	require.NoError(t, err)
	content := readOutput(t, sandbox)
	assert.NotContains(t, content, "Show")
	assert.Contains(t, content, `tvg-type="video"`)
	assert.Equal(t, 1, state.ChannelCount)

	sandbox, state = setup(t, catalog.TargetOptions{IncludeSeriesInfo: true}, channels...)
	_, err = New(sandbox).Execute(context.Background(), state)
	require.NoError(t, err)
	assert.Contains(t, readOutput(t, sandbox), "Show")
}

func TestExecute_Options(t *testing.T) {
	ch := &models.Channel{ID: "1", Name: "A", Logo: "http://logo/a.png",
		URL: "http://panel/live/u/p/1.ts", DirectSource: "http://direct/a.ts", Kind: models.ChannelKindLive}

	sandbox, state := setup(t, catalog.TargetOptions{}, ch)
	_, err := New(sandbox).Execute(context.Background(), state)
	require.NoError(t, err)
	content := readOutput(t, sandbox)
	assert.Contains(t, content, "tvg-logo=")
	assert.Contains(t, content, "http://direct/a.ts")

	sandbox, state = setup(t, catalog.TargetOptions{IgnoreLogo: true, SkipDirectSource: true}, ch)
	_, err = New(sandbox).Execute(context.Background(), state)
	require.NoError(t, err)
	content = readOutput(t, sandbox)
	assert.NotContains(t, content, "tvg-logo=")
	assert.Contains(t, content, "http://panel/live/u/p/1.ts")
	assert.NotContains(t, content, "http://direct/a.ts")
}

func TestExecute_EmptyWorkingSet(t *testing.T) {
	sandbox, state := setup(t, catalog.TargetOptions{})
	result, err := New(sandbox).Execute(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", readOutput(t, sandbox))
	assert.Len(t, result.Artifacts, 1)
}

func TestNewConstructor_OnlyForM3UTargets(t *testing.T) {
	ctor := NewConstructor()
	deps := &core.Dependencies{}
	assert.Nil(t, ctor(deps, &catalog.Target{Output: catalog.OutputXtream}))
	assert.NotNil(t, ctor(deps, &catalog.Target{Output: catalog.OutputM3U}))
}
