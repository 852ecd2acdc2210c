package shared

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
)

func TestStreamURL(t *testing.T) {
	ch := &models.Channel{URL: "http://provider/live/1.ts", DirectSource: "http://origin/1.ts"}

	assert.Equal(t, "http://origin/1.ts", StreamURL(ch, catalog.TargetOptions{}))
	assert.Equal(t, "http://provider/live/1.ts", StreamURL(ch, catalog.TargetOptions{SkipDirectSource: true}))

	ch.DirectSource = ""
	assert.Equal(t, "http://provider/live/1.ts", StreamURL(ch, catalog.TargetOptions{}))
}

func TestChannelToM3UEntry(t *testing.T) {
	ch := &models.Channel{
		Name:          "ZDF",
		Title:         "ZDF HD",
		Group:         "News",
		EpgID:         "zdf.de",
		Logo:          "http://logo/zdf.png",
		ChannelNumber: 2,
		URL:           "http://provider/live/2.ts",
		Kind:          models.ChannelKindLive,
	}

	entry := ChannelToM3UEntry(ch, catalog.TargetOptions{})
	assert.Equal(t, -1, entry.Duration)
	assert.Equal(t, "ZDF HD", entry.Title)
	assert.Equal(t, "ZDF", entry.TvgName)
	assert.Equal(t, "zdf.de", entry.TvgID)
	assert.Equal(t, "News", entry.GroupTitle)
	assert.Equal(t, "http://logo/zdf.png", entry.TvgLogo)
	assert.Equal(t, 2, entry.ChannelNumber)
	assert.NotContains(t, entry.Extra, "tvg-type")

	ch.Kind = models.ChannelKindVideo
	entry = ChannelToM3UEntry(ch, catalog.TargetOptions{IgnoreLogo: true})
	assert.Empty(t, entry.TvgLogo)
	assert.Equal(t, "video", entry.Extra["tvg-type"])
}

func TestBaseStage_Log(t *testing.T) {
	stage := NewBaseStage("filtering", "Filtering")
	assert.Equal(t, "filtering", stage.ID())
	assert.Equal(t, "Filtering", stage.Name())
	require.NoError(t, stage.Cleanup(context.Background()))

	// Without a logger Log is a no-op.
	stage.Log(context.Background(), slog.LevelInfo, "dropped")

	var buf bytes.Buffer
	stage.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	stage.Log(context.Background(), slog.LevelInfo, "kept", slog.Int("channels", 3))

	out := buf.String()
	assert.Contains(t, out, "msg=kept")
	assert.Contains(t, out, "stage=filtering")
	assert.Contains(t, out, "channels=3")
	assert.NotContains(t, out, "dropped")
}
