package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvfilter/internal/models"
)

func TestWatch(t *testing.T) {
	w, err := NewWatch(WatchConfig{Pattern: "(?i)^sport", Label: "sports"})
	require.NoError(t, err)
	assert.Equal(t, "sports", w.Label())

	channels := []*models.Channel{
		channel("1", "News", "x"),
		channel("2", "SPORT HD", "x"),
		channel("3", "Sport", "x"),
	}
	channels[2].AddMarker("sports")

	require.NoError(t, w.apply(context.Background(), channels, DefaultBatchSize))

	assert.Equal(t, []string{"1", "2", "3"}, ids(channels))
	assert.Empty(t, channels[0].Markers)
	assert.Equal(t, []string{"sports"}, channels[1].Markers)
	assert.Equal(t, []string{"sports"}, channels[2].Markers, "markers are attached once")
}

func TestWatch_DefaultLabel(t *testing.T) {
	w, err := NewWatch(WatchConfig{Pattern: "^News$"})
	require.NoError(t, err)
	assert.Equal(t, "^News$", w.Label())
	assert.True(t, w.Matches("News"))
	assert.False(t, w.Matches("News HD"))
}

func TestNewWatch_Invalid(t *testing.T) {
	_, err := NewWatch(WatchConfig{})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = NewWatch(WatchConfig{Pattern: "(unclosed"})
	var pe *ParamError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "watch.pattern", pe.Path())
}
