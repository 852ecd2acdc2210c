package rules

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvfilter/internal/expression"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/observability"
	"github.com/jmylchreest/tvfilter/internal/template"
)

func applyMap(t *testing.T, m *Map, channels ...*models.Channel) {
	t.Helper()
	require.NoError(t, m.apply(context.Background(), channels, DefaultBatchSize))
}

func TestMap_AppliesInOrder(t *testing.T) {
	m, err := NewMap(MapConfig{
		Mappers: []MapperConfig{{
			Pattern:     `name ~ "^(?P<base>.*?) ?(?P<quality>HD|FHD)?$"`,
			Attributes:  map[string]string{"name": "<base>"},
			Suffix:      map[string]string{"name": "<tag:quality>"},
			Prefix:      map[string]string{"name": "UK: "},
			Assignments: map[string]string{"title": "name"},
		}},
		Tags: []TagConfig{{Name: "quality", Captures: []string{"quality"}, Prefix: " [", Suffix: "]"}},
	}, nil)
	require.NoError(t, err)

	hd := channel("1", "UK", "Arte HD")
	plain := channel("2", "UK", "Arte")
	applyMap(t, m, hd, plain)

	assert.Equal(t, "UK: Arte [HD]", hd.Name)
	assert.Equal(t, "UK: Arte [HD]", hd.Title)
	assert.Equal(t, "UK: Arte", plain.Name, "blank tag captures expand to nothing")
	assert.Equal(t, "UK: Arte", plain.Title)
}

func TestMap_AttributePlaceholders(t *testing.T) {
	m, err := NewMap(MapConfig{
		Mappers: []MapperConfig{{
			Pattern: `name ~ "^(?P<country>[A-Z]{2}): (.*)$"`,
			Attributes: map[string]string{
				"group":  "<country> Channels",
				"epg_id": "<2>.<unknown>",
				"logo":   "http://logos/static.png",
			},
		}},
	}, nil)
	require.NoError(t, err)

	ch := channel("1", "All", "DE: ARD")
	other := channel("2", "All", "ARD")
	applyMap(t, m, ch, other)

	assert.Equal(t, "DE Channels", ch.Group)
	assert.Equal(t, "ARD.<unknown>", ch.EpgID)
	assert.Equal(t, "http://logos/static.png", ch.Logo)

	assert.Equal(t, "All", other.Group)
	assert.Empty(t, other.Logo)
}

func TestMap_MissingTagCaptureSkipsAffix(t *testing.T) {
	m, err := NewMap(MapConfig{
		Mappers: []MapperConfig{{
			Pattern: `name ~ "^(?P<base>.*)$"`,
			Suffix:  map[string]string{"name": " <tag:info>"},
			Prefix:  map[string]string{"group": "<tag:ok>"},
		}},
		Tags: []TagConfig{
			{Name: "info", Captures: []string{"base", "year"}, Concat: "-"},
			{Name: "ok", Captures: []string{"base"}, Suffix: " / "},
		},
	}, nil)
	require.NoError(t, err)

	ch := channel("1", "Movies", "Heat")
	applyMap(t, m, ch)

	assert.Equal(t, "Heat", ch.Name)
	assert.Equal(t, "Heat / Movies", ch.Group)
}

func TestMap_TagConcat(t *testing.T) {
	m, err := NewMap(MapConfig{
		Mappers: []MapperConfig{{
			Pattern: `title ~ "^(?P<show>.+) S(?P<season>\d+)E(?P<episode>\d+)$"`,
			Suffix:  map[string]string{"group": "<tag:ep>"},
		}},
		Tags: []TagConfig{{Name: "ep", Captures: []string{"season", "episode"}, Concat: "x", Prefix: " (", Suffix: ")"}},
	}, nil)
	require.NoError(t, err)

	ch := channel("1", "Series", "Dark S01E02")
	applyMap(t, m, ch)
	assert.Equal(t, "Series (01x02)", ch.Group)
}

func TestMap_FilterAndTemplates(t *testing.T) {
	reg := template.NewRegistry(0)
	require.NoError(t, reg.Register("MOVIES", `group = "Movies"`))

	m, err := NewMap(MapConfig{
		MatchAsASCII: true,
		Mappers: []MapperConfig{{
			Filter:     "!MOVIES!",
			Pattern:    `name ~ "^(?P<n>Amelie)"`,
			Attributes: map[string]string{"title": "<n> (2001)"},
		}},
	}, reg)
	require.NoError(t, err)

	movie := channel("1", "Movies", "Amélie")
	series := channel("2", "Series", "Amélie")
	applyMap(t, m, movie, series)

	assert.Equal(t, "Amelie (2001)", movie.Title)
	assert.Equal(t, "Amélie", series.Title)
}

func TestMap_ChannelNumberAttribute(t *testing.T) {
	m, err := NewMap(MapConfig{
		Mappers: []MapperConfig{{
			Pattern:    `name ~ "^(?P<num>\d+) "`,
			Attributes: map[string]string{"chno": "<num>"},
		}},
	}, nil)
	require.NoError(t, err)

	ch := channel("1", "G", "101 BBC")
	applyMap(t, m, ch)
	assert.Equal(t, 101, ch.ChannelNumber)
}

func TestMap_RejectedValueSkipsOnlyThatChannel(t *testing.T) {
	m, err := NewMap(MapConfig{
		Mappers: []MapperConfig{{
			Pattern:     `name ~ ".*"`,
			Assignments: map[string]string{"chno": "name"},
			Attributes:  map[string]string{"logo": "http://logo/default.png"},
		}},
	}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	ctx := observability.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	good := channel("1", "G", "101")
	bad := channel("2", "G", "ARD")
	bad.ChannelNumber = 7

	out, err := NewPipeline([]Rule{m}, 0).Apply(ctx, []*models.Channel{good, bad})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, 101, good.ChannelNumber)
	assert.Equal(t, 7, bad.ChannelNumber, "rejected value leaves the field unchanged")
	assert.Equal(t, "http://logo/default.png", bad.Logo, "other writes still apply")

	logged := buf.String()
	assert.Contains(t, logged, "level=WARN")
	assert.Contains(t, logged, "channel=2")
	assert.Contains(t, logged, "field=chno")
	assert.NotContains(t, logged, "channel=1")
}

func TestNewMap_Validation(t *testing.T) {
	tests := []struct {
		name  string
		cfg   MapConfig
		path  string
		check func(t *testing.T, err error)
	}{
		{
			name: "no mappers",
			cfg:  MapConfig{},
			path: "map.mapper",
		},
		{
			name: "missing pattern",
			cfg:  MapConfig{Mappers: []MapperConfig{{}}},
			path: "map.mapper[0].pattern",
		},
		{
			name: "unknown field in pattern",
			cfg:  MapConfig{Mappers: []MapperConfig{{Pattern: `colour ~ "x"`}}},
			path: "map.mapper[0].pattern",
			check: func(t *testing.T, err error) {
				var uf *expression.UnknownFieldError
				assert.ErrorAs(t, err, &uf)
			},
		},
		{
			name: "invalid filter",
			cfg:  MapConfig{Mappers: []MapperConfig{{Pattern: `name ~ "x"`, Filter: `name ~ "("`}}},
			path: "map.mapper[0].filter",
			check: func(t *testing.T, err error) {
				var ip *expression.InvalidPatternError
				assert.ErrorAs(t, err, &ip)
			},
		},
		{
			name: "immutable attribute",
			cfg:  MapConfig{Mappers: []MapperConfig{{Pattern: `name ~ "x"`, Attributes: map[string]string{"url": "x"}}}},
			path: "map.mapper[0].attributes.url",
		},
		{
			name: "affix on logo",
			cfg:  MapConfig{Mappers: []MapperConfig{{Pattern: `name ~ "x"`, Prefix: map[string]string{"logo": "x"}}}},
			path: "map.mapper[0].prefix.logo",
		},
		{
			name: "assignment from unknown field",
			cfg:  MapConfig{Mappers: []MapperConfig{{Pattern: `name ~ "x"`, Assignments: map[string]string{"title": "url"}}}},
			path: "map.mapper[0].assignments.title",
		},
		{
			name: "duplicate tag",
			cfg: MapConfig{
				Mappers: []MapperConfig{{Pattern: `name ~ "x"`}},
				Tags:    []TagConfig{{Name: "a", Captures: []string{"x"}}, {Name: "a", Captures: []string{"y"}}},
			},
			path: "map.tags[1].name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMap(tt.cfg, nil)
			require.Error(t, err)

			var pe *ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.path, pe.Path())
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestNewMap_UnresolvedTemplate(t *testing.T) {
	_, err := NewMap(MapConfig{Mappers: []MapperConfig{{Pattern: "!MISSING!"}}}, template.NewRegistry(0))

	var ue *template.UnresolvedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "MISSING", ue.Name)
}
