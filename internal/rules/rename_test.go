package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvfilter/internal/models"
)

func TestNewRename_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RenameConfig
		wantErr error
		param   string
	}{
		{"missing field", RenameConfig{Pattern: "x"}, ErrInvalidParameter, "field"},
		{"id is immutable", RenameConfig{Field: "id", Pattern: "x"}, models.ErrImmutableField, "field"},
		{"url is immutable", RenameConfig{Field: "URL", Pattern: "x"}, models.ErrImmutableField, "field"},
		{"kind is not renameable", RenameConfig{Field: "kind", Pattern: "x"}, ErrInvalidParameter, "field"},
		{"missing pattern", RenameConfig{Field: "group"}, ErrInvalidParameter, "pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRename(tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var pe *ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.param, pe.Param)
		})
	}
}

func TestRename_Rewrite(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		newName string
		input   string
		want    string
		matched bool
	}{
		{"numbered group", `^DE: (.*)`, "$1", "DE: Sport", "Sport", true},
		{"braced group", `^(\w+) HD$`, "${1}", "Arte HD", "Arte", true},
		{"group followed by letters", `^(\w+)-(\w+)$`, "$2x$1", "ab-cd", "cdxab", true},
		{"named group", `^(?P<country>[A-Z]{2})\| (?P<rest>.*)$`, "${rest} [${country}]", "DE| Kino", "Kino [DE]", true},
		{"literal dollar", `^(.*)$`, "$$1", "x", "$1", true},
		{"replaces every match", `\s+`, " ", "a   b    c", "a b c", true},
		{"inline flags", `(?i)^sport`, "Sports", "SPORT", "Sports", true},
		{"no match", `^FR`, "x", "DE News", "DE News", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRename(RenameConfig{Field: "group", Pattern: tt.pattern, NewName: tt.newName})
			require.NoError(t, err)

			got, matched := r.Rewrite(tt.input)
			assert.Equal(t, tt.matched, matched)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandTemplate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"$1", "${1}"},
		{"$12abc", "${12}abc"},
		{"${1}", "${1}"},
		{"${name}", "${name}"},
		{"$$", "$$"},
		{"cost $", "cost $"},
		{"$1 and $2", "${1} and ${2}"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandTemplate(tt.in))
		})
	}
}

func TestRename_NonMatchingChannelUnchanged(t *testing.T) {
	r, err := NewRename(RenameConfig{Field: "group", Pattern: `^DE: (.*)`, NewName: "$1"})
	require.NoError(t, err)

	untouched := channel("1", "FR: Cinema", "Canal")
	untouched.Attributes = map[string]string{"tvg-shift": "1"}
	untouched.Markers = []string{"m"}
	before := untouched.Clone()

	renamed := channel("2", "DE: Sport", "Sky")

	require.NoError(t, r.apply(context.Background(), []*models.Channel{untouched, renamed}, DefaultBatchSize))

	assert.Equal(t, before, untouched)
	assert.Equal(t, "Sport", renamed.Group)
	assert.Equal(t, "2", renamed.ID)
	assert.Equal(t, "http://example.com/2.ts", renamed.URL)
}

func TestRename_Cumulative(t *testing.T) {
	first, err := NewRename(RenameConfig{Field: "name", Pattern: `^UK: `, NewName: ""})
	require.NoError(t, err)
	second, err := NewRename(RenameConfig{Field: "name", Pattern: ` (HD|FHD)$`, NewName: ""})
	require.NoError(t, err)

	ch := channel("1", "UK", "UK: BBC One FHD")
	out, err := NewPipeline([]Rule{first, second}, 0).Apply(context.Background(), []*models.Channel{ch})
	require.NoError(t, err)
	assert.Equal(t, "BBC One", out[0].Name)
}

func TestRename_Caption(t *testing.T) {
	r, err := NewRename(RenameConfig{Field: "caption", Pattern: `^\[VOD\] `, NewName: ""})
	require.NoError(t, err)

	ch := channel("1", "Movies", "[VOD] Heat")
	require.NoError(t, r.apply(context.Background(), []*models.Channel{ch}, DefaultBatchSize))
	assert.Equal(t, "Heat", ch.Title)
	assert.Equal(t, "[VOD] Heat", ch.Name)
}
