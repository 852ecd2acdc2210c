package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvfilter/internal/models"
)

func TestMapping(t *testing.T) {
	input := func() []*models.Channel {
		return []*models.Channel{
			channel("1", "B", "x"),
			channel("2", "C", "x"),
			channel("3", "A", "x"),
			channel("4", "B", "x"),
		}
	}

	tests := []struct {
		name       string
		cfg        MappingConfig
		wantGroups []string
		wantIDs    []string
	}{
		{
			name:       "allow-list drops unlisted groups",
			cfg:        MappingConfig{Groups: []string{"A", "B"}},
			wantGroups: []string{"A", "B", "B"},
			wantIDs:    []string{"3", "1", "4"},
		},
		{
			name:       "additive appends unlisted groups in prior order",
			cfg:        MappingConfig{Groups: []string{"A", "B"}, Additive: true},
			wantGroups: []string{"A", "B", "B", "C"},
			wantIDs:    []string{"3", "1", "4", "2"},
		},
		{
			name:       "empty list passes through",
			cfg:        MappingConfig{},
			wantGroups: []string{"B", "C", "A", "B"},
			wantIDs:    []string{"1", "2", "3", "4"},
		},
		{
			name:       "duplicate entries keep first position",
			cfg:        MappingConfig{Groups: []string{"C", "A", "C"}},
			wantGroups: []string{"C", "A"},
			wantIDs:    []string{"2", "3"},
		},
		{
			name:       "group names are exact",
			cfg:        MappingConfig{Groups: []string{"a", "b"}},
			wantGroups: []string{},
			wantIDs:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMapping(tt.cfg)
			require.NoError(t, err)

			out := m.apply(input())
			assert.Equal(t, tt.wantGroups, groups(out))
			assert.Equal(t, tt.wantIDs, ids(out))
		})
	}
}

func TestNewMapping_EmptyGroupName(t *testing.T) {
	_, err := NewMapping(MappingConfig{Groups: []string{"A", ""}})
	require.ErrorIs(t, err, ErrInvalidParameter)

	var pe *ParamError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "mapping.groups[1]", pe.Path())
}
