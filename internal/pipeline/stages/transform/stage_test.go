package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/rules"
)

func makeChannel(id, group string) *models.Channel {
	return &models.Channel{ID: id, Name: id, Group: group, URL: "http://example.com/" + id}
}

func TestExecute_AppliesRules(t *testing.T) {
	rename, err := rules.NewRename(rules.RenameConfig{Field: "group", Pattern: `^DE: (.*)`, NewName: "$1"})
	require.NoError(t, err)
	mapping, err := rules.NewMapping(rules.MappingConfig{Groups: []string{"Sport"}})
	require.NoError(t, err)

	target := &catalog.Target{Name: "de", Rules: rules.NewPipeline([]rules.Rule{rename, mapping}, 0)}
	state := core.NewState(models.NewULID(), target, nil)
	state.Channels = []*models.Channel{
		makeChannel("1", "DE: News"),
		makeChannel("2", "DE: Sport"),
	}

	result, err := New().Execute(context.Background(), state)
	require.NoError(t, err)

	require.Len(t, state.Channels, 1)
	assert.Equal(t, "2", state.Channels[0].ID)
	assert.Equal(t, "Sport", state.Channels[0].Group)
	assert.Equal(t, 2, result.RecordsProcessed)
	assert.Equal(t, 1, result.RecordsModified)
}

func TestExecute_Cancelled(t *testing.T) {
	sort, err := rules.NewSort(rules.SortConfig{Order: rules.SortAscending})
	require.NoError(t, err)
	target := &catalog.Target{Name: "x", Rules: rules.NewPipeline([]rules.Rule{sort}, 0)}
	state := core.NewState(models.NewULID(), target, nil)
	state.Channels = []*models.Channel{makeChannel("1", "A")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = New().Execute(ctx, state)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewConstructor_SkipsTargetsWithoutRules(t *testing.T) {
	ctor := NewConstructor()
	assert.Nil(t, ctor(&core.Dependencies{}, &catalog.Target{Name: "x"}))
	assert.Nil(t, ctor(&core.Dependencies{}, &catalog.Target{Name: "x", Rules: rules.NewPipeline(nil, 0)}))

	sort, err := rules.NewSort(rules.SortConfig{})
	require.NoError(t, err)
	stage := ctor(&core.Dependencies{}, &catalog.Target{Name: "x", Rules: rules.NewPipeline([]rules.Rule{sort}, 0)})
	require.NotNil(t, stage)
	assert.Equal(t, StageID, stage.ID())
}
