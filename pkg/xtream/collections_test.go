package xtream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClusterForAction(t *testing.T) {
	tests := []struct {
		action     string
		cluster    Cluster
		categories bool
		ok         bool
	}{
		{ActionGetLiveCategories, ClusterLive, true, true},
		{ActionGetVODStreams, ClusterVideo, false, true},
		{ActionGetSeries, ClusterSeries, false, true},
		{"get_short_epg", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			cluster, categories, ok := ClusterForAction(tt.action)
			assert.Equal(t, tt.cluster, cluster)
			assert.Equal(t, tt.categories, categories)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestCollectionFiles(t *testing.T) {
	assert.Len(t, CollectionFiles, 6)
	assert.Equal(t, "cat_vod.json", CategoriesFile(ClusterVideo))
	assert.Equal(t, "series.json", StreamsFile(ClusterSeries))
	assert.Equal(t, "live.json", StreamsFile(ClusterLive))
}
