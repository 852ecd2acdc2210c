package xtream

// File names of a published Xtream collection directory.
const (
	FileLiveCategories   = "cat_live.json"
	FileVODCategories    = "cat_vod.json"
	FileSeriesCategories = "cat_series.json"
	FileLiveStreams      = "live.json"
	FileVODStreams       = "vod.json"
	FileSeries           = "series.json"
)

// CollectionFiles lists the files of a collection directory.
var CollectionFiles = []string{
	FileLiveCategories,
	FileVODCategories,
	FileSeriesCategories,
	FileLiveStreams,
	FileVODStreams,
	FileSeries,
}

// CategoriesFile returns the category collection of cluster.
func CategoriesFile(cluster Cluster) string {
	switch cluster {
	case ClusterVideo:
		return FileVODCategories
	case ClusterSeries:
		return FileSeriesCategories
	default:
		return FileLiveCategories
	}
}

// StreamsFile returns the item collection of cluster.
func StreamsFile(cluster Cluster) string {
	switch cluster {
	case ClusterVideo:
		return FileVODStreams
	case ClusterSeries:
		return FileSeries
	default:
		return FileLiveStreams
	}
}

// ClusterForAction maps a player_api.php action to its cluster and whether
// the action lists categories.
func ClusterForAction(action string) (cluster Cluster, categories bool, ok bool) {
	switch action {
	case ActionGetLiveCategories:
		return ClusterLive, true, true
	case ActionGetVODCategories:
		return ClusterVideo, true, true
	case ActionGetSeriesCategories:
		return ClusterSeries, true, true
	case ActionGetLiveStreams:
		return ClusterLive, false, true
	case ActionGetVODStreams:
		return ClusterVideo, false, true
	case ActionGetSeries:
		return ClusterSeries, false, true
	}
	return "", false, false
}
