package xtream

import (
	"net/url"
	"strconv"
	"strings"
)

// Player API actions.
const (
	ActionGetLiveCategories   = "get_live_categories"
	ActionGetVODCategories    = "get_vod_categories"
	ActionGetSeriesCategories = "get_series_categories"
	ActionGetLiveStreams      = "get_live_streams"
	ActionGetVODStreams       = "get_vod_streams"
	ActionGetSeries           = "get_series"
)

const (
	pathPlayerAPI = "/player_api.php"

	paramUsername   = "username"
	paramPassword   = "password"
	paramAction     = "action"
	paramCategoryID = "category_id"
)

// Credentials locate an Xtream account.
type Credentials struct {
	BaseURL  string
	Username string
	Password string
}

// NewCredentials trims a trailing slash from the base URL.
func NewCredentials(baseURL, username, password string) Credentials {
	return Credentials{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		Username: username,
		Password: password,
	}
}

// ActionURL returns the player_api.php URL for action. Extra parameters are
// appended in the order given as key, value pairs.
func (c Credentials) ActionURL(action string, params ...string) string {
	var sb strings.Builder
	sb.WriteString(c.BaseURL)
	sb.WriteString(pathPlayerAPI)
	sb.WriteString("?" + paramUsername + "=" + url.QueryEscape(c.Username))
	sb.WriteString("&" + paramPassword + "=" + url.QueryEscape(c.Password))
	if action != "" {
		sb.WriteString("&" + paramAction + "=" + url.QueryEscape(action))
	}
	for i := 0; i+1 < len(params); i += 2 {
		sb.WriteString("&" + url.QueryEscape(params[i]) + "=" + url.QueryEscape(params[i+1]))
	}
	return sb.String()
}

// StreamURL returns the stream URL of an item in cluster.
func (c Credentials) StreamURL(cluster Cluster, id int64, extension string) string {
	if extension == "" {
		extension = cluster.DefaultExtension()
	}
	return c.BaseURL + "/" + cluster.PathSegment() + "/" +
		url.PathEscape(c.Username) + "/" + url.PathEscape(c.Password) + "/" +
		strconv.FormatInt(id, 10) + "." + extension
}

// ParsePlaylistURL extracts the account from an Xtream get.php playlist URL
// such as http://host:8080/get.php?username=u&password=p&type=m3u_plus.
func ParsePlaylistURL(raw string) (Credentials, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Credentials{}, false
	}
	q := u.Query()
	if !q.Has(paramUsername) && !q.Has(paramPassword) {
		return Credentials{}, false
	}
	return Credentials{
		BaseURL:  u.Scheme + "://" + u.Host,
		Username: q.Get(paramUsername),
		Password: q.Get(paramPassword),
	}, true
}

// CategoriesAction returns the action listing the categories of cluster.
func CategoriesAction(cluster Cluster) string {
	switch cluster {
	case ClusterVideo:
		return ActionGetVODCategories
	case ClusterSeries:
		return ActionGetSeriesCategories
	default:
		return ActionGetLiveCategories
	}
}

// StreamsAction returns the action listing the items of cluster.
func StreamsAction(cluster Cluster) string {
	switch cluster {
	case ClusterVideo:
		return ActionGetVODStreams
	case ClusterSeries:
		return ActionGetSeries
	default:
		return ActionGetLiveStreams
	}
}
