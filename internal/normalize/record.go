// Package normalize turns raw provider records into canonical channels.
package normalize

import (
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/pkg/m3u"
	"github.com/jmylchreest/tvfilter/pkg/xtream"
)

// Record is the capability set every raw record shape provides.
type Record interface {
	RecordID() string
	GroupName() string
	DisplayName() string
	StreamLocator() string
	Kind() models.ChannelKind
	Attributes() map[string]string
}

// Details is implemented by records that carry presentation metadata
// beyond the Record capabilities.
type Details interface {
	Title() string
	Logo() string
	EpgID() string
	ChannelNumber() int
	CategoryID() string
	DirectSource() string
}

// videoExtensions mark playlist entries that point at files rather than streams.
var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true,
	".m4v": true, ".wmv": true, ".webm": true, ".mpg": true,
}

// M3URecord adapts a playlist entry.
type M3URecord struct {
	Entry *m3u.Entry
}

// RecordID returns the entry's channel-id attribute, or a UUIDv5 derived
// from the stream URL so the id is stable across refreshes.
func (r M3URecord) RecordID() string {
	if id := r.Entry.Extra["channel-id"]; id != "" {
		return id
	}
	if r.Entry.URL == "" {
		return ""
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(r.Entry.URL)).String()
}

func (r M3URecord) GroupName() string   { return r.Entry.GroupTitle }
func (r M3URecord) DisplayName() string { return r.Entry.Name() }
func (r M3URecord) StreamLocator() string {
	return r.Entry.URL
}

// Kind honours a tvg-type attribute, then infers the kind from the URL path:
// Xtream style /movie/ and /series/ segments, then video file extensions.
func (r M3URecord) Kind() models.ChannelKind {
	if tt := r.Entry.Extra["tvg-type"]; tt != "" {
		if kind, ok := models.ParseChannelKind(tt); ok {
			return kind
		}
	}
	p := r.Entry.URL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch {
	case strings.Contains(p, "/series/"):
		return models.ChannelKindSeries
	case strings.Contains(p, "/movie/"):
		return models.ChannelKindVideo
	case videoExtensions[strings.ToLower(path.Ext(p))]:
		return models.ChannelKindVideo
	default:
		return models.ChannelKindLive
	}
}

func (r M3URecord) Attributes() map[string]string { return r.Entry.Extra }
func (r M3URecord) Title() string                 { return r.Entry.Title }
func (r M3URecord) Logo() string                  { return r.Entry.TvgLogo }
func (r M3URecord) EpgID() string                 { return r.Entry.TvgID }
func (r M3URecord) ChannelNumber() int            { return r.Entry.ChannelNumber }
func (r M3URecord) CategoryID() string            { return "" }
func (r M3URecord) DirectSource() string          { return "" }

// FromM3U wraps playlist entries as records.
func FromM3U(entries []*m3u.Entry) []Record {
	records := make([]Record, len(entries))
	for i, e := range entries {
		records[i] = M3URecord{Entry: e}
	}
	return records
}

// XtreamRecord adapts one item of an Xtream catalog.
type XtreamRecord struct {
	Cluster     xtream.Cluster
	Live        *xtream.Stream
	VOD         *xtream.VODStream
	Series      *xtream.Series
	Category    string // resolved category name
	Credentials xtream.Credentials
}

func (r XtreamRecord) id() int64 {
	switch {
	case r.Live != nil:
		return r.Live.StreamID.Int()
	case r.VOD != nil:
		return r.VOD.StreamID.Int()
	case r.Series != nil:
		return r.Series.SeriesID.Int()
	}
	return 0
}

// RecordID returns the provider stream or series id.
func (r XtreamRecord) RecordID() string {
	id := r.id()
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func (r XtreamRecord) GroupName() string { return r.Category }

func (r XtreamRecord) DisplayName() string {
	switch {
	case r.Live != nil:
		return r.Live.Name
	case r.VOD != nil:
		return r.VOD.Name
	case r.Series != nil:
		return r.Series.Name
	}
	return ""
}

// StreamLocator builds the panel stream URL. Series listings point at their
// get_series_info action since episodes are resolved separately. Records
// without a panel base URL (local collection dumps) use the direct source.
func (r XtreamRecord) StreamLocator() string {
	if r.Credentials.BaseURL == "" {
		return r.DirectSource()
	}
	id := r.id()
	if id == 0 {
		return ""
	}
	switch {
	case r.Live != nil:
		return r.Credentials.StreamURL(xtream.ClusterLive, id, r.Live.ContainerExtension)
	case r.VOD != nil:
		return r.Credentials.StreamURL(xtream.ClusterVideo, id, r.VOD.ContainerExtension)
	case r.Series != nil:
		return r.Credentials.ActionURL("get_series_info", "series_id", r.RecordID())
	}
	return ""
}

func (r XtreamRecord) Kind() models.ChannelKind {
	switch {
	case r.VOD != nil:
		return models.ChannelKindVideo
	case r.Series != nil:
		return models.ChannelKindSeriesInfo
	default:
		return models.ChannelKindLive
	}
}

func (r XtreamRecord) Attributes() map[string]string {
	attrs := map[string]string{"cluster": string(r.Cluster)}
	switch {
	case r.VOD != nil && r.VOD.ContainerExtension != "":
		attrs["container_extension"] = r.VOD.ContainerExtension
	case r.Series != nil && r.Series.Genre != "":
		attrs["genre"] = r.Series.Genre
	}
	return attrs
}

func (r XtreamRecord) Title() string { return r.DisplayName() }

func (r XtreamRecord) Logo() string {
	switch {
	case r.Live != nil:
		return r.Live.StreamIcon
	case r.VOD != nil:
		return r.VOD.StreamIcon
	case r.Series != nil:
		return r.Series.Cover
	}
	return ""
}

func (r XtreamRecord) EpgID() string {
	if r.Live != nil {
		return r.Live.EPGChannelID
	}
	return ""
}

func (r XtreamRecord) ChannelNumber() int {
	switch {
	case r.Live != nil:
		return int(r.Live.Num.Int())
	case r.VOD != nil:
		return int(r.VOD.Num.Int())
	case r.Series != nil:
		return int(r.Series.Num.Int())
	}
	return 0
}

func (r XtreamRecord) CategoryID() string {
	switch {
	case r.Live != nil:
		return r.Live.CategoryID.String()
	case r.VOD != nil:
		return r.VOD.CategoryID.String()
	case r.Series != nil:
		return r.Series.CategoryID.String()
	}
	return ""
}

func (r XtreamRecord) DirectSource() string {
	switch {
	case r.Live != nil:
		return r.Live.DirectSource
	case r.VOD != nil:
		return r.VOD.DirectSource
	}
	return ""
}

// FromXtream flattens a catalog into records in live, vod, series order.
func FromXtream(cat *xtream.Catalog, creds xtream.Credentials) []Record {
	records := make([]Record, 0, cat.Len())

	names := cat.CategoryNames(xtream.ClusterLive)
	for i := range cat.Live {
		s := &cat.Live[i]
		records = append(records, XtreamRecord{
			Cluster: xtream.ClusterLive, Live: s, Credentials: creds,
			Category: names[s.CategoryID.String()],
		})
	}

	names = cat.CategoryNames(xtream.ClusterVideo)
	for i := range cat.VOD {
		s := &cat.VOD[i]
		records = append(records, XtreamRecord{
			Cluster: xtream.ClusterVideo, VOD: s, Credentials: creds,
			Category: names[s.CategoryID.String()],
		})
	}

	names = cat.CategoryNames(xtream.ClusterSeries)
	for i := range cat.Series {
		s := &cat.Series[i]
		records = append(records, XtreamRecord{
			Cluster: xtream.ClusterSeries, Series: s, Credentials: creds,
			Category: names[s.CategoryID.String()],
		})
	}

	return records
}
