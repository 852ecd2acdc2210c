package xtream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Cluster identifies one of the Xtream catalog collections.
type Cluster string

// Catalog clusters.
const (
	ClusterLive   Cluster = "live"
	ClusterVideo  Cluster = "video"
	ClusterSeries Cluster = "series"
)

// PathSegment returns the URL path segment streams of the cluster are served under.
func (c Cluster) PathSegment() string {
	switch c {
	case ClusterVideo:
		return "movie"
	case ClusterSeries:
		return "series"
	default:
		return "live"
	}
}

// DefaultExtension returns the container extension assumed when a provider omits one.
func (c Cluster) DefaultExtension() string {
	switch c {
	case ClusterVideo:
		return "mp4"
	case ClusterSeries:
		return "mkv"
	default:
		return "ts"
	}
}

// AuthInfo contains the combined server and user information returned by
// player_api.php without an action.
type AuthInfo struct {
	UserInfo   UserInfo   `json:"user_info"`
	ServerInfo ServerInfo `json:"server_info"`
}

// UserInfo contains user account information.
type UserInfo struct {
	Username             string   `json:"username"`
	Password             string   `json:"password"`
	Message              string   `json:"message"`
	Auth                 FlexInt  `json:"auth"`
	Status               string   `json:"status"`
	ExpDate              FlexInt  `json:"exp_date"`
	IsTrial              FlexInt  `json:"is_trial"`
	ActiveConnections    FlexInt  `json:"active_cons"`
	CreatedAt            FlexInt  `json:"created_at"`
	MaxConnections       FlexInt  `json:"max_connections"`
	AllowedOutputFormats []string `json:"allowed_output_formats"`
}

// IsAuthenticated returns true if the user is authenticated.
func (u *UserInfo) IsAuthenticated() bool {
	return u.Auth.Int() == 1 && u.Status == "Active"
}

// ServerInfo contains server configuration information.
type ServerInfo struct {
	URL            string  `json:"url"`
	Port           FlexInt `json:"port"`
	HTTPSPort      FlexInt `json:"https_port"`
	ServerProtocol string  `json:"server_protocol"`
	RTMPPort       FlexInt `json:"rtmp_port"`
	Timezone       string  `json:"timezone"`
	TimestampNow   FlexInt `json:"timestamp_now"`
	TimeNow        string  `json:"time_now"`
}

// Category represents a content category.
type Category struct {
	CategoryID   FlexString `json:"category_id"`
	CategoryName string     `json:"category_name"`
	ParentID     FlexInt    `json:"parent_id"`
}

// Stream represents a live stream.
type Stream struct {
	Num                FlexInt    `json:"num"`
	Name               string     `json:"name"`
	StreamType         string     `json:"stream_type"`
	StreamID           FlexInt    `json:"stream_id"`
	StreamIcon         string     `json:"stream_icon"`
	EPGChannelID       string     `json:"epg_channel_id"`
	Added              FlexInt    `json:"added"`
	IsAdult            FlexInt    `json:"is_adult"`
	CategoryID         FlexString `json:"category_id"`
	CustomSID          string     `json:"custom_sid"`
	TVArchive          FlexInt    `json:"tv_archive"`
	DirectSource       string     `json:"direct_source"`
	TVArchiveDays      FlexInt    `json:"tv_archive_duration"`
	ContainerExtension string     `json:"container_extension,omitempty"`
}

// AddedTime returns the time the stream was added.
func (s *Stream) AddedTime() time.Time {
	if s.Added.Int() == 0 {
		return time.Time{}
	}
	return time.Unix(s.Added.Int(), 0)
}

// VODStream represents a video on demand item.
type VODStream struct {
	Num                FlexInt    `json:"num"`
	Name               string     `json:"name"`
	StreamType         string     `json:"stream_type"`
	StreamID           FlexInt    `json:"stream_id"`
	StreamIcon         string     `json:"stream_icon"`
	Rating             FlexFloat  `json:"rating"`
	Added              FlexInt    `json:"added"`
	IsAdult            FlexInt    `json:"is_adult"`
	CategoryID         FlexString `json:"category_id"`
	ContainerExtension string     `json:"container_extension"`
	CustomSID          string     `json:"custom_sid"`
	DirectSource       string     `json:"direct_source"`
}

// Series represents a TV series.
type Series struct {
	Num            FlexInt    `json:"num"`
	Name           string     `json:"name"`
	SeriesID       FlexInt    `json:"series_id"`
	Cover          string     `json:"cover"`
	Plot           string     `json:"plot"`
	Cast           string     `json:"cast"`
	Director       string     `json:"director"`
	Genre          string     `json:"genre"`
	ReleaseDate    string     `json:"releaseDate"`
	LastModified   FlexInt    `json:"last_modified"`
	Rating         FlexFloat  `json:"rating"`
	BackdropPath   []string   `json:"backdrop_path"`
	YoutubeTrailer string     `json:"youtube_trailer"`
	CategoryID     FlexString `json:"category_id"`
}

// Panels disagree on whether numeric fields are JSON numbers or strings,
// and some send "" or null. The Flex types decode any of these; values
// that cannot be interpreted decode to the zero value.

// FlexInt is an integer that may arrive quoted.
type FlexInt int64

// Int returns the integer value.
func (f FlexInt) Int() int64 { return int64(f) }

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt(decodeLoose(data, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	}))
	return nil
}

// FlexFloat is a float that may arrive quoted.
type FlexFloat float64

// Float returns the float value.
func (f FlexFloat) Float() float64 { return float64(f) }

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat(decodeLoose(data, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}))
	return nil
}

// FlexString is a string that may arrive as a bare number.
type FlexString string

func (f FlexString) String() string { return string(f) }

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	*f = FlexString(decodeLoose(data, func(s string) (string, error) { return s, nil }))
	return nil
}

// decodeLoose unquotes data when it is a JSON string and hands the raw text
// to parse. Anything parse rejects, including null, yields the zero value.
func decodeLoose[T any](data []byte, parse func(string) (T, error)) T {
	var zero T
	text := string(bytes.TrimSpace(data))
	if text == "" || text == "null" {
		return zero
	}
	if text[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return zero
		}
		text = strings.TrimSpace(s)
	} else if text[0] == '{' || text[0] == '[' || text == "true" || text == "false" {
		return zero
	}
	v, err := parse(text)
	if err != nil {
		return zero
	}
	return v
}
