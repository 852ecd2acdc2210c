package models

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ChannelKind classifies a catalog entry.
type ChannelKind string

// Channel kinds.
const (
	ChannelKindLive       ChannelKind = "live"
	ChannelKindVideo      ChannelKind = "video"
	ChannelKindSeries     ChannelKind = "series"
	ChannelKindSeriesInfo ChannelKind = "series_info"
)

// ParseChannelKind parses a kind name, accepting the Xtream cluster aliases.
func ParseChannelKind(s string) (ChannelKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live", "live_streams", "":
		return ChannelKindLive, true
	case "video", "vod", "movie":
		return ChannelKindVideo, true
	case "series":
		return ChannelKindSeries, true
	case "series_info", "seriesinfo":
		return ChannelKindSeriesInfo, true
	default:
		return "", false
	}
}

// Field names addressable on a Channel.
const (
	FieldID         = "id"
	FieldURL        = "url"
	FieldName       = "name"
	FieldTitle      = "title"
	FieldCaption    = "caption"
	FieldGroup      = "group"
	FieldKind       = "kind"
	FieldInput      = "input"
	FieldEpgID      = "epg_id"
	FieldLogo       = "logo"
	FieldChno       = "chno"
	FieldCategoryID = "category_id"
)

// Channel is the canonical, format-agnostic representation of one catalog entry.
//
// ID and URL are fixed when the channel is normalized. SetField refuses to
// change them so the rule pipeline can only rewrite display and
// classification attributes.
type Channel struct {
	// ID is the stable provider-supplied identity.
	ID string `json:"id"`

	// Name is the display name (tvg-name or the provider's name).
	Name string `json:"name"`

	// Title is the EXTINF title or the provider's title.
	Title string `json:"title"`

	// Group is the group or category name.
	Group string `json:"group"`

	// Logo is the logo reference, if any.
	Logo string `json:"logo,omitempty"`

	// URL is the stream locator. It is opaque to the pipeline.
	URL string `json:"url"`

	// EpgID is the EPG channel identifier (tvg-id).
	EpgID string `json:"epg_id,omitempty"`

	// ChannelNumber is the channel number (tvg-chno) if known.
	ChannelNumber int `json:"chno,omitempty"`

	// Kind is live, video, series or series_info.
	Kind ChannelKind `json:"kind"`

	// Input is the name of the source input that produced the channel.
	Input string `json:"input,omitempty"`

	// CategoryID is the provider category id (Xtream sources).
	CategoryID string `json:"category_id,omitempty"`

	// DirectSource is the provider-direct stream URL, when advertised.
	DirectSource string `json:"direct_source,omitempty"`

	// Attributes holds any additional provider attributes.
	Attributes map[string]string `json:"attributes,omitempty"`

	// Markers holds diagnostic labels attached by watch rules.
	Markers []string `json:"markers,omitempty"`
}

// Caption returns the text used to present the channel, preferring the title.
func (c *Channel) Caption() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}

// GetFieldValue returns the value of a named field.
// Unknown names fall back to Attributes.
func (c *Channel) GetFieldValue(name string) (string, bool) {
	switch name {
	case FieldID:
		return c.ID, true
	case FieldURL:
		return c.URL, true
	case FieldName:
		return c.Name, true
	case FieldTitle:
		return c.Title, true
	case FieldCaption:
		return c.Caption(), true
	case FieldGroup:
		return c.Group, true
	case FieldKind:
		return string(c.Kind), true
	case FieldInput:
		return c.Input, true
	case FieldEpgID:
		return c.EpgID, true
	case FieldLogo:
		return c.Logo, true
	case FieldChno:
		if c.ChannelNumber == 0 {
			return "", true
		}
		return strconv.Itoa(c.ChannelNumber), true
	case FieldCategoryID:
		return c.CategoryID, true
	}
	v, ok := c.Attributes[name]
	return v, ok
}

// SetField sets a mutable field. The identity and stream locator are
// immutable and return ErrImmutableField.
func (c *Channel) SetField(name, value string) error {
	switch name {
	case FieldID, FieldURL:
		return ErrValidation{Field: name, Message: ErrImmutableField.Error(), Err: ErrImmutableField}
	case FieldName:
		c.Name = value
	case FieldTitle:
		c.Title = value
	case FieldCaption:
		// caption is derived from title
		c.Title = value
	case FieldGroup:
		c.Group = value
	case FieldLogo:
		c.Logo = value
	case FieldEpgID:
		c.EpgID = value
	case FieldChno:
		if value == "" {
			c.ChannelNumber = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return ErrValidation{Field: name, Message: "must be an integer"}
		}
		c.ChannelNumber = n
	case FieldKind:
		kind, ok := ParseChannelKind(value)
		if !ok {
			return ErrValidation{Field: name, Message: "unknown kind " + value}
		}
		c.Kind = kind
	case FieldInput, FieldCategoryID:
		return ErrValidation{Field: name, Message: ErrImmutableField.Error(), Err: ErrImmutableField}
	default:
		return ErrValidation{Field: name, Message: ErrUnknownField.Error(), Err: ErrUnknownField}
	}
	return nil
}

// IsMutableField reports whether SetField accepts the named field.
func IsMutableField(name string) bool {
	switch name {
	case FieldName, FieldTitle, FieldCaption, FieldGroup, FieldLogo, FieldEpgID, FieldChno, FieldKind:
		return true
	default:
		return false
	}
}

// HasMarker reports whether a watch label is attached.
func (c *Channel) HasMarker(label string) bool {
	return slices.Contains(c.Markers, label)
}

// AddMarker attaches a watch label once.
func (c *Channel) AddMarker(label string) {
	if !c.HasMarker(label) {
		c.Markers = append(c.Markers, label)
	}
}

// Clone returns a deep copy of the channel.
func (c *Channel) Clone() *Channel {
	cp := *c
	if c.Attributes != nil {
		cp.Attributes = maps.Clone(c.Attributes)
	}
	if c.Markers != nil {
		cp.Markers = slices.Clone(c.Markers)
	}
	return &cp
}

// CloneChannels deep copies a channel sequence.
func CloneChannels(channels []*Channel) []*Channel {
	out := make([]*Channel, len(channels))
	for i, ch := range channels {
		out[i] = ch.Clone()
	}
	return out
}
