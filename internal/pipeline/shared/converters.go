// Package shared provides utilities shared between pipeline stages.
package shared

import (
	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/pkg/m3u"
)

// StreamURL returns the locator a writer emits for ch. The provider-direct
// source wins unless the target skips it.
func StreamURL(ch *models.Channel, opts catalog.TargetOptions) string {
	if ch.DirectSource != "" && !opts.SkipDirectSource {
		return ch.DirectSource
	}
	return ch.URL
}

// ChannelToM3UEntry converts a Channel to an M3U Entry.
func ChannelToM3UEntry(ch *models.Channel, opts catalog.TargetOptions) *m3u.Entry {
	entry := &m3u.Entry{
		Duration:      -1,
		TvgID:         ch.EpgID,
		TvgName:       ch.Name,
		GroupTitle:    ch.Group,
		Title:         ch.Caption(),
		ChannelNumber: ch.ChannelNumber,
		URL:           StreamURL(ch, opts),
		Extra:         make(map[string]string),
	}
	if !opts.IgnoreLogo {
		entry.TvgLogo = ch.Logo
	}
	if ch.Kind != models.ChannelKindLive && ch.Kind != "" {
		entry.Extra["tvg-type"] = string(ch.Kind)
	}
	return entry
}
