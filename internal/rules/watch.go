package rules

import (
	"context"
	"fmt"

	"github.com/grafana/regexp"

	"github.com/jmylchreest/tvfilter/internal/models"
)

// WatchConfig configures a Watch rule. Label defaults to the pattern text.
type WatchConfig struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Label   string `yaml:"label,omitempty" json:"label,omitempty"`
}

// Watch attaches a marker to channels whose group matches a pattern.
// It never removes or reorders channels.
type Watch struct {
	re    *regexp.Regexp
	label string
}

// NewWatch compiles a Watch rule.
func NewWatch(cfg WatchConfig) (*Watch, error) {
	if cfg.Pattern == "" {
		return nil, invalidf(KindWatch, "pattern", "pattern is required")
	}
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, paramErr(KindWatch, "pattern", err)
	}
	label := cfg.Label
	if label == "" {
		label = cfg.Pattern
	}
	return &Watch{re: re, label: label}, nil
}

// Kind returns KindWatch.
func (w *Watch) Kind() Kind { return KindWatch }

func (w *Watch) sealed() {}

func (w *Watch) String() string {
	return fmt.Sprintf("watch group ~ %q as %q", w.re.String(), w.label)
}

// Label returns the marker attached to matching channels.
func (w *Watch) Label() string {
	return w.label
}

// Matches reports whether a group is watched.
func (w *Watch) Matches(group string) bool {
	return w.re.MatchString(group)
}

func (w *Watch) apply(ctx context.Context, channels []*models.Channel, batchSize int) error {
	for i, ch := range channels {
		if err := checkpoint(ctx, i, batchSize); err != nil {
			return err
		}
		if w.re.MatchString(ch.Group) {
			ch.AddMarker(w.label)
		}
	}
	return nil
}
