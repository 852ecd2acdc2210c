// Package catalog loads and compiles the catalog configuration: templates,
// sources with their inputs, and the targets fed by each source.
//
// Compilation resolves every template reference, compiles every filter and
// rule once, and rejects malformed configuration with a *ConfigError whose
// Path addresses the offending element, e.g.
// "sources[0].targets[1].rules[2].rename.pattern".
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/tvfilter/internal/rules"
)

// File is the decoded catalog YAML.
type File struct {
	Templates []TemplateSpec `yaml:"templates,omitempty"`
	Sources   []SourceSpec   `yaml:"sources"`
}

// TemplateSpec declares a named filter fragment.
type TemplateSpec struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// SourceSpec groups inputs with the targets they feed.
type SourceSpec struct {
	Inputs  []InputSpec  `yaml:"inputs"`
	Targets []TargetSpec `yaml:"targets"`
}

// InputSpec declares one provider input.
type InputSpec struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled,omitempty"`

	// Username and Password are the Xtream credentials. When empty they are
	// taken from the URL query (get.php?username=..&password=..).
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Compression overrides detection for playlist inputs (gzip, bzip2, xz, br).
	Compression string `yaml:"compression,omitempty"`
}

// TargetSpec declares one output target.
type TargetSpec struct {
	Name     string        `yaml:"name"`
	Output   string        `yaml:"output"`
	Filename string        `yaml:"filename,omitempty"`
	Filter   string        `yaml:"filter,omitempty"`
	Enabled  *bool         `yaml:"enabled,omitempty"`
	Options  TargetOptions `yaml:"options,omitempty"`
	Rules    []RuleSpec    `yaml:"rules,omitempty"`
}

// TargetOptions are the writer options of a target.
type TargetOptions struct {
	// IgnoreLogo omits logo references.
	IgnoreLogo bool `yaml:"ignore_logo,omitempty" json:"ignore_logo,omitempty"`

	// SkipDirectSource keeps the provider stream URL instead of the
	// provider-direct source.
	SkipDirectSource bool `yaml:"skip_direct_source,omitempty" json:"skip_direct_source,omitempty"`

	// IncludeSeriesInfo keeps series-info entries in M3U output.
	IncludeSeriesInfo bool `yaml:"include_series_info,omitempty" json:"include_series_info,omitempty"`

	// MatchAsASCII folds field values to ASCII before the filter matches.
	MatchAsASCII bool `yaml:"match_as_ascii,omitempty" json:"match_as_ascii,omitempty"`

	// UnderscoreWhitespace replaces whitespace in STRM file names.
	UnderscoreWhitespace bool `yaml:"underscore_whitespace,omitempty" json:"underscore_whitespace,omitempty"`

	// Cleanup replaces the whole STRM tree on publish.
	Cleanup bool `yaml:"cleanup,omitempty" json:"cleanup,omitempty"`

	// KodiStyle names STRM episodes as "Title (Year) SxxEyy".
	KodiStyle bool `yaml:"kodi_style,omitempty" json:"kodi_style,omitempty"`

	// Watch persists watched group contents and logs changes between runs.
	Watch bool `yaml:"watch,omitempty" json:"watch,omitempty"`
}

// RuleSpec is one rule item. Exactly one field must be set.
type RuleSpec struct {
	Rename  *rules.RenameConfig  `yaml:"rename,omitempty"`
	Sort    *rules.SortConfig    `yaml:"sort,omitempty"`
	Mapping *rules.MappingConfig `yaml:"mapping,omitempty"`
	Watch   *rules.WatchConfig   `yaml:"watch,omitempty"`
	Map     *rules.MapConfig     `yaml:"map,omitempty"`
}

// kinds returns the rule kinds set on the item.
func (r RuleSpec) kinds() []rules.Kind {
	var kinds []rules.Kind
	if r.Rename != nil {
		kinds = append(kinds, rules.KindRename)
	}
	if r.Sort != nil {
		kinds = append(kinds, rules.KindSort)
	}
	if r.Mapping != nil {
		kinds = append(kinds, rules.KindMapping)
	}
	if r.Watch != nil {
		kinds = append(kinds, rules.KindWatch)
	}
	if r.Map != nil {
		kinds = append(kinds, rules.KindMap)
	}
	return kinds
}

// Decode strictly decodes a catalog document. Unknown keys are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Err: ErrEmptyCatalog}
		}
		return nil, &ConfigError{Err: fmt.Errorf("decoding catalog: %w", err)}
	}
	return &f, nil
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte) (*File, error) {
	return Decode(bytes.NewReader(data))
}
