package rules

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/grafana/regexp"

	"github.com/jmylchreest/tvfilter/internal/expression"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/observability"
)

// Resolver expands template references in expression text.
type Resolver interface {
	Resolve(text string) (string, error)
}

// MapConfig configures a Map rule.
type MapConfig struct {
	MatchAsASCII bool           `yaml:"match_as_ascii,omitempty" json:"match_as_ascii,omitempty"`
	Mappers      []MapperConfig `yaml:"mapper" json:"mapper"`
	Tags         []TagConfig    `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// MapperConfig is one mapper of a Map rule. Filter selects the channels
// the mapper looks at; Pattern must match for the mapper to apply and
// provides the captures.
type MapperConfig struct {
	Filter      string            `yaml:"filter,omitempty" json:"filter,omitempty"`
	Pattern     string            `yaml:"pattern" json:"pattern"`
	Attributes  map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Suffix      map[string]string `yaml:"suffix,omitempty" json:"suffix,omitempty"`
	Prefix      map[string]string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Assignments map[string]string `yaml:"assignments,omitempty" json:"assignments,omitempty"`
}

// TagConfig defines a <tag:NAME> placeholder usable in prefix and suffix
// values. The listed captures are joined with Concat and wrapped in
// Prefix and Suffix.
type TagConfig struct {
	Name     string   `yaml:"name" json:"name"`
	Captures []string `yaml:"captures" json:"captures"`
	Concat   string   `yaml:"concat,omitempty" json:"concat,omitempty"`
	Prefix   string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Suffix   string   `yaml:"suffix,omitempty" json:"suffix,omitempty"`
}

var (
	attributeFields = []string{
		models.FieldName,
		models.FieldTitle,
		models.FieldGroup,
		models.FieldLogo,
		models.FieldEpgID,
		models.FieldChno,
		models.FieldCaption,
	}
	affixFields = []string{models.FieldName, models.FieldTitle, models.FieldGroup}

	placeholderRe = regexp.MustCompile(`<(.*?)>`)
	tagRe         = regexp.MustCompile(`<tag:(.*?)>`)
)

type fieldValue struct {
	field string
	value string
}

type mapper struct {
	filter      *expression.Expression
	pattern     *expression.Expression
	attributes  []fieldValue
	suffix      []fieldValue
	prefix      []fieldValue
	assignments []fieldValue
}

// Map rewrites fields of channels matched by capture patterns.
// For every matching mapper it applies, in order, attributes, suffix,
// prefix and assignments.
type Map struct {
	mappers []*mapper
	tags    map[string]TagConfig
}

// NewMap compiles a Map rule. Filters and patterns are expanded with the
// resolver before compiling; a nil resolver leaves them unchanged.
func NewMap(cfg MapConfig, resolver Resolver) (*Map, error) {
	if len(cfg.Mappers) == 0 {
		return nil, invalidf(KindMap, "mapper", "at least one mapper is required")
	}

	opts := expression.Options{MatchAsASCII: cfg.MatchAsASCII}
	compile := func(param, text string) (*expression.Expression, error) {
		if resolver != nil {
			resolved, err := resolver.Resolve(text)
			if err != nil {
				return nil, paramErr(KindMap, param, err)
			}
			text = resolved
		}
		expr, err := expression.CompileWithOptions(text, opts)
		if err != nil {
			return nil, paramErr(KindMap, param, err)
		}
		return expr, nil
	}

	m := &Map{tags: make(map[string]TagConfig, len(cfg.Tags))}
	for i, tag := range cfg.Tags {
		if tag.Name == "" {
			return nil, invalidf(KindMap, fmt.Sprintf("tags[%d].name", i), "tag name is required")
		}
		if _, dup := m.tags[tag.Name]; dup {
			return nil, invalidf(KindMap, fmt.Sprintf("tags[%d].name", i), "duplicate tag %q", tag.Name)
		}
		m.tags[tag.Name] = tag
	}

	for i, mc := range cfg.Mappers {
		prefix := fmt.Sprintf("mapper[%d]", i)
		if strings.TrimSpace(mc.Pattern) == "" {
			return nil, invalidf(KindMap, prefix+".pattern", "pattern is required")
		}

		mp := &mapper{}
		var err error
		if mp.pattern, err = compile(prefix+".pattern", mc.Pattern); err != nil {
			return nil, err
		}
		if strings.TrimSpace(mc.Filter) != "" {
			if mp.filter, err = compile(prefix+".filter", mc.Filter); err != nil {
				return nil, err
			}
		}

		if mp.attributes, err = fieldValues(prefix+".attributes", mc.Attributes, attributeFields, false); err != nil {
			return nil, err
		}
		if mp.suffix, err = fieldValues(prefix+".suffix", mc.Suffix, affixFields, false); err != nil {
			return nil, err
		}
		if mp.prefix, err = fieldValues(prefix+".prefix", mc.Prefix, affixFields, false); err != nil {
			return nil, err
		}
		if mp.assignments, err = fieldValues(prefix+".assignments", mc.Assignments, attributeFields, true); err != nil {
			return nil, err
		}
		m.mappers = append(m.mappers, mp)
	}
	return m, nil
}

// fieldValues validates the keys (and, for assignments, the values) of a
// field map and returns them in key order.
func fieldValues(param string, in map[string]string, allowed []string, valuesAreFields bool) ([]fieldValue, error) {
	out := make([]fieldValue, 0, len(in))
	for _, key := range slices.Sorted(maps.Keys(in)) {
		field := strings.ToLower(key)
		if !slices.Contains(allowed, field) {
			return nil, invalidf(KindMap, param+"."+key, "field %q cannot be set", key)
		}
		value := in[key]
		if valuesAreFields {
			value = strings.ToLower(value)
			if !slices.Contains(allowed, value) {
				return nil, invalidf(KindMap, param+"."+key, "field %q cannot be read", in[key])
			}
		}
		out = append(out, fieldValue{field: field, value: value})
	}
	return out, nil
}

// Kind returns KindMap.
func (m *Map) Kind() Kind { return KindMap }

func (m *Map) sealed() {}

func (m *Map) String() string {
	return fmt.Sprintf("map (%d mappers)", len(m.mappers))
}

func (m *Map) apply(ctx context.Context, channels []*models.Channel, batchSize int) error {
	for i, ch := range channels {
		if err := checkpoint(ctx, i, batchSize); err != nil {
			return err
		}
		for _, mp := range m.mappers {
			m.applyMapper(ctx, mp, ch)
		}
	}
	return nil
}

// applyMapper runs one mapper against ch. A value the channel rejects
// (for example a non-numeric chno) leaves that field unchanged and is
// logged; the remaining writes still apply.
func (m *Map) applyMapper(ctx context.Context, mp *mapper, ch *models.Channel) {
	if mp.filter != nil && !mp.filter.Evaluate(ch) {
		return
	}
	ok, captures := mp.pattern.EvaluateCaptures(ch)
	if !ok {
		return
	}

	for _, attr := range mp.attributes {
		value := attr.value
		if strings.Contains(value, "<") {
			value = placeholderRe.ReplaceAllStringFunc(value, func(ref string) string {
				if v, ok := captures.Get(ref[1 : len(ref)-1]); ok {
					return v
				}
				return ref
			})
		}
		m.setField(ctx, ch, attr.field, value)
	}

	for _, sfx := range mp.suffix {
		affix, ok := m.expandTags(sfx.value, captures)
		if !ok {
			continue
		}
		old, _ := ch.GetFieldValue(sfx.field)
		m.setField(ctx, ch, sfx.field, old+affix)
	}

	for _, pfx := range mp.prefix {
		affix, ok := m.expandTags(pfx.value, captures)
		if !ok {
			continue
		}
		old, _ := ch.GetFieldValue(pfx.field)
		m.setField(ctx, ch, pfx.field, affix+old)
	}

	for _, asg := range mp.assignments {
		value, _ := ch.GetFieldValue(asg.value)
		m.setField(ctx, ch, asg.field, value)
	}
}

func (m *Map) setField(ctx context.Context, ch *models.Channel, field, value string) {
	if err := ch.SetField(field, value); err != nil {
		observability.LoggerFromContext(ctx).WarnContext(ctx, "map rule skipped field",
			slog.String("channel", ch.ID),
			slog.String("field", field),
			slog.String("value", value),
			slog.String("error", err.Error()),
		)
	}
}

// expandTags replaces <tag:NAME> placeholders. A tag whose captures are all
// blank expands to nothing; a tag referring to a capture that did not
// participate makes the whole affix unusable.
func (m *Map) expandTags(value string, captures expression.Captures) (string, bool) {
	for _, match := range tagRe.FindAllStringSubmatch(value, -1) {
		tag, ok := m.tags[match[1]]
		if !ok || len(tag.Captures) == 0 {
			continue
		}

		parts := make([]string, 0, len(tag.Captures))
		for _, name := range tag.Captures {
			v, ok := captures.Get(name)
			if !ok {
				return "", false
			}
			parts = append(parts, v)
		}

		text := strings.Join(parts, tag.Concat)
		replacement := ""
		if strings.TrimSpace(text) != "" {
			replacement = tag.Prefix + text + tag.Suffix
		}
		value = strings.ReplaceAll(value, match[0], replacement)
	}
	return value, true
}
