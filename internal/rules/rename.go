package rules

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/grafana/regexp"

	"github.com/jmylchreest/tvfilter/internal/models"
)

// RenameConfig configures a Rename rule.
type RenameConfig struct {
	Field   string `yaml:"field" json:"field"`
	Pattern string `yaml:"pattern" json:"pattern"`
	NewName string `yaml:"new_name" json:"new_name"`
}

// Rename rewrites one field by regex replacement. Matches are replaced with
// NewName, where $1, ${1} and ${name} refer to capture groups.
type Rename struct {
	field       string
	re          *regexp.Regexp
	replacement string
}

var renameFields = []string{
	models.FieldName,
	models.FieldTitle,
	models.FieldCaption,
	models.FieldGroup,
	models.FieldLogo,
	models.FieldEpgID,
}

// NewRename compiles a Rename rule.
func NewRename(cfg RenameConfig) (*Rename, error) {
	field := strings.ToLower(strings.TrimSpace(cfg.Field))
	switch {
	case field == "":
		return nil, invalidf(KindRename, "field", "field is required")
	case field == models.FieldID || field == models.FieldURL:
		return nil, paramErr(KindRename, "field", fmt.Errorf("%s: %w", field, models.ErrImmutableField))
	case !slices.Contains(renameFields, field):
		return nil, invalidf(KindRename, "field", "cannot rename field %q", cfg.Field)
	}

	if cfg.Pattern == "" {
		return nil, invalidf(KindRename, "pattern", "pattern is required")
	}
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, paramErr(KindRename, "pattern", err)
	}

	return &Rename{
		field:       field,
		re:          re,
		replacement: expandTemplate(cfg.NewName),
	}, nil
}

// Kind returns KindRename.
func (r *Rename) Kind() Kind { return KindRename }

func (r *Rename) sealed() {}

func (r *Rename) String() string {
	return fmt.Sprintf("rename %s ~ %q -> %q", r.field, r.re.String(), r.replacement)
}

// Field returns the rewritten field.
func (r *Rename) Field() string {
	return r.field
}

// Rewrite returns the rewritten value and whether the pattern matched.
func (r *Rename) Rewrite(value string) (string, bool) {
	if !r.re.MatchString(value) {
		return value, false
	}
	return r.re.ReplaceAllString(value, r.replacement), true
}

func (r *Rename) apply(ctx context.Context, channels []*models.Channel, batchSize int) error {
	for i, ch := range channels {
		if err := checkpoint(ctx, i, batchSize); err != nil {
			return err
		}
		current, _ := ch.GetFieldValue(r.field)
		next, ok := r.Rewrite(current)
		if !ok || next == current {
			continue
		}
		if err := ch.SetField(r.field, next); err != nil {
			return fmt.Errorf("channel %s: %w", ch.ID, err)
		}
	}
	return nil
}

// expandTemplate rewrites bare numbered references ($1) into the braced
// form (${1}) so a reference followed by letters is not read as a named
// group. $$ stays a literal dollar.
func expandTemplate(tmpl string) string {
	if !strings.Contains(tmpl, "$") {
		return tmpl
	}
	var b strings.Builder
	b.Grow(len(tmpl) + 8)
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '$' || i+1 >= len(tmpl) {
			b.WriteByte(c)
			continue
		}
		next := tmpl[i+1]
		switch {
		case next == '$':
			b.WriteString("$$")
			i++
		case isDigit(next):
			j := i + 1
			for j < len(tmpl) && isDigit(tmpl[j]) {
				j++
			}
			b.WriteString("${")
			b.WriteString(tmpl[i+1 : j])
			b.WriteByte('}')
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
