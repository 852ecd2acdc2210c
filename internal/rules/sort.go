package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/util"
)

// SortOrder is the direction of a Sort rule.
type SortOrder string

// Sort orders.
const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// SortConfig configures a Sort rule. Field defaults to group and Order to asc.
type SortConfig struct {
	Order        SortOrder `yaml:"order" json:"order"`
	Field        string    `yaml:"field,omitempty" json:"field,omitempty"`
	MatchAsASCII bool      `yaml:"match_as_ascii,omitempty" json:"match_as_ascii,omitempty"`
}

// Sort stably reorders channels by one field.
type Sort struct {
	field        string
	order        SortOrder
	matchAsASCII bool
}

var sortFields = []string{models.FieldGroup, models.FieldName, models.FieldTitle}

// NewSort builds a Sort rule.
func NewSort(cfg SortConfig) (*Sort, error) {
	order := SortOrder(strings.ToLower(strings.TrimSpace(string(cfg.Order))))
	switch order {
	case "":
		order = SortAscending
	case SortAscending, SortDescending:
	default:
		return nil, invalidf(KindSort, "order", "order must be asc or desc, got %q", cfg.Order)
	}

	field := strings.ToLower(strings.TrimSpace(cfg.Field))
	if field == "" {
		field = models.FieldGroup
	}
	if !slices.Contains(sortFields, field) {
		return nil, invalidf(KindSort, "field", "cannot sort by %q", cfg.Field)
	}

	return &Sort{field: field, order: order, matchAsASCII: cfg.MatchAsASCII}, nil
}

// Kind returns KindSort.
func (s *Sort) Kind() Kind { return KindSort }

func (s *Sort) sealed() {}

func (s *Sort) String() string {
	return fmt.Sprintf("sort %s %s", s.field, s.order)
}

func (s *Sort) apply(channels []*models.Channel) []*models.Channel {
	type keyed struct {
		key string
		ch  *models.Channel
	}

	items := make([]keyed, len(channels))
	for i, ch := range channels {
		key, _ := ch.GetFieldValue(s.field)
		if s.matchAsASCII {
			key = util.FoldASCII(key)
		}
		items[i] = keyed{key: key, ch: ch}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		if s.order == SortDescending {
			return strings.Compare(b.key, a.key)
		}
		return strings.Compare(a.key, b.key)
	})

	for i := range items {
		channels[i] = items[i].ch
	}
	return channels
}
