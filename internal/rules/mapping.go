package rules

import (
	"fmt"

	"github.com/jmylchreest/tvfilter/internal/models"
)

// MappingConfig configures a Mapping rule.
type MappingConfig struct {
	Groups   []string `yaml:"groups" json:"groups"`
	Additive bool     `yaml:"additive,omitempty" json:"additive,omitempty"`
}

// Mapping keeps the channels whose group is in an allow-list and orders
// them by list position. Channels of the same group keep their prior
// order. Unlisted channels are dropped, or appended in prior order when
// the mapping is additive. An empty list passes channels through.
type Mapping struct {
	groups   []string
	position map[string]int
	additive bool
}

// NewMapping builds a Mapping rule. A group listed twice keeps its first position.
func NewMapping(cfg MappingConfig) (*Mapping, error) {
	position := make(map[string]int, len(cfg.Groups))
	groups := make([]string, 0, len(cfg.Groups))
	for i, g := range cfg.Groups {
		if g == "" {
			return nil, invalidf(KindMapping, fmt.Sprintf("groups[%d]", i), "group name is empty")
		}
		if _, dup := position[g]; dup {
			continue
		}
		position[g] = len(groups)
		groups = append(groups, g)
	}
	return &Mapping{groups: groups, position: position, additive: cfg.Additive}, nil
}

// Kind returns KindMapping.
func (m *Mapping) Kind() Kind { return KindMapping }

func (m *Mapping) sealed() {}

func (m *Mapping) String() string {
	return fmt.Sprintf("mapping %v additive=%t", m.groups, m.additive)
}

func (m *Mapping) apply(channels []*models.Channel) []*models.Channel {
	if len(m.groups) == 0 {
		return channels
	}

	buckets := make([][]*models.Channel, len(m.groups))
	var rest []*models.Channel
	for _, ch := range channels {
		if pos, ok := m.position[ch.Group]; ok {
			buckets[pos] = append(buckets[pos], ch)
		} else if m.additive {
			rest = append(rest, ch)
		}
	}

	out := make([]*models.Channel, 0, len(channels))
	for _, bucket := range buckets {
		out = append(out, bucket...)
	}
	return append(out, rest...)
}
