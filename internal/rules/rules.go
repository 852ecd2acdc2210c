// Package rules implements the per-target transformation rules and the
// ordered executor that applies them.
//
// A rule is one of a closed set of variants: Rename, Sort, Mapping, Watch
// and Map. Rules are built once per catalog load, hold only compiled
// patterns and are never mutated afterwards, so one rule value can be
// applied by many targets concurrently. Each application receives and
// returns an ordered channel slice; downstream rules observe upstream
// renaming and reordering.
package rules

import (
	"context"
	"fmt"

	"github.com/jmylchreest/tvfilter/internal/models"
)

// Kind identifies a rule variant.
type Kind string

// Rule kinds.
const (
	KindRename  Kind = "rename"
	KindSort    Kind = "sort"
	KindMapping Kind = "mapping"
	KindWatch   Kind = "watch"
	KindMap     Kind = "map"
)

// DefaultBatchSize is the number of channels processed between
// cancellation checks.
const DefaultBatchSize = 1000

// Rule is a compiled transformation. The set of implementations is closed
// to this package.
type Rule interface {
	// Kind returns the rule variant.
	Kind() Kind

	// String returns a short description for logging.
	String() string

	sealed()
}

// Pipeline applies an ordered list of rules.
type Pipeline struct {
	rules     []Rule
	batchSize int
}

// NewPipeline creates a pipeline. A non-positive batchSize uses DefaultBatchSize.
func NewPipeline(rules []Rule, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{rules: rules, batchSize: batchSize}
}

// Rules returns the rules in execution order.
func (p *Pipeline) Rules() []Rule {
	return p.rules
}

// Len returns the number of rules.
func (p *Pipeline) Len() int {
	return len(p.rules)
}

// Has reports whether the pipeline contains a rule of the given kind.
func (p *Pipeline) Has(kind Kind) bool {
	if p == nil {
		return false
	}
	for _, r := range p.rules {
		if r.Kind() == kind {
			return true
		}
	}
	return false
}

// Apply runs every rule in declared order. The channels are modified in
// place and must be owned by the caller. Cancellation is checked before
// each rule and every batch of channels within a rule.
func (p *Pipeline) Apply(ctx context.Context, channels []*models.Channel) ([]*models.Channel, error) {
	var err error
	for i, rule := range p.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch r := rule.(type) {
		case *Rename:
			err = r.apply(ctx, channels, p.batchSize)
		case *Sort:
			channels = r.apply(channels)
		case *Mapping:
			channels = r.apply(channels)
		case *Watch:
			err = r.apply(ctx, channels, p.batchSize)
		case *Map:
			err = r.apply(ctx, channels, p.batchSize)
		default:
			err = fmt.Errorf("%w: %T", ErrUnknownRule, rule)
		}
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.Kind(), err)
		}
	}
	return channels, nil
}

// checkpoint returns the context error at batch boundaries.
func checkpoint(ctx context.Context, i, batchSize int) error {
	if i%batchSize != 0 {
		return nil
	}
	return ctx.Err()
}
