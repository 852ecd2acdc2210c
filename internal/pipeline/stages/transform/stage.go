// Package transform implements the stage that applies a target's rule
// pipeline to its working set.
package transform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/observability"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/pipeline/shared"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "transform"
	// StageName is the human-readable name for this stage.
	StageName = "Transform"
)

// Stage applies the target's rules in declared order.
type Stage struct {
	shared.BaseStage
}

// New creates a new transform stage.
func New() *Stage {
	return &Stage{BaseStage: shared.NewBaseStage(StageID, StageName)}
}

// NewConstructor returns a stage constructor for use with the factory. Targets
// without rules get no transform stage.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies, target *catalog.Target) core.Stage {
		if target.Rules == nil || target.Rules.Len() == 0 {
			return nil
		}
		s := New()
		s.SetLogger(deps.Logger)
		return s
	}
}

// Execute runs the rule pipeline on state.Channels.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()
	pipeline := state.Target.Rules
	if pipeline == nil {
		return result, nil
	}

	before := len(state.Channels)
	for _, r := range pipeline.Rules() {
		s.Log(ctx, slog.LevelDebug, "rule", slog.String("rule", r.String()))
	}

	ruleCtx := observability.ContextWithLogger(ctx, s.Logger().With(slog.String("target", state.Target.Name)))
	channels, err := pipeline.Apply(ruleCtx, state.Channels)
	if err != nil {
		return result, fmt.Errorf("applying rules: %w", err)
	}
	state.Channels = channels

	result.RecordsProcessed = before
	result.RecordsModified = before - len(channels)
	result.Message = fmt.Sprintf("applied %d rules, %d channels remain", pipeline.Len(), len(channels))

	s.Log(ctx, slog.LevelDebug, "rules applied",
		slog.Int("rules", pipeline.Len()),
		slog.Int("before", before),
		slog.Int("after", len(channels)),
	)
	return result, nil
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
