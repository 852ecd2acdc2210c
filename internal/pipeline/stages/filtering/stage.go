// Package filtering implements the target selection stage: it evaluates the
// target's compiled filter against the shared channel sequence and clones
// every match into the target's working set.
package filtering

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/expression"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/pipeline/shared"
	"github.com/jmylchreest/tvfilter/internal/rules"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "filtering"
	// StageName is the human-readable name for this stage.
	StageName = "Filtering"
)

// Stage selects the channels of a target.
type Stage struct {
	shared.BaseStage
	batchSize int
}

// New creates a new filtering stage.
func New(batchSize int) *Stage {
	if batchSize <= 0 {
		batchSize = rules.DefaultBatchSize
	}
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName),
		batchSize: batchSize,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor(batchSize int) core.StageConstructor {
	return func(deps *core.Dependencies, _ *catalog.Target) core.Stage {
		s := New(batchSize)
		s.SetLogger(deps.Logger)
		return s
	}
}

// Execute evaluates the target filter. The input sequence is never
// modified; selected channels are deep copies.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()
	filter := state.Target.Filter

	selected, err := Select(ctx, filter, state.Input, s.batchSize)
	if err != nil {
		return result, err
	}
	state.Channels = selected

	result.RecordsProcessed = len(state.Input)
	result.RecordsModified = len(state.Input) - len(selected)
	result.Message = fmt.Sprintf("selected %d of %d channels", len(selected), len(state.Input))

	s.Log(ctx, slog.LevelDebug, "filter applied",
		slog.Int("input", len(state.Input)),
		slog.Int("selected", len(selected)),
	)
	return result, nil
}

// Select returns clones of the channels matching filter, in input order. A
// nil filter matches everything. ctx is checked every batchSize channels.
func Select(ctx context.Context, filter *expression.Expression, input []*models.Channel, batchSize int) ([]*models.Channel, error) {
	if batchSize <= 0 {
		batchSize = rules.DefaultBatchSize
	}
	out := make([]*models.Channel, 0, len(input))
	for i, ch := range input {
		if i%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if filter == nil || filter.Evaluate(ch) {
			out = append(out, ch.Clone())
		}
	}
	return out, nil
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
