// Package pipeline assembles the per-target stage pipeline and runs a
// catalog end to end: acquisition, normalization and dispatch of every
// target.
//
// The pipeline is organized into several sub-packages:
//   - core: Orchestrator, Dispatcher, interfaces, and base types
//   - shared: Utilities shared between stages
//   - stages/*: Individual stage implementations
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/normalize"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/pipeline/stages/filtering"
	"github.com/jmylchreest/tvfilter/internal/pipeline/stages/generatem3u"
	"github.com/jmylchreest/tvfilter/internal/pipeline/stages/generatestrm"
	"github.com/jmylchreest/tvfilter/internal/pipeline/stages/generatextream"
	"github.com/jmylchreest/tvfilter/internal/pipeline/stages/publish"
	"github.com/jmylchreest/tvfilter/internal/pipeline/stages/transform"
	"github.com/jmylchreest/tvfilter/internal/pipeline/stages/watch"
)

// Re-export core types for convenience.
type (
	// Stage is a single step in the pipeline.
	Stage = core.Stage

	// State holds shared data between stages.
	State = core.State

	// Dependencies bundles stage dependencies.
	Dependencies = core.Dependencies

	// Factory creates orchestrators.
	Factory = core.Factory

	// RunReport summarizes one run.
	RunReport = core.RunReport

	// TargetStatus reports one target of a run.
	TargetStatus = core.TargetStatus
)

// Stage IDs in execution order.
const (
	StageIDFiltering      = filtering.StageID
	StageIDTransform      = transform.StageID
	StageIDWatch          = watch.StageID
	StageIDGenerateM3U    = generatem3u.StageID
	StageIDGenerateXtream = generatextream.StageID
	StageIDGenerateSTRM   = generatestrm.StageID
	StageIDPublish        = publish.StageID
)

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// ErrNoCatalog is returned when Run is called without a catalog.
var ErrNoCatalog = errors.New("no catalog loaded")

// NewDefaultFactory creates a factory with the standard stage configuration.
// Each target gets filtering, its rules, watch persistence when enabled,
// the generator of its output kind and publish.
func NewDefaultFactory(deps *Dependencies, batchSize int) *Factory {
	factory := core.NewFactory(deps)

	factory.RegisterStage(filtering.NewConstructor(batchSize))
	factory.RegisterStage(transform.NewConstructor())
	factory.RegisterStage(watch.NewConstructor())
	factory.RegisterStage(generatem3u.NewConstructor())
	factory.RegisterStage(generatextream.NewConstructor())
	factory.RegisterStage(generatestrm.NewConstructor())
	factory.RegisterStage(publish.NewConstructor())

	return factory
}

// RecordLoader acquires the raw records of an input.
type RecordLoader interface {
	Load(ctx context.Context, in catalog.Input) ([]normalize.Record, error)
}

// Runner executes complete runs of a catalog. At most one run is active at
// a time; the report of the last finished run is retained.
type Runner struct {
	loader     RecordLoader
	dispatcher *core.Dispatcher
	logger     *slog.Logger

	running atomic.Bool
	mu      sync.RWMutex
	last    *RunReport
}

// NewRunner creates a Runner.
func NewRunner(loader RecordLoader, dispatcher *core.Dispatcher, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		loader:     loader,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "runner")),
	}
}

// Run loads every enabled input of cat, normalizes the records of each
// source into one shared sequence and dispatches the targets.
//
// An input that fails to load fails the targets of its source; the other
// sources are unaffected. The returned report is complete even when
// targets failed; the error is only set when the run could not start.
func (r *Runner) Run(ctx context.Context, cat *catalog.Catalog) (*RunReport, error) {
	if cat == nil {
		return nil, ErrNoCatalog
	}
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	start := time.Now()
	loaded := r.loadSources(ctx, cat.Sources)

	channels := make(map[int][]*models.Channel, len(cat.Sources))
	loadErrs := make(map[int]error)
	var inputs []core.InputStatus
	var total normalize.RecordStats

	for _, src := range cat.Sources {
		var sourceErrs []error
		for _, in := range loaded[src.Index] {
			status := core.InputStatus{Name: in.name, Records: in.stats}
			if in.err != nil {
				status.Error = in.err.Error()
				sourceErrs = append(sourceErrs, in.err)
			}
			inputs = append(inputs, status)
			total.Add(in.stats)
			channels[src.Index] = append(channels[src.Index], in.channels...)
		}
		if len(sourceErrs) > 0 {
			loadErrs[src.Index] = errors.Join(sourceErrs...)
		}
	}

	report := r.dispatcher.RunSources(ctx, cat.Sources, channels, loadErrs)
	report.StartedAt = start
	report.Inputs = inputs
	report.Records = total

	r.mu.Lock()
	r.last = report
	r.mu.Unlock()

	return report, nil
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// LastReport returns the report of the last finished run, or nil.
func (r *Runner) LastReport() *RunReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

type loadedInput struct {
	name     string
	channels []*models.Channel
	stats    normalize.RecordStats
	err      error
}

// loadSources acquires every enabled input concurrently. Results keep the
// declaration order of the inputs.
func (r *Runner) loadSources(ctx context.Context, sources []*catalog.Source) map[int][]*loadedInput {
	out := make(map[int][]*loadedInput, len(sources))

	var g errgroup.Group
	for _, src := range sources {
		for _, in := range src.EnabledInputs() {
			result := &loadedInput{name: in.Name}
			out[src.Index] = append(out[src.Index], result)

			g.Go(func() error {
				records, err := r.loader.Load(ctx, in)
				if err != nil {
					r.logger.WarnContext(ctx, "input failed",
						slog.String("input", in.Name),
						slog.String("error", err.Error()),
					)
					result.err = err
					return nil
				}
				result.channels, result.stats = normalize.NormalizeAll(records, in.Name, func(_ normalize.Record, err error) {
					r.logger.WarnContext(ctx, "skipping malformed record",
						slog.String("input", in.Name),
						slog.String("error", err.Error()),
					)
				})
				if result.stats.Skipped > 0 {
					r.logger.InfoContext(ctx, "skipped malformed records",
						slog.String("input", in.Name),
						slog.Int("skipped", result.stats.Skipped),
						slog.Int("total", result.stats.Total),
					)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	return out
}
