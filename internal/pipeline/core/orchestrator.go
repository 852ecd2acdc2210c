package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/storage"
)

// TempDirPrefix prefixes the per-target working directories below the
// temp directory.
const TempDirPrefix = "tvfilter-"

// TargetLocks prevents two concurrent runs of the same target.
type TargetLocks struct {
	mu     sync.Mutex
	active map[string]bool
}

// NewTargetLocks creates an empty lock set.
func NewTargetLocks() *TargetLocks {
	return &TargetLocks{active: make(map[string]bool)}
}

// TryAcquire marks name as running. It returns false when it already is.
func (l *TargetLocks) TryAcquire(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active[name] {
		return false
	}
	l.active[name] = true
	return true
}

// Release marks name as idle.
func (l *TargetLocks) Release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, name)
}

// Orchestrator runs the stages of one target in sequence.
type Orchestrator struct {
	stages  []Stage
	state   *State
	sandbox *storage.Sandbox
	locks   *TargetLocks
	tempDir string
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator for target. Generated files are
// staged below tempDir and published below outputDir, both sandbox-relative.
func NewOrchestrator(
	runID models.ULID,
	target *catalog.Target,
	input []*models.Channel,
	stages []Stage,
	sandbox *storage.Sandbox,
	tempDir, outputDir string,
	locks *TargetLocks,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if locks == nil {
		locks = NewTargetLocks()
	}
	state := NewState(runID, target, input)
	state.OutputDir = outputDir
	return &Orchestrator{
		stages:  stages,
		state:   state,
		sandbox: sandbox,
		locks:   locks,
		tempDir: tempDir,
		logger:  logger.With(slog.String("target", target.Name)),
	}
}

// Execute runs every stage. Cancellation is checked before each stage; a
// failed or cancelled run removes its temp directory and publishes nothing
// beyond what an earlier stage already published. Errors are *TargetError.
func (o *Orchestrator) Execute(ctx context.Context) (*Result, error) {
	name := o.state.Target.Name
	result := &Result{
		Target:       name,
		StageResults: make(map[string]*StageResult),
	}

	if len(o.stages) == 0 {
		return result, NewTargetError(name, "", ErrNoStages)
	}
	if !o.locks.TryAcquire(name) {
		return result, NewTargetError(name, "", ErrTargetAlreadyRunning)
	}
	defer o.locks.Release(name)

	tempDir, err := o.sandbox.MkdirTemp(o.tempDir, TempDirPrefix+name+"-")
	if err != nil {
		return result, NewTargetError(name, "", fmt.Errorf("creating temp directory: %w", err))
	}
	defer func() {
		if err := o.sandbox.RemoveAll(tempDir); err != nil {
			o.logger.Warn("failed to remove temp directory",
				slog.String("path", tempDir),
				slog.String("error", err.Error()))
		}
	}()
	o.state.TempDir = tempDir

	o.logger.DebugContext(ctx, "starting target pipeline",
		slog.String("run_id", o.state.RunID.String()),
		slog.Int("input_channels", len(o.state.Input)),
		slog.Int("stage_count", len(o.stages)),
	)

	start := time.Now()
	defer o.cleanupStages(ctx)

	for i, stage := range o.stages {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			o.logger.WarnContext(ctx, "target cancelled", slog.String("before_stage", stage.ID()))
			return result, NewTargetError(name, stage.ID(), err)
		}

		stageResult, err := o.executeStage(ctx, i, stage)
		result.StageResults[stage.ID()] = stageResult
		if err != nil {
			result.Duration = time.Since(start)
			result.Errors = append(result.Errors, o.state.Errors...)
			return result, NewTargetError(name, stage.ID(), err)
		}
	}

	result.Success = true
	result.ChannelCount = o.state.ChannelCount
	result.Duration = time.Since(start)
	result.Errors = o.state.Errors
	for _, a := range o.state.ArtifactsAt(ProcessingStagePublished) {
		result.Published = append(result.Published, a.Path)
	}

	o.logger.InfoContext(ctx, "target completed",
		slog.Int("channel_count", result.ChannelCount),
		slog.Int("published", len(result.Published)),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

func (o *Orchestrator) executeStage(ctx context.Context, index int, stage Stage) (*StageResult, error) {
	stageStart := time.Now()

	o.logger.DebugContext(ctx, "executing stage",
		slog.Int("stage_num", index+1),
		slog.Int("total_stages", len(o.stages)),
		slog.String("stage_id", stage.ID()),
	)

	stageResult, err := stage.Execute(ctx, o.state)
	if stageResult == nil {
		stageResult = &StageResult{}
	}
	stageResult.Duration = time.Since(stageStart)

	if err != nil {
		o.logger.ErrorContext(ctx, "stage failed",
			slog.String("stage_id", stage.ID()),
			slog.String("error", err.Error()),
			slog.Duration("duration", stageResult.Duration),
		)
		return stageResult, err
	}

	for _, artifact := range stageResult.Artifacts {
		o.state.AddArtifact(stage.ID(), artifact)
	}

	o.logger.DebugContext(ctx, "stage completed",
		slog.String("stage_id", stage.ID()),
		slog.Duration("duration", stageResult.Duration),
		slog.Int("records_processed", stageResult.RecordsProcessed),
		slog.Int("artifacts_produced", len(stageResult.Artifacts)),
	)
	return stageResult, nil
}

func (o *Orchestrator) cleanupStages(ctx context.Context) {
	for _, stage := range o.stages {
		if err := stage.Cleanup(ctx); err != nil {
			o.logger.Warn("stage cleanup failed",
				slog.String("stage_id", stage.ID()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// State returns the run state.
func (o *Orchestrator) State() *State {
	return o.state
}

// Stages returns the configured stages.
func (o *Orchestrator) Stages() []Stage {
	return o.stages
}
