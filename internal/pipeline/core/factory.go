package core

import (
	"log/slog"
	"time"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/repository"
	"github.com/jmylchreest/tvfilter/internal/storage"
)

// Dependencies bundles everything stages may need.
type Dependencies struct {
	Sandbox *storage.Sandbox
	Logger  *slog.Logger

	// WatchRepo persists watched groups. When nil, watch persistence is off.
	WatchRepo repository.WatchSnapshotRepository

	// OutputDir and TempDir are sandbox-relative.
	OutputDir string
	TempDir   string

	// Now returns the current time. Writers use it for year defaults.
	Now func() time.Time
}

// StageConstructor creates the stage for target, or returns nil when the
// stage does not apply to it.
type StageConstructor func(deps *Dependencies, target *catalog.Target) Stage

// OrchestratorFactory creates orchestrators.
type OrchestratorFactory interface {
	Create(runID models.ULID, target *catalog.Target, input []*models.Channel) (*Orchestrator, error)
}

// Factory creates an Orchestrator per target from registered constructors.
type Factory struct {
	deps              *Dependencies
	locks             *TargetLocks
	stageConstructors []StageConstructor
}

// NewFactory creates a Factory. The factory owns the target locks, so one
// factory should serve every run of a process.
func NewFactory(deps *Dependencies) *Factory {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.OutputDir == "" {
		deps.OutputDir = "output"
	}
	if deps.TempDir == "" {
		deps.TempDir = "temp"
	}
	return &Factory{deps: deps, locks: NewTargetLocks()}
}

// RegisterStage appends a stage constructor. Stages run in registration order.
func (f *Factory) RegisterStage(constructor StageConstructor) {
	f.stageConstructors = append(f.stageConstructors, constructor)
}

// Dependencies returns the shared dependencies.
func (f *Factory) Dependencies() *Dependencies {
	return f.deps
}

// Create builds the orchestrator of one target run.
func (f *Factory) Create(runID models.ULID, target *catalog.Target, input []*models.Channel) (*Orchestrator, error) {
	if f.deps.Sandbox == nil {
		return nil, NewConfigurationError("sandbox", "storage sandbox is required")
	}

	stages := make([]Stage, 0, len(f.stageConstructors))
	for _, constructor := range f.stageConstructors {
		if stage := constructor(f.deps, target); stage != nil {
			stages = append(stages, stage)
		}
	}

	return NewOrchestrator(runID, target, input, stages, f.deps.Sandbox,
		f.deps.TempDir, f.deps.OutputDir, f.locks, f.deps.Logger), nil
}

var _ OrchestratorFactory = (*Factory)(nil)
