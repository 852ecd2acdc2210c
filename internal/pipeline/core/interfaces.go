// Package core provides the per-target pipeline framework: the Stage
// contract, the State threaded through stages, the Orchestrator that runs
// them and the Dispatcher that runs every target of a catalog.
package core

import (
	"context"
	"time"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
)

// Stage is a single step of a target pipeline.
type Stage interface {
	// ID returns a unique identifier for the stage (e.g., "filtering").
	ID() string

	// Name returns a human-readable name for the stage.
	Name() string

	// Execute performs the stage's work on state.
	Execute(ctx context.Context, state *State) (*StageResult, error)

	// Cleanup is called after the pipeline finishes, whatever the outcome.
	Cleanup(ctx context.Context) error
}

// State holds the data shared between the stages of one target run.
type State struct {
	// RunID identifies the dispatcher run.
	RunID models.ULID

	// Target is the compiled target being produced.
	Target *catalog.Target

	// Input is the normalized sequence of the target's source. It is shared
	// with concurrently running targets and must not be modified.
	Input []*models.Channel

	// Channels is the target's private working set.
	Channels []*models.Channel

	// TempDir is the sandbox-relative scratch directory of this run.
	TempDir string

	// OutputDir is the sandbox-relative publish directory.
	OutputDir string

	// ChannelCount is the number of entries written by the generator.
	ChannelCount int

	// StartTime records when the run began.
	StartTime time.Time

	// Errors collects non-fatal errors.
	Errors []error

	// Artifacts holds the artifacts produced by each stage.
	Artifacts map[string][]Artifact

	// Metadata stores stage-specific values.
	Metadata map[string]any

	produced []Artifact
}

// NewState creates the state of one target run.
func NewState(runID models.ULID, target *catalog.Target, input []*models.Channel) *State {
	return &State{
		RunID:     runID,
		Target:    target,
		Input:     input,
		StartTime: time.Now(),
		Artifacts: make(map[string][]Artifact),
		Metadata:  make(map[string]any),
	}
}

// AddError records a non-fatal error.
func (s *State) AddError(err error) {
	if err != nil {
		s.Errors = append(s.Errors, err)
	}
}

// SetMetadata stores a value in the metadata map.
func (s *State) SetMetadata(key string, value any) {
	s.Metadata[key] = value
}

// GetMetadata retrieves a value from the metadata map.
func (s *State) GetMetadata(key string) (any, bool) {
	v, ok := s.Metadata[key]
	return v, ok
}

// AddArtifact records an artifact produced by a stage.
func (s *State) AddArtifact(stageID string, artifact Artifact) {
	s.Artifacts[stageID] = append(s.Artifacts[stageID], artifact)
	s.produced = append(s.produced, artifact)
}

// ArtifactsAt returns every artifact in the given processing stage, in the
// order they were produced.
func (s *State) ArtifactsAt(stage ProcessingStage) []Artifact {
	var out []Artifact
	for _, a := range s.produced {
		if a.Stage == stage {
			out = append(out, a)
		}
	}
	return out
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Artifacts        []Artifact
	RecordsProcessed int
	RecordsModified  int
	Duration         time.Duration
	Message          string
}

// Result is the outcome of one target run.
type Result struct {
	Target       string
	Success      bool
	ChannelCount int
	Duration     time.Duration
	StageResults map[string]*StageResult
	Errors       []error

	// Published lists the sandbox-relative paths made visible by the run.
	Published []string
}
