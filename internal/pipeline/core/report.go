package core

import (
	"context"
	"errors"
	"time"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
	"github.com/jmylchreest/tvfilter/internal/normalize"
)

// TargetState is the outcome of one target in a run.
type TargetState string

// Target states.
const (
	TargetSucceeded TargetState = "succeeded"
	TargetFailed    TargetState = "failed"
	TargetCancelled TargetState = "cancelled"
	TargetSkipped   TargetState = "skipped"
)

// TargetStatus reports one target of a run.
type TargetStatus struct {
	Name      string             `json:"name"`
	Output    catalog.OutputKind `json:"output"`
	State     TargetState        `json:"state"`
	Channels  int                `json:"channels"`
	Duration  time.Duration      `json:"duration"`
	Published []string           `json:"published,omitempty"`

	// Err is the failure cause; Error is its text for serialization.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (s *TargetStatus) setError(err error) {
	s.Err = err
	if err == nil {
		s.Error = ""
		return
	}
	s.Error = err.Error()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.State = TargetCancelled
	} else {
		s.State = TargetFailed
	}
}

// InputStatus reports the acquisition of one input.
type InputStatus struct {
	Name    string                `json:"name"`
	Records normalize.RecordStats `json:"records"`
	Error   string                `json:"error,omitempty"`
}

// RunReport summarizes one dispatcher run.
type RunReport struct {
	RunID      models.ULID           `json:"run_id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Inputs     []InputStatus         `json:"inputs,omitempty"`
	Records    normalize.RecordStats `json:"records"`

	// Targets is in catalog declaration order.
	Targets []TargetStatus `json:"targets"`
}

// Failed reports whether any target failed or was cancelled.
func (r *RunReport) Failed() bool {
	for _, t := range r.Targets {
		if t.State == TargetFailed || t.State == TargetCancelled {
			return true
		}
	}
	return false
}

// Count returns the number of targets in state.
func (r *RunReport) Count(state TargetState) int {
	n := 0
	for _, t := range r.Targets {
		if t.State == state {
			n++
		}
	}
	return n
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
