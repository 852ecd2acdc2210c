package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/tvfilter/internal/pipeline"
)

// RunController exposes the pipeline runner to the API.
type RunController interface {
	Running() bool
	LastReport() *pipeline.RunReport
	// Trigger starts a run in the background. It returns
	// pipeline.ErrRunInProgress when a run is already active.
	Trigger(ctx context.Context) error
}

// RunsHandler serves run reports and manual run triggers.
type RunsHandler struct {
	runs RunController
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(runs RunController) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// LatestRunInput is the input for the latest run endpoint.
type LatestRunInput struct{}

// LatestRunOutput is the output for the latest run endpoint.
type LatestRunOutput struct {
	Body *pipeline.RunReport
}

// TriggerRunInput is the input for the trigger endpoint.
type TriggerRunInput struct{}

// TriggerRunOutput is the output for the trigger endpoint.
type TriggerRunOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Register registers the run routes with the API.
func (h *RunsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getLatestRun",
		Method:      "GET",
		Path:        "/api/v1/runs/latest",
		Summary:     "Latest run report",
		Description: "Returns the per-target outcome of the last finished run",
		Tags:        []string{"Runs"},
	}, h.GetLatest)

	huma.Register(api, huma.Operation{
		OperationID:   "triggerRun",
		Method:        "POST",
		Path:          "/api/v1/runs",
		Summary:       "Start a run",
		Description:   "Starts a run of the catalog unless one is already active",
		Tags:          []string{"Runs"},
		DefaultStatus: 202,
	}, h.Trigger)
}

// GetLatest returns the report of the last finished run.
func (h *RunsHandler) GetLatest(_ context.Context, _ *LatestRunInput) (*LatestRunOutput, error) {
	report := h.runs.LastReport()
	if report == nil {
		return nil, huma.Error404NotFound("no run has finished yet")
	}
	return &LatestRunOutput{Body: report}, nil
}

// Trigger starts a run.
func (h *RunsHandler) Trigger(ctx context.Context, _ *TriggerRunInput) (*TriggerRunOutput, error) {
	if err := h.runs.Trigger(ctx); err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			return nil, huma.Error409Conflict("a run is already in progress")
		}
		return nil, huma.Error500InternalServerError("starting run", err)
	}
	out := &TriggerRunOutput{}
	out.Body.Status = "started"
	return out, nil
}
