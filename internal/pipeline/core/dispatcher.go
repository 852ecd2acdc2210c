package core

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/models"
)

// StageLoad attributes a target failure to the acquisition of its source.
const StageLoad = "load"

// Dispatcher runs every enabled target of a catalog on a bounded worker pool.
type Dispatcher struct {
	factory OrchestratorFactory
	workers int
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. A non-positive workers value uses
// the number of CPUs.
func NewDispatcher(factory OrchestratorFactory, workers int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		factory: factory,
		workers: workers,
		logger:  logger.With(slog.String("component", "dispatcher")),
	}
}

// Run executes the targets of sources. channels holds the normalized
// sequence of each source keyed by Source.Index; it is shared by every
// target of that source and is never modified.
//
// A failing target is recorded in its TargetStatus and does not stop the
// others. Targets not yet started when ctx is cancelled are reported as
// cancelled.
func (d *Dispatcher) Run(ctx context.Context, sources []*catalog.Source, channels map[int][]*models.Channel) *RunReport {
	return d.RunSources(ctx, sources, channels, nil)
}

// RunSources is Run with the acquisition failures of sources, keyed by
// Source.Index. The enabled targets of a failed source are reported as
// failed in stage StageLoad and are not run, leaving their previously
// published output in place.
func (d *Dispatcher) RunSources(ctx context.Context, sources []*catalog.Source, channels map[int][]*models.Channel, loadErrs map[int]error) *RunReport {
	report := &RunReport{
		RunID:     models.NewULID(),
		StartedAt: time.Now(),
	}

	type job struct {
		index  int
		target *catalog.Target
		input  []*models.Channel
	}
	var jobs []job

	for _, src := range sources {
		for _, t := range src.Targets {
			report.Targets = append(report.Targets, TargetStatus{
				Name:   t.Name,
				Output: t.Output,
				State:  TargetSkipped,
			})
			if !t.Enabled {
				continue
			}
			if err := loadErrs[src.Index]; err != nil {
				report.Targets[len(report.Targets)-1].setError(NewTargetError(t.Name, StageLoad, err))
				continue
			}
			jobs = append(jobs, job{
				index:  len(report.Targets) - 1,
				target: t,
				input:  channels[src.Index],
			})
		}
	}

	d.logger.InfoContext(ctx, "starting run",
		slog.String("run_id", report.RunID.String()),
		slog.Int("targets", len(jobs)),
		slog.Int("workers", d.workers),
	)

	var g errgroup.Group
	g.SetLimit(d.workers)
	for _, j := range jobs {
		status := &report.Targets[j.index]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				status.setError(NewTargetError(j.target.Name, "", err))
				return nil
			}
			d.runTarget(ctx, report.RunID, j.target, j.input, status)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now()
	d.logger.InfoContext(ctx, "run finished",
		slog.String("run_id", report.RunID.String()),
		slog.Int("succeeded", report.Count(TargetSucceeded)),
		slog.Int("failed", report.Count(TargetFailed)),
		slog.Int("cancelled", report.Count(TargetCancelled)),
		slog.Duration("duration", report.Duration()),
	)
	return report
}

func (d *Dispatcher) runTarget(ctx context.Context, runID models.ULID, target *catalog.Target, input []*models.Channel, status *TargetStatus) {
	start := time.Now()
	defer func() { status.Duration = time.Since(start) }()

	orch, err := d.factory.Create(runID, target, input)
	if err != nil {
		status.setError(NewTargetError(target.Name, "", fmt.Errorf("creating pipeline: %w", err)))
		return
	}

	result, err := orch.Execute(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "target failed",
			slog.String("target", target.Name),
			slog.String("error", err.Error()),
		)
		status.setError(err)
		return
	}

	status.State = TargetSucceeded
	status.Channels = result.ChannelCount
	status.Published = result.Published
}
