package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/config"
	"github.com/jmylchreest/tvfilter/internal/database"
	"github.com/jmylchreest/tvfilter/internal/observability"
	"github.com/jmylchreest/tvfilter/internal/pipeline"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/repository"
	"github.com/jmylchreest/tvfilter/internal/source"
	"github.com/jmylchreest/tvfilter/internal/startup"
	"github.com/jmylchreest/tvfilter/internal/storage"
)

// application wires the pipeline for the run and serve commands.
type application struct {
	cfg     *config.Config
	logger  *slog.Logger
	sandbox *storage.Sandbox
	db      *database.DB
	runner  *pipeline.Runner

	catalog atomic.Pointer[catalog.Catalog]

	// baseCtx bounds runs started through Trigger.
	baseCtx context.Context
	wg      sync.WaitGroup
}

func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	sandbox, err := storage.NewSandbox(cfg.Storage.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	if n, err := startup.CleanupOrphanedTempDirs(logger, sandbox, cfg.Storage.TempDir, startup.DefaultCleanupAge); err != nil {
		logger.Warn("failed to clean orphaned temp directories", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("cleaned orphaned temp directories", slog.Int("removed_count", n))
	}

	app := &application{
		cfg:     cfg,
		logger:  logger,
		sandbox: sandbox,
		baseCtx: ctx,
	}

	deps := &pipeline.Dependencies{
		Sandbox:   sandbox,
		Logger:    logger,
		OutputDir: cfg.Storage.OutputDir,
		TempDir:   cfg.Storage.TempDir,
		Now:       time.Now,
	}

	if cfg.Pipeline.WatchPersistence {
		db, err := database.New(cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		app.db = db
		deps.WatchRepo = repository.NewWatchSnapshotRepository(db.DB)
	}

	factory := pipeline.NewDefaultFactory(deps, cfg.Pipeline.BatchSize)
	dispatcher := core.NewDispatcher(factory, cfg.Pipeline.Workers, logger)
	loader := source.NewLoader(cfg.Source, logger)
	app.runner = pipeline.NewRunner(loader, dispatcher, logger)

	return app, nil
}

// loadCatalog compiles the configured catalog and makes it current.
func (a *application) loadCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.Load(a.cfg.Pipeline.Catalog, catalog.Options{
		MaxExpansionDepth: a.cfg.Pipeline.MaxExpansionDepth,
		BatchSize:         a.cfg.Pipeline.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	a.catalog.Store(cat)
	return cat, nil
}

// RunOnce reloads the catalog and runs it. A catalog that no longer
// compiles fails the run; the previous catalog stays current.
func (a *application) RunOnce(ctx context.Context) (report *pipeline.RunReport, err error) {
	defer observability.TimedOperationWithError(ctx, a.logger, "pipeline run", &err)()

	cat, err := a.loadCatalog()
	if err != nil {
		return nil, err
	}
	report, err = a.runner.Run(ctx, cat)
	if err != nil {
		return nil, err
	}
	a.logReport(ctx, report)
	if report.Failed() {
		return report, fmt.Errorf("%d of %d targets failed", report.Count(core.TargetFailed)+report.Count(core.TargetCancelled), len(report.Targets))
	}
	return report, nil
}

func (a *application) logReport(ctx context.Context, report *pipeline.RunReport) {
	for _, t := range report.Targets {
		attrs := []any{
			slog.String("target", t.Name),
			slog.String("output", string(t.Output)),
			slog.String("state", string(t.State)),
			slog.Int("channels", t.Channels),
			slog.Duration("duration", t.Duration),
		}
		switch t.State {
		case core.TargetFailed, core.TargetCancelled:
			a.logger.WarnContext(ctx, "target finished", append(attrs, slog.String("error", t.Error))...)
		default:
			a.logger.InfoContext(ctx, "target finished", attrs...)
		}
	}
}

// Trigger starts a run in the background, bounded by the application
// context rather than the caller's.
func (a *application) Trigger(_ context.Context) error {
	if a.runner.Running() {
		return pipeline.ErrRunInProgress
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if _, err := a.RunOnce(a.baseCtx); err != nil && !errors.Is(err, pipeline.ErrRunInProgress) {
			a.logger.Error("triggered run failed", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Running reports whether a run is active.
func (a *application) Running() bool {
	return a.runner.Running()
}

// LastReport returns the report of the last finished run.
func (a *application) LastReport() *pipeline.RunReport {
	return a.runner.LastReport()
}

// Target resolves a target of the current catalog.
func (a *application) Target(name string) (*catalog.Target, bool) {
	cat := a.catalog.Load()
	if cat == nil {
		return nil, false
	}
	return cat.Target(name)
}

// Close waits for background runs and releases the database.
func (a *application) Close() error {
	a.wg.Wait()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
