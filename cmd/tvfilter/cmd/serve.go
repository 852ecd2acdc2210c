package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	internalhttp "github.com/jmylchreest/tvfilter/internal/http"
	"github.com/jmylchreest/tvfilter/internal/http/handlers"
	"github.com/jmylchreest/tvfilter/internal/observability"
	"github.com/jmylchreest/tvfilter/internal/scheduler"
	"github.com/jmylchreest/tvfilter/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tvfilter server",
	Long: `Start the tvfilter HTTP server and, when scheduler.enabled is set, the
cron trigger for runs.

The server provides:
- Published outputs at /output/{target}
- The Xtream player API at /xtream/{target}/player_api.php
- Run reports and manual triggers at /api/v1/runs
- Health checks at /api/v1/health, /livez and /readyz
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("data-dir", "./data", "Base directory for outputs and temp files")
	serveCmd.Flags().Bool("schedule", false, "Enable the cron trigger (scheduler.enabled)")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("storage.base_dir", serveCmd.Flags().Lookup("data-dir"))
	mustBindPFlag("scheduler.enabled", serveCmd.Flags().Lookup("schedule"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close application", slog.String("error", err.Error()))
		}
	}()

	// A broken catalog is reported but does not prevent serving the
	// outputs of the last good run.
	if _, err := app.loadCatalog(); err != nil {
		logger.Error("failed to load catalog", slog.String("error", err.Error()))
	}

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version).WithRuns(app)
	if app.db != nil {
		healthHandler.WithDB(app.db)
	}
	healthHandler.Register(server.API())
	handlers.NewRunsHandler(app).Register(server.API())

	outputLogger := observability.WithComponent(logger, "output")
	handlers.NewOutputHandler(app.sandbox, cfg.Storage.OutputDir, app).
		WithLogger(outputLogger).
		RegisterFileServer(server.Router())
	handlers.NewXtreamHandler(app.sandbox, cfg.Storage.OutputDir, app).
		WithLogger(outputLogger).
		RegisterRoutes(server.Router())

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.NewScheduler(cfg.Scheduler.Cron, func(ctx context.Context) error {
			_, err := app.RunOnce(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("creating scheduler: %w", err)
		}
		sched.WithLogger(logger).
			WithRunOnStart(cfg.Scheduler.RunOnStart).
			WithRunTimeout(cfg.Scheduler.RunTimeout)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()
	}

	return server.ListenAndServe(ctx)
}
