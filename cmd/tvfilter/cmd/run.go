package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/tvfilter/internal/pipeline"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the catalog once",
	Long: `Load every enabled input of the catalog, run all enabled targets and
publish their outputs. Prints a per-target summary.

The command exits non-zero when any target failed. Targets that failed keep
their previously published output.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run report as JSON")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close application", slog.String("error", err.Error()))
		}
	}()

	report, runErr := app.RunOnce(ctx)
	if report != nil {
		if err := printReport(cmd.OutOrStdout(), report, runJSON); err != nil {
			return err
		}
	}
	if runErr != nil && ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return runErr
}

func printReport(w io.Writer, report *pipeline.RunReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tOUTPUT\tSTATE\tCHANNELS\tDURATION\tERROR")
	for _, t := range report.Targets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			t.Name, t.Output, t.State, t.Channels, t.Duration.Round(time.Millisecond), t.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d records read, %d skipped; run took %s\n",
		report.Records.Total, report.Records.Skipped, report.Duration().Round(time.Millisecond))
	return nil
}
