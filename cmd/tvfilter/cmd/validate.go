package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/tvfilter/internal/catalog"
)

var validateCmd = &cobra.Command{
	Use:   "validate [catalog]",
	Short: "Validate a catalog",
	Long: `Compile a catalog without running it: templates are expanded, filters
parsed and rules checked. Errors name the offending entry, for example
sources[0].targets[1].rules[2].rename.pattern.

The catalog defaults to pipeline.catalog from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Pipeline.Catalog
	if len(args) == 1 {
		path = args[0]
	}

	cat, err := catalog.Load(path, catalog.Options{
		MaxExpansionDepth: cfg.Pipeline.MaxExpansionDepth,
		BatchSize:         cfg.Pipeline.BatchSize,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tOUTPUT\tFILENAME\tENABLED\tFILTER")
	for _, t := range cat.Targets() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", t.Name, t.Output, t.Filename, t.Enabled, t.FilterText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s: %d sources, %d targets, %d templates\n",
		path, len(cat.Sources), len(cat.Targets()), cat.Templates.Len())
	return nil
}
