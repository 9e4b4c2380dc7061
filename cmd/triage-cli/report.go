package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var plotsDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the evaluation report of the saved model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.pipeline.Artifacts.LoadReport(ctx)
			if err != nil {
				return fmt.Errorf("failed to load report: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "trained at: %s (%d train / %d test records)\n",
				report.TrainedAt.In(a.pipeline.Location).Format("2006-01-02 15:04:05 MST"), report.TrainSize, report.TestSize)
			fmt.Fprint(out, report.Summary())

			if plotsDir == "" {
				return nil
			}
			if len(report.Plots) == 0 {
				return fmt.Errorf("the saved report has no plots, enable pipeline.render_plots and retrain")
			}
			if err := os.MkdirAll(plotsDir, 0o755); err != nil {
				return fmt.Errorf("failed to create plots directory: %w", err)
			}
			names := make([]string, 0, len(report.Plots))
			for name := range report.Plots {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				path := filepath.Join(plotsDir, name)
				if err := os.WriteFile(path, report.Plots[name], 0o644); err != nil {
					return fmt.Errorf("failed to write plot: %w", err)
				}
				fmt.Fprintf(out, "wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&plotsDir, "plots-dir", "", "Write the report plots as PNG files into this directory")
	return cmd
}
