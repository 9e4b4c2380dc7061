package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cuongbtq/job-triage/internal/ingest"
	"github.com/spf13/cobra"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Upsert jobs from a CSV export",
		Long:  "Upsert jobs from a CSV export whose header uses the stored column names. Use - to read standard input. Labels of jobs already stored are kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer f.Close()
				r = f
			}

			jobs, err := ingest.ReadCSV(r)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.store.UpsertJobs(ctx, jobs)
			if err != nil {
				return fmt.Errorf("failed to store jobs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d jobs\n", n)
			return nil
		},
	}
}
