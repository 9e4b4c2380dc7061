package main

import (
	"fmt"

	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/spf13/cobra"
)

func newLabelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "label <job_id> <label>",
		Short: "Label an Uncategorized job",
		Long:  "Assign Good, Maybe, Bad or Irrelevant to a job that is still Uncategorized.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			label, err := model.ParseLabel(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.store.UpdateLabel(ctx, args[0], label)
			if err != nil {
				return fmt.Errorf("failed to label job %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s: %s\n", job.ID, job.Label, job.Title)
			return nil
		},
	}
}
