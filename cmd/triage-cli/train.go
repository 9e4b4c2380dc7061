package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/worker"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newTrainCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train the classifier and save the artifacts",
		Long:  "Train the classifier on every labelled job, save the artifacts and print the evaluation report. The run is recorded like a worker run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, opts)
		},
	}
}

func runTrain(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	run := &model.TrainingRun{
		RunID:          uuid.NewString(),
		Trigger:        model.TriggerCLI,
		TimeoutSeconds: int(a.cfg.Pipeline.TrainTimeout.Seconds()),
	}
	if err := a.store.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	if _, err := a.store.ClaimRun(ctx, run.RunID, cliWorkerID()); err != nil {
		return fmt.Errorf("failed to claim run: %w", err)
	}

	trainCtx := ctx
	if a.cfg.Pipeline.TrainTimeout > 0 {
		var cancel context.CancelFunc
		trainCtx, cancel = context.WithTimeout(ctx, a.cfg.Pipeline.TrainTimeout)
		defer cancel()
	}

	artifact, err := a.pipeline.Trainer.Train(trainCtx)
	if err == nil {
		err = a.pipeline.Artifacts.Save(trainCtx, artifact)
	}

	persistCtx := context.WithoutCancel(ctx)
	if err != nil {
		if uerr := a.store.UpdateRunStatus(persistCtx, run.RunID, model.RunStatusFailed, nil, err.Error()); uerr != nil {
			a.logger.Error("Failed to record failed run",
				slog.String("run_id", run.RunID),
				slog.String("error", uerr.Error()),
			)
		}
		return fmt.Errorf("training failed: %w", err)
	}

	result := worker.NewRunResult(&artifact.Report)
	if err := a.store.UpdateRunStatus(persistCtx, run.RunID, model.RunStatusCompleted, result, ""); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, artifact.Report.Summary())
	fmt.Fprintf(out, "\nrun %s: %d train / %d test records, artifacts in %s\n",
		run.RunID, artifact.Report.TrainSize, artifact.Report.TestSize, a.pipeline.Artifacts.Dir())
	return nil
}

func cliWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return "cli-" + host
}
