package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-triage/internal/evaluation"
	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/storage"
	"github.com/cuongbtq/job-triage/internal/training"
)

// RunResult is the summary stored with a completed run
type RunResult struct {
	Classifier string             `json:"classifier"`
	Scorer     string             `json:"scorer"`
	Params     map[string]float64 `json:"params,omitempty"`
	Classes    []string           `json:"classes"`
	TrainScore float64            `json:"train_score"`
	TestScore  float64            `json:"test_score"`
	CVScore    *float64           `json:"cv_score,omitempty"`
	TrainSize  int                `json:"train_size"`
	TestSize   int                `json:"test_size"`
	Accuracy   float64            `json:"accuracy"`
	DurationMS int64              `json:"duration_ms"`
}

// NewRunResult summarises a report for storage with its run
func NewRunResult(r *evaluation.Report) RunResult {
	return RunResult{
		Classifier: r.Classifier,
		Scorer:     string(r.Scorer),
		Params:     r.Params,
		Classes:    r.Classes,
		TrainScore: r.TrainScore,
		TestScore:  r.TestScore,
		CVScore:    r.CVScore,
		TrainSize:  r.TrainSize,
		TestSize:   r.TestSize,
		Accuracy:   r.Classification.Accuracy,
		DurationMS: r.Duration.Milliseconds(),
	}
}

// processRun claims the run, trains with a timeout and a heartbeat, saves
// the artifact and records the outcome. The returned error drives the NACK
// policy.
func (w *Worker) processRun(ctx context.Context, runID string) error {
	run, err := w.runs.ClaimRun(ctx, runID, w.workerID)
	if err != nil {
		if errors.Is(err, storage.ErrRunAlreadyClaimed) {
			w.logger.Warn("Run already claimed, skipping", slog.String("run_id", runID))
			return fmt.Errorf("claim run: %w", err)
		}
		return NewRetryableError(fmt.Errorf("failed to claim run: %w", err))
	}

	timeout := w.runTimeout
	if run.TimeoutSeconds > 0 {
		timeout = time.Duration(run.TimeoutSeconds) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendRunHeartbeat(runCtx, run.RunID, heartbeatDone)

	result, err := w.executeRun(runCtx, run)
	close(heartbeatDone)

	// status writes must survive a shutdown that cancelled ctx
	persistCtx := context.WithoutCancel(ctx)

	if err != nil {
		w.logger.Error("Run execution failed",
			slog.String("run_id", run.RunID),
			slog.Int("retry_count", run.RetryCount),
			slog.String("error", err.Error()),
		)

		if errors.Is(err, training.ErrInvalidDataset) {
			w.markFailed(persistCtx, run.RunID, err)
			return fmt.Errorf("training run %s: %w", run.RunID, err)
		}

		if run.RetryCount < run.MaxRetries {
			if relErr := w.runs.ReleaseRun(persistCtx, run.RunID, err.Error()); relErr != nil {
				w.logger.Error("Failed to release run for retry",
					slog.String("run_id", run.RunID),
					slog.String("error", relErr.Error()),
				)
			}
			return NewRetryableError(fmt.Errorf("training run %s: %w", run.RunID, err))
		}

		w.markFailed(persistCtx, run.RunID, err)
		return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, err)
	}

	if err := w.runs.UpdateRunStatus(persistCtx, run.RunID, model.RunStatusCompleted, result, ""); err != nil {
		// the artifact is saved; acking avoids retraining for a bookkeeping failure
		w.logger.Error("Failed to update run status to COMPLETED",
			slog.String("run_id", run.RunID),
			slog.String("error", err.Error()),
		)
	}

	w.logger.Info("Training run completed",
		slog.String("run_id", run.RunID),
		slog.String("classifier", result.Classifier),
		slog.Float64("test_score", result.TestScore),
	)
	return nil
}

func (w *Worker) markFailed(ctx context.Context, runID string, cause error) {
	if err := w.runs.UpdateRunStatus(ctx, runID, model.RunStatusFailed, nil, cause.Error()); err != nil {
		w.logger.Error("Failed to update run status to FAILED",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
	}
}

// executeRun trains and persists a new artifact
func (w *Worker) executeRun(ctx context.Context, run *model.TrainingRun) (*RunResult, error) {
	w.logger.Info("Executing training run",
		slog.String("run_id", run.RunID),
		slog.String("trigger", run.Trigger),
	)

	artifact, err := w.trainer.Train(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.artifacts.Save(ctx, artifact); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}

	result := NewRunResult(&artifact.Report)
	return &result, nil
}

// sendRunHeartbeat periodically updates the run's heartbeat timestamp
func (w *Worker) sendRunHeartbeat(ctx context.Context, runID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := w.runs.UpdateRunHeartbeat(ctx, runID); err != nil {
				w.logger.Warn("Failed to update run heartbeat",
					slog.String("run_id", runID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
