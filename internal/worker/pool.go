package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/job-triage/internal/storage"
	"github.com/cuongbtq/job-triage/internal/training"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop processes tasks until the task channel closes or ctx ends.
// Tasks left in the buffer stay unacked and the broker redelivers them.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	logger := w.logger.With(slog.String("worker_name", fmt.Sprintf("%s-%d", w.workerID, workerNum)))

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Worker goroutine stopping - context canceled")
			return

		case t, ok := <-w.tasks:
			if !ok {
				logger.Debug("Worker goroutine stopping - task channel closed")
				return
			}
			w.handle(ctx, logger, t)
		}
	}
}

// handle processes one task and settles its delivery
func (w *Worker) handle(ctx context.Context, logger *slog.Logger, t *task) {
	logger = logger.With(slog.String("run_id", t.msg.RunID))

	err := w.processRun(ctx, t.msg.RunID)
	if err == nil {
		if ackErr := t.delivery.Ack(false); ackErr != nil {
			logger.Error("Failed to ACK message", slog.String("error", ackErr.Error()))
		}
		return
	}

	requeue := shouldRequeue(err)
	logger.Error("Training run failed",
		slog.String("error", err.Error()),
		slog.Bool("requeue", requeue),
	)
	if nackErr := t.delivery.Nack(false, requeue); nackErr != nil {
		logger.Error("Failed to NACK message", slog.String("error", nackErr.Error()))
	}
}

// shouldRequeue decides the NACK policy from the error type
func shouldRequeue(err error) bool {
	switch {
	case errors.Is(err, storage.ErrRunAlreadyClaimed),
		errors.Is(err, ErrMaxRetriesExceeded),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, training.ErrInvalidDataset):
		return false
	}

	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}
