// Package worker consumes training-run messages from RabbitMQ and executes
// them on a bounded goroutine pool.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/training"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RunStore is the training-run persistence the worker needs
type RunStore interface {
	CreateRun(ctx context.Context, run *model.TrainingRun) error
	ClaimRun(ctx context.Context, runID, workerID string) (*model.TrainingRun, error)
	UpdateRunStatus(ctx context.Context, runID, status string, result any, errorMsg string) error
	ReleaseRun(ctx context.Context, runID, errorMsg string) error
	UpdateRunHeartbeat(ctx context.Context, runID string) error
}

// Trainer fits a new artifact
type Trainer interface {
	Train(ctx context.Context) (*training.Artifact, error)
}

// ArtifactStore persists a trained artifact
type ArtifactStore interface {
	Save(ctx context.Context, a *training.Artifact) error
}

// Consumer delivers queue messages with manual acknowledgement
type Consumer interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Runs              RunStore
	Trainer           Trainer
	Artifacts         ArtifactStore
	Consumer          Consumer
	WorkerID          string
	Concurrency       int
	MaxRuns           int
	RunTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// task is a parsed message together with the delivery to ack or nack
type task struct {
	msg      model.RunMessage
	delivery amqp.Delivery
}

// Worker represents the training worker
type Worker struct {
	logger            *slog.Logger
	runs              RunStore
	trainer           Trainer
	artifacts         ArtifactStore
	consumer          Consumer
	workerID          string
	concurrency       int
	runTimeout        time.Duration
	heartbeatInterval time.Duration
	tasks             chan *task
	wg                sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	workerID := cfg.WorkerID
	if workerID == "" {
		host, _ := os.Hostname()
		workerID = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}

	return &Worker{
		logger:            cfg.Logger.With(slog.String("worker_id", workerID)),
		runs:              cfg.Runs,
		trainer:           cfg.Trainer,
		artifacts:         cfg.Artifacts,
		consumer:          cfg.Consumer,
		workerID:          workerID,
		concurrency:       max(cfg.Concurrency, 1),
		runTimeout:        valueOr(cfg.RunTimeout, 30*time.Minute),
		heartbeatInterval: valueOr(cfg.HeartbeatInterval, 30*time.Second),
		tasks:             make(chan *task, max(cfg.MaxRuns, 1)),
	}
}

func valueOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// ID returns the identifier written into claimed runs
func (w *Worker) ID() string { return w.workerID }

// Start consumes and processes runs until ctx is cancelled or the broker
// closes the delivery channel. It returns after every pool goroutine exits.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("run_timeout", w.runTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	err = w.startMessageDispatcher(ctx, deliveries)

	close(w.tasks)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
	return err
}
