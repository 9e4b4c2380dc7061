package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-triage/internal/evaluation"
	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/prediction"
	"github.com/cuongbtq/job-triage/internal/storage"
)

// JobStore is the job persistence used by the handlers
type JobStore interface {
	UpsertJobs(ctx context.Context, jobs []model.JobRecord) (int, error)
	GetJob(ctx context.Context, id string) (*model.JobRecord, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.JobRecord, error)
	CountLabels(ctx context.Context) (*storage.LabelCounts, error)
	UpdateLabel(ctx context.Context, id string, label model.Label) (*model.JobRecord, error)
}

// RunStore is the training-run persistence used by the handlers
type RunStore interface {
	CreateRun(ctx context.Context, run *model.TrainingRun) error
	GetRun(ctx context.Context, runID string) (*model.TrainingRun, error)
	ListRuns(ctx context.Context, filter storage.RunFilter) ([]*model.TrainingRun, error)
}

// Predictor runs a prediction cycle
type Predictor interface {
	Predict(ctx context.Context, opts prediction.Options) (*prediction.Result, error)
}

// ReportLoader reads the persisted evaluation report
type ReportLoader interface {
	LoadReport(ctx context.Context) (*evaluation.Report, error)
}

// Publisher announces training runs to the worker queue
type Publisher interface {
	PublishJSON(ctx context.Context, messageID string, v any) error
}

// HealthChecker pings the database
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BrokerStatus reports whether the message broker connection is up
type BrokerStatus interface {
	IsConnected() bool
}

// RunDefaults are copied into every run created through the API
type RunDefaults struct {
	MaxRetries int
	Timeout    time.Duration
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Jobs           JobStore
	Runs           RunStore
	Predictor      Predictor
	Reports        ReportLoader
	Publisher      Publisher
	DB             HealthChecker
	Broker         BrokerStatus
	PredictOptions prediction.Options
	RunDefaults    RunDefaults
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobStore
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

// PredictionHandler serves predictions and the model report
type PredictionHandler struct {
	logger    *slog.Logger
	predictor Predictor
	reports   ReportLoader
	defaults  prediction.Options
}

// NewPredictionHandler creates a new PredictionHandler instance
func NewPredictionHandler(deps *Dependencies) *PredictionHandler {
	return &PredictionHandler{
		logger:    deps.Logger,
		predictor: deps.Predictor,
		reports:   deps.Reports,
		defaults:  deps.PredictOptions,
	}
}

// RunHandler handles training-run requests
type RunHandler struct {
	logger    *slog.Logger
	runs      RunStore
	publisher Publisher
	defaults  RunDefaults
}

// NewRunHandler creates a new RunHandler instance
func NewRunHandler(deps *Dependencies) *RunHandler {
	return &RunHandler{
		logger:    deps.Logger,
		runs:      deps.Runs,
		publisher: deps.Publisher,
		defaults:  deps.RunDefaults,
	}
}
