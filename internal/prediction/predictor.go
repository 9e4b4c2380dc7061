// Package prediction scores unlabelled job records with the trained model
// and builds the bounded shortlist offered to the operator.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-triage/internal/evaluation"
	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/training"
	"gonum.org/v1/gonum/floats"
)

// ErrInvalidOptions is returned for negative caps or windows
var ErrInvalidOptions = errors.New("invalid prediction options")

// Options are the per-request knobs of one prediction cycle
type Options struct {
	Retrain    bool
	NJobs      int
	WindowDays int
	ToPredict  map[model.Label]bool
}

// Result is the shortlist plus the report of the model that produced it
type Result struct {
	Jobs   []RankedJob        `json:"jobs"`
	Report *evaluation.Report `json:"report"`
}

// Trainer fits a new artifact from the labelled records
type Trainer interface {
	Train(ctx context.Context) (*training.Artifact, error)
}

// ArtifactStore persists and loads artifacts
type ArtifactStore interface {
	Load(ctx context.Context) (*training.Artifact, error)
	Save(ctx context.Context, a *training.Artifact) error
}

// Predictor runs prediction cycles. Training, when needed, happens inline
// and the cycle waits for it.
type Predictor struct {
	source       training.RecordSource
	trainer      Trainer
	store        ArtifactStore
	loc          *time.Location
	trainTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewPredictor creates a predictor evaluating "now" in loc. A zero
// trainTimeout leaves inline training bounded only by ctx.
func NewPredictor(source training.RecordSource, trainer Trainer, store ArtifactStore, loc *time.Location, trainTimeout time.Duration, logger *slog.Logger) *Predictor {
	if loc == nil {
		loc = time.UTC
	}
	return &Predictor{
		source:       source,
		trainer:      trainer,
		store:        store,
		loc:          loc,
		trainTimeout: trainTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// Predict runs one cycle: window filter, model acquisition, scoring and
// bucketed selection.
func (p *Predictor) Predict(ctx context.Context, opts Options) (*Result, error) {
	if opts.NJobs < 0 || opts.WindowDays < 0 {
		return nil, fmt.Errorf("%w: n_jobs=%d window_days=%d", ErrInvalidOptions, opts.NJobs, opts.WindowDays)
	}
	now := p.now().In(p.loc)
	window := time.Duration(opts.WindowDays) * 24 * time.Hour

	records, err := p.source.LoadByLabels(ctx, model.LabelUncategorized)
	if err != nil {
		return nil, fmt.Errorf("load unlabelled records: %w", err)
	}
	recent := FilterWindow(records, now, window)

	artifact, err := p.artifact(ctx, opts.Retrain)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Prediction started",
		slog.Int("n_unlabelled", len(records)),
		slog.Int("n_in_window", len(recent)),
		slog.Int("window_days", opts.WindowDays),
		slog.Int("n_jobs", opts.NJobs))

	result := &Result{Jobs: []RankedJob{}, Report: &artifact.Report}
	if len(recent) == 0 {
		return result, nil
	}

	labels, scores, err := artifact.Predict(recent)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	cands := make([]RankedJob, len(recent))
	for i, rec := range recent {
		row := scores.RawRowView(i)
		perClass := make(map[model.Label]float64, len(row))
		for k, v := range row {
			perClass[artifact.Encoder.Decode(k)] = v
		}
		cands[i] = RankedJob{
			JobRecord: rec,
			Predicted: labels[i],
			Score:     floats.Max(row),
			Scores:    perClass,
		}
	}

	result.Jobs = Rank(cands, now, window, opts.NJobs, opts.ToPredict)
	return result, nil
}

// FilterWindow keeps records created at or after now-window
func FilterWindow(records []model.JobRecord, now time.Time, window time.Duration) []model.JobRecord {
	start := now.Add(-window)
	out := make([]model.JobRecord, 0, len(records))
	for _, r := range records {
		if !r.DateCreated.Before(start) {
			out = append(out, r)
		}
	}
	return out
}

// artifact loads the persisted model, training a new one when asked to or
// when loading fails for any reason.
func (p *Predictor) artifact(ctx context.Context, retrain bool) (*training.Artifact, error) {
	if !retrain {
		a, err := p.store.Load(ctx)
		if err == nil {
			return a, nil
		}
		p.logger.Warn("Model unavailable, training a new one", slog.String("error", err.Error()))
	}

	if p.trainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.trainTimeout)
		defer cancel()
	}

	a, err := p.trainer.Train(ctx)
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}
	if err := p.store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	return a, nil
}
