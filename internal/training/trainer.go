// Package training fits the feature extractor and classifier on labelled
// job records, evaluates the result and persists it as a model artifact.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-triage/internal/classifier"
	"github.com/cuongbtq/job-triage/internal/evaluation"
	"github.com/cuongbtq/job-triage/internal/features"
	"github.com/cuongbtq/job-triage/internal/model"
	"gonum.org/v1/gonum/mat"
)

// RecordSource supplies labelled records ordered by creation time, newest first
type RecordSource interface {
	LoadByLabels(ctx context.Context, labels ...model.Label) ([]model.JobRecord, error)
}

// SearchConfig gates cross-validated hyperparameter search
type SearchConfig struct {
	Enabled     bool
	Grid        classifier.GridConfig
	Parallelism int
}

// Config is the training part of the pipeline configuration
type Config struct {
	Labels      []model.Label
	TestRatio   float64
	Seed        uint64
	Folds       int
	Scorer      evaluation.Scorer
	Features    features.Config
	Classifier  classifier.Params
	Search      SearchConfig
	RenderPlots bool
}

// Trainer runs one training cycle end to end
type Trainer struct {
	cfg    Config
	source RecordSource
	logger *slog.Logger
	now    func() time.Time
}

// NewTrainer creates a trainer reading records from source
func NewTrainer(cfg Config, source RecordSource, logger *slog.Logger) *Trainer {
	if cfg.Folds <= 0 {
		cfg.Folds = 3
	}
	if cfg.Scorer == "" {
		cfg.Scorer = evaluation.ScorerF1
	}
	if cfg.TestRatio <= 0 || cfg.TestRatio >= 1 {
		cfg.TestRatio = 0.3
	}
	cfg.Features.Seed = cfg.Seed
	cfg.Classifier.Seed = cfg.Seed
	return &Trainer{cfg: cfg, source: source, logger: logger, now: time.Now}
}

// Train loads the labelled records and fits a new artifact
func (t *Trainer) Train(ctx context.Context) (*Artifact, error) {
	records, err := t.source.LoadByLabels(ctx, t.cfg.Labels...)
	if err != nil {
		return nil, fmt.Errorf("load training records: %w", err)
	}
	return t.Fit(ctx, records)
}

// Fit trains on the given records. Nothing is persisted; a failure at any
// stage returns no artifact.
func (t *Trainer) Fit(ctx context.Context, records []model.JobRecord) (*Artifact, error) {
	start := t.now()

	ds, err := NewDataset(records, t.cfg.Labels)
	if err != nil {
		return nil, err
	}
	nClasses := ds.Encoder.Len()

	trainIdx, testIdx := StratifiedSplit(ds.Y, nClasses, t.cfg.TestRatio, t.cfg.Seed)
	trainRecs, yTrain := ds.Subset(trainIdx)
	testRecs, yTest := ds.Subset(testIdx)
	if err := checkFolds(yTrain, ds.Encoder, t.cfg.Folds); err != nil {
		return nil, err
	}

	t.logger.Info("Training started",
		slog.String("classifier", string(t.cfg.Classifier.Kind)),
		slog.Int("n_records", len(ds.Records)),
		slog.Int("n_train", len(trainIdx)),
		slog.Int("n_test", len(testIdx)),
		slog.Any("classes", ds.Encoder.Strings()))

	params := t.cfg.Classifier
	var cvScore *float64
	if t.cfg.Search.Enabled {
		best, err := t.search(ctx, trainRecs, yTrain, nClasses)
		if err != nil {
			return nil, err
		}
		params = best.Params
		cvScore = &best.Score
	}

	ext, clf, xTrain, err := t.fitPipeline(ctx, params, trainRecs, yTrain, nClasses)
	if err != nil {
		return nil, err
	}
	xTest, err := ext.Transform(testRecs)
	if err != nil {
		return nil, fmt.Errorf("transform test partition: %w", err)
	}

	report, err := evaluation.Evaluate(evaluation.Input{
		Classifier: string(params.Kind),
		Scorer:     t.cfg.Scorer,
		Classes:    ds.Encoder.Strings(),
		TrainTrue:  yTrain,
		TrainPred:  clf.Predict(xTrain),
		TestTrue:   yTest,
		TestPred:   clf.Predict(xTest),
		TestScores: clf.Scores(xTest),
		Plots:      t.cfg.RenderPlots,
	})
	if err != nil {
		return nil, err
	}
	report.CVScore = cvScore
	report.Params = paramSummary(params)
	report.TrainedAt = start.UTC()
	report.Duration = t.now().Sub(start)

	envelope, err := classifier.Wrap(clf)
	if err != nil {
		return nil, err
	}

	t.logger.Info("Training completed",
		slog.String("scorer", string(t.cfg.Scorer)),
		slog.Float64("train_score", report.TrainScore),
		slog.Float64("test_score", report.TestScore),
		slog.Duration("duration", report.Duration))

	return &Artifact{
		Extractor: ext,
		Model:     envelope,
		Encoder:   ds.Encoder,
		Report:    report,
	}, nil
}

// fitPipeline fits the extractor and a fresh classifier on one partition
func (t *Trainer) fitPipeline(ctx context.Context, params classifier.Params, recs []model.JobRecord, y []int, nClasses int) (*features.FittedExtractor, classifier.Classifier, *mat.Dense, error) {
	ext, err := features.NewExtractor(features.DefaultStages(t.cfg.Features)...).Fit(recs, y, nClasses)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fit features: %w", err)
	}
	x, err := ext.Transform(recs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("transform training partition: %w", err)
	}
	clf, err := classifier.New(params)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := clf.Fit(ctx, x, y, nClasses); err != nil {
		return nil, nil, nil, fmt.Errorf("fit %s: %w", params.Kind, err)
	}
	return ext, clf, x, nil
}

func paramSummary(p classifier.Params) map[string]float64 {
	switch p.Kind {
	case classifier.KindSVM:
		return map[string]float64{"c": p.SVM.C}
	case classifier.KindLogistic:
		return map[string]float64{"c": p.Logistic.C}
	case classifier.KindBoosting:
		return map[string]float64{
			"learning_rate": p.Boosting.LearningRate,
			"max_depth":     float64(p.Boosting.MaxDepth),
			"n_estimators":  float64(p.Boosting.NEstimators),
		}
	case classifier.KindVoting:
		return map[string]float64{
			"c":             p.SVM.C,
			"learning_rate": p.Boosting.LearningRate,
		}
	}
	return nil
}
