package training

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/cuongbtq/job-triage/internal/classifier"
	"github.com/cuongbtq/job-triage/internal/model"
	"golang.org/x/sync/errgroup"
)

// SearchResult is the winning candidate of a cross-validated search
type SearchResult struct {
	Params classifier.Params
	Score  float64
}

// search evaluates every candidate with stratified k-fold cross-validation.
// The whole pipeline is refitted inside each fold so the held-out fold never
// leaks into the feature statistics. Folds run in parallel; scores are
// stored by position so the outcome does not depend on scheduling.
func (t *Trainer) search(ctx context.Context, recs []model.JobRecord, y []int, nClasses int) (SearchResult, error) {
	candidates := classifier.Candidates(t.cfg.Classifier, t.cfg.Search.Grid)
	folds := StratifiedKFold(y, nClasses, t.cfg.Folds, t.cfg.Seed)
	ds := &Dataset{Records: recs, Y: y}

	scores := make([][]float64, len(candidates))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}

	limit := t.cfg.Search.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for ci, params := range candidates {
		for fi, held := range folds {
			g.Go(func() error {
				trainRecs, yTrain := ds.Subset(complement(len(y), held))
				valRecs, yVal := ds.Subset(held)

				ext, clf, _, err := t.fitPipeline(gctx, params, trainRecs, yTrain, nClasses)
				if err != nil {
					return fmt.Errorf("candidate %d fold %d: %w", ci, fi, err)
				}
				x, err := ext.Transform(valRecs)
				if err != nil {
					return fmt.Errorf("candidate %d fold %d: %w", ci, fi, err)
				}
				scores[ci][fi] = t.cfg.Scorer.Score(yVal, clf.Predict(x), nClasses)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return SearchResult{}, fmt.Errorf("hyperparameter search: %w", err)
	}

	best := SearchResult{Score: -1}
	for ci, fs := range scores {
		var mean float64
		for _, s := range fs {
			mean += s
		}
		mean /= float64(len(fs))
		if mean > best.Score {
			best = SearchResult{Params: candidates[ci], Score: mean}
		}
	}

	t.logger.Info("Hyperparameter search finished",
		slog.Int("candidates", len(candidates)),
		slog.Int("folds", len(folds)),
		slog.Float64("best_score", best.Score),
		slog.Any("params", paramSummary(best.Params)))
	return best, nil
}
