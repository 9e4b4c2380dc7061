package training

import (
	"fmt"

	"github.com/cuongbtq/job-triage/internal/classifier"
	"github.com/cuongbtq/job-triage/internal/evaluation"
	"github.com/cuongbtq/job-triage/internal/features"
	"github.com/cuongbtq/job-triage/internal/model"
	"gonum.org/v1/gonum/mat"
)

// Artifact is a trained model: fitted features, fitted classifier, label
// encoder and the evaluation report of the run that produced it.
type Artifact struct {
	Extractor *features.FittedExtractor
	Model     classifier.Model
	Encoder   *LabelEncoder
	Report    evaluation.Report
}

// Predict returns the predicted label and per-class scores of each record.
// Score columns follow the encoder order.
func (a *Artifact) Predict(records []model.JobRecord) ([]model.Label, *mat.Dense, error) {
	clf, err := a.Model.Classifier()
	if err != nil {
		return nil, nil, err
	}
	x, err := a.Extractor.Transform(records)
	if err != nil {
		return nil, nil, fmt.Errorf("transform records: %w", err)
	}

	scores := clf.Scores(x)
	_, cols := scores.Dims()
	if cols != a.Encoder.Len() {
		return nil, nil, fmt.Errorf("%w: model has %d score columns, encoder %d classes", ErrArtifactCorrupt, cols, a.Encoder.Len())
	}

	codes := clf.Predict(x)
	labels := make([]model.Label, len(codes))
	for i, c := range codes {
		labels[i] = a.Encoder.Decode(c)
	}
	return labels, scores, nil
}
