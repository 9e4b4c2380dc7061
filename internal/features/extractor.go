// Package features turns job records into the fixed-width numeric matrix the
// classifiers consume. Every stage is fitted once on the training partition
// and reused unchanged for evaluation and prediction.
package features

import (
	"errors"
	"fmt"

	"github.com/cuongbtq/job-triage/internal/model"
	"gonum.org/v1/gonum/mat"
)

// SchemaVersion identifies the column layout produced by the default stages.
// Bump it whenever a stage changes what it writes.
const SchemaVersion = 1

var (
	// ErrNotFitted is returned when transforming with an empty extractor
	ErrNotFitted = errors.New("feature extractor is not fitted")

	// ErrEmptyInput is returned when there are no records to fit or transform
	ErrEmptyInput = errors.New("no records to process")
)

// Stage is one named column group of the feature matrix
type Stage interface {
	Name() string
	Fit(records []model.JobRecord, y []int, nClasses int) (FittedStage, error)
}

// FittedStage writes its Width() columns into dst starting at column offset
type FittedStage interface {
	Name() string
	Width() int
	TransformInto(records []model.JobRecord, dst *mat.Dense, offset int)
}

// Config holds the tunable parameters of the default stages
type Config struct {
	TitleComponents   int
	SnippetComponents int
	NGramMax          int
	MaxFeatures       int
	Smoothing         float64
	Seed              uint64
}

// DefaultStages returns the stage list used for training: scaled numeric
// client statistics, title and snippet text vectors, and target-encoded
// categorical columns.
func DefaultStages(cfg Config) []Stage {
	ngram := cfg.NGramMax
	if ngram <= 0 {
		ngram = 2
	}
	return []Stage{
		NewScalerStage("scaler", DefaultNumericColumns),
		NewTextStage("title_vec", "title", cfg.TitleComponents, ngram, cfg.MaxFeatures, cfg.Seed),
		NewTextStage("snippet_vec", "snippet", cfg.SnippetComponents, ngram, cfg.MaxFeatures, cfg.Seed+1),
		NewTargetEncoderStage("cat", DefaultCategoricalColumns, cfg.Smoothing),
	}
}

// Extractor is an ordered list of stages whose outputs are concatenated horizontally
type Extractor struct {
	stages []Stage
}

// NewExtractor composes stages in order
func NewExtractor(stages ...Stage) *Extractor {
	return &Extractor{stages: stages}
}

// Fit fits every stage on the training records and their encoded labels
func (e *Extractor) Fit(records []model.JobRecord, y []int, nClasses int) (*FittedExtractor, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	fitted := &FittedExtractor{Version: SchemaVersion}
	for _, stage := range e.stages {
		fs, err := stage.Fit(records, y, nClasses)
		if err != nil {
			return nil, fmt.Errorf("fit stage %s: %w", stage.Name(), err)
		}
		state, err := stateOf(fs)
		if err != nil {
			return nil, err
		}
		fitted.Stages = append(fitted.Stages, state)
	}
	return fitted, nil
}

// StageState is the persistable form of a fitted stage. Exactly one of the
// pointers is set, selected by Kind.
type StageState struct {
	Kind   string
	Scaler *FittedScaler
	Text   *FittedText
	Target *FittedTargetEncoder
}

const (
	kindScaler = "scaler"
	kindText   = "text"
	kindTarget = "target"
)

func stateOf(fs FittedStage) (StageState, error) {
	switch s := fs.(type) {
	case *FittedScaler:
		return StageState{Kind: kindScaler, Scaler: s}, nil
	case *FittedText:
		return StageState{Kind: kindText, Text: s}, nil
	case *FittedTargetEncoder:
		return StageState{Kind: kindTarget, Target: s}, nil
	}
	return StageState{}, fmt.Errorf("unsupported fitted stage %T", fs)
}

func (s StageState) stage() (FittedStage, error) {
	switch {
	case s.Kind == kindScaler && s.Scaler != nil:
		return s.Scaler, nil
	case s.Kind == kindText && s.Text != nil:
		return s.Text, nil
	case s.Kind == kindTarget && s.Target != nil:
		return s.Target, nil
	}
	return nil, fmt.Errorf("corrupt stage state of kind %q", s.Kind)
}

// FittedExtractor is the persisted, fitted feature pipeline
type FittedExtractor struct {
	Version int
	Stages  []StageState
}

// Width is the number of columns Transform produces
func (f *FittedExtractor) Width() int {
	w := 0
	for _, s := range f.Stages {
		if fs, err := s.stage(); err == nil {
			w += fs.Width()
		}
	}
	return w
}

// StageNames lists the stages in column order
func (f *FittedExtractor) StageNames() []string {
	names := make([]string, 0, len(f.Stages))
	for _, s := range f.Stages {
		if fs, err := s.stage(); err == nil {
			names = append(names, fs.Name())
		}
	}
	return names
}

// Transform builds the feature matrix for records using the fitted stages
func (f *FittedExtractor) Transform(records []model.JobRecord) (*mat.Dense, error) {
	if f == nil || len(f.Stages) == 0 {
		return nil, ErrNotFitted
	}
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}
	if f.Version != SchemaVersion {
		return nil, fmt.Errorf("feature schema version %d, expected %d", f.Version, SchemaVersion)
	}

	stages := make([]FittedStage, len(f.Stages))
	width := 0
	for i, s := range f.Stages {
		fs, err := s.stage()
		if err != nil {
			return nil, err
		}
		stages[i] = fs
		width += fs.Width()
	}
	if width == 0 {
		return nil, fmt.Errorf("feature extractor produces no columns")
	}

	dst := mat.NewDense(len(records), width, nil)
	offset := 0
	for _, fs := range stages {
		fs.TransformInto(records, dst, offset)
		offset += fs.Width()
	}
	return dst, nil
}
