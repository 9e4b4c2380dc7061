package config

import (
	"time"

	"github.com/cuongbtq/job-triage/internal/classifier"
	"github.com/cuongbtq/job-triage/internal/evaluation"
	"github.com/cuongbtq/job-triage/internal/features"
	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/prediction"
	"github.com/cuongbtq/job-triage/internal/training"
)

// PipelineConfig is the configuration surface of training and prediction
type PipelineConfig struct {
	Labels         []string `yaml:"labels" validate:"min=2,unique,dive,oneof=Uncategorized Good Maybe Bad Irrelevant"`
	TrainingLabels []string `yaml:"training_labels" validate:"min=2,unique,dive,oneof=Good Maybe Bad Irrelevant"`
	TestRatio      float64  `yaml:"test_ratio" validate:"gt=0,lt=1"`
	Seed           uint64   `yaml:"seed"`
	CVFolds        int      `yaml:"cv_folds" validate:"gte=2"`
	Scorer         string   `yaml:"scorer" validate:"oneof=precision recall f1"`

	TitleComponents   int     `yaml:"title_components" validate:"gte=1"`
	SnippetComponents int     `yaml:"snippet_components" validate:"gte=1"`
	MaxFeatures       int     `yaml:"max_features" validate:"gte=0"`
	NGramMax          int     `yaml:"ngram_max" validate:"gte=1,lte=3"`
	EncoderSmoothing  float64 `yaml:"encoder_smoothing" validate:"gte=0"`

	Classifier string         `yaml:"classifier" validate:"oneof=svm logistic boosting voting"`
	SVM        SVMConfig      `yaml:"svm"`
	Logistic   LogisticConfig `yaml:"logistic"`
	Boosting   BoostingConfig `yaml:"boosting"`
	Search     SearchConfig   `yaml:"search"`

	ArtifactDir  string          `yaml:"artifact_dir" validate:"required"`
	Timezone     string          `yaml:"timezone" validate:"required"`
	NJobs        int             `yaml:"n_jobs" validate:"gte=0"`
	WindowDays   int             `yaml:"window_days" validate:"gte=0"`
	ToPredict    map[string]bool `yaml:"to_predict"`
	Retrain      bool            `yaml:"retrain"`
	TrainTimeout time.Duration   `yaml:"train_timeout" validate:"gte=0s"`
	RenderPlots  bool            `yaml:"render_plots"`
}

// SVMConfig holds the linear-margin classifier hyperparameters
type SVMConfig struct {
	C           float64 `yaml:"c" validate:"gt=0"`
	ClassWeight string  `yaml:"class_weight" validate:"oneof=balanced none"`
	MaxIter     int     `yaml:"max_iter" validate:"gte=1"`
	Tol         float64 `yaml:"tol" validate:"gt=0"`
}

// LogisticConfig holds the logistic regression hyperparameters
type LogisticConfig struct {
	C       float64 `yaml:"c" validate:"gt=0"`
	MaxIter int     `yaml:"max_iter" validate:"gte=1"`
}

// BoostingConfig holds the gradient-boosted trees hyperparameters
type BoostingConfig struct {
	NEstimators    int     `yaml:"n_estimators" validate:"gte=1"`
	LearningRate   float64 `yaml:"learning_rate" validate:"gt=0,lte=1"`
	MaxDepth       int     `yaml:"max_depth" validate:"gte=1"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf" validate:"gte=1"`
}

// SearchConfig holds the cross-validated search grid
type SearchConfig struct {
	Enabled       bool      `yaml:"enabled"`
	CLow          float64   `yaml:"c_low" validate:"gt=0"`
	CHigh         float64   `yaml:"c_high" validate:"gtefield=CLow"`
	CSamples      int       `yaml:"c_samples" validate:"gte=1"`
	LearningRates []float64 `yaml:"learning_rates" validate:"dive,gt=0,lte=1"`
	MaxDepths     []int     `yaml:"max_depths" validate:"dive,gte=1"`
	Parallelism   int       `yaml:"parallelism" validate:"gte=0"`
}

// Default returns the configuration used for every field a file leaves out
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "job-triage",
			Version:     "dev",
			Environment: "development",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         "data/jobs.db",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		RabbitMQ: RabbitMQConfig{
			Port:       5672,
			VHost:      "/",
			RoutingKey: "training.run",
			Exchange:   ExchangeConfig{Name: "training_exchange", Type: "direct", Durable: true},
			Queue:      QueueConfig{Name: "training_runs", Durable: true},
			Connection: ConnectionConfig{
				RetryAttempts:     5,
				RetryInterval:     2 * time.Second,
				Heartbeat:         10 * time.Second,
				ConnectionTimeout: 30 * time.Second,
			},
			Publish:  PublishConfig{RetryAttempts: 3, RetryInterval: time.Second, BackoffMultiplier: 2},
			Consumer: ConsumerConfig{PrefetchCount: 1},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Worker: WorkerConfig{
			Concurrency:       1,
			MaxRuns:           10,
			MaxRetries:        3,
			RunTimeout:        30 * time.Minute,
			HeartbeatInterval: 30 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			RetrainCron: "0 3 * * *",
		},
		Pipeline: PipelineConfig{
			Labels:            stringsOf(model.AllLabels),
			TrainingLabels:    stringsOf(model.PriorityOrder),
			TestRatio:         0.3,
			Seed:              42,
			CVFolds:           3,
			Scorer:            string(evaluation.ScorerF1),
			TitleComponents:   100,
			SnippetComponents: 100,
			NGramMax:          2,
			EncoderSmoothing:  1,
			Classifier:        string(classifier.KindSVM),
			SVM:               SVMConfig{C: 1, ClassWeight: classifier.ClassWeightBalanced, MaxIter: 1000, Tol: 0.1},
			Logistic:          LogisticConfig{C: 1, MaxIter: 200},
			Boosting:          BoostingConfig{NEstimators: 100, LearningRate: 0.1, MaxDepth: 3, MinSamplesLeaf: 1},
			Search: SearchConfig{
				CLow:          0.01,
				CHigh:         100,
				CSamples:      5,
				LearningRates: []float64{0.05, 0.1},
				MaxDepths:     []int{2, 3},
			},
			ArtifactDir:  "artifacts",
			Timezone:     "America/Lima",
			NJobs:        20,
			WindowDays:   2,
			ToPredict:    map[string]bool{"Good": true, "Maybe": true, "Bad": false, "Irrelevant": false},
			TrainTimeout: 10 * time.Minute,
			RenderPlots:  true,
		},
	}
}

func stringsOf(labels []model.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}

func labelsOf(names []string) []model.Label {
	out := make([]model.Label, len(names))
	for i, n := range names {
		out[i] = model.Label(n)
	}
	return out
}

// TrainingConfig converts the pipeline section into the trainer's config.
// Call Validate first; values are not re-checked here.
func (p *PipelineConfig) TrainingConfig() training.Config {
	return training.Config{
		Labels:    labelsOf(p.TrainingLabels),
		TestRatio: p.TestRatio,
		Seed:      p.Seed,
		Folds:     p.CVFolds,
		Scorer:    evaluation.Scorer(p.Scorer),
		Features: features.Config{
			TitleComponents:   p.TitleComponents,
			SnippetComponents: p.SnippetComponents,
			NGramMax:          p.NGramMax,
			MaxFeatures:       p.MaxFeatures,
			Smoothing:         p.EncoderSmoothing,
		},
		Classifier: classifier.Params{
			Kind: classifier.Kind(p.Classifier),
			SVM: classifier.SVMParams{
				C:           p.SVM.C,
				ClassWeight: p.SVM.ClassWeight,
				MaxIter:     p.SVM.MaxIter,
				Tol:         p.SVM.Tol,
			},
			Logistic: classifier.LogisticParams{C: p.Logistic.C, MaxIter: p.Logistic.MaxIter},
			Boosting: classifier.BoostingParams{
				NEstimators:    p.Boosting.NEstimators,
				LearningRate:   p.Boosting.LearningRate,
				MaxDepth:       p.Boosting.MaxDepth,
				MinSamplesLeaf: p.Boosting.MinSamplesLeaf,
			},
		},
		Search: training.SearchConfig{
			Enabled: p.Search.Enabled,
			Grid: classifier.GridConfig{
				CLow:          p.Search.CLow,
				CHigh:         p.Search.CHigh,
				CSamples:      p.Search.CSamples,
				LearningRates: p.Search.LearningRates,
				MaxDepths:     p.Search.MaxDepths,
			},
			Parallelism: p.Search.Parallelism,
		},
		RenderPlots: p.RenderPlots,
	}
}

// PredictOptions returns the configured defaults of a prediction cycle
func (p *PipelineConfig) PredictOptions() prediction.Options {
	toPredict := make(map[model.Label]bool, len(p.ToPredict))
	for l, on := range p.ToPredict {
		toPredict[model.Label(l)] = on
	}
	return prediction.Options{
		Retrain:    p.Retrain,
		NJobs:      p.NJobs,
		WindowDays: p.WindowDays,
		ToPredict:  toPredict,
	}
}

// Location loads the reference timezone of prediction
func (p *PipelineConfig) Location() (*time.Location, error) {
	return time.LoadLocation(p.Timezone)
}
