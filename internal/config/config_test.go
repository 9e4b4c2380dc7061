package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/cuongbtq/job-triage/internal/classifier"
	"github.com/cuongbtq/job-triage/internal/evaluation"
	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_PASSWORD", "DATABASE_PATH", "RABBITMQ_PASSWORD", "ARTIFACT_DIR"} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "postgres", cfg.Database.Driver)
			assert.Equal(t, "jobs_db", cfg.Database.Database)
			assert.Equal(t, "training_exchange", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "training_runs", cfg.RabbitMQ.Queue.Name)
			assert.Equal(t, 2, cfg.RabbitMQ.Consumer.PrefetchCount)
			assert.Equal(t, "job-triage-api", cfg.App.Name)
			assert.Equal(t, 20*time.Minute, cfg.Worker.RunTimeout)
			assert.True(t, cfg.Scheduler.Enabled)
			assert.Equal(t, "30 2 * * *", cfg.Scheduler.RetrainCron)

			p := cfg.Pipeline
			assert.Equal(t, []string{"Good", "Maybe", "Bad"}, p.TrainingLabels)
			assert.Equal(t, 0.25, p.TestRatio)
			assert.Equal(t, uint64(7), p.Seed)
			assert.Equal(t, "voting", p.Classifier)
			assert.Equal(t, "none", p.SVM.ClassWeight)
			assert.Equal(t, []int{2, 4}, p.Search.MaxDepths)
			assert.Equal(t, 5*time.Minute, p.TrainTimeout)
			assert.False(t, p.ToPredict["Maybe"])
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, "jobs.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 20, cfg.Pipeline.NJobs)
	assert.Equal(t, 2, cfg.Pipeline.WindowDays)
	assert.Equal(t, "America/Lima", cfg.Pipeline.Timezone)
	assert.Equal(t, "svm", cfg.Pipeline.Classifier)
	assert.Equal(t, stringsOf(model.PriorityOrder), cfg.Pipeline.TrainingLabels)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "s3cret")
	t.Setenv("DATABASE_PATH", "/tmp/override.db")
	t.Setenv("RABBITMQ_PASSWORD", "rabbit")
	t.Setenv("ARTIFACT_DIR", "/tmp/artifacts")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "rabbit", cfg.RabbitMQ.Password)
	assert.Equal(t, "/tmp/artifacts", cfg.Pipeline.ArtifactDir)
}

func validConfig() *Config {
	cfg := Default()
	cfg.RabbitMQ.Host = "localhost"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid sqlite config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name: "valid postgres config",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 5432, Database: "jobs_db"}
			},
			wantErr: false,
		},
		{
			name:      "unsupported driver",
			mutate:    func(c *Config) { c.Database.Driver = "mysql" },
			wantErr:   true,
			errString: "unsupported database driver",
		},
		{
			name:      "sqlite without path",
			mutate:    func(c *Config) { c.Database.Path = "" },
			wantErr:   true,
			errString: "database path is required",
		},
		{
			name: "empty database host",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Driver: "postgres", Port: 5432, Database: "jobs_db"}
			},
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name: "invalid database port",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 0, Database: "jobs_db"}
			},
			wantErr:   true,
			errString: "invalid database port",
		},
		{
			name: "empty database name",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 5432}
			},
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "unknown classifier",
			mutate:    func(c *Config) { c.Pipeline.Classifier = "forest" },
			wantErr:   true,
			errString: "Classifier",
		},
		{
			name:      "unknown scorer",
			mutate:    func(c *Config) { c.Pipeline.Scorer = "accuracy" },
			wantErr:   true,
			errString: "Scorer",
		},
		{
			name:      "test ratio out of range",
			mutate:    func(c *Config) { c.Pipeline.TestRatio = 1 },
			wantErr:   true,
			errString: "TestRatio",
		},
		{
			name:      "single fold",
			mutate:    func(c *Config) { c.Pipeline.CVFolds = 1 },
			wantErr:   true,
			errString: "CVFolds",
		},
		{
			name:      "one training label",
			mutate:    func(c *Config) { c.Pipeline.TrainingLabels = []string{"Good"} },
			wantErr:   true,
			errString: "TrainingLabels",
		},
		{
			name:      "uncategorized is not a training label",
			mutate:    func(c *Config) { c.Pipeline.TrainingLabels = []string{"Good", "Uncategorized"} },
			wantErr:   true,
			errString: "TrainingLabels",
		},
		{
			name: "training label missing from labels",
			mutate: func(c *Config) {
				c.Pipeline.Labels = []string{"Uncategorized", "Good", "Bad"}
				c.Pipeline.TrainingLabels = []string{"Good", "Maybe"}
			},
			wantErr:   true,
			errString: `training label "Maybe" is not in labels`,
		},
		{
			name:      "unknown to_predict label",
			mutate:    func(c *Config) { c.Pipeline.ToPredict["Great"] = true },
			wantErr:   true,
			errString: `to_predict label "Great"`,
		},
		{
			name:      "unknown class weight",
			mutate:    func(c *Config) { c.Pipeline.SVM.ClassWeight = "auto" },
			wantErr:   true,
			errString: "ClassWeight",
		},
		{
			name:      "search range inverted",
			mutate:    func(c *Config) { c.Pipeline.Search.CHigh = 0.001 },
			wantErr:   true,
			errString: "CHigh",
		},
		{
			name:      "negative window",
			mutate:    func(c *Config) { c.Pipeline.WindowDays = -1 },
			wantErr:   true,
			errString: "WindowDays",
		},
		{
			name:      "missing artifact dir",
			mutate:    func(c *Config) { c.Pipeline.ArtifactDir = "" },
			wantErr:   true,
			errString: "ArtifactDir",
		},
		{
			name:      "unknown timezone",
			mutate:    func(c *Config) { c.Pipeline.Timezone = "Mars/Olympus" },
			wantErr:   true,
			errString: "timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateServices(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		worker    bool
		errString string
	}{
		{name: "api valid", mutate: func(*Config) {}},
		{name: "worker valid", mutate: func(*Config) {}, worker: true},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			errString: "invalid server port",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			worker:    true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			worker:    true,
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			worker:    true,
			errString: "worker concurrency",
		},
		{
			name:      "zero run timeout",
			mutate:    func(c *Config) { c.Worker.RunTimeout = 0 },
			worker:    true,
			errString: "run_timeout",
		},
		{
			name: "scheduler without cron",
			mutate: func(c *Config) {
				c.Scheduler.Enabled = true
				c.Scheduler.RetrainCron = ""
			},
			worker:    true,
			errString: "retrain_cron",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			var err error
			if tt.worker {
				err = cfg.ValidateWorkerConfig()
			} else {
				err = cfg.ValidateAPIConfig()
			}

			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	clearEnv(t)

	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})

	t.Run("load config with invalid pipeline", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_pipeline.yaml")
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid pipeline config")
	})
}

func TestPipelineConfig_Conversions(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	tc := cfg.Pipeline.TrainingConfig()
	assert.Equal(t, []model.Label{model.LabelGood, model.LabelMaybe, model.LabelBad}, tc.Labels)
	assert.Equal(t, evaluation.ScorerPrecision, tc.Scorer)
	assert.Equal(t, classifier.KindVoting, tc.Classifier.Kind)
	assert.Equal(t, 0.5, tc.Classifier.SVM.C)
	assert.Equal(t, 50, tc.Classifier.Boosting.NEstimators)
	assert.Equal(t, 50, tc.Features.TitleComponents)
	assert.Equal(t, 80, tc.Features.SnippetComponents)
	assert.Equal(t, 2.0, tc.Features.Smoothing)
	assert.True(t, tc.Search.Enabled)
	assert.Equal(t, 4, tc.Search.Grid.CSamples)
	assert.Equal(t, 2, tc.Search.Parallelism)
	assert.False(t, tc.RenderPlots)

	opts := cfg.Pipeline.PredictOptions()
	assert.Equal(t, 15, opts.NJobs)
	assert.Equal(t, 3, opts.WindowDays)
	assert.True(t, opts.ToPredict[model.LabelGood])
	assert.False(t, opts.ToPredict[model.LabelMaybe])

	loc, err := cfg.Pipeline.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Lima", loc.String())
}

func TestPortConstants(t *testing.T) {
	assert.Equal(t, 1, MinPort)
	assert.Equal(t, 65535, MaxPort)
}
