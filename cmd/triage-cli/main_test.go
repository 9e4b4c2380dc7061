package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cuongbtq/job-triage/internal/bootstrap"
	"github.com/cuongbtq/job-triage/internal/config"
	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/prediction"
	"github.com/cuongbtq/job-triage/internal/storage"
	"github.com/cuongbtq/job-triage/internal/training"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
app:
  name: "triage-cli"
database:
  driver: "sqlite"
  path: %q
  max_open_conns: 1
logging:
  level: "error"
  format: "json"
  output: "stderr"
pipeline:
  title_components: 4
  snippet_components: 3
  ngram_max: 1
  render_plots: false
  artifact_dir: %q
  timezone: "America/Lima"
  n_jobs: 3
  window_days: 2
  to_predict:
    Good: true
    Maybe: true
`

// writeConfig creates a config backed by a fresh sqlite file and artifact
// directory and returns its path
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(testConfig, filepath.Join(dir, "data", "jobs.db"), filepath.Join(dir, "artifacts"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type csvJob struct {
	id, title, snippet, country, budget, label string
	age                                        time.Duration
}

// writeJobsCSV writes ten labelled jobs per class with class-specific
// wording, plus the given unlabelled jobs
func writeJobsCSV(t *testing.T, extra ...csvJob) string {
	t.Helper()
	var jobs []csvJob
	for i := 0; i < 10; i++ {
		age := time.Duration(100+i) * time.Hour
		jobs = append(jobs,
			urgent(fmt.Sprintf("good-%d", i), "Good", age),
			csvJob{fmt.Sprintf("maybe-%d", i), "Website maintenance help", "ongoing maintenance tasks for wordpress site", "Germany", "400", "Maybe", age},
			cheap(fmt.Sprintf("bad-%d", i), "Bad", age),
		)
	}
	jobs = append(jobs, extra...)

	path := filepath.Join(t.TempDir(), "jobs.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write([]string{"id", "title", "snippet", "job_type", "budget", "category2", "date_created",
		"client.feedback", "client.reviews_count", "client.jobs_posted", "client.past_hires", "client.country", "label"}))
	now := time.Now().UTC()
	for _, j := range jobs {
		require.NoError(t, w.Write([]string{j.id, j.title, j.snippet, model.JobTypeFixed, j.budget, "Web, Mobile & Software Dev",
			now.Add(-j.age).Format(time.RFC3339), "4.5", "10", "5", "2", j.country, j.label}))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return path
}

func urgent(id, label string, age time.Duration) csvJob {
	return csvJob{id, "Urgent Go backend engineer", "urgent api work, urgent deadline, great client", "United States", "2000", label, age}
}

func cheap(id, label string, age time.Duration) csvJob {
	return csvJob{id, "Cheap data entry", "low budget data entry, low budget copy paste", "India", "20", label, age}
}

func openStorage(t *testing.T, configPath string) *storage.Storage {
	t.Helper()
	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	client, store, err := bootstrap.Database(context.Background(), &cfg.Database, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return store
}

func TestWorkflow(t *testing.T) {
	configPath := writeConfig(t)
	csvPath := writeJobsCSV(t,
		urgent("new-urgent-1", "", time.Hour),
		urgent("new-urgent-2", "", 2*time.Hour),
		cheap("new-cheap-1", "", time.Hour),
		cheap("new-cheap-2", "", time.Hour),
	)

	out, err := execute(t, configPath, "import", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 34 jobs")

	out, err = execute(t, configPath, "label", "new-cheap-2", "Bad")
	require.NoError(t, err)
	assert.Contains(t, out, "new-cheap-2 is now Bad")

	_, err = execute(t, configPath, "label", "new-cheap-2", "Good")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = execute(t, configPath, "report")
	assert.ErrorIs(t, err, training.ErrArtifactNotFound)

	out, err = execute(t, configPath, "train")
	require.NoError(t, err)
	assert.Contains(t, out, "classifier: svm")
	assert.Contains(t, out, "precision")
	assert.Contains(t, out, "artifacts in")

	runs, err := openStorage(t, configPath).ListRuns(context.Background(), storage.RunFilter{PageSize: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.TriggerCLI, runs[0].Trigger)
	assert.Equal(t, model.RunStatusCompleted, runs[0].Status)
	assert.NotEmpty(t, runs[0].Result)

	out, err = execute(t, configPath, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "trained at:")
	assert.Contains(t, out, "macro avg")

	out, err = execute(t, configPath, "predict", "--labels", "Good")
	require.NoError(t, err)
	assert.Contains(t, out, "new-urgent-1")
	assert.Contains(t, out, "new-urgent-2")
	assert.NotContains(t, out, "new-cheap-1")
	assert.NotContains(t, out, "new-cheap-2")

	out, err = execute(t, configPath, "predict", "--window-days", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "no jobs to review")
}

func TestImport_Errors(t *testing.T) {
	configPath := writeConfig(t)

	_, err := execute(t, configPath, "import", filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "failed to open input")

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("id,title\n1,x\n"), 0o644))
	_, err = execute(t, configPath, "import", bad)
	assert.ErrorContains(t, err, "missing required column")
}

func TestLabel_Errors(t *testing.T) {
	configPath := writeConfig(t)

	_, err := execute(t, configPath, "label", "job-1", "Great")
	assert.ErrorIs(t, err, model.ErrInvalidLabel)

	_, err = execute(t, configPath, "label", "job-1", "Good")
	assert.ErrorIs(t, err, storage.ErrJobNotFound)

	_, err = execute(t, configPath, "label", "job-1")
	assert.Error(t, err)
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "nope.yaml"), "report")
	assert.ErrorContains(t, err, "failed to load config")
}

func TestPredictOptions_Resolve(t *testing.T) {
	defaults := prediction.Options{
		NJobs:      20,
		WindowDays: 2,
		ToPredict:  map[model.Label]bool{model.LabelGood: true, model.LabelMaybe: true},
	}

	tests := []struct {
		name    string
		args    []string
		want    prediction.Options
		wantErr bool
	}{
		{
			name: "defaults",
			want: defaults,
		},
		{
			name: "overrides",
			args: []string{"--n-jobs", "5", "--window-days", "0", "--retrain"},
			want: prediction.Options{
				Retrain:    true,
				NJobs:      5,
				WindowDays: 0,
				ToPredict:  defaults.ToPredict,
			},
		},
		{
			name: "labels replace the configured set",
			args: []string{"--labels", "Bad,Irrelevant"},
			want: prediction.Options{
				NJobs:      20,
				WindowDays: 2,
				ToPredict: map[model.Label]bool{
					model.LabelGood:       false,
					model.LabelMaybe:      false,
					model.LabelBad:        true,
					model.LabelIrrelevant: true,
				},
			},
		},
		{
			name:    "unknown label",
			args:    []string{"--labels", "Great"},
			wantErr: true,
		},
		{
			name:    "initial label cannot be predicted",
			args:    []string{"--labels", "Uncategorized"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newPredictCmd(&rootOptions{})
			require.NoError(t, cmd.ParseFlags(tt.args))

			p := &predictOptions{}
			p.nJobs, _ = cmd.Flags().GetInt("n-jobs")
			p.windowDays, _ = cmd.Flags().GetInt("window-days")
			p.retrain, _ = cmd.Flags().GetBool("retrain")
			p.labels, _ = cmd.Flags().GetStringSlice("labels")

			got, err := p.resolve(cmd, defaults)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidLabel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ñandú", truncate("ñandú", 5))
	assert.True(t, strings.HasSuffix(truncate(strings.Repeat("x", 100), 60), "…"))
}

func TestPrintShortlist(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printShortlist(&out, []prediction.RankedJob{{
		JobRecord: model.JobRecord{
			ID:          "~01abc",
			Title:       "Urgent Go API",
			DateCreated: time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC),
		},
		Predicted: model.LabelGood,
		Score:     0.75,
	}}, lima))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"#", "ID", "LABEL", "SCORE", "CREATED", "TITLE", "URL"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"1", "~01abc", "Good", "0.750", "2024-05-01", "10:00", "Urgent", "Go", "API"}, strings.Fields(lines[1]))

	out.Reset()
	require.NoError(t, printShortlist(&out, nil, lima))
	assert.Equal(t, "no jobs to review\n", out.String())
}

func TestTrain_NoLabelledJobs(t *testing.T) {
	configPath := writeConfig(t)

	_, err := execute(t, configPath, "train")
	assert.ErrorIs(t, err, training.ErrInvalidDataset)

	runs, err := openStorage(t, configPath).ListRuns(context.Background(), storage.RunFilter{PageSize: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "no labelled records")
}
