package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/job-triage/internal/api/dto"
	"github.com/cuongbtq/job-triage/internal/api/handler"
	"github.com/cuongbtq/job-triage/internal/evaluation"
	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/prediction"
	"github.com/cuongbtq/job-triage/internal/storage"
	"github.com/cuongbtq/job-triage/internal/training"
	"github.com/cuongbtq/job-triage/shared/database"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePredictor struct {
	opts   prediction.Options
	result *prediction.Result
	err    error
}

func (f *fakePredictor) Predict(_ context.Context, opts prediction.Options) (*prediction.Result, error) {
	f.opts = opts
	return f.result, f.err
}

type fakeReports struct {
	report *evaluation.Report
	err    error
}

func (f *fakeReports) LoadReport(context.Context) (*evaluation.Report, error) {
	return f.report, f.err
}

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][]byte
	err      error
	down     bool
}

func (f *fakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.down
}

func (f *fakePublisher) PublishJSON(_ context.Context, id string, v any) error {
	if f.err != nil {
		return f.err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[id] = body
	return nil
}

type testServer struct {
	engine    *gin.Engine
	predictor *fakePredictor
	reports   *fakeReports
	publisher *fakePublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.DiscardHandler)
	client, err := database.NewClient(&database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "jobs.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := storage.NewStorage(client.GetDB(), logger)
	require.NoError(t, store.EnsureSchema(context.Background()))

	ts := &testServer{
		predictor: &fakePredictor{result: &prediction.Result{Jobs: []prediction.RankedJob{}}},
		reports:   &fakeReports{err: training.ErrArtifactNotFound},
		publisher: &fakePublisher{messages: map[string][]byte{}},
	}
	ts.engine = SetupRouter("job-triage-api", &handler.Dependencies{
		Logger:    logger,
		Jobs:      store,
		Runs:      store,
		Predictor: ts.predictor,
		Reports:   ts.reports,
		Publisher: ts.publisher,
		DB:        client,
		Broker:    ts.publisher,
		PredictOptions: prediction.Options{
			NJobs:      20,
			WindowDays: 2,
			ToPredict:  map[model.Label]bool{model.LabelGood: true, model.LabelMaybe: true},
		},
		RunDefaults: handler.RunDefaults{MaxRetries: 3, Timeout: 30 * time.Minute},
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		r = &buf
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func jobInput(id string, created time.Time) dto.JobInput {
	budget := 500.0
	return dto.JobInput{
		ID:          id,
		Title:       "Build a Go service " + id,
		Snippet:     "Need an experienced backend engineer",
		JobType:     model.JobTypeFixed,
		Budget:      &budget,
		URL:         "https://example.com/jobs/" + id,
		DateCreated: created,
		Skills:      []string{"Go"},
		Client:      dto.ClientInput{Feedback: 4.9, Country: "Peru"},
	}
}

func seedJobs(t *testing.T, ts *testServer, n int) {
	t.Helper()
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	jobs := make([]dto.JobInput, n)
	for i := range jobs {
		jobs[i] = jobInput(fmt.Sprintf("job-%02d", i), created.Add(time.Duration(i)*time.Hour))
	}
	w := ts.do(t, http.MethodPost, "/api/v1/jobs", dto.UpsertJobsRequest{Jobs: jobs})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, n, decode[dto.UpsertJobsResponse](t, w).Upserted)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "job-triage-api", body["service"])
	assert.Equal(t, "ok", body["rabbitmq"])

	ts.publisher.mu.Lock()
	ts.publisher.down = true
	ts.publisher.mu.Unlock()

	w = ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body = decode[map[string]string](t, w)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "disconnected", body["rabbitmq"])
}

func TestCORS_Preflight(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodOptions, "/api/v1/jobs", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)
	generated := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "trace-42")
	w = httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, "trace-42", w.Header().Get(RequestIDHeader))
}

func TestUpsertJobs_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"empty batch", dto.UpsertJobsRequest{}},
		{"missing id", dto.UpsertJobsRequest{Jobs: []dto.JobInput{jobInput("", time.Now())}}},
		{"missing date", dto.UpsertJobsRequest{Jobs: []dto.JobInput{jobInput("a", time.Time{})}}},
		{"bad job type", func() any {
			in := jobInput("a", time.Now())
			in.JobType = "Salary"
			return dto.UpsertJobsRequest{Jobs: []dto.JobInput{in}}
		}()},
		{"negative budget", func() any {
			in := jobInput("a", time.Now())
			b := -1.0
			in.Budget = &b
			return dto.UpsertJobsRequest{Jobs: []dto.JobInput{in}}
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestJobs_ListAndPaginate(t *testing.T) {
	ts := newTestServer(t)
	seedJobs(t, ts, 3)

	w := ts.do(t, http.MethodGet, "/api/v1/jobs?page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[dto.ListJobsResponse](t, w)
	require.Len(t, page.Jobs, 2)
	assert.Equal(t, "job-02", page.Jobs[0].ID, "newest first")
	assert.Equal(t, "job-01", page.Jobs[1].ID)
	require.NotEmpty(t, page.NextCursor)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs?page_size=2&cursor="+url.QueryEscape(page.NextCursor), nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[dto.ListJobsResponse](t, w)
	require.Len(t, page.Jobs, 1)
	assert.Equal(t, "job-00", page.Jobs[0].ID)
	assert.Empty(t, page.NextCursor)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs?labels=Good,Maybe", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[dto.ListJobsResponse](t, w).Jobs)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs?labels=Uncategorized", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[dto.ListJobsResponse](t, w).Jobs, 3)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs?labels=Great", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs?cursor=not-base64!", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobs_GetLabelCount(t *testing.T) {
	ts := newTestServer(t)
	seedJobs(t, ts, 2)

	w := ts.do(t, http.MethodGet, "/api/v1/jobs/job-00", nil)
	require.Equal(t, http.StatusOK, w.Code)
	job := decode[model.JobRecord](t, w)
	assert.Equal(t, model.LabelUncategorized, job.Label)
	assert.Equal(t, []string{"Go"}, job.Skills)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	tests := []struct {
		name   string
		jobID  string
		label  string
		status int
	}{
		{"label uncategorized job", "job-00", "Good", http.StatusOK},
		{"relabel is a conflict", "job-00", "Bad", http.StatusConflict},
		{"unknown label", "job-01", "Great", http.StatusUnprocessableEntity},
		{"back to uncategorized", "job-01", "Uncategorized", http.StatusConflict},
		{"unknown job", "missing", "Good", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPatch, "/api/v1/jobs/"+tt.jobID+"/label", dto.UpdateLabelRequest{Label: tt.label})
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w = ts.do(t, http.MethodPatch, "/api/v1/jobs/job-01/label", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	counts := decode[storage.LabelCounts](t, w)
	assert.Equal(t, 1, counts.Labeled)
	assert.Equal(t, 1, counts.ByLabel[model.LabelGood])
	assert.Equal(t, 1, counts.ByLabel[model.LabelUncategorized])

	// a refetch refreshes fields but keeps the operator label
	refetch := jobInput("job-00", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	refetch.Title = "Updated title"
	w = ts.do(t, http.MethodPost, "/api/v1/jobs", dto.UpsertJobsRequest{Jobs: []dto.JobInput{refetch}})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/jobs/job-00", nil)
	job = decode[model.JobRecord](t, w)
	assert.Equal(t, "Updated title", job.Title)
	assert.Equal(t, model.LabelGood, job.Label)
}

func TestPredict(t *testing.T) {
	ts := newTestServer(t)
	ts.predictor.result = &prediction.Result{
		Jobs: []prediction.RankedJob{{
			JobRecord: model.JobRecord{ID: "job-07", Title: "Urgent Go API"},
			Predicted: model.LabelGood,
			Score:     0.9,
		}},
		Report: &evaluation.Report{
			Classifier: "svm",
			Plots:      map[string][]byte{evaluation.PlotConfusion: {0x89, 'P', 'N', 'G'}},
		},
	}

	t.Run("defaults", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/predictions", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 20, ts.predictor.opts.NJobs)
		assert.Equal(t, 2, ts.predictor.opts.WindowDays)
		assert.False(t, ts.predictor.opts.Retrain)

		var body struct {
			Jobs []struct {
				ID        string  `json:"id"`
				Predicted string  `json:"predicted_label"`
				Score     float64 `json:"score"`
			} `json:"jobs"`
			Report map[string]any `json:"report"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Jobs, 1)
		assert.Equal(t, "job-07", body.Jobs[0].ID)
		assert.Equal(t, "Good", body.Jobs[0].Predicted)
		assert.NotContains(t, body.Report, "plots")
		assert.Len(t, ts.predictor.result.Report.Plots, 1, "the predictor's report is not mutated")
	})

	t.Run("overrides", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/predictions", map[string]any{
			"retrain":       true,
			"n_jobs":        3,
			"window_days":   5,
			"to_predict":    map[string]bool{"Bad": true, "Maybe": false},
			"include_plots": true,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		opts := ts.predictor.opts
		assert.True(t, opts.Retrain)
		assert.Equal(t, 3, opts.NJobs)
		assert.Equal(t, 5, opts.WindowDays)
		assert.Equal(t, map[model.Label]bool{model.LabelGood: true, model.LabelMaybe: false, model.LabelBad: true}, opts.ToPredict)
		assert.Contains(t, w.Body.String(), `"plots"`)
	})

	t.Run("invalid requests", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/predictions", map[string]any{"n_jobs": -1})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = ts.do(t, http.MethodPost, "/api/v1/predictions", map[string]any{"to_predict": map[string]bool{"Uncategorized": true}})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	errCases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid options", fmt.Errorf("%w: n_jobs=-1", prediction.ErrInvalidOptions), http.StatusBadRequest},
		{"not enough data", fmt.Errorf("train model: %w", training.ErrInvalidDataset), http.StatusUnprocessableEntity},
		{"timeout", fmt.Errorf("train model: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"internal", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			ts.predictor.err = tt.err
			defer func() { ts.predictor.err = nil }()

			w := ts.do(t, http.MethodPost, "/api/v1/predictions", nil)
			assert.Equal(t, tt.status, w.Code)
			assert.NotContains(t, w.Body.String(), "disk full")
		})
	}
}

func TestModelReport(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/model/report", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	ts.reports.err = nil
	ts.reports.report = &evaluation.Report{
		Classifier: "logistic",
		Classes:    []string{"Good", "Bad"},
		TestScore:  0.8,
		Plots:      map[string][]byte{evaluation.PlotPRCurves: []byte("png-bytes")},
	}

	w = ts.do(t, http.MethodGet, "/api/v1/model/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[map[string]any](t, w)
	assert.Equal(t, "logistic", report["classifier"])
	assert.NotContains(t, report, "plots")

	w = ts.do(t, http.MethodGet, "/api/v1/model/report?include_plots=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]any](t, w), "plots")

	w = ts.do(t, http.MethodGet, "/api/v1/model/plots/"+evaluation.PlotPRCurves, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/v1/model/plots/missing.png", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrainingRuns(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/training-runs", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	created := decode[dto.CreateRunResponse](t, w)
	assert.Equal(t, model.RunStatusPending, created.Status)

	require.Contains(t, ts.publisher.messages, created.RunID)
	var msg model.RunMessage
	require.NoError(t, json.Unmarshal(ts.publisher.messages[created.RunID], &msg))
	assert.Equal(t, created.RunID, msg.RunID)

	w = ts.do(t, http.MethodGet, "/api/v1/training-runs/"+created.RunID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	run := decode[model.TrainingRun](t, w)
	assert.Equal(t, model.TriggerAPI, run.Trigger)
	assert.Equal(t, 3, run.MaxRetries)
	assert.Equal(t, 1800, run.TimeoutSeconds)

	w = ts.do(t, http.MethodGet, "/api/v1/training-runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/training-runs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	ts.publisher.err = errors.New("broker down")
	w = ts.do(t, http.MethodPost, "/api/v1/training-runs", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	ts.publisher.err = nil

	w = ts.do(t, http.MethodGet, "/api/v1/training-runs?page_size=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[dto.ListRunsResponse](t, w)
	require.Len(t, page.Runs, 1)
	require.NotEmpty(t, page.NextCursor)

	w = ts.do(t, http.MethodGet, "/api/v1/training-runs?page_size=1&cursor="+url.QueryEscape(page.NextCursor), nil)
	require.Equal(t, http.StatusOK, w.Code)
	next := decode[dto.ListRunsResponse](t, w)
	require.Len(t, next.Runs, 1)
	assert.NotEqual(t, page.Runs[0].RunID, next.Runs[0].RunID)
	assert.Empty(t, next.NextCursor)

	w = ts.do(t, http.MethodGet, "/api/v1/training-runs?status=DONE", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/training-runs?status=PENDING", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[dto.ListRunsResponse](t, w).Runs, 2)
}
