package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"WattWise/internal/domain/models"
	drepo "WattWise/internal/domain/repository"
	"WattWise/internal/repository"
	"WattWise/internal/service/ratelimit"
	"WattWise/internal/services/estimator"
	"WattWise/internal/services/features"
	"WattWise/internal/services/forecast"
	"WattWise/internal/services/summary"
	"WattWise/internal/usecase"
	"WattWise/pkg/cache"
	"WattWise/pkg/http/middleware"
	pkgmetrics "WattWise/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)

type stubFeatures struct {
	observed []models.TimeSeriesRecord
	future   []models.TimeSeriesRecord
}

func (s *stubFeatures) HistoryBefore(_ context.Context, city string, ts time.Time, n int) ([]models.TimeSeriesRecord, error) {
	if city != "tokyo" {
		return nil, nil
	}
	var out []models.TimeSeriesRecord
	for _, r := range s.observed {
		if r.Timestamp.Before(ts) {
			out = append(out, r)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (s *stubFeatures) FutureFeatures(_ context.Context, city string, after, to time.Time) ([]models.TimeSeriesRecord, error) {
	var out []models.TimeSeriesRecord
	for _, r := range s.future {
		if r.Timestamp.After(after) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubFeatures) Observed(_ context.Context, city string, _, _ time.Time) ([]models.TimeSeriesRecord, error) {
	if city != "tokyo" {
		return nil, nil
	}
	return s.observed, nil
}

var _ drepo.FeatureStore = (*stubFeatures)(nil)

func hourly(start time.Time, n int, demand *float64) []models.TimeSeriesRecord {
	out := make([]models.TimeSeriesRecord, n)
	for i := range out {
		ts := start.Add(time.Duration(i) * time.Hour)
		out[i] = models.TimeSeriesRecord{
			Timestamp: ts,
			Features:  []float64{3, float64(ts.Hour()), float64(ts.Weekday()), 0},
			Demand:    demand,
		}
	}
	return out
}

type fixture struct {
	e   *echo.Echo
	h   *ForecastHandler
	hub *Hub
}

func newFixture(t *testing.T, lgb func(context.Context, models.FeatureVector) (float64, error)) *fixture {
	t.Helper()
	fs, err := features.NewSchema([]string{"season", "hour", "weekday", "public_holiday"})
	require.NoError(t, err)
	schema := usecase.NewSchema(fs)

	mem, err := cache.NewMemoryCache()
	require.NoError(t, err)
	store := repository.NewCacheStore(mem, time.Hour)
	rec := pkgmetrics.NewWithRegistry(prometheus.NewRegistry())

	hundred := 100.0
	feats := &stubFeatures{
		observed: hourly(day.Add(-48*time.Hour), 48, &hundred),
		future:   hourly(day, 48, nil),
	}
	ann := estimator.Func{Label: "ann", Fields: fs.Names(), Fn: func(context.Context, models.FeatureVector) (float64, error) { return 100, nil }}
	boost := estimator.Func{Label: "lightgbm", Fields: fs.Names(), Fn: lgb}

	hub := NewHub()
	proc := usecase.NewForecastProcessor(rec, hub, usecase.NewStoreBackend("cache", store, store))
	fuc := usecase.NewForecastUseCase(feats, ann, boost, schema, proc, rec, usecase.ForecastOptions{
		LagHours:     24,
		HistoryHours: 24,
		Alpha:        0.6,
		BatchWorkers: 2,
		Confidence:   map[models.ModelType]float64{models.ModelFast: 93, models.ModelHybrid: 91},
	})
	auc := usecase.NewAnalysisUseCase(store, store, feats, schema, rec, usecase.AnalysisOptions{CostPerUnit: 0.16, ToleranceMax: 20})

	e := echo.New()
	h := NewForecastHandler(fuc, auc, hub)
	return &fixture{e: e, h: h, hub: hub}
}

func constant(v float64) func(context.Context, models.FeatureVector) (float64, error) {
	return func(context.Context, models.FeatureVector) (float64, error) { return v, nil }
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) int {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return env.Status
}

const predictTokyo = `{"cityName":" Tokyo ","startDate":"2024-07-02","endDate":"2024-07-02","modelType":"fast"}`

func TestPredictThenReadBack(t *testing.T) {
	f := newFixture(t, constant(120))
	f.h.RegisterRoutes(f.e)

	rec := f.do(http.MethodPost, "/api/predict", predictTokyo)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp PredictResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.RunID)
	assert.Len(t, resp.Points, 24)
	assert.Equal(t, 120.0, resp.Summary.ExpectedUsage)
	assert.Equal(t, "tokyo", resp.Summary.City)

	rec = f.do(http.MethodGet, "/api/model-specs/tokyo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var spec models.Summary
	decode(t, rec, &spec)
	assert.Equal(t, resp.Summary.ExpectedUsage, spec.ExpectedUsage)
	assert.Equal(t, models.ModelFast, spec.ModelType)

	rec = f.do(http.MethodGet, "/api/consumption-summary/tokyo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cons models.ConsumptionSummary
	decode(t, rec, &cons)
	assert.InDelta(t, 2880, cons.TotalConsumption, 1e-6)

	rec = f.do(http.MethodGet, "/api/prediction-result/tokyo", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPredictValidation(t *testing.T) {
	f := newFixture(t, constant(120))
	f.h.RegisterRoutes(f.e)

	tests := []struct {
		name string
		body string
	}{
		{"missing city", `{"startDate":"2024-07-02","endDate":"2024-07-02"}`},
		{"bad date", `{"cityName":"tokyo","startDate":"02/07/2024","endDate":"2024-07-02"}`},
		{"unknown model", `{"cityName":"tokyo","startDate":"2024-07-02","endDate":"2024-07-02","modelType":"deep"}`},
		{"end before start", `{"cityName":"tokyo","startDate":"2024-07-03","endDate":"2024-07-02"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestPredictErrorMapping(t *testing.T) {
	f := newFixture(t, constant(120))
	f.h.RegisterRoutes(f.e)
	rec := f.do(http.MethodPost, "/api/predict", `{"cityName":"lima","startDate":"2024-07-02","endDate":"2024-07-02"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "no history for lima")

	broken := newFixture(t, func(context.Context, models.FeatureVector) (float64, error) {
		return 0, errors.New("connection refused")
	})
	broken.h.RegisterRoutes(broken.e)
	rec = broken.do(http.MethodPost, "/api/predict", predictTokyo)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{drepo.ErrNotFound, http.StatusNotFound},
		{&forecast.RunError{Step: 3, Kind: forecast.ErrInvalidInput}, http.StatusBadRequest},
		{&forecast.RunError{Step: forecast.SeedStep, Kind: forecast.ErrInsufficientHistory}, http.StatusUnprocessableEntity},
		{usecase.ErrEmptyHorizon, http.StatusUnprocessableEntity},
		{summary.ErrEmptyWindow, http.StatusUnprocessableEntity},
		{&forecast.RunError{Step: 0, Kind: forecast.ErrEstimatorFailure}, http.StatusBadGateway},
		{&forecast.RunError{Step: 0, Kind: forecast.ErrSchemaMismatch}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, toAppError(tt.err).Status, tt.err.Error())
	}
}

func TestAnalysisEndpoints(t *testing.T) {
	f := newFixture(t, constant(100))
	f.h.RegisterRoutes(f.e)

	rec := f.do(http.MethodGet, "/api/model-specs/paris", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/weekday-demand/tokyo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var week []models.WeekdayDemand
	decode(t, rec, &week)
	assert.NotEmpty(t, week)

	rec = f.do(http.MethodGet, "/api/tolerance-test/tokyo?max=101", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodGet, "/api/tolerance-test/tokyo?max=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No stored forecast yet.
	rec = f.do(http.MethodGet, "/api/tolerance-test/tokyo?max=5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type recordingQueue struct {
	jobs []models.ForecastJob
}

func (q *recordingQueue) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	if msgType != usecase.JobType {
		return "", errors.New("unexpected type " + msgType)
	}
	q.jobs = append(q.jobs, payload.(models.ForecastJob))
	return "job-1", nil
}

func TestPredictAsyncQueuesJob(t *testing.T) {
	f := newFixture(t, constant(120))
	q := &recordingQueue{}
	f.h.SetJobQueue(q)
	f.h.RegisterRoutes(f.e)

	rec := f.do(http.MethodPost, "/api/predict/async", predictTokyo)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var body map[string]string
	decode(t, rec, &body)
	require.Len(t, q.jobs, 1)
	assert.NotEmpty(t, q.jobs[0].ID)
	assert.Equal(t, q.jobs[0].ID, body["jobId"])
	assert.Equal(t, "tokyo", q.jobs[0].City)
	assert.Equal(t, "fast", q.jobs[0].ModelType)

	rec = f.do(http.MethodPost, "/api/predict/async", `{"cityName":"tokyo","startDate":"2024-07-03","endDate":"2024-07-02"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, q.jobs, 1)

	rec = f.do(http.MethodPost, "/api/predict/async", predictTokyo)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.jobs, 2)
	assert.NotEqual(t, q.jobs[0].ID, q.jobs[1].ID, "each submission gets its own job id")
}

func TestPredictAsyncNeedsQueue(t *testing.T) {
	f := newFixture(t, constant(120))
	f.h.RegisterRoutes(f.e)
	rec := f.do(http.MethodPost, "/api/predict/async", predictTokyo)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictRateLimited(t *testing.T) {
	f := newFixture(t, constant(120))
	lim, err := ratelimit.New(0.001, 1, 16)
	require.NoError(t, err)
	rejected := 0
	f.h.SetPredictMiddleware(middleware.RateLimit(lim, func() { rejected++ }))
	f.h.RegisterRoutes(f.e)

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/predict", predictTokyo).Code)
	rec := f.do(http.MethodPost, "/api/predict", predictTokyo)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, rejected)

	// Read endpoints are not limited.
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/model-specs/tokyo", "").Code)
}
