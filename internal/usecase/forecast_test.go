package usecase

import (
	"context"
	"testing"
	"time"

	"WattWise/internal/domain/models"
	"WattWise/internal/services/forecast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store    *fakeFeatureStore
	metrics  *fakeMetrics
	results  *memStore
	notifier *recordingNotifier
	uc       *ForecastUseCase
}

func newHarness(t *testing.T, ann, lgb float64, extra ...Backend) *harness {
	t.Helper()
	s := testSchema()
	h := &harness{
		store:    newFakeFeatureStore(),
		metrics:  newFakeMetrics(),
		results:  newMemStore(),
		notifier: &recordingNotifier{},
	}
	backends := append([]Backend{NewStoreBackend("clickhouse", h.results, h.results)}, extra...)
	proc := NewForecastProcessor(h.metrics, h.notifier, backends...)
	h.uc = NewForecastUseCase(h.store, constEstimator("ann", s, ann), constEstimator("lightgbm", s, lgb), s, proc, h.metrics, ForecastOptions{
		LagHours:     24,
		HistoryHours: 24,
		Alpha:        0.6,
		BatchWorkers: 2,
		Confidence:   map[models.ModelType]float64{models.ModelFast: 93, models.ModelHybrid: 91},
	})
	h.uc.newID = func() string { return "run-1" }
	h.uc.now = func() time.Time { return day.Add(-time.Hour) }
	return h
}

func oneDay(city string, m models.ModelType) PredictParams {
	return PredictParams{City: city, From: day, To: day.Add(24*time.Hour - time.Second), Model: m}
}

func TestPredictFastSummarizesWindow(t *testing.T) {
	h := newHarness(t, 0, 120)
	h.store.seedObserved("tokyo", day, 48, func(int) float64 { return 100 })
	h.store.seedFuture("tokyo", day, 48)

	run, err := h.uc.Predict(context.Background(), oneDay("tokyo", models.ModelFast))
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.Result.RunID)
	assert.Len(t, run.Result.Points, 24, "future is cut at the end of the window")
	assert.Len(t, run.Window, 24)
	assert.Equal(t, 120.0, run.Summary.ExpectedUsage)
	assert.Equal(t, 0.0, run.Summary.PercentChange)
	assert.Equal(t, 93.0, run.Summary.Confidence)
	assert.Equal(t, "July 02, 2024", run.Summary.PeakDay)
	assert.Equal(t, "00:00-01:00", run.Summary.PeakHour)
	assert.Equal(t, "tokyo", run.Summary.City)

	stored, err := h.results.GetSummary(context.Background(), "tokyo")
	require.NoError(t, err)
	assert.Equal(t, run.Summary, stored)
	assert.Equal(t, 1, h.metrics.runs["fast/ok"])
	assert.Equal(t, 24, h.metrics.steps)
	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, 24, h.notifier.events[0].Points)
}

func TestPredictHybridBlendsEstimators(t *testing.T) {
	h := newHarness(t, 100, 200)
	h.store.seedObserved("oslo", day, 24, func(int) float64 { return 150 })
	h.store.seedFuture("oslo", day, 24)

	run, err := h.uc.Predict(context.Background(), oneDay("oslo", models.ModelHybrid))
	require.NoError(t, err)
	for _, p := range run.Result.Points {
		assert.InDelta(t, 140, p.Demand, 1e-9)
	}
	assert.Equal(t, 91.0, run.Summary.Confidence)
}

func TestPredictWithoutHistoryFails(t *testing.T) {
	h := newHarness(t, 100, 100)
	h.store.seedFuture("lima", day, 24)

	_, err := h.uc.Predict(context.Background(), oneDay("lima", models.ModelFast))
	require.Error(t, err)
	assert.ErrorIs(t, err, forecast.ErrInsufficientHistory)
	assert.Equal(t, 1, h.metrics.runs["fast/insufficient_history"])
	assert.Empty(t, h.notifier.events, "failed runs are never delivered")
	_, err = h.results.LatestResult(context.Background(), "lima")
	assert.Error(t, err)
}

func TestPredictEmptyHorizon(t *testing.T) {
	h := newHarness(t, 100, 100)
	h.store.seedObserved("lima", day, 24, func(int) float64 { return 1 })

	_, err := h.uc.Predict(context.Background(), oneDay("lima", models.ModelFast))
	assert.ErrorIs(t, err, ErrEmptyHorizon)
}

func TestPredictUnknownModel(t *testing.T) {
	h := newHarness(t, 100, 100)
	_, err := h.uc.Predict(context.Background(), oneDay("lima", models.ModelType("slow")))
	assert.ErrorIs(t, err, forecast.ErrInvalidInput)
}

func TestPredictReportsAnomaliesWithoutFailing(t *testing.T) {
	h := newHarness(t, 0, -5)
	h.store.seedObserved("kyiv", day, 24, func(int) float64 { return 10 })
	h.store.seedFuture("kyiv", day, 3)

	run, err := h.uc.Predict(context.Background(), oneDay("kyiv", models.ModelFast))
	require.NoError(t, err)
	assert.Len(t, run.Result.Points, 3)
	assert.Equal(t, 3, h.metrics.anomalies["kyiv/negative"])
}

func TestPredictSurvivesBackendFailure(t *testing.T) {
	h := newHarness(t, 0, 50, failingBackend{})
	h.store.seedObserved("rome", day, 24, func(int) float64 { return 10 })
	h.store.seedFuture("rome", day, 24)

	_, err := h.uc.Predict(context.Background(), oneDay("rome", models.ModelFast))
	require.NoError(t, err)
	assert.Equal(t, 1, h.metrics.delivered["clickhouse/rome"])
	assert.Equal(t, 1, h.metrics.errors["deliver_broken"])
	assert.Len(t, h.notifier.events, 1)
}

func TestPredictBatchIsolatesFailures(t *testing.T) {
	h := newHarness(t, 0, 70)
	h.store.seedObserved("tokyo", day, 24, func(int) float64 { return 60 })
	h.store.seedFuture("tokyo", day, 24)
	h.store.seedFuture("nowhere", day, 24)

	items, err := h.uc.PredictBatch(context.Background(), []string{"tokyo", "nowhere"}, day, day.Add(24*time.Hour-time.Second), models.ModelFast)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "tokyo", items[0].City)
	require.NotNil(t, items[0].Summary)
	assert.Equal(t, 70.0, items[0].Summary.ExpectedUsage)

	assert.Equal(t, "nowhere", items[1].City)
	assert.Nil(t, items[1].Summary)
	assert.Equal(t, "insufficient_history", items[1].Kind)
}

func TestPredictBatchCancelled(t *testing.T) {
	h := newHarness(t, 0, 70)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.uc.PredictBatch(ctx, []string{"tokyo"}, day, day.Add(time.Hour), models.ModelFast)
	assert.ErrorIs(t, err, context.Canceled)
}
