package usecase

import (
	"context"
	"testing"
	"time"

	"WattWise/internal/domain/models"
	drepo "WattWise/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalysis(t *testing.T) (*AnalysisUseCase, *fakeFeatureStore, *memStore) {
	t.Helper()
	fs := newFakeFeatureStore()
	st := newMemStore()
	a := NewAnalysisUseCase(st, st, fs, testSchema(), newFakeMetrics(), AnalysisOptions{CostPerUnit: 0.16, ToleranceMax: 20})
	return a, fs, st
}

func TestAnalysisNotFound(t *testing.T) {
	a, _, _ := newAnalysis(t)
	ctx := context.Background()

	_, err := a.ModelSpec(ctx, "tokyo")
	assert.ErrorIs(t, err, drepo.ErrNotFound)
	_, err = a.Consumption(ctx, "tokyo")
	assert.ErrorIs(t, err, drepo.ErrNotFound)
	_, err = a.WeekdayDemand(ctx, "tokyo")
	assert.ErrorIs(t, err, drepo.ErrNotFound)
}

func TestAnalysisConsumption(t *testing.T) {
	a, _, st := newAnalysis(t)
	ctx := context.Background()
	r := models.ForecastResult{City: "tokyo"}
	for i := 0; i < 48; i++ {
		r.Points = append(r.Points, models.ForecastPoint{Timestamp: day.Add(time.Duration(i) * time.Hour), Demand: 10})
	}
	require.NoError(t, st.SaveResult(ctx, r))

	c, err := a.Consumption(ctx, "tokyo")
	require.NoError(t, err)
	assert.Equal(t, 480.0, c.TotalConsumption)
	assert.Equal(t, 240.0, c.AverageDaily)
	assert.Equal(t, 76.8, c.EstimatedCost)
}

func TestAnalysisToleranceAndChart(t *testing.T) {
	a, fs, st := newAnalysis(t)
	ctx := context.Background()

	// observed 100 for the 4 hours starting at day; forecasts 100, 105, 118, 50
	fs.seedObserved("oslo", day.Add(4*time.Hour), 4, func(int) float64 { return 100 })
	preds := []float64{100, 105, 118, 50}
	r := models.ForecastResult{City: "oslo"}
	for i, p := range preds {
		r.Points = append(r.Points, models.ForecastPoint{Timestamp: day.Add(time.Duration(i) * time.Hour), Demand: p})
	}
	require.NoError(t, st.SaveResult(ctx, r))

	tol, err := a.Tolerance(ctx, "oslo", -1)
	require.NoError(t, err)
	require.Len(t, tol, 21)
	assert.Equal(t, 25.0, tol[0].Accuracy)
	assert.Equal(t, 50.0, tol[5].Accuracy)
	assert.Equal(t, 75.0, tol[20].Accuracy)

	tol, err = a.Tolerance(ctx, "oslo", 5)
	require.NoError(t, err)
	assert.Len(t, tol, 6)

	chart, err := a.ActualVsPredicted(ctx, "oslo", 2)
	require.NoError(t, err)
	require.Len(t, chart, 2)
	assert.Equal(t, "2024-07-02 01:00", chart[1].Time)
	assert.Equal(t, 105.0, chart[1].Predicted)
	assert.Equal(t, 100.0, chart[1].Actual)
}

func TestAnalysisBreakdowns(t *testing.T) {
	a, fs, _ := newAnalysis(t)
	ctx := context.Background()
	// one week of hourly data ending at day (a Tuesday); demand equals the ISO weekday
	fs.seedObserved("rome", day, 7*24, func(i int) float64 {
		ts := day.Add(time.Duration(i-7*24) * time.Hour)
		return featuresAt(ts)[2]
	})

	wd, err := a.WeekdayDemand(ctx, "rome")
	require.NoError(t, err)
	require.Len(t, wd, 7)
	assert.Equal(t, "Monday", wd[0].Day)
	assert.Equal(t, 1.0, wd[0].Demand)
	assert.Equal(t, 7.0, wd[6].Demand)

	hol, err := a.HolidayDemand(ctx, "rome")
	require.NoError(t, err)
	assert.Equal(t, 4.0, hol[0].Demand)
	assert.Equal(t, 0.0, hol[1].Demand)

	seasons, err := a.SeasonalTrends(ctx, "rome")
	require.NoError(t, err)
	require.Len(t, seasons, 4)
	assert.Equal(t, "Summer", seasons[1].Season)
	assert.Equal(t, 4.0, seasons[1].Demand)
	assert.Equal(t, 0.0, seasons[0].Demand)
}
