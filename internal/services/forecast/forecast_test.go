package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WattWise/internal/domain/models"
	"WattWise/internal/services/features"
)

var t0 = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

// recordingEstimator returns fn(step, vector) and remembers every vector it saw.
type recordingEstimator struct {
	name   string
	schema []string
	fn     func(call int, v models.FeatureVector) (float64, error)
	seen   []models.FeatureVector
}

func (e *recordingEstimator) Name() string     { return e.name }
func (e *recordingEstimator) Schema() []string { return e.schema }
func (e *recordingEstimator) Predict(_ context.Context, v models.FeatureVector) (float64, error) {
	call := len(e.seen)
	e.seen = append(e.seen, v)
	return e.fn(call, v)
}

func constant(name string, s features.Schema, y float64) *recordingEstimator {
	return &recordingEstimator{name: name, schema: s.Names(), fn: func(int, models.FeatureVector) (float64, error) { return y, nil }}
}

func testSchema(t *testing.T) features.Schema {
	t.Helper()
	s, err := features.NewSchema([]string{"temperature", "hour"})
	require.NoError(t, err)
	return s
}

func history(values ...float64) []models.TimeSeriesRecord {
	out := make([]models.TimeSeriesRecord, len(values))
	for i, v := range values {
		d := v
		ts := t0.Add(time.Duration(i) * time.Hour)
		out[i] = models.TimeSeriesRecord{Timestamp: ts, Features: []float64{20, float64(ts.Hour())}, Demand: &d}
	}
	return out
}

func future(after []models.TimeSeriesRecord, n int) []models.TimeSeriesRecord {
	start := after[len(after)-1].Timestamp
	out := make([]models.TimeSeriesRecord, n)
	for i := range out {
		ts := start.Add(time.Duration(i+1) * time.Hour)
		out[i] = models.TimeSeriesRecord{Timestamp: ts, Features: []float64{25, float64(ts.Hour())}}
	}
	return out
}

func series(from float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)
	}
	return out
}

func lagRoll(t *testing.T, v models.FeatureVector) (float64, float64) {
	t.Helper()
	lag, ok := v.Get(features.LagField)
	require.True(t, ok)
	roll, ok := v.Get(features.RollField)
	require.True(t, ok)
	return lag, roll
}

func TestRunFullWindowLagAndRoll(t *testing.T) {
	s := testSchema(t)
	h := history(series(100, 24)...)
	est := constant("lgb", s, 130)

	points, err := Run(context.Background(), RunConfig{
		History: h, Future: future(h, 1), Model: SingleModel{Estimator: est}, Schema: s, LagSize: 24,
	})
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.Len(t, est.seen, 1)

	lag, roll := lagRoll(t, est.seen[0])
	assert.Equal(t, 100.0, lag)
	assert.InDelta(t, 111.5, roll, 1e-9)
	assert.Equal(t, []float64{25, 0, 100, 111.5}, est.seen[0].Values)
}

func TestRunEnsembleCombines(t *testing.T) {
	s := testSchema(t)
	h := history(series(100, 24)...)
	m, err := NewEnsembleModel(constant("ann", s, 120), constant("lgb", s, 100), 0.6)
	require.NoError(t, err)

	points, err := Run(context.Background(), RunConfig{History: h, Future: future(h, 1), Model: m, Schema: s, LagSize: 24})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 112, points[0].Demand, 1e-9)
}

func TestRunFeedsPredictionsBack(t *testing.T) {
	s := testSchema(t)
	vals := series(100, 24)
	h := history(vals...)
	est := &recordingEstimator{name: "lgb", schema: s.Names(), fn: func(call int, _ models.FeatureVector) (float64, error) {
		if call == 0 {
			return 50, nil
		}
		return 60, nil
	}}

	_, err := Run(context.Background(), RunConfig{History: h, Future: future(h, 2), Model: SingleModel{Estimator: est}, Schema: s, LagSize: 24})
	require.NoError(t, err)
	require.Len(t, est.seen, 2)

	window := append(append([]float64{}, vals[1:]...), 50)
	var sum float64
	for _, v := range window {
		sum += v
	}
	lag, roll := lagRoll(t, est.seen[1])
	assert.Equal(t, 101.0, lag)
	assert.InDelta(t, sum/24, roll, 1e-9)
}

func TestRunShortHistoryUsesAvailable(t *testing.T) {
	s := testSchema(t)
	h := history(10, 20, 30, 40, 50)
	est := constant("lgb", s, 1)

	_, err := Run(context.Background(), RunConfig{History: h, Future: future(h, 1), Model: SingleModel{Estimator: est}, Schema: s, LagSize: 24})
	require.NoError(t, err)
	lag, roll := lagRoll(t, est.seen[0])
	assert.True(t, features.IsMissing(lag), "lag %v is only 5 steps back", lag)
	assert.InDelta(t, 30, roll, 1e-9)
}

func TestRunLagAppearsOnceWindowFills(t *testing.T) {
	s := testSchema(t)
	h := history(series(1, 22)...)
	est := constant("lgb", s, 100)

	_, err := Run(context.Background(), RunConfig{History: h, Future: future(h, 3), Model: SingleModel{Estimator: est}, Schema: s, LagSize: 24})
	require.NoError(t, err)
	require.Len(t, est.seen, 3)

	for step, want := range []struct {
		missing bool
		roll    float64
	}{
		{true, 11.5},
		{true, (253.0 + 100) / 23},
		{false, (253.0 + 200) / 24},
	} {
		lag, roll := lagRoll(t, est.seen[step])
		assert.Equal(t, want.missing, features.IsMissing(lag), "step %d", step)
		assert.InDelta(t, want.roll, roll, 1e-9, "step %d", step)
	}
	lag, _ := lagRoll(t, est.seen[2])
	assert.Equal(t, 1.0, lag)
}

func TestRunHorizonShorterThanLag(t *testing.T) {
	s := testSchema(t)
	h := history(series(1, 48)...)
	f := future(h, 3)

	points, err := Run(context.Background(), RunConfig{History: h, Future: f, Model: SingleModel{Estimator: constant("lgb", s, 7)}, Schema: s, LagSize: 24})
	require.NoError(t, err)
	require.Len(t, points, 3)
	for i, p := range points {
		assert.Equal(t, f[i].Timestamp, p.Timestamp)
		assert.Equal(t, f[i].Timestamp.Hour(), p.Hour)
	}
}

func TestRunEmptyHorizon(t *testing.T) {
	s := testSchema(t)
	h := history(1, 2, 3)
	est := constant("lgb", s, 1)

	points, err := Run(context.Background(), RunConfig{History: h, Model: SingleModel{Estimator: est}, Schema: s, LagSize: 24})
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.Empty(t, est.seen)
}

func TestRunLengthAndOrder(t *testing.T) {
	s := testSchema(t)
	h := history(series(500, 30)...)
	f := future(h, 72)
	est := &recordingEstimator{name: "lgb", schema: s.Names(), fn: func(call int, _ models.FeatureVector) (float64, error) {
		return float64(call), nil
	}}

	points, err := Run(context.Background(), RunConfig{History: h, Future: f, Model: SingleModel{Estimator: est}, Schema: s, LagSize: 24})
	require.NoError(t, err)
	require.Len(t, points, len(f))
	for i, p := range points {
		assert.Equal(t, f[i].Timestamp, p.Timestamp)
		assert.Equal(t, float64(i), p.Demand)
	}
}

func TestRunDeterministic(t *testing.T) {
	s := testSchema(t)
	h := history(series(100, 24)...)
	f := future(h, 48)
	model := func() Model {
		a := &recordingEstimator{name: "ann", schema: s.Names(), fn: func(_ int, v models.FeatureVector) (float64, error) {
			lag, _ := v.Get(features.LagField)
			roll, _ := v.Get(features.RollField)
			return 0.3*lag + 0.7*roll + 1, nil
		}}
		b := &recordingEstimator{name: "lgb", schema: s.Names(), fn: func(_ int, v models.FeatureVector) (float64, error) {
			roll, _ := v.Get(features.RollField)
			return roll * 1.01, nil
		}}
		m, err := NewEnsembleModel(a, b, 0.6)
		require.NoError(t, err)
		return m
	}

	first, err := Run(context.Background(), RunConfig{History: h, Future: f, Model: model(), Schema: s, LagSize: 24})
	require.NoError(t, err)
	second, err := Run(context.Background(), RunConfig{History: h, Future: f, Model: model(), Schema: s, LagSize: 24})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunDoesNotMutateInputs(t *testing.T) {
	s := testSchema(t)
	h := history(1, 2, 3)
	f := future(h, 4)

	_, err := Run(context.Background(), RunConfig{History: h, Future: f, Model: SingleModel{Estimator: constant("lgb", s, 9)}, Schema: s, LagSize: 2})
	require.NoError(t, err)
	assert.Len(t, h, 3)
	for _, r := range f {
		assert.Nil(t, r.Demand)
	}
}

func TestRunEmptyHistory(t *testing.T) {
	s := testSchema(t)
	est := constant("lgb", s, 1)
	_, err := Run(context.Background(), RunConfig{Future: future(history(1), 2), Model: SingleModel{Estimator: est}, Schema: s, LagSize: 24})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
	var re *RunError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, SeedStep, re.Step)
	assert.Empty(t, est.seen)
}

func TestRunUnresolvedHistory(t *testing.T) {
	s := testSchema(t)
	h := history(1, 2)
	h[1].Demand = nil
	_, err := Run(context.Background(), RunConfig{History: h, Future: future(h, 1), Model: SingleModel{Estimator: constant("lgb", s, 1)}, Schema: s, LagSize: 24})
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestRunEstimatorSchemaMismatch(t *testing.T) {
	s := testSchema(t)
	h := history(1, 2, 3)
	bad := &recordingEstimator{name: "ann", schema: []string{"hour", "temperature", features.LagField, features.RollField},
		fn: func(int, models.FeatureVector) (float64, error) { return 1, nil }}
	good := constant("lgb", s, 1)
	m, err := NewEnsembleModel(bad, good, 0.6)
	require.NoError(t, err)

	_, err = Run(context.Background(), RunConfig{History: h, Future: future(h, 3), Model: m, Schema: s, LagSize: 24})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Empty(t, bad.seen)
	assert.Empty(t, good.seen)
}

func TestRunRecordWidthMismatchBeforeAnyPrediction(t *testing.T) {
	s := testSchema(t)
	h := history(1, 2, 3)
	f := future(h, 4)
	f[2].Features = []float64{1}
	est := constant("lgb", s, 1)

	_, err := Run(context.Background(), RunConfig{History: h, Future: f, Model: SingleModel{Estimator: est}, Schema: s, LagSize: 24})
	require.ErrorIs(t, err, ErrSchemaMismatch)
	var re *RunError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 2, re.Step)
	assert.Empty(t, est.seen)
}

func TestRunEstimatorFailureIsFatal(t *testing.T) {
	s := testSchema(t)
	h := history(1, 2, 3)
	boom := errors.New("model server down")
	est := &recordingEstimator{name: "lgb", schema: s.Names(), fn: func(call int, _ models.FeatureVector) (float64, error) {
		if call == 3 {
			return 0, boom
		}
		return 1, nil
	}}

	points, err := Run(context.Background(), RunConfig{History: h, Future: future(h, 10), Model: SingleModel{Estimator: est}, Schema: s, LagSize: 24})
	assert.Nil(t, points)
	assert.ErrorIs(t, err, ErrEstimatorFailure)
	assert.ErrorIs(t, err, boom)
	var re *RunError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 3, re.Step)
	assert.Equal(t, "estimator_failure", KindOf(err))
}

func TestRunNonFiniteEstimateIsFailure(t *testing.T) {
	s := testSchema(t)
	h := history(1, 2, 3)
	_, err := Run(context.Background(), RunConfig{History: h, Future: future(h, 1), Model: SingleModel{Estimator: constant("lgb", s, math.NaN())}, Schema: s, LagSize: 24})
	assert.ErrorIs(t, err, ErrEstimatorFailure)
}

func TestRunRejectsOverlappingHorizon(t *testing.T) {
	s := testSchema(t)
	h := history(1, 2, 3)
	f := []models.TimeSeriesRecord{{Timestamp: h[2].Timestamp, Features: []float64{1, 2}}}
	_, err := Run(context.Background(), RunConfig{History: h, Future: f, Model: SingleModel{Estimator: constant("lgb", s, 1)}, Schema: s, LagSize: 24})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type anomalyObserver struct {
	steps     int
	anomalies []string
}

func (o *anomalyObserver) OnStep(int, models.ForecastPoint) { o.steps++ }
func (o *anomalyObserver) OnAnomaly(_ int, _ models.ForecastPoint, reason string) {
	o.anomalies = append(o.anomalies, reason)
}

func TestRunRangeAnomalyIsNotFatal(t *testing.T) {
	s := testSchema(t)
	h := history(1, 2, 3)
	est := &recordingEstimator{name: "lgb", schema: s.Names(), fn: func(call int, _ models.FeatureVector) (float64, error) {
		switch call {
		case 0:
			return -5, nil
		case 1:
			return 5000, nil
		}
		return 10, nil
	}}
	obs := &anomalyObserver{}

	points, err := Run(context.Background(), RunConfig{
		History: h, Future: future(h, 3), Model: SingleModel{Estimator: est}, Schema: s, LagSize: 24,
		Range: RangeCheck{Max: 1000}, Observer: obs,
	})
	require.NoError(t, err)
	assert.Equal(t, -5.0, points[0].Demand)
	assert.Equal(t, 5000.0, points[1].Demand)
	assert.Equal(t, []string{AnomalyNegative, AnomalyAboveMax}, obs.anomalies)
	assert.Equal(t, 3, obs.steps)
}

func TestRunRequiresModelAndLag(t *testing.T) {
	s := testSchema(t)
	h := history(1)
	_, err := Run(context.Background(), RunConfig{History: h, Schema: s, LagSize: 24})
	assert.Error(t, err)
	_, err = Run(context.Background(), RunConfig{History: h, Model: SingleModel{Estimator: constant("lgb", s, 1)}, Schema: s})
	assert.Error(t, err)
}
