package estimator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WattWise/internal/domain/models"
	"WattWise/internal/services/features"
	"WattWise/pkg/config"
)

func schema(t *testing.T) features.Schema {
	t.Helper()
	s, err := features.NewSchema([]string{"temperature", "hour"})
	require.NoError(t, err)
	return s
}

func vector(t *testing.T, s features.Schema) models.FeatureVector {
	t.Helper()
	v, err := s.Assemble([]float64{30, 12}, 100, 110)
	require.NoError(t, err)
	return v
}

func valuesOf(r predictReq) []float64 {
	out := make([]float64, len(r.Values))
	for i, v := range r.Values {
		out[i] = features.Missing
		if v != nil {
			out[i] = *v
		}
	}
	return out
}

func TestHTTPEstimatorPredict(t *testing.T) {
	var got predictReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lgb/predict", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"prediction": 812.5}`))
	}))
	defer srv.Close()

	cfg, err := config.Default()
	require.NoError(t, err)
	s := schema(t)
	est, err := NewLightGBMEstimator(cfg, s, NewHTTPServiceBase(srv.URL, time.Second, 0))
	require.NoError(t, err)

	y, err := est.Predict(context.Background(), vector(t, s))
	require.NoError(t, err)
	assert.Equal(t, 812.5, y)
	assert.Equal(t, LightGBMName, got.Model)
	assert.Equal(t, s.Names(), got.Names)
	assert.Equal(t, []float64{30, 12, 100, 110}, valuesOf(got))
	assert.Equal(t, s.Names(), est.Schema())
}

func TestANNEstimatorScalesInputs(t *testing.T) {
	var got predictReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"prediction": 1}`))
	}))
	defer srv.Close()

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Models.ANN.Scaler.Min = []float64{0, 0, 0, 0}
	cfg.Models.ANN.Scaler.Max = []float64{60, 24, 200, 220}
	s := schema(t)
	est, err := NewANNEstimator(cfg, s, NewHTTPServiceBase(srv.URL, time.Second, 0))
	require.NoError(t, err)

	_, err = est.Predict(context.Background(), vector(t, s))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.5, 0.5}, valuesOf(got), 1e-12)
	assert.Equal(t, ANNName, got.Model)
}

func TestEstimatorsSendMissingLagAsNull(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(b))
		_, _ = w.Write([]byte(`{"prediction": 5}`))
	}))
	defer srv.Close()

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Models.ANN.Scaler.Min = []float64{0, 0, 0, 0}
	cfg.Models.ANN.Scaler.Max = []float64{60, 24, 200, 220}
	s := schema(t)
	base := NewHTTPServiceBase(srv.URL, time.Second, 0)
	lgb, err := NewLightGBMEstimator(cfg, s, base)
	require.NoError(t, err)
	ann, err := NewANNEstimator(cfg, s, base)
	require.NoError(t, err)

	v, err := s.Assemble([]float64{30, 12}, features.Missing, 110)
	require.NoError(t, err)
	_, err = lgb.Predict(context.Background(), v)
	require.NoError(t, err)
	_, err = ann.Predict(context.Background(), v)
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], `"values":[30,12,null,110]`)
	assert.Contains(t, bodies[1], `"values":[0.5,0.5,null,0.5]`)
}

func TestANNEstimatorScalerWidth(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Models.ANN.Scaler.Min = []float64{0}
	cfg.Models.ANN.Scaler.Max = []float64{1}
	_, err = NewANNEstimator(cfg, schema(t), NewHTTPServiceBase("http://x", time.Second, 0))
	assert.Error(t, err)
}

func TestHTTPEstimatorRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"prediction": 3}`))
	}))
	defer srv.Close()

	s := schema(t)
	est, err := NewHTTPEstimator("lightgbm", "/p", s, nil, NewHTTPServiceBase(srv.URL, time.Second, 2))
	require.NoError(t, err)
	y, err := est.Predict(context.Background(), vector(t, s))
	require.NoError(t, err)
	assert.Equal(t, 3.0, y)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestHTTPEstimatorDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad features", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := schema(t)
	est, err := NewHTTPEstimator("lightgbm", "/p", s, nil, NewHTTPServiceBase(srv.URL, time.Second, 3))
	require.NoError(t, err)
	_, err = est.Predict(context.Background(), vector(t, s))
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestHTTPEstimatorMissingPrediction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := schema(t)
	est, err := NewHTTPEstimator("lightgbm", "/p", s, nil, NewHTTPServiceBase(srv.URL, time.Second, 0))
	require.NoError(t, err)
	_, err = est.Predict(context.Background(), vector(t, s))
	assert.Error(t, err)
}

func TestFunc(t *testing.T) {
	f := Func{Label: "const", Fields: []string{"a"}, Fn: func(context.Context, models.FeatureVector) (float64, error) { return 4, nil }}
	y, err := f.Predict(context.Background(), models.FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, 4.0, y)
	assert.Equal(t, "const", f.Name())
	assert.Equal(t, []string{"a"}, f.Schema())
}
