package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	stepsTotal    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	anomalies     *prometheus.CounterVec
	lastForecast  *prometheus.GaugeVec
	deliveredSent *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wattwise_forecast_runs_total",
				Help: "Total number of forecast runs by model and outcome",
			},
			[]string{"model", "status"},
		),
		stepsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wattwise_forecast_steps_total",
				Help: "Total number of hourly steps predicted",
			},
			[]string{"model"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wattwise_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wattwise_range_anomalies_total",
				Help: "Estimates outside the plausible demand range",
			},
			[]string{"city", "kind"},
		),
		lastForecast: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wattwise_last_forecast_demand",
				Help: "Last predicted hourly demand for a city",
			},
			[]string{"city"},
		),
		deliveredSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wattwise_runs_delivered_total",
				Help: "Total number of forecast runs delivered to an output backend",
			},
			[]string{"backend", "city"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wattwise_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRun counts a finished run.
func (r *Recorder) RecordRun(model, status string) {
	r.runsTotal.WithLabelValues(model, status).Inc()
}

// RecordSteps counts predicted steps.
func (r *Recorder) RecordSteps(model string, n int) {
	r.stepsTotal.WithLabelValues(model).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordAnomaly counts a range anomaly.
func (r *Recorder) RecordAnomaly(city, kind string) {
	r.anomalies.WithLabelValues(city, kind).Inc()
}

// RecordLastForecast records the final predicted demand of a run.
func (r *Recorder) RecordLastForecast(city string, v float64) {
	r.lastForecast.WithLabelValues(city).Set(v)
}

// RecordDelivered records a run sent to a backend.
func (r *Recorder) RecordDelivered(backend, city string) {
	r.deliveredSent.WithLabelValues(backend, city).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
