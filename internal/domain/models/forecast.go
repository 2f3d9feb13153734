package models

import "time"

// ModelType selects the estimator arrangement for a run.
type ModelType string

const (
	// ModelFast runs the gradient-boosted estimator alone.
	ModelFast ModelType = "fast"
	// ModelHybrid blends the neural and gradient-boosted estimators.
	ModelHybrid ModelType = "hybrid"
)

// IsValid returns true if m is a supported model type.
func (m ModelType) IsValid() bool {
	return m == ModelFast || m == ModelHybrid
}

// NormalizeModelType converts a raw string to a model type, falling back to def.
func NormalizeModelType(s string, def ModelType) ModelType {
	m := ModelType(s)
	if m.IsValid() {
		return m
	}
	return def
}

// TimeSeriesRecord is one hourly observation. Features are aligned to the
// static feature schema. Demand is nil for future records.
type TimeSeriesRecord struct {
	Timestamp time.Time
	Features  []float64
	Demand    *float64
}

// Resolved reports whether the record carries a demand value.
func (r TimeSeriesRecord) Resolved() bool { return r.Demand != nil }

// WithDemand returns a copy of r carrying demand d.
func (r TimeSeriesRecord) WithDemand(d float64) TimeSeriesRecord {
	features := make([]float64, len(r.Features))
	copy(features, r.Features)
	return TimeSeriesRecord{Timestamp: r.Timestamp, Features: features, Demand: &d}
}

// FeatureVector is the full estimator input: static features followed by the
// synthesized lag and rolling demand fields.
type FeatureVector struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Get returns the value of the named field.
func (v FeatureVector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name && i < len(v.Values) {
			return v.Values[i], true
		}
	}
	return 0, false
}

// ForecastPoint is one estimated hour.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Demand    float64   `json:"demand"`
	Hour      int       `json:"hour"`
}

// ForecastResult is the ordered output of one run, one point per future record.
type ForecastResult struct {
	RunID     string          `json:"runId"`
	City      string          `json:"city"`
	Model     ModelType       `json:"model"`
	CreatedAt time.Time       `json:"createdAt"`
	Points    []ForecastPoint `json:"points"`
}

// Len returns the number of forecast points.
func (r ForecastResult) Len() int { return len(r.Points) }

// ForecastRun bundles a completed run with the reporting window it was requested for.
type ForecastRun struct {
	Result  ForecastResult  `json:"result"`
	From    time.Time       `json:"from"`
	To      time.Time       `json:"to"`
	Window  []ForecastPoint `json:"window"`
	Summary Summary         `json:"summary"`
}

// ForecastCompleted is the event emitted when a run has been delivered.
type ForecastCompleted struct {
	RunID     string    `json:"runId"`
	City      string    `json:"city"`
	Model     ModelType `json:"model"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Points    int       `json:"points"`
	Summary   Summary   `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}
