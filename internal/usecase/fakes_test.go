package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"WattWise/internal/domain/models"
	drepo "WattWise/internal/domain/repository"
	"WattWise/internal/services/estimator"
	"WattWise/internal/services/features"
)

var day = time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)

type fakeFeatureStore struct {
	observed map[string][]models.TimeSeriesRecord
	future   map[string][]models.TimeSeriesRecord
}

func newFakeFeatureStore() *fakeFeatureStore {
	return &fakeFeatureStore{
		observed: map[string][]models.TimeSeriesRecord{},
		future:   map[string][]models.TimeSeriesRecord{},
	}
}

func (f *fakeFeatureStore) HistoryBefore(_ context.Context, city string, ts time.Time, n int) ([]models.TimeSeriesRecord, error) {
	var out []models.TimeSeriesRecord
	for _, r := range f.observed[city] {
		if r.Timestamp.Before(ts) {
			out = append(out, r)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (f *fakeFeatureStore) FutureFeatures(_ context.Context, city string, after, to time.Time) ([]models.TimeSeriesRecord, error) {
	var out []models.TimeSeriesRecord
	for _, r := range f.future[city] {
		if r.Timestamp.After(after) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFeatureStore) Observed(_ context.Context, city string, from, to time.Time) ([]models.TimeSeriesRecord, error) {
	var out []models.TimeSeriesRecord
	for _, r := range f.observed[city] {
		if (!from.IsZero() && r.Timestamp.Before(from)) || (!to.IsZero() && r.Timestamp.After(to)) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// static layout: season, hour, weekday, public_holiday
func testSchema() Schema {
	fs, err := features.NewSchema([]string{"season", "hour", "weekday", "public_holiday"})
	if err != nil {
		panic(err)
	}
	return NewSchema(fs)
}

func featuresAt(ts time.Time) []float64 {
	wd := int(ts.Weekday())
	if wd == 0 {
		wd = 7
	}
	return []float64{3, float64(ts.Hour()), float64(wd), 0}
}

// seedObserved adds n hourly resolved records ending just before end.
func (f *fakeFeatureStore) seedObserved(city string, end time.Time, n int, demand func(i int) float64) {
	for i := 0; i < n; i++ {
		ts := end.Add(time.Duration(i-n) * time.Hour)
		d := demand(i)
		f.observed[city] = append(f.observed[city], models.TimeSeriesRecord{Timestamp: ts, Features: featuresAt(ts), Demand: &d})
	}
}

// seedFuture adds n hourly unresolved records starting at start.
func (f *fakeFeatureStore) seedFuture(city string, start time.Time, n int) {
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		f.future[city] = append(f.future[city], models.TimeSeriesRecord{Timestamp: ts, Features: featuresAt(ts)})
	}
}

func constEstimator(name string, s Schema, y float64) estimator.Func {
	return estimator.Func{
		Label:  name,
		Fields: s.Features.Names(),
		Fn:     func(context.Context, models.FeatureVector) (float64, error) { return y, nil },
	}
}

type fakeMetrics struct {
	mu        sync.Mutex
	runs      map[string]int
	errors    map[string]int
	anomalies map[string]int
	delivered map[string]int
	steps     int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{runs: map[string]int{}, errors: map[string]int{}, anomalies: map[string]int{}, delivered: map[string]int{}}
}

func (m *fakeMetrics) RecordRun(model, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[model+"/"+status]++
}

func (m *fakeMetrics) RecordSteps(_ string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps += n
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordAnomaly(city, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anomalies[city+"/"+kind]++
}

func (m *fakeMetrics) RecordLastForecast(string, float64) {}

func (m *fakeMetrics) RecordDelivered(backend, city string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered[backend+"/"+city]++
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

var _ drepo.Metrics = (*fakeMetrics)(nil)

type memStore struct {
	mu        sync.Mutex
	results   map[string]models.ForecastResult
	summaries map[string]models.Summary
}

func newMemStore() *memStore {
	return &memStore{results: map[string]models.ForecastResult{}, summaries: map[string]models.Summary{}}
}

func (s *memStore) SaveResult(_ context.Context, r models.ForecastResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.City] = r
	return nil
}

func (s *memStore) LatestResult(_ context.Context, city string) (models.ForecastResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[city]
	if !ok {
		return r, drepo.ErrNotFound
	}
	return r, nil
}

func (s *memStore) SaveSummary(_ context.Context, sum models.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.City] = sum
	return nil
}

func (s *memStore) GetSummary(_ context.Context, city string) (models.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[city]
	if !ok {
		return sum, drepo.ErrNotFound
	}
	return sum, nil
}

type failingBackend struct{}

func (failingBackend) Name() string { return "broken" }
func (failingBackend) Deliver(context.Context, models.ForecastRun) error {
	return errors.New("backend down")
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.ForecastCompleted
}

func (n *recordingNotifier) Notify(ev models.ForecastCompleted) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}
