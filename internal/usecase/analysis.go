package usecase

import (
	"context"
	"fmt"
	"time"

	"WattWise/internal/domain/models"
	drepo "WattWise/internal/domain/repository"
	"WattWise/internal/services/summary"
	applogger "WattWise/pkg/logger"
)

// AnalysisOptions tunes the dashboard reductions.
type AnalysisOptions struct {
	CostPerUnit  float64
	ToleranceMax int
}

// AnalysisUseCase answers the read-only dashboard queries.
type AnalysisUseCase struct {
	summaries drepo.SummaryStore
	results   drepo.ForecastStore
	features  drepo.FeatureStore
	schema    Schema
	opts      AnalysisOptions
	metrics   drepo.Metrics
	l         *applogger.Logger
}

func NewAnalysisUseCase(
	summaries drepo.SummaryStore,
	results drepo.ForecastStore,
	features drepo.FeatureStore,
	schema Schema,
	metrics drepo.Metrics,
	opts AnalysisOptions,
) *AnalysisUseCase {
	return &AnalysisUseCase{
		summaries: summaries,
		results:   results,
		features:  features,
		schema:    schema,
		opts:      opts,
		metrics:   metrics,
		l:         applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (a *AnalysisUseCase) SetLogger(l *applogger.Logger) { a.l = l }

func (a *AnalysisUseCase) observe(op string, start time.Time) {
	a.metrics.RecordLatency("analysis_"+op, time.Since(start).Seconds())
}

// ModelSpec returns the latest stored summary for city.
func (a *AnalysisUseCase) ModelSpec(ctx context.Context, city string) (models.Summary, error) {
	defer a.observe("model_spec", time.Now())
	return a.summaries.GetSummary(ctx, city)
}

// LatestResult returns the most recent forecast run for city.
func (a *AnalysisUseCase) LatestResult(ctx context.Context, city string) (models.ForecastResult, error) {
	defer a.observe("latest_result", time.Now())
	return a.results.LatestResult(ctx, city)
}

// Consumption totals the latest forecast.
func (a *AnalysisUseCase) Consumption(ctx context.Context, city string) (models.ConsumptionSummary, error) {
	defer a.observe("consumption", time.Now())
	r, err := a.results.LatestResult(ctx, city)
	if err != nil {
		return models.ConsumptionSummary{}, err
	}
	return summary.Consumption(r.Points, a.opts.CostPerUnit)
}

// Tolerance scores the latest forecast against observed demand for the same
// hours. max < 0 uses the configured maximum.
func (a *AnalysisUseCase) Tolerance(ctx context.Context, city string, max int) ([]models.ToleranceAccuracy, error) {
	defer a.observe("tolerance", time.Now())
	if max < 0 {
		max = a.opts.ToleranceMax
	}
	pairs, err := a.pairs(ctx, city)
	if err != nil {
		return nil, err
	}
	return summary.Tolerance(pairs, max)
}

// ActualVsPredicted returns up to limit chart rows for the latest forecast.
func (a *AnalysisUseCase) ActualVsPredicted(ctx context.Context, city string, limit int) ([]models.ChartPoint, error) {
	defer a.observe("actual_vs_predicted", time.Now())
	pairs, err := a.pairs(ctx, city)
	if err != nil {
		return nil, err
	}
	return summary.Chart(pairs, limit), nil
}

func (a *AnalysisUseCase) pairs(ctx context.Context, city string) ([]summary.Pair, error) {
	r, err := a.results.LatestResult(ctx, city)
	if err != nil {
		return nil, err
	}
	if r.Len() == 0 {
		return nil, summary.ErrEmptyWindow
	}
	observed, err := a.features.Observed(ctx, city, r.Points[0].Timestamp, r.Points[r.Len()-1].Timestamp)
	if err != nil {
		return nil, fmt.Errorf("load observed: %w", err)
	}
	return summary.Join(r.Points, observed), nil
}

// WeekdayDemand averages observed demand per day of week.
func (a *AnalysisUseCase) WeekdayDemand(ctx context.Context, city string) ([]models.WeekdayDemand, error) {
	defer a.observe("weekday", time.Now())
	records, err := a.observed(ctx, city)
	if err != nil {
		return nil, err
	}
	return summary.ByWeekday(records, a.schema.WeekdayIdx), nil
}

// HolidayDemand averages observed demand on holidays and regular days.
func (a *AnalysisUseCase) HolidayDemand(ctx context.Context, city string) ([]models.HolidayDemand, error) {
	defer a.observe("holiday", time.Now())
	records, err := a.observed(ctx, city)
	if err != nil {
		return nil, err
	}
	return summary.ByHoliday(records, a.schema.HolidayIdx)
}

// SeasonalTrends averages observed demand per season.
func (a *AnalysisUseCase) SeasonalTrends(ctx context.Context, city string) ([]models.SeasonDemand, error) {
	defer a.observe("season", time.Now())
	records, err := a.observed(ctx, city)
	if err != nil {
		return nil, err
	}
	return summary.BySeason(records, a.schema.SeasonIdx), nil
}

func (a *AnalysisUseCase) observed(ctx context.Context, city string) ([]models.TimeSeriesRecord, error) {
	records, err := a.features.Observed(ctx, city, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("load observed: %w", err)
	}
	if len(records) == 0 {
		return nil, drepo.ErrNotFound
	}
	return records, nil
}
