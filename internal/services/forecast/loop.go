package forecast

import (
	"context"
	"fmt"

	"WattWise/internal/domain/models"
	"WattWise/internal/services/features"
)

// RunConfig carries everything one run needs. Nothing is read from global state.
type RunConfig struct {
	// History seeds the lag window. It must hold at least one resolved record.
	History []models.TimeSeriesRecord
	// Future is the horizon to forecast, in time order. Demand is ignored.
	Future []models.TimeSeriesRecord
	Model  Model
	Schema features.Schema
	// LagSize is L, the lag and rolling window length in steps.
	LagSize  int
	Range    RangeCheck
	Observer Observer
}

// Run forecasts every future record in order. Each estimate is appended to the
// history before the next step, so later steps see earlier estimates in their
// lag window. Run either returns exactly len(cfg.Future) points or an error;
// partial results are never returned.
func Run(ctx context.Context, cfg RunConfig) ([]models.ForecastPoint, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("forecast: no model configured")
	}
	if cfg.LagSize < 1 {
		return nil, fmt.Errorf("forecast: lag size must be >= 1, got %d", cfg.LagSize)
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	history, err := NewHistoryBuffer(cfg.History)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg, history); err != nil {
		return nil, err
	}

	points := make([]models.ForecastPoint, 0, len(cfg.Future))
	for i, rec := range cfg.Future {
		lag, roll, err := features.SynthesizeLagRolling(history.Trailing(cfg.LagSize), cfg.LagSize)
		if err != nil {
			return nil, runErr(i, ErrInsufficientHistory, err)
		}
		v, err := cfg.Schema.Assemble(rec.Features, lag, roll)
		if err != nil {
			return nil, runErr(i, ErrSchemaMismatch, err)
		}
		y, err := cfg.Model.Estimate(ctx, v)
		if err != nil {
			return nil, runErr(i, ErrEstimatorFailure, err)
		}

		if err := history.Append(rec.WithDemand(y)); err != nil {
			return nil, runErr(i, ErrInvalidInput, err)
		}
		p := models.ForecastPoint{Timestamp: rec.Timestamp, Demand: y, Hour: cfg.Schema.HourOf(rec)}
		points = append(points, p)

		if reason, bad := cfg.Range.Check(y); bad {
			obs.OnAnomaly(i, p, reason)
		}
		obs.OnStep(i, p)
	}
	return points, nil
}

// validate rejects schema and ordering problems before any estimator is called.
func validate(cfg RunConfig, history *HistoryBuffer) error {
	for _, e := range cfg.Model.Estimators() {
		if err := cfg.Schema.Matches(e.Schema()); err != nil {
			return runErr(SeedStep, ErrSchemaMismatch, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	prev := history.Last().Timestamp
	for i, rec := range cfg.Future {
		if err := cfg.Schema.CheckRecord(rec); err != nil {
			return runErr(i, ErrSchemaMismatch, err)
		}
		if !rec.Timestamp.After(prev) {
			return runErr(i, ErrInvalidInput, fmt.Errorf("timestamp %s does not follow %s", rec.Timestamp, prev))
		}
		prev = rec.Timestamp
	}
	return nil
}
