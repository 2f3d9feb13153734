package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"WattWise/internal/domain/models"
	drepo "WattWise/internal/domain/repository"
	"WattWise/internal/domain/service"
	"WattWise/internal/services/forecast"
	"WattWise/internal/services/summary"
	applogger "WattWise/pkg/logger"
	xotel "WattWise/pkg/otel"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyHorizon is returned when the feature store has no future records for the window.
var ErrEmptyHorizon = errors.New("no future feature records in requested window")

// PredictParams selects what to forecast. From and To bound the reporting
// window; the run itself starts right after the last observed hour before From.
type PredictParams struct {
	City  string
	From  time.Time
	To    time.Time
	Model models.ModelType
}

// ForecastOptions tunes the forecasting use case.
type ForecastOptions struct {
	LagHours     int
	HistoryHours int
	Alpha        float64
	PlausibleMax float64
	BatchWorkers int
	Confidence   map[models.ModelType]float64
}

// ForecastUseCase runs forecasts for a city and hands them to the processor.
type ForecastUseCase struct {
	store   drepo.FeatureStore
	ann     service.PointEstimator
	lgb     service.PointEstimator
	schema  Schema
	proc    *ForecastProcessor
	metrics drepo.Metrics
	opts    ForecastOptions
	l       *applogger.Logger
	now     func() time.Time
	newID   func() string
}

func NewForecastUseCase(
	store drepo.FeatureStore,
	ann service.PointEstimator,
	lgb service.PointEstimator,
	schema Schema,
	proc *ForecastProcessor,
	metrics drepo.Metrics,
	opts ForecastOptions,
) *ForecastUseCase {
	if opts.BatchWorkers < 1 {
		opts.BatchWorkers = 1
	}
	if opts.HistoryHours < opts.LagHours {
		opts.HistoryHours = opts.LagHours
	}
	return &ForecastUseCase{
		store:   store,
		ann:     ann,
		lgb:     lgb,
		schema:  schema,
		proc:    proc,
		metrics: metrics,
		opts:    opts,
		l:       applogger.Nop(),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
}

// SetLogger injects a structured logger.
func (u *ForecastUseCase) SetLogger(l *applogger.Logger) { u.l = l }

// Model builds the estimator arrangement for a model type.
func (u *ForecastUseCase) Model(mt models.ModelType) (forecast.Model, error) {
	switch mt {
	case models.ModelFast:
		return forecast.SingleModel{Estimator: u.lgb}, nil
	case models.ModelHybrid:
		return forecast.NewEnsembleModel(u.ann, u.lgb, u.opts.Alpha)
	default:
		return nil, fmt.Errorf("%w: unknown model type %q", forecast.ErrInvalidInput, mt)
	}
}

// Predict runs one forecast, summarizes the requested window and delivers the run.
// Delivery failures are logged and counted but do not fail the call.
func (u *ForecastUseCase) Predict(ctx context.Context, p PredictParams) (models.ForecastRun, error) {
	start := time.Now()
	runID := u.newID()
	ctx, span := xotel.StartSpan(ctx, "forecast.predict", xotel.AttrCity.String(p.City), xotel.AttrModel.String(string(p.Model)), xotel.AttrRunID.String(runID))
	defer span.End()

	run, err := u.predict(ctx, runID, p)
	status := "ok"
	if err != nil {
		status = forecast.KindOf(err)
		u.metrics.RecordError(status)
		xotel.RecordError(span, err)
		u.l.Error("forecast run failed",
			applogger.String("city", p.City),
			applogger.String("model", string(p.Model)),
			applogger.String("run_id", runID),
			applogger.Error(err),
		)
	}
	u.metrics.RecordRun(string(p.Model), status)
	u.metrics.RecordLatency("predict", time.Since(start).Seconds())
	if err != nil {
		return models.ForecastRun{}, err
	}

	if err := u.proc.Deliver(ctx, run); err != nil {
		u.l.Warn("forecast delivery incomplete",
			applogger.String("city", p.City),
			applogger.String("run_id", runID),
			applogger.Error(err),
		)
	}
	return run, nil
}

func (u *ForecastUseCase) predict(ctx context.Context, runID string, p PredictParams) (models.ForecastRun, error) {
	model, err := u.Model(p.Model)
	if err != nil {
		return models.ForecastRun{}, err
	}

	history, err := u.store.HistoryBefore(ctx, p.City, p.From, u.opts.HistoryHours)
	if err != nil {
		return models.ForecastRun{}, fmt.Errorf("load history: %w", err)
	}
	after := p.From.Add(-time.Second)
	if len(history) > 0 {
		after = history[len(history)-1].Timestamp
	}
	future, err := u.store.FutureFeatures(ctx, p.City, after, p.To)
	if err != nil {
		return models.ForecastRun{}, fmt.Errorf("load future features: %w", err)
	}

	points, err := forecast.Run(ctx, forecast.RunConfig{
		History:  history,
		Future:   future,
		Model:    model,
		Schema:   u.schema.Features,
		LagSize:  u.opts.LagHours,
		Range:    forecast.RangeCheck{Max: u.opts.PlausibleMax},
		Observer: &runObserver{city: p.City, runID: runID, metrics: u.metrics, l: u.l},
	})
	if err != nil {
		return models.ForecastRun{}, err
	}

	window := summary.Filter(points, p.From, p.To)
	if len(window) == 0 {
		return models.ForecastRun{}, fmt.Errorf("%s %s..%s: %w", p.City, p.From.Format(time.DateOnly), p.To.Format(time.DateOnly), ErrEmptyHorizon)
	}
	sum, err := summary.Summarize(window, u.opts.Confidence[p.Model])
	if err != nil {
		return models.ForecastRun{}, err
	}

	now := u.now()
	sum.City = p.City
	sum.ModelType = p.Model
	sum.UpdatedAt = now

	u.metrics.RecordSteps(string(p.Model), len(points))
	u.metrics.RecordLastForecast(p.City, points[len(points)-1].Demand)

	return models.ForecastRun{
		Result: models.ForecastResult{
			RunID:     runID,
			City:      p.City,
			Model:     p.Model,
			CreatedAt: now,
			Points:    points,
		},
		From:    p.From,
		To:      p.To,
		Window:  window,
		Summary: sum,
	}, nil
}

// BatchItem is the outcome for one city of a batch request.
type BatchItem struct {
	City    string          `json:"city"`
	Summary *models.Summary `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
	Kind    string          `json:"kind,omitempty"`
}

// PredictBatch forecasts several cities concurrently. A failing city is
// reported in its item and never aborts the others; only cancellation of ctx
// fails the batch.
func (u *ForecastUseCase) PredictBatch(ctx context.Context, cities []string, from, to time.Time, mt models.ModelType) ([]BatchItem, error) {
	items := make([]BatchItem, len(cities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.BatchWorkers)

	for i, city := range cities {
		i, city := i, city
		g.Go(func() error {
			items[i].City = city
			run, err := u.Predict(gctx, PredictParams{City: city, From: from, To: to, Model: mt})
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				items[i].Error = err.Error()
				items[i].Kind = forecast.KindOf(err)
				return nil
			}
			sum := run.Summary
			items[i].Summary = &sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

type runObserver struct {
	city    string
	runID   string
	metrics drepo.Metrics
	l       *applogger.Logger
}

func (o *runObserver) OnStep(int, models.ForecastPoint) {}

func (o *runObserver) OnAnomaly(step int, p models.ForecastPoint, reason string) {
	o.metrics.RecordAnomaly(o.city, reason)
	o.l.Warn("forecast estimate out of range",
		applogger.String("city", o.city),
		applogger.String("run_id", o.runID),
		applogger.Int("step", step),
		applogger.Time("ts", p.Timestamp),
		applogger.Float64("demand", p.Demand),
		applogger.String("reason", reason),
	)
}
