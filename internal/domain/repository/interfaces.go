package repository

import (
	"context"

	"WattWise/internal/domain/models"
)

// ForecastStore persists forecast results.
type ForecastStore interface {
	SaveResult(ctx context.Context, r models.ForecastResult) error
	LatestResult(ctx context.Context, city string) (models.ForecastResult, error)
}

// SummaryStore persists the latest summary per city (the "model spec").
type SummaryStore interface {
	SaveSummary(ctx context.Context, s models.Summary) error
	GetSummary(ctx context.Context, city string) (models.Summary, error)
}

// Publisher emits forecast events to a message bus.
type Publisher interface {
	PublishCompleted(ctx context.Context, ev models.ForecastCompleted) error
	Close() error
}

// Notifier pushes completed-forecast events to live subscribers.
type Notifier interface {
	Notify(ev models.ForecastCompleted)
}

type Metrics interface {
	RecordRun(model, status string)
	RecordSteps(model string, n int)
	RecordError(kind string)
	RecordAnomaly(city, kind string)
	RecordLastForecast(city string, value float64)
	RecordDelivered(backend, city string)
	RecordLatency(op string, seconds float64)
}
