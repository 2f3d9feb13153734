package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"WattWise/internal/domain/models"
	drepo "WattWise/internal/domain/repository"
	applogger "WattWise/pkg/logger"
)

// Backend receives completed forecast runs.
type Backend interface {
	Name() string
	Deliver(ctx context.Context, run models.ForecastRun) error
}

// StoreBackend writes the full result and the summary to a store.
type StoreBackend struct {
	name      string
	results   drepo.ForecastStore
	summaries drepo.SummaryStore
}

func NewStoreBackend(name string, results drepo.ForecastStore, summaries drepo.SummaryStore) *StoreBackend {
	return &StoreBackend{name: name, results: results, summaries: summaries}
}

func (b *StoreBackend) Name() string { return b.name }

func (b *StoreBackend) Deliver(ctx context.Context, run models.ForecastRun) error {
	if err := b.results.SaveResult(ctx, run.Result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	if err := b.summaries.SaveSummary(ctx, run.Summary); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// PublisherBackend emits a ForecastCompleted event.
type PublisherBackend struct {
	pub drepo.Publisher
}

func NewPublisherBackend(pub drepo.Publisher) *PublisherBackend {
	return &PublisherBackend{pub: pub}
}

func (b *PublisherBackend) Name() string { return "kafka" }

func (b *PublisherBackend) Deliver(ctx context.Context, run models.ForecastRun) error {
	return b.pub.PublishCompleted(ctx, CompletedEvent(run))
}

func (b *PublisherBackend) Close() error { return b.pub.Close() }

// CompletedEvent describes a delivered run.
func CompletedEvent(run models.ForecastRun) models.ForecastCompleted {
	return models.ForecastCompleted{
		RunID:     run.Result.RunID,
		City:      run.Result.City,
		Model:     run.Result.Model,
		From:      run.From,
		To:        run.To,
		Points:    run.Result.Len(),
		Summary:   run.Summary,
		Timestamp: run.Result.CreatedAt,
	}
}

// ForecastProcessor routes completed runs to every configured backend and
// notifies live subscribers once at least one backend accepted the run.
type ForecastProcessor struct {
	backends []Backend
	notifier drepo.Notifier
	metrics  drepo.Metrics
	l        *applogger.Logger
}

// NewForecastProcessor creates a processor. notifier may be nil.
func NewForecastProcessor(metrics drepo.Metrics, notifier drepo.Notifier, backends ...Backend) *ForecastProcessor {
	return &ForecastProcessor{
		backends: backends,
		notifier: notifier,
		metrics:  metrics,
		l:        applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (p *ForecastProcessor) SetLogger(l *applogger.Logger) { p.l = l }

// Backends returns the configured backend names in delivery order.
func (p *ForecastProcessor) Backends() []string {
	out := make([]string, len(p.backends))
	for i, b := range p.backends {
		out[i] = b.Name()
	}
	return out
}

// Deliver sends run to every backend. Backends are independent; the joined
// error lists each one that failed.
func (p *ForecastProcessor) Deliver(ctx context.Context, run models.ForecastRun) error {
	start := time.Now()
	city := run.Result.City
	delivered := 0
	var errs []error

	for _, b := range p.backends {
		if err := b.Deliver(ctx, run); err != nil {
			p.metrics.RecordError("deliver_" + b.Name())
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		delivered++
		p.metrics.RecordDelivered(b.Name(), city)
	}
	p.metrics.RecordLatency("deliver", time.Since(start).Seconds())

	if p.notifier != nil && (delivered > 0 || len(p.backends) == 0) {
		p.notifier.Notify(CompletedEvent(run))
	}

	p.l.Debug("forecast run delivered",
		applogger.String("city", city),
		applogger.String("run_id", run.Result.RunID),
		applogger.Int("backends", delivered),
	)
	return errors.Join(errs...)
}

// Close closes backends that hold resources.
func (p *ForecastProcessor) Close() {
	for _, b := range p.backends {
		if c, ok := b.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
