package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"WattWise/internal/domain/models"
	drepo "WattWise/internal/domain/repository"
	"WattWise/pkg/cache"
	pkgkafka "WattWise/pkg/kafka"
	applogger "WattWise/pkg/logger"
	"WattWise/pkg/queue"
	xutil "WattWise/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var jobValidate = validator.New()

// JobType is the queue message type of a forecast job.
const JobType = "forecast"

// ForecastJobHandler runs forecast jobs delivered by Kafka or the Redis queue.
// Redeliveries of a job carrying an ID are deduplicated with a short-lived lock.
// Jobs without an ID only lock while they run.
type ForecastJobHandler struct {
	topic   string
	uc      *ForecastUseCase
	locks   cache.Service
	lockTTL time.Duration
	metrics drepo.Metrics
	l       *applogger.Logger
}

// NewForecastJobHandler creates the handler. locks may be nil to disable deduplication.
func NewForecastJobHandler(topic string, uc *ForecastUseCase, locks cache.Service, metrics drepo.Metrics) *ForecastJobHandler {
	return &ForecastJobHandler{
		topic:   topic,
		uc:      uc,
		locks:   locks,
		lockTTL: 5 * time.Minute,
		metrics: metrics,
		l:       applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (h *ForecastJobHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *ForecastJobHandler) Topic() string { return h.topic }

func (h *ForecastJobHandler) Name() string { return "forecast-job" }

func (h *ForecastJobHandler) Type() string { return JobType }

// ParseJob decodes and validates a job payload into predict parameters.
func ParseJob(b []byte) (PredictParams, error) {
	_, p, err := decodeJob(b)
	return p, err
}

func decodeJob(b []byte) (models.ForecastJob, PredictParams, error) {
	var job models.ForecastJob
	if err := json.Unmarshal(b, &job); err != nil {
		return job, PredictParams{}, fmt.Errorf("decode job: %w", err)
	}
	if err := defaults.Set(&job); err != nil {
		return job, PredictParams{}, fmt.Errorf("job defaults: %w", err)
	}
	if err := jobValidate.Struct(&job); err != nil {
		return job, PredictParams{}, fmt.Errorf("invalid job: %w", err)
	}
	from, to, err := xutil.ParseDayRange(job.StartDate, job.EndDate)
	if err != nil {
		return job, PredictParams{}, fmt.Errorf("invalid job: %w", err)
	}
	return job, PredictParams{
		City:  xutil.NormalizeCity(job.City),
		From:  from,
		To:    to,
		Model: models.ModelType(job.ModelType),
	}, nil
}

// jobLockKey scopes the lock to the submission when the job carries an ID.
func jobLockKey(job models.ForecastJob, p PredictParams) string {
	if job.ID != "" {
		return cache.GenerateKeyWithParams("job", job.ID)
	}
	return cache.GenerateKeyWithParams("job", p.City, p.From.Format(time.DateOnly), p.To.Format(time.DateOnly), p.Model)
}

func (h *ForecastJobHandler) Handle(ctx context.Context, b []byte) error {
	job, p, err := decodeJob(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	locked := false
	key := jobLockKey(job, p)
	if h.locks != nil {
		ok, err := h.locks.TryLock(ctx, key, h.lockTTL)
		if err != nil {
			h.l.Warn("job lock unavailable, running anyway", applogger.String("key", key), applogger.Error(err))
		} else if !ok {
			h.l.Info("duplicate forecast job skipped", applogger.String("key", key))
			return nil
		}
		locked = err == nil
	}

	run, err := h.uc.Predict(ctx, p)
	if err != nil {
		// release so the consumer's retry can run the job again
		if locked {
			_ = h.locks.Unlock(ctx, key)
		}
		return fmt.Errorf("forecast job %s: %w", p.City, err)
	}
	// without an ID a later job with the same parameters is a new request
	if locked && job.ID == "" {
		_ = h.locks.Unlock(ctx, key)
	}
	h.l.Info("forecast job done",
		applogger.String("job_id", job.ID),
		applogger.String("city", p.City),
		applogger.String("run_id", run.Result.RunID),
		applogger.Int("points", run.Result.Len()),
	)
	return nil
}

var (
	_ pkgkafka.MessageHandler = (*ForecastJobHandler)(nil)
	_ queue.Job               = (*ForecastJobHandler)(nil)
)
