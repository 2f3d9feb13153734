package di

import (
	"context"
	"fmt"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"WattWise/internal/domain/models"
	drepo "WattWise/internal/domain/repository"
	"WattWise/internal/domain/service"
	"WattWise/internal/handler/api"
	internalrepo "WattWise/internal/repository"
	apimetrics "WattWise/internal/service/metrics"
	"WattWise/internal/service/ratelimit"
	"WattWise/internal/services/estimator"
	"WattWise/internal/services/features"
	"WattWise/internal/usecase"
	"WattWise/pkg/cache"
	pkgch "WattWise/pkg/clickhouse"
	"WattWise/pkg/config"
	xhttp "WattWise/pkg/http"
	"WattWise/pkg/http/middleware"
	pkgkafka "WattWise/pkg/kafka"
	applogger "WattWise/pkg/logger"
	"WattWise/pkg/metrics"
	pkgotel "WattWise/pkg/otel"
	"WattWise/pkg/queue"
	"WattWise/pkg/server"
)

// Version is stamped into traces; overridden at build time with -ldflags.
var Version = "dev"

// ResultStore serves both forecast results and model specs.
type ResultStore interface {
	drepo.ForecastStore
	drepo.SummaryStore
}

// Estimators holds the two trained models; ANN is the A side of the ensemble.
type Estimators struct {
	ANN      service.PointEstimator
	LightGBM service.PointEstimator
}

// Forecaster is the use-case layer without any server around it, for the CLI.
type Forecaster struct {
	Forecasts *usecase.ForecastUseCase
	Analysis  *usecase.AnalysisUseCase
	proc      *usecase.ForecastProcessor
}

// Close flushes and closes the delivery backends.
func (f *Forecaster) Close() { f.proc.Close() }

// ProvideLogger creates the application logger. The cleanup stops any log
// collector attached later.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		TimeFormat: cfg.Logger.TimeFormat,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return l, l.RemoveCollector, nil
}

// ProvideClickHouseClient creates a ClickHouse client and migrates the forecasting tables.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Migrate(ctx, cfg.ClickHouse.Database, cfg.Models.Static); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, func() { _ = client.Close() }, nil
}

// ProvideMetrics creates the Prometheus recorder on the default registry.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideSchema resolves the configured feature layout.
func ProvideSchema(cfg *config.Config) (usecase.Schema, error) {
	fs, err := features.NewSchema(cfg.Models.Static)
	if err != nil {
		return usecase.Schema{}, fmt.Errorf("feature schema: %w", err)
	}
	return usecase.NewSchema(fs), nil
}

// ProvideFeatureStore reads model inputs from ClickHouse.
func ProvideFeatureStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (drepo.FeatureStore, error) {
	s, err := internalrepo.NewCHFeatureStore(ch, cfg.ClickHouse.Database, cfg.Models.Static)
	if err != nil {
		return nil, err
	}
	s.SetLogger(l)
	return s, nil
}

// ProvideForecastStore persists results and model specs in ClickHouse.
func ProvideForecastStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (*internalrepo.CHForecastStore, error) {
	s, err := internalrepo.NewCHForecastStore(ch, cfg.ClickHouse.Database)
	if err != nil {
		return nil, err
	}
	s.SetLogger(l)
	return s, nil
}

// ProvideRedis connects to Redis when enabled; otherwise it returns nil.
func ProvideRedis(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCache layers an in-process LRU in front of Redis, or uses the LRU alone.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func(), error) {
	var (
		svc cache.Service
		err error
	)
	if rc != nil {
		svc, err = cache.NewLayeredCache(rc, cache.WithLayeredMemory(cfg.Redis.Memory.Size, cfg.Redis.Memory.TTL))
	} else {
		svc, err = cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Redis.Memory.Size), cache.WithMemoryTTL(cfg.Redis.TTL))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("cache: %w", err)
	}
	return svc, func() { _ = svc.Close() }, nil
}

// ProvideCacheStore keeps the latest result and model spec per city in the cache.
func ProvideCacheStore(c cache.Service, cfg *config.Config) *internalrepo.CacheStore {
	return internalrepo.NewCacheStore(c, cfg.Redis.TTL)
}

// ProvideResultStore serves dashboard reads: cache first, ClickHouse behind it
// when ClickHouse is a delivery backend.
func ProvideResultStore(cfg *config.Config, fast *internalrepo.CacheStore, durable *internalrepo.CHForecastStore) ResultStore {
	if cfg.HasBackend("clickhouse") {
		return internalrepo.NewReadThroughStore(fast, durable)
	}
	return fast
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled; otherwise it returns nil.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the forecast-request consumer when Kafka is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.NewLoggingHook(l),
		pkgkafka.JSONPayloadHook(),
	))
	return consumer, nil
}

// ProvideEstimators builds the HTTP clients for both model servers.
func ProvideEstimators(cfg *config.Config, schema usecase.Schema) (Estimators, error) {
	base := estimator.NewHTTPServiceBase(cfg.Models.BaseURL, cfg.Models.Timeout, cfg.Models.MaxRetries)
	ann, err := estimator.NewANNEstimator(cfg, schema.Features, base)
	if err != nil {
		return Estimators{}, err
	}
	lgb, err := estimator.NewLightGBMEstimator(cfg, schema.Features, base)
	if err != nil {
		return Estimators{}, err
	}
	return Estimators{ANN: ann, LightGBM: lgb}, nil
}

// ProvideHub creates the websocket hub for completed-run notifications.
func ProvideHub(l *applogger.Logger) *api.Hub {
	h := api.NewHub()
	h.SetLogger(l)
	return h
}

// ProvideBackends builds the delivery backends named in output.backends, in order.
func ProvideBackends(
	cfg *config.Config,
	durable *internalrepo.CHForecastStore,
	fast *internalrepo.CacheStore,
	producer *pkgkafka.Producer,
) ([]usecase.Backend, error) {
	backends := make([]usecase.Backend, 0, len(cfg.Output.Backends))
	for _, name := range cfg.Output.Backends {
		switch name {
		case "clickhouse":
			backends = append(backends, usecase.NewStoreBackend(name, durable, durable))
		case "cache":
			backends = append(backends, usecase.NewStoreBackend(name, fast, fast))
		case "kafka":
			if producer == nil {
				return nil, fmt.Errorf("output backend kafka needs kafka.enabled")
			}
			backends = append(backends, usecase.NewPublisherBackend(
				internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Completed)))
		default:
			return nil, fmt.Errorf("unknown output backend %q", name)
		}
	}
	return backends, nil
}

// ProvideProcessor routes completed runs to the backends and the hub.
func ProvideProcessor(m drepo.Metrics, hub *api.Hub, backends []usecase.Backend, l *applogger.Logger) *usecase.ForecastProcessor {
	var notifier drepo.Notifier
	if hub != nil {
		notifier = hub
	}
	p := usecase.NewForecastProcessor(m, notifier, backends...)
	p.SetLogger(l)
	return p
}

// ProvideForecastUseCase creates the forecasting use case.
func ProvideForecastUseCase(
	cfg *config.Config,
	store drepo.FeatureStore,
	est Estimators,
	schema usecase.Schema,
	proc *usecase.ForecastProcessor,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.ForecastUseCase {
	uc := usecase.NewForecastUseCase(store, est.ANN, est.LightGBM, schema, proc, m, usecase.ForecastOptions{
		LagHours:     cfg.Forecast.LagHours,
		HistoryHours: cfg.Forecast.HistoryHours,
		Alpha:        cfg.Forecast.Alpha,
		PlausibleMax: cfg.Forecast.PlausibleMax,
		BatchWorkers: cfg.Forecast.BatchWorkers,
		Confidence: map[models.ModelType]float64{
			models.ModelFast:   cfg.Summary.FastConfidence,
			models.ModelHybrid: cfg.Summary.HybridConfidence,
		},
	})
	uc.SetLogger(l)
	return uc
}

// ProvideAnalysisUseCase creates the dashboard query use case.
func ProvideAnalysisUseCase(
	cfg *config.Config,
	results ResultStore,
	store drepo.FeatureStore,
	schema usecase.Schema,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.AnalysisUseCase {
	a := usecase.NewAnalysisUseCase(results, results, store, schema, m, usecase.AnalysisOptions{
		CostPerUnit:  cfg.Summary.CostPerUnit,
		ToleranceMax: cfg.Summary.ToleranceMax,
	})
	a.SetLogger(l)
	return a
}

// ProvideForecaster bundles the use cases for the CLI.
func ProvideForecaster(f *usecase.ForecastUseCase, a *usecase.AnalysisUseCase, proc *usecase.ForecastProcessor) *Forecaster {
	return &Forecaster{Forecasts: f, Analysis: a, proc: proc}
}

// ProvideJobHandler runs forecast jobs from Kafka and the Redis queue.
func ProvideJobHandler(cfg *config.Config, uc *usecase.ForecastUseCase, locks cache.Service, m drepo.Metrics, l *applogger.Logger) *usecase.ForecastJobHandler {
	h := usecase.NewForecastJobHandler(cfg.Kafka.Topics.Requests, uc, locks, m)
	h.SetLogger(l)
	return h
}

// ProvideJobQueue creates the Redis job queue when enabled; otherwise it returns nil.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, h *usecase.ForecastJobHandler, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Queue.Prefix))
	q.RegisterJob(h)
	return q
}

// ProvideForecastHandler creates the echo handler with its optional extras.
func ProvideForecastHandler(
	cfg *config.Config,
	f *usecase.ForecastUseCase,
	a *usecase.AnalysisUseCase,
	hub *api.Hub,
	q *queue.RedisQueue,
	l *applogger.Logger,
) (*api.ForecastHandler, error) {
	h := api.NewForecastHandler(f, a, hub)
	h.SetLogger(l)
	if q != nil {
		h.SetJobQueue(q)
	}
	if cfg.RateLimit.Enabled {
		lim, err := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 0)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		h.SetPredictMiddleware(middleware.RateLimit(lim, apimetrics.RateLimited.Inc))
	}
	return h, nil
}

// ProvideHTTPServer assembles the echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.ForecastHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideTracer installs the OTLP tracer when tracing is enabled; otherwise it returns nil.
// The cleanup flushes and stops the provider; a second Shutdown is a no-op, so the
// app may also flush it during its own shutdown.
func ProvideTracer(cfg *config.Config) (*sdktrace.TracerProvider, func(), error) {
	if !cfg.Tracing.Enabled {
		return nil, func() {}, nil
	}
	tp, err := pkgotel.InitTracer(context.Background(), &pkgotel.Config{
		ServiceName:       cfg.Tracing.ServiceName,
		ServiceVersion:    Version,
		Environment:       cfg.Environment,
		CollectorEndpoint: cfg.Tracing.Endpoint,
		SamplingRate:      cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: %w", err)
	}
	return tp, func() { _ = pkgotel.Shutdown(context.Background(), tp) }, nil
}

// ProvideApp creates the application server and hands it every resource to release.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	jobs *usecase.ForecastJobHandler,
	q *queue.RedisQueue,
	producer *pkgkafka.Producer,
	proc *usecase.ForecastProcessor,
	hub *api.Hub,
	tp *sdktrace.TracerProvider,
) *server.App {
	app := server.New(cfg, l, srv)
	if consumer != nil {
		app.SetConsumer(consumer, jobs)
	}
	if q != nil {
		app.SetJobQueue(q)
	}
	app.SetTracer(tp)

	if cfg.Logger.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logger.Collector.Interval,
			CountThreshold: cfg.Logger.Collector.CountThreshold,
			Topic:          cfg.Logger.Collector.Topic,
			Publisher:      producer,
		})
		app.OnClose("log collector", func() error {
			l.RemoveCollector()
			return nil
		})
	}
	app.OnClose("websocket hub", func() error {
		hub.Close()
		return nil
	})
	// closes the kafka producer through the publisher backend
	app.OnClose("delivery backends", func() error {
		proc.Close()
		return nil
	})
	if producer != nil && !cfg.HasBackend("kafka") {
		app.OnClose("kafka producer", producer.Close)
	}
	return app
}
