package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"WattWise/pkg/config"
	xhttp "WattWise/pkg/http"
	pkgkafka "WattWise/pkg/kafka"
	applogger "WattWise/pkg/logger"
	pkgotel "WattWise/pkg/otel"
	"WattWise/pkg/queue"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
	jobs       *queue.RedisQueue
	tracer     *sdktrace.TracerProvider
	closers    []closer
}

// New creates a new App around an assembled HTTP server.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, httpServer: httpServer}
}

// SetConsumer attaches a Kafka consumer and the handlers it should run.
func (a *App) SetConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) {
	a.consumer = c
	a.handlers = handlers
}

// SetJobQueue attaches the Redis job queue.
func (a *App) SetJobQueue(q *queue.RedisQueue) { a.jobs = q }

// SetTracer attaches the tracer provider flushed on shutdown.
func (a *App) SetTracer(tp *sdktrace.TracerProvider) { a.tracer = tp }

// OnClose registers a resource released after every worker has stopped.
// Closers run in registration order.
func (a *App) OnClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Logger returns the application logger.
func (a *App) Logger() *applogger.Logger { return a.l }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if a.consumer != nil && len(a.handlers) > 0 {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		for _, h := range a.handlers {
			a.l.Info("kafka consumer started", applogger.String("topic", h.Topic()))
		}
	}

	if a.jobs != nil {
		if err := a.jobs.Start(); err != nil {
			a.l.Error("job queue start error", applogger.Error(err))
			a.shutdown()
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}

	a.l.Info("wattwise started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("backends", a.cfg.Output.Backends))

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	a.shutdown()
	return nil
}

// shutdown stops intake first, then drains workers, then releases resources.
func (a *App) shutdown() {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobs != nil {
		if err := a.jobs.Stop(ctx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}

	if a.tracer != nil {
		if err := pkgotel.Shutdown(context.Background(), a.tracer); err != nil {
			a.l.Warn("tracer shutdown error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
}
