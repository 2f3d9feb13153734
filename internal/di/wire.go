//go:build wireinject
// +build wireinject

package di

import (
	"WattWise/internal/handler/api"
	"WattWise/pkg/config"
	"WattWise/pkg/server"

	"github.com/google/wire"
)

var coreSet = wire.NewSet(
	// Infrastructure clients
	ProvideClickHouseClient,
	ProvideRedis,
	ProvideCache,
	ProvideKafkaProducer,

	// Metrics
	ProvideMetrics,

	// Repositories
	ProvideSchema,
	ProvideFeatureStore,
	ProvideForecastStore,
	ProvideCacheStore,
	ProvideResultStore,

	// Use cases
	ProvideEstimators,
	ProvideBackends,
	ProvideProcessor,
	ProvideForecastUseCase,
	ProvideAnalysisUseCase,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideTracer,
		coreSet,
		ProvideHub,
		ProvideJobHandler,
		ProvideJobQueue,
		ProvideKafkaConsumer,
		ProvideForecastHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeForecaster wires the use cases alone, for one-shot CLI runs.
func InitializeForecaster(cfg *config.Config, hub *api.Hub) (*Forecaster, func(), error) {
	wire.Build(
		ProvideLogger,
		coreSet,
		ProvideForecaster,
	)
	return nil, nil, nil
}
