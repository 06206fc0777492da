//go:build wireinject
// +build wireinject

package di

import (
	"DemandCast/pkg/config"
	"DemandCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideTracer,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideStorage,
		ProvideKafkaProducer,

		// Notification sinks
		ProvideHub,
		ProvideNotifier,

		// Forecasting
		ProvidePipeline,
		ProvideQueue,
		ProvideForecastService,
		ProvideForecastJob,
		ProvideScheduler,

		// HTTP
		ProvideRateLimiter,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
