//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"SniperBot/internal/domain/repository"
	"SniperBot/internal/domain/service"
	"SniperBot/internal/usecase"
	"SniperBot/pkg/config"
	"SniperBot/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// The returned cleanup stops feeds, drains alerts and closes clients, in that order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Metrics
		ProvidePrometheusRegistry,
		ProvideMetrics,
		ProvideAPIMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideRedisCache,
		ProvideCache,
		ProvideTelegramSink,
		ProvideDerivClient,
		ProvideKafkaTickSource,
		ProvideTickSource,
		ProvideKafkaConsumer,

		// Alert delivery
		ProvideAlertStore,
		ProvideAlertSinks,
		ProvideAnnouncer,
		wire.Bind(new(service.Notifier), new(*usecase.Announcer)),

		// Detection
		ProvideGate,
		ProvideBoardHub,
		wire.Bind(new(repository.BoardPublisher), new(*usecase.BoardHub)),
		usecase.NewSessionFactory,
		usecase.NewSessionRouter,
		ProvidePipeline,
		ProvideFeedCollector,
		ProvideMarketRegistry,

		// HTTP
		ProvideControlLimiter,
		ProvideMarketsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
