package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"SniperBot/internal/usecase"
	xhttp "SniperBot/pkg/http"
	pkgkafka "SniperBot/pkg/kafka"
	applogger "SniperBot/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	log        *applogger.Logger
	registry   *usecase.MarketRegistry
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
}

// New creates a new App instance. consumer is nil unless ticks come from Kafka.
func New(
	log *applogger.Logger,
	registry *usecase.MarketRegistry,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
) *App {
	return &App{
		log:        log,
		registry:   registry,
		httpServer: httpServer,
		consumer:   consumer,
	}
}

// Run starts every component and blocks until ctx ends or one of them fails.
// A failure stops the others. Resource cleanup belongs to the injector.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.registry.Run(ctx) })
	g.Go(func() error { return a.httpServer.Run(ctx) })
	if a.consumer != nil {
		g.Go(func() error { return a.consumer.Run(ctx) })
		a.log.Info("kafka consumer started")
	}

	err := g.Wait()
	if err != nil {
		a.log.Error("app stopped with error", applogger.Error(err))
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}
