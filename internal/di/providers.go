package di

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"SniperBot/internal/domain/models"
	"SniperBot/internal/domain/repository"
	"SniperBot/internal/handler/api"
	mid "SniperBot/internal/middleware"
	internalrepo "SniperBot/internal/repository"
	"SniperBot/internal/service/deriv"
	apimetrics "SniperBot/internal/service/metrics"
	"SniperBot/internal/service/ratelimit"
	"SniperBot/internal/service/telegram"
	"SniperBot/internal/services/sniper"
	"SniperBot/internal/usecase"
	"SniperBot/pkg/cache"
	"SniperBot/pkg/config"
	xhttp "SniperBot/pkg/http"
	pkgkafka "SniperBot/pkg/kafka"
	"SniperBot/pkg/logger"
	"SniperBot/pkg/metrics"
	"SniperBot/pkg/server"
)

// ProvidePrometheusRegistry creates the registry every component records into.
func ProvidePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger creates the application logger. With the collector enabled,
// warnings and errors are aggregated and shipped through the producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if !cfg.Logging.Collector.Enabled || producer == nil {
		return l, func() {}, nil
	}
	l.AddCollector(&logger.CollectionConfig{
		TimeInterval:   cfg.Logging.Collector.Interval,
		CountThreshold: cfg.Logging.Collector.Threshold,
		Topic:          cfg.Logging.Collector.Topic,
		Publisher:      producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideRedisCache connects to Redis, or returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(context.Background(),
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix("sniperbot"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCache returns Redis when configured and an in-process cache otherwise.
func ProvideCache(rc *cache.RedisCache) (cache.Service, func()) {
	if rc != nil {
		return rc, func() {}
	}
	mc := cache.NewMemoryCache()
	return mc, func() { _ = mc.Close() }
}

func ProvideAlertStore(cfg *config.Config, c cache.Service) *internalrepo.AlertStore {
	return internalrepo.NewAlertStore(c, cfg.Redis.LastAlertTTL)
}

// ProvideTelegramSink creates the Telegram sink, or nil when disabled.
func ProvideTelegramSink(cfg *config.Config) (*telegram.Sink, error) {
	if !cfg.Telegram.Enabled {
		return nil, nil
	}
	s, err := telegram.NewSink(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return s, nil
}

// ProvideAlertSinks collects every configured alert destination.
func ProvideAlertSinks(
	cfg *config.Config,
	store *internalrepo.AlertStore,
	producer *pkgkafka.Producer,
	rc *cache.RedisCache,
	tg *telegram.Sink,
) []repository.AlertSink {
	sinks := []repository.AlertSink{store}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaAlertSink(producer, cfg.Kafka.AlertTopic))
	}
	if rc != nil {
		sinks = append(sinks, internalrepo.NewRedisAlertSink(rc, cfg.Redis.Channel))
	}
	if tg != nil {
		sinks = append(sinks, tg)
	}
	return sinks
}

// ProvideAnnouncer creates the alert announcer. Its cleanup lets the last
// delivery finish before the sinks' clients close.
func ProvideAnnouncer(
	cfg *config.Config,
	sinks []repository.AlertSink,
	m repository.Metrics,
	l *logger.Logger,
) (*usecase.Announcer, func()) {
	a := usecase.NewAnnouncer(usecase.AnnouncerConfig{
		Timeout:          cfg.Alerts.Timeout,
		RatePerSecond:    cfg.Alerts.RatePerSecond,
		Burst:            cfg.Alerts.Burst,
		BreakerFailures:  cfg.Alerts.BreakerFailures,
		BreakerOpenFor:   cfg.Alerts.BreakerOpenFor,
		BreakerHalfOpenN: cfg.Alerts.BreakerHalfOpenN,
	}, sinks, m, l)
	return a, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Alerts.Timeout)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			l.Warn("announcer close", logger.Error(err))
		}
	}
}

func ProvideBoardHub() *usecase.BoardHub {
	return usecase.NewBoardHub(0)
}

func ProvideGate() *sniper.Gate {
	return sniper.NewGate()
}

// ProvidePipeline guards the session router with validation and a per-feed rate limit.
func ProvidePipeline(cfg *config.Config, router *usecase.SessionRouter, m repository.Metrics) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(router, m,
		mid.WithMaxRPS(cfg.Pipeline.MaxTicksPerSecond, cfg.Pipeline.Burst),
		mid.WithFeeds(models.MarketsFrom(cfg.Sniper.Markets)),
	)
}

func ProvideFeedCollector(pipe *mid.RealtimePipeline, m repository.Metrics, l *logger.Logger) *usecase.FeedCollector {
	return usecase.NewFeedCollector(pipe, m, l)
}

// ProvideDerivClient creates the websocket tick client, or nil when ticks come from Kafka.
func ProvideDerivClient(cfg *config.Config, l *logger.Logger) (*deriv.Client, func()) {
	if cfg.Deriv.Source != config.SourceWebsocket {
		return nil, func() {}
	}
	c := deriv.New(deriv.Config{
		Endpoint:         cfg.DerivEndpoint(),
		PingInterval:     cfg.Deriv.PingInterval,
		HandshakeTimeout: cfg.Deriv.HandshakeTimeout,
		ReconnectMin:     cfg.Deriv.ReconnectMin,
		ReconnectMax:     cfg.Deriv.ReconnectMax,
		BufferSize:       cfg.Deriv.BufferSize,
	}, l)
	return c, func() { _ = c.Close() }
}

// ProvideKafkaTickSource creates the Kafka tick source, or nil when ticks come from the websocket.
func ProvideKafkaTickSource(cfg *config.Config, m repository.Metrics) (*internalrepo.KafkaTickSource, func()) {
	if cfg.Deriv.Source != config.SourceKafka {
		return nil, func() {}
	}
	s := internalrepo.NewKafkaTickSource(cfg.Kafka.TickTopic, cfg.Deriv.BufferSize, m)
	return s, func() { _ = s.Close() }
}

func ProvideTickSource(dc *deriv.Client, ks *internalrepo.KafkaTickSource) repository.TickSource {
	if ks != nil {
		return ks
	}
	return dc
}

// ProvideKafkaConsumer creates the tick consumer, or nil unless ticks come from Kafka.
func ProvideKafkaConsumer(
	cfg *config.Config,
	ks *internalrepo.KafkaTickSource,
	l *logger.Logger,
	reg *prometheus.Registry,
) (*pkgkafka.Consumer, error) {
	if ks == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(ks.ValidationHook())
	if err := consumer.RegisterHandler(ks); err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMarketRegistry creates the registry. Its cleanup stops every feed
// before the announcer and sources shut down.
func ProvideMarketRegistry(
	cfg *config.Config,
	source repository.TickSource,
	router *usecase.SessionRouter,
	collector *usecase.FeedCollector,
	factory usecase.SessionFactory,
	l *logger.Logger,
) (*usecase.MarketRegistry, func()) {
	r := usecase.NewMarketRegistry(usecase.RegistryConfig{
		Markets:     models.MarketsFrom(cfg.Sniper.Markets),
		Mode:        cfg.Sniper.Mode,
		DefaultFeed: models.FeedID(cfg.Sniper.DefaultMarket),
	}, source, router, collector, factory, l)
	return r, r.Close
}

func ProvideAPIMetrics(reg *prometheus.Registry) *apimetrics.APIMetrics {
	return apimetrics.NewAPIMetrics(reg)
}

// ProvideControlLimiter throttles feed control requests per client.
func ProvideControlLimiter(cfg *config.Config) *ratelimit.Limiter {
	c := cfg.Server.Control
	return ratelimit.New(c.RatePerSecond, c.Burst, c.IdleTTL)
}

func ProvideMarketsHandler(
	l *logger.Logger,
	registry *usecase.MarketRegistry,
	store *internalrepo.AlertStore,
	hub *usecase.BoardHub,
	m *apimetrics.APIMetrics,
	rl *ratelimit.Limiter,
) *api.MarketsHandler {
	return api.NewMarketsHandler(l, registry, store, hub, m, rl)
}

// ProvideHTTPServer creates the echo server for the display API.
func ProvideHTTPServer(cfg *config.Config, h *api.MarketsHandler, l *logger.Logger, reg *prometheus.Registry) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer(h, l,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetrics(path, reg, reg),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	l *logger.Logger,
	registry *usecase.MarketRegistry,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
) *server.App {
	return server.New(l, registry, httpServer, consumer)
}
