package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
	"SniperBot/internal/domain/service"
	"SniperBot/pkg/logger"
)

type AnnouncerConfig struct {
	Timeout          time.Duration
	RatePerSecond    float64
	Burst            int
	BreakerFailures  uint32
	BreakerOpenFor   time.Duration
	BreakerHalfOpenN uint32
}

type guardedSink struct {
	sink    drepo.AlertSink
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

type delivery struct {
	cancel context.CancelFunc
}

// Announcer delivers alerts to every sink off the detection path.
// At most one delivery per feed is in flight: a new alert of a feed cancels
// that feed's previous delivery. Other feeds' deliveries are left alone.
type Announcer struct {
	cfg     AnnouncerConfig
	sinks   []guardedSink
	metrics drepo.Metrics
	log     *logger.Logger

	mu       sync.Mutex
	inflight map[models.FeedID]*delivery
	closed   bool
	wg       sync.WaitGroup
}

var _ service.Notifier = (*Announcer)(nil)

func NewAnnouncer(cfg AnnouncerConfig, sinks []drepo.AlertSink, metrics drepo.Metrics, log *logger.Logger) *Announcer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = 30 * time.Second
	}
	if cfg.BreakerHalfOpenN == 0 {
		cfg.BreakerHalfOpenN = 1
	}

	a := &Announcer{cfg: cfg, metrics: metrics, log: log, inflight: make(map[models.FeedID]*delivery)}
	for _, s := range sinks {
		limit := rate.Inf
		if cfg.RatePerSecond > 0 {
			limit = rate.Limit(cfg.RatePerSecond)
		}
		a.sinks = append(a.sinks, guardedSink{
			sink:    s,
			limiter: rate.NewLimiter(limit, cfg.Burst),
			breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
				Name:        s.Name(),
				MaxRequests: cfg.BreakerHalfOpenN,
				Timeout:     cfg.BreakerOpenFor,
				ReadyToTrip: func(c gobreaker.Counts) bool {
					return c.ConsecutiveFailures >= cfg.BreakerFailures
				},
				IsSuccessful: func(err error) bool {
					return err == nil || errors.Is(err, context.Canceled)
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					log.Warn("alert sink breaker state changed",
						logger.String("sink", name),
						logger.String("from", from.String()),
						logger.String("to", to.String()),
					)
				},
			}),
		})
	}
	return a
}

// Notify starts delivering ev and returns immediately.
func (a *Announcer) Notify(ev models.AlertEvent) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.log.Warn("announcer closed, alert dropped", logger.String("alert_id", ev.ID))
		return
	}
	if prev, ok := a.inflight[ev.Feed]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout)
	d := &delivery{cancel: cancel}
	a.inflight[ev.Feed] = d
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		defer a.finish(ev.Feed, d)
		a.deliver(ctx, ev)
	}()
}

func (a *Announcer) finish(feed models.FeedID, d *delivery) {
	d.cancel()
	a.mu.Lock()
	if a.inflight[feed] == d {
		delete(a.inflight, feed)
	}
	a.mu.Unlock()
}

func (a *Announcer) deliver(ctx context.Context, ev models.AlertEvent) {
	a.log.Info(ev.Message(),
		logger.String("alert_id", ev.ID),
		logger.String("feed", string(ev.Feed)),
		logger.Int("digit", int(ev.Digit)),
	)

	var g errgroup.Group
	for _, s := range a.sinks {
		g.Go(func() error { return a.send(ctx, s, ev) })
	}
	if err := g.Wait(); errors.Is(err, context.Canceled) {
		a.log.Debug("alert delivery superseded", logger.String("alert_id", ev.ID))
	}
}

func (a *Announcer) send(ctx context.Context, s guardedSink, ev models.AlertEvent) error {
	start := time.Now()
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.sink.Send(ctx, ev)
	})
	a.metrics.RecordLatency("alert_sink_"+s.sink.Name(), time.Since(start).Seconds())
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	a.metrics.RecordError("alert_sink_" + s.sink.Name())
	a.log.Warn("alert sink failed",
		logger.String("sink", s.sink.Name()),
		logger.String("alert_id", ev.ID),
		logger.Error(err),
	)
	return err
}

// Close rejects new alerts and waits for the in-flight deliveries or ctx.
func (a *Announcer) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		a.mu.Lock()
		for _, d := range a.inflight {
			d.cancel()
		}
		a.mu.Unlock()
		return ctx.Err()
	}
}
