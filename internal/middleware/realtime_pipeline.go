package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"SniperBot/internal/domain/models"
	domrepo "SniperBot/internal/domain/repository"
)

var (
	ErrThrottled   = errors.New("pipeline: tick throttled")
	ErrUnknownFeed = errors.New("pipeline: unknown feed")
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t models.Tick) error
}

// RealtimePipeline sits between a tick source and the feed sessions.
// It guarantees every forwarded tick carries a parseable digit, drops feeds
// it does not know and throttles runaway feeds.
type RealtimePipeline struct {
	proc    Proc
	metrics domrepo.Metrics

	maxRPS float64
	burst  int
	feeds  map[models.FeedID]struct{} // nil accepts any feed

	mu       sync.Mutex
	limiters map[models.FeedID]*rate.Limiter

	transform func(models.Tick) models.Tick
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS caps accepted ticks per second per feed. Zero disables throttling.
func WithMaxRPS(rps float64, burst int) PipelineOption {
	return func(p *RealtimePipeline) {
		if rps >= 0 {
			p.maxRPS = rps
		}
		if burst > 0 {
			p.burst = burst
		}
	}
}

// WithFeeds restricts the pipeline to the given feeds.
func WithFeeds(markets []models.Market) PipelineOption {
	return func(p *RealtimePipeline) {
		p.feeds = make(map[models.FeedID]struct{}, len(markets))
		for _, m := range markets {
			p.feeds[m.ID] = struct{}{}
		}
	}
}

// WithTransform rewrites ticks before validation of the result.
func WithTransform(fn func(models.Tick) models.Tick) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		burst:    5,
		limiters: make(map[models.FeedID]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates, throttles and forwards one tick. Rejected ticks are
// counted and returned as errors; they never reach a session.
func (p *RealtimePipeline) Process(ctx context.Context, t models.Tick) error {
	start := time.Now()

	if err := p.validate(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		t = p.transform(t)
		if err := p.validate(t); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(t.Feed) {
		p.metrics.RecordError("pipeline_throttle")
		return fmt.Errorf("%w: %s", ErrThrottled, t.Feed)
	}

	if err := p.proc.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *RealtimePipeline) validate(t models.Tick) error {
	if t.Feed == "" {
		return fmt.Errorf("%w: empty feed", models.ErrMalformedQuote)
	}
	if p.feeds != nil {
		if _, ok := p.feeds[t.Feed]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFeed, t.Feed)
		}
	}
	if _, err := models.DigitOf(t.Quote); err != nil {
		return err
	}
	return nil
}

func (p *RealtimePipeline) allow(feed models.FeedID) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	lim, ok := p.limiters[feed]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.maxRPS), p.burst)
		p.limiters[feed] = lim
	}
	p.mu.Unlock()
	return lim.Allow()
}
