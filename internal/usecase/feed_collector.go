package usecase

import (
	"context"
	"errors"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
	mid "SniperBot/internal/middleware"
	"SniperBot/pkg/logger"
)

// FeedCollector drains a subscription into the realtime pipeline.
type FeedCollector struct {
	pipe    mid.Proc
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewFeedCollector(pipe mid.Proc, metrics drepo.Metrics, log *logger.Logger) *FeedCollector {
	return &FeedCollector{pipe: pipe, metrics: metrics, log: log}
}

// Collect processes ticks one at a time until ctx ends or the subscription
// closes its tick channel.
func (c *FeedCollector) Collect(ctx context.Context, feed models.FeedID, sub drepo.Subscription) {
	log := c.log.With(logger.String("feed", string(feed)))
	ticks, errs := sub.Ticks(), sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.metrics.RecordError("stream")
			log.Warn("tick stream error", logger.Error(err))
		case t, ok := <-ticks:
			if !ok {
				log.Debug("tick stream closed")
				return
			}
			if err := c.pipe.Process(ctx, t); err != nil {
				if errors.Is(err, mid.ErrThrottled) || errors.Is(err, ErrFeedInactive) {
					log.Debug("tick dropped", logger.Error(err))
					continue
				}
				log.Warn("tick rejected", logger.Error(err), logger.String("quote", t.Quote.String()))
			}
		}
	}
}
