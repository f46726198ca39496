package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
	"SniperBot/pkg/cache"
)

var ErrNoAlert = errors.New("no alert recorded")

// AlertStore keeps the most recent alert of each feed for the display API.
// It is an alert sink, so it sees exactly what the other sinks see.
type AlertStore struct {
	cache cache.Service
	ttl   time.Duration
}

var _ drepo.AlertSink = (*AlertStore)(nil)

func NewAlertStore(c cache.Service, ttl time.Duration) *AlertStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AlertStore{cache: c, ttl: ttl}
}

func lastAlertKey(feed models.FeedID) string { return cache.Key("last_alert", string(feed)) }

func (s *AlertStore) Name() string { return "last_alert" }

func (s *AlertStore) Send(ctx context.Context, ev models.AlertEvent) error {
	if err := s.cache.Set(ctx, lastAlertKey(ev.Feed), ev, s.ttl); err != nil {
		return fmt.Errorf("store last alert: %w", err)
	}
	return nil
}

// Last returns the newest alert of feed, or ErrNoAlert.
func (s *AlertStore) Last(ctx context.Context, feed models.FeedID) (models.AlertEvent, error) {
	ev, err := cache.GetTyped[models.AlertEvent](ctx, s.cache, lastAlertKey(feed))
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.AlertEvent{}, fmt.Errorf("%w: %s", ErrNoAlert, feed)
	}
	if err != nil {
		return models.AlertEvent{}, fmt.Errorf("load last alert: %w", err)
	}
	return ev, nil
}
