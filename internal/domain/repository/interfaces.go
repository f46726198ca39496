package repository

import (
	"context"

	"SniperBot/internal/domain/models"
)

// TickSource opens per-feed tick subscriptions.
type TickSource interface {
	Subscribe(ctx context.Context, feed models.FeedID) (Subscription, error)
}

// Subscription delivers ticks for one feed until closed.
// Ticks is closed when the subscription ends.
type Subscription interface {
	Ticks() <-chan models.Tick
	Errors() <-chan error
	Close() error
}

// AlertSink delivers an alert to one destination.
type AlertSink interface {
	Name() string
	Send(ctx context.Context, ev models.AlertEvent) error
}

// BoardPublisher fans board snapshots out to live viewers.
type BoardPublisher interface {
	Publish(b models.Board)
}

type Metrics interface {
	RecordTick(feed string)
	RecordLastQuote(feed string, quote float64)
	RecordClusters(feed string, n int)
	RecordAlert(feed string, digit int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
