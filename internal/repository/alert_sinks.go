package repository

import (
	"context"
	"fmt"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
	"SniperBot/pkg/cache"
)

// EventPublisher is the part of the Kafka producer the alert sink uses.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaAlertSink publishes alerts keyed by feed, so one feed's alerts stay ordered.
type KafkaAlertSink struct {
	producer EventPublisher
	topic    string
}

func NewKafkaAlertSink(producer EventPublisher, topic string) *KafkaAlertSink {
	return &KafkaAlertSink{producer: producer, topic: topic}
}

func (s *KafkaAlertSink) Name() string { return "kafka" }

func (s *KafkaAlertSink) Send(ctx context.Context, ev models.AlertEvent) error {
	if err := s.producer.Publish(ctx, s.topic, []byte(ev.Feed), ev); err != nil {
		return fmt.Errorf("kafka alert sink: %w", err)
	}
	return nil
}

// RedisAlertSink broadcasts alerts on a pub/sub channel.
type RedisAlertSink struct {
	pub     cache.Publisher
	channel string
}

func NewRedisAlertSink(pub cache.Publisher, channel string) *RedisAlertSink {
	return &RedisAlertSink{pub: pub, channel: channel}
}

func (s *RedisAlertSink) Name() string { return "redis" }

func (s *RedisAlertSink) Send(ctx context.Context, ev models.AlertEvent) error {
	if err := s.pub.Publish(ctx, s.channel, ev); err != nil {
		return fmt.Errorf("redis alert sink: %w", err)
	}
	return nil
}

var (
	_ drepo.AlertSink = (*KafkaAlertSink)(nil)
	_ drepo.AlertSink = (*RedisAlertSink)(nil)
)
