package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
	pkgkafka "SniperBot/pkg/kafka"
	"SniperBot/pkg/util"
)

var ErrSourceClosed = errors.New("kafka tick source closed")

// incoming message schema: {symbol, quote, epoch}
type tickMessage struct {
	Symbol string              `json:"symbol"`
	Quote  decimal.NullDecimal `json:"quote"`
	Epoch  int64               `json:"epoch"`
}

func decodeTickMessage(b []byte) (models.Tick, error) {
	var m tickMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return models.Tick{}, fmt.Errorf("decode tick: %w", err)
	}
	if m.Symbol == "" {
		return models.Tick{}, fmt.Errorf("%w: missing symbol", models.ErrMalformedQuote)
	}
	if !m.Quote.Valid {
		return models.Tick{}, fmt.Errorf("%w: missing quote", models.ErrMalformedQuote)
	}
	return models.Tick{
		Feed:       models.FeedID(m.Symbol),
		Quote:      m.Quote.Decimal,
		Epoch:      util.UnixSeconds(m.Epoch),
		ReceivedAt: time.Now(),
	}, nil
}

// KafkaTickSource is a TickSource fed by one Kafka topic carrying every feed.
// Messages are demultiplexed by symbol; feeds nobody subscribed to are skipped.
type KafkaTickSource struct {
	topic   string
	buffer  int
	metrics drepo.Metrics

	mu     sync.RWMutex
	subs   map[models.FeedID]*kafkaSubscription
	closed bool
}

var (
	_ drepo.TickSource        = (*KafkaTickSource)(nil)
	_ pkgkafka.MessageHandler = (*KafkaTickSource)(nil)
)

func NewKafkaTickSource(topic string, buffer int, metrics drepo.Metrics) *KafkaTickSource {
	if buffer <= 0 {
		buffer = 64
	}
	return &KafkaTickSource{topic: topic, buffer: buffer, metrics: metrics, subs: make(map[models.FeedID]*kafkaSubscription)}
}

func (s *KafkaTickSource) Topic() string { return s.topic }

// Subscribe replaces any earlier subscription of feed.
func (s *KafkaTickSource) Subscribe(ctx context.Context, feed models.FeedID) (drepo.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSourceClosed
	}
	if old, ok := s.subs[feed]; ok {
		s.detachLocked(old)
	}
	sub := &kafkaSubscription{
		src:   s,
		feed:  feed,
		ticks: make(chan models.Tick, s.buffer),
		errs:  make(chan error),
	}
	s.subs[feed] = sub

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()
	return sub, nil
}

// Handle routes one message to its feed's subscriber without blocking the
// consumer; a full subscriber loses the tick.
func (s *KafkaTickSource) Handle(ctx context.Context, b []byte) error {
	t, err := decodeTickMessage(b)
	if err != nil {
		s.metrics.RecordError("consumer_unmarshal")
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[t.Feed]
	if !ok {
		return nil
	}
	select {
	case sub.ticks <- t:
	default:
		s.metrics.RecordError("kafka_tick_drop")
	}
	return nil
}

// ValidationHook rejects undecodable messages before the handler runs, so
// they skip retries and go straight to the DLQ.
func (s *KafkaTickSource) ValidationHook() pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			if _, err := decodeTickMessage(data); err != nil {
				return ctx, km, data, &pkgkafka.HookError{Code: "ERR_VALIDATION", Err: err}
			}
			return pkgkafka.WithStartTime(ctx, time.Now()), km, data, nil
		},
		After: func(ctx context.Context, _ string, _ kafka.Message, _ []byte, err error) {
			if start, ok := pkgkafka.StartTime(ctx); ok && err == nil {
				s.metrics.RecordLatency("kafka_tick_handle", time.Since(start).Seconds())
			}
		},
	}
}

// Close ends every subscription.
func (s *KafkaTickSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, sub := range s.subs {
		s.detachLocked(sub)
	}
	return nil
}

func (s *KafkaTickSource) detachLocked(sub *kafkaSubscription) {
	if s.subs[sub.feed] == sub {
		delete(s.subs, sub.feed)
	}
	sub.once.Do(func() {
		close(sub.ticks)
		close(sub.errs)
	})
}

type kafkaSubscription struct {
	src   *KafkaTickSource
	feed  models.FeedID
	ticks chan models.Tick
	errs  chan error
	once  sync.Once
}

func (s *kafkaSubscription) Ticks() <-chan models.Tick { return s.ticks }

// Errors never delivers; consumer failures are handled by the consumer itself.
func (s *kafkaSubscription) Errors() <-chan error { return s.errs }

func (s *kafkaSubscription) Close() error {
	s.src.mu.Lock()
	defer s.src.mu.Unlock()
	s.src.detachLocked(s)
	return nil
}
