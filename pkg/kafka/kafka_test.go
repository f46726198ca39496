package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SniperBot/pkg/logger"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestProducer_PublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "snappy", prometheus.NewRegistry())

	err := p.Publish(context.Background(), "sniper.alerts", []byte("R_10"), map[string]int{"digit": 3})
	require.NoError(t, err)
	require.NoError(t, p.PublishMessage(context.Background(), "logs", "raw"))

	msgs := w.written()
	require.Len(t, msgs, 2)
	assert.Equal(t, "sniper.alerts", msgs[0].Topic)
	assert.Equal(t, []byte("R_10"), msgs[0].Key)
	assert.JSONEq(t, `{"digit":3}`, string(msgs[0].Value))
	assert.Equal(t, "raw", string(msgs[1].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom}, "snappy", prometheus.NewRegistry())
	err := p.Publish(context.Background(), "t", nil, "x")
	assert.ErrorIs(t, err, boom)
}

type fakeReader struct {
	msgs    chan kafka.Message
	mu      sync.Mutex
	commits []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *fakeReader) committed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits)
}

func (r *fakeReader) Close() error { return nil }

type funcHandler struct {
	topic string
	fn    func([]byte) error
}

func (h funcHandler) Topic() string { return h.topic }
func (h funcHandler) Handle(_ context.Context, b []byte) error { return h.fn(b) }

func newTestConsumer(t *testing.T, reader *fakeReader, dlq *fakeWriter) *Consumer {
	t.Helper()
	c, err := NewConsumer(logger.Nop(),
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
		WithConsumerDLQ("ticks.dlq"),
	)
	require.NoError(t, err)
	c.newReader = func(string) messageReader { return reader }
	c.dlq = nil
	if dlq != nil {
		c.dlq = dlq
	}
	return c
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	c := newTestConsumer(t, reader, &fakeWriter{})

	var mu sync.Mutex
	calls := 0
	require.NoError(t, c.RegisterHandler(funcHandler{topic: "ticks", fn: func([]byte) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	reader.msgs <- kafka.Message{Topic: "ticks", Value: []byte("a")}
	require.Eventually(t, func() bool { return reader.committed() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
}

func TestConsumer_ExhaustedGoesToDLQ(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	dlq := &fakeWriter{}
	c := newTestConsumer(t, reader, dlq)
	require.NoError(t, c.RegisterHandler(funcHandler{topic: "ticks", fn: func([]byte) error {
		return errors.New("poison")
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	reader.msgs <- kafka.Message{Topic: "ticks", Key: []byte("R_10"), Value: []byte("bad")}
	require.Eventually(t, func() bool { return reader.committed() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	msgs := dlq.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ticks.dlq", msgs[0].Topic)
	assert.Equal(t, []byte("bad"), msgs[0].Value)
	assert.Equal(t, "source_topic", msgs[0].Headers[0].Key)
	assert.True(t, dlq.closed)
}

func TestConsumer_RegisterTwice(t *testing.T) {
	c := newTestConsumer(t, &fakeReader{}, nil)
	h := funcHandler{topic: "ticks", fn: func([]byte) error { return nil }}
	require.NoError(t, c.RegisterHandler(h))
	assert.Error(t, c.RegisterHandler(h))
}

func TestHookChain_BeforeErrorSkipsHandler(t *testing.T) {
	var order []string
	var gotErr error
	chain := NewHookChain(
		HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "first")
				return ctx, km, append(data, '!'), nil
			},
			Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { gotErr = err },
		},
		nil,
		HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "second:"+string(data))
				return ctx, km, data, &HookError{Code: "ERR_VALIDATION"}
			},
		},
	)

	_, _, _, err := chain.BeforeHandle(context.Background(), "ticks", kafka.Message{}, []byte("x"))
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_VALIDATION", he.Code)
	assert.Equal(t, []string{"first", "second:x!"}, order)
	assert.Equal(t, err, gotErr)
}

func TestHookChain_PanicBecomesError(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { panic("after") },
	})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
	assert.NotPanics(t, func() { chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil) })
}

func TestBackoffWithJitter_Bounds(t *testing.T) {
	for attempt := 1; attempt < 70; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
}

func TestStartTime(t *testing.T) {
	now := time.Now()
	got, ok := StartTime(WithStartTime(context.Background(), now))
	require.True(t, ok)
	assert.Equal(t, now, got)
}
